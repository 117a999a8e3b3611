// Copyright 2014 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cache provides an ordered key-value cache backed by a
// left-leaning red-black tree. Entries are kept sorted by key, which
// allows ceiling lookups and range iteration; both are needed by callers
// that index cached values by the end key of a key range.
package cache

import "github.com/biogo/store/llrb"

// Entry holds a cached key-value pair. It implements llrb.Comparable by
// comparing keys, so entries can be stored directly in the tree.
type Entry struct {
	Key   llrb.Comparable
	Value interface{}
}

// Compare implements llrb.Comparable.
func (e *Entry) Compare(b llrb.Comparable) int {
	return e.Key.Compare(b.(*Entry).Key)
}

// OrderedCache is a cache of Entry objects maintained in key order. It is
// not safe for concurrent use; callers are expected to synchronize access.
type OrderedCache struct {
	tree llrb.Tree
}

// NewOrderedCache returns a new, empty OrderedCache.
func NewOrderedCache() *OrderedCache {
	return &OrderedCache{}
}

// Add adds or replaces the value for key.
func (oc *OrderedCache) Add(key llrb.Comparable, value interface{}) {
	oc.tree.Insert(&Entry{Key: key, Value: value})
}

// Get returns the value for key, if present.
func (oc *OrderedCache) Get(key llrb.Comparable) (interface{}, bool) {
	if e, ok := oc.tree.Get(&Entry{Key: key}).(*Entry); ok {
		return e.Value, true
	}
	return nil, false
}

// CeilEntry returns the entry with the smallest key greater than or equal
// to the given key, if any.
func (oc *OrderedCache) CeilEntry(key llrb.Comparable) (*Entry, bool) {
	if e, ok := oc.tree.Ceil(&Entry{Key: key}).(*Entry); ok {
		return e, true
	}
	return nil, false
}

// DelEntry removes the entry from the cache.
func (oc *OrderedCache) DelEntry(entry *Entry) {
	oc.tree.Delete(entry)
}

// Clear removes all entries.
func (oc *OrderedCache) Clear() {
	oc.tree = llrb.Tree{}
}

// Len returns the number of cached entries.
func (oc *OrderedCache) Len() int {
	return oc.tree.Len()
}

// Do invokes fn on every entry in key order. Iteration stops if fn
// returns true.
func (oc *OrderedCache) Do(fn func(e *Entry) bool) {
	oc.tree.Do(func(c llrb.Comparable) bool {
		return fn(c.(*Entry))
	})
}

// DoRangeEntry invokes fn on entries with keys in [from, to), in key
// order. Iteration stops if fn returns true.
func (oc *OrderedCache) DoRangeEntry(fn func(e *Entry) bool, from, to llrb.Comparable) {
	oc.tree.DoRange(func(c llrb.Comparable) bool {
		return fn(c.(*Entry))
	}, &Entry{Key: from}, &Entry{Key: to})
}
