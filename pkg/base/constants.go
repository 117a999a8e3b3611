// Package base holds constants and default configuration shared across
// the client packages.
package base

import (
	"time"

	"github.com/nstruharova/accumulo/pkg/util/retry"
)

const (
	// MetadataTableName and RootTableName are the reserved system tables.
	// They always exist.
	MetadataTableName = "accumulo.metadata"
	RootTableName     = "accumulo.root"

	// DefaultSplitWorkers is the size of the worker pool used to apply
	// split batches.
	DefaultSplitWorkers = 16

	// LedgerRetryDelay is the fixed delay between attempts to reach the
	// control plane during a ledgered operation. Communication failures
	// and stale-endpoint responses are always transient here.
	LedgerRetryDelay = 100 * time.Millisecond

	// SplitRetryDelay is the fixed delay between attempts to apply a
	// single split key.
	SplitRetryDelay = 100 * time.Millisecond

	// PropertyExcludePrefix marks an option key as a property to exclude
	// during a clone.
	PropertyExcludePrefix = "!"
)

// DefaultRetryOptions returns the retry policy used by the range binning
// loops: capped exponential backoff with an infinite attempt budget.
func DefaultRetryOptions() retry.Options {
	return retry.Options{
		InitialBackoff: 100 * time.Millisecond,
		Increment:      100 * time.Millisecond,
		Multiplier:     1.5,
		MaxBackoff:     2 * time.Second,
		LogInterval:    3 * time.Minute,
	}
}
