// Package locator maintains a client-side cache of tablet locations for
// one table. Entries are keyed by tablet end row in an ordered cache, so
// the tablet containing a row is found with a ceiling lookup. Concurrent
// cache misses for the same row are coalesced into a single metadata
// scan.
package locator

import (
	"bytes"
	"context"
	"fmt"

	"github.com/biogo/store/llrb"
	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/cache"
	"github.com/nstruharova/accumulo/pkg/util/log"
	"github.com/nstruharova/accumulo/pkg/util/syncutil"
	"golang.org/x/sync/singleflight"
)

// lookupPrefetchCount bounds how many consecutive tablet records a single
// metadata scan feeds into the cache beyond the one being looked up.
const lookupPrefetchCount = 4

// TabletLocation is a tablet together with the server currently serving
// it.
type TabletLocation struct {
	Extent  tablet.KeyExtent
	Server  string
	Session string
}

func (t *TabletLocation) String() string {
	return fmt.Sprintf("%s@%s", t.Extent, t.Server)
}

// cacheKey orders cache entries by tablet end row. The boundless key
// stands for a nil end row and sorts after every concrete row.
type cacheKey struct {
	row       tablet.Row
	boundless bool
}

// Compare implements llrb.Comparable.
func (k cacheKey) Compare(b llrb.Comparable) int {
	o := b.(cacheKey)
	switch {
	case k.boundless && o.boundless:
		return 0
	case k.boundless:
		return 1
	case o.boundless:
		return -1
	default:
		return bytes.Compare(k.row, o.row)
	}
}

func extentKey(e tablet.KeyExtent) cacheKey {
	if e.EndRow == nil {
		return cacheKey{boundless: true}
	}
	return cacheKey{row: e.EndRow}
}

// Locator caches tablet locations for a single table. It is safe for
// concurrent use.
type Locator struct {
	tableID tablet.TableID
	store   rpc.MetaStore

	// lookups coalesces concurrent metadata scans for the same row.
	lookups singleflight.Group

	mu struct {
		syncutil.RWMutex
		cache *cache.OrderedCache
	}
}

// New returns an empty locator for the given table.
func New(id tablet.TableID, store rpc.MetaStore) *Locator {
	l := &Locator{tableID: id, store: store}
	l.mu.cache = cache.NewOrderedCache()
	return l
}

// Locate returns the location of the tablet containing row. A nil
// location with a nil error means no current location is known; the
// caller is expected to re-verify the table's existence and state before
// retrying.
func (l *Locator) Locate(ctx context.Context, row tablet.Row) (*TabletLocation, error) {
	if loc := l.getCached(row); loc != nil {
		return loc, nil
	}
	ch := l.lookups.DoChan(string(row), func() (interface{}, error) {
		loc, err := l.lookup(ctx, row)
		if loc == nil {
			return nil, err
		}
		return loc, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Val == nil {
			return nil, nil
		}
		return res.Val.(*TabletLocation), nil
	}
}

func (l *Locator) getCached(row tablet.Row) *TabletLocation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.mu.cache.CeilEntry(cacheKey{row: row}); ok {
		loc := e.Value.(*TabletLocation)
		if loc.Extent.ContainsRow(row) {
			return loc
		}
	}
	return nil
}

// lookup scans the metadata store starting at the tablet whose end row is
// the first at or above row, caching every record with a current
// location and returning the one containing row, if any.
func (l *Locator) lookup(ctx context.Context, row tablet.Row) (*TabletLocation, error) {
	tms, err := l.store.Tablets(ctx, l.tableID, row, nil,
		rpc.MetaFieldPrevRow, rpc.MetaFieldLocation)
	if err != nil {
		if errors.Is(err, rpc.ErrTabletDeleted) {
			// The tablet went away mid-scan; report a miss and let the
			// caller re-verify the table before retrying.
			log.VEventf(ctx, 2, "tablet deleted during location lookup for table %s", l.tableID)
			return nil, nil
		}
		return nil, err
	}
	if len(tms) > lookupPrefetchCount {
		tms = tms[:lookupPrefetchCount]
	}
	var found *TabletLocation
	l.mu.Lock()
	for _, tm := range tms {
		if tm.Loc == nil || tm.Loc.Kind != tablet.LocationCurrent {
			continue
		}
		loc := &TabletLocation{
			Extent:  tm.Extent,
			Server:  tm.Loc.Server,
			Session: tm.Loc.Session,
		}
		l.insertLocked(loc)
		if found == nil && tm.Extent.ContainsRow(row) {
			found = loc
		}
	}
	l.mu.Unlock()
	if found == nil {
		log.VEventf(ctx, 2, "no current location for row %s of table %s", row, l.tableID)
	}
	return found, nil
}

// insertLocked adds loc to the cache, first evicting any cached entries
// whose extents overlap it. Overlapping entries are necessarily stale:
// they describe tablet bounds from before a split or merge.
func (l *Locator) insertLocked(loc *TabletLocation) {
	r := loc.Extent.DataRange()
	var stale []*cache.Entry
	l.mu.cache.Do(func(e *cache.Entry) bool {
		old := e.Value.(*TabletLocation)
		if !old.Extent.DataRange().Clip(r).IsEmpty() {
			stale = append(stale, e)
		}
		return false
	})
	for _, e := range stale {
		l.mu.cache.DelEntry(e)
	}
	l.mu.cache.Add(extentKey(loc.Extent), loc)
}

// InvalidateExtent drops the cached location for the given extent, if the
// cache still holds exactly that extent.
func (l *Locator) InvalidateExtent(extent tablet.KeyExtent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.mu.cache.CeilEntry(extentKey(extent)); ok {
		if e.Value.(*TabletLocation).Extent.Equal(extent) {
			l.mu.cache.DelEntry(e)
		}
	}
}

// InvalidateServer drops every cached location pointing at the given
// server address.
func (l *Locator) InvalidateServer(server string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stale []*cache.Entry
	l.mu.cache.Do(func(e *cache.Entry) bool {
		if e.Value.(*TabletLocation).Server == server {
			stale = append(stale, e)
		}
		return false
	})
	for _, e := range stale {
		l.mu.cache.DelEntry(e)
	}
}

// InvalidateAll empties the cache.
func (l *Locator) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mu.cache.Clear()
}

// cacheLen returns the number of cached locations.
func (l *Locator) cacheLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mu.cache.Len()
}

// TabletRanges groups the row ranges that fall on one tablet.
type TabletRanges struct {
	Extent tablet.KeyExtent
	Ranges []tablet.Range
}

// Binning maps a server address to the tablets it serves and the row
// ranges each tablet covers.
type Binning map[string][]*TabletRanges

func (b Binning) add(loc *TabletLocation, r tablet.Range) {
	for _, tr := range b[loc.Server] {
		if tr.Extent.Equal(loc.Extent) {
			tr.Ranges = append(tr.Ranges, r)
			return
		}
	}
	b[loc.Server] = append(b[loc.Server], &TabletRanges{
		Extent: loc.Extent,
		Ranges: []tablet.Range{r},
	})
}

// NumTablets returns the number of distinct tablets across all servers.
func (b Binning) NumTablets() int {
	var n int
	for _, trs := range b {
		n += len(trs)
	}
	return n
}

// Extents returns the distinct extents across all servers, unsorted.
func (b Binning) Extents() []tablet.KeyExtent {
	out := make([]tablet.KeyExtent, 0, b.NumTablets())
	for _, trs := range b {
		for _, tr := range trs {
			out = append(out, tr.Extent)
		}
	}
	return out
}

// BinRanges assigns each range to the tablets covering it, grouped by
// serving server. Ranges that could not be fully covered by tablets with
// current locations come back in unbinned; the caller retries those after
// re-verifying the table.
func (l *Locator) BinRanges(ctx context.Context, ranges []tablet.Range) (Binning, []tablet.Range, error) {
	binned := make(Binning)
	var unbinned []tablet.Range
	for _, r := range ranges {
		ok, err := l.binRange(ctx, r, binned)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			unbinned = append(unbinned, r)
		}
	}
	return binned, unbinned, nil
}

// binRange walks the tablets covering r in order, recording each into
// binned. When any covering tablet has no known location it reports
// false and records nothing, so a retried range never double-counts.
func (l *Locator) binRange(ctx context.Context, r tablet.Range, binned Binning) (bool, error) {
	// The first row possibly in r: the range start is exclusive.
	var row tablet.Row
	if r.Start != nil {
		row = r.Start.Next()
	} else {
		row = tablet.Row{}
	}
	var covering []*TabletLocation
	for {
		loc, err := l.Locate(ctx, row)
		if err != nil {
			return false, err
		}
		if loc == nil {
			return false, nil
		}
		covering = append(covering, loc)
		if loc.Extent.EndRow == nil || (r.End != nil && r.End.Compare(loc.Extent.EndRow) <= 0) {
			break
		}
		row = loc.Extent.EndRow.Next()
	}
	for _, loc := range covering {
		binned.add(loc, r)
	}
	return true, nil
}
