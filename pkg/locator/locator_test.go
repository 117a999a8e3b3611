package locator

import (
	"context"
	"testing"

	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/rpc/rpctest"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/stretchr/testify/require"
)

func row(s string) tablet.Row {
	if s == "" {
		return nil
	}
	return tablet.Row(s)
}

func mergeRange(t *testing.T, c *rpctest.Cluster, name, start, end string) {
	t.Helper()
	ctx := context.Background()
	id, err := c.BeginOperation(ctx)
	require.NoError(t, err)
	args := [][]byte{[]byte(name), []byte(start), []byte(end)}
	require.NoError(t, c.ExecuteOperation(ctx, id, rpc.OpMerge, args, nil, false))
	_, err = c.WaitOperation(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.FinishOperation(ctx, id))
}

func TestLocateFindsAndCaches(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"), row("g"), row("m"))
	l := New(id, c)

	loc, err := l.Locate(ctx, row("d"))
	require.NoError(t, err)
	require.NotNil(t, loc)
	require.Equal(t, tablet.KeyExtent{Table: id, PrevEndRow: row("c"), EndRow: row("g")}, loc.Extent)
	require.NotEmpty(t, loc.Server)

	// The scan prefetched the following tablets.
	require.Greater(t, l.cacheLen(), 1)

	// A second lookup is served from the cache: a scan would fail.
	c.QueueScanErr(rpc.TransportErrorf("injected"))
	loc2, err := l.Locate(ctx, row("e"))
	require.NoError(t, err)
	require.True(t, loc.Extent.Equal(loc2.Extent))
}

func TestLocateBoundaryRows(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"), row("g"))
	l := New(id, c)

	// End rows are inclusive.
	loc, err := l.Locate(ctx, row("c"))
	require.NoError(t, err)
	require.Equal(t, row("c"), loc.Extent.EndRow)

	// Rows past the last split land on the boundless tablet.
	loc, err = l.Locate(ctx, row("zzz"))
	require.NoError(t, err)
	require.Nil(t, loc.Extent.EndRow)
	require.Equal(t, row("g"), loc.Extent.PrevEndRow)
}

func TestLocateMissOnUnassignedTablet(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"))
	c.ClearLocation(id, row("a"))
	l := New(id, c)

	loc, err := l.Locate(ctx, row("a"))
	require.NoError(t, err)
	require.Nil(t, loc)
}

func TestLocatePropagatesScanError(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t")
	l := New(id, c)

	c.QueueScanErr(rpc.TransportErrorf("injected"))
	_, err := l.Locate(ctx, row("a"))
	require.Error(t, err)
	require.True(t, rpc.IsTransport(err))
}

func TestLocateTreatsDeletedTabletAsMiss(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t")
	l := New(id, c)

	c.QueueScanErr(rpc.ErrTabletDeleted)
	loc, err := l.Locate(ctx, row("a"))
	require.NoError(t, err)
	require.Nil(t, loc)
}

func TestInvalidateExtent(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"))
	l := New(id, c)

	loc, err := l.Locate(ctx, row("a"))
	require.NoError(t, err)
	before := l.cacheLen()

	// Invalidating a different extent is a no-op.
	l.InvalidateExtent(tablet.KeyExtent{Table: id, PrevEndRow: row("a"), EndRow: row("c")})
	require.Equal(t, before, l.cacheLen())

	l.InvalidateExtent(loc.Extent)
	require.Equal(t, before-1, l.cacheLen())
	require.Nil(t, l.getCached(row("a")))
}

func TestInvalidateServer(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster("ts1:9997", "ts2:9997", "ts3:9997")
	id := c.CreateTable("t", row("c"), row("g"), row("m"))
	l := New(id, c)

	loc, err := l.Locate(ctx, row("a"))
	require.NoError(t, err)
	require.Greater(t, l.cacheLen(), 0)

	l.InvalidateServer(loc.Server)
	require.Nil(t, l.getCached(row("a")))
}

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"))
	l := New(id, c)

	_, err := l.Locate(ctx, row("a"))
	require.NoError(t, err)
	l.InvalidateAll()
	require.Equal(t, 0, l.cacheLen())
}

func TestInsertEvictsStaleOverlapping(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"), row("g"), row("m"))
	l := New(id, c)

	_, err := l.Locate(ctx, row("d"))
	require.NoError(t, err)

	// Merge away the cached boundaries server-side, then force a fresh
	// lookup. The merged extent must evict the stale overlapping entries.
	mergeRange(t, c, "t", "c", "m")
	l.InvalidateExtent(tablet.KeyExtent{Table: id, PrevEndRow: row("c"), EndRow: row("g")})

	loc, err := l.Locate(ctx, row("d"))
	require.NoError(t, err)
	require.Equal(t, row("c"), loc.Extent.PrevEndRow)
	require.Equal(t, row("m"), loc.Extent.EndRow)

	cached := l.getCached(row("h"))
	require.NotNil(t, cached)
	require.True(t, loc.Extent.Equal(cached.Extent))
}

func TestBinRanges(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"), row("g"), row("m"))
	l := New(id, c)

	ranges := []tablet.Range{
		{Start: row("a"), End: row("b")},   // one tablet
		{Start: row("d"), End: row("h")},   // spans (c,g] and (g,m]
		{Start: row("n"), End: nil},        // boundless tablet
	}
	binned, unbinned, err := l.BinRanges(ctx, ranges)
	require.NoError(t, err)
	require.Empty(t, unbinned)
	require.Equal(t, 4, binned.NumTablets())

	var total int
	for _, trs := range binned {
		for _, tr := range trs {
			total += len(tr.Ranges)
		}
	}
	require.Equal(t, 4, total)
}

func TestBinRangesUnbinnedOnMissingLocation(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"), row("g"))
	c.ClearLocation(id, row("e"))
	l := New(id, c)

	ranges := []tablet.Range{
		{Start: row("a"), End: row("b")},
		{Start: row("d"), End: row("h")},
	}
	binned, unbinned, err := l.BinRanges(ctx, ranges)
	require.NoError(t, err)
	require.Len(t, unbinned, 1)
	require.True(t, unbinned[0].Equal(ranges[1]))
	require.Equal(t, 1, binned.NumTablets())
}

func TestBinRangesFullTableRange(t *testing.T) {
	ctx := context.Background()
	c := rpctest.NewCluster()
	id := c.CreateTable("t", row("c"), row("g"))
	l := New(id, c)

	binned, unbinned, err := l.BinRanges(ctx, []tablet.Range{tablet.EverythingRange()})
	require.NoError(t, err)
	require.Empty(t, unbinned)
	require.Equal(t, 3, binned.NumTablets())
}
