package admin

import (
	"context"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/locator"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/log"
	"github.com/nstruharova/accumulo/pkg/util/retry"
)

// Locations resolves the tablets covering each range, grouped by the
// server currently hosting them. It retries with backoff until every
// range is covered, failing fast only when the table is deleted or
// offline.
func (c *Client) Locations(
	ctx context.Context, tableName string, ranges []tablet.Range,
) (locator.Binning, error) {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return nil, err
	}
	loc := c.cc.LocatorFor(tableID)
	loc.InvalidateAll()

	r := retry.StartWithCtx(ctx, c.cc.Config().RetryOptions())
	for r.Next() {
		binned, unbinned, err := loc.BinRanges(ctx, ranges)
		if err != nil {
			return nil, err
		}
		if len(unbinned) == 0 {
			return binned, nil
		}
		if err := c.cc.RequireNotDeleted(ctx, tableID, tableName); err != nil {
			return nil, err
		}
		if err := c.cc.RequireNotOffline(ctx, tableID, tableName); err != nil {
			return nil, err
		}
		log.VEventf(ctx, 1, "%d ranges of %s not yet hosted, retrying", len(unbinned), tableName)
		loc.InvalidateAll()
	}
	return nil, errors.CombineErrors(ctx.Err(), errors.Newf("binning ranges of table %s did not converge", tableName))
}

// binWholeRange bins a single range, sleeping a short randomized delay
// between rounds. Used by SplitRangeByTablets, whose callers fan out
// over many tables at once; the jitter keeps them from rescanning the
// metadata in lockstep.
func (c *Client) binWholeRange(
	ctx context.Context, tableID tablet.TableID, tableName string,
	loc *locator.Locator, r tablet.Range,
) (locator.Binning, error) {
	loc.InvalidateAll()
	for {
		binned, unbinned, err := loc.BinRanges(ctx, []tablet.Range{r})
		if err != nil {
			return nil, err
		}
		if len(unbinned) == 0 {
			return binned, nil
		}
		if err := c.cc.RequireNotDeleted(ctx, tableID, tableName); err != nil {
			return nil, err
		}
		if err := c.cc.RequireNotOffline(ctx, tableID, tableName); err != nil {
			return nil, err
		}
		log.VEventf(ctx, 1, "unable to locate bins for range of table %s, retrying", tableName)
		delay := 100*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
		loc.InvalidateAll()
	}
}

// SplitRangeByTablets breaks a row range into at most maxSplits
// subranges along tablet boundaries, for callers that want to fan work
// out across the tablets underlying the range.
func (c *Client) SplitRangeByTablets(
	ctx context.Context, tableName string, r tablet.Range, maxSplits int,
) ([]tablet.Range, error) {
	ctx = c.opCtx(ctx, tableName)
	if maxSplits < 1 {
		return nil, errors.Newf("maxSplits must be positive, got %d", maxSplits)
	}
	if maxSplits == 1 {
		return []tablet.Range{r}, nil
	}
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return nil, err
	}
	binned, err := c.binWholeRange(ctx, tableID, tableName, c.cc.LocatorFor(tableID), r)
	if err != nil {
		return nil, err
	}

	unmerged := binned.Extents()
	tablet.SortExtents(unmerged)
	var merged []tablet.KeyExtent
	for len(unmerged)+len(merged) > maxSplits {
		if len(unmerged) >= 2 {
			// Adjacent in sorted order, so the pair spans a contiguous
			// row range.
			span := tablet.KeyExtent{
				Table:      unmerged[0].Table,
				PrevEndRow: unmerged[0].PrevEndRow,
				EndRow:     unmerged[1].EndRow,
			}
			merged = append(merged, span)
			unmerged = unmerged[2:]
		} else {
			// One pass done; rotate the merged extents back in and keep
			// halving.
			merged = append(merged, unmerged...)
			unmerged = append(unmerged[:0:0], merged...)
			merged = merged[:0]
		}
	}
	merged = append(merged, unmerged...)
	tablet.SortExtents(merged)

	out := make([]tablet.Range, 0, len(merged))
	for _, e := range merged {
		clipped := e.DataRange().Clip(r)
		if !clipped.IsEmpty() {
			out = append(out, clipped)
		}
	}
	return out, nil
}
