package admin

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/log"
)

// waitForStateTransition blocks until every tablet of the table agrees
// with the expected state: online means every tablet has a current
// location, offline means no tablet has any. Progress is observed by
// scanning the partition metadata; each round narrows the scan window
// to [earliest pending tablet, last pending tablet] rather than
// restarting from the top.
func (c *Client) waitForStateTransition(
	ctx context.Context, tableID tablet.TableID, tableName string,
	expected tablet.TableState,
) error {
	var startRow, lastRow tablet.Row
	logEvery := log.Every(30 * time.Second)
	for {
		state, err := c.cc.TableState(ctx, tableID, tableName)
		if err != nil {
			return err
		}
		if state == tablet.TableStateDeleting {
			return &client.TableNotFoundError{Name: tableName, TableID: string(tableID)}
		}
		if state != expected {
			return errors.Newf("unexpected state for table %s (%s): %s, expected %s",
				tableName, tableID, state, expected)
		}

		tms, err := c.cc.Meta().Tablets(ctx, tableID, startRow, lastRow,
			rpc.MetaFieldPrevRow, rpc.MetaFieldLocation)
		if err != nil {
			if errors.Is(err, rpc.ErrTabletDeleted) {
				// A merge removed tablets mid-scan. Re-verify the table
				// and rescan from the top.
				if err := c.cc.RequireNotDeleted(ctx, tableID, tableName); err != nil {
					return err
				}
				startRow, lastRow = nil, nil
				if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
					return err
				}
				continue
			}
			return err
		}

		var total, waitFor, holes int
		serverCounts := make(map[string]int)
		var continueRow, lastPendingRow tablet.Row
		var haveContinue, lastPendingBoundless bool
		var lastExtent *tablet.KeyExtent
		for i := range tms {
			tm := &tms[i]
			total++
			current := tm.Loc != nil && tm.Loc.Kind == tablet.LocationCurrent
			assigned := tm.Loc != nil && tm.Loc.Kind != tablet.LocationNone
			pending := (expected == tablet.TableStateOnline && !current) ||
				(expected == tablet.TableStateOffline && assigned)
			if pending {
				waitFor++
				if !haveContinue {
					continueRow = resumeRow(tm.Extent)
					haveContinue = true
				}
				// Records are sorted, so the last assignment wins; a
				// pending boundless tablet leaves the window open-ended.
				if tm.Extent.EndRow == nil {
					lastPendingBoundless = true
				} else {
					lastPendingRow = tm.Extent.EndRow.Clone()
				}
				if tm.Loc != nil {
					serverCounts[tm.Loc.HostPortSession()]++
				}
			}
			if lastExtent != nil && !tm.Extent.IsPreviousExtent(*lastExtent) {
				holes++
			}
			e := tm.Extent
			lastExtent = &e
		}

		if haveContinue {
			startRow = continueRow
			if lastPendingBoundless {
				lastRow = nil
			} else {
				lastRow = lastPendingRow
			}
		}
		if holes > 0 || total == 0 {
			// The scan window cannot be trusted; restart from the top.
			startRow, lastRow = nil, nil
		}
		if waitFor == 0 && holes == 0 && total > 0 {
			return nil
		}

		// Back off in proportion to the worst backlog: a single loaded
		// server paces the whole transition.
		maxPerServer := 0
		for _, n := range serverCounts {
			if n > maxPerServer {
				maxPerServer = n
			}
		}
		waitTime := time.Duration(waitFor) * 10 * time.Millisecond
		if maxPerServer > 0 {
			waitTime = time.Duration(maxPerServer) * 10 * time.Millisecond
		}
		if waitTime < 100*time.Millisecond {
			waitTime = 100 * time.Millisecond
		}
		if waitTime > 5*time.Second {
			waitTime = 5 * time.Second
		}
		if logEvery.ShouldLog() {
			log.Infof(ctx, "waiting for %d of %d tablets of %s, %d holes, sleeping %s",
				waitFor, total, tableName, holes, waitTime)
		}
		if err := sleepCtx(ctx, waitTime); err != nil {
			return err
		}
	}
}

// resumeRow returns the metadata scan row at which a rescan should pick
// up to observe the given extent again.
func resumeRow(e tablet.KeyExtent) tablet.Row {
	if e.EndRow != nil {
		return e.EndRow.Clone()
	}
	// The boundless tablet sorts last; any row past the rest of the
	// table reaches it.
	if e.PrevEndRow != nil {
		return e.PrevEndRow.Next()
	}
	return nil
}
