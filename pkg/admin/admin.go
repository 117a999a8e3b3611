// Package admin implements the client-side coordination of structural
// table operations: create, delete, rename, merge, clone, compaction,
// state changes, splits and bulk range location. Mutations run as
// ledgered operations on the control plane; splits are applied directly
// to the serving tablet servers.
package admin

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/nstruharova/accumulo/pkg/base"
	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/retry"
)

// Client coordinates structural operations against one cluster.
type Client struct {
	cc *client.Context
}

// New returns an admin client over the given client context.
func New(cc *client.Context) *Client {
	return &Client{cc: cc}
}

func (c *Client) opCtx(ctx context.Context, tableName string) context.Context {
	return logtags.AddTag(c.cc.AnnotateCtx(ctx), "table", tableName)
}

// rowArg encodes a row bound as an operation argument; nil becomes the
// empty argument, meaning unbounded.
func rowArg(r tablet.Row) []byte {
	if r == nil {
		return nil
	}
	return []byte(r)
}

// TimeType is the timestamp discipline of a table.
type TimeType int

const (
	// TimeTypeMillis assigns wall-clock timestamps.
	TimeTypeMillis TimeType = iota
	// TimeTypeLogical assigns logical, monotonically increasing ones.
	TimeTypeLogical
)

func (t TimeType) String() string {
	if t == TimeTypeLogical {
		return "LOGICAL"
	}
	return "MILLIS"
}

// CreateConfig tunes table creation. The zero value creates an online
// table with wall-clock timestamps, no splits and no extra properties.
type CreateConfig struct {
	SplitRows []tablet.Row
	Props     map[string]string
	TimeType  TimeType
	Offline   bool
}

// Create creates a table.
func (c *Client) Create(ctx context.Context, tableName string, cfg CreateConfig) error {
	ctx = c.opCtx(ctx, tableName)
	if err := client.ValidateTableName(tableName); err != nil {
		return err
	}
	args := [][]byte{[]byte(tableName)}
	for _, s := range sortDedupeRows(cfg.SplitRows) {
		args = append(args, rowArg(s))
	}
	opts := make(map[string]string, len(cfg.Props)+2)
	for k, v := range cfg.Props {
		opts[k] = v
	}
	opts[rpc.OptTimeType] = cfg.TimeType.String()
	if cfg.Offline {
		opts[rpc.OptInitialState] = rpc.InitialStateOffline
	}
	_, err := c.doLedgeredOperation(ctx, rpc.OpCreate, args, opts, tableName, true)
	return err
}

// Delete deletes a table.
func (c *Client) Delete(ctx context.Context, tableName string) error {
	ctx = c.opCtx(ctx, tableName)
	args := [][]byte{[]byte(tableName)}
	_, err := c.doLedgeredOperation(ctx, rpc.OpDelete, args, nil, tableName, true)
	return err
}

// Rename renames a table. The canonical table id is unchanged.
func (c *Client) Rename(ctx context.Context, oldName, newName string) error {
	ctx = c.opCtx(ctx, oldName)
	if err := client.ValidateTableName(newName); err != nil {
		return err
	}
	args := [][]byte{[]byte(oldName), []byte(newName)}
	_, err := c.doLedgeredOperation(ctx, rpc.OpRename, args, nil, oldName, true)
	return err
}

// CloneConfig tunes a table clone.
type CloneConfig struct {
	// Flush flushes the source's in-memory data first, so the clone
	// sees everything written before the call.
	Flush bool
	// KeepOffline leaves the clone offline after creation.
	KeepOffline bool
	// PropsToSet overrides properties on the clone.
	PropsToSet map[string]string
	// PropsToExclude names source properties not copied to the clone.
	PropsToExclude []string
}

// Clone creates a new table sharing the source table's stored data.
func (c *Client) Clone(ctx context.Context, srcName, newName string, cfg CloneConfig) error {
	ctx = c.opCtx(ctx, srcName)
	if err := client.ValidateTableName(newName); err != nil {
		return err
	}
	srcID, err := c.cc.TableNameToID(ctx, srcName)
	if err != nil {
		return err
	}
	if cfg.Flush {
		if err := c.Flush(ctx, srcName, nil, nil, true); err != nil {
			return err
		}
	}
	opts := make(map[string]string, len(cfg.PropsToSet)+len(cfg.PropsToExclude))
	for _, k := range cfg.PropsToExclude {
		opts[base.PropertyExcludePrefix+k] = ""
	}
	for k, v := range cfg.PropsToSet {
		if _, excluded := opts[base.PropertyExcludePrefix+k]; excluded {
			return errors.Newf("property %s is both set and excluded", k)
		}
		opts[k] = v
	}
	keepOffline := "false"
	if cfg.KeepOffline {
		keepOffline = "true"
	}
	args := [][]byte{[]byte(srcID), []byte(newName), []byte(keepOffline)}
	_, err = c.doLedgeredOperation(ctx, rpc.OpClone, args, opts, newName, true)
	return err
}

// Merge merges the tablets overlapping (start, end] into one tablet.
func (c *Client) Merge(ctx context.Context, tableName string, start, end tablet.Row) error {
	ctx = c.opCtx(ctx, tableName)
	args := [][]byte{[]byte(tableName), rowArg(start), rowArg(end)}
	_, err := c.doLedgeredOperation(ctx, rpc.OpMerge, args, nil, tableName, true)
	return err
}

// DeleteRows deletes all rows in (start, end], merging away the emptied
// tablets.
func (c *Client) DeleteRows(ctx context.Context, tableName string, start, end tablet.Row) error {
	ctx = c.opCtx(ctx, tableName)
	args := [][]byte{[]byte(tableName), rowArg(start), rowArg(end)}
	_, err := c.doLedgeredOperation(ctx, rpc.OpDeleteRange, args, nil, tableName, true)
	return err
}

// CompactConfig tunes a compaction.
type CompactConfig struct {
	// StartRow and EndRow bound the tablets compacted; nil means
	// unbounded.
	StartRow tablet.Row
	EndRow   tablet.Row
	// Flush flushes in-memory data first so it participates in the
	// compaction.
	Flush bool
	// Wait blocks until the compaction completes.
	Wait bool
}

// Compact compacts the table's stored data over a row range.
func (c *Client) Compact(ctx context.Context, tableName string, cfg CompactConfig) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}
	if cfg.Flush {
		if err := c.Flush(ctx, tableName, cfg.StartRow, cfg.EndRow, true); err != nil {
			return err
		}
	}
	args := [][]byte{[]byte(tableID), rowArg(cfg.StartRow), rowArg(cfg.EndRow)}
	_, err = c.doLedgeredOperation(ctx, rpc.OpCompact, args, nil, tableName, cfg.Wait)
	return err
}

// CancelCompaction cancels a running user compaction of the table.
func (c *Client) CancelCompaction(ctx context.Context, tableName string) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}
	args := [][]byte{[]byte(tableID)}
	_, err = c.doLedgeredOperation(ctx, rpc.OpCancelCompact, args, nil, tableName, true)
	return err
}

// Online brings a table online. With wait set it blocks until every
// tablet has a current location. A table already recorded online skips
// the ledgered operation but still honors wait.
func (c *Client) Online(ctx context.Context, tableName string, wait bool) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}
	state, err := c.cc.TableState(ctx, tableID, tableName)
	if err != nil {
		return err
	}
	if state == tablet.TableStateOnline {
		// Skipping the ledgered operation matters: taking a table
		// online otherwise synchronizes on the table lock even when
		// there is nothing to do. The state flag alone does not mean
		// every tablet is hosted, so a requested wait still runs.
		if !wait {
			return nil
		}
		return c.waitForStateTransition(ctx, tableID, tableName, tablet.TableStateOnline)
	}
	args := [][]byte{[]byte(tableID)}
	if _, err := c.doLedgeredOperation(ctx, rpc.OpOnline, args, nil, tableName, true); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return c.waitForStateTransition(ctx, tableID, tableName, tablet.TableStateOnline)
}

// Offline takes a table offline. With wait set it blocks until no
// tablet has a location.
func (c *Client) Offline(ctx context.Context, tableName string, wait bool) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}
	args := [][]byte{[]byte(tableID)}
	if _, err := c.doLedgeredOperation(ctx, rpc.OpOffline, args, nil, tableName, true); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return c.waitForStateTransition(ctx, tableID, tableName, tablet.TableStateOffline)
}

// IsOnline reports whether the table is recorded online.
func (c *Client) IsOnline(ctx context.Context, tableName string) (bool, error) {
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return false, err
	}
	state, err := c.cc.TableState(ctx, tableID, tableName)
	if err != nil {
		return false, err
	}
	return state == tablet.TableStateOnline, nil
}

// Flush flushes the table's in-memory data over a row range. With wait
// set it blocks until the flush has been applied everywhere.
func (c *Client) Flush(ctx context.Context, tableName string, start, end tablet.Row, wait bool) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}

	var flushID int64
	initiated := false
	for r := retry.StartWithCtx(ctx, ledgerRetryOptions()); !initiated && r.Next(); {
		flushID, err = c.cc.ControlPlane().InitiateFlush(ctx, tableID)
		if err == nil {
			initiated = true
		} else if !retryableLedgerErr(err) {
			return translateOpError(err, tableName)
		}
	}
	if !initiated {
		return errors.CombineErrors(ctx.Err(), errors.Newf("flush of table %s not initiated", tableName))
	}

	maxLoops := int64(1)
	if wait {
		maxLoops = math.MaxInt64
	}
	for r := retry.StartWithCtx(ctx, ledgerRetryOptions()); r.Next(); {
		err := c.cc.ControlPlane().WaitForFlush(ctx, tableID, start, end, flushID, maxLoops)
		if err == nil {
			return nil
		}
		if !retryableLedgerErr(err) {
			return translateOpError(err, tableName)
		}
	}
	return ctx.Err()
}

// Export writes a table's metadata and file manifest to exportDir so it
// can be imported into another cluster. The table must be offline and
// stay offline until the exported files are copied.
func (c *Client) Export(ctx context.Context, tableName, exportDir string) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}
	state, err := c.cc.TableState(ctx, tableID, tableName)
	if err != nil {
		return err
	}
	if state != tablet.TableStateOffline {
		return errors.Newf("table %s must be offline to export", tableName)
	}
	args := [][]byte{[]byte(tableName), []byte(exportDir)}
	_, err = c.doLedgeredOperation(ctx, rpc.OpExport, args, nil, tableName, true)
	return err
}

// Import creates a new table from a previously exported one.
func (c *Client) Import(ctx context.Context, tableName, importDir string) error {
	ctx = c.opCtx(ctx, tableName)
	if err := client.ValidateTableName(tableName); err != nil {
		return err
	}
	args := [][]byte{[]byte(tableName), []byte(importDir)}
	_, err := c.doLedgeredOperation(ctx, rpc.OpImport, args, nil, tableName, true)
	return err
}

// BulkImport imports the sorted files under dir into an existing table,
// moving files that could not be imported to failureDir. A concurrent
// merge surfaces as MergeConflictError; the import can then simply be
// retried.
func (c *Client) BulkImport(ctx context.Context, tableName, dir, failureDir string, setTime bool) error {
	ctx = c.opCtx(ctx, tableName)
	st := "false"
	if setTime {
		st = "true"
	}
	args := [][]byte{[]byte(tableName), []byte(dir), []byte(failureDir), []byte(st)}
	_, err := c.doLedgeredOperation(ctx, rpc.OpBulkImport, args, nil, tableName, true)
	return err
}

// ListSplits returns the table's current split rows in sorted order.
func (c *Client) ListSplits(ctx context.Context, tableName string) ([]tablet.Row, error) {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if err := c.cc.RequireTableExists(ctx, tableID, tableName); err != nil {
		return nil, err
	}
	for {
		tms, err := c.cc.Meta().Tablets(ctx, tableID, nil, nil, rpc.MetaFieldPrevRow)
		if err != nil {
			if errors.Is(err, rpc.ErrTabletDeleted) {
				if err := c.cc.RequireNotDeleted(ctx, tableID, tableName); err != nil {
					return nil, err
				}
				if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}
		splits := make([]tablet.Row, 0, len(tms))
		for i := range tms {
			if end := tms[i].Extent.EndRow; end != nil {
				splits = append(splits, end.Clone())
			}
		}
		return splits, nil
	}
}

// ListSplitsMax returns at most maxSplits of the table's split rows,
// sampled evenly across the full set.
func (c *Client) ListSplitsMax(ctx context.Context, tableName string, maxSplits int) ([]tablet.Row, error) {
	if maxSplits < 1 {
		return nil, errors.Newf("maxSplits must be positive, got %d", maxSplits)
	}
	endRows, err := c.ListSplits(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(endRows) <= maxSplits {
		return endRows, nil
	}
	// Walk the splits accumulating fractional steps; each time the
	// accumulator crosses one, the current split is taken.
	step := float64(maxSplits+1) / float64(len(endRows))
	var pos float64
	subset := make([]tablet.Row, 0, maxSplits)
	for i := 0; i < len(endRows) && len(subset) < maxSplits; i++ {
		pos += step
		for pos > 1 && len(subset) < maxSplits {
			subset = append(subset, endRows[i])
			pos -= 1
		}
	}
	return subset, nil
}

// List returns all table names, sorted.
func (c *Client) List(ctx context.Context) ([]string, error) {
	c.cc.ClearTableListCache()
	m, err := c.cc.TableNameMap(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a table exists. The reserved system tables
// always exist.
func (c *Client) Exists(ctx context.Context, tableName string) (bool, error) {
	if tableName == base.MetadataTableName || tableName == base.RootTableName {
		return true, nil
	}
	_, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		var notFound *client.TableNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// TableIDMap returns the current name-to-id mapping.
func (c *Client) TableIDMap(ctx context.Context) (map[string]tablet.TableID, error) {
	c.cc.ClearTableListCache()
	return c.cc.TableNameMap(ctx)
}
