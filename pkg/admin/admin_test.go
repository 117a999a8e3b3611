package admin

import (
	"context"
	"testing"
	"time"

	"github.com/nstruharova/accumulo/pkg/base"
	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/stretchr/testify/require"
)

func row(s string) tablet.Row {
	if s == "" {
		return nil
	}
	return tablet.Row(s)
}

func rows(ss ...string) []tablet.Row {
	out := make([]tablet.Row, len(ss))
	for i := range ss {
		out[i] = row(ss[i])
	}
	return out
}

func TestCreateListExists(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	require.NoError(t, c.Create(ctx, "quotes", CreateConfig{}))

	names, err := c.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"quotes", "trades"}, names)

	ok, err := c.Exists(ctx, "trades")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = c.Exists(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = c.Exists(ctx, base.MetadataTableName)
	require.NoError(t, err)
	require.True(t, ok)

	m, err := c.TableIDMap(ctx)
	require.NoError(t, err)
	require.Len(t, m, 2)
}

func TestCreateWithSplitsAndProps(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)

	cfg := CreateConfig{
		SplitRows: rows("m", "c", "t"),
		Props:     map[string]string{"table.file.compress.type": "snappy"},
		TimeType:  TimeTypeLogical,
	}
	require.NoError(t, c.Create(ctx, "trades", cfg))

	id, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)
	require.Equal(t, rows("c", "m", "t"), cluster.SplitRows(id))
	require.Equal(t, "snappy", cluster.TableProps(id)["table.file.compress.type"])
}

func TestCreateOffline(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{Offline: true}))
	online, err := c.IsOnline(ctx, "trades")
	require.NoError(t, err)
	require.False(t, online)
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	var exists *client.TableExistsError
	require.ErrorAs(t, c.Create(ctx, "trades", CreateConfig{}), &exists)
	require.Equal(t, "trades", exists.Name)
}

func TestCreateInvalidName(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.Error(t, c.Create(ctx, "bad name", CreateConfig{}))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	require.NoError(t, c.Delete(ctx, "trades"))

	ok, err := c.Exists(ctx, "trades")
	require.NoError(t, err)
	require.False(t, ok)

	var notFound *client.TableNotFoundError
	require.ErrorAs(t, c.Delete(ctx, "trades"), &notFound)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	require.NoError(t, c.Create(ctx, "quotes", CreateConfig{}))

	require.NoError(t, c.Rename(ctx, "trades", "fills"))
	ok, err := c.Exists(ctx, "fills")
	require.NoError(t, err)
	require.True(t, ok)

	var exists *client.TableExistsError
	require.ErrorAs(t, c.Rename(ctx, "fills", "quotes"), &exists)
}

func TestClone(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("g", "p")}))
	srcID, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)
	cluster.SetTableProp(srcID, "table.split.threshold", "1G")
	cluster.SetTableProp(srcID, "table.file.max", "15")

	cfg := CloneConfig{
		Flush:          true,
		KeepOffline:    true,
		PropsToSet:     map[string]string{"table.file.max": "30"},
		PropsToExclude: []string{"table.split.threshold"},
	}
	require.NoError(t, c.Clone(ctx, "trades", "trades_copy", cfg))

	cloneID, err := c.cc.TableNameToID(ctx, "trades_copy")
	require.NoError(t, err)
	require.Equal(t, rows("g", "p"), cluster.SplitRows(cloneID))
	props := cluster.TableProps(cloneID)
	require.Equal(t, "30", props["table.file.max"])
	require.NotContains(t, props, "table.split.threshold")

	online, err := c.IsOnline(ctx, "trades_copy")
	require.NoError(t, err)
	require.False(t, online)

	// The flush-first option flushed the source.
	require.Equal(t, int64(1), cluster.FlushCount(srcID))
}

func TestCloneConflictingProps(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	err := c.Clone(ctx, "trades", "trades_copy", CloneConfig{
		PropsToSet:     map[string]string{"table.file.max": "30"},
		PropsToExclude: []string{"table.file.max"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "both set and excluded")
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("c", "g", "m", "t")}))
	id, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)

	require.NoError(t, c.Merge(ctx, "trades", row("c"), row("m")))
	require.Equal(t, rows("c", "m", "t"), cluster.SplitRows(id))

	// Unbounded merge collapses to a single tablet.
	require.NoError(t, c.Merge(ctx, "trades", nil, nil))
	require.Empty(t, cluster.SplitRows(id))
}

func TestDeleteRows(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("c", "g", "m")}))
	id, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)

	require.NoError(t, c.DeleteRows(ctx, "trades", row("c"), row("m")))
	require.Equal(t, rows("c", "m"), cluster.SplitRows(id))
}

func TestCompactAndCancel(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	id, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)

	require.NoError(t, c.Compact(ctx, "trades", CompactConfig{
		StartRow: row("a"), EndRow: row("m"), Flush: true, Wait: true,
	}))
	require.Equal(t, int64(1), cluster.FlushCount(id))
	require.NoError(t, c.CancelCompaction(ctx, "trades"))

	var notFound *client.TableNotFoundError
	require.ErrorAs(t, c.Compact(ctx, "ghost", CompactConfig{}), &notFound)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))
	id, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)

	require.NoError(t, c.Flush(ctx, "trades", nil, nil, true))
	require.NoError(t, c.Flush(ctx, "trades", row("a"), row("m"), false))
	require.Equal(t, int64(2), cluster.FlushCount(id))

	var notFound *client.TableNotFoundError
	require.ErrorAs(t, c.Flush(ctx, "ghost", nil, nil, true), &notFound)
}

func TestExportRequiresOffline(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))

	err := c.Export(ctx, "trades", "/tmp/export")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be offline")

	require.NoError(t, c.Offline(ctx, "trades", true))
	require.NoError(t, c.Export(ctx, "trades", "/tmp/export"))
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Import(ctx, "restored", "/tmp/export"))
	ok, err := c.Exists(ctx, "restored")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBulkImportMergeConflict(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{}))

	cluster.QueueWaitErr(&rpc.TableOpError{Type: rpc.OpErrBulkConcurrentMerge})
	var conflict *client.MergeConflictError
	err := c.BulkImport(ctx, "trades", "/tmp/bulk", "/tmp/bulk_fail", false)
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "trades", conflict.Name)

	// A retry goes through.
	require.NoError(t, c.BulkImport(ctx, "trades", "/tmp/bulk", "/tmp/bulk_fail", false))
}

func TestListSplits(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("c", "g", "m")}))

	splits, err := c.ListSplits(ctx, "trades")
	require.NoError(t, err)
	require.Equal(t, rows("c", "g", "m"), splits)

	var notFound *client.TableNotFoundError
	_, err = c.ListSplits(ctx, "ghost")
	require.ErrorAs(t, err, &notFound)
}

func TestListSplitsRetriesDeletedTablet(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("c")}))

	cluster.QueueScanErr(rpc.ErrTabletDeleted)
	splits, err := c.ListSplits(ctx, "trades")
	require.NoError(t, err)
	require.Equal(t, rows("c"), splits)
}

func TestListSplitsMaxSampling(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{
		SplitRows: rows("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
	}))

	// Fewer existing splits than the cap returns them all.
	all, err := c.ListSplitsMax(ctx, "trades", 20)
	require.NoError(t, err)
	require.Len(t, all, 10)

	subset, err := c.ListSplitsMax(ctx, "trades", 4)
	require.NoError(t, err)
	require.Equal(t, rows("2", "4", "6", "8"), subset)

	_, err = c.ListSplitsMax(ctx, "trades", 0)
	require.Error(t, err)
}

func TestIsOnlineAndStateChanges(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("g")}))

	online, err := c.IsOnline(ctx, "trades")
	require.NoError(t, err)
	require.True(t, online)

	require.NoError(t, c.Offline(ctx, "trades", true))
	online, err = c.IsOnline(ctx, "trades")
	require.NoError(t, err)
	require.False(t, online)

	require.NoError(t, c.Online(ctx, "trades", true))
	online, err = c.IsOnline(ctx, "trades")
	require.NoError(t, err)
	require.True(t, online)

	// Bringing an online table online again skips the ledger entirely.
	finishes := cluster.FinishCalls()
	require.NoError(t, c.Online(ctx, "trades", false))
	require.Equal(t, finishes, cluster.FinishCalls())
}

func TestOnlineAlreadyOnlineStillWaits(t *testing.T) {
	ctx := context.Background()
	c, cluster := newTestClient(t)
	require.NoError(t, c.Create(ctx, "trades", CreateConfig{SplitRows: rows("g")}))
	id, err := c.cc.TableNameToID(ctx, "trades")
	require.NoError(t, err)

	// The state flag says online but one tablet is not hosted yet; a
	// waiting Online call must block until it is.
	cluster.ClearLocation(id, row("a"))
	done := make(chan error, 1)
	go func() { done <- c.Online(ctx, "trades", true) }()
	select {
	case err := <-done:
		t.Fatalf("online returned %v with an unhosted tablet", err)
	case <-time.After(300 * time.Millisecond):
	}

	cluster.SetTableState(id, tablet.TableStateOnline)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("online wait did not converge")
	}
}
