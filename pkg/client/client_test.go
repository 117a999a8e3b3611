package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/nstruharova/accumulo/pkg/rpc/rpctest"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*Context, *rpctest.Cluster) {
	t.Helper()
	c := rpctest.NewCluster()
	return NewContext(DefaultConfig(), c, c, c), c
}

func TestTableNameToID(t *testing.T) {
	ctx := context.Background()
	cc, cluster := newTestContext(t)
	id := cluster.CreateTable("t1")

	got, err := cc.TableNameToID(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = cc.TableNameToID(ctx, "nope")
	var notFound *TableNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "nope", notFound.Name)
}

func TestTableNameToIDRefreshesOnMiss(t *testing.T) {
	ctx := context.Background()
	cc, cluster := newTestContext(t)
	cluster.CreateTable("t1")

	// Warm the cache, then create a table behind its back. Resolution
	// must refresh rather than fail.
	_, err := cc.TableNameToID(ctx, "t1")
	require.NoError(t, err)
	id2 := cluster.CreateTable("t2")

	got, err := cc.TableNameToID(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, id2, got)
}

func TestClearTableListCache(t *testing.T) {
	ctx := context.Background()
	cc, cluster := newTestContext(t)
	cluster.CreateTable("t1")

	m, err := cc.TableNameMap(ctx)
	require.NoError(t, err)
	require.Len(t, m, 1)

	cluster.CreateTable("t2")
	// The stale cache still answers until cleared.
	m, err = cc.TableNameMap(ctx)
	require.NoError(t, err)
	require.Len(t, m, 1)

	cc.ClearTableListCache()
	m, err = cc.TableNameMap(ctx)
	require.NoError(t, err)
	require.Len(t, m, 2)
}

func TestRequireNotOffline(t *testing.T) {
	ctx := context.Background()
	cc, cluster := newTestContext(t)
	id := cluster.CreateTable("t1")

	require.NoError(t, cc.RequireNotOffline(ctx, id, "t1"))

	cluster.SetTableState(id, tablet.TableStateOffline)
	var offline *TableOfflineError
	require.ErrorAs(t, cc.RequireNotOffline(ctx, id, "t1"), &offline)

	cluster.SetTableState(id, tablet.TableStateDeleting)
	var notFound *TableNotFoundError
	require.ErrorAs(t, cc.RequireNotOffline(ctx, id, "t1"), &notFound)
	require.ErrorAs(t, cc.RequireNotDeleted(ctx, id, "t1"), &notFound)
}

func TestRequireTableExists(t *testing.T) {
	ctx := context.Background()
	cc, cluster := newTestContext(t)
	id := cluster.CreateTable("t1")

	require.NoError(t, cc.RequireTableExists(ctx, id, "t1"))

	var notFound *TableNotFoundError
	err := cc.RequireTableExists(ctx, tablet.TableID("999"), "ghost")
	require.ErrorAs(t, err, &notFound)
}

func TestLocatorForIsShared(t *testing.T) {
	cc, cluster := newTestContext(t)
	id := cluster.CreateTable("t1")
	require.Same(t, cc.LocatorFor(id), cc.LocatorFor(id))
	require.NotSame(t, cc.LocatorFor(id), cc.LocatorFor(tablet.TableID("other")))
}

func TestAnnotateCtxCarriesSession(t *testing.T) {
	cc, _ := newTestContext(t)
	ctx := cc.AnnotateCtx(context.Background())
	tags := logtags.FromContext(ctx)
	require.NotNil(t, tags)
	require.Contains(t, tags.String(), "session="+cc.SessionID().String()[:8])
}

func TestValidateTableName(t *testing.T) {
	require.NoError(t, ValidateTableName("trades"))
	require.NoError(t, ValidateTableName("ns1.trades"))
	require.Error(t, ValidateTableName(""))
	require.Error(t, ValidateTableName("a.b.c"))
	require.Error(t, ValidateTableName("bad name"))
	require.Equal(t, "ns1", NamespaceOf("ns1.trades"))
	require.Equal(t, "", NamespaceOf("trades"))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"control_plane_addr: cp1:9999\nsplit_workers: 4\nretry_max_backoff: 5s\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "cp1:9999", cfg.ControlPlaneAddr)
	require.Equal(t, 4, cfg.SplitWorkers)
	require.Equal(t, Duration(5*time.Second), cfg.RetryMaxBackoff)
	// Unset fields keep defaults.
	require.Equal(t, DefaultConfig().RetryInitialBackoff, cfg.RetryInitialBackoff)

	opts := cfg.RetryOptions()
	require.Equal(t, 5*time.Second, opts.MaxBackoff)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
