package rpctest

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
)

var _ rpc.MetaStore = (*Cluster)(nil)

// Tablets implements rpc.MetaStore.
func (c *Cluster) Tablets(
	ctx context.Context, id tablet.TableID, startRow, lastRow tablet.Row,
	fields ...rpc.MetaField,
) ([]tablet.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.onScan != nil {
		c.mu.onScan(id, startRow, lastRow)
	}
	if err := popErr(&c.mu.scanErrs); err != nil {
		return nil, err
	}
	t, ok := c.mu.byID[id]
	if !ok {
		return nil, nil
	}
	hidden := c.mu.hiddenEnd[id]
	wantLoc := false
	for _, f := range fields {
		if f == rpc.MetaFieldLocation {
			wantLoc = true
		}
	}
	var out []tablet.Metadata
	for _, tm := range t.tablets {
		end := tm.Extent.EndRow
		if hidden != nil && end != nil && end.Equal(hidden) {
			continue
		}
		if startRow != nil && end != nil && end.Compare(startRow) < 0 {
			continue
		}
		if lastRow != nil && (end == nil || end.Compare(lastRow) > 0) {
			continue
		}
		rec := tablet.Metadata{Extent: tm.Extent}
		if wantLoc && tm.Loc != nil {
			l := *tm.Loc
			rec.Loc = &l
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ rpc.Dialer = (*Cluster)(nil)

// Dial implements rpc.Dialer.
func (c *Cluster) Dial(ctx context.Context, addr string) (rpc.TabletServer, error) {
	return &tabletServer{c: c, addr: addr}, nil
}

type tabletServer struct {
	c    *Cluster
	addr string
}

// SplitTablet implements rpc.TabletServer.
func (s *tabletServer) SplitTablet(
	ctx context.Context, extent tablet.KeyExtent, splitRow tablet.Row,
) error {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := popErr(&c.mu.splitErrs); err != nil {
		return err
	}
	if c.mu.onSplit != nil {
		if err := c.mu.onSplit(s.addr, extent, splitRow); err != nil {
			return err
		}
	}
	t, ok := c.mu.byID[extent.Table]
	if !ok {
		return &rpc.NotServingError{Extent: extent}
	}
	for i, tm := range t.tablets {
		if !tm.Extent.Equal(extent) {
			continue
		}
		if tm.Loc == nil || tm.Loc.Server != s.addr {
			return &rpc.NotServingError{Extent: extent}
		}
		if !extent.ContainsRow(splitRow) {
			return errors.Newf("split row %s outside extent %s", splitRow, extent)
		}
		if extent.EndRow != nil && splitRow.Compare(extent.EndRow) == 0 {
			// Splitting at the end row is a no-op.
			return nil
		}
		low := c.newTablet(extent.Table, extent.PrevEndRow, splitRow.Clone(), true)
		high := c.newTablet(extent.Table, splitRow.Clone(), extent.EndRow, true)
		t.tablets = append(t.tablets[:i], append([]*tablet.Metadata{low, high}, t.tablets[i+1:]...)...)
		return nil
	}
	return &rpc.NotServingError{Extent: extent}
}
