package rpctest

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/base"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
)

// Operation argument layout, shared with the client:
//
//	OpCreate      name, split...          opts: initial properties
//	OpDelete      name
//	OpRename      oldName, newName
//	OpMerge       name, start, end        empty row means unbounded
//	OpDeleteRange name, start, end
//	OpClone       srcID, newName          opts: properties, "!" excludes
//	OpCompact     id, start, end
//	OpCancelCompact id
//	OpOnline      id
//	OpOffline     id
//	OpImport      name, importDir
//	OpExport      name, exportDir
//	OpBulkImport  name, dir, failDir, setTime

func argRow(b []byte) tablet.Row {
	if len(b) == 0 {
		return nil
	}
	return tablet.Row(b).Clone()
}

func (c *Cluster) applyLocked(op *pendingOp) (string, error) {
	switch op.kind {
	case rpc.OpCreate:
		return c.applyCreateLocked(op)
	case rpc.OpDelete:
		return "", c.applyDeleteLocked(op)
	case rpc.OpRename:
		return "", c.applyRenameLocked(op)
	case rpc.OpMerge, rpc.OpDeleteRange:
		return "", c.applyMergeLocked(op)
	case rpc.OpClone:
		return c.applyCloneLocked(op)
	case rpc.OpCompact, rpc.OpCancelCompact:
		_, err := c.tableByIDLocked(tablet.TableID(op.args[0]))
		return "", err
	case rpc.OpOnline, rpc.OpOffline:
		return "", c.applyStateChangeLocked(op)
	case rpc.OpImport:
		return c.applyImportLocked(op)
	case rpc.OpExport:
		_, err := c.tableByNameLocked(string(op.args[0]))
		return "", err
	case rpc.OpBulkImport:
		_, err := c.tableByNameLocked(string(op.args[0]))
		return "", err
	default:
		return "", errors.Newf("unhandled operation kind %s", op.kind)
	}
}

func (c *Cluster) tableByNameLocked(name string) (*table, error) {
	t, ok := c.mu.byName[name]
	if !ok {
		return nil, &rpc.TableOpError{
			Type: rpc.OpErrNotFound, Name: name,
			Description: "table not found",
		}
	}
	return t, nil
}

func (c *Cluster) tableByIDLocked(id tablet.TableID) (*table, error) {
	t, ok := c.mu.byID[id]
	if !ok {
		return nil, &rpc.TableOpError{
			Type: rpc.OpErrNotFound, TableID: id,
			Description: "table not found",
		}
	}
	return t, nil
}

func (c *Cluster) applyCreateLocked(op *pendingOp) (string, error) {
	name := string(op.args[0])
	if _, ok := c.mu.byName[name]; ok {
		return "", &rpc.TableOpError{
			Type: rpc.OpErrExists, Name: name,
			Description: "table exists",
		}
	}
	var splits []tablet.Row
	for _, a := range op.args[1:] {
		splits = append(splits, argRow(a))
	}
	t := c.createTableLocked(name, splits)
	for k, v := range op.opts {
		switch k {
		case rpc.OptTimeType:
			// Timestamp discipline is server-side only; nothing to
			// record in this model.
		case rpc.OptInitialState:
			if v == rpc.InitialStateOffline {
				c.setStateLocked(t, tablet.TableStateOffline)
			}
		default:
			t.props[k] = v
		}
	}
	return string(t.id), nil
}

func (c *Cluster) applyDeleteLocked(op *pendingOp) error {
	t, err := c.tableByNameLocked(string(op.args[0]))
	if err != nil {
		return err
	}
	c.setStateLocked(t, tablet.TableStateDeleting)
	delete(c.mu.byName, t.name)
	delete(c.mu.byID, t.id)
	return nil
}

func (c *Cluster) applyRenameLocked(op *pendingOp) error {
	oldName, newName := string(op.args[0]), string(op.args[1])
	t, err := c.tableByNameLocked(oldName)
	if err != nil {
		return err
	}
	if _, ok := c.mu.byName[newName]; ok {
		return &rpc.TableOpError{
			Type: rpc.OpErrExists, Name: newName,
			Description: "table exists",
		}
	}
	delete(c.mu.byName, oldName)
	t.name = newName
	c.mu.byName[newName] = t
	return nil
}

// applyMergeLocked collapses the tablets overlapping the given range into
// one spanning tablet. Range deletion uses the same metadata effect.
func (c *Cluster) applyMergeLocked(op *pendingOp) error {
	t, err := c.tableByNameLocked(string(op.args[0]))
	if err != nil {
		return err
	}
	r := tablet.Range{Start: argRow(op.args[1]), End: argRow(op.args[2])}
	var merged []*tablet.Metadata
	var span *tablet.KeyExtent
	online := t.state == tablet.TableStateOnline
	for _, tm := range t.tablets {
		if tm.Extent.DataRange().Clip(r).IsEmpty() {
			if span != nil {
				merged = append(merged, c.newTablet(t.id, span.PrevEndRow, span.EndRow, online))
				span = nil
			}
			merged = append(merged, tm)
			continue
		}
		if span == nil {
			e := tm.Extent
			span = &e
		} else {
			span.EndRow = tm.Extent.EndRow
		}
	}
	if span != nil {
		merged = append(merged, c.newTablet(t.id, span.PrevEndRow, span.EndRow, online))
	}
	t.tablets = merged
	return nil
}

func (c *Cluster) applyCloneLocked(op *pendingOp) (string, error) {
	src, err := c.tableByIDLocked(tablet.TableID(op.args[0]))
	if err != nil {
		return "", err
	}
	newName := string(op.args[1])
	if _, ok := c.mu.byName[newName]; ok {
		return "", &rpc.TableOpError{
			Type: rpc.OpErrExists, Name: newName,
			Description: "table exists",
		}
	}
	var splits []tablet.Row
	for _, tm := range src.tablets {
		if tm.Extent.EndRow != nil {
			splits = append(splits, tm.Extent.EndRow.Clone())
		}
	}
	t := c.createTableLocked(newName, splits)
	if len(op.args) > 2 && string(op.args[2]) == "true" {
		c.setStateLocked(t, tablet.TableStateOffline)
	}
	for k, v := range src.props {
		t.props[k] = v
	}
	for k, v := range op.opts {
		if strings.HasPrefix(k, base.PropertyExcludePrefix) {
			delete(t.props, strings.TrimPrefix(k, base.PropertyExcludePrefix))
		} else {
			t.props[k] = v
		}
	}
	return string(t.id), nil
}

func (c *Cluster) applyStateChangeLocked(op *pendingOp) error {
	t, err := c.tableByIDLocked(tablet.TableID(op.args[0]))
	if err != nil {
		return err
	}
	if op.kind == rpc.OpOnline {
		c.setStateLocked(t, tablet.TableStateOnline)
	} else {
		c.setStateLocked(t, tablet.TableStateOffline)
	}
	return nil
}

func (c *Cluster) applyImportLocked(op *pendingOp) (string, error) {
	name := string(op.args[0])
	if _, ok := c.mu.byName[name]; ok {
		return "", &rpc.TableOpError{
			Type: rpc.OpErrExists, Name: name,
			Description: "table exists",
		}
	}
	t := c.createTableLocked(name, nil)
	return string(t.id), nil
}
