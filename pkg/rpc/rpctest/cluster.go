// Package rpctest provides an in-memory cluster implementing the rpc
// interfaces. It backs package tests and the demo CLI; operations are
// applied synchronously and deterministically, with hooks for injecting
// failures.
package rpctest

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/syncutil"
)

// pendingOp is a ledgered operation between Begin and Finish.
type pendingOp struct {
	kind     rpc.OperationKind
	args     [][]byte
	opts     map[string]string
	executed bool
	done     bool
	result   string
}

// table is one in-memory table.
type table struct {
	id      tablet.TableID
	name    string
	state   tablet.TableState
	props   map[string]string
	tablets []*tablet.Metadata // sorted by extent
	flushes int64
}

// Cluster is an in-memory cluster. The zero value is not usable; use
// NewCluster.
type Cluster struct {
	servers []string

	mu struct {
		syncutil.Mutex
		nextTableID int
		nextOpID    rpc.OperationID
		nextFlushID int64
		byName      map[string]*table
		byID        map[tablet.TableID]*table
		ops         map[rpc.OperationID]*pendingOp

		// Fault injection. Each queue is consumed one error per call;
		// a nil Cluster-level hook or an empty queue means success.
		beginErrs  []error
		execErrs   []error
		waitErrs   []error
		finishErrs []error
		scanErrs   []error
		splitErrs  []error

		onSplit func(server string, extent tablet.KeyExtent, row tablet.Row) error
		onScan  func(id tablet.TableID, startRow, lastRow tablet.Row)

		// hiddenEnd suppresses one tablet per table from metadata
		// scans, keyed by its end row, leaving a hole.
		hiddenEnd map[tablet.TableID]tablet.Row

		finishCalls int
		waitCalls   int
	}
}

// NewCluster returns a cluster with the given tablet server addresses,
// or a single default server when none are given.
func NewCluster(servers ...string) *Cluster {
	if len(servers) == 0 {
		servers = []string{"ts1:9997"}
	}
	c := &Cluster{servers: servers}
	c.mu.byName = make(map[string]*table)
	c.mu.byID = make(map[tablet.TableID]*table)
	c.mu.ops = make(map[rpc.OperationID]*pendingOp)
	return c
}

// QueueBeginErr makes the next BeginOperation call fail with err.
func (c *Cluster) QueueBeginErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.beginErrs = append(c.mu.beginErrs, err)
}

// QueueExecErr makes the next ExecuteOperation call fail with err.
func (c *Cluster) QueueExecErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.execErrs = append(c.mu.execErrs, err)
}

// QueueWaitErr makes the next WaitOperation call fail with err.
func (c *Cluster) QueueWaitErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.waitErrs = append(c.mu.waitErrs, err)
}

// QueueFinishErr makes the next FinishOperation call fail with err.
func (c *Cluster) QueueFinishErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.finishErrs = append(c.mu.finishErrs, err)
}

// QueueScanErr makes the next metadata scan fail with err.
func (c *Cluster) QueueScanErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.scanErrs = append(c.mu.scanErrs, err)
}

// QueueSplitErr makes the next SplitTablet call fail with err.
func (c *Cluster) QueueSplitErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.splitErrs = append(c.mu.splitErrs, err)
}

// OnSplit installs a hook consulted before every SplitTablet call. A
// non-nil return fails the call.
func (c *Cluster) OnSplit(fn func(server string, extent tablet.KeyExtent, row tablet.Row) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.onSplit = fn
}

// OnScan installs a hook observing the bounds of every metadata scan.
func (c *Cluster) OnScan(fn func(id tablet.TableID, startRow, lastRow tablet.Row)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.onScan = fn
}

// HideTablet suppresses the tablet with the given end row from metadata
// scans, simulating a hole. Unhide with a nil end row.
func (c *Cluster) HideTablet(id tablet.TableID, endRow tablet.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.hiddenEnd == nil {
		c.mu.hiddenEnd = make(map[tablet.TableID]tablet.Row)
	}
	if endRow == nil {
		delete(c.mu.hiddenEnd, id)
		return
	}
	c.mu.hiddenEnd[id] = endRow.Clone()
}

// FinishCalls returns how many times FinishOperation was called.
func (c *Cluster) FinishCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.finishCalls
}

// WaitCalls returns how many times WaitOperation was called.
func (c *Cluster) WaitCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.waitCalls
}

func popErr(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

// serverFor deterministically assigns a server to an extent.
func (c *Cluster) serverFor(e tablet.KeyExtent) string {
	h := 0
	for _, b := range e.EndRow {
		h = h*31 + int(b)
	}
	if h < 0 {
		h = -h
	}
	return c.servers[h%len(c.servers)]
}

// newLocation returns a current location on the assigned server.
func (c *Cluster) newLocation(e tablet.KeyExtent) *tablet.Location {
	return &tablet.Location{
		Server:  c.serverFor(e),
		Session: "1",
		Kind:    tablet.LocationCurrent,
	}
}

// makeTablets builds the sorted tablet records for a table with the
// given split rows, assigning current locations when online.
func (c *Cluster) makeTablets(id tablet.TableID, splits []tablet.Row, online bool) []*tablet.Metadata {
	var prev tablet.Row
	out := make([]*tablet.Metadata, 0, len(splits)+1)
	for _, s := range splits {
		out = append(out, c.newTablet(id, prev, s.Clone(), online))
		prev = s.Clone()
	}
	out = append(out, c.newTablet(id, prev, nil, online))
	return out
}

func (c *Cluster) newTablet(id tablet.TableID, prev, end tablet.Row, online bool) *tablet.Metadata {
	e := tablet.KeyExtent{Table: id, PrevEndRow: prev, EndRow: end}
	tm := &tablet.Metadata{Extent: e}
	if online {
		tm.Loc = c.newLocation(e)
	}
	return tm
}

// CreateTable creates an online table with the given split rows, outside
// any ledgered operation. Intended for test setup.
func (c *Cluster) CreateTable(name string, splits ...tablet.Row) tablet.TableID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createTableLocked(name, splits).id
}

func (c *Cluster) createTableLocked(name string, splits []tablet.Row) *table {
	splits = append(splits[:0:0], splits...)
	sort.Slice(splits, func(i, j int) bool { return splits[i].Compare(splits[j]) < 0 })
	c.mu.nextTableID++
	id := tablet.TableID(strconv.Itoa(c.mu.nextTableID))
	t := &table{
		id:      id,
		name:    name,
		state:   tablet.TableStateOnline,
		props:   make(map[string]string),
		tablets: c.makeTablets(id, splits, true),
	}
	c.mu.byName[name] = t
	c.mu.byID[id] = t
	return t
}

// SetTableState overrides a table's lifecycle state. Intended for test
// setup.
func (c *Cluster) SetTableState(id tablet.TableID, state tablet.TableState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.mu.byID[id]; ok {
		c.setStateLocked(t, state)
	}
}

func (c *Cluster) setStateLocked(t *table, state tablet.TableState) {
	t.state = state
	for _, tm := range t.tablets {
		if state == tablet.TableStateOnline {
			tm.Loc = c.newLocation(tm.Extent)
		} else {
			tm.Loc = nil
		}
	}
}

// ClearLocation drops the recorded location of the tablet containing
// row, simulating a tablet in transition. Intended for test setup.
func (c *Cluster) ClearLocation(id tablet.TableID, row tablet.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.mu.byID[id]
	if !ok {
		return
	}
	for _, tm := range t.tablets {
		if tm.Extent.ContainsRow(row) {
			tm.Loc = nil
			return
		}
	}
}

// SplitRows returns the current split rows of a table. Intended for test
// assertions.
func (c *Cluster) SplitRows(id tablet.TableID) []tablet.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.mu.byID[id]
	if !ok {
		return nil
	}
	var out []tablet.Row
	for _, tm := range t.tablets {
		if tm.Extent.EndRow != nil {
			out = append(out, tm.Extent.EndRow.Clone())
		}
	}
	return out
}

// TableProps returns a copy of the table's properties.
func (c *Cluster) TableProps(id tablet.TableID) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.mu.byID[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(t.props))
	for k, v := range t.props {
		out[k] = v
	}
	return out
}

// SetTableProp sets one property on a table. Intended for test setup.
func (c *Cluster) SetTableProp(id tablet.TableID, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.mu.byID[id]; ok {
		t.props[key] = value
	}
}

// FlushCount returns how many flushes were initiated on a table.
func (c *Cluster) FlushCount(id tablet.TableID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.mu.byID[id]; ok {
		return t.flushes
	}
	return 0
}

var _ rpc.ControlPlane = (*Cluster)(nil)

// BeginOperation implements rpc.ControlPlane.
func (c *Cluster) BeginOperation(ctx context.Context) (rpc.OperationID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := popErr(&c.mu.beginErrs); err != nil {
		return 0, err
	}
	c.mu.nextOpID++
	id := c.mu.nextOpID
	c.mu.ops[id] = &pendingOp{}
	return id, nil
}

// ExecuteOperation implements rpc.ControlPlane.
func (c *Cluster) ExecuteOperation(
	ctx context.Context, id rpc.OperationID, kind rpc.OperationKind,
	args [][]byte, opts map[string]string, autoCleanup bool,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := popErr(&c.mu.execErrs); err != nil {
		return err
	}
	op, ok := c.mu.ops[id]
	if !ok {
		return errors.Newf("unknown operation id %d", id)
	}
	op.kind = kind
	op.args = args
	op.opts = opts
	op.executed = true
	if autoCleanup {
		// Fire and forget: apply immediately, no Finish expected.
		_, err := c.applyLocked(op)
		delete(c.mu.ops, id)
		return err
	}
	return nil
}

// WaitOperation implements rpc.ControlPlane.
func (c *Cluster) WaitOperation(ctx context.Context, id rpc.OperationID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.waitCalls++
	if err := popErr(&c.mu.waitErrs); err != nil {
		return "", err
	}
	op, ok := c.mu.ops[id]
	if !ok {
		return "", errors.Newf("unknown operation id %d", id)
	}
	if !op.executed {
		return "", errors.Newf("operation %d waited on before execution", id)
	}
	if !op.done {
		res, err := c.applyLocked(op)
		if err != nil {
			return "", err
		}
		op.done = true
		op.result = res
	}
	return op.result, nil
}

// FinishOperation implements rpc.ControlPlane.
func (c *Cluster) FinishOperation(ctx context.Context, id rpc.OperationID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.finishCalls++
	if err := popErr(&c.mu.finishErrs); err != nil {
		return err
	}
	delete(c.mu.ops, id)
	return nil
}

// GetTableState implements rpc.ControlPlane.
func (c *Cluster) GetTableState(ctx context.Context, id tablet.TableID) (tablet.TableState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.mu.byID[id]
	if !ok {
		return tablet.TableStateUnknown, &rpc.TableOpError{
			Type: rpc.OpErrNotFound, TableID: id,
			Description: "table not found",
		}
	}
	return t.state, nil
}

// TableNameMap implements rpc.ControlPlane.
func (c *Cluster) TableNameMap(ctx context.Context) (map[string]tablet.TableID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]tablet.TableID, len(c.mu.byName))
	for name, t := range c.mu.byName {
		out[name] = t.id
	}
	return out, nil
}

// InitiateFlush implements rpc.ControlPlane.
func (c *Cluster) InitiateFlush(ctx context.Context, id tablet.TableID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.mu.byID[id]
	if !ok {
		return 0, &rpc.TableOpError{
			Type: rpc.OpErrNotFound, TableID: id,
			Description: "table not found",
		}
	}
	t.flushes++
	c.mu.nextFlushID++
	return c.mu.nextFlushID, nil
}

// WaitForFlush implements rpc.ControlPlane.
func (c *Cluster) WaitForFlush(
	ctx context.Context, id tablet.TableID, start, end tablet.Row,
	flushID int64, maxLoops int64,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mu.byID[id]; !ok {
		return &rpc.TableOpError{
			Type: rpc.OpErrNotFound, TableID: id,
			Description: "table not found",
		}
	}
	return nil
}

func (c *Cluster) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("cluster with %d tables on %d servers", len(c.mu.byID), len(c.servers))
}
