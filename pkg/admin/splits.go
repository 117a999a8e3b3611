package admin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/base"
	"github.com/nstruharova/accumulo/pkg/locator"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/log"
	"github.com/nstruharova/accumulo/pkg/util/syncutil"
	"github.com/nstruharova/accumulo/pkg/util/timeutil"
)

// splitPollInterval is how often the caller re-checks split batch
// completion and the failure slot.
const splitPollInterval = 100 * time.Millisecond

// sleepCtx blocks for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	var t timeutil.Timer
	defer t.Stop()
	t.Reset(d)
	select {
	case <-t.C:
		t.Read = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// workQueue is an unbounded FIFO task queue. Tasks may enqueue further
// tasks without blocking, so a fixed worker pool cannot deadlock on its
// own output.
type workQueue struct {
	mu     syncutil.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) enqueue(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, task)
	q.cond.Signal()
}

// next blocks for the next task, returning false once the queue is
// closed.
func (q *workQueue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	task := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return task, true
}

// close discards queued tasks and releases the workers.
func (q *workQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

// splitEnv is the shared state of one AddSplits batch.
type splitEnv struct {
	c       *Client
	ctx     context.Context
	tableID tablet.TableID
	name    string
	loc     *locator.Locator
	queue   *workQueue

	mu struct {
		syncutil.Mutex
		remaining int
		err       error
	}
}

// done marks n keys applied.
func (e *splitEnv) done(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mu.remaining -= n
}

// fail records the first failure; later failures are dropped.
func (e *splitEnv) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mu.err == nil {
		e.mu.err = err
	}
}

// failed reports whether a failure has been recorded.
func (e *splitEnv) failed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mu.err != nil
}

func (e *splitEnv) status() (remaining int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mu.remaining, e.mu.err
}

// splitTask applies a run of sorted split keys. Small runs are applied
// directly. Larger runs apply their middle key first, so the tablet
// splits in half, then hand each half to the pool; the two halves then
// land on disjoint tablets and proceed in parallel.
func (e *splitEnv) splitTask(keys []tablet.Row) func() {
	return func() {
		if e.failed() {
			// Another task already failed the batch; abandon this
			// subtree without touching the cluster.
			e.done(len(keys))
			return
		}
		if len(keys) <= 2 {
			for _, k := range keys {
				if err := e.c.applySplit(e.ctx, e, k); err != nil {
					e.fail(err)
					return
				}
				e.done(1)
			}
			return
		}
		mid := len(keys) / 2
		if err := e.c.applySplit(e.ctx, e, keys[mid]); err != nil {
			e.fail(err)
			return
		}
		e.done(1)
		e.queue.enqueue(e.splitTask(keys[:mid]))
		e.queue.enqueue(e.splitTask(keys[mid+1:]))
	}
}

// AddSplits adds split points to a table, creating new tablet
// boundaries. The keys are applied divide-and-conquer on a worker pool;
// the first failure aborts the batch and keys not yet applied are left
// unapplied.
func (c *Client) AddSplits(ctx context.Context, tableName string, splits []tablet.Row) error {
	ctx = c.opCtx(ctx, tableName)
	tableID, err := c.cc.TableNameToID(ctx, tableName)
	if err != nil {
		return err
	}
	keys := sortDedupeRows(splits)
	if len(keys) == 0 {
		return nil
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	env := &splitEnv{
		c:       c,
		ctx:     taskCtx,
		tableID: tableID,
		name:    tableName,
		loc:     c.cc.LocatorFor(tableID),
		queue:   newWorkQueue(),
	}
	env.mu.remaining = len(keys)

	workers := c.cc.Config().SplitWorkers
	if workers <= 0 {
		workers = base.DefaultSplitWorkers
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := env.queue.next()
				if !ok {
					return
				}
				task()
			}
		}()
	}
	defer wg.Wait()
	defer env.queue.close()
	env.queue.enqueue(env.splitTask(keys))

	for {
		remaining, envErr := env.status()
		if envErr != nil {
			cancel()
			return errors.Wrapf(envErr, "adding splits to table %s", tableName)
		}
		if remaining == 0 {
			return nil
		}
		if err := sleepCtx(ctx, splitPollInterval); err != nil {
			return err
		}
	}
}

// applySplit applies one split key, retrying through stale locations and
// transport failures until the split lands or a terminal failure occurs.
func (c *Client) applySplit(ctx context.Context, env *splitEnv, splitRow tablet.Row) error {
	// Counts consecutive attempts that found no live location; the
	// batch warns when a key looks stuck.
	locationFailures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		loc, err := env.loc.Locate(ctx, splitRow)
		if err != nil {
			return err
		}
		if loc == nil {
			if err := c.cc.RequireTableExists(ctx, env.tableID, env.name); err != nil {
				return err
			}
			if err := c.cc.RequireNotOffline(ctx, env.tableID, env.name); err != nil {
				return err
			}
			if err := sleepCtx(ctx, base.SplitRetryDelay); err != nil {
				return err
			}
			continue
		}
		if loc.Extent.EndRow != nil && loc.Extent.EndRow.Compare(splitRow) == 0 {
			// Already a tablet boundary.
			return nil
		}

		ts, err := c.cc.Dialer().Dial(ctx, loc.Server)
		if err != nil {
			env.loc.InvalidateServer(loc.Server)
			if err := sleepCtx(ctx, base.SplitRetryDelay); err != nil {
				return err
			}
			continue
		}
		err = ts.SplitTablet(ctx, loc.Extent, splitRow)
		if err == nil {
			// The extent no longer exists; its halves will be
			// rediscovered on the next lookup.
			env.loc.InvalidateExtent(loc.Extent)
			return nil
		}

		var notServing *rpc.NotServingError
		var secErr *rpc.SecurityError
		var srvErr *rpc.ServerError
		switch {
		case errors.As(err, &notServing):
			locationFailures++
			if locationFailures == 5 || locationFailures%50 == 0 {
				log.Warningf(ctx, "having difficulty locating hosting tabletserver for split %s on table %s, seen %d failures",
					splitRow, env.name, locationFailures)
			}
			env.loc.InvalidateExtent(loc.Extent)
		case errors.As(err, &secErr):
			c.cc.ClearTableListCache()
			if rerr := c.cc.RequireTableExists(ctx, env.tableID, env.name); rerr != nil {
				return rerr
			}
			return err
		case errors.As(err, &srvErr):
			return err
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			// Transport or unclassified failure; the request may not
			// have reached the server.
			env.loc.InvalidateServer(loc.Server)
		}
		if err := sleepCtx(ctx, base.SplitRetryDelay); err != nil {
			return err
		}
	}
}

// sortDedupeRows returns the rows sorted ascending with duplicates and
// nils removed.
func sortDedupeRows(rows []tablet.Row) []tablet.Row {
	out := make([]tablet.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	dedup := out[:0]
	for _, r := range out {
		if len(dedup) == 0 || !r.Equal(dedup[len(dedup)-1]) {
			dedup = append(dedup, r)
		}
	}
	return dedup
}
