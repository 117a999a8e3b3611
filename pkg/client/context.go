// Package client holds the shared client state: the connection surfaces,
// the cached table name map, the per-table locator registry, and the
// caller-facing error taxonomy. Higher-level operation packages hang off
// a *Context rather than global state, so independent clients in one
// process never share caches.
package client

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/google/uuid"
	"github.com/nstruharova/accumulo/pkg/locator"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/tablet"
	"github.com/nstruharova/accumulo/pkg/util/syncutil"
)

var tableNameRE = regexp.MustCompile(`^(\w+\.)?\w+$`)

// ValidateTableName checks that name is a legal table name, optionally
// qualified by a namespace.
func ValidateTableName(name string) error {
	if !tableNameRE.MatchString(name) {
		return errors.Newf("invalid table name %q", name)
	}
	return nil
}

// NamespaceOf returns the namespace portion of a qualified table name,
// or the empty string for an unqualified name.
func NamespaceOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}

// Context is one client's connection to a cluster. It is safe for
// concurrent use.
type Context struct {
	cfg    Config
	cp     rpc.ControlPlane
	meta   rpc.MetaStore
	dialer rpc.Dialer

	// sessionID distinguishes this client instance in logs; AnnotateCtx
	// stamps it onto operation contexts.
	sessionID uuid.UUID

	mu struct {
		syncutil.Mutex
		tableNames map[string]tablet.TableID
		locators   map[tablet.TableID]*locator.Locator
	}
}

// NewContext returns a client context over the given cluster surfaces.
func NewContext(cfg Config, cp rpc.ControlPlane, meta rpc.MetaStore, dialer rpc.Dialer) *Context {
	c := &Context{
		cfg:       cfg,
		cp:        cp,
		meta:      meta,
		dialer:    dialer,
		sessionID: uuid.New(),
	}
	c.mu.locators = make(map[tablet.TableID]*locator.Locator)
	return c
}

// Config returns the client configuration.
func (c *Context) Config() Config { return c.cfg }

// ControlPlane returns the control plane surface.
func (c *Context) ControlPlane() rpc.ControlPlane { return c.cp }

// Meta returns the partition metadata store.
func (c *Context) Meta() rpc.MetaStore { return c.meta }

// Dialer returns the tablet server dialer.
func (c *Context) Dialer() rpc.Dialer { return c.dialer }

// SessionID returns this client instance's session id.
func (c *Context) SessionID() uuid.UUID { return c.sessionID }

// AnnotateCtx tags the context with this client's session id, so log
// lines from concurrent clients in one process stay attributable.
func (c *Context) AnnotateCtx(ctx context.Context) context.Context {
	return logtags.AddTag(ctx, "session", c.sessionID.String()[:8])
}

// User returns the principal operations run as.
func (c *Context) User() string { return c.cfg.User }

// LocatorFor returns the shared locator for a table, creating it on
// first use.
func (c *Context) LocatorFor(id tablet.TableID) *locator.Locator {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.mu.locators[id]
	if !ok {
		l = locator.New(id, c.meta)
		c.mu.locators[id] = l
	}
	return l
}

// TableNameMap returns the current name-to-id map, from cache when
// available.
func (c *Context) TableNameMap(ctx context.Context) (map[string]tablet.TableID, error) {
	c.mu.Lock()
	cached := c.mu.tableNames
	c.mu.Unlock()
	if cached == nil {
		var err error
		if cached, err = c.refreshTableNames(ctx); err != nil {
			return nil, err
		}
	}
	out := make(map[string]tablet.TableID, len(cached))
	for k, v := range cached {
		out[k] = v
	}
	return out, nil
}

func (c *Context) refreshTableNames(ctx context.Context) (map[string]tablet.TableID, error) {
	m, err := c.cp.TableNameMap(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.mu.tableNames = m
	c.mu.Unlock()
	return m, nil
}

// ClearTableListCache drops the cached name-to-id map. Called after
// every operation that may have changed the table list.
func (c *Context) ClearTableListCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.tableNames = nil
}

// TableNameToID resolves a table name, refreshing the cache once on a
// miss before reporting TableNotFoundError.
func (c *Context) TableNameToID(ctx context.Context, name string) (tablet.TableID, error) {
	c.mu.Lock()
	cached := c.mu.tableNames
	c.mu.Unlock()
	if id, ok := cached[name]; ok {
		return id, nil
	}
	m, err := c.refreshTableNames(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := m[name]; ok {
		return id, nil
	}
	return "", &TableNotFoundError{Name: name}
}

// TableIDToName resolves a table id against the current name map. A
// missing id reports TableNotFoundError.
func (c *Context) TableIDToName(ctx context.Context, id tablet.TableID) (string, error) {
	m, err := c.refreshTableNames(ctx)
	if err != nil {
		return "", err
	}
	for name, tid := range m {
		if tid == id {
			return name, nil
		}
	}
	return "", &TableNotFoundError{TableID: string(id)}
}

// TableState reads the table's lifecycle state, translating the missing
// case into TableNotFoundError.
func (c *Context) TableState(ctx context.Context, id tablet.TableID, name string) (tablet.TableState, error) {
	state, err := c.cp.GetTableState(ctx, id)
	if err != nil {
		var opErr *rpc.TableOpError
		if errors.As(err, &opErr) && opErr.Type == rpc.OpErrNotFound {
			return tablet.TableStateUnknown, &TableNotFoundError{Name: name, TableID: string(id)}
		}
		return tablet.TableStateUnknown, err
	}
	return state, nil
}

// RequireTableExists fails with TableNotFoundError unless the table
// still exists.
func (c *Context) RequireTableExists(ctx context.Context, id tablet.TableID, name string) error {
	_, err := c.TableState(ctx, id, name)
	return err
}

// RequireNotOffline fails with TableOfflineError when the table is
// offline, and with TableNotFoundError when it is gone or being deleted.
func (c *Context) RequireNotOffline(ctx context.Context, id tablet.TableID, name string) error {
	state, err := c.TableState(ctx, id, name)
	if err != nil {
		return err
	}
	switch state {
	case tablet.TableStateOffline:
		return &TableOfflineError{Name: name, TableID: string(id)}
	case tablet.TableStateDeleting:
		return &TableNotFoundError{Name: name, TableID: string(id)}
	default:
		return nil
	}
}

// RequireNotDeleted fails with TableNotFoundError when the table is gone
// or being deleted.
func (c *Context) RequireNotDeleted(ctx context.Context, id tablet.TableID, name string) error {
	state, err := c.TableState(ctx, id, name)
	if err != nil {
		return err
	}
	if state == tablet.TableStateDeleting {
		return &TableNotFoundError{Name: name, TableID: string(id)}
	}
	return nil
}
