package admin

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/base"
	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/rpc"
	"github.com/nstruharova/accumulo/pkg/util/log"
	"github.com/nstruharova/accumulo/pkg/util/retry"
)

// ledgerRetryOptions is the per-phase retry policy for control plane
// calls: fixed short delay, no attempt budget. Transport failures and
// stale-endpoint responses are the only retryable causes, and both are
// always transient.
func ledgerRetryOptions() retry.Options {
	return retry.Options{
		InitialBackoff: base.LedgerRetryDelay,
		MaxBackoff:     base.LedgerRetryDelay,
		Multiplier:     1,
	}
}

// retryableLedgerErr reports whether a control plane call should be
// reissued.
func retryableLedgerErr(err error) bool {
	return rpc.IsTransport(err) || errors.Is(err, rpc.ErrNotActive)
}

func (c *Client) beginOperation(ctx context.Context) (rpc.OperationID, error) {
	var lastErr error
	for r := retry.StartWithCtx(ctx, ledgerRetryOptions()); r.Next(); {
		id, err := c.cc.ControlPlane().BeginOperation(ctx)
		if err == nil {
			return id, nil
		}
		if !retryableLedgerErr(err) {
			return 0, err
		}
		log.Warningf(ctx, "error beginning operation, retrying: %v", err)
		lastErr = err
	}
	return 0, errors.CombineErrors(ctx.Err(), lastErr)
}

func (c *Client) executeOperation(
	ctx context.Context, id rpc.OperationID, kind rpc.OperationKind,
	args [][]byte, opts map[string]string, autoCleanup bool,
) error {
	var lastErr error
	for r := retry.StartWithCtx(ctx, ledgerRetryOptions()); r.Next(); {
		err := c.cc.ControlPlane().ExecuteOperation(ctx, id, kind, args, opts, autoCleanup)
		if err == nil {
			return nil
		}
		if !retryableLedgerErr(err) {
			return err
		}
		log.Warningf(ctx, "error executing operation %d, retrying: %v", id, err)
		lastErr = err
	}
	return errors.CombineErrors(ctx.Err(), lastErr)
}

func (c *Client) waitOperation(ctx context.Context, id rpc.OperationID) (string, error) {
	var lastErr error
	for r := retry.StartWithCtx(ctx, ledgerRetryOptions()); r.Next(); {
		ret, err := c.cc.ControlPlane().WaitOperation(ctx, id)
		if err == nil {
			return ret, nil
		}
		if !retryableLedgerErr(err) {
			return "", err
		}
		log.Warningf(ctx, "error waiting on operation %d, retrying: %v", id, err)
		lastErr = err
	}
	return "", errors.CombineErrors(ctx.Err(), lastErr)
}

func (c *Client) finishOperation(ctx context.Context, id rpc.OperationID) error {
	var lastErr error
	for r := retry.StartWithCtx(ctx, ledgerRetryOptions()); r.Next(); {
		err := c.cc.ControlPlane().FinishOperation(ctx, id)
		if err == nil {
			return nil
		}
		if !retryableLedgerErr(err) {
			return err
		}
		log.Warningf(ctx, "error finishing operation %d, retrying: %v", id, err)
		lastErr = err
	}
	return errors.CombineErrors(ctx.Err(), lastErr)
}

// doLedgeredOperation runs one begin/execute/wait/finish cycle against
// the control plane. With wait false the operation is submitted with
// server-side auto cleanup and no result is returned. The name-to-id
// cache is cleared on every outcome, and failures are translated into
// the caller-facing categories exactly once, here.
func (c *Client) doLedgeredOperation(
	ctx context.Context, kind rpc.OperationKind,
	args [][]byte, opts map[string]string, tableName string, wait bool,
) (string, error) {
	ret, err := c.runLedgered(ctx, kind, args, opts, wait)
	c.cc.ClearTableListCache()
	if err != nil {
		return "", translateOpError(err, tableName)
	}
	return ret, nil
}

func (c *Client) runLedgered(
	ctx context.Context, kind rpc.OperationKind,
	args [][]byte, opts map[string]string, wait bool,
) (_ string, retErr error) {
	id, err := c.beginOperation(ctx)
	if err != nil {
		return "", err
	}
	finish := true
	defer func() {
		if !finish {
			return
		}
		if ferr := c.finishOperation(ctx, id); ferr != nil {
			log.Warningf(ctx, "could not release state of operation %d: %v", id, ferr)
		}
	}()
	if err := c.executeOperation(ctx, id, kind, args, opts, !wait); err != nil {
		return "", err
	}
	if !wait {
		// The control plane cleans up an auto-cleanup submission itself.
		finish = false
		return "", nil
	}
	return c.waitOperation(ctx, id)
}

// translateOpError maps cluster-reported failures to the caller-facing
// error categories. tableName is the name the failed operation
// addressed.
func translateOpError(err error, tableName string) error {
	var secErr *rpc.SecurityError
	if errors.As(err, &secErr) {
		switch secErr.Code {
		case rpc.SecurityTableDoesNotExist:
			return &client.TableNotFoundError{Name: tableName}
		case rpc.SecurityNamespaceDoesNotExist:
			return &client.NamespaceNotFoundError{Name: client.NamespaceOf(tableName)}
		default:
			return err
		}
	}
	var opErr *rpc.TableOpError
	if errors.As(err, &opErr) {
		switch opErr.Type {
		case rpc.OpErrExists:
			return &client.TableExistsError{Name: tableName}
		case rpc.OpErrNotFound:
			return &client.TableNotFoundError{Name: tableName, TableID: string(opErr.TableID)}
		case rpc.OpErrNamespaceExists:
			return &client.NamespaceExistsError{Name: client.NamespaceOf(tableName)}
		case rpc.OpErrNamespaceNotFound:
			return &client.NamespaceNotFoundError{Name: client.NamespaceOf(tableName)}
		case rpc.OpErrOffline:
			return &client.TableOfflineError{Name: tableName, TableID: string(opErr.TableID)}
		case rpc.OpErrBulkConcurrentMerge:
			return &client.MergeConflictError{Name: tableName}
		default:
			return errors.Wrapf(err, "operation on table %s failed", tableName)
		}
	}
	return err
}
