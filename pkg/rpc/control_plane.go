// Package rpc defines the RPC surfaces the client consumes from the
// cluster, and the error categories those surfaces report. The wire
// transport behind these interfaces is supplied by the embedding
// application; this package fixes only the contract.
package rpc

import (
	"context"

	"github.com/nstruharova/accumulo/pkg/tablet"
)

// OperationID identifies one run of a ledgered operation. It is assigned
// by the control plane and is valid for exactly one
// begin/execute/wait/finish cycle.
type OperationID int64

// OperationKind enumerates the structural operations the control plane
// can execute.
type OperationKind int

const (
	OpCreate OperationKind = iota
	OpDelete
	OpRename
	OpMerge
	OpDeleteRange
	OpClone
	OpCompact
	OpCancelCompact
	OpOffline
	OpOnline
	OpImport
	OpExport
	OpBulkImport
)

func (k OperationKind) String() string {
	switch k {
	case OpCreate:
		return "TABLE_CREATE"
	case OpDelete:
		return "TABLE_DELETE"
	case OpRename:
		return "TABLE_RENAME"
	case OpMerge:
		return "TABLE_MERGE"
	case OpDeleteRange:
		return "TABLE_DELETE_RANGE"
	case OpClone:
		return "TABLE_CLONE"
	case OpCompact:
		return "TABLE_COMPACT"
	case OpCancelCompact:
		return "TABLE_CANCEL_COMPACT"
	case OpOffline:
		return "TABLE_OFFLINE"
	case OpOnline:
		return "TABLE_ONLINE"
	case OpImport:
		return "TABLE_IMPORT"
	case OpExport:
		return "TABLE_EXPORT"
	case OpBulkImport:
		return "TABLE_BULK_IMPORT"
	default:
		return "UNKNOWN"
	}
}

// Reserved operation option keys, interpreted by the control plane
// rather than stored as table properties.
const (
	// OptTimeType selects the timestamp discipline of a new table.
	OptTimeType = "operation.time.type"
	// OptInitialState requests that a new table start out offline.
	OptInitialState = "operation.initial.state"

	// InitialStateOffline is the OptInitialState value for an offline
	// creation.
	InitialStateOffline = "offline"
)

// ControlPlane is the cluster service responsible for table metadata and
// for executing ledgered structural operations.
type ControlPlane interface {
	// BeginOperation allocates a fresh operation id.
	BeginOperation(ctx context.Context) (OperationID, error)

	// ExecuteOperation binds the operation to its arguments and triggers
	// server-side dispatch. autoCleanup marks a fire-and-forget
	// submission whose server-side state the control plane releases
	// itself.
	ExecuteOperation(ctx context.Context, id OperationID, kind OperationKind,
		args [][]byte, opts map[string]string, autoCleanup bool) error

	// WaitOperation blocks until the operation completes, returning its
	// opaque result.
	WaitOperation(ctx context.Context, id OperationID) (string, error)

	// FinishOperation releases server-side operation state. It must be
	// called exactly once per begun id that was not submitted with
	// autoCleanup, on success and failure alike.
	FinishOperation(ctx context.Context, id OperationID) error

	// GetTableState reads the recorded lifecycle state of a table. A
	// missing table reports a TableOpError of type OpErrNotFound.
	GetTableState(ctx context.Context, id tablet.TableID) (tablet.TableState, error)

	// TableNameMap returns the current name-to-id mapping for all tables.
	TableNameMap(ctx context.Context) (map[string]tablet.TableID, error)

	// InitiateFlush starts a flush of the table's in-memory data and
	// returns a flush id to wait on.
	InitiateFlush(ctx context.Context, id tablet.TableID) (int64, error)

	// WaitForFlush blocks until the flush identified by flushID has been
	// applied to the given row range, or until maxLoops scans of the
	// table's tablets have completed.
	WaitForFlush(ctx context.Context, id tablet.TableID, start, end tablet.Row,
		flushID int64, maxLoops int64) error
}
