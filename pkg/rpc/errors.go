package rpc

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/nstruharova/accumulo/pkg/tablet"
)

// ErrTransport marks communication failures: the request may never have
// reached the server. Callers retry these indefinitely.
var ErrTransport = errors.New("transport failure")

// ErrNotActive marks responses from a control-plane replica that is no
// longer (or not yet) the active one. Always transient; the next attempt
// re-resolves the endpoint.
var ErrNotActive = errors.New("control plane endpoint not active")

// ErrTabletDeleted marks a metadata scan that observed a tablet being
// deleted out from under it, typically by a concurrent merge.
var ErrTabletDeleted = errors.New("tablet deleted mid-scan")

// TransportErrorf returns a new error carrying the ErrTransport mark.
func TransportErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrTransport)
}

// IsTransport reports whether err is a communication failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// SecurityCode categorizes a security failure.
type SecurityCode int

const (
	// SecurityPermissionDenied is a genuine authorization failure.
	SecurityPermissionDenied SecurityCode = iota
	// SecurityBadCredentials means the credentials were not accepted.
	SecurityBadCredentials
	// SecurityTableDoesNotExist means the failure is really a missing
	// table, reported through the security path.
	SecurityTableDoesNotExist
	// SecurityNamespaceDoesNotExist likewise for a missing namespace.
	SecurityNamespaceDoesNotExist
)

// SecurityError is a security failure reported by the cluster. The code
// decides how the top-level orchestration translates it.
type SecurityError struct {
	Code SecurityCode
	User string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security failure (code %d) for user %q", e.Code, e.User)
}

// OpErrorType categorizes a table-operation failure.
type OpErrorType int

const (
	OpErrOther OpErrorType = iota
	OpErrExists
	OpErrNotFound
	OpErrNamespaceExists
	OpErrNamespaceNotFound
	OpErrOffline
	OpErrBulkConcurrentMerge
)

// TableOpError is a structural-operation failure reported by the control
// plane. The type decides how the top-level orchestration translates it;
// lower layers never inspect it.
type TableOpError struct {
	Type        OpErrorType
	TableID     tablet.TableID
	Name        string
	Description string
}

func (e *TableOpError) Error() string {
	return fmt.Sprintf("table operation failed for %s (%s): %s", e.Name, e.TableID, e.Description)
}

// NotServingError is a storage node's report that it does not currently
// serve the addressed tablet. Always transient: the location cache entry
// is stale.
type NotServingError struct {
	Extent tablet.KeyExtent
}

func (e *NotServingError) Error() string {
	return fmt.Sprintf("not serving tablet %s", e.Extent)
}

// ServerError is a failure raised inside a storage node while applying a
// request. It is terminal: the request reached the server and failed
// there.
type ServerError struct {
	Server string
	cause  error
}

// NewServerError wraps a server-side failure with the server's address.
func NewServerError(server string, cause error) *ServerError {
	return &ServerError{Server: server, cause: cause}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("error on server %s: %v", e.Server, e.cause)
}

func (e *ServerError) Unwrap() error { return e.cause }
