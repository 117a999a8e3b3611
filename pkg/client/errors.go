package client

import "fmt"

// TableNotFoundError is returned when an operation addresses a table
// that does not exist, or that was deleted out from under the operation.
type TableNotFoundError struct {
	Name    string
	TableID string
}

func (e *TableNotFoundError) Error() string {
	if e.TableID != "" && e.Name == "" {
		return fmt.Sprintf("table with id %s not found", e.TableID)
	}
	return fmt.Sprintf("table %s not found", e.Name)
}

// TableExistsError is returned when a create, rename or clone target
// already exists.
type TableExistsError struct {
	Name string
}

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %s already exists", e.Name)
}

// TableOfflineError is returned when an operation requires an online
// table and the table is offline.
type TableOfflineError struct {
	Name    string
	TableID string
}

func (e *TableOfflineError) Error() string {
	return fmt.Sprintf("table %s (%s) is offline", e.Name, e.TableID)
}

// NamespaceNotFoundError is returned when a table name references a
// namespace that does not exist.
type NamespaceNotFoundError struct {
	Name string
}

func (e *NamespaceNotFoundError) Error() string {
	return fmt.Sprintf("namespace %s not found", e.Name)
}

// NamespaceExistsError is returned when a namespace target already
// exists.
type NamespaceExistsError struct {
	Name string
}

func (e *NamespaceExistsError) Error() string {
	return fmt.Sprintf("namespace %s already exists", e.Name)
}

// MergeConflictError is returned when a bulk import ran concurrently
// with a merge and must be retried by the caller.
type MergeConflictError struct {
	Name string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("bulk import into %s failed: concurrent merge, retry the import", e.Name)
}
