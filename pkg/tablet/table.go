package tablet

// TableID is the durable, canonical identifier of a table. It is stable
// across renames; the human-readable name is resolved through a cached
// name-to-id map that must be invalidated after structural operations.
type TableID string

func (id TableID) String() string { return string(id) }

// TableState is the recorded lifecycle state of a table.
type TableState int

const (
	// TableStateUnknown means the table's state could not be determined.
	TableStateUnknown TableState = iota
	// TableStateNew means the table is being created.
	TableStateNew
	// TableStateOnline means the table's tablets should be assigned.
	TableStateOnline
	// TableStateOffline means the table's tablets should be unassigned.
	TableStateOffline
	// TableStateDeleting means the table is being deleted.
	TableStateDeleting
)

func (s TableState) String() string {
	switch s {
	case TableStateNew:
		return "NEW"
	case TableStateOnline:
		return "ONLINE"
	case TableStateOffline:
		return "OFFLINE"
	case TableStateDeleting:
		return "DELETING"
	default:
		return "UNKNOWN"
	}
}
