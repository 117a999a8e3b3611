package tablet

import "fmt"

// LocationKind describes how a tablet is bound to a server in the
// metadata store.
type LocationKind int

const (
	// LocationNone means the tablet is unassigned (table offline or in
	// transition).
	LocationNone LocationKind = iota
	// LocationCurrent means the tablet is being served at the recorded
	// address.
	LocationCurrent
	// LocationFuture means an assignment to the recorded address is
	// pending but not yet live.
	LocationFuture
)

func (k LocationKind) String() string {
	switch k {
	case LocationCurrent:
		return "CURRENT"
	case LocationFuture:
		return "FUTURE"
	default:
		return "NONE"
	}
}

// Location records where a tablet is (or will be) served.
type Location struct {
	Server  string
	Session string
	Kind    LocationKind
}

// HostPortSession returns the server address qualified by its session
// token, used to attribute pending tablets to a specific server
// incarnation.
func (l Location) HostPortSession() string {
	if l.Session == "" {
		return l.Server
	}
	return l.Server + "[" + l.Session + "]"
}

func (l Location) String() string {
	return fmt.Sprintf("%s@%s", l.Kind, l.HostPortSession())
}

// Metadata is one tablet record read from the partition metadata store.
// Loc is nil when the tablet has no recorded location.
type Metadata struct {
	Extent KeyExtent
	Loc    *Location
}
