package rpc

import (
	"context"

	"github.com/nstruharova/accumulo/pkg/tablet"
)

// TabletServer is the storage-node surface reached directly, bypassing
// the control plane, for requests that must land on the node currently
// serving a tablet.
type TabletServer interface {
	// SplitTablet applies splitRow as a new tablet boundary within the
	// given extent. Reports NotServingError when the node no longer
	// serves the extent.
	SplitTablet(ctx context.Context, extent tablet.KeyExtent, splitRow tablet.Row) error
}

// Dialer hands out TabletServer clients for a server address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (TabletServer, error)
}

// MetaField selects which columns a metadata scan fetches.
type MetaField int

const (
	// MetaFieldPrevRow fetches the extent bounds.
	MetaFieldPrevRow MetaField = iota
	// MetaFieldLocation fetches the serving location.
	MetaFieldLocation
)

// MetaStore is the persistent partition-metadata store, queried by range
// scan. Tablet records are keyed by extent end row, with a nil end row
// sorting last; records come back in that order.
type MetaStore interface {
	// Tablets scans the tablet records of a table. The scan covers the
	// tablets whose end row falls within [startRow, lastRow], both
	// bounds inclusive and nil meaning unbounded. A tablet removed
	// mid-scan, typically by a concurrent merge, is reported as
	// ErrTabletDeleted; the caller must treat that as retryable after
	// re-checking that the table still exists.
	Tablets(ctx context.Context, id tablet.TableID, startRow, lastRow tablet.Row,
		fields ...MetaField) ([]tablet.Metadata, error)
}
