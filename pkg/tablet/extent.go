package tablet

import (
	"fmt"
	"sort"
)

// KeyExtent identifies one tablet: a contiguous row range of a single
// table. The range is half-open at the bottom: PrevEndRow is exclusive
// (nil means negative infinity) and EndRow is inclusive (nil means
// positive infinity). Extents of a consistent table tile the full row
// space with no gaps or overlaps.
type KeyExtent struct {
	Table      TableID
	PrevEndRow Row
	EndRow     Row
}

// ContainsRow returns whether the row falls within the extent.
func (e KeyExtent) ContainsRow(row Row) bool {
	if e.PrevEndRow != nil && row.Compare(e.PrevEndRow) <= 0 {
		return false
	}
	return e.EndRow == nil || row.Compare(e.EndRow) <= 0
}

// Compare orders extents of one table by end row, with a nil end row
// sorting after everything. Ties are broken by previous end row, with nil
// sorting first.
func (e KeyExtent) Compare(o KeyExtent) int {
	if c := compareEndRows(e.EndRow, o.EndRow); c != 0 {
		return c
	}
	return comparePrevEndRows(e.PrevEndRow, o.PrevEndRow)
}

func compareEndRows(a, b Row) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(b)
	}
}

func comparePrevEndRows(a, b Row) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(b)
	}
}

// Equal returns whether two extents are identical.
func (e KeyExtent) Equal(o KeyExtent) bool {
	return e.Table == o.Table && e.PrevEndRow.Equal(o.PrevEndRow) && e.EndRow.Equal(o.EndRow)
}

// IsPreviousExtent returns whether prev is the extent immediately before
// this one in sorted order: same table, and prev's end row equals this
// extent's previous end row. A false result between consecutive extents
// of a sorted scan indicates a hole in the metadata.
func (e KeyExtent) IsPreviousExtent(prev KeyExtent) bool {
	return e.Table == prev.Table && e.PrevEndRow.Equal(prev.EndRow)
}

// DataRange returns the row range served by the extent.
func (e KeyExtent) DataRange() Range {
	return Range{Start: e.PrevEndRow.Clone(), End: e.EndRow.Clone()}
}

func (e KeyExtent) String() string {
	end := "<"
	if e.EndRow != nil {
		end = string(e.EndRow)
	}
	prev := "<"
	if e.PrevEndRow != nil {
		prev = string(e.PrevEndRow)
	}
	return fmt.Sprintf("%s;%s;%s", e.Table, end, prev)
}

// SortExtents sorts extents in place into their natural order.
func SortExtents(extents []KeyExtent) {
	sort.Slice(extents, func(i, j int) bool {
		return extents[i].Compare(extents[j]) < 0
	})
}
