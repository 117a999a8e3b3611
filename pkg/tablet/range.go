package tablet

import "fmt"

// Range is a row range with the same bound conventions as KeyExtent:
// Start is exclusive (nil means negative infinity) and End is inclusive
// (nil means positive infinity).
type Range struct {
	Start Row
	End   Row
}

// EverythingRange returns the range covering all rows.
func EverythingRange() Range {
	return Range{}
}

// Clip intersects the range with o. If the ranges do not overlap, the
// result is empty as reported by IsEmpty.
func (r Range) Clip(o Range) Range {
	out := Range{Start: r.Start, End: r.End}
	if o.Start != nil && (out.Start == nil || o.Start.Compare(out.Start) > 0) {
		out.Start = o.Start
	}
	if o.End != nil && (out.End == nil || o.End.Compare(out.End) < 0) {
		out.End = o.End
	}
	return out
}

// IsEmpty returns whether the range contains no rows.
func (r Range) IsEmpty() bool {
	return r.Start != nil && r.End != nil && r.Start.Compare(r.End) >= 0
}

// ContainsRow returns whether the row falls within the range.
func (r Range) ContainsRow(row Row) bool {
	if r.Start != nil && row.Compare(r.Start) <= 0 {
		return false
	}
	return r.End == nil || row.Compare(r.End) <= 0
}

// Equal returns whether two ranges have identical bounds.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r Range) String() string {
	return fmt.Sprintf("(%s,%s]", r.Start, r.End)
}
