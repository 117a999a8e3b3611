package tablet

import (
	"bytes"
	"fmt"
)

// Row is a row key in a table. A nil Row denotes an unbounded extent or
// range boundary; the direction of the bound (negative or positive
// infinity) is determined by its position.
type Row []byte

// Compare compares two non-nil rows bytewise. Callers dealing with
// unbounded rows must handle nil before calling.
func (r Row) Compare(o Row) int {
	return bytes.Compare(r, o)
}

// Equal returns whether two rows are equal. Two nil rows are equal.
func (r Row) Equal(o Row) bool {
	if r == nil || o == nil {
		return r == nil && o == nil
	}
	return bytes.Equal(r, o)
}

// Next returns the immediate successor of the row: the smallest row that
// sorts after it.
func (r Row) Next() Row {
	next := make(Row, len(r)+1)
	copy(next, r)
	return next
}

// Clone returns a copy of the row. Nil stays nil.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return append(Row(nil), r...)
}

func (r Row) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q", []byte(r))
}
