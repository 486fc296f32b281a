package tensor

import (
	"math"
	"strconv"
	"strings"
)

// Shape is an ordered list of dimension sizes. Negative entries mark
// dimensions that are only known at run time.
type Shape []int64

// Static reports whether every dimension has a known size.
func (s Shape) Static() bool {
	for _, d := range s {
		if d < 0 {
			return false
		}
	}
	return true
}

// Size returns the number of elements. It returns -1 when the shape has a
// dynamic dimension or the count does not fit in an int. A rank-0 shape
// holds one element.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		if d < 0 || d > math.MaxInt {
			return -1
		}
		if d != 0 && n > math.MaxInt/int(d) {
			return -1
		}
		n *= int(d)
	}
	return n
}

// Clone returns a copy that does not share storage with s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	return append(Shape(nil), s...)
}

// Equal reports whether both shapes have the same rank and dims.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Accepts reports whether a concrete shape satisfies s, treating dynamic
// dims in s as wildcards.
func (s Shape) Accepts(concrete Shape) bool {
	if len(s) != len(concrete) {
		return false
	}
	for i, d := range s {
		if d >= 0 && d != concrete[i] {
			return false
		}
	}
	return true
}

// String renders the shape as "1x3x224x224". Dynamic dims print as "?" and a
// scalar prints as "scalar".
func (s Shape) String() string {
	if len(s) == 0 {
		return "scalar"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.FormatInt(d, 10)
		}
	}
	return strings.Join(parts, "x")
}

// Info describes a model input or output without any data.
type Info struct {
	Name  string
	Type  DataType
	Shape Shape
	// Params holds symbolic names for dynamic dims ("batch_size"), indexed
	// like Shape. Entries are empty for static dims or when unknown.
	Params []string
}

// ShapeString is like Shape.String but prints symbolic names where known.
func (i Info) ShapeString() string {
	if len(i.Shape) == 0 {
		return "scalar"
	}
	parts := make([]string, len(i.Shape))
	for n, d := range i.Shape {
		switch {
		case n < len(i.Params) && i.Params[n] != "":
			parts[n] = i.Params[n]
		case d < 0:
			parts[n] = "?"
		default:
			parts[n] = strconv.FormatInt(d, 10)
		}
	}
	return strings.Join(parts, "x")
}
