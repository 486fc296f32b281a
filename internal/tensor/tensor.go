package tensor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

var (
	ErrShapeMismatch   = errors.New("tensor: data length does not match shape")
	ErrTypeMismatch    = errors.New("tensor: element type mismatch")
	ErrUnsupportedType = errors.New("tensor: unsupported element type")
)

// Tensor is a named, typed n-dimensional array. Numeric data lives in Raw as
// little-endian elements, the same layout TensorProto.raw_data uses. STRING
// tensors keep their elements in Strings instead.
type Tensor struct {
	Name    string
	Type    DataType
	Shape   Shape
	Raw     []byte
	Strings [][]byte
}

// New builds a tensor from a typed slice. len(data) must equal the product
// of the dims.
func New[T Element](name string, shape Shape, data []T) (*Tensor, error) {
	if !shape.Static() || shape.Size() != len(data) {
		return nil, fmt.Errorf("%w: %d elements for shape %s", ErrShapeMismatch, len(data), shape)
	}
	var buf bytes.Buffer
	buf.Grow(len(data) * TypeOf[T]().Size())
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return &Tensor{Name: name, Type: TypeOf[T](), Shape: shape.Clone(), Raw: buf.Bytes()}, nil
}

// NewStrings builds a STRING tensor.
func NewStrings(name string, shape Shape, data [][]byte) (*Tensor, error) {
	if !shape.Static() || shape.Size() != len(data) {
		return nil, fmt.Errorf("%w: %d elements for shape %s", ErrShapeMismatch, len(data), shape)
	}
	return &Tensor{Name: name, Type: String, Shape: shape.Clone(), Strings: data}, nil
}

// FromFloat64s converts vals to the element type dt. Integer types truncate
// toward zero and saturate at the type's bounds, NaN becomes 0. Bool maps
// non-zero to true.
func FromFloat64s(name string, dt DataType, shape Shape, vals []float64) (*Tensor, error) {
	if !shape.Static() || shape.Size() != len(vals) {
		return nil, fmt.Errorf("%w: %d elements for shape %s", ErrShapeMismatch, len(vals), shape)
	}
	size := dt.Size()
	if size == 0 || !dt.Numeric() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
	}

	raw := make([]byte, len(vals)*size)
	le := binary.LittleEndian
	for i, v := range vals {
		b := raw[i*size:]
		switch dt {
		case Float:
			le.PutUint32(b, math.Float32bits(float32(v)))
		case Double:
			le.PutUint64(b, math.Float64bits(v))
		case Float16:
			le.PutUint16(b, float16.Fromfloat32(float32(v)).Bits())
		case BFloat16:
			le.PutUint16(b, uint16(math.Float32bits(float32(v))>>16))
		case Int8:
			b[0] = byte(int8(clamp(v, math.MinInt8, math.MaxInt8)))
		case Uint8:
			b[0] = uint8(clamp(v, 0, math.MaxUint8))
		case Bool:
			if v != 0 {
				b[0] = 1
			}
		case Int16:
			le.PutUint16(b, uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
		case Uint16:
			le.PutUint16(b, uint16(clamp(v, 0, math.MaxUint16)))
		case Int32:
			le.PutUint32(b, uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
		case Uint32:
			le.PutUint32(b, uint32(clamp(v, 0, math.MaxUint32)))
		case Int64:
			le.PutUint64(b, uint64(toInt64(v)))
		case Uint64:
			le.PutUint64(b, toUint64(v))
		}
	}
	return &Tensor{Name: name, Type: dt, Shape: shape.Clone(), Raw: raw}, nil
}

// clamp truncates v toward zero and limits it to [lo, hi]. Both bounds are
// exact in float64 for every type up to 32 bits.
func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return math.Trunc(v)
}

// 2^63 and 2^64 are exact in float64, MaxInt64 and MaxUint64 are not.
func toInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= 1<<63:
		return math.MaxInt64
	case v < -(1 << 63):
		return math.MinInt64
	}
	return int64(v)
}

func toUint64(v float64) uint64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1<<64:
		return math.MaxUint64
	}
	return uint64(v)
}

// Len returns the number of elements held by the tensor.
func (t *Tensor) Len() int {
	if t.Type == String {
		return len(t.Strings)
	}
	if size := t.Type.Size(); size > 0 {
		return len(t.Raw) / size
	}
	return 0
}

// Validate checks that the payload length agrees with the shape and type.
func (t *Tensor) Validate() error {
	if !t.Shape.Static() {
		return fmt.Errorf("%w: %s has dynamic shape %s", ErrShapeMismatch, t.Name, t.Shape)
	}
	want := t.Shape.Size()
	if want < 0 {
		return fmt.Errorf("%w: %s shape %s is too large", ErrShapeMismatch, t.Name, t.Shape)
	}
	if t.Type == String {
		if len(t.Strings) != want {
			return fmt.Errorf("%w: %s has %d strings, shape %s wants %d", ErrShapeMismatch, t.Name, len(t.Strings), t.Shape, want)
		}
		return nil
	}
	size := t.Type.Size()
	if size == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t.Type)
	}
	if want > math.MaxInt/size || len(t.Raw) != want*size {
		return fmt.Errorf("%w: %s has %d bytes, shape %s of %s wants %d", ErrShapeMismatch, t.Name, len(t.Raw), t.Shape, t.Type, want*size)
	}
	return nil
}

// Values decodes the payload into a typed slice. T must match t.Type.
func Values[T Element](t *Tensor) ([]T, error) {
	if want := TypeOf[T](); t.Type != want {
		return nil, fmt.Errorf("%w: tensor %s is %s, not %s", ErrTypeMismatch, t.Name, t.Type, want)
	}
	out := make([]T, t.Len())
	if err := binary.Read(bytes.NewReader(t.Raw), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.Name, err)
	}
	return out, nil
}

// Float64s widens any numeric tensor to float64.
func (t *Tensor) Float64s() ([]float64, error) {
	if !t.Type.Numeric() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.Type)
	}

	n := t.Len()
	out := make([]float64, n)
	raw := t.Raw
	le := binary.LittleEndian

	switch t.Type {
	case Float:
		for i := range out {
			out[i] = float64(math.Float32frombits(le.Uint32(raw[i*4:])))
		}
	case Double:
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
	case Float16:
		for i := range out {
			out[i] = float64(float16.Frombits(le.Uint16(raw[i*2:])).Float32())
		}
	case BFloat16:
		for i, f := range bfloat16.DecodeFloat32(raw[:n*2]) {
			out[i] = float64(f)
		}
	case Int8:
		for i := range out {
			out[i] = float64(int8(raw[i]))
		}
	case Uint8, Bool:
		for i := range out {
			out[i] = float64(raw[i])
		}
	case Int16:
		for i := range out {
			out[i] = float64(int16(le.Uint16(raw[i*2:])))
		}
	case Uint16:
		for i := range out {
			out[i] = float64(le.Uint16(raw[i*2:]))
		}
	case Int32:
		for i := range out {
			out[i] = float64(int32(le.Uint32(raw[i*4:])))
		}
	case Uint32:
		for i := range out {
			out[i] = float64(le.Uint32(raw[i*4:]))
		}
	case Int64:
		for i := range out {
			out[i] = float64(int64(le.Uint64(raw[i*8:])))
		}
	case Uint64:
		for i := range out {
			out[i] = float64(le.Uint64(raw[i*8:]))
		}
	}
	return out, nil
}

// Float32s is Float64s narrowed to float32, the element type most models
// consume and produce.
func (t *Tensor) Float32s() ([]float32, error) {
	if t.Type == Float {
		return Values[float32](t)
	}
	wide, err := t.Float64s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(wide))
	for i, v := range wide {
		out[i] = float32(v)
	}
	return out, nil
}
