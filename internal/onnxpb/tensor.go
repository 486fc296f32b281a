package onnxpb

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// TensorProto field numbers.
const (
	tensorDims         = 1
	tensorDataType     = 2
	tensorSegment      = 3
	tensorFloatData    = 4
	tensorInt32Data    = 5
	tensorStringData   = 6
	tensorInt64Data    = 7
	tensorName         = 8
	tensorRawData      = 9
	tensorDoubleData   = 10
	tensorUint64Data   = 11
	tensorDocString    = 12
	tensorExternalData = 13
	tensorDataLocation = 14
)

const dataLocationExternal = 1

type tensorProto struct {
	dims     []int64
	dataType tensor.DataType
	name     string
	raw      []byte
	hasRaw   bool
	floats   []uint32
	int32s   []uint64
	strings  [][]byte
	int64s   []uint64
	doubles  []uint64
	uint64s  []uint64
	external map[string]string
	location int32
	segment  bool
}

func parseTensorProto(b []byte) (*tensorProto, error) {
	var (
		p    tensorProto
		dims []uint64
		err  error
	)
	err = walk(b, func(f field) error {
		var err error
		switch f.num {
		case tensorDims:
			dims, err = appendVarints(dims, f)
		case tensorDataType:
			if err = expect(f, protowire.VarintType); err == nil {
				p.dataType = tensor.DataType(int32(f.num64))
			}
		case tensorSegment:
			p.segment = true
		case tensorFloatData:
			p.floats, err = appendFixed32s(p.floats, f)
		case tensorInt32Data:
			p.int32s, err = appendVarints(p.int32s, f)
		case tensorStringData:
			if err = expect(f, protowire.BytesType); err == nil {
				p.strings = append(p.strings, f.bytes)
			}
		case tensorInt64Data:
			p.int64s, err = appendVarints(p.int64s, f)
		case tensorName:
			if err = expect(f, protowire.BytesType); err == nil {
				p.name = string(f.bytes)
			}
		case tensorRawData:
			if err = expect(f, protowire.BytesType); err == nil {
				p.raw = f.bytes
				p.hasRaw = true
			}
		case tensorDoubleData:
			p.doubles, err = appendFixed64s(p.doubles, f)
		case tensorUint64Data:
			p.uint64s, err = appendVarints(p.uint64s, f)
		case tensorExternalData:
			var k, v string
			if k, v, err = stringEntry(f.bytes); err == nil {
				if p.external == nil {
					p.external = map[string]string{}
				}
				p.external[k] = v
			}
		case tensorDataLocation:
			p.location = int32(f.num64)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	p.dims = make([]int64, len(dims))
	for i, d := range dims {
		p.dims[i] = int64(d)
	}
	return &p, nil
}

// UnmarshalTensor decodes a serialized TensorProto. Tensors whose data lives
// in an external file fail with ErrExternalData; use ReadTensorFile for
// those.
func UnmarshalTensor(b []byte) (*tensor.Tensor, error) {
	return decodeTensor(b, "")
}

func decodeTensor(b []byte, baseDir string) (*tensor.Tensor, error) {
	p, err := parseTensorProto(b)
	if err != nil {
		return nil, err
	}
	if p.segment {
		return nil, fmt.Errorf("onnxpb: segmented tensor %q is not supported", p.name)
	}

	t := &tensor.Tensor{Name: p.name, Type: p.dataType, Shape: tensor.Shape(p.dims)}

	if p.location == dataLocationExternal {
		if baseDir == "" {
			return nil, fmt.Errorf("%w: %s", ErrExternalData, p.name)
		}
		if t.Raw, err = readExternal(baseDir, p.external); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", p.name, err)
		}
		return t, t.Validate()
	}

	if t.Type == tensor.String {
		t.Strings = p.strings
		return t, t.Validate()
	}

	size := t.Type.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", tensor.ErrUnsupportedType, t.Type)
	}

	if p.hasRaw {
		t.Raw = append([]byte(nil), p.raw...)
		return t, t.Validate()
	}

	le := binary.LittleEndian
	switch t.Type {
	case tensor.Float, tensor.Complex64:
		t.Raw = make([]byte, 4*len(p.floats))
		for i, v := range p.floats {
			le.PutUint32(t.Raw[i*4:], v)
		}
	case tensor.Double, tensor.Complex128:
		t.Raw = make([]byte, 8*len(p.doubles))
		for i, v := range p.doubles {
			le.PutUint64(t.Raw[i*8:], v)
		}
	case tensor.Int64:
		t.Raw = make([]byte, 8*len(p.int64s))
		for i, v := range p.int64s {
			le.PutUint64(t.Raw[i*8:], v)
		}
	case tensor.Uint32, tensor.Uint64:
		t.Raw = packWidth(p.uint64s, size)
	default:
		// int32_data carries every type of 32 bits or narrower, including
		// the bit patterns of float16 and bfloat16.
		t.Raw = packWidth(p.int32s, size)
	}
	return t, t.Validate()
}

func packWidth(vals []uint64, size int) []byte {
	out := make([]byte, len(vals)*size)
	le := binary.LittleEndian
	for i, v := range vals {
		b := out[i*size:]
		switch size {
		case 1:
			b[0] = byte(v)
		case 2:
			le.PutUint16(b, uint16(v))
		case 4:
			le.PutUint32(b, uint32(v))
		case 8:
			le.PutUint64(b, v)
		}
	}
	return out
}

func readExternal(baseDir string, entries map[string]string) ([]byte, error) {
	location := entries["location"]
	if location == "" {
		return nil, fmt.Errorf("%w: missing location", ErrExternalData)
	}
	if !filepath.IsLocal(location) {
		return nil, fmt.Errorf("%w: location %q escapes %s", ErrExternalData, location, baseDir)
	}

	var offset, length int64 = 0, -1
	if s, ok := entries["offset"]; ok {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: offset %q", ErrExternalData, s)
		}
		offset = v
	}
	if s, ok := entries["length"]; ok {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: length %q", ErrExternalData, s)
		}
		length = v
	}

	f, err := os.Open(filepath.Join(baseDir, location))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	if length < 0 {
		return io.ReadAll(f)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("%w: reading %d bytes at %d: %v", ErrExternalData, length, offset, err)
	}
	return buf, nil
}

// MarshalTensor encodes t the way onnx.numpy_helper.from_array does: dims,
// data_type, name and a raw_data payload (string_data for STRING tensors).
func MarshalTensor(t *tensor.Tensor) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var b []byte
	for _, d := range t.Shape {
		b = protowire.AppendTag(b, tensorDims, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}
	b = protowire.AppendTag(b, tensorDataType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Type))
	for _, s := range t.Strings {
		b = protowire.AppendTag(b, tensorStringData, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	if t.Name != "" {
		b = protowire.AppendTag(b, tensorName, protowire.BytesType)
		b = protowire.AppendString(b, t.Name)
	}
	if t.Type != tensor.String {
		b = protowire.AppendTag(b, tensorRawData, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Raw)
	}
	return b, nil
}

// ReadTensorFile loads a .pb tensor file. External data is resolved relative
// to the file's directory.
func ReadTensorFile(path string) (*tensor.Tensor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := decodeTensor(b, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteTensorFile serializes t to path.
func WriteTensorFile(path string, t *tensor.Tensor) error {
	b, err := MarshalTensor(t)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return os.WriteFile(path, b, 0o644)
}
