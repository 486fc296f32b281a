package onnxpb

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// Model is the metadata of a ModelProto. Weights and nodes are not decoded.
type Model struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Opsets          []Opset
	Metadata        map[string]string

	GraphName    string
	NodeCount    int
	Inputs       []tensor.Info
	Outputs      []tensor.Info
	Initializers []string
}

// Opset is one entry of ModelProto.opset_import.
type Opset struct {
	Domain  string
	Version int64
}

// FeedInputs returns the graph inputs a caller has to provide. Models
// exported before IR version 4 list their initializers as graph inputs too.
func (m *Model) FeedInputs() []tensor.Info {
	if len(m.Initializers) == 0 {
		return m.Inputs
	}
	weights := make(map[string]struct{}, len(m.Initializers))
	for _, name := range m.Initializers {
		weights[name] = struct{}{}
	}
	var feeds []tensor.Info
	for _, in := range m.Inputs {
		if _, ok := weights[in.Name]; !ok {
			feeds = append(feeds, in)
		}
	}
	return feeds
}

// ReadModelFile parses the metadata of an .onnx file.
func ReadModelFile(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseModel(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes a serialized ModelProto.
func ParseModel(b []byte) (*Model, error) {
	m := &Model{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.IRVersion = int64(f.num64)
		case 2:
			m.ProducerName = string(f.bytes)
		case 3:
			m.ProducerVersion = string(f.bytes)
		case 4:
			m.Domain = string(f.bytes)
		case 5:
			m.ModelVersion = int64(f.num64)
		case 6:
			m.DocString = string(f.bytes)
		case 7:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
			return parseGraph(f.bytes, m)
		case 8:
			var op Opset
			err := walk(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					op.Domain = string(f.bytes)
				case 2:
					op.Version = int64(f.num64)
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.Opsets = append(m.Opsets, op)
		case 14:
			k, v, err := stringEntry(f.bytes)
			if err != nil {
				return err
			}
			if m.Metadata == nil {
				m.Metadata = map[string]string{}
			}
			m.Metadata[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseGraph(b []byte, m *Model) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.NodeCount++
		case 2:
			m.GraphName = string(f.bytes)
		case 5:
			name, err := initializerName(f.bytes)
			if err != nil {
				return err
			}
			m.Initializers = append(m.Initializers, name)
		case 11, 12:
			info, err := parseValueInfo(f.bytes)
			if err != nil {
				return err
			}
			if f.num == 11 {
				m.Inputs = append(m.Inputs, info)
			} else {
				m.Outputs = append(m.Outputs, info)
			}
		}
		return nil
	})
}

func initializerName(b []byte) (string, error) {
	var name string
	err := walk(b, func(f field) error {
		if f.num == tensorName {
			name = string(f.bytes)
		}
		return nil
	})
	return name, err
}

// parseValueInfo decodes ValueInfoProto{name=1, type=2}. Only tensor types
// are described; sequences and maps come back with an undefined element type.
func parseValueInfo(b []byte) (tensor.Info, error) {
	var info tensor.Info
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			info.Name = string(f.bytes)
		case 2:
			return walk(f.bytes, func(f field) error {
				if f.num != 1 { // TypeProto.tensor_type
					return nil
				}
				return parseTensorType(f.bytes, &info)
			})
		}
		return nil
	})
	return info, err
}

func parseTensorType(b []byte, info *tensor.Info) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			info.Type = tensor.DataType(int32(f.num64))
		case 2:
			info.Shape = tensor.Shape{}
			return walk(f.bytes, func(f field) error {
				if f.num != 1 {
					return nil
				}
				dim, param, err := parseDim(f.bytes)
				if err != nil {
					return err
				}
				info.Shape = append(info.Shape, dim)
				info.Params = append(info.Params, param)
				return nil
			})
		}
		return nil
	})
}

// parseDim decodes TensorShapeProto.Dimension. A dim without dim_value is
// dynamic and reported as -1.
func parseDim(b []byte) (int64, string, error) {
	var (
		value int64 = -1
		param string
	)
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			value = int64(f.num64)
		case 2:
			param = string(f.bytes)
		}
		return nil
	})
	return value, param, err
}
