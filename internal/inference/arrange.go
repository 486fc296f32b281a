package inference

import (
	"fmt"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// Arrange orders inputs to match infos and checks each against the declared
// element type and shape.
func Arrange(infos []tensor.Info, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != len(infos) {
		return nil, fmt.Errorf("%w: got %d, model wants %d", ErrInputCount, len(inputs), len(infos))
	}

	ordered := inputs
	if byName(infos, inputs) {
		index := make(map[string]*tensor.Tensor, len(inputs))
		for _, t := range inputs {
			index[t.Name] = t
		}
		ordered = make([]*tensor.Tensor, len(infos))
		for i, info := range infos {
			t, ok := index[info.Name]
			if !ok {
				return nil, fmt.Errorf("%w: model input %q not provided", ErrUnknownInput, info.Name)
			}
			ordered[i] = t
		}
	}

	for i, t := range ordered {
		info := infos[i]
		if t == nil {
			return nil, fmt.Errorf("%w: input %d (%s) is nil", ErrInputCount, i, info.Name)
		}
		if info.Type != tensor.Undefined && t.Type != info.Type {
			return nil, fmt.Errorf("%w: input %s is %s, model wants %s", tensor.ErrTypeMismatch, info.Name, t.Type, info.Type)
		}
		if info.Shape != nil && !info.Shape.Accepts(t.Shape) {
			return nil, fmt.Errorf("%w: input %s has shape %s, model wants %s", tensor.ErrShapeMismatch, info.Name, t.Shape, info.Shape)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// byName reports whether every input is named after a distinct model input.
func byName(infos []tensor.Info, inputs []*tensor.Tensor) bool {
	known := make(map[string]bool, len(infos))
	for _, info := range infos {
		known[info.Name] = true
	}
	seen := make(map[string]bool, len(inputs))
	for _, t := range inputs {
		if t == nil || t.Name == "" || !known[t.Name] || seen[t.Name] {
			return false
		}
		seen[t.Name] = true
	}
	return true
}
