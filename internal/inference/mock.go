package inference

import (
	"context"
	"fmt"
	"sync"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// MockInference is a mock implementation of Engine for testing.
// It returns deterministic outputs without requiring the ONNX shared library.
type MockInference struct {
	mu sync.Mutex

	InputInfos  []tensor.Info
	OutputInfos []tensor.Info
	// DefaultOutput is repeated once per batch row for every output when
	// Fn is nil.
	DefaultOutput []float32
	// Fn, when set, computes the outputs from the arranged inputs.
	Fn func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error)
	// ShouldError if true, Run will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string
	// CallCount tracks the number of times Run was called
	CallCount int
}

// NewMock creates a mock with one float input "input" of shape ?x4 and one
// float output "output" of shape ?x3 holding [0.1, 0.2, 0.3] per row.
func NewMock() *MockInference {
	return &MockInference{
		InputInfos:    []tensor.Info{{Name: "input", Type: tensor.Float, Shape: tensor.Shape{-1, 4}}},
		OutputInfos:   []tensor.Info{{Name: "output", Type: tensor.Float, Shape: tensor.Shape{-1, 3}}},
		DefaultOutput: []float32{0.1, 0.2, 0.3},
	}
}

// NewIdentityMock returns each input unchanged under the matching output
// name. infos are used for both sides, output names get an "_out" suffix.
func NewIdentityMock(infos ...tensor.Info) *MockInference {
	outs := make([]tensor.Info, len(infos))
	for i, info := range infos {
		outs[i] = info
		outs[i].Name = info.Name + "_out"
	}
	m := &MockInference{InputInfos: infos, OutputInfos: outs}
	m.Fn = func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		results := make([]*tensor.Tensor, len(inputs))
		for i, in := range inputs {
			out := *in
			out.Name = outs[i].Name
			out.Shape = in.Shape.Clone()
			out.Raw = append([]byte(nil), in.Raw...)
			results[i] = &out
		}
		return results, nil
	}
	return m
}

func (m *MockInference) Inputs() []tensor.Info  { return m.InputInfos }
func (m *MockInference) Outputs() []tensor.Info { return m.OutputInfos }

// Run validates inputs the same way Runtime does and returns the configured
// outputs.
func (m *MockInference) Run(ctx context.Context, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s", ErrRuntime, m.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: mock inference error", ErrRuntime)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered, err := Arrange(m.InputInfos, inputs)
	if err != nil {
		return nil, err
	}
	if m.Fn != nil {
		return m.Fn(ordered)
	}

	batch := int64(1)
	if len(ordered) > 0 && len(ordered[0].Shape) > 0 {
		batch = ordered[0].Shape[0]
	}
	results := make([]*tensor.Tensor, len(m.OutputInfos))
	for i, info := range m.OutputInfos {
		data := make([]float32, 0, int(batch)*len(m.DefaultOutput))
		for b := int64(0); b < batch; b++ {
			data = append(data, m.DefaultOutput...)
		}
		t, err := tensor.New(info.Name, tensor.Shape{batch, int64(len(m.DefaultOutput))}, data)
		if err != nil {
			return nil, err
		}
		results[i] = t
	}
	return results, nil
}

// Close is a no-op for the mock implementation
func (m *MockInference) Close() error {
	return nil
}

// SetError configures the mock to return an error on the next Run call
func (m *MockInference) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = true
	m.ErrorMessage = msg
}

// ClearError clears any configured error
func (m *MockInference) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Calls returns CallCount under the lock.
func (m *MockInference) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Ensure MockInference implements Engine at compile time
var _ Engine = (*MockInference)(nil)
