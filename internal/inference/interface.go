// Package inference runs ONNX models. Engine is the seam between the
// onnxruntime binding and everything that drives it, so tests and the --mock
// flag can swap in Mock.
package inference

import (
	"context"
	"errors"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

var (
	ErrClosed       = errors.New("inference session is nil")
	ErrInputCount   = errors.New("wrong number of inputs")
	ErrUnknownInput = errors.New("unknown input name")
	ErrRuntime      = errors.New("inference failed")
)

// Engine runs a loaded model.
type Engine interface {
	// Inputs describes the tensors Run expects, in model order.
	Inputs() []tensor.Info

	// Outputs describes the tensors Run returns, in model order.
	Outputs() []tensor.Info

	// Run performs one synchronous inference. Inputs are matched to the
	// model by name when every input carries a known name, by position
	// otherwise.
	Run(ctx context.Context, inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

	// Close releases any resources held by the inference engine.
	Close() error
}
