package inference

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

var runtimeMu sync.Mutex

// InitRuntime loads the onnxruntime shared library and creates the process
// wide environment. It is a no-op while the environment is up. A failed
// call can be retried, and InitRuntime after ShutdownRuntime starts over.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// ShutdownRuntime destroys the environment created by InitRuntime. Call it
// after every Runtime is closed.
func ShutdownRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Options configures a Runtime session.
type Options struct {
	LibraryPath    string
	IntraOpThreads int
	InterOpThreads int
}

// Runtime wraps an onnxruntime session for thread-safe inference.
// It implements the Engine interface.
type Runtime struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	inputs  []tensor.Info
	outputs []tensor.Info
}

// New loads the model at modelPath. Input and output names come from the
// model itself.
func New(modelPath string, opts Options) (*Runtime, error) {
	if err := InitRuntime(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := Introspect(modelPath)
	if err != nil {
		return nil, err
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}
	if opts.InterOpThreads > 0 {
		if err := sessOpts.SetInterOpNumThreads(opts.InterOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, names(inputs), names(outputs), sessOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Runtime{
		session: session,
		inputs:  inputs,
		outputs: outputs,
	}, nil
}

// Introspect asks onnxruntime for the model's input and output metadata.
// Dynamic dims come back as -1.
func Introspect(modelPath string) ([]tensor.Info, []tensor.Info, error) {
	ins, outs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model info: %w", err)
	}
	return infos(ins), infos(outs), nil
}

func infos(in []ort.InputOutputInfo) []tensor.Info {
	out := make([]tensor.Info, len(in))
	for i, info := range in {
		out[i] = tensor.Info{
			Name:  info.Name,
			Type:  tensor.DataType(info.DataType),
			Shape: append(tensor.Shape(nil), info.Dimensions...),
		}
	}
	return out
}

func names(infos []tensor.Info) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

func (r *Runtime) Inputs() []tensor.Info  { return r.inputs }
func (r *Runtime) Outputs() []tensor.Info { return r.outputs }

// Run performs a single inference. Outputs with a fully known shape are
// preallocated, the rest are allocated by onnxruntime. Both are copied out
// and released before Run returns. onnxruntime cannot be interrupted, so
// ctx is only checked before the call.
func (r *Runtime) Run(ctx context.Context, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil, ErrClosed
	}

	ordered, err := Arrange(r.inputs, inputs)
	if err != nil {
		return nil, err
	}

	in := make([]ort.ArbitraryTensor, len(ordered))
	defer destroy(in)
	for i, t := range ordered {
		if in[i], err = toValue(t); err != nil {
			return nil, fmt.Errorf("failed to create input tensor %s: %w", t.Name, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]ort.ArbitraryTensor, len(r.outputs))
	defer destroy(out)
	for i, info := range r.outputs {
		if out[i], err = newOutput(info); err != nil {
			return nil, fmt.Errorf("failed to allocate output %s: %w", info.Name, err)
		}
	}
	if err := r.session.Run(in, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntime, err)
	}

	results := make([]*tensor.Tensor, len(out))
	for i, v := range out {
		if results[i], err = fromValue(r.outputs[i], v); err != nil {
			return nil, fmt.Errorf("failed to read output %s: %w", r.outputs[i].Name, err)
		}
	}
	return results, nil
}

// Close releases the session.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func destroy(values []ort.ArbitraryTensor) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

type ortNumeric interface {
	float32 | float64 | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64
}

func newTensor[T ortNumeric](t *tensor.Tensor) (ort.ArbitraryTensor, error) {
	data, err := tensor.Values[T](t)
	if err != nil {
		return nil, err
	}
	v, err := ort.NewTensor(ort.NewShape(t.Shape...), data)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func toValue(t *tensor.Tensor) (ort.ArbitraryTensor, error) {
	switch t.Type {
	case tensor.Float:
		return newTensor[float32](t)
	case tensor.Double:
		return newTensor[float64](t)
	case tensor.Int8:
		return newTensor[int8](t)
	case tensor.Uint8:
		return newTensor[uint8](t)
	case tensor.Int16:
		return newTensor[int16](t)
	case tensor.Uint16:
		return newTensor[uint16](t)
	case tensor.Int32:
		return newTensor[int32](t)
	case tensor.Uint32:
		return newTensor[uint32](t)
	case tensor.Int64:
		return newTensor[int64](t)
	case tensor.Uint64:
		return newTensor[uint64](t)
	case tensor.Bool, tensor.Float16, tensor.BFloat16:
		v, err := ort.NewCustomDataTensor(ort.NewShape(t.Shape...), t.Raw, ort.TensorElementDataType(t.Type))
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", tensor.ErrUnsupportedType, t.Type)
}

// emptyTensor keeps a failed allocation from turning into a non-nil
// interface holding a nil pointer.
func emptyTensor[T ortNumeric](shape tensor.Shape) (ort.ArbitraryTensor, error) {
	v, err := ort.NewEmptyTensor[T](ort.NewShape(shape...))
	if err != nil {
		return nil, err
	}
	return v, nil
}

// newOutput preallocates an output buffer when info's shape is fully known.
// It returns nil for dynamic, empty or rank-0 shapes, which onnxruntime_go
// cannot preallocate; the session allocates those itself.
func newOutput(info tensor.Info) (ort.ArbitraryTensor, error) {
	if len(info.Shape) == 0 || info.Shape.Size() <= 0 {
		return nil, nil
	}
	switch info.Type {
	case tensor.Float:
		return emptyTensor[float32](info.Shape)
	case tensor.Double:
		return emptyTensor[float64](info.Shape)
	case tensor.Int8:
		return emptyTensor[int8](info.Shape)
	case tensor.Uint8:
		return emptyTensor[uint8](info.Shape)
	case tensor.Int16:
		return emptyTensor[int16](info.Shape)
	case tensor.Uint16:
		return emptyTensor[uint16](info.Shape)
	case tensor.Int32:
		return emptyTensor[int32](info.Shape)
	case tensor.Uint32:
		return emptyTensor[uint32](info.Shape)
	case tensor.Int64:
		return emptyTensor[int64](info.Shape)
	case tensor.Uint64:
		return emptyTensor[uint64](info.Shape)
	case tensor.Bool, tensor.Float16, tensor.BFloat16:
		raw := make([]byte, info.Shape.Size()*info.Type.Size())
		v, err := ort.NewCustomDataTensor(ort.NewShape(info.Shape...), raw, ort.TensorElementDataType(info.Type))
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

func fromValue(info tensor.Info, v ort.ArbitraryTensor) (*tensor.Tensor, error) {
	switch tv := v.(type) {
	case *ort.Tensor[float32]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[float64]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[int8]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[uint8]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[int16]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[uint16]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[int32]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[uint32]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[int64]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.Tensor[uint64]:
		return tensor.New(info.Name, tensor.Shape(tv.GetShape()), tv.GetData())
	case *ort.CustomDataTensor:
		t := &tensor.Tensor{
			Name:  info.Name,
			Type:  info.Type,
			Shape: tensor.Shape(tv.GetShape()),
			Raw:   append([]byte(nil), tv.GetData()...),
		}
		if err := t.Validate(); err != nil {
			// onnxruntime_go sizes runtime-allocated custom outputs by
			// element count, so multi-byte ones come back short.
			return nil, fmt.Errorf("%w: dynamic %s output: %v", tensor.ErrUnsupportedType, info.Type, err)
		}
		return t, nil
	case nil:
		return nil, fmt.Errorf("%w: runtime returned no value", ErrRuntime)
	}
	return nil, fmt.Errorf("%w: output value %T", tensor.ErrUnsupportedType, v)
}

// Ensure Runtime implements Engine at compile time
var _ Engine = (*Runtime)(nil)
