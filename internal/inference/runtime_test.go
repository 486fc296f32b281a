package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func message(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func str(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func varint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// valueInfo builds a ValueInfoProto. A negative dim is written as the
// symbolic dim "N".
func valueInfo(name string, elem tensor.DataType, dims ...int64) []byte {
	var shape []byte
	for _, d := range dims {
		if d < 0 {
			shape = message(shape, 1, str(nil, 2, "N"))
		} else {
			shape = message(shape, 1, varint(nil, 1, uint64(d)))
		}
	}
	var tt []byte
	tt = varint(tt, 1, uint64(elem))
	tt = message(tt, 2, shape)

	var vi []byte
	vi = str(vi, 1, name)
	return message(vi, 2, message(nil, 1, tt))
}

func identityNode(in, out string) []byte {
	var n []byte
	n = str(n, 1, in)
	n = str(n, 2, out)
	n = str(n, 3, "id_"+in)
	return str(n, 4, "Identity")
}

// writeIdentityModel writes a three-branch Identity model: a static float
// tensor, a static float16 tensor and an int64 tensor with a dynamic dim.
func writeIdentityModel(t *testing.T) string {
	t.Helper()

	var graph []byte
	graph = message(graph, 1, identityNode("x", "y"))
	graph = message(graph, 1, identityNode("h", "hy"))
	graph = message(graph, 1, identityNode("d", "dy"))
	graph = str(graph, 2, "identity")
	graph = message(graph, 11, valueInfo("x", tensor.Float, 2, 3))
	graph = message(graph, 11, valueInfo("h", tensor.Float16, 4))
	graph = message(graph, 11, valueInfo("d", tensor.Int64, -1))
	graph = message(graph, 12, valueInfo("y", tensor.Float, 2, 3))
	graph = message(graph, 12, valueInfo("hy", tensor.Float16, 4))
	graph = message(graph, 12, valueInfo("dy", tensor.Int64, -1))

	var opset []byte
	opset = str(opset, 1, "")
	opset = varint(opset, 2, 13)

	var m []byte
	m = varint(m, 1, 8)
	m = str(m, 2, "onnxrun-test")
	m = message(m, 7, graph)
	m = message(m, 8, opset)

	path := filepath.Join(t.TempDir(), "identity.onnx")
	if err := os.WriteFile(path, m, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

// requireRuntime skips the test when the onnxruntime shared library cannot
// be loaded.
func requireRuntime(t *testing.T) {
	t.Helper()
	if err := InitRuntime(os.Getenv("ONNXRUN_LIBRARY_PATH")); err != nil {
		t.Skipf("Skipping: onnxruntime not available: %v", err)
	}
}

func TestRealInference_Identity(t *testing.T) {
	requireRuntime(t)
	path := writeIdentityModel(t)

	rt, err := New(path, Options{IntraOpThreads: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer rt.Close()

	ins := rt.Inputs()
	if len(ins) != 3 || len(rt.Outputs()) != 3 {
		t.Fatalf("Expected 3 inputs and 3 outputs, got %d and %d", len(ins), len(rt.Outputs()))
	}
	if ins[1].Type != tensor.Float16 {
		t.Errorf("Expected h to be float16, got %s", ins[1].Type)
	}
	if !ins[2].Shape.Equal(tensor.Shape{-1}) {
		t.Errorf("Expected d to have a dynamic dim, got %s", ins[2].Shape)
	}

	x := floatTensor(t, "x", tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	h, err := tensor.FromFloat64s("h", tensor.Float16, tensor.Shape{4}, []float64{0.5, -1, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	d, err := tensor.New("d", tensor.Shape{5}, []int64{9, 8, 7, 6, 5})
	if err != nil {
		t.Fatal(err)
	}

	// Inputs are matched by name, not position.
	outs, err := rt.Run(context.Background(), []*tensor.Tensor{d, h, x})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	y, err := tensor.Values[float32](outs[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(y) != 6 || y[5] != 6 || !outs[0].Shape.Equal(tensor.Shape{2, 3}) {
		t.Errorf("Unexpected y: %v %s", y, outs[0].Shape)
	}

	hy, err := outs[1].Float64s()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5, -1, 2, 0}
	if len(hy) != len(want) {
		t.Fatalf("Expected %d float16 values, got %d", len(want), len(hy))
	}
	for i := range want {
		if hy[i] != want[i] {
			t.Errorf("hy[%d] = %v, want %v", i, hy[i], want[i])
		}
	}

	dy, err := tensor.Values[int64](outs[2])
	if err != nil {
		t.Fatal(err)
	}
	if len(dy) != 5 || dy[0] != 9 || dy[4] != 5 {
		t.Errorf("Unexpected dy: %v", dy)
	}
}

func TestRealInference_ClosedRuntime(t *testing.T) {
	requireRuntime(t)

	rt, err := New(writeIdentityModel(t), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if _, err := rt.Run(context.Background(), nil); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestRuntimeReinitAfterShutdown(t *testing.T) {
	requireRuntime(t)

	if err := ShutdownRuntime(); err != nil {
		t.Fatalf("ShutdownRuntime failed: %v", err)
	}
	if err := ShutdownRuntime(); err != nil {
		t.Errorf("Second ShutdownRuntime should be a no-op, got %v", err)
	}
	if err := InitRuntime(os.Getenv("ONNXRUN_LIBRARY_PATH")); err != nil {
		t.Fatalf("InitRuntime after shutdown failed: %v", err)
	}
	if err := InitRuntime(""); err != nil {
		t.Errorf("InitRuntime while up should be a no-op, got %v", err)
	}

	rt, err := New(writeIdentityModel(t), Options{})
	if err != nil {
		t.Fatalf("New after reinit failed: %v", err)
	}
	defer rt.Close()
	outs, err := rt.Run(context.Background(), []*tensor.Tensor{
		floatTensor(t, "x", tensor.Shape{2, 3}, 1, 1, 1, 1, 1, 1),
		mustFloat16(t, "h", 1, 1, 1, 1),
		mustInt64(t, "d", 3),
	})
	if err != nil {
		t.Fatalf("Run after reinit failed: %v", err)
	}
	if len(outs) != 3 {
		t.Errorf("Expected 3 outputs, got %d", len(outs))
	}
}

func TestNewOutputSkipsUnknownShapes(t *testing.T) {
	for _, info := range []tensor.Info{
		{Name: "dyn", Type: tensor.Float, Shape: tensor.Shape{-1, 4}},
		{Name: "scalar", Type: tensor.Float, Shape: tensor.Shape{}},
		{Name: "empty", Type: tensor.Float, Shape: tensor.Shape{0, 4}},
	} {
		v, err := newOutput(info)
		if err != nil || v != nil {
			t.Errorf("%s: expected nil output, got %v, %v", info.Name, v, err)
		}
	}
}

func mustFloat16(t *testing.T, name string, vals ...float64) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromFloat64s(name, tensor.Float16, tensor.Shape{int64(len(vals))}, vals)
	if err != nil {
		t.Fatal(err)
	}
	return tt
}

func mustInt64(t *testing.T, name string, vals ...int64) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.New(name, tensor.Shape{int64(len(vals))}, vals)
	if err != nil {
		t.Fatal(err)
	}
	return tt
}
