package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func floatTensor(t *testing.T, name string, shape tensor.Shape, data ...float32) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.New(name, shape, data)
	if err != nil {
		t.Fatalf("tensor.New failed: %v", err)
	}
	return tt
}

func TestMockInference_Run(t *testing.T) {
	mock := NewMock()

	in := floatTensor(t, "input", tensor.Shape{2, 4},
		0.1, 0.2, 0.3, 0.4,
		0.5, 0.6, 0.7, 0.8,
	)

	outs, err := mock.Run(context.Background(), []*tensor.Tensor{in})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("Expected 1 output, got %d", len(outs))
	}

	got, err := tensor.Values[float32](outs[0])
	if err != nil {
		t.Fatalf("Values failed: %v", err)
	}

	// 2 rows * [0.1, 0.2, 0.3]
	expected := []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Output[%d] = %f, expected %f", i, got[i], expected[i])
		}
	}
	if !outs[0].Shape.Equal(tensor.Shape{2, 3}) {
		t.Errorf("Expected shape 2x3, got %s", outs[0].Shape)
	}

	if mock.CallCount != 1 {
		t.Errorf("Expected CallCount=1, got %d", mock.CallCount)
	}
}

func TestMockInference_RunError(t *testing.T) {
	mock := NewMock()
	mock.SetError("test error")

	in := floatTensor(t, "input", tensor.Shape{1, 4}, 0.1, 0.2, 0.3, 0.4)
	_, err := mock.Run(context.Background(), []*tensor.Tensor{in})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrRuntime) {
		t.Errorf("Expected ErrRuntime, got %v", err)
	}

	mock.ClearError()
	if _, err := mock.Run(context.Background(), []*tensor.Tensor{in}); err != nil {
		t.Errorf("Expected success after ClearError, got %v", err)
	}
}

func TestMockInference_NoInputs(t *testing.T) {
	mock := NewMock()
	_, err := mock.Run(context.Background(), nil)
	if !errors.Is(err, ErrInputCount) {
		t.Fatalf("Expected ErrInputCount, got %v", err)
	}
}

func TestMockInference_WrongShape(t *testing.T) {
	mock := NewMock()
	in := floatTensor(t, "input", tensor.Shape{1, 2}, 0.1, 0.2)

	_, err := mock.Run(context.Background(), []*tensor.Tensor{in})
	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Fatalf("Expected ErrShapeMismatch, got %v", err)
	}
}

func TestMockInference_WrongType(t *testing.T) {
	mock := NewMock()
	in, err := tensor.New("input", tensor.Shape{1, 4}, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	_, err = mock.Run(context.Background(), []*tensor.Tensor{in})
	if !errors.Is(err, tensor.ErrTypeMismatch) {
		t.Fatalf("Expected ErrTypeMismatch, got %v", err)
	}
}

func TestMockInference_CanceledContext(t *testing.T) {
	mock := NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := floatTensor(t, "input", tensor.Shape{1, 4}, 0.1, 0.2, 0.3, 0.4)
	if _, err := mock.Run(ctx, []*tensor.Tensor{in}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestArrangeByName(t *testing.T) {
	infos := []tensor.Info{
		{Name: "a", Type: tensor.Float, Shape: tensor.Shape{1}},
		{Name: "b", Type: tensor.Float, Shape: tensor.Shape{2}},
	}
	a := floatTensor(t, "a", tensor.Shape{1}, 1)
	b := floatTensor(t, "b", tensor.Shape{2}, 2, 3)

	ordered, err := Arrange(infos, []*tensor.Tensor{b, a})
	if err != nil {
		t.Fatalf("Arrange failed: %v", err)
	}
	if ordered[0] != a || ordered[1] != b {
		t.Errorf("Expected inputs reordered by name")
	}
}

func TestArrangeByPosition(t *testing.T) {
	infos := []tensor.Info{
		{Name: "a", Type: tensor.Float, Shape: tensor.Shape{1}},
		{Name: "b", Type: tensor.Float, Shape: tensor.Shape{2}},
	}
	// model zoo files often carry names that do not match the graph
	x := floatTensor(t, "data_0", tensor.Shape{1}, 1)
	y := floatTensor(t, "", tensor.Shape{2}, 2, 3)

	ordered, err := Arrange(infos, []*tensor.Tensor{x, y})
	if err != nil {
		t.Fatalf("Arrange failed: %v", err)
	}
	if ordered[0] != x || ordered[1] != y {
		t.Errorf("Expected positional order to be kept")
	}
}

func TestIdentityMock(t *testing.T) {
	mock := NewIdentityMock(tensor.Info{Name: "x", Type: tensor.Float, Shape: tensor.Shape{-1}})
	in := floatTensor(t, "x", tensor.Shape{3}, 1, 2, 3)

	outs, err := mock.Run(context.Background(), []*tensor.Tensor{in})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outs[0].Name != "x_out" {
		t.Errorf("Expected output name x_out, got %s", outs[0].Name)
	}
	got, _ := tensor.Values[float32](outs[0])
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("Expected identity output, got %v", got)
	}
}
