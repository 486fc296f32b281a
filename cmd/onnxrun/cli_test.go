package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/onnxrun/internal/dataset"
	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/runner"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	a, err := tensor.New("probs", tensor.Shape{1, 4}, []float32{0.5, -1, 2, 0})
	require.NoError(t, err)
	path := filepath.Join(dir, "output_0.pb")
	require.NoError(t, onnxpb.WriteTensorFile(path, a))

	out, err := execute(t, "dump", "--print-count", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "probs")
	assert.Contains(t, out, "float32")
	assert.Contains(t, out, "1x4")
	assert.Contains(t, out, "[0.5 -1 ...]")
	// min, max
	assert.Contains(t, out, "-1")
	assert.Contains(t, out, "2")
}

func TestDumpMissingFile(t *testing.T) {
	_, err := execute(t, "dump", filepath.Join(t.TempDir(), "nope.pb"))
	assert.Error(t, err)
}

func TestDumpIgnoresServePorts(t *testing.T) {
	t.Setenv("ONNXRUN_PORT", "0")
	a, err := tensor.New("x", tensor.Shape{2}, []float32{1, 2})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input_0.pb")
	require.NoError(t, onnxpb.WriteTensorFile(path, a))

	_, err = execute(t, "dump", path)
	require.NoError(t, err)

	_, err = execute(t, "serve", "--mock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func writeMockSet(t *testing.T, dir string, index int, expected []float32) {
	t.Helper()
	in, err := tensor.New("input", tensor.Shape{1, 4}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	ref, err := tensor.New("output", tensor.Shape{1, 3}, expected)
	require.NoError(t, err)
	_, err = dataset.Write(dir, index, []*tensor.Tensor{in}, []*tensor.Tensor{ref})
	require.NoError(t, err)
}

func TestTestCommandPasses(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "mock.onnx")
	writeMockSet(t, dir, 0, []float32{0.1, 0.2, 0.3})

	out, err := execute(t, "test", "--mock", model)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "1 of 1 test sets passed")
}

func TestTestCommandFails(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "mock.onnx")
	writeMockSet(t, dir, 0, []float32{0.1, 0.2, 0.3})
	writeMockSet(t, dir, 1, []float32{0.1, 0.2, 0.4})

	out, err := execute(t, "test", "--mock", "--data", dir, model)
	require.Error(t, err)
	assert.True(t, errors.Is(err, runner.ErrComparisonFailed))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "1 of 2 test sets passed")
}

func TestTestCommandLooseDecimal(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "mock.onnx")
	writeMockSet(t, dir, 0, []float32{0.1, 0.2, 0.31})

	_, err := execute(t, "test", "--mock", "--decimal", "1", model)
	assert.NoError(t, err)
}

func TestTestCommandNoData(t *testing.T) {
	_, err := execute(t, "test", "--mock", filepath.Join(t.TempDir(), "model.onnx"))
	assert.ErrorIs(t, err, dataset.ErrNoTestData)
}

func TestGenThenTest(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "resnet-7.onnx")

	out, err := execute(t, "gen", "--mock", "--count", "2", "--seed", "3", model)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "test_data_set_"))

	// gen writes to <dir>/<stem>, test finds it from the model path
	_, err = os.Stat(filepath.Join(dir, "resnet-7", "test_data_set_1", "output_0.pb"))
	require.NoError(t, err)

	out, err = execute(t, "test", "--mock", model)
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 2 test sets passed")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--mock", "--top", "1", "--distribution", "range", "unused.onnx")
	require.NoError(t, err)
	assert.Contains(t, out, "inference took")
	assert.Contains(t, out, "output")
	assert.Contains(t, out, "[0.1 0.2 0.3]")
	assert.Contains(t, out, "top 1 of output: 2 (0.3)")
}

func TestRunCommandWithInputFile(t *testing.T) {
	dir := t.TempDir()
	in, err := tensor.New("input", tensor.Shape{2, 4}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	path := filepath.Join(dir, "input_0.pb")
	require.NoError(t, onnxpb.WriteTensorFile(path, in))

	save := filepath.Join(dir, "out")
	out, err := execute(t, "run", "--mock", "-i", path, "--save", save, "unused.onnx")
	require.NoError(t, err)
	assert.Contains(t, out, "2x3")

	saved, err := onnxpb.ReadTensorFile(filepath.Join(save, "output_0.pb"))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, saved.Shape)
}

func TestRunCommandBadDistribution(t *testing.T) {
	_, err := execute(t, "run", "--mock", "--distribution", "poisson", "unused.onnx")
	assert.Error(t, err)
}

func TestFormatHead(t *testing.T) {
	a, err := tensor.New("a", tensor.Shape{3}, []int32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "[1 2 ...]", formatHead(a, 2))
	assert.Equal(t, "[1 2 3]", formatHead(a, 5))
	assert.Equal(t, "", formatHead(a, 0))

	s, err := tensor.NewStrings("s", tensor.Shape{2}, [][]byte{[]byte("x"), []byte("y")})
	require.NoError(t, err)
	assert.Equal(t, `["x" ...]`, formatHead(s, 1))
}
