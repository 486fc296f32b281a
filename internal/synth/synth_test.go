package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

var imageInput = tensor.Info{Name: "data", Type: tensor.Float, Shape: tensor.Shape{-1, 3, 4, 4}}

func TestUniformIsSeededAndBounded(t *testing.T) {
	g1, err := NewGenerator(Options{Distribution: Uniform, Seed: 7, Low: -1, High: 1})
	require.NoError(t, err)
	g2, err := NewGenerator(Options{Distribution: Uniform, Seed: 7, Low: -1, High: 1})
	require.NoError(t, err)

	a, err := g1.Tensor(imageInput)
	require.NoError(t, err)
	b, err := g2.Tensor(imageInput)
	require.NoError(t, err)
	assert.Equal(t, a.Raw, b.Raw)
	assert.Equal(t, tensor.Shape{1, 3, 4, 4}, a.Shape)

	vals, err := a.Float64s()
	require.NoError(t, err)
	for _, v := range vals {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
	}
}

func TestDynamicDim(t *testing.T) {
	g, err := NewGenerator(Options{Distribution: Zeros, DynamicDim: 8})
	require.NoError(t, err)
	out, err := g.Tensor(imageInput)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{8, 3, 4, 4}, out.Shape)
	assert.Equal(t, 8*3*4*4, out.Len())
}

func TestRangeIntTypes(t *testing.T) {
	g, err := NewGenerator(Options{Distribution: Range})
	require.NoError(t, err)
	out, err := g.Tensor(tensor.Info{Name: "ids", Type: tensor.Int64, Shape: tensor.Shape{1, 300}})
	require.NoError(t, err)
	ids, err := tensor.Values[int64](out)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ids[0])
	assert.Equal(t, int64(255), ids[255])
	assert.Equal(t, int64(0), ids[256])
}

func TestRangeSaturatesNarrowTypes(t *testing.T) {
	g, err := NewGenerator(Options{Distribution: Range})
	require.NoError(t, err)
	out, err := g.Tensor(tensor.Info{Name: "q", Type: tensor.Int8, Shape: tensor.Shape{200}})
	require.NoError(t, err)
	q, err := tensor.Values[int8](out)
	require.NoError(t, err)
	assert.Equal(t, int8(126), q[126])
	assert.Equal(t, int8(127), q[127])
	assert.Equal(t, int8(127), q[199])
}

func TestOversizedShapeRejected(t *testing.T) {
	g, err := NewGenerator(Options{Distribution: Zeros})
	require.NoError(t, err)
	_, err = g.Tensor(tensor.Info{Name: "huge", Type: tensor.Float, Shape: tensor.Shape{1 << 32, 1 << 32}})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestForModelOnes(t *testing.T) {
	g, err := NewGenerator(Options{Distribution: Ones})
	require.NoError(t, err)
	outs, err := g.ForModel([]tensor.Info{
		{Name: "a", Type: tensor.Double, Shape: tensor.Shape{2}},
		{Name: "b", Type: tensor.Float16, Shape: tensor.Shape{3}},
	})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, o := range outs {
		vals, err := o.Float64s()
		require.NoError(t, err)
		for _, v := range vals {
			assert.Equal(t, 1.0, v)
		}
	}
}

func TestStringInputRejected(t *testing.T) {
	g, err := NewGenerator(Options{})
	require.NoError(t, err)
	_, err = g.Tensor(tensor.Info{Name: "s", Type: tensor.String, Shape: tensor.Shape{1}})
	assert.ErrorIs(t, err, tensor.ErrUnsupportedType)
}

func TestParseDistribution(t *testing.T) {
	d, err := ParseDistribution("Normal")
	require.NoError(t, err)
	assert.Equal(t, Normal, d)

	_, err = ParseDistribution("poisson")
	assert.Error(t, err)

	_, err = NewGenerator(Options{Low: 2, High: 1})
	assert.Error(t, err)
}
