package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func TestEncodeDecode(t *testing.T) {
	a, err := tensor.New("a", tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := tensor.New("b", tensor.Shape{3}, []int64{7, 8, 9})
	require.NoError(t, err)

	enc, err := Encode([]*tensor.Tensor{a, b})
	require.NoError(t, err)

	got, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, a.Raw, got[0].Raw)
	assert.Equal(t, tensor.Int64, got[1].Type)
	assert.Equal(t, tensor.Shape{3}, got[1].Shape)
}

func TestDecodeTruncated(t *testing.T) {
	a, err := tensor.New("a", tensor.Shape{1}, []float32{1})
	require.NoError(t, err)
	enc, err := Encode([]*tensor.Tensor{a})
	require.NoError(t, err)

	_, err = Decode(enc[:len(enc)-1])
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	a, err := tensor.New("x", tensor.Shape{2}, []float32{1, 2})
	require.NoError(t, err)
	b, err := tensor.New("x", tensor.Shape{2}, []float32{1, 3})
	require.NoError(t, err)

	k1, err := Key("model", []*tensor.Tensor{a})
	require.NoError(t, err)
	k2, err := Key("model", []*tensor.Tensor{a})
	require.NoError(t, err)
	k3, err := Key("model", []*tensor.Tensor{b})
	require.NoError(t, err)
	k4, err := Key("other", []*tensor.Tensor{a})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(k1, keyPrefix))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.onnx")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	d, err := FileDigest(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)

	_, err = FileDigest(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("ONNXRUN_TEST_REDIS")
	if addr == "" {
		t.Skip("ONNXRUN_TEST_REDIS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := New(ctx, addr)
	require.NoError(t, err)
	defer c.Close()

	key := keyPrefix + "test:" + t.Name()
	require.NoError(t, c.Set(ctx, key, []byte("value"), time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	_, ok, err = c.Get(ctx, key+":missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
