package serialization_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselseg-ml/vesselseg/internal/serialization"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

func raw32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")

	weight := raw32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := raw32(t, []float32{0.5, -0.5}, tensor.Shape{2})

	header := serialization.Header{Epoch: 7, Step: 1234, BestDice: 0.81, LearningRate: 0.001}
	err := serialization.Save(path, header, []serialization.NamedTensor{
		{Name: "conv.weight", Tensor: weight},
		{Name: "conv.bias", Tensor: bias},
	})
	require.NoError(t, err)

	ckpt, err := serialization.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, ckpt.Header.Epoch)
	assert.Equal(t, 1234, ckpt.Header.Step)
	assert.InDelta(t, 0.81, ckpt.Header.BestDice, 1e-9)
	assert.InDelta(t, 0.001, ckpt.Header.LearningRate, 1e-9)

	w := ckpt.Tensors["conv.weight"]
	require.NotNil(t, w)
	assert.Equal(t, tensor.Shape{2, 3}, w.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.AsFloat32())

	b := ckpt.Tensors["conv.bias"]
	require.NotNil(t, b)
	assert.Equal(t, []float32{0.5, -0.5}, b.AsFloat32())
}

func TestLoadRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("NOTACKPT12345678"), 0o644))

	_, err := serialization.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := serialization.Load(filepath.Join(t.TempDir(), "nope.ckpt"))
	assert.Error(t, err)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")

	first := raw32(t, []float32{1}, tensor.Shape{1})
	require.NoError(t, serialization.Save(path, serialization.Header{Epoch: 1},
		[]serialization.NamedTensor{{Name: "w", Tensor: first}}))

	second := raw32(t, []float32{2}, tensor.Shape{1})
	require.NoError(t, serialization.Save(path, serialization.Header{Epoch: 2},
		[]serialization.NamedTensor{{Name: "w", Tensor: second}}))

	ckpt, err := serialization.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ckpt.Header.Epoch)
	assert.Equal(t, []float32{2}, ckpt.Tensors["w"].AsFloat32())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}
