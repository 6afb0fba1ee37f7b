package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaw(t *testing.T) {
	r, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, r.Shape())
	assert.Equal(t, 6, r.NumElements())
	assert.Equal(t, 24, r.ByteSize())
	assert.Equal(t, Float32, r.DType())
}

func TestRawTypedViews(t *testing.T) {
	r, err := NewRaw(Shape{4}, Float32, CPU)
	require.NoError(t, err)
	f := r.AsFloat32()
	f[2] = 7.5
	assert.Equal(t, float32(7.5), r.AsFloat32()[2])
	assert.Panics(t, func() { r.AsFloat64() })
}

func TestRawClone(t *testing.T) {
	r, err := NewRaw(Shape{3}, Float64, CPU)
	require.NoError(t, err)
	r.AsFloat64()[0] = 1.5
	c := r.Clone()
	c.AsFloat64()[0] = 9.0
	assert.Equal(t, 1.5, r.AsFloat64()[0])
	assert.Equal(t, 9.0, c.AsFloat64()[0])
}

func TestRawWithShape(t *testing.T) {
	r, err := NewRaw(Shape{2, 6}, Float32, CPU)
	require.NoError(t, err)
	v := r.WithShape(Shape{3, 4})
	v.AsFloat32()[0] = 2.0
	assert.Equal(t, float32(2.0), r.AsFloat32()[0])
	assert.Panics(t, func() { r.WithShape(Shape{5, 5}) })
}
