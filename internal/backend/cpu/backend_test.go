package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

func raw32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestAddBroadcastBias(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2})
	bias := raw32(t, []float32{10, 20}, tensor.Shape{1, 2, 1, 1})

	got := b.Add(x, bias)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, got.Shape())
	assert.Equal(t, []float32{11, 12, 13, 14, 25, 26, 27, 28}, got.AsFloat32())
}

func TestSubSameShape(t *testing.T) {
	b := New()
	x := raw32(t, []float32{5, 7, 9}, tensor.Shape{3})
	y := raw32(t, []float32{1, 2, 3}, tensor.Shape{3})
	assert.Equal(t, []float32{4, 5, 6}, b.Sub(x, y).AsFloat32())
}

func TestMulDivScalar(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3}, tensor.Shape{3})
	assert.Equal(t, []float32{2, 4, 6}, b.MulScalar(x, 2).AsFloat32())
	assert.Equal(t, []float32{3, 4, 5}, b.AddScalar(x, 2).AsFloat32())
}

func TestReLUSigmoid(t *testing.T) {
	b := New()
	x := raw32(t, []float32{-1, 0, 2}, tensor.Shape{3})
	assert.Equal(t, []float32{0, 0, 2}, b.ReLU(x).AsFloat32())

	s := b.Sigmoid(raw32(t, []float32{0}, tensor.Shape{1})).AsFloat32()
	assert.InDelta(t, 0.5, s[0], 1e-6)
}

func TestSumMean(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	assert.Equal(t, float32(10), b.Sum(x).AsFloat32()[0])
	assert.InDelta(t, 2.5, b.Mean(x).AsFloat32()[0], 1e-6)
}

func TestConv2DKnownValues(t *testing.T) {
	b := New()
	// 1x1x3x3 input, 1x1x2x2 kernel of ones: each output is the window sum.
	input := raw32(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := raw32(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	out := b.Conv2D(input, kernel, 1, 0)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{12, 16, 24, 28}, out.AsFloat32())
}

func TestConv2DPaddingPreservesSize(t *testing.T) {
	b := New()
	input := raw32(t, make([]float32, 2*3*8*8), tensor.Shape{2, 3, 8, 8})
	kernel := raw32(t, make([]float32, 4*3*3*3), tensor.Shape{4, 3, 3, 3})

	out := b.Conv2D(input, kernel, 1, 1)
	assert.Equal(t, tensor.Shape{2, 4, 8, 8}, out.Shape())
}

func TestConv2DStride(t *testing.T) {
	b := New()
	input := raw32(t, []float32{
		1, 0, 2, 0,
		0, 0, 0, 0,
		3, 0, 4, 0,
		0, 0, 0, 0,
	}, tensor.Shape{1, 1, 4, 4})
	kernel := raw32(t, []float32{1, 0, 0, 0}, tensor.Shape{1, 1, 2, 2})

	out := b.Conv2D(input, kernel, 2, 0)
	assert.Equal(t, []float32{1, 2, 3, 4}, out.AsFloat32())
}

func TestConv2DBackwardShapes(t *testing.T) {
	b := New()
	input := raw32(t, make([]float32, 1*2*5*5), tensor.Shape{1, 2, 5, 5})
	kernel := raw32(t, make([]float32, 3*2*3*3), tensor.Shape{3, 2, 3, 3})
	out := b.Conv2D(input, kernel, 1, 1)
	grad := raw32(t, make([]float32, out.NumElements()), out.Shape())

	gin := b.Conv2DInputBackward(input, kernel, grad, 1, 1)
	gk := b.Conv2DKernelBackward(input, kernel, grad, 1, 1)
	assert.Equal(t, input.Shape(), gin.Shape())
	assert.Equal(t, kernel.Shape(), gk.Shape())
}

func TestConv2DKernelBackwardKnownValues(t *testing.T) {
	b := New()
	// 1x1 kernel: dL/dk = sum(input * grad).
	input := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	kernel := raw32(t, []float32{2}, tensor.Shape{1, 1, 1, 1})
	grad := raw32(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	gk := b.Conv2DKernelBackward(input, kernel, grad, 1, 0)
	assert.Equal(t, []float32{10}, gk.AsFloat32())

	gin := b.Conv2DInputBackward(input, kernel, grad, 1, 0)
	assert.Equal(t, []float32{2, 2, 2, 2}, gin.AsFloat32())
}

func TestConvTranspose2DKnownValues(t *testing.T) {
	b := New()
	// Kernel of ones, stride 2: each input value paints a 2x2 block.
	input := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	kernel := raw32(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	out := b.ConvTranspose2D(input, kernel, 2)
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, out.Shape())
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, out.AsFloat32())
}

func TestConvTranspose2DBackwardShapes(t *testing.T) {
	b := New()
	input := raw32(t, make([]float32, 1*4*3*3), tensor.Shape{1, 4, 3, 3})
	kernel := raw32(t, make([]float32, 4*2*2*2), tensor.Shape{4, 2, 2, 2})
	out := b.ConvTranspose2D(input, kernel, 2)
	assert.Equal(t, tensor.Shape{1, 2, 6, 6}, out.Shape())

	grad := raw32(t, make([]float32, out.NumElements()), out.Shape())
	assert.Equal(t, input.Shape(), b.ConvTranspose2DInputBackward(input, kernel, grad, 2).Shape())
	assert.Equal(t, kernel.Shape(), b.ConvTranspose2DKernelBackward(input, kernel, grad, 2).Shape())
}

func TestMaxPool2D(t *testing.T) {
	b := New()
	input := raw32(t, []float32{
		1, 3, 2, 4,
		5, 6, 8, 7,
		9, 2, 1, 0,
		3, 4, 5, 6,
	}, tensor.Shape{1, 1, 4, 4})

	out := b.MaxPool2D(input, 2, 2)
	assert.Equal(t, []float32{6, 8, 9, 6}, out.AsFloat32())

	idx := b.MaxPool2DArgmax(input, 2, 2)
	assert.Equal(t, []int{5, 6, 8, 15}, idx)

	grad := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	gin := b.MaxPool2DBackward(input, grad, idx)
	want := make([]float32, 16)
	want[5], want[6], want[8], want[15] = 1, 2, 3, 4
	assert.Equal(t, want, gin.AsFloat32())
}

func TestCatChannels(t *testing.T) {
	b := New()
	a := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	c := raw32(t, []float32{5, 6, 7, 8}, tensor.Shape{1, 1, 2, 2})

	out := b.Cat([]*tensor.RawTensor{a, c}, 1)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, out.AsFloat32())
}

func TestNarrowInvertsCat(t *testing.T) {
	b := New()
	a := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 1, 1, 2})
	c := raw32(t, []float32{5, 6, 7, 8, 9, 10, 11, 12}, tensor.Shape{2, 3, 1, 2})

	cat := b.Cat([]*tensor.RawTensor{a, c}, 1)
	assert.Equal(t, tensor.Shape{2, 4, 1, 2}, cat.Shape())

	backA := b.Narrow(cat, 1, 0, 1)
	backC := b.Narrow(cat, 1, 1, 3)
	assert.Equal(t, a.AsFloat32(), backA.AsFloat32())
	assert.Equal(t, c.AsFloat32(), backC.AsFloat32())
}

func TestReshapeCopies(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := b.Reshape(x, tensor.Shape{4})
	y.AsFloat32()[0] = 99
	assert.Equal(t, float32(1), x.AsFloat32()[0])
}
