// Package cpu implements the tensor.Backend contract with pure Go kernels.
// Convolution and pooling kernels parallelize over the batch dimension.
package cpu

import (
	"fmt"

	"github.com/vesselseg-ml/vesselseg/internal/parallel"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Backend is the CPU compute backend. The zero value is not usable; call New.
type Backend struct {
	pcfg parallel.Config
}

// New creates a CPU backend with default parallelism.
func New() *Backend {
	return &Backend{pcfg: parallel.DefaultConfig()}
}

// Name returns the backend name.
func (b *Backend) Name() string { return "cpu" }

// Device returns the device this backend computes on.
func (b *Backend) Device() tensor.Device { return tensor.CPU }

func mustRaw(shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		panic(err)
	}
	return r
}

// broadcastStrides returns strides for iterating src as if it had the
// broadcast shape: axes of size 1 (or missing) get stride 0.
func broadcastStrides(src, out tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for i := range out {
		j := i - offset
		if j < 0 || src[j] == 1 {
			strides[i] = 0
		} else {
			strides[i] = srcStrides[j]
		}
	}
	return strides
}

// binaryOp applies f element-wise over a and b with broadcasting.
func binaryOp[T tensor.DType](a, b, out *tensor.RawTensor, av, bv, ov []T, f func(x, y T) T) {
	if a.Shape().Equal(b.Shape()) {
		for i := range ov {
			ov[i] = f(av[i], bv[i])
		}
		return
	}
	outShape := out.Shape()
	as := broadcastStrides(a.Shape(), outShape)
	bs := broadcastStrides(b.Shape(), outShape)
	idx := make([]int, len(outShape))
	for i := range ov {
		ao, bo := 0, 0
		for d := range idx {
			ao += idx[d] * as[d]
			bo += idx[d] * bs[d]
		}
		ov[i] = f(av[ao], bv[bo])
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

func (b *Backend) binary(a, c *tensor.RawTensor, f32 func(x, y float32) float32, f64 func(x, y float64) float64) *tensor.RawTensor {
	if a.DType() != c.DType() {
		panic(fmt.Sprintf("dtype mismatch: %s vs %s", a.DType(), c.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), c.Shape())
	if err != nil {
		panic(err)
	}
	out := mustRaw(outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		binaryOp(a, c, out, a.AsFloat32(), c.AsFloat32(), out.AsFloat32(), f32)
	case tensor.Float64:
		binaryOp(a, c, out, a.AsFloat64(), c.AsFloat64(), out.AsFloat64(), f64)
	default:
		panic("unsupported dtype")
	}
	return out
}

func (b *Backend) unary(x *tensor.RawTensor, f32 func(v float32) float32, f64 func(v float64) float64) *tensor.RawTensor {
	out := mustRaw(x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		xv, ov := x.AsFloat32(), out.AsFloat32()
		for i := range ov {
			ov[i] = f32(xv[i])
		}
	case tensor.Float64:
		xv, ov := x.AsFloat64(), out.AsFloat64()
		for i := range ov {
			ov[i] = f64(xv[i])
		}
	default:
		panic("unsupported dtype")
	}
	return out
}

// Add performs element-wise addition with broadcasting.
func (b *Backend) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(a, c,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (b *Backend) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(a, c,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (b *Backend) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(a, c,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (b *Backend) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(a, c,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// AddScalar adds a scalar to every element.
func (b *Backend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 { return v + float32(s) },
		func(v float64) float64 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (b *Backend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 { return v * float32(s) },
		func(v float64) float64 { return v * s })
}
