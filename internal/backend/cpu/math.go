package cpu

import (
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Exp computes the element-wise exponential.
func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 { return float32(math.Exp(float64(v))) },
		math.Exp)
}

// Log computes the element-wise natural logarithm.
func (b *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 { return float32(math.Log(float64(v))) },
		math.Log)
}

// Sqrt computes the element-wise square root.
func (b *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 { return float32(math.Sqrt(float64(v))) },
		math.Sqrt)
}

// ReLU applies max(0, x) element-wise.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 {
			if v > 0 {
				return v
			}
			return 0
		},
		func(v float64) float64 {
			if v > 0 {
				return v
			}
			return 0
		})
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (b *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(v float32) float32 { return float32(1.0 / (1.0 + math.Exp(-float64(v)))) },
		func(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) })
}

// Sum reduces the tensor to a single-element tensor holding the total.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := mustRaw(tensor.Shape{1}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		// Accumulate in float64 to limit rounding drift over large tensors.
		var acc float64
		for _, v := range x.AsFloat32() {
			acc += float64(v)
		}
		out.AsFloat32()[0] = float32(acc)
	case tensor.Float64:
		var acc float64
		for _, v := range x.AsFloat64() {
			acc += v
		}
		out.AsFloat64()[0] = acc
	default:
		panic("unsupported dtype")
	}
	return out
}

// Mean reduces the tensor to a single-element tensor holding the average.
func (b *Backend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	return b.MulScalar(b.Sum(x), 1.0/float64(x.NumElements()))
}
