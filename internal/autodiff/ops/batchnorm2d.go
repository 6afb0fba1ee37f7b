package ops

import (
	"fmt"
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// BatchNorm2DOp records batch normalization over [N,C,H,W] input using batch
// statistics. The normalized activations and inverse standard deviations are
// saved for the backward pass.
type BatchNorm2DOp struct {
	x, gamma, beta, out *tensor.RawTensor

	xhat   []float32
	invStd []float32
	mean   []float32
	vari   []float32
}

// NewBatchNorm2DOp computes y = gamma*(x-mean)/sqrt(var+eps) + beta with
// per-channel batch statistics and returns the recorded op.
func NewBatchNorm2DOp(x, gamma, beta *tensor.RawTensor, eps float64) *BatchNorm2DOp {
	if x.DType() != tensor.Float32 {
		panic("BatchNorm2D: only float32 is supported")
	}
	xs := x.Shape()
	if len(xs) != 4 {
		panic(fmt.Sprintf("BatchNorm2D: expected 4D input, got shape %v", xs))
	}
	n, c, h, w := xs[0], xs[1], xs[2], xs[3]
	if gamma.NumElements() != c || beta.NumElements() != c {
		panic(fmt.Sprintf("BatchNorm2D: gamma/beta must have %d elements", c))
	}

	xd := x.AsFloat32()
	gd, bd := gamma.AsFloat32(), beta.AsFloat32()
	m := n * h * w
	plane := h * w

	mean := make([]float32, c)
	vari := make([]float32, c)
	invStd := make([]float32, c)
	for ci := 0; ci < c; ci++ {
		var sum float64
		for ni := 0; ni < n; ni++ {
			base := (ni*c + ci) * plane
			for i := 0; i < plane; i++ {
				sum += float64(xd[base+i])
			}
		}
		mu := sum / float64(m)
		var sq float64
		for ni := 0; ni < n; ni++ {
			base := (ni*c + ci) * plane
			for i := 0; i < plane; i++ {
				d := float64(xd[base+i]) - mu
				sq += d * d
			}
		}
		v := sq / float64(m)
		mean[ci] = float32(mu)
		vari[ci] = float32(v)
		invStd[ci] = float32(1.0 / math.Sqrt(v+eps))
	}

	out := mustRaw(xs, tensor.Float32)
	od := out.AsFloat32()
	xhat := make([]float32, len(xd))
	for ni := 0; ni < n; ni++ {
		for ci := 0; ci < c; ci++ {
			base := (ni*c + ci) * plane
			mu, is := mean[ci], invStd[ci]
			g, b := gd[ci], bd[ci]
			for i := 0; i < plane; i++ {
				xh := (xd[base+i] - mu) * is
				xhat[base+i] = xh
				od[base+i] = g*xh + b
			}
		}
	}

	return &BatchNorm2DOp{
		x: x, gamma: gamma, beta: beta, out: out,
		xhat: xhat, invStd: invStd, mean: mean, vari: vari,
	}
}

// BatchMean returns the per-channel batch means (for running statistics).
func (op *BatchNorm2DOp) BatchMean() []float32 { return op.mean }

// BatchVar returns the per-channel biased batch variances.
func (op *BatchNorm2DOp) BatchVar() []float32 { return op.vari }

func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.x, op.gamma, op.beta}
}

func (op *BatchNorm2DOp) Output() *tensor.RawTensor { return op.out }

func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	xs := op.x.Shape()
	n, c, h, w := xs[0], xs[1], xs[2], xs[3]
	m := n * h * w
	plane := h * w

	gd := outputGrad.AsFloat32()
	gammaD := op.gamma.AsFloat32()

	gx := mustRaw(xs, tensor.Float32)
	gGamma := mustRaw(op.gamma.Shape(), tensor.Float32)
	gBeta := mustRaw(op.beta.Shape(), tensor.Float32)
	gxd, ggd, gbd := gx.AsFloat32(), gGamma.AsFloat32(), gBeta.AsFloat32()

	for ci := 0; ci < c; ci++ {
		var sumG, sumGX float64
		for ni := 0; ni < n; ni++ {
			base := (ni*c + ci) * plane
			for i := 0; i < plane; i++ {
				g := float64(gd[base+i])
				sumG += g
				sumGX += g * float64(op.xhat[base+i])
			}
		}
		ggd[ci] = float32(sumGX)
		gbd[ci] = float32(sumG)

		// dx = gamma*invstd/m * (m*g - sum(g) - xhat*sum(g*xhat)).
		scale := float64(gammaD[ci]) * float64(op.invStd[ci]) / float64(m)
		for ni := 0; ni < n; ni++ {
			base := (ni*c + ci) * plane
			for i := 0; i < plane; i++ {
				g := float64(gd[base+i])
				xh := float64(op.xhat[base+i])
				gxd[base+i] = float32(scale * (float64(m)*g - sumG - xh*sumGX))
			}
		}
	}
	return []*tensor.RawTensor{gx, gGamma, gBeta}
}
