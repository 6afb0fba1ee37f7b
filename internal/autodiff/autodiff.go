// Package autodiff provides reverse-mode automatic differentiation as a
// decorator around any tensor.Backend. Forward calls delegate to the inner
// backend; while the tape is recording, each call also records an operation
// that knows its own gradient.
package autodiff

import (
	"github.com/vesselseg-ml/vesselseg/internal/autodiff/ops"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Backend wraps an inner compute backend with gradient recording.
type Backend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps inner with a fresh gradient tape.
func New[B tensor.Backend](inner B) *Backend[B] {
	return &Backend[B]{inner: inner, tape: NewGradientTape()}
}

// Inner returns the wrapped backend.
func (a *Backend[B]) Inner() B { return a.inner }

// Tape returns the gradient tape.
func (a *Backend[B]) Tape() *GradientTape { return a.tape }

// Name returns the backend name.
func (a *Backend[B]) Name() string { return "autodiff(" + a.inner.Name() + ")" }

// Device returns the inner backend's device.
func (a *Backend[B]) Device() tensor.Device { return a.inner.Device() }

func (a *Backend[B]) record(op ops.Operation) {
	if a.tape.IsRecording() {
		a.tape.Record(op)
	}
}

// Add performs element-wise addition with broadcasting.
func (a *Backend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Add(x, y)
	a.record(ops.NewAddOp(x, y, out))
	return out
}

// Sub performs element-wise subtraction with broadcasting.
func (a *Backend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Sub(x, y)
	a.record(ops.NewSubOp(x, y, out))
	return out
}

// Mul performs element-wise multiplication with broadcasting.
func (a *Backend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Mul(x, y)
	a.record(ops.NewMulOp(x, y, out))
	return out
}

// Div performs element-wise division with broadcasting.
func (a *Backend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Div(x, y)
	a.record(ops.NewDivOp(x, y, out))
	return out
}

// AddScalar adds a scalar to every element.
func (a *Backend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	out := a.inner.AddScalar(x, s)
	a.record(ops.NewAddScalarOp(x, out))
	return out
}

// MulScalar multiplies every element by a scalar.
func (a *Backend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	out := a.inner.MulScalar(x, s)
	a.record(ops.NewMulScalarOp(x, out, s))
	return out
}

// Exp computes the element-wise exponential.
func (a *Backend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Exp(x)
	a.record(ops.NewExpOp(x, out))
	return out
}

// Log computes the element-wise natural logarithm.
func (a *Backend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Log(x)
	a.record(ops.NewLogOp(x, out))
	return out
}

// Sqrt computes the element-wise square root.
func (a *Backend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Sqrt(x)
	a.record(ops.NewSqrtOp(x, out))
	return out
}

// ReLU applies max(0, x) element-wise.
func (a *Backend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.ReLU(x)
	a.record(ops.NewReLUOp(x, out))
	return out
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (a *Backend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Sigmoid(x)
	a.record(ops.NewSigmoidOp(x, out))
	return out
}

// Conv2D performs a 2D cross-correlation.
func (a *Backend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	out := a.inner.Conv2D(input, kernel, stride, padding)
	a.record(ops.NewConv2DOp(input, kernel, out, stride, padding))
	return out
}

// Conv2DInputBackward delegates to the inner backend.
func (a *Backend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return a.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the inner backend.
func (a *Backend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return a.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// ConvTranspose2D performs a fractionally-strided convolution.
func (a *Backend[B]) ConvTranspose2D(input, kernel *tensor.RawTensor, stride int) *tensor.RawTensor {
	out := a.inner.ConvTranspose2D(input, kernel, stride)
	a.record(ops.NewConvTranspose2DOp(input, kernel, out, stride))
	return out
}

// ConvTranspose2DInputBackward delegates to the inner backend.
func (a *Backend[B]) ConvTranspose2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	return a.inner.ConvTranspose2DInputBackward(input, kernel, grad, stride)
}

// ConvTranspose2DKernelBackward delegates to the inner backend.
func (a *Backend[B]) ConvTranspose2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	return a.inner.ConvTranspose2DKernelBackward(input, kernel, grad, stride)
}

// MaxPool2D performs 2D max pooling.
func (a *Backend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	out := a.inner.MaxPool2D(input, kernelSize, stride)
	if a.tape.IsRecording() {
		a.tape.Record(ops.NewMaxPool2DOp(input, out, kernelSize, stride, a.inner))
	}
	return out
}

// MaxPool2DArgmax delegates to the inner backend.
func (a *Backend[B]) MaxPool2DArgmax(input *tensor.RawTensor, kernelSize, stride int) []int {
	return a.inner.MaxPool2DArgmax(input, kernelSize, stride)
}

// MaxPool2DBackward delegates to the inner backend.
func (a *Backend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	return a.inner.MaxPool2DBackward(input, grad, maxIndices)
}

// Reshape returns the tensor under a new shape.
func (a *Backend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out := a.inner.Reshape(x, shape)
	a.record(ops.NewReshapeOp(x, out))
	return out
}

// Cat concatenates tensors along a dimension.
func (a *Backend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	out := a.inner.Cat(tensors, dim)
	a.record(ops.NewCatOp(tensors, out, dim))
	return out
}

// Narrow delegates to the inner backend.
func (a *Backend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	return a.inner.Narrow(x, dim, start, length)
}

// Sum reduces the tensor to a single-element tensor holding the total.
func (a *Backend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Sum(x)
	a.record(ops.NewSumOp(x, out))
	return out
}

// Mean reduces the tensor to a single-element tensor holding the average.
func (a *Backend[B]) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	out := a.inner.Mean(x)
	a.record(ops.NewMeanOp(x, out))
	return out
}

// BCEWithLogits computes the fused sigmoid + binary cross-entropy loss over
// logits, returning a [1] tensor.
func (a *Backend[B]) BCEWithLogits(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	op := ops.NewBCEWithLogitsOp(logits, targets)
	a.record(op)
	return op.Output()
}

// SoftDice computes the fused sigmoid + soft Dice loss over logits,
// returning a [1] tensor.
func (a *Backend[B]) SoftDice(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	op := ops.NewSoftDiceOp(logits, targets)
	a.record(op)
	return op.Output()
}

// BatchNorm2D normalizes with batch statistics and returns the output plus
// the per-channel batch mean and variance for running-average updates.
func (a *Backend[B]) BatchNorm2D(x, gamma, beta *tensor.RawTensor, eps float64) (*tensor.RawTensor, []float32, []float32) {
	op := ops.NewBatchNorm2DOp(x, gamma, beta, eps)
	a.record(op)
	return op.Output(), op.BatchMean(), op.BatchVar()
}

// Backward seeds output with outputGrad and accumulates gradients through
// every recorded operation.
func (a *Backend[B]) Backward(output, outputGrad *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	return a.tape.Backward(output, outputGrad, a.inner)
}
