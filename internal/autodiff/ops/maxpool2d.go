package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// MaxPool2DOp records z = maxpool2d(input, kernelSize, stride). The argmax
// indices are captured at record time so the backward pass does not rescan.
type MaxPool2DOp struct {
	input, out *tensor.RawTensor
	maxIndices []int
}

// NewMaxPool2DOp creates a MaxPool2DOp, capturing the argmax indices of the
// forward pass.
func NewMaxPool2DOp(input, out *tensor.RawTensor, kernelSize, stride int, backend tensor.Backend) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		out:        out,
		maxIndices: backend.MaxPool2DArgmax(input, kernelSize, stride),
	}
}

func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *MaxPool2DOp) Output() *tensor.RawTensor  { return op.out }

func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices)}
}
