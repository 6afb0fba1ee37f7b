package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// Conv2DOp records z = conv2d(input, kernel, stride, padding).
type Conv2DOp struct {
	input, kernel, out *tensor.RawTensor
	stride, padding    int
}

// NewConv2DOp creates a Conv2DOp from the forward tensors.
func NewConv2DOp(input, kernel, out *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{input: input, kernel: kernel, out: out, stride: stride, padding: padding}
}

func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *Conv2DOp) Output() *tensor.RawTensor { return op.out }

func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding),
		backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding),
	}
}

// ConvTranspose2DOp records z = convtranspose2d(input, kernel, stride).
type ConvTranspose2DOp struct {
	input, kernel, out *tensor.RawTensor
	stride             int
}

// NewConvTranspose2DOp creates a ConvTranspose2DOp from the forward tensors.
func NewConvTranspose2DOp(input, kernel, out *tensor.RawTensor, stride int) *ConvTranspose2DOp {
	return &ConvTranspose2DOp{input: input, kernel: kernel, out: out, stride: stride}
}

func (op *ConvTranspose2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *ConvTranspose2DOp) Output() *tensor.RawTensor { return op.out }

func (op *ConvTranspose2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.ConvTranspose2DInputBackward(op.input, op.kernel, outputGrad, op.stride),
		backend.ConvTranspose2DKernelBackward(op.input, op.kernel, outputGrad, op.stride),
	}
}
