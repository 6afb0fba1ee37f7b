package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// ReshapeOp records z = reshape(x).
type ReshapeOp struct {
	x, out *tensor.RawTensor
}

// NewReshapeOp creates a ReshapeOp from the forward tensors.
func NewReshapeOp(x, out *tensor.RawTensor) *ReshapeOp { return &ReshapeOp{x: x, out: out} }

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *ReshapeOp) Output() *tensor.RawTensor  { return op.out }

func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.x.Shape())}
}

// CatOp records z = cat(inputs, dim).
type CatOp struct {
	inputs []*tensor.RawTensor
	out    *tensor.RawTensor
	dim    int
}

// NewCatOp creates a CatOp from the forward tensors.
func NewCatOp(inputs []*tensor.RawTensor, out *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{inputs: inputs, out: out, dim: dim}
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *CatOp) Output() *tensor.RawTensor  { return op.out }

func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	start := 0
	for i, in := range op.inputs {
		length := in.Shape()[op.dim]
		grads[i] = backend.Narrow(outputGrad, op.dim, start, length)
		start += length
	}
	return grads
}

// SumOp records z = sum(x) as a [1] tensor.
type SumOp struct {
	x, out *tensor.RawTensor
}

// NewSumOp creates a SumOp from the forward tensors.
func NewSumOp(x, out *tensor.RawTensor) *SumOp { return &SumOp{x: x, out: out} }

func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *SumOp) Output() *tensor.RawTensor  { return op.out }

func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// Every element receives the scalar gradient.
	ones := mustRaw(op.x.Shape(), op.x.DType())
	switch op.x.DType() {
	case tensor.Float32:
		ov := ones.AsFloat32()
		for i := range ov {
			ov[i] = 1
		}
	case tensor.Float64:
		ov := ones.AsFloat64()
		for i := range ov {
			ov[i] = 1
		}
	}
	return []*tensor.RawTensor{backend.Mul(ones, outputGrad)}
}

// MeanOp records z = mean(x) as a [1] tensor.
type MeanOp struct {
	x, out *tensor.RawTensor
}

// NewMeanOp creates a MeanOp from the forward tensors.
func NewMeanOp(x, out *tensor.RawTensor) *MeanOp { return &MeanOp{x: x, out: out} }

func (op *MeanOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *MeanOp) Output() *tensor.RawTensor  { return op.out }

func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	scale := 1.0 / float64(op.x.NumElements())
	fill := mustRaw(op.x.Shape(), op.x.DType())
	switch op.x.DType() {
	case tensor.Float32:
		ov := fill.AsFloat32()
		for i := range ov {
			ov[i] = 1
		}
	case tensor.Float64:
		ov := fill.AsFloat64()
		for i := range ov {
			ov[i] = 1
		}
	}
	return []*tensor.RawTensor{backend.MulScalar(backend.Mul(fill, outputGrad), scale)}
}
