package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// AddOp records z = a + b with broadcasting.
type AddOp struct {
	a, b, out *tensor.RawTensor
}

// NewAddOp creates an AddOp from the forward tensors.
func NewAddOp(a, b, out *tensor.RawTensor) *AddOp { return &AddOp{a: a, b: b, out: out} }

func (op *AddOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *AddOp) Output() *tensor.RawTensor  { return op.out }

func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		sumToShape(outputGrad, op.a.Shape()),
		sumToShape(outputGrad, op.b.Shape()),
	}
}

// SubOp records z = a - b with broadcasting.
type SubOp struct {
	a, b, out *tensor.RawTensor
}

// NewSubOp creates a SubOp from the forward tensors.
func NewSubOp(a, b, out *tensor.RawTensor) *SubOp { return &SubOp{a: a, b: b, out: out} }

func (op *SubOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *SubOp) Output() *tensor.RawTensor  { return op.out }

func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		sumToShape(outputGrad, op.a.Shape()),
		sumToShape(backend.MulScalar(outputGrad, -1), op.b.Shape()),
	}
}

// MulOp records z = a * b with broadcasting.
type MulOp struct {
	a, b, out *tensor.RawTensor
}

// NewMulOp creates a MulOp from the forward tensors.
func NewMulOp(a, b, out *tensor.RawTensor) *MulOp { return &MulOp{a: a, b: b, out: out} }

func (op *MulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *MulOp) Output() *tensor.RawTensor  { return op.out }

func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		sumToShape(backend.Mul(outputGrad, op.b), op.a.Shape()),
		sumToShape(backend.Mul(outputGrad, op.a), op.b.Shape()),
	}
}

// DivOp records z = a / b with broadcasting.
type DivOp struct {
	a, b, out *tensor.RawTensor
}

// NewDivOp creates a DivOp from the forward tensors.
func NewDivOp(a, b, out *tensor.RawTensor) *DivOp { return &DivOp{a: a, b: b, out: out} }

func (op *DivOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *DivOp) Output() *tensor.RawTensor  { return op.out }

func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dz/da = 1/b, dz/db = -a/b^2.
	ga := backend.Div(outputGrad, op.b)
	gb := backend.MulScalar(backend.Div(backend.Mul(outputGrad, op.a), backend.Mul(op.b, op.b)), -1)
	return []*tensor.RawTensor{
		sumToShape(ga, op.a.Shape()),
		sumToShape(gb, op.b.Shape()),
	}
}

// AddScalarOp records z = x + s.
type AddScalarOp struct {
	x, out *tensor.RawTensor
}

// NewAddScalarOp creates an AddScalarOp from the forward tensors.
func NewAddScalarOp(x, out *tensor.RawTensor) *AddScalarOp { return &AddScalarOp{x: x, out: out} }

func (op *AddScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *AddScalarOp) Output() *tensor.RawTensor  { return op.out }

func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// MulScalarOp records z = x * s.
type MulScalarOp struct {
	x, out *tensor.RawTensor
	s      float64
}

// NewMulScalarOp creates a MulScalarOp from the forward tensors.
func NewMulScalarOp(x, out *tensor.RawTensor, s float64) *MulScalarOp {
	return &MulScalarOp{x: x, out: out, s: s}
}

func (op *MulScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *MulScalarOp) Output() *tensor.RawTensor  { return op.out }

func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.s)}
}
