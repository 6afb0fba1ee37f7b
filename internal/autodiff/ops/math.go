package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// ExpOp records z = exp(x).
type ExpOp struct {
	x, out *tensor.RawTensor
}

// NewExpOp creates an ExpOp from the forward tensors.
func NewExpOp(x, out *tensor.RawTensor) *ExpOp { return &ExpOp{x: x, out: out} }

func (op *ExpOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *ExpOp) Output() *tensor.RawTensor  { return op.out }

func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dz/dx = exp(x), which is the forward output.
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.out)}
}

// LogOp records z = ln(x).
type LogOp struct {
	x, out *tensor.RawTensor
}

// NewLogOp creates a LogOp from the forward tensors.
func NewLogOp(x, out *tensor.RawTensor) *LogOp { return &LogOp{x: x, out: out} }

func (op *LogOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *LogOp) Output() *tensor.RawTensor  { return op.out }

func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.x)}
}

// SqrtOp records z = sqrt(x).
type SqrtOp struct {
	x, out *tensor.RawTensor
}

// NewSqrtOp creates a SqrtOp from the forward tensors.
func NewSqrtOp(x, out *tensor.RawTensor) *SqrtOp { return &SqrtOp{x: x, out: out} }

func (op *SqrtOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *SqrtOp) Output() *tensor.RawTensor  { return op.out }

func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dz/dx = 1/(2*sqrt(x)).
	return []*tensor.RawTensor{backend.Div(backend.MulScalar(outputGrad, 0.5), op.out)}
}

// ReLUOp records z = max(0, x).
type ReLUOp struct {
	x, out *tensor.RawTensor
}

// NewReLUOp creates a ReLUOp from the forward tensors.
func NewReLUOp(x, out *tensor.RawTensor) *ReLUOp { return &ReLUOp{x: x, out: out} }

func (op *ReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *ReLUOp) Output() *tensor.RawTensor  { return op.out }

func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := mustRaw(op.x.Shape(), op.x.DType())
	switch op.x.DType() {
	case tensor.Float32:
		xv, gv, ov := op.x.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
		for i := range ov {
			if xv[i] > 0 {
				ov[i] = gv[i]
			}
		}
	case tensor.Float64:
		xv, gv, ov := op.x.AsFloat64(), outputGrad.AsFloat64(), grad.AsFloat64()
		for i := range ov {
			if xv[i] > 0 {
				ov[i] = gv[i]
			}
		}
	default:
		panic("unsupported dtype")
	}
	return []*tensor.RawTensor{grad}
}

// SigmoidOp records z = 1/(1+exp(-x)).
type SigmoidOp struct {
	x, out *tensor.RawTensor
}

// NewSigmoidOp creates a SigmoidOp from the forward tensors.
func NewSigmoidOp(x, out *tensor.RawTensor) *SigmoidOp { return &SigmoidOp{x: x, out: out} }

func (op *SigmoidOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *SigmoidOp) Output() *tensor.RawTensor  { return op.out }

func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dz/dx = z * (1 - z).
	one := backend.AddScalar(backend.MulScalar(op.out, -1), 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Mul(op.out, one))}
}
