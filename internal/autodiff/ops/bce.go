package ops

import (
	"fmt"
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// BCEWithLogitsOp fuses sigmoid and binary cross-entropy into one recorded
// operation. Working on logits keeps the loss numerically stable:
// loss = mean(max(x,0) - x*z + log(1+exp(-|x|))).
type BCEWithLogitsOp struct {
	logits, targets, out *tensor.RawTensor
}

// NewBCEWithLogitsOp computes the loss and returns the recorded op.
func NewBCEWithLogitsOp(logits, targets *tensor.RawTensor) *BCEWithLogitsOp {
	if logits.DType() != tensor.Float32 || targets.DType() != tensor.Float32 {
		panic("BCEWithLogits: only float32 is supported")
	}
	if !logits.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("BCEWithLogits: logits shape %v does not match targets %v",
			logits.Shape(), targets.Shape()))
	}

	x, z := logits.AsFloat32(), targets.AsFloat32()
	var acc float64
	for i := range x {
		xi := float64(x[i])
		acc += math.Max(xi, 0) - xi*float64(z[i]) + math.Log1p(math.Exp(-math.Abs(xi)))
	}
	out := mustRaw(tensor.Shape{1}, tensor.Float32)
	out.AsFloat32()[0] = float32(acc / float64(len(x)))
	return &BCEWithLogitsOp{logits: logits, targets: targets, out: out}
}

func (op *BCEWithLogitsOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

func (op *BCEWithLogitsOp) Output() *tensor.RawTensor { return op.out }

func (op *BCEWithLogitsOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dL/dx = (sigmoid(x) - z) / N.
	g := float64(outputGrad.AsFloat32()[0])
	x, z := op.logits.AsFloat32(), op.targets.AsFloat32()
	grad := mustRaw(op.logits.Shape(), tensor.Float32)
	gd := grad.AsFloat32()
	scale := g / float64(len(x))
	for i := range gd {
		p := 1.0 / (1.0 + math.Exp(-float64(x[i])))
		gd[i] = float32((p - float64(z[i])) * scale)
	}
	return []*tensor.RawTensor{grad}
}
