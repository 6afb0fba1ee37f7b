package ops

import (
	"fmt"
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// diceEps keeps the soft Dice ratio defined when a batch has no foreground.
const diceEps = 1e-6

// SoftDiceOp fuses sigmoid and the soft Dice loss into one recorded
// operation on logits:
// loss = 1 - (2*sum(p*z) + eps) / (sum(p) + sum(z) + eps), p = sigmoid(x).
type SoftDiceOp struct {
	logits, targets, out *tensor.RawTensor

	probs             []float32
	sumPZ, sumP, sumZ float64
}

// NewSoftDiceOp computes the loss and returns the recorded op.
func NewSoftDiceOp(logits, targets *tensor.RawTensor) *SoftDiceOp {
	if logits.DType() != tensor.Float32 || targets.DType() != tensor.Float32 {
		panic("SoftDice: only float32 is supported")
	}
	if !logits.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("SoftDice: logits shape %v does not match targets %v",
			logits.Shape(), targets.Shape()))
	}

	x, z := logits.AsFloat32(), targets.AsFloat32()
	probs := make([]float32, len(x))
	var sumPZ, sumP, sumZ float64
	for i := range x {
		p := 1.0 / (1.0 + math.Exp(-float64(x[i])))
		probs[i] = float32(p)
		sumPZ += p * float64(z[i])
		sumP += p
		sumZ += float64(z[i])
	}

	out := mustRaw(tensor.Shape{1}, tensor.Float32)
	out.AsFloat32()[0] = float32(1.0 - (2.0*sumPZ+diceEps)/(sumP+sumZ+diceEps))
	return &SoftDiceOp{
		logits: logits, targets: targets, out: out,
		probs: probs, sumPZ: sumPZ, sumP: sumP, sumZ: sumZ,
	}
}

func (op *SoftDiceOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

func (op *SoftDiceOp) Output() *tensor.RawTensor { return op.out }

func (op *SoftDiceOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// With D = sum(p)+sum(z)+eps and Npz = 2*sum(p*z)+eps,
	// dloss/dp_i = (Npz - 2*z_i*D) / D^2, then through sigmoid: dp/dx = p(1-p).
	g := float64(outputGrad.AsFloat32()[0])
	z := op.targets.AsFloat32()
	d := op.sumP + op.sumZ + diceEps
	npz := 2.0*op.sumPZ + diceEps

	grad := mustRaw(op.logits.Shape(), tensor.Float32)
	gd := grad.AsFloat32()
	for i := range gd {
		p := float64(op.probs[i])
		dp := (npz - 2.0*float64(z[i])*d) / (d * d)
		gd[i] = float32(g * dp * p * (1.0 - p))
	}
	return []*tensor.RawTensor{grad}
}
