package nn

import (
	"fmt"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// bceBackend is the fused sigmoid + binary cross-entropy hook provided by
// the autodiff backend.
type bceBackend interface {
	BCEWithLogits(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// diceBackend is the fused sigmoid + soft Dice hook provided by the
// autodiff backend.
type diceBackend interface {
	SoftDice(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// BCEWithLogitsLoss computes binary cross-entropy over logits, returning a
// single-element tensor.
func BCEWithLogitsLoss[B tensor.Backend](logits, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := logits.Backend()
	fused, ok := any(backend).(bceBackend)
	if !ok {
		panic(fmt.Sprintf("backend %s does not provide BCEWithLogits", backend.Name()))
	}
	return tensor.New[float32, B](fused.BCEWithLogits(logits.Raw(), targets.Raw()), backend)
}

// SoftDiceLoss computes the soft Dice loss over logits, returning a
// single-element tensor.
func SoftDiceLoss[B tensor.Backend](logits, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := logits.Backend()
	fused, ok := any(backend).(diceBackend)
	if !ok {
		panic(fmt.Sprintf("backend %s does not provide SoftDice", backend.Name()))
	}
	return tensor.New[float32, B](fused.SoftDice(logits.Raw(), targets.Raw()), backend)
}

// CombinedLoss blends BCE and soft Dice: loss = bce + diceWeight*dice.
// A diceWeight of zero yields plain BCE without recording the Dice term.
func CombinedLoss[B tensor.Backend](logits, targets *tensor.Tensor[float32, B], diceWeight float64) *tensor.Tensor[float32, B] {
	bce := BCEWithLogitsLoss(logits, targets)
	if diceWeight == 0 {
		return bce
	}
	dice := SoftDiceLoss(logits, targets)
	return bce.Add(dice.MulScalar(diceWeight))
}
