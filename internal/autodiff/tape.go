package autodiff

import (
	"github.com/vesselseg-ml/vesselseg/internal/autodiff/ops"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// GradientTape records operations during the forward pass and replays them
// in reverse to accumulate gradients. Not safe for concurrent use.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty tape. Recording starts off.
func NewGradientTape() *GradientTape {
	return &GradientTape{}
}

// StartRecording enables operation capture.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation capture without discarding recorded ops.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are being captured.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends an operation to the tape.
func (t *GradientTape) Record(op ops.Operation) {
	t.operations = append(t.operations, op)
}

// NumOperations returns the number of recorded operations.
func (t *GradientTape) NumOperations() int { return len(t.operations) }

// Clear discards all recorded operations. Call it after each optimizer step
// to release the forward activations held by the ops.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}

// Backward walks the tape in reverse from output, accumulating gradients.
// outputGrad seeds the walk and must match the output's shape. The returned
// map holds a gradient for every tensor reached by the chain rule, keyed by
// the RawTensor identity used in the forward pass.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: outputGrad}

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		og, ok := grads[op.Output()]
		if !ok {
			// Operation did not contribute to the output.
			continue
		}
		inputGrads := op.Backward(og, backend)
		for j, in := range op.Inputs() {
			g := inputGrads[j]
			if g == nil {
				continue
			}
			if existing, ok := grads[in]; ok {
				grads[in] = backend.Add(existing, g)
			} else {
				grads[in] = g
			}
		}
	}
	return grads
}
