// Package nn provides neural network layers built on the tensor backends.
// Layers hold their parameters as named tensors; gradient bookkeeping lives
// in the autodiff backend and the optimizers.
package nn

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// Module is a unit of computation with learnable parameters.
type Module[B tensor.Backend] interface {
	// Forward runs the module's computation.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	// Parameters returns the module's learnable parameters, including
	// those of any submodules.
	Parameters() []*Parameter[B]
}

// Trainable is implemented by modules whose behavior differs between
// training and inference, such as batch normalization.
type Trainable interface {
	// SetTraining switches between training and inference behavior.
	SetTraining(training bool)
}

// SetTraining recursively switches a module between training and inference
// mode. Modules that do not care are left untouched.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}
