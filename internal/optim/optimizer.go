// Package optim provides gradient descent optimizers. Optimizers mutate the
// parameter tensors in place using gradients keyed by the parameter's
// RawTensor identity, which is how the gradient tape reports them.
package optim

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// Optimizer updates parameters from a gradient map.
type Optimizer interface {
	// Step applies one update. Parameters without a gradient are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)
	// LR returns the current learning rate.
	LR() float64
	// SetLR overrides the learning rate; schedulers call this per epoch.
	SetLR(lr float64)
}
