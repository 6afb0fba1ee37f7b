// Package ops defines the differentiable operations recorded on the
// gradient tape. Each operation stores the raw tensors of its forward pass
// and knows how to produce input gradients from an output gradient.
package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// Operation is a single recorded forward computation.
type Operation interface {
	// Backward returns one gradient per entry of Inputs(), in order.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
	// Inputs returns the forward input tensors.
	Inputs() []*tensor.RawTensor
	// Output returns the forward output tensor.
	Output() *tensor.RawTensor
}
