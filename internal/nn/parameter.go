package nn

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// Parameter is a named learnable tensor. Names are hierarchical
// (e.g. "down1.conv1.weight") so checkpoints can address them.
type Parameter[B tensor.Backend] struct {
	Name   string
	Tensor *tensor.Tensor[float32, B]
}

// NewParameter wraps a tensor as a named parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{Name: name, Tensor: t}
}

// Raw returns the parameter's underlying RawTensor, the identity used to
// look up gradients on the tape.
func (p *Parameter[B]) Raw() *tensor.RawTensor {
	return p.Tensor.Raw()
}
