package nn

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// MaxPool2D is a parameterless max pooling layer.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int) *MaxPool2D[B] {
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride}
}

// Forward applies max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	return tensor.New[float32, B](backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride), backend)
}

// Parameters returns nil; pooling has no learnable state.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] { return nil }
