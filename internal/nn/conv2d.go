package nn

import (
	"math/rand"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Conv2D is a 2D convolution layer with bias.
type Conv2D[B tensor.Backend] struct {
	weight *Parameter[B]
	bias   *Parameter[B]

	outChannels     int
	stride, padding int
}

// NewConv2D creates a convolution layer with Kaiming-initialized weights.
// The name prefixes the layer's parameter names.
func NewConv2D[B tensor.Backend](name string, inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend B) *Conv2D[B] {
	weight := tensor.Zeros[float32](tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, backend)
	KaimingNormal(rng, weight, inChannels*kernelSize*kernelSize)
	bias := tensor.Zeros[float32](tensor.Shape{outChannels}, backend)

	return &Conv2D[B]{
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
		outChannels: outChannels,
		stride:      stride,
		padding:     padding,
	}
}

// Forward applies the convolution and adds the broadcast bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	out := backend.Conv2D(input.Raw(), c.weight.Raw(), c.stride, c.padding)
	biasView := backend.Reshape(c.bias.Raw(), tensor.Shape{1, c.outChannels, 1, 1})
	return tensor.New[float32, B](backend.Add(out, biasView), backend)
}

// Parameters returns the weight and bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}
