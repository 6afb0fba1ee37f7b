package nn

import (
	"math/rand"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// ConvTranspose2D is a fractionally-strided convolution layer with bias,
// used to upsample feature maps.
type ConvTranspose2D[B tensor.Backend] struct {
	weight *Parameter[B]
	bias   *Parameter[B]

	outChannels int
	stride      int
}

// NewConvTranspose2D creates an upsampling convolution layer. The kernel
// layout is [Cin,Cout,K,K].
func NewConvTranspose2D[B tensor.Backend](name string, inChannels, outChannels, kernelSize, stride int, rng *rand.Rand, backend B) *ConvTranspose2D[B] {
	weight := tensor.Zeros[float32](tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}, backend)
	KaimingNormal(rng, weight, inChannels*kernelSize*kernelSize)
	bias := tensor.Zeros[float32](tensor.Shape{outChannels}, backend)

	return &ConvTranspose2D[B]{
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
		outChannels: outChannels,
		stride:      stride,
	}
}

// Forward applies the transposed convolution and adds the broadcast bias.
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	out := backend.ConvTranspose2D(input.Raw(), c.weight.Raw(), c.stride)
	biasView := backend.Reshape(c.bias.Raw(), tensor.Shape{1, c.outChannels, 1, 1})
	return tensor.New[float32, B](backend.Add(out, biasView), backend)
}

// Parameters returns the weight and bias.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}
