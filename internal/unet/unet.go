// Package unet implements the U-Net encoder-decoder architecture for
// dense segmentation: a contracting path of strided pooling and doubled
// channels, an expansive path of transposed convolutions, and skip
// connections concatenating encoder features into the decoder.
package unet

import (
	"fmt"
	"math/rand"

	"github.com/vesselseg-ml/vesselseg/internal/nn"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Config describes the network dimensions.
type Config struct {
	// InChannels is the number of input image channels (3 for RGB fundus
	// images, 1 for grayscale).
	InChannels int
	// OutChannels is the number of output logit channels (1 for binary
	// vessel masks).
	OutChannels int
	// BaseFeatures is the channel count of the first encoder block; each
	// subsequent block doubles it.
	BaseFeatures int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.InChannels <= 0 {
		return fmt.Errorf("in_channels must be positive, got %d", c.InChannels)
	}
	if c.OutChannels <= 0 {
		return fmt.Errorf("out_channels must be positive, got %d", c.OutChannels)
	}
	if c.BaseFeatures <= 0 {
		return fmt.Errorf("base_features must be positive, got %d", c.BaseFeatures)
	}
	return nil
}

// DefaultConfig returns the dimensions of the original architecture:
// RGB input, one logit channel, 64 base features.
func DefaultConfig() Config {
	return Config{InChannels: 3, OutChannels: 1, BaseFeatures: 64}
}

// DoubleConv is the basic U-Net block: two padded 3x3 convolutions, each
// followed by batch normalization and ReLU. Spatial size is preserved.
type DoubleConv[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B]
	bn1   *nn.BatchNorm2D[B]
	conv2 *nn.Conv2D[B]
	bn2   *nn.BatchNorm2D[B]
	relu  *nn.ReLU[B]
}

// NewDoubleConv creates the block with the given channel counts.
func NewDoubleConv[B tensor.Backend](name string, inChannels, outChannels int, rng *rand.Rand, backend B) *DoubleConv[B] {
	return &DoubleConv[B]{
		conv1: nn.NewConv2D(name+".conv1", inChannels, outChannels, 3, 1, 1, rng, backend),
		bn1:   nn.NewBatchNorm2D(name+".bn1", outChannels, backend),
		conv2: nn.NewConv2D(name+".conv2", outChannels, outChannels, 3, 1, 1, rng, backend),
		bn2:   nn.NewBatchNorm2D(name+".bn2", outChannels, backend),
		relu:  nn.NewReLU[B](),
	}
}

// Forward applies conv-bn-relu twice.
func (d *DoubleConv[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := d.relu.Forward(d.bn1.Forward(d.conv1.Forward(input)))
	return d.relu.Forward(d.bn2.Forward(d.conv2.Forward(x)))
}

// Parameters returns the block's learnable parameters.
func (d *DoubleConv[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, d.conv1.Parameters()...)
	params = append(params, d.bn1.Parameters()...)
	params = append(params, d.conv2.Parameters()...)
	params = append(params, d.bn2.Parameters()...)
	return params
}

// Buffers returns the batch normalization running statistics.
func (d *DoubleConv[B]) Buffers() []*nn.Parameter[B] {
	var buffers []*nn.Parameter[B]
	buffers = append(buffers, d.bn1.Buffers()...)
	buffers = append(buffers, d.bn2.Buffers()...)
	return buffers
}

// SetTraining switches the block's batch normalization mode.
func (d *DoubleConv[B]) SetTraining(training bool) {
	d.bn1.SetTraining(training)
	d.bn2.SetTraining(training)
}

// Down halves the spatial resolution with max pooling, then applies a
// DoubleConv.
type Down[B tensor.Backend] struct {
	pool *nn.MaxPool2D[B]
	conv *DoubleConv[B]
}

// NewDown creates an encoder block.
func NewDown[B tensor.Backend](name string, inChannels, outChannels int, rng *rand.Rand, backend B) *Down[B] {
	return &Down[B]{
		pool: nn.NewMaxPool2D[B](2, 2),
		conv: NewDoubleConv(name+".conv", inChannels, outChannels, rng, backend),
	}
}

// Forward pools then convolves.
func (d *Down[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return d.conv.Forward(d.pool.Forward(input))
}

// Parameters returns the block's learnable parameters.
func (d *Down[B]) Parameters() []*nn.Parameter[B] { return d.conv.Parameters() }

// Buffers returns the block's running statistics.
func (d *Down[B]) Buffers() []*nn.Parameter[B] { return d.conv.Buffers() }

// SetTraining switches the block's batch normalization mode.
func (d *Down[B]) SetTraining(training bool) { d.conv.SetTraining(training) }

// Up doubles the spatial resolution with a stride-2 transposed convolution,
// concatenates the matching encoder features, and applies a DoubleConv.
type Up[B tensor.Backend] struct {
	up   *nn.ConvTranspose2D[B]
	conv *DoubleConv[B]
}

// NewUp creates a decoder block. inChannels is the channel count arriving
// from below; the skip connection carries inChannels/2 more.
func NewUp[B tensor.Backend](name string, inChannels, outChannels int, rng *rand.Rand, backend B) *Up[B] {
	return &Up[B]{
		up:   nn.NewConvTranspose2D(name+".up", inChannels, inChannels/2, 2, 2, rng, backend),
		conv: NewDoubleConv(name+".conv", inChannels, outChannels, rng, backend),
	}
}

// Forward upsamples input, concatenates skip along channels, and convolves.
func (u *Up[B]) Forward(input, skip *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	upsampled := u.up.Forward(input)
	merged := tensor.Cat([]*tensor.Tensor[float32, B]{skip, upsampled}, 1)
	return u.conv.Forward(merged)
}

// Parameters returns the block's learnable parameters.
func (u *Up[B]) Parameters() []*nn.Parameter[B] {
	return append(u.up.Parameters(), u.conv.Parameters()...)
}

// Buffers returns the block's running statistics.
func (u *Up[B]) Buffers() []*nn.Parameter[B] { return u.conv.Buffers() }

// SetTraining switches the block's batch normalization mode.
func (u *Up[B]) SetTraining(training bool) { u.conv.SetTraining(training) }

// UNet is the full network: four encoder stages, a bottleneck, four decoder
// stages with skip connections, and a 1x1 output convolution producing
// per-pixel logits. Input height and width must be divisible by 16.
type UNet[B tensor.Backend] struct {
	cfg Config

	inc   *DoubleConv[B]
	down1 *Down[B]
	down2 *Down[B]
	down3 *Down[B]
	down4 *Down[B]
	up1   *Up[B]
	up2   *Up[B]
	up3   *Up[B]
	up4   *Up[B]
	outc  *nn.Conv2D[B]
}

// New creates a U-Net from the config. Weights are drawn from rng, so two
// networks built with equal configs and seeds start identical.
func New[B tensor.Backend](cfg Config, rng *rand.Rand, backend B) (*UNet[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := cfg.BaseFeatures
	return &UNet[B]{
		cfg:   cfg,
		inc:   NewDoubleConv("inc", cfg.InChannels, f, rng, backend),
		down1: NewDown("down1", f, f*2, rng, backend),
		down2: NewDown("down2", f*2, f*4, rng, backend),
		down3: NewDown("down3", f*4, f*8, rng, backend),
		down4: NewDown("down4", f*8, f*16, rng, backend),
		up1:   NewUp("up1", f*16, f*8, rng, backend),
		up2:   NewUp("up2", f*8, f*4, rng, backend),
		up3:   NewUp("up3", f*4, f*2, rng, backend),
		up4:   NewUp("up4", f*2, f, rng, backend),
		outc:  nn.NewConv2D("outc", f, cfg.OutChannels, 1, 1, 0, rng, backend),
	}, nil
}

// Config returns the network dimensions.
func (u *UNet[B]) Config() Config { return u.cfg }

// Forward maps [N,InChannels,H,W] images to [N,OutChannels,H,W] logits.
func (u *UNet[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x1 := u.inc.Forward(input)
	x2 := u.down1.Forward(x1)
	x3 := u.down2.Forward(x2)
	x4 := u.down3.Forward(x3)
	x5 := u.down4.Forward(x4)

	x := u.up1.Forward(x5, x4)
	x = u.up2.Forward(x, x3)
	x = u.up3.Forward(x, x2)
	x = u.up4.Forward(x, x1)
	return u.outc.Forward(x)
}

// Parameters returns every learnable parameter in the network.
func (u *UNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, u.inc.Parameters()...)
	params = append(params, u.down1.Parameters()...)
	params = append(params, u.down2.Parameters()...)
	params = append(params, u.down3.Parameters()...)
	params = append(params, u.down4.Parameters()...)
	params = append(params, u.up1.Parameters()...)
	params = append(params, u.up2.Parameters()...)
	params = append(params, u.up3.Parameters()...)
	params = append(params, u.up4.Parameters()...)
	params = append(params, u.outc.Parameters()...)
	return params
}

// Buffers returns every batch normalization running statistic.
func (u *UNet[B]) Buffers() []*nn.Parameter[B] {
	var buffers []*nn.Parameter[B]
	buffers = append(buffers, u.inc.Buffers()...)
	buffers = append(buffers, u.down1.Buffers()...)
	buffers = append(buffers, u.down2.Buffers()...)
	buffers = append(buffers, u.down3.Buffers()...)
	buffers = append(buffers, u.down4.Buffers()...)
	buffers = append(buffers, u.up1.Buffers()...)
	buffers = append(buffers, u.up2.Buffers()...)
	buffers = append(buffers, u.up3.Buffers()...)
	buffers = append(buffers, u.up4.Buffers()...)
	return buffers
}

// State returns parameters and buffers together, the full set a checkpoint
// must capture.
func (u *UNet[B]) State() []*nn.Parameter[B] {
	return append(u.Parameters(), u.Buffers()...)
}

// SetTraining switches every batch normalization layer's mode.
func (u *UNet[B]) SetTraining(training bool) {
	u.inc.SetTraining(training)
	u.down1.SetTraining(training)
	u.down2.SetTraining(training)
	u.down3.SetTraining(training)
	u.down4.SetTraining(training)
	u.up1.SetTraining(training)
	u.up2.SetTraining(training)
	u.up3.SetTraining(training)
	u.up4.SetTraining(training)
}
