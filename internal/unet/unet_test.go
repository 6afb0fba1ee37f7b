package unet_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselseg-ml/vesselseg/internal/autodiff"
	"github.com/vesselseg-ml/vesselseg/internal/backend/cpu"
	"github.com/vesselseg-ml/vesselseg/internal/nn"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
	"github.com/vesselseg-ml/vesselseg/internal/unet"
)

// Tests use a narrow network so forward passes stay fast.
func tinyConfig() unet.Config {
	return unet.Config{InChannels: 3, OutChannels: 1, BaseFeatures: 4}
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, unet.DefaultConfig().Validate())
	assert.Error(t, unet.Config{InChannels: 0, OutChannels: 1, BaseFeatures: 4}.Validate())
	assert.Error(t, unet.Config{InChannels: 3, OutChannels: 0, BaseFeatures: 4}.Validate())
	assert.Error(t, unet.Config{InChannels: 3, OutChannels: 1, BaseFeatures: -1}.Validate())
}

func TestForwardPreservesResolution(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, err := unet.New(tinyConfig(), newRNG(), backend)
	require.NoError(t, err)

	input := tensor.Zeros[float32](tensor.Shape{1, 3, 32, 32}, backend)
	out := model.Forward(input)
	assert.Equal(t, tensor.Shape{1, 1, 32, 32}, out.Shape())
}

func TestDoubleConvKeepsSize(t *testing.T) {
	backend := autodiff.New(cpu.New())
	block := unet.NewDoubleConv("blk", 3, 8, newRNG(), backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 3, 16, 16}, backend)
	out := block.Forward(input)
	assert.Equal(t, tensor.Shape{2, 8, 16, 16}, out.Shape())
}

func TestUpMergesSkipChannels(t *testing.T) {
	backend := autodiff.New(cpu.New())
	up := unet.NewUp("up", 16, 8, newRNG(), backend)

	below := tensor.Zeros[float32](tensor.Shape{1, 16, 4, 4}, backend)
	skip := tensor.Zeros[float32](tensor.Shape{1, 8, 8, 8}, backend)
	out := up.Forward(below, skip)
	assert.Equal(t, tensor.Shape{1, 8, 8, 8}, out.Shape())
}

func TestParameterNamesAreUnique(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, err := unet.New(tinyConfig(), newRNG(), backend)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, p := range model.State() {
		assert.False(t, seen[p.Name], "duplicate parameter name %q", p.Name)
		seen[p.Name] = true
	}
	assert.True(t, seen["inc.conv1.weight"])
	assert.True(t, seen["down4.conv.bn2.gamma"])
	assert.True(t, seen["up1.up.weight"])
	assert.True(t, seen["outc.bias"])
	assert.True(t, seen["inc.bn1.running_mean"])
}

func TestEveryParameterReceivesGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, err := unet.New(tinyConfig(), newRNG(), backend)
	require.NoError(t, err)

	input := tensor.Rand[float32](tensor.Shape{1, 3, 16, 16}, backend)
	targets := tensor.Zeros[float32](tensor.Shape{1, 1, 16, 16}, backend)

	backend.Tape().StartRecording()
	logits := model.Forward(input)
	loss := nn.BCEWithLogitsLoss(logits, targets)
	backend.Tape().StopRecording()

	seed := tensor.Ones[float32](tensor.Shape{1}, backend)
	grads := backend.Backward(loss.Raw(), seed.Raw())

	for _, p := range model.Parameters() {
		g, ok := grads[p.Raw()]
		require.True(t, ok, "no gradient for %s", p.Name)
		assert.True(t, g.Shape().Equal(p.Tensor.Shape()),
			"gradient shape mismatch for %s: %v vs %v", p.Name, g.Shape(), p.Tensor.Shape())
	}
}

func TestEqualSeedsBuildIdenticalNetworks(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a, err := unet.New(tinyConfig(), rand.New(rand.NewSource(42)), backend)
	require.NoError(t, err)
	b, err := unet.New(tinyConfig(), rand.New(rand.NewSource(42)), backend)
	require.NoError(t, err)

	pa, pb := a.Parameters(), b.Parameters()
	require.Len(t, pb, len(pa))
	for i := range pa {
		assert.Equal(t, pa[i].Tensor.Data(), pb[i].Tensor.Data(), "parameter %s", pa[i].Name)
	}

	c, err := unet.New(tinyConfig(), rand.New(rand.NewSource(7)), backend)
	require.NoError(t, err)
	assert.NotEqual(t, pa[0].Tensor.Data(), c.Parameters()[0].Tensor.Data())
}

func TestSetTrainingTogglesEveryBatchNorm(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, err := unet.New(tinyConfig(), newRNG(), backend)
	require.NoError(t, err)

	// Inference on a fresh model must not touch running statistics.
	model.SetTraining(false)
	input := tensor.Rand[float32](tensor.Shape{1, 3, 16, 16}, backend)
	model.Forward(input)

	for _, b := range model.Buffers() {
		if !strings.HasSuffix(b.Name, ".running_mean") {
			continue
		}
		for _, v := range b.Tensor.Data() {
			assert.Zero(t, v, "running mean of %s changed in inference mode", b.Name)
		}
	}
}
