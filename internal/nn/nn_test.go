package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselseg-ml/vesselseg/internal/autodiff"
	"github.com/vesselseg-ml/vesselseg/internal/backend/cpu"
	"github.com/vesselseg-ml/vesselseg/internal/nn"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

type adBackend = *autodiff.Backend[*cpu.Backend]

func newBackend() adBackend {
	return autodiff.New(cpu.New())
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func TestConv2DForwardShape(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D("conv", 3, 8, 3, 1, 1, newRNG(), backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 3, 16, 16}, backend)
	out := conv.Forward(input)
	assert.Equal(t, tensor.Shape{2, 8, 16, 16}, out.Shape())
}

func TestConv2DParameterNames(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D("down1.conv1", 1, 4, 3, 1, 1, newRNG(), backend)

	params := conv.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "down1.conv1.weight", params[0].Name)
	assert.Equal(t, "down1.conv1.bias", params[1].Name)
}

func TestConv2DBiasReceivesGradient(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D("conv", 1, 2, 3, 1, 1, newRNG(), backend)

	input := tensor.Ones[float32](tensor.Shape{1, 1, 4, 4}, backend)
	backend.Tape().StartRecording()
	out := conv.Forward(input)
	loss := out.Sum()
	backend.Tape().StopRecording()

	seed := tensor.Ones[float32](tensor.Shape{1}, backend)
	grads := backend.Backward(loss.Raw(), seed.Raw())

	bias := conv.Parameters()[1]
	gb, ok := grads[bias.Raw()]
	require.True(t, ok, "bias gradient missing")
	// Each bias element covers 16 output positions.
	assert.Equal(t, []float32{16, 16}, gb.AsFloat32())
}

func TestConvTranspose2DDoublesResolution(t *testing.T) {
	backend := newBackend()
	up := nn.NewConvTranspose2D("up", 4, 2, 2, 2, newRNG(), backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 4, 8, 8}, backend)
	out := up.Forward(input)
	assert.Equal(t, tensor.Shape{1, 2, 16, 16}, out.Shape())
}

func TestMaxPool2DHalvesResolution(t *testing.T) {
	backend := newBackend()
	pool := nn.NewMaxPool2D[adBackend](2, 2)

	input := tensor.Zeros[float32](tensor.Shape{1, 4, 8, 8}, backend)
	out := pool.Forward(input)
	assert.Equal(t, tensor.Shape{1, 4, 4, 4}, out.Shape())
}

func TestBatchNorm2DTrainingNormalizes(t *testing.T) {
	backend := newBackend()
	bn := nn.NewBatchNorm2D("bn", 1, backend)

	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	input, err := tensor.FromSlice(data, tensor.Shape{2, 1, 2, 2}, backend)
	require.NoError(t, err)

	out := bn.Forward(input)
	od := out.Data()

	var mean, sq float64
	for _, v := range od {
		mean += float64(v)
	}
	mean /= float64(len(od))
	for _, v := range od {
		sq += (float64(v) - mean) * (float64(v) - mean)
	}
	assert.InDelta(t, 0.0, mean, 1e-4)
	assert.InDelta(t, 1.0, math.Sqrt(sq/float64(len(od))), 1e-3)
}

func TestBatchNorm2DRunningStatsConverge(t *testing.T) {
	backend := newBackend()
	bn := nn.NewBatchNorm2D("bn", 1, backend)

	// Constant distribution: mean 3, variance 4 per batch.
	data := []float32{1, 5, 1, 5}
	input, err := tensor.FromSlice(data, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		bn.Forward(input)
	}

	buffers := bn.Buffers()
	rm := buffers[0].Tensor.Data()
	rv := buffers[1].Tensor.Data()
	assert.InDelta(t, 3.0, rm[0], 1e-2)
	assert.InDelta(t, 4.0, rv[0], 1e-2)
}

func TestBatchNorm2DInferenceUsesRunningStats(t *testing.T) {
	backend := newBackend()
	bn := nn.NewBatchNorm2D("bn", 1, backend)
	bn.SetTraining(false)

	// Fresh layer: running mean 0, running variance 1, so the transform is
	// close to identity.
	data := []float32{1, -1, 0.5, 2}
	input, err := tensor.FromSlice(data, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	out := bn.Forward(input)
	for i, v := range out.Data() {
		assert.InDelta(t, data[i], v, 1e-4, "element %d", i)
	}
}

func TestKaimingNormalIsSeedDeterministic(t *testing.T) {
	backend := newBackend()
	a := tensor.Zeros[float32](tensor.Shape{4, 4}, backend)
	b := tensor.Zeros[float32](tensor.Shape{4, 4}, backend)
	nn.KaimingNormal(rand.New(rand.NewSource(7)), a, 16)
	nn.KaimingNormal(rand.New(rand.NewSource(7)), b, 16)
	assert.Equal(t, a.Data(), b.Data())

	c := tensor.Zeros[float32](tensor.Shape{4, 4}, backend)
	nn.KaimingNormal(rand.New(rand.NewSource(8)), c, 16)
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestBCEWithLogitsLossAtZeroLogits(t *testing.T) {
	backend := newBackend()
	logits := tensor.Zeros[float32](tensor.Shape{4}, backend)
	targets := tensor.Zeros[float32](tensor.Shape{4}, backend)

	loss := nn.BCEWithLogitsLoss(logits, targets)
	assert.InDelta(t, math.Log(2), float64(loss.Item()), 1e-5)
}

func TestSoftDiceLossPerfectPrediction(t *testing.T) {
	backend := newBackend()
	// Strongly confident logits matching the targets give a near-zero loss.
	logits, err := tensor.FromSlice([]float32{20, -20, 20, -20}, tensor.Shape{4}, backend)
	require.NoError(t, err)
	targets, err := tensor.FromSlice([]float32{1, 0, 1, 0}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	loss := nn.SoftDiceLoss(logits, targets)
	assert.InDelta(t, 0.0, float64(loss.Item()), 1e-3)
}

func TestCombinedLossGradientFlows(t *testing.T) {
	backend := newBackend()
	logits, err := tensor.FromSlice([]float32{0.5, -0.5}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	targets, err := tensor.FromSlice([]float32{1, 0}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	backend.Tape().StartRecording()
	loss := nn.CombinedLoss(logits, targets, 0.5)
	backend.Tape().StopRecording()

	seed := tensor.Ones[float32](tensor.Shape{1}, backend)
	grads := backend.Backward(loss.Raw(), seed.Raw())
	g, ok := grads[logits.Raw()]
	require.True(t, ok)
	// Both elements are underconfident: gradients push logits toward the
	// targets.
	assert.Negative(t, g.AsFloat32()[0])
	assert.Positive(t, g.AsFloat32()[1])
}
