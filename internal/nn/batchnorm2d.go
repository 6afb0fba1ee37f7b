package nn

import (
	"fmt"
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// batchNormBackend is the fused batch normalization hook provided by the
// autodiff backend.
type batchNormBackend interface {
	BatchNorm2D(x, gamma, beta *tensor.RawTensor, eps float64) (*tensor.RawTensor, []float32, []float32)
}

// BatchNorm2D normalizes [N,C,H,W] activations per channel. Training mode
// uses batch statistics and maintains exponential running averages;
// inference mode normalizes with the running averages.
type BatchNorm2D[B tensor.Backend] struct {
	gamma *Parameter[B]
	beta  *Parameter[B]

	runningMean *Parameter[B]
	runningVar  *Parameter[B]

	channels int
	eps      float64
	momentum float64
	training bool
}

// NewBatchNorm2D creates a batch normalization layer with gamma=1, beta=0,
// running mean 0 and running variance 1.
func NewBatchNorm2D[B tensor.Backend](name string, channels int, backend B) *BatchNorm2D[B] {
	gamma := tensor.Ones[float32](tensor.Shape{channels}, backend)
	beta := tensor.Zeros[float32](tensor.Shape{channels}, backend)
	mean := tensor.Zeros[float32](tensor.Shape{channels}, backend)
	vari := tensor.Ones[float32](tensor.Shape{channels}, backend)

	return &BatchNorm2D[B]{
		gamma:       NewParameter(name+".gamma", gamma),
		beta:        NewParameter(name+".beta", beta),
		runningMean: NewParameter(name+".running_mean", mean),
		runningVar:  NewParameter(name+".running_var", vari),
		channels:    channels,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
	}
}

// SetTraining switches between batch statistics and running averages.
func (bn *BatchNorm2D[B]) SetTraining(training bool) { bn.training = training }

// Forward normalizes the input.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if bn.training {
		fused, ok := any(backend).(batchNormBackend)
		if !ok {
			panic(fmt.Sprintf("backend %s does not support batch normalization training", backend.Name()))
		}
		out, batchMean, batchVar := fused.BatchNorm2D(input.Raw(), bn.gamma.Raw(), bn.beta.Raw(), bn.eps)
		bn.updateRunningStats(batchMean, batchVar)
		return tensor.New[float32, B](out, backend)
	}
	return bn.inferenceForward(input)
}

func (bn *BatchNorm2D[B]) updateRunningStats(batchMean, batchVar []float32) {
	m := float32(bn.momentum)
	rm, rv := bn.runningMean.Tensor.Data(), bn.runningVar.Tensor.Data()
	for c := 0; c < bn.channels; c++ {
		rm[c] = (1-m)*rm[c] + m*batchMean[c]
		rv[c] = (1-m)*rv[c] + m*batchVar[c]
	}
}

// inferenceForward folds the running statistics into a per-channel affine
// transform y = x*scale + shift applied with broadcasting.
func (bn *BatchNorm2D[B]) inferenceForward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	g, b := bn.gamma.Tensor.Data(), bn.beta.Tensor.Data()
	rm, rv := bn.runningMean.Tensor.Data(), bn.runningVar.Tensor.Data()

	scale := make([]float32, bn.channels)
	shift := make([]float32, bn.channels)
	for c := 0; c < bn.channels; c++ {
		s := g[c] / float32(math.Sqrt(float64(rv[c])+bn.eps))
		scale[c] = s
		shift[c] = b[c] - rm[c]*s
	}

	shape := tensor.Shape{1, bn.channels, 1, 1}
	scaleT, err := tensor.FromSlice(scale, shape, backend)
	if err != nil {
		panic(err)
	}
	shiftT, err := tensor.FromSlice(shift, shape, backend)
	if err != nil {
		panic(err)
	}
	return tensor.New[float32, B](
		backend.Add(backend.Mul(input.Raw(), scaleT.Raw()), shiftT.Raw()), backend)
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// Buffers returns the running statistics, which belong in checkpoints but
// receive no gradients.
func (bn *BatchNorm2D[B]) Buffers() []*Parameter[B] {
	return []*Parameter[B]{bn.runningMean, bn.runningVar}
}
