package drive

import (
	"fmt"
	"math/rand"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// PatchSampler draws augmented training patches from a set of samples.
type PatchSampler struct {
	samples    []*Sample
	patchSize  int
	noiseSigma float64
	rng        *rand.Rand
}

// NewPatchSampler creates a sampler. A noiseSigma of zero disables the
// noise augmentation.
func NewPatchSampler(samples []*Sample, patchSize int, noiseSigma float64, seed int64) *PatchSampler {
	return &PatchSampler{
		samples:    samples,
		patchSize:  patchSize,
		noiseSigma: noiseSigma,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Sample draws one augmented patch from a random subject.
func (p *PatchSampler) Sample() *Sample {
	s := p.samples[p.rng.Intn(len(p.samples))]
	patch := RandomCrop(p.rng, s, p.patchSize)
	patch = RandomRotFlip(p.rng, patch)
	if p.noiseSigma > 0 {
		patch = RandomNoise(p.rng, patch, p.noiseSigma)
	}
	return patch
}

// SampleBatch draws n augmented patches.
func (p *PatchSampler) SampleBatch(n int) []*Sample {
	batch := make([]*Sample, n)
	for i := range batch {
		batch[i] = p.Sample()
	}
	return batch
}

// Batch stacks samples of equal size into [N,3,H,W] image and [N,1,H,W]
// label tensors.
func Batch[B tensor.Backend](samples []*Sample, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B], error) {
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	h, w := samples[0].Height, samples[0].Width
	n := len(samples)

	images := tensor.Zeros[float32](tensor.Shape{n, Channels, h, w}, backend)
	labels := tensor.Zeros[float32](tensor.Shape{n, 1, h, w}, backend)
	id, ld := images.Data(), labels.Data()

	imgStride := Channels * h * w
	labStride := h * w
	for i, s := range samples {
		if s.Height != h || s.Width != w {
			return nil, nil, fmt.Errorf("sample %s is %dx%d, batch is %dx%d", s.Name, s.Height, s.Width, h, w)
		}
		copy(id[i*imgStride:(i+1)*imgStride], s.Image)
		copy(ld[i*labStride:(i+1)*labStride], s.Label)
	}
	return images, labels, nil
}
