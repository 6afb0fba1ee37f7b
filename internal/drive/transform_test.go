package drive_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselseg-ml/vesselseg/internal/drive"
)

// gradientSample builds an h x w sample whose pixels encode their position.
func gradientSample(h, w int) *drive.Sample {
	s := &drive.Sample{Name: "t", Height: h, Width: w}
	s.Image = make([]float32, drive.Channels*h*w)
	s.Label = make([]float32, h*w)
	s.FOV = make([]float32, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32(y*w + x)
			for c := 0; c < drive.Channels; c++ {
				s.Image[c*h*w+y*w+x] = v + float32(c*1000)
			}
			s.Label[y*w+x] = v
			s.FOV[y*w+x] = 1
		}
	}
	return s
}

func TestCenterCrop(t *testing.T) {
	s := gradientSample(6, 6)
	c := drive.CenterCrop(s, 4)
	assert.Equal(t, 4, c.Height)
	assert.Equal(t, 4, c.Width)
	// Center crop of a 6x6 starts at (1,1).
	assert.Equal(t, float32(1*6+1), c.Label[0])
}

func TestRandomCropWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := gradientSample(10, 10)

	for i := 0; i < 20; i++ {
		c := drive.RandomCrop(rng, s, 4)
		require.Equal(t, 4, c.Height)
		require.Equal(t, 4, c.Width)
		// Rows in a crop stay contiguous in the source.
		for y := 0; y < 4; y++ {
			for x := 1; x < 4; x++ {
				assert.Equal(t, c.Label[y*4+x-1]+1, c.Label[y*4+x])
			}
		}
	}
}

func TestRandomCropPadsSmallSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	s := gradientSample(3, 3)
	c := drive.RandomCrop(rng, s, 5)
	assert.Equal(t, 5, c.Height)
	assert.Equal(t, 5, c.Width)
}

func TestRandomRotFlipPreservesPixels(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := gradientSample(4, 4)

	for i := 0; i < 10; i++ {
		r := drive.RandomRotFlip(rng, s)
		got := append([]float32(nil), r.Label...)
		want := append([]float32(nil), s.Label...)
		sort.Slice(got, func(a, b int) bool { return got[a] < got[b] })
		sort.Slice(want, func(a, b int) bool { return want[a] < want[b] })
		assert.Equal(t, want, got, "rotation/flip must permute, not alter, pixels")
	}
}

func TestRandomRotFlipAppliesSameTransformToAllPlanes(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	s := gradientSample(4, 4)

	r := drive.RandomRotFlip(rng, s)
	// Image plane 0 and the label encode the same positions, so they must
	// stay aligned under any rotation or flip.
	for i := 0; i < 16; i++ {
		assert.Equal(t, r.Label[i], r.Image[i])
	}
}

func TestRandomNoiseBoundedAndLabelUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	s := gradientSample(4, 4)
	sigma := 0.1

	n := drive.RandomNoise(rng, s, sigma)
	for i := range n.Image {
		diff := float64(n.Image[i] - s.Image[i])
		assert.LessOrEqual(t, diff, 2*sigma+1e-6)
		assert.GreaterOrEqual(t, diff, -2*sigma-1e-6)
	}
	assert.Equal(t, s.Label, n.Label)
	assert.Equal(t, s.FOV, n.FOV)
}

func TestPadToMultiple(t *testing.T) {
	s := gradientSample(5, 6)
	p := drive.PadToMultiple(s, 4)
	assert.Equal(t, 8, p.Height)
	assert.Equal(t, 8, p.Width)
	// Content stays in the top-left corner.
	assert.Equal(t, s.Label[0], p.Label[0])
	assert.Equal(t, s.Label[1*6+2], p.Label[1*8+2])
	// Padding is zero.
	assert.Equal(t, float32(0), p.Label[7*8+7])

	same := drive.PadToMultiple(gradientSample(8, 8), 4)
	assert.Equal(t, 8, same.Height)
}

func TestPatchSamplerProducesAugmentedPatches(t *testing.T) {
	s := gradientSample(16, 16)
	sampler := drive.NewPatchSampler([]*drive.Sample{s}, 8, 0.05, 42)

	batch := sampler.SampleBatch(4)
	require.Len(t, batch, 4)
	for _, p := range batch {
		assert.Equal(t, 8, p.Height)
		assert.Equal(t, 8, p.Width)
	}
}
