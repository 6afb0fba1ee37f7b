package drive

import (
	"fmt"
	"math/rand"
)

// CenterCrop returns the centered size x size crop of the sample. The
// sample is zero padded first when smaller than the crop.
func CenterCrop(s *Sample, size int) *Sample {
	s = padToMin(s, size, size)
	top := (s.Height - size) / 2
	left := (s.Width - size) / 2
	return crop(s, top, left, size)
}

// RandomCrop returns a uniformly placed size x size crop, zero padding
// first when the sample is smaller than the crop.
func RandomCrop(rng *rand.Rand, s *Sample, size int) *Sample {
	s = padToMin(s, size, size)
	top := rng.Intn(s.Height - size + 1)
	left := rng.Intn(s.Width - size + 1)
	return crop(s, top, left, size)
}

// RandomRotFlip rotates the sample by a random multiple of 90 degrees and
// then flips it along a random axis half of the time. Requires a square
// sample.
func RandomRotFlip(rng *rand.Rand, s *Sample) *Sample {
	if s.Height != s.Width {
		panic(fmt.Sprintf("RandomRotFlip requires a square sample, got %dx%d", s.Height, s.Width))
	}
	out := s.Clone()
	for k := rng.Intn(4); k > 0; k-- {
		rotate90(out)
	}
	if rng.Intn(2) == 1 {
		flip(out, rng.Intn(2) == 1)
	}
	return out
}

// RandomNoise adds Gaussian noise clipped to [-2*sigma, 2*sigma] to the
// image planes. Annotations and the field of view are left untouched.
func RandomNoise(rng *rand.Rand, s *Sample, sigma float64) *Sample {
	out := s.Clone()
	lo, hi := -2*sigma, 2*sigma
	for i := range out.Image {
		n := rng.NormFloat64() * sigma
		if n < lo {
			n = lo
		} else if n > hi {
			n = hi
		}
		out.Image[i] += float32(n)
	}
	return out
}

// PadToMultiple zero pads the sample on the bottom and right so both
// dimensions are divisible by multiple. Needed before full-image inference,
// since each pooling stage halves the resolution.
func PadToMultiple(s *Sample, multiple int) *Sample {
	h := ((s.Height + multiple - 1) / multiple) * multiple
	w := ((s.Width + multiple - 1) / multiple) * multiple
	if h == s.Height && w == s.Width {
		return s
	}
	return pad(s, h, w)
}

func padToMin(s *Sample, minH, minW int) *Sample {
	if s.Height >= minH && s.Width >= minW {
		return s
	}
	h, w := s.Height, s.Width
	if h < minH {
		h = minH
	}
	if w < minW {
		w = minW
	}
	return pad(s, h, w)
}

// pad grows the sample to h x w, keeping content in the top-left corner.
func pad(s *Sample, h, w int) *Sample {
	out := &Sample{Name: s.Name, Height: h, Width: w}
	out.Image = make([]float32, Channels*h*w)
	out.Label = make([]float32, h*w)
	out.FOV = make([]float32, h*w)

	for c := 0; c < Channels; c++ {
		for y := 0; y < s.Height; y++ {
			copy(out.Image[c*h*w+y*w:c*h*w+y*w+s.Width], s.Image[c*s.Height*s.Width+y*s.Width:])
		}
	}
	for y := 0; y < s.Height; y++ {
		copy(out.Label[y*w:y*w+s.Width], s.Label[y*s.Width:])
		copy(out.FOV[y*w:y*w+s.Width], s.FOV[y*s.Width:])
	}
	return out
}

func crop(s *Sample, top, left, size int) *Sample {
	out := &Sample{Name: s.Name, Height: size, Width: size}
	out.Image = make([]float32, Channels*size*size)
	out.Label = make([]float32, size*size)
	out.FOV = make([]float32, size*size)

	for c := 0; c < Channels; c++ {
		for y := 0; y < size; y++ {
			srcRow := c*s.Height*s.Width + (top+y)*s.Width + left
			copy(out.Image[c*size*size+y*size:c*size*size+(y+1)*size], s.Image[srcRow:srcRow+size])
		}
	}
	for y := 0; y < size; y++ {
		srcRow := (top+y)*s.Width + left
		copy(out.Label[y*size:(y+1)*size], s.Label[srcRow:srcRow+size])
		copy(out.FOV[y*size:(y+1)*size], s.FOV[srcRow:srcRow+size])
	}
	return out
}

// rotate90 rotates a square sample counter-clockwise in place.
func rotate90(s *Sample) {
	n := s.Height
	rotPlane := func(p []float32, base int) {
		tmp := make([]float32, n*n)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				// (y, x) -> (n-1-x, y).
				tmp[(n-1-x)*n+y] = p[base+y*n+x]
			}
		}
		copy(p[base:base+n*n], tmp)
	}
	for c := 0; c < Channels; c++ {
		rotPlane(s.Image, c*n*n)
	}
	rotPlane(s.Label, 0)
	rotPlane(s.FOV, 0)
}

// flip mirrors a square sample in place, vertically or horizontally.
func flip(s *Sample, vertical bool) {
	n := s.Height
	flipPlane := func(p []float32, base int) {
		if vertical {
			for y := 0; y < n/2; y++ {
				for x := 0; x < n; x++ {
					a, b := base+y*n+x, base+(n-1-y)*n+x
					p[a], p[b] = p[b], p[a]
				}
			}
		} else {
			for y := 0; y < n; y++ {
				for x := 0; x < n/2; x++ {
					a, b := base+y*n+x, base+y*n+(n-1-x)
					p[a], p[b] = p[b], p[a]
				}
			}
		}
	}
	for c := 0; c < Channels; c++ {
		flipPlane(s.Image, c*n*n)
	}
	flipPlane(s.Label, 0)
	flipPlane(s.FOV, 0)
}
