package nn

import (
	"math"
	"math/rand"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// KaimingNormal fills t with values from N(0, sqrt(2/fanIn)), the
// initialization suited to ReLU networks. Drawing from an explicit source
// keeps model construction reproducible for a fixed seed.
func KaimingNormal[B tensor.Backend](rng *rand.Rand, t *tensor.Tensor[float32, B], fanIn int) {
	std := math.Sqrt(2.0 / float64(fanIn))
	data := t.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64() * std)
	}
}

// XavierUniform fills t with values from U(-a, a), a = sqrt(6/(fanIn+fanOut)).
func XavierUniform[B tensor.Backend](rng *rand.Rand, t *tensor.Tensor[float32, B], fanIn, fanOut int) {
	a := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2 - 1) * a)
	}
}
