package ops

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

func mustRaw(shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		panic(err)
	}
	return r
}

// sumToShape reduces grad over the axes that were broadcast during the
// forward pass, producing a gradient with the input's original shape.
func sumToShape(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	gs := grad.Shape()
	if gs.Equal(target) {
		return grad
	}

	out := mustRaw(target, grad.DType())
	targetStrides := target.ComputeStrides()

	// Map each grad index to a target index: broadcast axes contribute 0.
	strides := make([]int, len(gs))
	offset := len(gs) - len(target)
	for i := range gs {
		j := i - offset
		if j < 0 || target[j] == 1 {
			strides[i] = 0
		} else {
			strides[i] = targetStrides[j]
		}
	}

	idx := make([]int, len(gs))
	advance := func() {
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < gs[d] {
				return
			}
			idx[d] = 0
		}
	}

	switch grad.DType() {
	case tensor.Float32:
		gd, od := grad.AsFloat32(), out.AsFloat32()
		for i := range gd {
			to := 0
			for d := range idx {
				to += idx[d] * strides[d]
			}
			od[to] += gd[i]
			advance()
		}
	case tensor.Float64:
		gd, od := grad.AsFloat64(), out.AsFloat64()
		for i := range gd {
			to := 0
			for d := range idx {
				to += idx[d] * strides[d]
			}
			od[to] += gd[i]
			advance()
		}
	default:
		panic("unsupported dtype")
	}
	return out
}
