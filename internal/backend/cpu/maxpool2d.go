package cpu

import (
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/parallel"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// MaxPool2D performs 2D max pooling over [N,C,H,W] input.
// Output is [N,C,(H-kernelSize)/stride+1,(W-kernelSize)/stride+1].
func (b *Backend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	requireFloat32("MaxPool2D", input)
	require4D("MaxPool2D input", input)

	is := input.Shape()
	n, c, h, w := is[0], is[1], is[2], is[3]
	hout := (h-kernelSize)/stride + 1
	wout := (w-kernelSize)/stride + 1

	out := mustRaw(tensor.Shape{n, c, hout, wout}, tensor.Float32)
	in, od := input.AsFloat32(), out.AsFloat32()

	parallel.For(n*c, b.pcfg, func(start, end int) {
		for plane := start; plane < end; plane++ {
			inC := plane * h * w
			outC := plane * hout * wout
			for oh := 0; oh < hout; oh++ {
				for ow := 0; ow < wout; ow++ {
					best := float32(math.Inf(-1))
					for fh := 0; fh < kernelSize; fh++ {
						rowIn := inC + (oh*stride+fh)*w + ow*stride
						for fw := 0; fw < kernelSize; fw++ {
							if v := in[rowIn+fw]; v > best {
								best = v
							}
						}
					}
					od[outC+oh*wout+ow] = best
				}
			}
		}
	})
	return out
}

// MaxPool2DArgmax returns, for each pooled output element, the flat index of
// the input element that produced it. The autodiff layer captures these
// during the forward pass and feeds them back into MaxPool2DBackward.
func (b *Backend) MaxPool2DArgmax(input *tensor.RawTensor, kernelSize, stride int) []int {
	requireFloat32("MaxPool2DArgmax", input)
	require4D("MaxPool2DArgmax input", input)

	is := input.Shape()
	n, c, h, w := is[0], is[1], is[2], is[3]
	hout := (h-kernelSize)/stride + 1
	wout := (w-kernelSize)/stride + 1

	in := input.AsFloat32()
	indices := make([]int, n*c*hout*wout)

	parallel.For(n*c, b.pcfg, func(start, end int) {
		for plane := start; plane < end; plane++ {
			inC := plane * h * w
			outC := plane * hout * wout
			for oh := 0; oh < hout; oh++ {
				for ow := 0; ow < wout; ow++ {
					best := float32(math.Inf(-1))
					bestIdx := -1
					for fh := 0; fh < kernelSize; fh++ {
						rowIn := inC + (oh*stride+fh)*w + ow*stride
						for fw := 0; fw < kernelSize; fw++ {
							if v := in[rowIn+fw]; v > best {
								best = v
								bestIdx = rowIn + fw
							}
						}
					}
					indices[outC+oh*wout+ow] = bestIdx
				}
			}
		}
	})
	return indices
}

// MaxPool2DBackward scatters the pooled gradient back to the input positions
// recorded in maxIndices. The result matches the input shape.
func (b *Backend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	requireFloat32("MaxPool2DBackward", input, grad)

	out := mustRaw(input.Shape(), tensor.Float32)
	gd, od := grad.AsFloat32(), out.AsFloat32()
	for i, idx := range maxIndices {
		od[idx] += gd[i]
	}
	return out
}
