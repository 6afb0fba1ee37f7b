package cpu

import (
	"github.com/vesselseg-ml/vesselseg/internal/parallel"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Conv2DInputBackward computes the gradient of Conv2D with respect to its
// input. grad has the forward output's shape [N,Cout,Hout,Wout]; the result
// matches the input shape.
func (b *Backend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireFloat32("Conv2DInputBackward", input, kernel, grad)

	is, ks, gs := input.Shape(), kernel.Shape(), grad.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, kh, kw := ks[0], ks[2], ks[3]
	hout, wout := gs[2], gs[3]

	out := mustRaw(is, tensor.Float32)
	kd, gd, od := kernel.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	// Each worker owns one sample, so writes never race.
	parallel.For(n, parallel.Config{NumWorkers: b.pcfg.NumWorkers, MinChunkSize: 1}, func(start, end int) {
		for ni := start; ni < end; ni++ {
			inBase := ni * cin * h * w
			for co := 0; co < cout; co++ {
				gBase := (ni*cout + co) * hout * wout
				kBase := co * cin * kh * kw
				for oh := 0; oh < hout; oh++ {
					for ow := 0; ow < wout; ow++ {
						g := gd[gBase+oh*wout+ow]
						if g == 0 {
							continue
						}
						for ci := 0; ci < cin; ci++ {
							inC := inBase + ci*h*w
							kC := kBase + ci*kh*kw
							for fh := 0; fh < kh; fh++ {
								ih := oh*stride + fh - padding
								if ih < 0 || ih >= h {
									continue
								}
								rowIn := inC + ih*w
								rowK := kC + fh*kw
								for fw := 0; fw < kw; fw++ {
									iw := ow*stride + fw - padding
									if iw < 0 || iw >= w {
										continue
									}
									od[rowIn+iw] += g * kd[rowK+fw]
								}
							}
						}
					}
				}
			}
		}
	})
	return out
}

// Conv2DKernelBackward computes the gradient of Conv2D with respect to its
// kernel. The result matches the kernel shape [Cout,Cin,Kh,Kw].
func (b *Backend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireFloat32("Conv2DKernelBackward", input, kernel, grad)

	is, ks, gs := input.Shape(), kernel.Shape(), grad.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, kh, kw := ks[0], ks[2], ks[3]
	hout, wout := gs[2], gs[3]

	out := mustRaw(ks, tensor.Float32)
	in, gd, od := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	// Each worker owns one output channel's kernel slice, so writes never race.
	parallel.For(cout, parallel.Config{NumWorkers: b.pcfg.NumWorkers, MinChunkSize: 1}, func(start, end int) {
		for co := start; co < end; co++ {
			kBase := co * cin * kh * kw
			for ni := 0; ni < n; ni++ {
				inBase := ni * cin * h * w
				gBase := (ni*cout + co) * hout * wout
				for oh := 0; oh < hout; oh++ {
					for ow := 0; ow < wout; ow++ {
						g := gd[gBase+oh*wout+ow]
						if g == 0 {
							continue
						}
						for ci := 0; ci < cin; ci++ {
							inC := inBase + ci*h*w
							kC := kBase + ci*kh*kw
							for fh := 0; fh < kh; fh++ {
								ih := oh*stride + fh - padding
								if ih < 0 || ih >= h {
									continue
								}
								rowIn := inC + ih*w
								rowK := kC + fh*kw
								for fw := 0; fw < kw; fw++ {
									iw := ow*stride + fw - padding
									if iw < 0 || iw >= w {
										continue
									}
									od[rowK+fw] += g * in[rowIn+iw]
								}
							}
						}
					}
				}
			}
		}
	})
	return out
}
