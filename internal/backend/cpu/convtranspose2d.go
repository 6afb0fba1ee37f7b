package cpu

import (
	"fmt"

	"github.com/vesselseg-ml/vesselseg/internal/parallel"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// ConvTranspose2D performs a fractionally-strided convolution (upsampling).
// Input is [N,Cin,H,W], kernel is [Cin,Cout,Kh,Kw]; output is
// [N,Cout,(H-1)*stride+Kh,(W-1)*stride+Kw].
func (b *Backend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride int) *tensor.RawTensor {
	requireFloat32("ConvTranspose2D", input, kernel)
	require4D("ConvTranspose2D input", input)
	require4D("ConvTranspose2D kernel", kernel)

	is, ks := input.Shape(), kernel.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, kh, kw := ks[1], ks[2], ks[3]
	if ks[0] != cin {
		panic(fmt.Sprintf("ConvTranspose2D: input channels %d do not match kernel channels %d", cin, ks[0]))
	}
	hout := (h-1)*stride + kh
	wout := (w-1)*stride + kw

	out := mustRaw(tensor.Shape{n, cout, hout, wout}, tensor.Float32)
	in, kd, od := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	parallel.For(n, parallel.Config{NumWorkers: b.pcfg.NumWorkers, MinChunkSize: 1}, func(start, end int) {
		for ni := start; ni < end; ni++ {
			for ci := 0; ci < cin; ci++ {
				inC := (ni*cin + ci) * h * w
				for co := 0; co < cout; co++ {
					kC := (ci*cout + co) * kh * kw
					outC := (ni*cout + co) * hout * wout
					for ih := 0; ih < h; ih++ {
						for iw := 0; iw < w; iw++ {
							v := in[inC+ih*w+iw]
							if v == 0 {
								continue
							}
							oBase := outC + ih*stride*wout + iw*stride
							for fh := 0; fh < kh; fh++ {
								rowOut := oBase + fh*wout
								rowK := kC + fh*kw
								for fw := 0; fw < kw; fw++ {
									od[rowOut+fw] += v * kd[rowK+fw]
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

// ConvTranspose2DInputBackward computes the gradient of ConvTranspose2D with
// respect to its input. The result matches the input shape.
func (b *Backend) ConvTranspose2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	requireFloat32("ConvTranspose2DInputBackward", input, kernel, grad)

	is, ks, gs := input.Shape(), kernel.Shape(), grad.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, kh, kw := ks[1], ks[2], ks[3]
	hout, wout := gs[2], gs[3]

	out := mustRaw(is, tensor.Float32)
	kd, gd, od := kernel.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	parallel.For(n, parallel.Config{NumWorkers: b.pcfg.NumWorkers, MinChunkSize: 1}, func(start, end int) {
		for ni := start; ni < end; ni++ {
			for ci := 0; ci < cin; ci++ {
				inC := (ni*cin + ci) * h * w
				for ih := 0; ih < h; ih++ {
					for iw := 0; iw < w; iw++ {
						var acc float32
						for co := 0; co < cout; co++ {
							kC := (ci*cout + co) * kh * kw
							gBase := (ni*cout+co)*hout*wout + ih*stride*wout + iw*stride
							for fh := 0; fh < kh; fh++ {
								rowG := gBase + fh*wout
								rowK := kC + fh*kw
								for fw := 0; fw < kw; fw++ {
									acc += gd[rowG+fw] * kd[rowK+fw]
								}
							}
						}
						od[inC+ih*w+iw] = acc
					}
				}
			}
		}
	})
	return out
}

// ConvTranspose2DKernelBackward computes the gradient of ConvTranspose2D with
// respect to its kernel. The result matches the kernel shape [Cin,Cout,Kh,Kw].
func (b *Backend) ConvTranspose2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	requireFloat32("ConvTranspose2DKernelBackward", input, kernel, grad)

	is, ks, gs := input.Shape(), kernel.Shape(), grad.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, kh, kw := ks[1], ks[2], ks[3]
	hout, wout := gs[2], gs[3]

	out := mustRaw(ks, tensor.Float32)
	in, gd, od := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	// Each worker owns one input channel's kernel slice, so writes never race.
	parallel.For(cin, parallel.Config{NumWorkers: b.pcfg.NumWorkers, MinChunkSize: 1}, func(start, end int) {
		for ci := start; ci < end; ci++ {
			for ni := 0; ni < n; ni++ {
				inC := (ni*cin + ci) * h * w
				for co := 0; co < cout; co++ {
					kC := (ci*cout + co) * kh * kw
					gC := (ni*cout + co) * hout * wout
					for ih := 0; ih < h; ih++ {
						for iw := 0; iw < w; iw++ {
							v := in[inC+ih*w+iw]
							if v == 0 {
								continue
							}
							gBase := gC + ih*stride*wout + iw*stride
							for fh := 0; fh < kh; fh++ {
								rowG := gBase + fh*wout
								rowK := kC + fh*kw
								for fw := 0; fw < kw; fw++ {
									od[rowK+fw] += v * gd[rowG+fw]
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
