package cpu

import (
	"fmt"

	"github.com/vesselseg-ml/vesselseg/internal/parallel"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

func requireFloat32(name string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: only float32 is supported, got %s", name, t.DType()))
		}
	}
}

func require4D(name string, t *tensor.RawTensor) {
	if len(t.Shape()) != 4 {
		panic(fmt.Sprintf("%s: expected 4D tensor, got shape %v", name, t.Shape()))
	}
}

// Conv2D performs a 2D cross-correlation.
// Input is [N,Cin,H,W], kernel is [Cout,Cin,Kh,Kw]; output is [N,Cout,Hout,Wout]
// with Hout = (H + 2*padding - Kh)/stride + 1.
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireFloat32("Conv2D", input, kernel)
	require4D("Conv2D input", input)
	require4D("Conv2D kernel", kernel)

	is, ks := input.Shape(), kernel.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, kh, kw := ks[0], ks[2], ks[3]
	if ks[1] != cin {
		panic(fmt.Sprintf("Conv2D: input channels %d do not match kernel channels %d", cin, ks[1]))
	}
	hout := (h+2*padding-kh)/stride + 1
	wout := (w+2*padding-kw)/stride + 1
	if hout <= 0 || wout <= 0 {
		panic(fmt.Sprintf("Conv2D: kernel %dx%d too large for input %dx%d (padding %d)", kh, kw, h, w, padding))
	}

	out := mustRaw(tensor.Shape{n, cout, hout, wout}, tensor.Float32)
	in, kd, od := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	parallel.For(n*cout, b.pcfg, func(start, end int) {
		for job := start; job < end; job++ {
			ni, co := job/cout, job%cout
			inBase := ni * cin * h * w
			kBase := co * cin * kh * kw
			outBase := (ni*cout + co) * hout * wout
			for oh := 0; oh < hout; oh++ {
				for ow := 0; ow < wout; ow++ {
					var acc float32
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
								acc += in[rowIn+iw] * kd[rowK+fw]
							}
						}
					}
					od[outBase+oh*wout+ow] = acc
				}
			}
		}
	})
	return out
}
