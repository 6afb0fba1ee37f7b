package cpu

import (
	"fmt"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Reshape returns a copy of x under a new shape with the same element count.
func (b *Backend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	// Copy rather than alias so autodiff sees distinct tape nodes.
	return x.Clone().WithShape(shape)
}

// Cat concatenates tensors along a dimension. All tensors must agree on
// every other dimension and on dtype.
func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("Cat: no tensors given")
	}
	first := tensors[0]
	rank := len(first.Shape())
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("Cat: dimension %d out of range for rank %d", dim, rank))
	}

	outShape := first.Shape().Clone()
	for _, t := range tensors[1:] {
		s := t.Shape()
		if len(s) != rank || t.DType() != first.DType() {
			panic("Cat: tensors must have the same rank and dtype")
		}
		for d := 0; d < rank; d++ {
			if d == dim {
				continue
			}
			if s[d] != outShape[d] {
				panic(fmt.Sprintf("Cat: shapes differ on axis %d: %v vs %v", d, first.Shape(), s))
			}
		}
		outShape[dim] += s[dim]
	}

	out := mustRaw(outShape, first.DType())
	elemSize := first.DType().Size()

	// Concatenation copies contiguous row-major blocks: for each leading
	// index, every tensor contributes one block of size dimSize*inner.
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= outShape[d]
	}
	inner := 1
	for d := dim + 1; d < rank; d++ {
		inner *= outShape[d]
	}

	outData := out.Data()
	outBlock := outShape[dim] * inner * elemSize
	offset := 0
	for _, t := range tensors {
		block := t.Shape()[dim] * inner * elemSize
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(outData[o*outBlock+offset:o*outBlock+offset+block], src[o*block:(o+1)*block])
		}
		offset += block
	}
	return out
}

// Narrow returns the slice of x along dim from start (inclusive) spanning
// length elements. Used to split concatenated gradients.
func (b *Backend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("Narrow: dimension %d out of range for rank %d", dim, rank))
	}
	if start < 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("Narrow: range [%d,%d) out of bounds for axis %d (size %d)", start, start+length, dim, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	out := mustRaw(outShape, x.DType())
	elemSize := x.DType().Size()

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := 1
	for d := dim + 1; d < rank; d++ {
		inner *= shape[d]
	}

	srcBlock := shape[dim] * inner * elemSize
	dstBlock := length * inner * elemSize
	srcOff := start * inner * elemSize
	src, dst := x.Data(), out.Data()
	for o := 0; o < outer; o++ {
		copy(dst[o*dstBlock:(o+1)*dstBlock], src[o*srcBlock+srcOff:o*srcBlock+srcOff+dstBlock])
	}
	return out
}
