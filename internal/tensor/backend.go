package tensor

// Backend is the contract every compute backend fulfills. Kernels take and
// return RawTensors; shape checking happens inside the kernel and violations
// panic, since they indicate programmer error rather than runtime conditions.
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Element-wise operations with a scalar.
	AddScalar(x *RawTensor, s float64) *RawTensor
	MulScalar(x *RawTensor, s float64) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor

	// Convolution family. Input [N,C,H,W], kernel [Cout,Cin,Kh,Kw] for
	// Conv2D and [Cin,Cout,Kh,Kw] for ConvTranspose2D.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	ConvTranspose2D(input, kernel *RawTensor, stride int) *RawTensor
	ConvTranspose2DInputBackward(input, kernel, grad *RawTensor, stride int) *RawTensor
	ConvTranspose2DKernelBackward(input, kernel, grad *RawTensor, stride int) *RawTensor

	// Pooling. MaxPool2DArgmax reports the flat input index behind each
	// pooled element; MaxPool2DBackward routes gradients through those
	// indices.
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DArgmax(input *RawTensor, kernelSize, stride int) []int
	MaxPool2DBackward(input, grad *RawTensor, maxIndices []int) *RawTensor

	// Shape manipulation. Narrow slices along one dimension; it is the
	// inverse used to split concatenated gradients.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Reductions to a scalar-shaped tensor [1].
	Sum(x *RawTensor) *RawTensor
	Mean(x *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
