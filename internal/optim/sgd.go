package optim

import "github.com/vesselseg-ml/vesselseg/internal/tensor"

// SGD implements stochastic gradient descent with momentum and optional
// weight decay.
type SGD struct {
	params      []*tensor.RawTensor
	lr          float64
	momentum    float64
	weightDecay float64

	velocities map[*tensor.RawTensor][]float32
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(params []*tensor.RawTensor, lr, momentum, weightDecay float64) *SGD {
	return &SGD{
		params:      params,
		lr:          lr,
		momentum:    momentum,
		weightDecay: weightDecay,
		velocities:  make(map[*tensor.RawTensor][]float32),
	}
}

// LR returns the current learning rate.
func (s *SGD) LR() float64 { return s.lr }

// SetLR overrides the learning rate.
func (s *SGD) SetLR(lr float64) { s.lr = lr }

// Step applies v = momentum*v + grad + wd*param; param -= lr*v.
func (s *SGD) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, p := range s.params {
		g, ok := grads[p]
		if !ok {
			continue
		}
		pd, gd := p.AsFloat32(), g.AsFloat32()

		v, ok := s.velocities[p]
		if !ok {
			v = make([]float32, len(pd))
			s.velocities[p] = v
		}

		lr := float32(s.lr)
		mom := float32(s.momentum)
		wd := float32(s.weightDecay)
		for i := range pd {
			grad := gd[i] + wd*pd[i]
			v[i] = mom*v[i] + grad
			pd[i] -= lr * v[i]
		}
	}
}
