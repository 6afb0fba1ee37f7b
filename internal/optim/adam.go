package optim

import (
	"math"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	params       []*tensor.RawTensor
	lr           float64
	beta1, beta2 float64
	eps          float64
	weightDecay  float64

	step int
	m    map[*tensor.RawTensor][]float32
	v    map[*tensor.RawTensor][]float32
}

// NewAdam creates an Adam optimizer with the usual defaults
// (beta1=0.9, beta2=0.999, eps=1e-8).
func NewAdam(params []*tensor.RawTensor, lr, weightDecay float64) *Adam {
	return &Adam{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: weightDecay,
		m:           make(map[*tensor.RawTensor][]float32),
		v:           make(map[*tensor.RawTensor][]float32),
	}
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 { return a.lr }

// SetLR overrides the learning rate.
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// StepCount returns the number of updates applied, for checkpointing.
func (a *Adam) StepCount() int { return a.step }

// SetStepCount restores the update counter from a checkpoint.
func (a *Adam) SetStepCount(n int) { a.step = n }

// Step applies one Adam update across all parameters with gradients.
func (a *Adam) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.step++
	c1 := 1.0 - math.Pow(a.beta1, float64(a.step))
	c2 := 1.0 - math.Pow(a.beta2, float64(a.step))

	for _, p := range a.params {
		g, ok := grads[p]
		if !ok {
			continue
		}
		pd, gd := p.AsFloat32(), g.AsFloat32()

		m, ok := a.m[p]
		if !ok {
			m = make([]float32, len(pd))
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = make([]float32, len(pd))
			a.v[p] = v
		}

		b1 := float32(a.beta1)
		b2 := float32(a.beta2)
		wd := float32(a.weightDecay)
		for i := range pd {
			grad := gd[i] + wd*pd[i]
			m[i] = b1*m[i] + (1-b1)*grad
			v[i] = b2*v[i] + (1-b2)*grad*grad
			mHat := float64(m[i]) / c1
			vHat := float64(v[i]) / c2
			pd[i] -= float32(a.lr * mHat / (math.Sqrt(vHat) + a.eps))
		}
	}
}
