package optim

import "math"

// StepLR decays the learning rate by gamma every stepSize epochs:
// lr(epoch) = initial * gamma^floor(epoch/stepSize).
type StepLR struct {
	initial  float64
	stepSize int
	gamma    float64
}

// NewStepLR creates a step decay schedule over the optimizer's starting
// learning rate.
func NewStepLR(opt Optimizer, stepSize int, gamma float64) *StepLR {
	return &StepLR{initial: opt.LR(), stepSize: stepSize, gamma: gamma}
}

// Apply sets the optimizer's learning rate for the given zero-based epoch.
func (s *StepLR) Apply(opt Optimizer, epoch int) {
	if s.stepSize <= 0 {
		return
	}
	opt.SetLR(s.initial * math.Pow(s.gamma, float64(epoch/s.stepSize)))
}
