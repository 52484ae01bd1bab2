package training

import (
	"math"
)

// LRScheduler defines the interface for learning rate scheduling strategies
// All schedulers are pure functions of the step counter.
type LRScheduler interface {
	// GetLR returns the learning rate for the given training step.
	GetLR(step int, baseLR float64) float64

	// GetName returns the scheduler name for logging
	GetName() string
}

// WarmupDecayLR holds the full learning rate through a warm-up window, then
// decays it so the multiplier reaches FinalFactor exactly MaxSteps steps
// after warm-up and stays clamped there:
//
//	multiplier(t) = FinalFactor ^ clamp((t - WarmUp)/MaxSteps, 0, 1)
type WarmupDecayLR struct {
	FinalFactor float64 // Multiplier reached at the end of the decay window
	MaxSteps    int     // Length of the decay window in steps
	WarmUp      int     // Steps at full learning rate before decay begins
}

// NewWarmupDecayLR creates a warm-up aware decay scheduler
func NewWarmupDecayLR(finalFactor float64, maxSteps, warmUp int) *WarmupDecayLR {
	if finalFactor <= 0 || finalFactor > 1 {
		finalFactor = 0.1
	}
	if maxSteps <= 0 {
		maxSteps = 30_000
	}
	if warmUp < 0 {
		warmUp = 0
	}
	return &WarmupDecayLR{
		FinalFactor: finalFactor,
		MaxSteps:    maxSteps,
		WarmUp:      warmUp,
	}
}

func (s *WarmupDecayLR) GetLR(step int, baseLR float64) float64 {
	progress := float64(step-s.WarmUp) / float64(s.MaxSteps)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return baseLR * math.Pow(s.FinalFactor, progress)
}

func (s *WarmupDecayLR) GetName() string {
	return "WarmupDecayLR"
}

// StepLR reduces the learning rate by a factor every StepSize steps
type StepLR struct {
	StepSize int     // Steps between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLR creates a step learning rate scheduler
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 1000
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLR) GetLR(step int, baseLR float64) float64 {
	times := step / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLR) GetName() string {
	return "StepLR"
}

// ExponentialLR decays the learning rate by Gamma every step
type ExponentialLR struct {
	Gamma float64 // Multiplicative factor of LR decay per step
}

// NewExponentialLR creates an exponential learning rate scheduler
func NewExponentialLR(gamma float64) *ExponentialLR {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLR{
		Gamma: gamma,
	}
}

func (s *ExponentialLR) GetLR(step int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(step))
}

func (s *ExponentialLR) GetName() string {
	return "ExponentialLR"
}

// NoOpScheduler maintains constant learning rate (default behavior)
type NoOpScheduler struct{}

func (s *NoOpScheduler) GetLR(step int, baseLR float64) float64 {
	return baseLR
}

func (s *NoOpScheduler) GetName() string {
	return "ConstantLR"
}
