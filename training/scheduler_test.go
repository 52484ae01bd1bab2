package training

import (
	"math"
	"testing"
)

func TestWarmupDecayLRSchedule(t *testing.T) {
	scheduler := NewWarmupDecayLR(0.1, 30_000, 4000)
	baseLR := 2e-3

	tests := []struct {
		name     string
		step     int
		expected float64
	}{
		{"before warm-up", 0, baseLR},
		{"at warm-up boundary", 4000, baseLR},
		{"halfway through decay", 19_000, baseLR * math.Pow(0.1, 0.5)},
		{"end of decay window", 34_000, baseLR * 0.1},
		{"past the decay window", 100_000, baseLR * 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := scheduler.GetLR(tt.step, baseLR)
			if math.Abs(lr-tt.expected) > 1e-12 {
				t.Errorf("Step %d: expected lr %g, got %g", tt.step, tt.expected, lr)
			}
		})
	}
}

func TestWarmupDecayLRIsMonotonic(t *testing.T) {
	scheduler := NewWarmupDecayLR(0.1, 1000, 100)

	previous := scheduler.GetLR(0, 1.0)
	for step := 1; step <= 1200; step++ {
		lr := scheduler.GetLR(step, 1.0)
		if lr > previous {
			t.Fatalf("Learning rate increased at step %d: %g > %g", step, lr, previous)
		}
		previous = lr
	}
}

func TestWarmupDecayLRDefaults(t *testing.T) {
	scheduler := NewWarmupDecayLR(0, 0, -5)

	if scheduler.FinalFactor != 0.1 {
		t.Errorf("Expected default final factor 0.1, got %f", scheduler.FinalFactor)
	}
	if scheduler.MaxSteps != 30_000 {
		t.Errorf("Expected default max steps 30000, got %d", scheduler.MaxSteps)
	}
	if scheduler.WarmUp != 0 {
		t.Errorf("Expected warm-up clamped to 0, got %d", scheduler.WarmUp)
	}
	if scheduler.GetName() != "WarmupDecayLR" {
		t.Errorf("Unexpected scheduler name %q", scheduler.GetName())
	}
}

func TestStepLR(t *testing.T) {
	scheduler := NewStepLR(10, 0.5)

	if lr := scheduler.GetLR(5, 1.0); lr != 1.0 {
		t.Errorf("Expected lr 1.0 before first step boundary, got %f", lr)
	}
	if lr := scheduler.GetLR(10, 1.0); lr != 0.5 {
		t.Errorf("Expected lr 0.5 after one decay, got %f", lr)
	}
	if lr := scheduler.GetLR(25, 1.0); lr != 0.25 {
		t.Errorf("Expected lr 0.25 after two decays, got %f", lr)
	}
}

func TestExponentialLR(t *testing.T) {
	scheduler := NewExponentialLR(0.9)

	if lr := scheduler.GetLR(0, 1.0); lr != 1.0 {
		t.Errorf("Expected lr 1.0 at step 0, got %f", lr)
	}
	expected := math.Pow(0.9, 10)
	if lr := scheduler.GetLR(10, 1.0); math.Abs(lr-expected) > 1e-12 {
		t.Errorf("Expected lr %g at step 10, got %g", expected, lr)
	}
}

func TestNoOpScheduler(t *testing.T) {
	scheduler := &NoOpScheduler{}
	if lr := scheduler.GetLR(12345, 0.7); lr != 0.7 {
		t.Errorf("Expected unchanged lr 0.7, got %f", lr)
	}
}
