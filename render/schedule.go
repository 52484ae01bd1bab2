package render

import (
	"fmt"

	"github.com/gosplat/gosplat/tensor"
	"github.com/gosplat/gosplat/training"
)

// ScheduledOptimizer couples an optimizer with a learning rate schedule
// driven by the global training step.
type ScheduledOptimizer struct {
	Name      string
	Optimizer *training.Adam
	Scheduler training.LRScheduler

	baseLR float64
}

// NewScheduledOptimizer wraps the optimizer, keeping its current learning
// rate as the schedule base.
func NewScheduledOptimizer(name string, optimizer *training.Adam, scheduler training.LRScheduler) *ScheduledOptimizer {
	return &ScheduledOptimizer{
		Name:      name,
		Optimizer: optimizer,
		Scheduler: scheduler,
		baseLR:    optimizer.GetLR(),
	}
}

// BaseLR returns the unscheduled learning rate.
func (so *ScheduledOptimizer) BaseLR() float64 {
	return so.baseLR
}

// LRAt returns the scheduled learning rate for a global step.
func (so *ScheduledOptimizer) LRAt(step int) float64 {
	return so.Scheduler.GetLR(step, so.baseLR)
}

// StepAt applies the schedule for the global step, then runs one optimizer
// update.
func (so *ScheduledOptimizer) StepAt(step int) error {
	so.Optimizer.SetLR(so.LRAt(step))
	return so.Optimizer.Step()
}

// ZeroGrad clears the gradients of the optimizer's parameters.
func (so *ScheduledOptimizer) ZeroGrad() {
	so.Optimizer.ZeroGrad()
}

// TrainingSetup builds the two optimizer groups: the appearance embedding
// and the network, each under the shared warm-up decay schedule.
func (r *AppearanceRenderer) TrainingSetup() ([]*ScheduledOptimizer, error) {
	if r.model == nil {
		return nil, ErrUninitialized
	}

	opt := r.config.Optimization
	scheduler := training.NewWarmupDecayLR(opt.LRFinalFactor, opt.MaxSteps, opt.WarmUp)

	embeddingAdam, err := training.NewAdam(r.model.EmbeddingParameters(), training.AdamConfig{
		LearningRate: opt.EmbeddingLRInit,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      opt.Eps,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding optimizer setup failed: %v", err)
	}

	networkAdam, err := training.NewAdam(r.model.NetworkParameters(), training.AdamConfig{
		LearningRate: opt.LRInit,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      opt.Eps,
	})
	if err != nil {
		return nil, fmt.Errorf("network optimizer setup failed: %v", err)
	}

	return []*ScheduledOptimizer{
		NewScheduledOptimizer("embedding", embeddingAdam, scheduler),
		NewScheduledOptimizer("network", networkAdam, scheduler),
	}, nil
}

// TrainingForward renders one training frame. Before the warm-up step count
// is reached the frame is delegated unchanged to the base renderer so early
// geometry optimization runs on plain SH colors.
func (r *AppearanceRenderer) TrainingForward(step int, camera Camera, pc PointCloud, background *tensor.Tensor, scalingModifier float32, renderTypes []string) (*RenderOutputBundle, error) {
	if step < r.config.Optimization.WarmUp {
		return r.base.Render(camera, pc, background, scalingModifier, renderTypes)
	}
	return r.Forward(camera, pc, background, scalingModifier, renderTypes)
}
