package render

import (
	"math"
	"testing"
)

func TestTrainingSetupRequiresModel(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if _, err := scene.renderer.TrainingSetup(); err == nil {
		t.Error("Expected error before setup, got nil")
	}
}

func TestTrainingSetupGroups(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if err := scene.renderer.Setup(nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	groups, err := scene.renderer.TrainingSetup()
	if err != nil {
		t.Fatalf("TrainingSetup failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("Expected 2 optimizer groups, got %d", len(groups))
	}

	embedding, network := groups[0], groups[1]
	if embedding.Name != "embedding" || network.Name != "network" {
		t.Errorf("Unexpected group names %q and %q", embedding.Name, network.Name)
	}
	if embedding.BaseLR() != 2e-3 {
		t.Errorf("Expected embedding base lr 2e-3, got %g", embedding.BaseLR())
	}
	if network.BaseLR() != 1e-3 {
		t.Errorf("Expected network base lr 1e-3, got %g", network.BaseLR())
	}
}

func TestScheduledLearningRates(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if err := scene.renderer.Setup(nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	groups, err := scene.renderer.TrainingSetup()
	if err != nil {
		t.Fatalf("TrainingSetup failed: %v", err)
	}

	opt := scene.renderer.Config().Optimization
	for _, group := range groups {
		base := group.BaseLR()

		if lr := group.LRAt(0); lr != base {
			t.Errorf("%s: expected base lr %g before warm-up, got %g", group.Name, base, lr)
		}
		if lr := group.LRAt(opt.WarmUp); lr != base {
			t.Errorf("%s: expected base lr %g at warm-up boundary, got %g", group.Name, base, lr)
		}
		final := base * opt.LRFinalFactor
		if lr := group.LRAt(opt.WarmUp + opt.MaxSteps); math.Abs(lr-final) > 1e-12 {
			t.Errorf("%s: expected final lr %g, got %g", group.Name, final, lr)
		}
		if lr := group.LRAt(opt.WarmUp + 10*opt.MaxSteps); math.Abs(lr-final) > 1e-12 {
			t.Errorf("%s: expected lr clamped at %g past the window, got %g", group.Name, final, lr)
		}
	}
}

func TestScheduledOptimizerStepAppliesLR(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if err := scene.renderer.Setup(nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	groups, err := scene.renderer.TrainingSetup()
	if err != nil {
		t.Fatalf("TrainingSetup failed: %v", err)
	}
	group := groups[1]
	opt := scene.renderer.Config().Optimization

	step := opt.WarmUp + opt.MaxSteps
	if err := group.StepAt(step); err != nil {
		t.Fatalf("StepAt failed: %v", err)
	}

	expected := group.BaseLR() * opt.LRFinalFactor
	if got := group.Optimizer.GetLR(); math.Abs(got-expected) > 1e-12 {
		t.Errorf("Expected optimizer lr %g after scheduled step, got %g", expected, got)
	}
}

func TestTrainingForwardWarmUpDelegates(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if err := scene.renderer.Setup(nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	warmUp := scene.renderer.Config().Optimization.WarmUp

	bundle, err := scene.renderer.TrainingForward(warmUp-1, scene.camera, scene.pc, scene.background, 1, nil)
	if err != nil {
		t.Fatalf("TrainingForward failed: %v", err)
	}
	if scene.base.calls != 1 {
		t.Errorf("Expected 1 base renderer call during warm-up, got %d", scene.base.calls)
	}
	if len(scene.rasterizer.calls) != 0 {
		t.Error("Appearance pipeline must not run during warm-up")
	}
	if bundle.GradScale != [2]float32{-1, -1} {
		t.Error("Expected the base renderer's bundle during warm-up")
	}
}

func TestTrainingForwardAfterWarmUp(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if err := scene.renderer.Setup(nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	warmUp := scene.renderer.Config().Optimization.WarmUp

	bundle, err := scene.renderer.TrainingForward(warmUp, scene.camera, scene.pc, scene.background, 1, nil)
	if err != nil {
		t.Fatalf("TrainingForward failed: %v", err)
	}
	if scene.base.calls != 0 {
		t.Errorf("Expected no base renderer calls at the warm-up boundary, got %d", scene.base.calls)
	}
	if bundle.RGB == nil {
		t.Error("Expected the appearance pipeline's RGB channel")
	}
}

// TestTrainingStepMovesParameters runs one optimization cycle end to end:
// forward, backward on the rendered colors, scheduled optimizer step.
func TestTrainingStepMovesParameters(t *testing.T) {
	scene := newTestScene(t, smallConfig(), 4)
	if err := scene.renderer.Setup(nil); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	groups, err := scene.renderer.TrainingSetup()
	if err != nil {
		t.Fatalf("TrainingSetup failed: %v", err)
	}

	before, err := scene.renderer.Model().Embedding().Weight().Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	step := scene.renderer.Config().Optimization.WarmUp
	bundle, err := scene.renderer.TrainingForward(step, scene.camera, scene.pc, scene.background, 1, nil)
	if err != nil {
		t.Fatalf("TrainingForward failed: %v", err)
	}
	if err := bundle.RGB.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	for _, group := range groups {
		if err := group.StepAt(step); err != nil {
			t.Fatalf("StepAt failed for %s: %v", group.Name, err)
		}
		group.ZeroGrad()
	}

	if scene.renderer.Model().Embedding().Weight().Equal(before) {
		t.Error("Expected the embedding table to move after an optimization step")
	}
}
