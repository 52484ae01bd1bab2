package render

import (
	"path/filepath"
	"testing"
)

func setupRenderer(t *testing.T, nAppearances int) *testScene {
	t.Helper()
	config := smallConfig()
	config.Model.NAppearances = nAppearances
	scene := newTestScene(t, config, 4)
	if nAppearances > 0 {
		if err := scene.renderer.Setup(nil); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}
	return scene
}

func TestStateDictRequiresSetup(t *testing.T) {
	scene := setupRenderer(t, -1)
	if _, err := scene.renderer.StateDict(); err == nil {
		t.Error("Expected error before setup, got nil")
	}
}

func TestStateDictNamesAllParameters(t *testing.T) {
	scene := setupRenderer(t, 3)

	checkpoint, err := scene.renderer.StateDict()
	if err != nil {
		t.Fatalf("StateDict failed: %v", err)
	}

	// Embedding plus weight and bias for each of the 2 layers.
	if len(checkpoint.Weights) != 5 {
		t.Fatalf("Expected 5 weight tensors, got %d", len(checkpoint.Weights))
	}

	embedding, err := checkpoint.FindWeight("model.embedding.weight")
	if err != nil {
		t.Fatalf("FindWeight failed: %v", err)
	}
	if embedding.Shape[0] != 3 || embedding.Shape[1] != 4 {
		t.Errorf("Expected embedding shape [3 4], got %v", embedding.Shape)
	}

	for _, name := range []string{
		"model.network.0.weight", "model.network.0.bias",
		"model.network.1.weight", "model.network.1.bias",
	} {
		if _, err := checkpoint.FindWeight(name); err != nil {
			t.Errorf("Missing weight %s: %v", name, err)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	source := setupRenderer(t, 3)
	checkpoint, err := source.renderer.StateDict()
	if err != nil {
		t.Fatalf("StateDict failed: %v", err)
	}

	target := setupRenderer(t, 3)

	// Wipe the target's weights so the restore is observable.
	for _, p := range target.renderer.Model().EmbeddingParameters() {
		for i := range p.Data {
			p.Data[i] = 0
		}
	}
	for _, p := range target.renderer.Model().NetworkParameters() {
		for i := range p.Data {
			p.Data[i] = 99
		}
	}

	if err := target.renderer.LoadStateDict(checkpoint); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	if !target.renderer.Model().Embedding().Weight().Equal(source.renderer.Model().Embedding().Weight()) {
		t.Error("Embedding weights should match after restore")
	}
	sourceLayers := source.renderer.Model().Network().Layers()
	for i, layer := range target.renderer.Model().Network().Layers() {
		if !layer.Weight().Equal(sourceLayers[i].Weight()) {
			t.Errorf("Layer %d weight should match after restore", i)
		}
		if !layer.Bias().Equal(sourceLayers[i].Bias()) {
			t.Errorf("Layer %d bias should match after restore", i)
		}
	}
}

// TestLoadStateDictHealsAppearanceCount restores a checkpoint whose
// embedding table disagrees with the configured appearance count; the
// persisted row count wins.
func TestLoadStateDictHealsAppearanceCount(t *testing.T) {
	source := setupRenderer(t, 3)
	checkpoint, err := source.renderer.StateDict()
	if err != nil {
		t.Fatalf("StateDict failed: %v", err)
	}

	target := setupRenderer(t, 10)
	if target.renderer.Model().Embedding().NumEmbeddings() != 10 {
		t.Fatalf("Precondition failed: expected 10 rows before load")
	}

	if err := target.renderer.LoadStateDict(checkpoint); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	if got := target.renderer.Model().Embedding().NumEmbeddings(); got != 3 {
		t.Errorf("Expected embedding healed to 3 rows, got %d", got)
	}
	if got := target.renderer.Config().Model.NAppearances; got != 3 {
		t.Errorf("Expected config patched to 3 appearances, got %d", got)
	}
}

func TestLoadStateDictBeforeSetup(t *testing.T) {
	source := setupRenderer(t, 2)
	checkpoint, err := source.renderer.StateDict()
	if err != nil {
		t.Fatalf("StateDict failed: %v", err)
	}

	// The target was never set up; loading materializes it.
	target := setupRenderer(t, -1)
	if err := target.renderer.LoadStateDict(checkpoint); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}
	if target.renderer.Model() == nil {
		t.Fatal("Expected model materialized by load")
	}
	if target.renderer.Model().Embedding().NumEmbeddings() != 2 {
		t.Errorf("Expected 2 embedding rows, got %d", target.renderer.Model().Embedding().NumEmbeddings())
	}
}

func TestLoadStateDictEmbeddingDimMismatch(t *testing.T) {
	source := setupRenderer(t, 2)
	checkpoint, err := source.renderer.StateDict()
	if err != nil {
		t.Fatalf("StateDict failed: %v", err)
	}

	config := smallConfig()
	config.Model.NAppearanceEmbeddingDims = 8
	target := newTestScene(t, config, 4)
	if err := target.renderer.LoadStateDict(checkpoint); err == nil {
		t.Error("Expected error for embedding dim mismatch, got nil")
	}
}

func TestLoadStateDictMissingWeight(t *testing.T) {
	source := setupRenderer(t, 2)
	checkpoint, err := source.renderer.StateDict()
	if err != nil {
		t.Fatalf("StateDict failed: %v", err)
	}
	// Drop the last layer's bias.
	checkpoint.Weights = checkpoint.Weights[:len(checkpoint.Weights)-1]

	target := setupRenderer(t, 2)
	if err := target.renderer.LoadStateDict(checkpoint); err == nil {
		t.Error("Expected error for missing weight, got nil")
	}
}

func TestSaveAndLoadStateFile(t *testing.T) {
	source := setupRenderer(t, 2)
	path := filepath.Join(t.TempDir(), "appearance.ckpt")

	if err := source.renderer.SaveState(path); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	target := setupRenderer(t, 2)
	for _, p := range target.renderer.Model().EmbeddingParameters() {
		for i := range p.Data {
			p.Data[i] = 0
		}
	}
	if err := target.renderer.LoadState(path); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	if !target.renderer.Model().Embedding().Weight().Equal(source.renderer.Model().Embedding().Weight()) {
		t.Error("Embedding weights should match after file round trip")
	}
}

func TestOptimizerStateRoundTrip(t *testing.T) {
	scene := setupRenderer(t, 2)

	groups, err := scene.renderer.TrainingSetup()
	if err != nil {
		t.Fatalf("TrainingSetup failed: %v", err)
	}
	embeddingGroup := groups[0]

	state, err := OptimizerStateDict(embeddingGroup, []string{"model.embedding.weight"})
	if err != nil {
		t.Fatalf("OptimizerStateDict failed: %v", err)
	}
	if state.Group != "embedding" || state.Type != "Adam" {
		t.Errorf("Unexpected state header: %s/%s", state.Type, state.Group)
	}

	if err := LoadOptimizerState(embeddingGroup, state); err != nil {
		t.Fatalf("LoadOptimizerState failed: %v", err)
	}
}
