package training

import (
	"testing"

	"github.com/gosplat/gosplat/tensor"
)

func TestMLPLayerDimensions(t *testing.T) {
	SetRandomSeed(1)
	mlp, err := NewMLP(10, 3, 4, 16, []int{2})
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	layers := mlp.Layers()
	if len(layers) != 4 {
		t.Fatalf("Expected 4 layers, got %d", len(layers))
	}

	if layers[0].InputSize() != 10 || layers[0].OutputSize() != 16 {
		t.Errorf("Layer 0: expected 10 -> 16, got %d -> %d", layers[0].InputSize(), layers[0].OutputSize())
	}
	if layers[1].InputSize() != 16 {
		t.Errorf("Layer 1: expected input 16, got %d", layers[1].InputSize())
	}
	// The skip layer widens by the network input dimension.
	if layers[2].InputSize() != 16+10 {
		t.Errorf("Skip layer: expected input 26, got %d", layers[2].InputSize())
	}
	if layers[3].OutputSize() != 3 {
		t.Errorf("Output layer: expected output 3, got %d", layers[3].OutputSize())
	}

	if mlp.InputDims() != 10 || mlp.OutputDims() != 3 {
		t.Errorf("Expected dims 10/3, got %d/%d", mlp.InputDims(), mlp.OutputDims())
	}
}

func TestMLPForwardOutputRange(t *testing.T) {
	SetRandomSeed(1)
	mlp, err := NewMLP(6, 3, 3, 8, nil)
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	input, _ := tensor.RandomNormal([]int{5, 6}, 0, 1, newTestRng())
	output, err := mlp.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if output.Shape[0] != 5 || output.Shape[1] != 3 {
		t.Fatalf("Expected shape [5 3], got %v", output.Shape)
	}
	for i, v := range output.Data {
		if v <= 0 || v >= 1 {
			t.Errorf("Output %d outside sigmoid range (0,1): %f", i, v)
		}
	}
}

func TestMLPForwardWithSkip(t *testing.T) {
	SetRandomSeed(3)
	mlp, err := NewMLP(4, 2, 3, 8, []int{1})
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	input, _ := tensor.RandomNormal([]int{2, 4}, 0, 1, newTestRng())
	output, err := mlp.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if output.Shape[0] != 2 || output.Shape[1] != 2 {
		t.Fatalf("Expected shape [2 2], got %v", output.Shape)
	}
}

func TestMLPForwardIsDeterministic(t *testing.T) {
	SetRandomSeed(9)
	mlp, err := NewMLP(4, 3, 2, 8, nil)
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	input, _ := tensor.RandomNormal([]int{3, 4}, 0, 1, newTestRng())
	first, err := mlp.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	second, err := mlp.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if !first.Equal(second) {
		t.Error("Repeated forward with identical input should produce identical output")
	}
}

func TestMLPValidation(t *testing.T) {
	if _, err := NewMLP(4, 3, 1, 8, nil); err == nil {
		t.Error("Expected error for single-layer network, got nil")
	}
	if _, err := NewMLP(4, 3, 3, 8, []int{0}); err == nil {
		t.Error("Expected error for skip at the input layer, got nil")
	}
	if _, err := NewMLP(4, 3, 3, 8, []int{3}); err == nil {
		t.Error("Expected error for skip index past the last layer, got nil")
	}
	if _, err := NewMLP(0, 3, 3, 8, nil); err == nil {
		t.Error("Expected error for zero input dims, got nil")
	}
}

func TestMLPInputShapeMismatch(t *testing.T) {
	SetRandomSeed(1)
	mlp, _ := NewMLP(4, 3, 2, 8, nil)

	input, _ := tensor.Zeros([]int{2, 5})
	if _, err := mlp.Forward(input); err == nil {
		t.Error("Expected error for wrong input width, got nil")
	}
}

func TestMLPParameterCount(t *testing.T) {
	SetRandomSeed(1)
	mlp, err := NewMLP(4, 3, 3, 8, nil)
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	// 3 layers, weight and bias each.
	if len(mlp.Parameters()) != 6 {
		t.Errorf("Expected 6 parameters, got %d", len(mlp.Parameters()))
	}
}
