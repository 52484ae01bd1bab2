package training

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/gosplat/gosplat/tensor"
)

func TestFrequencyEncodingOutputChannels(t *testing.T) {
	encoding, err := NewFrequencyEncoding(3, 4)
	if err != nil {
		t.Fatalf("Failed to create encoding: %v", err)
	}

	// 3 channels * 4 frequencies * (sin, cos)
	if encoding.OutputChannels() != 24 {
		t.Errorf("Expected 24 output channels, got %d", encoding.OutputChannels())
	}
	if len(encoding.Parameters()) != 0 {
		t.Errorf("Encoding should have no parameters, got %d", len(encoding.Parameters()))
	}
}

func TestFrequencyEncodingValues(t *testing.T) {
	encoding, err := NewFrequencyEncoding(1, 2)
	if err != nil {
		t.Fatalf("Failed to create encoding: %v", err)
	}

	input, _ := tensor.NewTensor([]int{1, 1}, []float32{0.5})
	output, err := encoding.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// Bands are 2^0 and 2^1: [sin(x), cos(x), sin(2x), cos(2x)].
	expected := []float32{
		math32.Sin(0.5), math32.Cos(0.5),
		math32.Sin(1.0), math32.Cos(1.0),
	}
	if len(output.Data) != len(expected) {
		t.Fatalf("Expected %d outputs, got %d", len(expected), len(output.Data))
	}
	for i, v := range output.Data {
		if math32.Abs(v-expected[i]) > 1e-6 {
			t.Errorf("Element %d: expected %f, got %f", i, expected[i], v)
		}
	}
}

func TestFrequencyEncodingZeroInput(t *testing.T) {
	encoding, _ := NewFrequencyEncoding(2, 3)

	input, _ := tensor.Zeros([]int{2, 2})
	output, err := encoding.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// sin(0) = 0 and cos(0) = 1 in every band.
	for r := 0; r < 2; r++ {
		row := output.Data[r*12 : (r+1)*12]
		for band := 0; band < 3; band++ {
			for c := 0; c < 2; c++ {
				sin := row[band*4+c]
				cos := row[band*4+2+c]
				if sin != 0 {
					t.Errorf("Row %d band %d: expected sin 0, got %f", r, band, sin)
				}
				if cos != 1 {
					t.Errorf("Row %d band %d: expected cos 1, got %f", r, band, cos)
				}
			}
		}
	}
}

func TestFrequencyEncodingShapeMismatch(t *testing.T) {
	encoding, _ := NewFrequencyEncoding(3, 2)

	input, _ := tensor.Zeros([]int{2, 4})
	if _, err := encoding.Forward(input); err == nil {
		t.Error("Expected error for wrong channel count, got nil")
	}
}

func TestFrequencyEncodingValidation(t *testing.T) {
	if _, err := NewFrequencyEncoding(0, 2); err == nil {
		t.Error("Expected error for zero input channels, got nil")
	}
	if _, err := NewFrequencyEncoding(3, 0); err == nil {
		t.Error("Expected error for zero frequencies, got nil")
	}
}
