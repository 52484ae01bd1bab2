package training

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/gosplat/gosplat/tensor"
)

// FrequencyEncoding maps each input channel through a fixed bank of
// sin/cos frequency bands (2^0 .. 2^(n-1)). It is deterministic and has no
// learned parameters.
type FrequencyEncoding struct {
	inputChannels int
	frequencies   []float32
}

// NewFrequencyEncoding creates an encoder for inputChannels-wide vectors
// with nFrequencies octave-spaced bands.
func NewFrequencyEncoding(inputChannels, nFrequencies int) (*FrequencyEncoding, error) {
	if inputChannels <= 0 {
		return nil, fmt.Errorf("input channel count must be positive, got %d", inputChannels)
	}
	if nFrequencies <= 0 {
		return nil, fmt.Errorf("frequency count must be positive, got %d", nFrequencies)
	}

	frequencies := make([]float32, nFrequencies)
	for i := range frequencies {
		frequencies[i] = math32.Pow(2, float32(i))
	}

	return &FrequencyEncoding{
		inputChannels: inputChannels,
		frequencies:   frequencies,
	}, nil
}

// OutputChannels returns the encoded dimension: one sin and one cos per
// input channel per frequency band.
func (fe *FrequencyEncoding) OutputChannels() int {
	return fe.inputChannels * len(fe.frequencies) * 2
}

// Forward encodes an [N, inputChannels] tensor into [N, OutputChannels()].
// Per row the layout is [sin(f0*x), cos(f0*x), sin(f1*x), cos(f1*x), ...].
func (fe *FrequencyEncoding) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 || input.Shape[1] != fe.inputChannels {
		return nil, fmt.Errorf("frequency encoding expects [N,%d] input, got shape %v", fe.inputChannels, input.Shape)
	}

	n := input.Shape[0]
	outCols := fe.OutputChannels()
	result, err := tensor.Zeros([]int{n, outCols})
	if err != nil {
		return nil, err
	}

	for r := 0; r < n; r++ {
		row := input.Data[r*fe.inputChannels : (r+1)*fe.inputChannels]
		out := result.Data[r*outCols : (r+1)*outCols]
		idx := 0
		for _, freq := range fe.frequencies {
			for _, v := range row {
				out[idx] = math32.Sin(freq * v)
				idx++
			}
			for _, v := range row {
				out[idx] = math32.Cos(freq * v)
				idx++
			}
		}
	}

	return result, nil
}

// Parameters returns an empty slice; the encoding is not learned.
func (fe *FrequencyEncoding) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{}
}
