package training

import (
	"fmt"

	"github.com/gosplat/gosplat/tensor"
)

// MLP is a feed-forward network with ReLU hidden activations, a Sigmoid
// output activation and optional skip connections. A skip at layer i
// concatenates the network input onto the hidden vector before that
// layer's linear transform.
type MLP struct {
	layers    []*Linear
	skips     map[int]bool
	inputDims int
}

// NewMLP builds a network with nLayers linear layers: the first maps
// inputDims to nNeurons, the last maps nNeurons to outputDims, and any
// intermediate layers are nNeurons wide. Skip indices refer to layers
// 1..nLayers-1; the input layer cannot be a skip target.
func NewMLP(inputDims, outputDims, nLayers, nNeurons int, skips []int) (*MLP, error) {
	if inputDims <= 0 || outputDims <= 0 {
		return nil, fmt.Errorf("network dimensions must be positive, got input %d, output %d", inputDims, outputDims)
	}
	if nLayers < 2 {
		return nil, fmt.Errorf("network needs at least 2 layers, got %d", nLayers)
	}
	if nNeurons <= 0 {
		return nil, fmt.Errorf("network width must be positive, got %d", nNeurons)
	}

	skipSet := make(map[int]bool, len(skips))
	for _, s := range skips {
		if s <= 0 || s >= nLayers {
			return nil, fmt.Errorf("skip layer index %d out of range [1, %d)", s, nLayers)
		}
		skipSet[s] = true
	}

	layers := make([]*Linear, nLayers)
	for i := 0; i < nLayers; i++ {
		in := nNeurons
		if i == 0 {
			in = inputDims
		} else if skipSet[i] {
			in = nNeurons + inputDims
		}
		out := nNeurons
		if i == nLayers-1 {
			out = outputDims
		}

		layer, err := NewLinear(in, out, true)
		if err != nil {
			return nil, fmt.Errorf("failed to create layer %d: %v", i, err)
		}
		layers[i] = layer
	}

	return &MLP{
		layers:    layers,
		skips:     skipSet,
		inputDims: inputDims,
	}, nil
}

// InputDims returns the expected input feature count.
func (m *MLP) InputDims() int {
	return m.inputDims
}

// OutputDims returns the produced feature count.
func (m *MLP) OutputDims() int {
	return m.layers[len(m.layers)-1].OutputSize()
}

// Forward runs the network on an [N, inputDims] batch.
func (m *MLP) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 || input.Shape[1] != m.inputDims {
		return nil, fmt.Errorf("network expects [N,%d] input, got shape %v", m.inputDims, input.Shape)
	}

	h := input
	var err error
	for i, layer := range m.layers {
		if m.skips[i] {
			h, err = tensor.ConcatAutograd(h, input)
			if err != nil {
				return nil, fmt.Errorf("skip concat before layer %d failed: %v", i, err)
			}
		}

		h, err = layer.Forward(h)
		if err != nil {
			return nil, fmt.Errorf("layer %d forward failed: %v", i, err)
		}

		if i < len(m.layers)-1 {
			h, err = tensor.ReLUAutograd(h)
		} else {
			h, err = tensor.SigmoidAutograd(h)
		}
		if err != nil {
			return nil, fmt.Errorf("activation after layer %d failed: %v", i, err)
		}
	}

	return h, nil
}

// Layers returns the linear layers in forward order.
func (m *MLP) Layers() []*Linear {
	return m.layers
}

// Parameters returns all layer weights and biases.
func (m *MLP) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, layer := range m.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}
