package training

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/gosplat/gosplat/tensor"
)

// Global random source for deterministic initialization
var globalRng *rand.Rand = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight initialization
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Module interface defines methods that all neural network layers must implement
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor // Returns trainable parameters (tensors with requiresGrad=true)
}

// Linear implements a fully connected (dense) layer: y = xW + b
type Linear struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
}

// NewLinear creates a new Linear layer with Xavier/Glorot uniform
// initialization: W ~ U(-sqrt(6/(fan_in+fan_out)), sqrt(6/(fan_in+fan_out))).
func NewLinear(inputSize, outputSize int, bias bool) (*Linear, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("linear layer sizes must be positive, got %d and %d", inputSize, outputSize)
	}

	bound := math32.Sqrt(6.0 / float32(inputSize+outputSize))
	weight, err := tensor.RandomUniform([]int{inputSize, outputSize}, -bound, bound, globalRng)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	linear := &Linear{weight: weight}

	if bias {
		biasT, err := tensor.Zeros([]int{outputSize})
		if err != nil {
			return nil, fmt.Errorf("failed to create bias tensor: %v", err)
		}
		biasT.SetRequiresGrad(true)
		linear.bias = biasT
	}

	return linear, nil
}

// InputSize returns the expected input feature count.
func (l *Linear) InputSize() int {
	return l.weight.Shape[0]
}

// OutputSize returns the produced feature count.
func (l *Linear) OutputSize() int {
	return l.weight.Shape[1]
}

// Weight returns the [in, out] weight tensor.
func (l *Linear) Weight() *tensor.Tensor {
	return l.weight
}

// Bias returns the bias tensor, or nil for a bias-free layer.
func (l *Linear) Bias() *tensor.Tensor {
	return l.bias
}

// Forward performs the forward pass: y = xW + b
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("linear layer expects 2D input [batch_size, input_size], got shape %v", input.Shape)
	}
	if input.Shape[1] != l.weight.Shape[0] {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", l.weight.Shape[0], input.Shape[1])
	}

	output, err := tensor.MatMulAutograd(input, l.weight)
	if err != nil {
		return nil, fmt.Errorf("matmul failed: %v", err)
	}

	if l.bias != nil {
		output, err = tensor.AddAutograd(output, l.bias)
		if err != nil {
			return nil, fmt.Errorf("bias addition failed: %v", err)
		}
	}

	return output, nil
}

// Parameters returns the trainable parameters
func (l *Linear) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

// ReLU implements ReLU activation function module
type ReLU struct{}

// NewReLU creates a new ReLU activation module
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward performs ReLU activation
func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLUAutograd(input)
}

// Parameters returns empty slice (ReLU has no parameters)
func (r *ReLU) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{}
}

// Sigmoid implements Sigmoid activation function module
type Sigmoid struct{}

// NewSigmoid creates a new Sigmoid activation module
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Forward performs Sigmoid activation
func (s *Sigmoid) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.SigmoidAutograd(input)
}

// Parameters returns empty slice (Sigmoid has no parameters)
func (s *Sigmoid) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{}
}

// Sequential chains modules, feeding each output into the next module.
type Sequential struct {
	modules []Module
}

// NewSequential creates a Sequential container
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward runs the chain in order.
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	output := input
	var err error
	for i, module := range s.modules {
		output, err = module.Forward(output)
		if err != nil {
			return nil, fmt.Errorf("module %d forward failed: %v", i, err)
		}
	}
	return output, nil
}

// Parameters returns the concatenated parameters of all contained modules.
func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}
