package tensor

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
)

// NewTensor creates a tensor from an explicit data slice. The data length
// must match the number of elements implied by the shape.
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, numElems)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	numElems := calculateNumElements(shape)
	return NewTensor(shape, make([]float32, numElems))
}

// Ones creates a tensor filled with ones.
func Ones(shape []int) (*Tensor, error) {
	return Full(shape, 1.0)
}

// Full creates a tensor filled with a constant value.
func Full(shape []int, value float32) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	numElems := calculateNumElements(shape)
	data := make([]float32, numElems)
	for i := range data {
		data[i] = value
	}
	return NewTensor(shape, data)
}

// RandomNormal creates a tensor with values drawn from N(mean, std²) using
// the supplied source. Callers seed the source for reproducible init.
func RandomNormal(shape []int, mean, std float32, rng *rand.Rand) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	numElems := calculateNumElements(shape)
	data := make([]float32, numElems)
	for i := range data {
		data[i] = float32(rng.NormFloat64())*std + mean
	}
	return NewTensor(shape, data)
}

// RandomUniform creates a tensor with values drawn from U(low, high).
func RandomUniform(shape []int, low, high float32, rng *rand.Rand) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if math32.IsNaN(low) || math32.IsNaN(high) || low > high {
		return nil, fmt.Errorf("invalid uniform range [%f, %f]", low, high)
	}
	numElems := calculateNumElements(shape)
	data := make([]float32, numElems)
	for i := range data {
		data[i] = float32(rng.Float64())*(high-low) + low
	}
	return NewTensor(shape, data)
}

// FromScalar creates a single-element tensor.
func FromScalar(value float32) *Tensor {
	t, _ := NewTensor([]int{1}, []float32{value})
	return t
}
