package tensor

import (
	"fmt"
)

// Operation is the autograd node contract. Every differentiable op stores
// its inputs during Forward and produces per-input gradients in Backward.
type Operation interface {
	// Inputs returns the tensors the operation consumed, in order.
	Inputs() []*Tensor

	// Backward maps the gradient of the output to gradients of the inputs.
	// The returned slice matches Inputs() positionally; a nil entry means
	// no gradient flows to that input.
	Backward(gradOut *Tensor) ([]*Tensor, error)
}

// Tensor is a dense float32 tensor with optional autograd tracking.
type Tensor struct {
	Shape    []int
	Strides  []int
	Data     []float32
	NumElems int

	requiresGrad bool
	grad         *Tensor
	creator      Operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, elements=%d)", t.Shape, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// ZeroGradient clears the accumulated gradient of this tensor.
func (t *Tensor) ZeroGradient() {
	t.grad = nil
}

// Detach returns a tensor sharing this tensor's data but cut out of the
// autograd graph. Gradients never flow through the detached copy.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:    append([]int(nil), t.Shape...),
		Strides:  append([]int(nil), t.Strides...),
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func shapesEqual(shape1, shape2 []int) bool {
	if len(shape1) != len(shape2) {
		return false
	}
	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return false
		}
	}
	return true
}
