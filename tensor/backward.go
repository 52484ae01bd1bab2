package tensor

import (
	"fmt"
)

// Backward runs reverse-mode differentiation from this tensor through the
// recorded operation graph. The seed gradient is all ones, so calling it on
// a scalar computes ordinary derivatives and on a larger tensor computes
// the gradient of the elementwise sum.
func (t *Tensor) Backward() error {
	if !t.requiresGrad {
		return fmt.Errorf("called Backward on a tensor that does not require gradients")
	}

	seed, err := Ones(t.Shape)
	if err != nil {
		return err
	}
	return t.BackwardWithGradient(seed)
}

// BackwardWithGradient runs reverse-mode differentiation with an explicit
// seed gradient of the same shape as the tensor.
func (t *Tensor) BackwardWithGradient(seed *Tensor) error {
	if !t.requiresGrad {
		return fmt.Errorf("called Backward on a tensor that does not require gradients")
	}
	if !shapesEqual(seed.Shape, t.Shape) {
		return fmt.Errorf("seed gradient shape %v does not match tensor shape %v", seed.Shape, t.Shape)
	}

	// Topological order over creator links so each node's gradient is
	// complete before its operation propagates it.
	order := make([]*Tensor, 0)
	visited := make(map[*Tensor]bool)

	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] || !node.requiresGrad {
			return
		}
		visited[node] = true
		if node.creator != nil {
			for _, in := range node.creator.Inputs() {
				visit(in)
			}
		}
		order = append(order, node)
	}
	visit(t)

	if err := t.accumulateGrad(seed); err != nil {
		return err
	}

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.creator == nil || node.grad == nil {
			continue
		}

		grads, err := node.creator.Backward(node.grad)
		if err != nil {
			return fmt.Errorf("backward failed at %s: %v", node, err)
		}

		inputs := node.creator.Inputs()
		if len(grads) != len(inputs) {
			return fmt.Errorf("operation returned %d gradients for %d inputs", len(grads), len(inputs))
		}

		for j, in := range inputs {
			if grads[j] == nil || !in.requiresGrad {
				continue
			}
			if err := in.accumulateGrad(grads[j]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *Tensor) accumulateGrad(grad *Tensor) error {
	if !shapesEqual(grad.Shape, t.Shape) {
		return fmt.Errorf("gradient shape %v does not match tensor shape %v", grad.Shape, t.Shape)
	}
	if t.grad == nil {
		clone, err := grad.Clone()
		if err != nil {
			return err
		}
		t.grad = clone
		return nil
	}
	for i := range t.grad.Data {
		t.grad.Data[i] += grad.Data[i]
	}
	return nil
}

// ZeroGrad clears the gradients of all given tensors.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		t.ZeroGradient()
	}
}
