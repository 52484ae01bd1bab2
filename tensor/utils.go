package tensor

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Clone creates a deep copy of the tensor data. The copy is detached from
// the autograd graph but keeps the requires-grad flag.
func (t *Tensor) Clone() (*Tensor, error) {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)

	clone, err := NewTensor(t.Shape, data)
	if err != nil {
		return nil, err
	}
	clone.requiresGrad = t.requiresGrad
	return clone, nil
}

// SetData overwrites the tensor's values in place, keeping shape, autograd
// flags and accumulated gradients intact.
func (t *Tensor) SetData(data []float32) error {
	if len(data) != t.NumElems {
		return fmt.Errorf("data length %d does not match tensor with %d elements", len(data), t.NumElems)
	}
	copy(t.Data, data)
	return nil
}

// At returns the element at the given coordinates.
func (t *Tensor) At(indices ...int) (float32, error) {
	idx, err := t.flatIndex(indices)
	if err != nil {
		return 0, err
	}
	return t.Data[idx], nil
}

// SetAt writes the element at the given coordinates.
func (t *Tensor) SetAt(value float32, indices ...int) error {
	idx, err := t.flatIndex(indices)
	if err != nil {
		return err
	}
	t.Data[idx] = value
	return nil
}

func (t *Tensor) flatIndex(indices []int) (int, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}
	idx := 0
	for i, coord := range indices {
		if coord < 0 || coord >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of range for dimension %d with size %d", coord, i, t.Shape[i])
		}
		idx += coord * t.Strides[i]
	}
	return idx, nil
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (float32, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}
	return t.Data[0], nil
}

// Size returns the tensor shape.
func (t *Tensor) Size() []int {
	return append([]int(nil), t.Shape...)
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int {
	return t.NumElems
}

// Dim returns the number of dimensions.
func (t *Tensor) Dim() int {
	return len(t.Shape)
}

// Equal reports whether two tensors have identical shape and values.
func (t *Tensor) Equal(other *Tensor) bool {
	if !shapesEqual(t.Shape, other.Shape) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}

// AllClose reports whether two tensors match within an absolute tolerance.
func (t *Tensor) AllClose(other *Tensor, tolerance float32) bool {
	if !shapesEqual(t.Shape, other.Shape) {
		return false
	}
	for i := range t.Data {
		if math32.Abs(t.Data[i]-other.Data[i]) > tolerance {
			return false
		}
	}
	return true
}
