package tensor

import (
	"fmt"
)

// MatMul multiplies two 2D tensors: [M,K] x [K,N] -> [M,N].
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2D tensors, got shapes %v and %v", t1.Shape, t2.Shape)
	}

	m, k1 := t1.Shape[0], t1.Shape[1]
	k2, n := t2.Shape[0], t2.Shape[1]
	if k1 != k2 {
		return nil, fmt.Errorf("MatMul inner dimensions must match: %v vs %v", t1.Shape, t2.Shape)
	}

	result, err := Zeros([]int{m, n})
	if err != nil {
		return nil, err
	}

	for i := 0; i < m; i++ {
		rowA := t1.Data[i*k1 : (i+1)*k1]
		rowOut := result.Data[i*n : (i+1)*n]
		for k := 0; k < k1; k++ {
			a := rowA[k]
			if a == 0 {
				continue
			}
			rowB := t2.Data[k*n : (k+1)*n]
			for j := 0; j < n; j++ {
				rowOut[j] += a * rowB[j]
			}
		}
	}

	return result, nil
}

// Transpose swaps the two dimensions of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2D tensor, got shape %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result, err := Zeros([]int{cols, rows})
	if err != nil {
		return nil, err
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			result.Data[c*rows+r] = t.Data[r*cols+c]
		}
	}

	return result, nil
}

// Reshape returns a view-equivalent tensor with a new shape. The element
// count must be preserved.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}
	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v", t.Shape, t.NumElems, newShape)
	}

	return &Tensor{
		Shape:        append([]int(nil), newShape...),
		Strides:      calculateStrides(newShape),
		Data:         t.Data,
		NumElems:     t.NumElems,
		requiresGrad: t.requiresGrad,
		creator:      t.creator,
	}, nil
}

// Concat concatenates 2D tensors along the column dimension. All inputs
// must have the same number of rows.
func Concat(tensors ...*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Concat requires at least one tensor")
	}

	rows := -1
	totalCols := 0
	for i, t := range tensors {
		if len(t.Shape) != 2 {
			return nil, fmt.Errorf("Concat input %d is not 2D: shape %v", i, t.Shape)
		}
		if rows == -1 {
			rows = t.Shape[0]
		} else if t.Shape[0] != rows {
			return nil, fmt.Errorf("Concat row counts differ: %d vs %d", rows, t.Shape[0])
		}
		totalCols += t.Shape[1]
	}

	result, err := Zeros([]int{rows, totalCols})
	if err != nil {
		return nil, err
	}

	for r := 0; r < rows; r++ {
		offset := r * totalCols
		for _, t := range tensors {
			cols := t.Shape[1]
			copy(result.Data[offset:offset+cols], t.Data[r*cols:(r+1)*cols])
			offset += cols
		}
	}

	return result, nil
}

// SelectRows gathers the rows of a 2D tensor where mask is true, preserving
// order. The mask length must equal the row count.
func SelectRows(t *Tensor, mask []bool) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("SelectRows requires a 2D tensor, got shape %v", t.Shape)
	}
	if len(mask) != t.Shape[0] {
		return nil, fmt.Errorf("mask length %d does not match row count %d", len(mask), t.Shape[0])
	}

	cols := t.Shape[1]
	selected := 0
	for _, m := range mask {
		if m {
			selected++
		}
	}
	if selected == 0 {
		return nil, fmt.Errorf("SelectRows: mask selects no rows")
	}

	result, err := Zeros([]int{selected, cols})
	if err != nil {
		return nil, err
	}

	out := 0
	for r, m := range mask {
		if !m {
			continue
		}
		copy(result.Data[out*cols:(out+1)*cols], t.Data[r*cols:(r+1)*cols])
		out++
	}

	return result, nil
}

// RepeatRow replicates a [1,C] row tensor into [n,C].
func RepeatRow(t *Tensor, n int) (*Tensor, error) {
	if len(t.Shape) != 2 || t.Shape[0] != 1 {
		return nil, fmt.Errorf("RepeatRow requires a [1,C] tensor, got shape %v", t.Shape)
	}
	if n <= 0 {
		return nil, fmt.Errorf("RepeatRow count must be positive, got %d", n)
	}

	cols := t.Shape[1]
	result, err := Zeros([]int{n, cols})
	if err != nil {
		return nil, err
	}
	for r := 0; r < n; r++ {
		copy(result.Data[r*cols:(r+1)*cols], t.Data)
	}
	return result, nil
}
