package tensor

import (
	"fmt"

	"github.com/chewxy/math32"
)

// binaryOutputShape resolves the output shape of an elementwise binary op.
// Supported patterns: identical shapes, a single-element operand against any
// shape, and a trailing-dimension vector against a 2D tensor (bias pattern).
func binaryOutputShape(shape1, shape2 []int) ([]int, error) {
	if len(shape1) == 0 || len(shape2) == 0 {
		return nil, fmt.Errorf("cannot operate on empty tensors")
	}

	if shapesEqual(shape1, shape2) {
		return shape1, nil
	}

	if calculateNumElements(shape1) == 1 {
		return shape2, nil
	}
	if calculateNumElements(shape2) == 1 {
		return shape1, nil
	}

	if len(shape1) == 2 && len(shape2) == 1 && shape1[1] == shape2[0] {
		return shape1, nil
	}
	if len(shape2) == 2 && len(shape1) == 1 && shape2[1] == shape1[0] {
		return shape2, nil
	}

	return nil, fmt.Errorf("tensor shapes are not compatible: %v vs %v", shape1, shape2)
}

// expandTo materializes t broadcast to targetShape, or returns t unchanged
// when the shapes already match.
func expandTo(t *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(t.Shape, targetShape) {
		return t, nil
	}

	result, err := Zeros(targetShape)
	if err != nil {
		return nil, err
	}

	switch {
	case t.NumElems == 1:
		for i := range result.Data {
			result.Data[i] = t.Data[0]
		}
	case len(t.Shape) == 1 && len(targetShape) == 2 && t.Shape[0] == targetShape[1]:
		cols := targetShape[1]
		for r := 0; r < targetShape[0]; r++ {
			copy(result.Data[r*cols:(r+1)*cols], t.Data)
		}
	default:
		return nil, fmt.Errorf("cannot broadcast shape %v to %v", t.Shape, targetShape)
	}

	return result, nil
}

func elementwiseBinary(t1, t2 *Tensor, op func(a, b float32) float32) (*Tensor, error) {
	outputShape, err := binaryOutputShape(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	a, err := expandTo(t1, outputShape)
	if err != nil {
		return nil, err
	}
	b, err := expandTo(t2, outputShape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i] = op(a.Data[i], b.Data[i])
	}
	return result, nil
}

// Add performs elementwise addition.
func Add(t1, t2 *Tensor) (*Tensor, error) {
	return elementwiseBinary(t1, t2, func(a, b float32) float32 { return a + b })
}

// Sub performs elementwise subtraction.
func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return elementwiseBinary(t1, t2, func(a, b float32) float32 { return a - b })
}

// Mul performs elementwise multiplication.
func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return elementwiseBinary(t1, t2, func(a, b float32) float32 { return a * b })
}

// Div performs elementwise division.
func Div(t1, t2 *Tensor) (*Tensor, error) {
	for i, v := range t2.Data {
		if v == 0 {
			return nil, fmt.Errorf("division by zero at index %d", i)
		}
	}
	return elementwiseBinary(t1, t2, func(a, b float32) float32 { return a / b })
}

// ReLU applies max(0, x) elementwise.
func ReLU(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		if v > 0 {
			result.Data[i] = v
		}
	}
	return result, nil
}

// Sigmoid applies 1/(1+exp(-x)) elementwise.
func Sigmoid(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		result.Data[i] = 1.0 / (1.0 + math32.Exp(-v))
	}
	return result, nil
}

// Sqrt applies the square root elementwise.
func Sqrt(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		if v < 0 {
			return nil, fmt.Errorf("sqrt of negative value at index %d: %f", i, v)
		}
		result.Data[i] = math32.Sqrt(v)
	}
	return result, nil
}

// Exp applies e^x elementwise.
func Exp(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		result.Data[i] = math32.Exp(v)
	}
	return result, nil
}

// Affine computes scale*x + shift elementwise.
func Affine(t *Tensor, scale, shift float32) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		result.Data[i] = scale*v + shift
	}
	return result, nil
}

// Clamp limits every element to [min, max].
func Clamp(t *Tensor, min, max float32) (*Tensor, error) {
	if min > max {
		return nil, fmt.Errorf("invalid clamp range [%f, %f]", min, max)
	}
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		switch {
		case v < min:
			result.Data[i] = min
		case v > max:
			result.Data[i] = max
		default:
			result.Data[i] = v
		}
	}
	return result, nil
}

// ClampMin limits every element to be at least min.
func ClampMin(t *Tensor, min float32) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		if v < min {
			result.Data[i] = min
		} else {
			result.Data[i] = v
		}
	}
	return result, nil
}

// Reciprocal computes 1/x elementwise.
func Reciprocal(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Data {
		if v == 0 {
			return nil, fmt.Errorf("reciprocal of zero at index %d", i)
		}
		result.Data[i] = 1.0 / v
	}
	return result, nil
}

// NormalizeRows L2-normalizes each row of a 2D tensor. Rows with norm below
// eps are left unchanged to avoid division blow-up.
func NormalizeRows(t *Tensor, eps float32) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("NormalizeRows expects a 2D tensor, got shape %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}

	for r := 0; r < rows; r++ {
		row := t.Data[r*cols : (r+1)*cols]
		var sumSq float32
		for _, v := range row {
			sumSq += v * v
		}
		norm := math32.Sqrt(sumSq)
		out := result.Data[r*cols : (r+1)*cols]
		if norm < eps {
			copy(out, row)
			continue
		}
		for i, v := range row {
			out[i] = v / norm
		}
	}

	return result, nil
}
