package tensor

import (
	"fmt"

	"github.com/chewxy/math32"
)

// reduceGradientToShape sums a gradient down to the shape of a broadcast
// input so accumulation stays shape-consistent.
func reduceGradientToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(grad.Shape, targetShape) {
		return grad.Clone()
	}

	if calculateNumElements(targetShape) == 1 {
		var sum float32
		for _, v := range grad.Data {
			sum += v
		}
		return NewTensor(targetShape, []float32{sum})
	}

	// Bias pattern: [B,C] gradient reduced to [C].
	if len(grad.Shape) == 2 && len(targetShape) == 1 && grad.Shape[1] == targetShape[0] {
		cols := grad.Shape[1]
		result, err := Zeros(targetShape)
		if err != nil {
			return nil, err
		}
		for r := 0; r < grad.Shape[0]; r++ {
			for c := 0; c < cols; c++ {
				result.Data[c] += grad.Data[r*cols+c]
			}
		}
		return result, nil
	}

	return nil, fmt.Errorf("cannot reduce gradient of shape %v to %v", grad.Shape, targetShape)
}

func setResult(result *Tensor, op Operation, inputs ...*Tensor) *Tensor {
	requires := false
	for _, in := range inputs {
		if in.requiresGrad {
			requires = true
			break
		}
	}
	result.requiresGrad = requires
	if requires {
		result.creator = op
	}
	return result
}

// AddOp implements autograd addition.
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

func (op *AddOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	gradA, err := reduceGradientToShape(gradOut, op.inputs[0].Shape)
	if err != nil {
		return nil, err
	}
	gradB, err := reduceGradientToShape(gradOut, op.inputs[1].Shape)
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradB}, nil
}

// AddAutograd performs addition with gradient tracking.
func AddAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := Add(a, b)
	if err != nil {
		return nil, err
	}
	return setResult(result, &AddOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// SubOp implements autograd subtraction.
type SubOp struct {
	inputs []*Tensor
}

func (op *SubOp) Inputs() []*Tensor { return op.inputs }

func (op *SubOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	gradA, err := reduceGradientToShape(gradOut, op.inputs[0].Shape)
	if err != nil {
		return nil, err
	}

	neg, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i := range neg.Data {
		neg.Data[i] = -neg.Data[i]
	}
	gradB, err := reduceGradientToShape(neg, op.inputs[1].Shape)
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradB}, nil
}

// SubAutograd performs subtraction with gradient tracking.
func SubAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := Sub(a, b)
	if err != nil {
		return nil, err
	}
	return setResult(result, &SubOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// MulOp implements autograd elementwise multiplication.
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

func (op *MulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a, b := op.inputs[0], op.inputs[1]

	bFull, err := expandTo(b, gradOut.Shape)
	if err != nil {
		return nil, err
	}
	gradAFull, err := Mul(gradOut, bFull)
	if err != nil {
		return nil, err
	}
	gradA, err := reduceGradientToShape(gradAFull, a.Shape)
	if err != nil {
		return nil, err
	}

	aFull, err := expandTo(a, gradOut.Shape)
	if err != nil {
		return nil, err
	}
	gradBFull, err := Mul(gradOut, aFull)
	if err != nil {
		return nil, err
	}
	gradB, err := reduceGradientToShape(gradBFull, b.Shape)
	if err != nil {
		return nil, err
	}

	return []*Tensor{gradA, gradB}, nil
}

// MulAutograd performs elementwise multiplication with gradient tracking.
func MulAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return setResult(result, &MulOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// MatMulOp implements autograd matrix multiplication.
type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Inputs() []*Tensor { return op.inputs }

func (op *MatMulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a, b := op.inputs[0], op.inputs[1]

	// d(A@B)/dA = gradOut @ Bᵀ, d(A@B)/dB = Aᵀ @ gradOut
	bT, err := Transpose(b)
	if err != nil {
		return nil, err
	}
	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		return nil, err
	}

	aT, err := Transpose(a)
	if err != nil {
		return nil, err
	}
	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		return nil, err
	}

	return []*Tensor{gradA, gradB}, nil
}

// MatMulAutograd performs matrix multiplication with gradient tracking.
func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := MatMul(a, b)
	if err != nil {
		return nil, err
	}
	return setResult(result, &MatMulOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// ReLUOp implements autograd ReLU.
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

func (op *ReLUOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i, v := range op.inputs[0].Data {
		if v <= 0 {
			grad.Data[i] = 0
		}
	}
	return []*Tensor{grad}, nil
}

// ReLUAutograd applies ReLU with gradient tracking.
func ReLUAutograd(a *Tensor) (*Tensor, error) {
	result, err := ReLU(a)
	if err != nil {
		return nil, err
	}
	return setResult(result, &ReLUOp{inputs: []*Tensor{a}}, a), nil
}

// SigmoidOp implements autograd Sigmoid. The forward output is kept for the
// backward pass: dσ/dx = σ(x)(1-σ(x)).
type SigmoidOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *SigmoidOp) Inputs() []*Tensor { return op.inputs }

func (op *SigmoidOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i, y := range op.output.Data {
		grad.Data[i] *= y * (1 - y)
	}
	return []*Tensor{grad}, nil
}

// SigmoidAutograd applies Sigmoid with gradient tracking.
func SigmoidAutograd(a *Tensor) (*Tensor, error) {
	result, err := Sigmoid(a)
	if err != nil {
		return nil, err
	}
	op := &SigmoidOp{inputs: []*Tensor{a}, output: result}
	return setResult(result, op, a), nil
}

// AffineOp implements autograd scale*x + shift.
type AffineOp struct {
	inputs []*Tensor
	scale  float32
}

func (op *AffineOp) Inputs() []*Tensor { return op.inputs }

func (op *AffineOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i := range grad.Data {
		grad.Data[i] *= op.scale
	}
	return []*Tensor{grad}, nil
}

// AffineAutograd computes scale*x + shift with gradient tracking.
func AffineAutograd(a *Tensor, scale, shift float32) (*Tensor, error) {
	result, err := Affine(a, scale, shift)
	if err != nil {
		return nil, err
	}
	return setResult(result, &AffineOp{inputs: []*Tensor{a}, scale: scale}, a), nil
}

// ConcatOp implements autograd column concatenation of 2D tensors.
type ConcatOp struct {
	inputs []*Tensor
}

func (op *ConcatOp) Inputs() []*Tensor { return op.inputs }

func (op *ConcatOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	rows := gradOut.Shape[0]
	totalCols := gradOut.Shape[1]

	grads := make([]*Tensor, len(op.inputs))
	colOffset := 0
	for i, in := range op.inputs {
		cols := in.Shape[1]
		grad, err := Zeros([]int{rows, cols})
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			copy(grad.Data[r*cols:(r+1)*cols], gradOut.Data[r*totalCols+colOffset:r*totalCols+colOffset+cols])
		}
		grads[i] = grad
		colOffset += cols
	}
	return grads, nil
}

// ConcatAutograd concatenates 2D tensors along columns with gradient
// tracking to every input.
func ConcatAutograd(tensors ...*Tensor) (*Tensor, error) {
	result, err := Concat(tensors...)
	if err != nil {
		return nil, err
	}
	return setResult(result, &ConcatOp{inputs: tensors}, tensors...), nil
}

// SelectRowsOp implements autograd row gathering by boolean mask.
type SelectRowsOp struct {
	inputs []*Tensor
	mask   []bool
}

func (op *SelectRowsOp) Inputs() []*Tensor { return op.inputs }

func (op *SelectRowsOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	in := op.inputs[0]
	cols := in.Shape[1]
	grad, err := Zeros(in.Shape)
	if err != nil {
		return nil, err
	}
	out := 0
	for r, m := range op.mask {
		if !m {
			continue
		}
		copy(grad.Data[r*cols:(r+1)*cols], gradOut.Data[out*cols:(out+1)*cols])
		out++
	}
	return []*Tensor{grad}, nil
}

// SelectRowsAutograd gathers masked rows with gradient tracking; gradients
// scatter back to the source rows, unselected rows receive zero.
func SelectRowsAutograd(t *Tensor, mask []bool) (*Tensor, error) {
	result, err := SelectRows(t, mask)
	if err != nil {
		return nil, err
	}
	maskCopy := append([]bool(nil), mask...)
	return setResult(result, &SelectRowsOp{inputs: []*Tensor{t}, mask: maskCopy}, t), nil
}

// ScatterRows writes the rows of src into a [len(mask), C] zero tensor at
// the positions where mask is true. Rows where mask is false stay zero.
// Gradients flow back to the source rows only.
func ScatterRows(src *Tensor, mask []bool) (*Tensor, error) {
	if len(src.Shape) != 2 {
		return nil, fmt.Errorf("ScatterRows requires a 2D source, got shape %v", src.Shape)
	}

	selected := 0
	for _, m := range mask {
		if m {
			selected++
		}
	}
	if selected != src.Shape[0] {
		return nil, fmt.Errorf("mask selects %d rows but source has %d", selected, src.Shape[0])
	}

	cols := src.Shape[1]
	result, err := Zeros([]int{len(mask), cols})
	if err != nil {
		return nil, err
	}

	in := 0
	for r, m := range mask {
		if !m {
			continue
		}
		copy(result.Data[r*cols:(r+1)*cols], src.Data[in*cols:(in+1)*cols])
		in++
	}

	maskCopy := append([]bool(nil), mask...)
	op := &scatterSrcOp{inputs: []*Tensor{src}, mask: maskCopy}
	return setResult(result, op, src), nil
}

type scatterSrcOp struct {
	inputs []*Tensor
	mask   []bool
}

func (op *scatterSrcOp) Inputs() []*Tensor { return op.inputs }

func (op *scatterSrcOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := SelectRows(gradOut, op.mask)
	if err != nil {
		return nil, err
	}
	return []*Tensor{grad}, nil
}

// LookupRowOp implements autograd embedding-row lookup with replication.
type LookupRowOp struct {
	inputs []*Tensor
	row    int
	n      int
}

func (op *LookupRowOp) Inputs() []*Tensor { return op.inputs }

func (op *LookupRowOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	table := op.inputs[0]
	cols := table.Shape[1]
	grad, err := Zeros(table.Shape)
	if err != nil {
		return nil, err
	}
	// Every replicated row accumulates into the looked-up table row.
	rowGrad := grad.Data[op.row*cols : (op.row+1)*cols]
	for r := 0; r < op.n; r++ {
		for c := 0; c < cols; c++ {
			rowGrad[c] += gradOut.Data[r*cols+c]
		}
	}
	return []*Tensor{grad}, nil
}

// LookupRowAutograd gathers table row `row` and replicates it n times into
// [n,C], with gradient accumulation back onto the single table row.
func LookupRowAutograd(table *Tensor, row, n int) (*Tensor, error) {
	if len(table.Shape) != 2 {
		return nil, fmt.Errorf("LookupRowAutograd requires a 2D table, got shape %v", table.Shape)
	}
	if row < 0 || row >= table.Shape[0] {
		return nil, fmt.Errorf("row %d out of range for table with %d rows", row, table.Shape[0])
	}
	if n <= 0 {
		return nil, fmt.Errorf("replication count must be positive, got %d", n)
	}

	cols := table.Shape[1]
	result, err := Zeros([]int{n, cols})
	if err != nil {
		return nil, err
	}
	src := table.Data[row*cols : (row+1)*cols]
	for r := 0; r < n; r++ {
		copy(result.Data[r*cols:(r+1)*cols], src)
	}

	return setResult(result, &LookupRowOp{inputs: []*Tensor{table}, row: row, n: n}, table), nil
}

// NormalizeRowsOp implements autograd row-wise L2 normalization.
type NormalizeRowsOp struct {
	inputs []*Tensor
	eps    float32
}

func (op *NormalizeRowsOp) Inputs() []*Tensor { return op.inputs }

func (op *NormalizeRowsOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	in := op.inputs[0]
	rows, cols := in.Shape[0], in.Shape[1]
	grad, err := Zeros(in.Shape)
	if err != nil {
		return nil, err
	}

	// d(x/||x||)/dx = (I - y yᵀ) / ||x||  with y = x/||x||
	for r := 0; r < rows; r++ {
		x := in.Data[r*cols : (r+1)*cols]
		g := gradOut.Data[r*cols : (r+1)*cols]
		out := grad.Data[r*cols : (r+1)*cols]

		var sumSq float32
		for _, v := range x {
			sumSq += v * v
		}
		norm := math32.Sqrt(sumSq)
		if norm < op.eps {
			copy(out, g)
			continue
		}

		var dot float32
		for c := 0; c < cols; c++ {
			dot += g[c] * x[c] / norm
		}
		for c := 0; c < cols; c++ {
			out[c] = (g[c] - dot*x[c]/norm) / norm
		}
	}

	return []*Tensor{grad}, nil
}

// NormalizeRowsAutograd performs row-wise L2 normalization with gradient
// tracking.
func NormalizeRowsAutograd(t *Tensor, eps float32) (*Tensor, error) {
	result, err := NormalizeRows(t, eps)
	if err != nil {
		return nil, err
	}
	return setResult(result, &NormalizeRowsOp{inputs: []*Tensor{t}, eps: eps}, t), nil
}

// ClampOp implements autograd clamping; gradients pass only through
// elements that were inside the range.
type ClampOp struct {
	inputs   []*Tensor
	min, max float32
}

func (op *ClampOp) Inputs() []*Tensor { return op.inputs }

func (op *ClampOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i, v := range op.inputs[0].Data {
		if v < op.min || v > op.max {
			grad.Data[i] = 0
		}
	}
	return []*Tensor{grad}, nil
}

// ClampAutograd limits elements to [min, max] with gradient tracking.
func ClampAutograd(t *Tensor, min, max float32) (*Tensor, error) {
	result, err := Clamp(t, min, max)
	if err != nil {
		return nil, err
	}
	return setResult(result, &ClampOp{inputs: []*Tensor{t}, min: min, max: max}, t), nil
}

// ReciprocalOp implements autograd 1/x: d(1/x)/dx = -1/x².
type ReciprocalOp struct {
	inputs []*Tensor
}

func (op *ReciprocalOp) Inputs() []*Tensor { return op.inputs }

func (op *ReciprocalOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i, v := range op.inputs[0].Data {
		grad.Data[i] *= -1.0 / (v * v)
	}
	return []*Tensor{grad}, nil
}

// ReciprocalAutograd computes 1/x with gradient tracking.
func ReciprocalAutograd(t *Tensor) (*Tensor, error) {
	result, err := Reciprocal(t)
	if err != nil {
		return nil, err
	}
	return setResult(result, &ReciprocalOp{inputs: []*Tensor{t}}, t), nil
}
