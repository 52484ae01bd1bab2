package training

import (
	"fmt"

	"github.com/gosplat/gosplat/tensor"
)

// Embedding is a learned lookup table mapping integer ids to dense vectors.
// The table weight has shape [numEmbeddings, embeddingDim].
type Embedding struct {
	weight *tensor.Tensor
}

// NewEmbedding creates an embedding table initialized from N(0,1), matching
// the usual embedding init.
func NewEmbedding(numEmbeddings, embeddingDim int) (*Embedding, error) {
	if numEmbeddings <= 0 {
		return nil, fmt.Errorf("embedding count must be positive, got %d", numEmbeddings)
	}
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	weight, err := tensor.RandomNormal([]int{numEmbeddings, embeddingDim}, 0, 1, globalRng)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding weight: %v", err)
	}
	weight.SetRequiresGrad(true)

	return &Embedding{weight: weight}, nil
}

// NewEmbeddingFromWeight wraps an existing weight tensor, used when
// restoring a table from a checkpoint.
func NewEmbeddingFromWeight(weight *tensor.Tensor) (*Embedding, error) {
	if len(weight.Shape) != 2 {
		return nil, fmt.Errorf("embedding weight must be 2D, got shape %v", weight.Shape)
	}
	weight.SetRequiresGrad(true)
	return &Embedding{weight: weight}, nil
}

// NumEmbeddings returns the table row count.
func (e *Embedding) NumEmbeddings() int {
	return e.weight.Shape[0]
}

// EmbeddingDim returns the vector dimension.
func (e *Embedding) EmbeddingDim() int {
	return e.weight.Shape[1]
}

// Lookup returns the embedding for id replicated n times as an [n, dim]
// tensor. Gradients accumulate onto the single table row.
func (e *Embedding) Lookup(id, n int) (*tensor.Tensor, error) {
	if id < 0 || id >= e.weight.Shape[0] {
		return nil, fmt.Errorf("embedding id %d out of range [0, %d)", id, e.weight.Shape[0])
	}
	return tensor.LookupRowAutograd(e.weight, id, n)
}

// Weight exposes the underlying table for serialization.
func (e *Embedding) Weight() *tensor.Tensor {
	return e.weight
}

// Parameters returns the trainable table weight.
func (e *Embedding) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{e.weight}
}
