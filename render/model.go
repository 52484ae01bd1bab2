package render

import (
	"fmt"

	"github.com/gosplat/gosplat/tensor"
	"github.com/gosplat/gosplat/training"
)

// normalizeEps guards the L2 normalization against zero-norm rows.
const normalizeEps = 1e-12

// AppearanceModel predicts a per-point RGB offset from the point's learned
// feature vector, the view's appearance embedding and, optionally, the
// encoded view direction:
//
//	offset = 2*network(concat(features, embedding, [encoded dirs])) - 1
type AppearanceModel struct {
	config    ModelConfig
	embedding *training.Embedding
	encoding  *training.FrequencyEncoding
	network   *training.MLP
}

// NewAppearanceModel materializes the model. The configuration must carry a
// concrete appearance count at this point; inference from observed ids
// happens in the renderer's Setup, before this call.
func NewAppearanceModel(config ModelConfig) (*AppearanceModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.NAppearances <= 0 {
		return nil, &ConfigError{Field: "n_appearances", Reason: fmt.Sprintf("must be resolved before model setup, got %d", config.NAppearances)}
	}

	embedding, err := training.NewEmbedding(config.NAppearances, config.NAppearanceEmbeddingDims)
	if err != nil {
		return nil, fmt.Errorf("failed to create appearance embedding: %v", err)
	}

	inputDims := config.NGaussianFeatureDims + config.NAppearanceEmbeddingDims

	var encoding *training.FrequencyEncoding
	if config.IsViewDependent {
		encoding, err = training.NewFrequencyEncoding(3, config.NViewDirectionFrequencies)
		if err != nil {
			return nil, fmt.Errorf("failed to create view direction encoding: %v", err)
		}
		inputDims += encoding.OutputChannels()
	}

	network, err := training.NewMLP(inputDims, 3, config.NLayers, config.NNeurons, config.SkipLayers)
	if err != nil {
		return nil, fmt.Errorf("failed to create offset network: %v", err)
	}

	return &AppearanceModel{
		config:    config,
		embedding: embedding,
		encoding:  encoding,
		network:   network,
	}, nil
}

// Config returns the model configuration the model was materialized with.
func (m *AppearanceModel) Config() ModelConfig {
	return m.config
}

// Predict computes the [N,3] RGB offset in [-1,1] for N points.
// The appearance id selects one embedding vector which is replicated across
// every point of the frame.
func (m *AppearanceModel) Predict(features *tensor.Tensor, appearanceID int, viewDirs *tensor.Tensor) (*tensor.Tensor, error) {
	if len(features.Shape) != 2 || features.Shape[1] != m.config.NGaussianFeatureDims {
		return nil, &ShapeError{What: "point feature dims", Expected: m.config.NGaussianFeatureDims, Actual: lastDim(features)}
	}
	n := features.Shape[0]

	if m.config.IsViewDependent {
		if viewDirs == nil || len(viewDirs.Shape) != 2 || viewDirs.Shape[1] != 3 {
			return nil, &ShapeError{What: "view direction dims", Expected: 3, Actual: lastDim(viewDirs)}
		}
		if viewDirs.Shape[0] != n {
			return nil, &ShapeError{What: "view direction count", Expected: n, Actual: viewDirs.Shape[0]}
		}
	}

	if appearanceID < 0 || appearanceID >= m.embedding.NumEmbeddings() {
		return nil, &ConfigError{
			Field:  "appearance_id",
			Reason: fmt.Sprintf("id %d outside configured range [0, %d)", appearanceID, m.embedding.NumEmbeddings()),
		}
	}

	embeddings, err := m.embedding.Lookup(appearanceID, n)
	if err != nil {
		return nil, fmt.Errorf("embedding lookup failed: %v", err)
	}

	if m.config.Normalize {
		features, err = tensor.NormalizeRowsAutograd(features, normalizeEps)
		if err != nil {
			return nil, fmt.Errorf("feature normalization failed: %v", err)
		}
		embeddings, err = tensor.NormalizeRowsAutograd(embeddings, normalizeEps)
		if err != nil {
			return nil, fmt.Errorf("embedding normalization failed: %v", err)
		}
	}

	inputs := []*tensor.Tensor{features, embeddings}
	if m.config.IsViewDependent {
		encoded, err := m.encoding.Forward(viewDirs)
		if err != nil {
			return nil, fmt.Errorf("view direction encoding failed: %v", err)
		}
		inputs = append(inputs, encoded)
	}

	networkInput, err := tensor.ConcatAutograd(inputs...)
	if err != nil {
		return nil, fmt.Errorf("network input concat failed: %v", err)
	}

	raw, err := m.network.Forward(networkInput)
	if err != nil {
		return nil, fmt.Errorf("offset network forward failed: %v", err)
	}

	// Map the sigmoid output into [-1,1].
	return tensor.AffineAutograd(raw, 2, -1)
}

// EmbeddingParameters returns the embedding table parameter group.
func (m *AppearanceModel) EmbeddingParameters() []*tensor.Tensor {
	return m.embedding.Parameters()
}

// NetworkParameters returns the offset network parameter group.
func (m *AppearanceModel) NetworkParameters() []*tensor.Tensor {
	return m.network.Parameters()
}

// Embedding exposes the table for serialization.
func (m *AppearanceModel) Embedding() *training.Embedding {
	return m.embedding
}

// Network exposes the offset network for serialization.
func (m *AppearanceModel) Network() *training.MLP {
	return m.network
}

func lastDim(t *tensor.Tensor) int {
	if t == nil || len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}
