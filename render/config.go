package render

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig describes the appearance shading model. It is immutable after
// validation except for NAppearances, which Setup patches once when the
// table size is inferred from observed appearance ids.
type ModelConfig struct {
	NGaussianFeatureDims      int   `yaml:"n_gaussian_feature_dims"`
	NAppearances              int   `yaml:"n_appearances"`
	NAppearanceEmbeddingDims  int   `yaml:"n_appearance_embedding_dims"`
	IsViewDependent           bool  `yaml:"is_view_dependent"`
	NViewDirectionFrequencies int   `yaml:"n_view_direction_frequencies"`
	NNeurons                  int   `yaml:"n_neurons"`
	NLayers                   int   `yaml:"n_layers"`
	SkipLayers                []int `yaml:"skip_layers"`

	Normalize bool `yaml:"normalize"`
}

// DefaultModelConfig returns the model defaults. NAppearances of -1 means
// the table size is inferred at setup time.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		NGaussianFeatureDims:      64,
		NAppearances:              -1,
		NAppearanceEmbeddingDims:  32,
		IsViewDependent:           false,
		NViewDirectionFrequencies: 4,
		NNeurons:                  64,
		NLayers:                   3,
		SkipLayers:                nil,
		Normalize:                 false,
	}
}

// Validate checks the structural fields. The appearance count is checked at
// setup time instead, after inference had a chance to fill it in.
func (c *ModelConfig) Validate() error {
	if c.NGaussianFeatureDims <= 0 {
		return &ConfigError{Field: "n_gaussian_feature_dims", Reason: fmt.Sprintf("must be positive, got %d", c.NGaussianFeatureDims)}
	}
	if c.NAppearanceEmbeddingDims <= 0 {
		return &ConfigError{Field: "n_appearance_embedding_dims", Reason: fmt.Sprintf("must be positive, got %d", c.NAppearanceEmbeddingDims)}
	}
	if c.NNeurons <= 0 {
		return &ConfigError{Field: "n_neurons", Reason: fmt.Sprintf("must be positive, got %d", c.NNeurons)}
	}
	if c.NLayers < 2 {
		return &ConfigError{Field: "n_layers", Reason: fmt.Sprintf("must be at least 2, got %d", c.NLayers)}
	}
	if c.IsViewDependent && c.NViewDirectionFrequencies <= 0 {
		return &ConfigError{Field: "n_view_direction_frequencies", Reason: fmt.Sprintf("must be positive, got %d", c.NViewDirectionFrequencies)}
	}
	for _, s := range c.SkipLayers {
		if s <= 0 || s >= c.NLayers {
			return &ConfigError{Field: "skip_layers", Reason: fmt.Sprintf("index %d out of range [1, %d)", s, c.NLayers)}
		}
	}
	return nil
}

// OptimizationConfig carries the training schedule parameters for both
// parameter groups. The two groups have independent initial learning rates
// but share the decay factor, epsilon, step budget and warm-up length.
type OptimizationConfig struct {
	EmbeddingLRInit float64 `yaml:"embedding_lr_init"`
	LRInit          float64 `yaml:"lr_init"`
	LRFinalFactor   float64 `yaml:"lr_final_factor"`
	Eps             float64 `yaml:"eps"`
	MaxSteps        int     `yaml:"max_steps"`
	WarmUp          int     `yaml:"warm_up"`
}

// DefaultOptimizationConfig returns the schedule defaults.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		EmbeddingLRInit: 2e-3,
		LRInit:          1e-3,
		LRFinalFactor:   0.1,
		Eps:             1e-15,
		MaxSteps:        30_000,
		WarmUp:          4000,
	}
}

// Validate checks the schedule parameters.
func (c *OptimizationConfig) Validate() error {
	if c.EmbeddingLRInit <= 0 {
		return &ConfigError{Field: "embedding_lr_init", Reason: fmt.Sprintf("must be positive, got %g", c.EmbeddingLRInit)}
	}
	if c.LRInit <= 0 {
		return &ConfigError{Field: "lr_init", Reason: fmt.Sprintf("must be positive, got %g", c.LRInit)}
	}
	if c.LRFinalFactor <= 0 || c.LRFinalFactor > 1 {
		return &ConfigError{Field: "lr_final_factor", Reason: fmt.Sprintf("must be in (0, 1], got %g", c.LRFinalFactor)}
	}
	if c.Eps <= 0 {
		return &ConfigError{Field: "eps", Reason: fmt.Sprintf("must be positive, got %g", c.Eps)}
	}
	if c.MaxSteps <= 0 {
		return &ConfigError{Field: "max_steps", Reason: fmt.Sprintf("must be positive, got %d", c.MaxSteps)}
	}
	if c.WarmUp < 0 {
		return &ConfigError{Field: "warm_up", Reason: fmt.Sprintf("must not be negative, got %d", c.WarmUp)}
	}
	return nil
}

// RendererConfig is the two-phase entry point: construct and validate the
// configuration first, then Instantiate the renderer, then Setup it once
// the appearance id range (or a checkpoint) is known.
type RendererConfig struct {
	AntiAliased        bool               `yaml:"anti_aliased"`
	Filter2DKernelSize float32            `yaml:"filter_2d_kernel_size"`
	Model              ModelConfig        `yaml:"model"`
	Optimization       OptimizationConfig `yaml:"optimization"`
}

// DefaultRendererConfig returns the raw-opacity variant defaults.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		AntiAliased:        true,
		Filter2DKernelSize: 0.3,
		Model:              DefaultModelConfig(),
		Optimization:       DefaultOptimizationConfig(),
	}
}

// DefaultMipRendererConfig returns the filtered-scale variant defaults,
// which use a tighter 2D filter kernel.
func DefaultMipRendererConfig() RendererConfig {
	config := DefaultRendererConfig()
	config.Filter2DKernelSize = 0.1
	return config
}

// Validate checks the full renderer configuration.
func (c *RendererConfig) Validate() error {
	if c.Filter2DKernelSize <= 0 {
		return &ConfigError{Field: "filter_2d_kernel_size", Reason: fmt.Sprintf("must be positive, got %g", c.Filter2DKernelSize)}
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	return c.Optimization.Validate()
}

// LoadRendererConfig reads a YAML renderer configuration, applying defaults
// for absent fields.
func LoadRendererConfig(path string) (*RendererConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	config := DefaultRendererConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
