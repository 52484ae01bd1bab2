package render

import (
	"fmt"

	"github.com/gosplat/gosplat/checkpoints"
	"github.com/gosplat/gosplat/tensor"
)

const embeddingWeightName = "model.embedding.weight"

func networkWeightName(layer int) string {
	return fmt.Sprintf("model.network.%d.weight", layer)
}

func networkBiasName(layer int) string {
	return fmt.Sprintf("model.network.%d.bias", layer)
}

// StateDict exports the appearance model parameters as named checkpoint
// weights.
func (r *AppearanceRenderer) StateDict() (*checkpoints.Checkpoint, error) {
	if r.model == nil {
		return nil, ErrUninitialized
	}

	embeddingWeight := r.model.Embedding().Weight()
	weights := []checkpoints.WeightTensor{
		{
			Name:  embeddingWeightName,
			Shape: append([]int{}, embeddingWeight.Shape...),
			Data:  append([]float32{}, embeddingWeight.Data...),
			Layer: "embedding",
			Type:  "embedding",
		},
	}

	for i, layer := range r.model.Network().Layers() {
		layerName := fmt.Sprintf("network.%d", i)
		weights = append(weights, checkpoints.WeightTensor{
			Name:  networkWeightName(i),
			Shape: append([]int{}, layer.Weight().Shape...),
			Data:  append([]float32{}, layer.Weight().Data...),
			Layer: layerName,
			Type:  "weight",
		})
		if bias := layer.Bias(); bias != nil {
			weights = append(weights, checkpoints.WeightTensor{
				Name:  networkBiasName(i),
				Shape: append([]int{}, bias.Shape...),
				Data:  append([]float32{}, bias.Data...),
				Layer: layerName,
				Type:  "bias",
			})
		}
	}

	return &checkpoints.Checkpoint{Weights: weights}, nil
}

// LoadStateDict restores the appearance model from checkpoint weights. The
// persisted embedding row count is authoritative: when it disagrees with
// the configured appearance count the model is re-materialized to match,
// so a checkpoint trained elsewhere always loads.
func (r *AppearanceRenderer) LoadStateDict(checkpoint *checkpoints.Checkpoint) error {
	embeddingWeight, err := checkpoint.FindWeight(embeddingWeightName)
	if err != nil {
		return err
	}
	if len(embeddingWeight.Shape) != 2 {
		return &ShapeError{What: "embedding weight dims", Expected: 2, Actual: len(embeddingWeight.Shape)}
	}
	if embeddingWeight.Shape[1] != r.config.Model.NAppearanceEmbeddingDims {
		return &ShapeError{What: "embedding dims", Expected: r.config.Model.NAppearanceEmbeddingDims, Actual: embeddingWeight.Shape[1]}
	}

	persistedRows := embeddingWeight.Shape[0]
	if r.model == nil || r.model.Embedding().NumEmbeddings() != persistedRows {
		if err := r.materialize(persistedRows); err != nil {
			return err
		}
	}

	if err := restoreTensor(r.model.Embedding().Weight(), embeddingWeight); err != nil {
		return fmt.Errorf("restoring %s: %v", embeddingWeightName, err)
	}

	for i, layer := range r.model.Network().Layers() {
		if err := restoreNamed(checkpoint, networkWeightName(i), layer.Weight()); err != nil {
			return err
		}
		if bias := layer.Bias(); bias != nil {
			if err := restoreNamed(checkpoint, networkBiasName(i), bias); err != nil {
				return err
			}
		}
	}

	return nil
}

// SaveState writes the model state to a checkpoint file.
func (r *AppearanceRenderer) SaveState(path string) error {
	checkpoint, err := r.StateDict()
	if err != nil {
		return err
	}
	return checkpoints.NewCheckpointSaver().SaveCheckpoint(checkpoint, path)
}

// LoadState reads a checkpoint file and restores the model state from it.
func (r *AppearanceRenderer) LoadState(path string) error {
	checkpoint, err := checkpoints.NewCheckpointSaver().LoadCheckpoint(path)
	if err != nil {
		return err
	}
	return r.LoadStateDict(checkpoint)
}

func restoreNamed(checkpoint *checkpoints.Checkpoint, name string, target *tensor.Tensor) error {
	weight, err := checkpoint.FindWeight(name)
	if err != nil {
		return err
	}
	if err := restoreTensor(target, weight); err != nil {
		return fmt.Errorf("restoring %s: %v", name, err)
	}
	return nil
}

func restoreTensor(target *tensor.Tensor, weight *checkpoints.WeightTensor) error {
	if len(weight.Shape) != len(target.Shape) {
		return fmt.Errorf("shape rank mismatch: have %v, want %v", weight.Shape, target.Shape)
	}
	for i, dim := range weight.Shape {
		if dim != target.Shape[i] {
			return fmt.Errorf("shape mismatch: have %v, want %v", weight.Shape, target.Shape)
		}
	}
	return target.SetData(weight.Data)
}

// OptimizerStateDict exports the state of a trained optimizer group.
func OptimizerStateDict(group *ScheduledOptimizer, parameterNames []string) (*checkpoints.OptimizerState, error) {
	ms, vs := group.Optimizer.StateTensors()
	if len(parameterNames) != len(ms) {
		return nil, fmt.Errorf("have %d parameter names for %d optimizer slots", len(parameterNames), len(ms))
	}

	state := &checkpoints.OptimizerState{
		Type:  "Adam",
		Group: group.Name,
		Step:  group.Optimizer.StepCount(),
		Parameters: map[string]interface{}{
			"base_lr": group.BaseLR(),
		},
	}
	for i := range ms {
		state.StateData = append(state.StateData,
			checkpoints.OptimizerTensor{Name: parameterNames[i], Data: ms[i], StateType: "m"},
			checkpoints.OptimizerTensor{Name: parameterNames[i], Data: vs[i], StateType: "v"},
		)
	}
	return state, nil
}

// LoadOptimizerState restores Adam moment estimates into an optimizer group.
func LoadOptimizerState(group *ScheduledOptimizer, state *checkpoints.OptimizerState) error {
	if state.Type != "Adam" {
		return fmt.Errorf("unsupported optimizer type %q", state.Type)
	}

	var ms, vs [][]float32
	for i := range state.StateData {
		switch state.StateData[i].StateType {
		case "m":
			ms = append(ms, state.StateData[i].Data)
		case "v":
			vs = append(vs, state.StateData[i].Data)
		default:
			return fmt.Errorf("unknown optimizer state type %q", state.StateData[i].StateType)
		}
	}
	return group.Optimizer.LoadStateTensors(ms, vs, state.Step)
}
