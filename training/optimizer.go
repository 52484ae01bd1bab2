package training

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"

	"github.com/gosplat/gosplat/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// AdamConfig holds configuration for the Adam optimizer
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam implements the Adam optimizer over CPU tensors.
type Adam struct {
	parameters []*tensor.Tensor
	lr         float64
	beta1      float32
	beta2      float32
	eps        float32
	decay      float32
	step       int64
	m          map[*tensor.Tensor][]float32 // First moment estimates
	v          map[*tensor.Tensor][]float32 // Second moment estimates
	mutex      sync.RWMutex
}

// NewAdam creates a new Adam optimizer for the given parameters.
func NewAdam(parameters []*tensor.Tensor, config AdamConfig) (*Adam, error) {
	if len(parameters) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %g", config.Epsilon)
	}

	adam := &Adam{
		parameters: parameters,
		lr:         config.LearningRate,
		beta1:      float32(config.Beta1),
		beta2:      float32(config.Beta2),
		eps:        float32(config.Epsilon),
		decay:      float32(config.WeightDecay),
		m:          make(map[*tensor.Tensor][]float32),
		v:          make(map[*tensor.Tensor][]float32),
	}

	// Moment estimates start at zero.
	for _, param := range parameters {
		if param.RequiresGrad() {
			adam.m[param] = make([]float32, param.NumElems)
			adam.v[param] = make([]float32, param.NumElems)
		}
	}

	return adam, nil
}

// Step performs a single optimization step
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.step++

	// Bias correction factors
	bias1 := 1.0 - math32.Pow(adam.beta1, float32(adam.step))
	bias2 := 1.0 - math32.Pow(adam.beta2, float32(adam.step))
	lr := float32(adam.lr)

	for _, param := range adam.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		grad := param.Grad().Data
		m := adam.m[param]
		v := adam.v[param]
		if m == nil || v == nil {
			m = make([]float32, param.NumElems)
			v = make([]float32, param.NumElems)
			adam.m[param] = m
			adam.v[param] = v
		}
		if len(grad) != param.NumElems {
			return fmt.Errorf("gradient size %d does not match parameter with %d elements", len(grad), param.NumElems)
		}

		for i := range param.Data {
			g := grad[i]
			if adam.decay > 0 {
				g += adam.decay * param.Data[i]
			}

			m[i] = adam.beta1*m[i] + (1-adam.beta1)*g
			v[i] = adam.beta2*v[i] + (1-adam.beta2)*g*g

			mHat := m[i] / bias1
			vHat := v[i] / bias2

			param.Data[i] -= lr * mHat / (math32.Sqrt(vHat) + adam.eps)
		}
	}

	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.parameters)
}

// GetLR returns the current learning rate
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.lr
}

// SetLR sets the learning rate
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.lr = lr
}

// StepCount returns the number of optimization steps taken so far.
func (adam *Adam) StepCount() int64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.step
}

// StateTensors exposes the first and second moment buffers keyed by
// parameter index, for checkpointing.
func (adam *Adam) StateTensors() ([][]float32, [][]float32) {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()

	ms := make([][]float32, len(adam.parameters))
	vs := make([][]float32, len(adam.parameters))
	for i, param := range adam.parameters {
		ms[i] = adam.m[param]
		vs[i] = adam.v[param]
	}
	return ms, vs
}

// LoadStateTensors restores moment buffers saved by StateTensors.
func (adam *Adam) LoadStateTensors(ms, vs [][]float32, step int64) error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	if len(ms) != len(adam.parameters) || len(vs) != len(adam.parameters) {
		return fmt.Errorf("state tensor count mismatch: have %d parameters, got %d/%d buffers",
			len(adam.parameters), len(ms), len(vs))
	}
	for i, param := range adam.parameters {
		if ms[i] == nil {
			continue
		}
		if len(ms[i]) != param.NumElems || len(vs[i]) != param.NumElems {
			return fmt.Errorf("state buffer %d size mismatch: parameter has %d elements", i, param.NumElems)
		}
		adam.m[param] = append([]float32(nil), ms[i]...)
		adam.v[param] = append([]float32(nil), vs[i]...)
	}
	adam.step = step
	return nil
}
