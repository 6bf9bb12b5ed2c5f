package optim

import (
	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD[T tensor.Float] struct {
	params     []*autodiff.Expression[T]
	lr         T
	momentum   T
	velocities map[paramKey[T]]*tensor.Dense[T]
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer over tracked leaf expressions.
// A parameter listed more than once is updated once per step.
//
// Example:
//
//	sgd := optim.NewSGD(params, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD[T tensor.Float](params []*autodiff.Expression[T], config SGDConfig) *SGD[T] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[T]{
		params:     uniqueParams(params),
		lr:         T(config.LR),
		momentum:   T(config.Momentum),
		velocities: make(map[paramKey[T]]*tensor.Dense[T]),
	}
}

// Step performs a single optimization step on every parameter.
//
// All parameters are checked before any of them is modified.
func (s *SGD[T]) Step() error {
	for _, p := range s.params {
		if err := checkParam(p); err != nil {
			return err
		}
	}

	for _, p := range s.params {
		grad, err := p.Grad()
		if err != nil {
			return err
		}
		if s.momentum != 0 {
			grad = s.velocity(keyOf(p), grad)
		}
		err = p.Update(func(value *tensor.Dense[T]) error {
			tensor.Axpy(-s.lr, grad, value)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// velocity updates and returns the velocity of parameter k:
// v = momentum * v + grad.
func (s *SGD[T]) velocity(k paramKey[T], grad *tensor.Dense[T]) *tensor.Dense[T] {
	v, ok := s.velocities[k]
	if !ok {
		v = tensor.ZerosLike(grad)
		s.velocities[k] = v
	}
	tensor.Scale(s.momentum, v)
	tensor.Axpy(1, grad, v)
	return v
}

// GetLR returns the current learning rate.
func (s *SGD[T]) GetLR() float64 {
	return float64(s.lr)
}

// SetLR updates the learning rate, e.g. from a schedule.
func (s *SGD[T]) SetLR(lr float64) {
	s.lr = T(lr)
}
