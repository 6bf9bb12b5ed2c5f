// Package optim implements optimization algorithms that update tracked leaf
// expressions in place between forward replays.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// A training-like loop mutates leaves and replays the whole tape:
//
//	tape := autodiff.NewTape[float64]()
//	w, _ := tape.FromElemGrad(tensor.Shape{3, 4}, 0)
//	// ... build loss from w ...
//	sgd := optim.NewSGD([]*autodiff.Expression[float64]{w}, optim.SGDConfig{LR: 0.1})
//	for step := 0; step < steps; step++ {
//	    _ = loss.Backward(seed)
//	    _ = sgd.Step()
//	    _ = tape.Forward()
//	}
package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// The gradients are those left by the last Expression.Backward call.
	// The caller runs Tape.Forward afterwards to propagate the new values.
	Step() error

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// checkParam verifies that p can be updated by an optimizer: it must be a
// leaf with a gradient buffer.
func checkParam[T tensor.Float](p *autodiff.Expression[T]) error {
	if !p.IsLeaf() {
		return errors.Wrapf(autodiff.ErrNotLeaf, "parameter node %d", p.Index())
	}
	if !p.GradExists() {
		return errors.Wrapf(autodiff.ErrNoGradient, "parameter node %d", p.Index())
	}
	return nil
}

// paramKey identifies a parameter by its node, so that optimizer state is
// never shared between leaves of different tapes.
type paramKey[T tensor.Float] struct {
	tape  *autodiff.Tape[T]
	index int
}

func keyOf[T tensor.Float](p *autodiff.Expression[T]) paramKey[T] {
	return paramKey[T]{tape: p.Tape(), index: p.Index()}
}

// uniqueParams drops repeated parameters, keeping the first occurrence.
func uniqueParams[T tensor.Float](params []*autodiff.Expression[T]) []*autodiff.Expression[T] {
	seen := make(map[paramKey[T]]bool, len(params))
	out := make([]*autodiff.Expression[T], 0, len(params))
	for _, p := range params {
		k := keyOf(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}
