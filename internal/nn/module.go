// Package nn implements layers recorded on an autodiff tape.
//
// This package provides building blocks for tape-based models:
//   - Module interface: Base interface for all layers
//   - Linear: Fully connected layer y = W·x + b
//   - Sequential: Container for stacking layers
//
// Parameters are tracked leaf expressions, so they can be handed directly to
// an optimizer from package optim.
package nn

import (
	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Module is the base interface for all layers.
//
// Modules can be composed to build larger models:
//
//	l1, _ := nn.NewLinear(tape, 4, 8, rng)
//	l2, _ := nn.NewLinear(tape, 8, 2, rng)
//	model := nn.NewSequential[float32](l1, l2)
type Module[T tensor.Float] interface {
	// Forward records the layer's computation for input on the tape and
	// returns the output expression.
	Forward(input *autodiff.Expression[T]) (*autodiff.Expression[T], error)

	// Parameters returns all trainable leaves of this module.
	Parameters() []*autodiff.Expression[T]
}
