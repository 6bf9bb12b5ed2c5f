// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/nn"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Module interface defines the common interface for all layers.
type Module[T tensor.Float] = nn.Module[T]

// Linear represents a fully connected layer.
type Linear[T tensor.Float] = nn.Linear[T]

// NewLinear records a new linear layer's parameters on tape.
func NewLinear[T tensor.Float](tape *autodiff.Tape[T], inFeatures, outFeatures int, rng *rand.Rand) (*Linear[T], error) {
	return nn.NewLinear(tape, inFeatures, outFeatures, rng)
}

// Sequential chains modules.
type Sequential[T tensor.Float] = nn.Sequential[T]

// NewSequential creates a new Sequential container.
func NewSequential[T tensor.Float](modules ...Module[T]) *Sequential[T] {
	return nn.NewSequential(modules...)
}

// Xavier returns a Glorot-uniform initialized tensor.
func Xavier[T tensor.Float](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) (*tensor.Dense[T], error) {
	return nn.Xavier[T](fanIn, fanOut, shape, rng)
}
