// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation on a
// define-by-run tape.
//
// Every operator call computes its value immediately and records a node on
// the tape. Tape.Forward replays the whole tape after leaves change;
// Expression.Backward propagates a seed gradient from the last node back to
// every tracked leaf.
//
// Example:
//
//	import (
//	    "github.com/born-ml/tapegrad/autodiff"
//	    "github.com/born-ml/tapegrad/tensor"
//	)
//
//	func main() {
//	    tape := autodiff.NewTape[float32]()
//	    a, _ := tape.FromElemGrad(tensor.Shape{3, 4}, 5)
//	    x, _ := tape.FromElemGrad(tensor.Shape{4}, 3)
//	    b, _ := tape.FromElemGrad(tensor.Shape{3}, -1)
//
//	    ax, _ := a.MatVec(x)
//	    y, _ := ax.Add(b) // [59, 59, 59]
//
//	    seed, _ := tensor.Full[float32](tensor.Shape{3}, 1)
//	    _ = y.Backward(seed)
//	    gx, _ := x.Grad() // [15, 15, 15, 15]
//	}
package autodiff

import (
	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/tensor"
)

// Tape records operations and replays them forward or in reverse.
type Tape[T tensor.Float] = autodiff.Tape[T]

// Expression is a handle to one node's value and gradient.
type Expression[T tensor.Float] = autodiff.Expression[T]

// Node is one recorded tape entry.
type Node = autodiff.Node

// Option configures a Tape.
type Option = autodiff.Option

// NotTerminalError is returned by Backward on a node other than the last one.
type NotTerminalError = autodiff.NotTerminalError

// InvalidOperandError reports a node referring to a later node.
type InvalidOperandError = autodiff.InvalidOperandError

// Common errors.
var (
	ErrNoGradient   = autodiff.ErrNoGradient
	ErrNotLeaf      = autodiff.ErrNotLeaf
	ErrTapeMismatch = autodiff.ErrTapeMismatch
	ErrEmptyTape    = autodiff.ErrEmptyTape
)

// NewTape creates an empty tape.
//
// Example:
//
//	tape := autodiff.NewTape[float64](autodiff.WithMemoryLimit(1 << 30))
func NewTape[T tensor.Float](opts ...Option) *Tape[T] {
	return autodiff.NewTape[T](opts...)
}

// WithLogger sets the logrus logger used for debug tracing.
var WithLogger = autodiff.WithLogger

// WithMemoryLimit caps the bytes held by values and gradients on the tape.
var WithMemoryLimit = autodiff.WithMemoryLimit
