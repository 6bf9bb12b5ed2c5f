// Package autodiff implements reverse-mode automatic differentiation with a
// define-by-run tape.
//
// Architecture:
//   - Tape: append-only list of Nodes; insertion order is topological order
//     because an expression can only be built from existing operands
//   - Arena: every buffer of the graph lives in a tensor.Arena and nodes refer
//     to it by handle
//   - Expression: user-facing handle to one node's value and gradient
//   - Operators: closed sets of forward/backward operators in package ops
//
// Every operator call computes its value immediately and records a node.
// Tape.Forward replays every node in order, which is how updates to leaf
// values propagate. Expression.Backward seeds the terminal node's gradient
// and replays every backward operator in reverse order, accumulating into
// operand gradients.
//
// Usage:
//
//	tape := autodiff.NewTape[float32]()
//	a, _ := tape.FromElemGrad(tensor.Shape{3, 4}, 5)
//	x, _ := tape.FromElemGrad(tensor.Shape{4}, 3)
//	y, _ := a.MatVec(x)
//	seed, _ := tensor.Full[float32](tensor.Shape{3}, 1)
//	_ = y.Backward(seed)
//	gx, _ := x.Grad() // [15, 15, 15, 15]
package autodiff

import "github.com/sirupsen/logrus"

// Option configures a Tape.
type Option func(*options)

type options struct {
	logger      logrus.FieldLogger
	memoryLimit int
}

// WithLogger sets the logger used for debug tracing of the tape.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMemoryLimit caps the number of bytes the tape may allocate for values
// and gradients. Operations that would exceed it fail with
// tensor.ErrMemoryLimit. Zero means unlimited.
func WithMemoryLimit(bytes int) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}
