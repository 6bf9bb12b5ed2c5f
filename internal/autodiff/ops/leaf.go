package ops

import "github.com/born-ml/tapegrad/internal/tensor"

// LeafForward marks a user-supplied input. Its value is set from outside the
// tape and never recomputed.
type LeafForward struct {
	Value tensor.Handle
}

// NewLeafForward creates a LeafForward owning value.
func NewLeafForward(value tensor.Handle) *LeafForward {
	return &LeafForward{Value: value}
}

// Name returns "leaf".
func (op *LeafForward) Name() string { return "leaf" }

// Inputs returns nil; a leaf has no operands.
func (op *LeafForward) Inputs() []tensor.Handle { return nil }

// Output returns the leaf value buffer.
func (op *LeafForward) Output() tensor.Handle { return op.Value }

func (*LeafForward) forwardOp() {}

// LeafBackward holds the gradient buffer of a tracked leaf. Backward passes
// accumulate into it; the operator itself propagates nothing.
type LeafBackward struct {
	Grad tensor.Handle
}

// NewLeafBackward creates a LeafBackward owning grad.
func NewLeafBackward(grad tensor.Handle) *LeafBackward {
	return &LeafBackward{Grad: grad}
}

// Name returns "leaf".
func (op *LeafBackward) Name() string { return "leaf" }

// OutputGrad returns the leaf gradient buffer.
func (op *LeafBackward) OutputGrad() tensor.Handle { return op.Grad }

// InputGrads returns nil; a leaf has no operands.
func (op *LeafBackward) InputGrads() []tensor.Handle { return nil }

func (*LeafBackward) backwardOp() {}
