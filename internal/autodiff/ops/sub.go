package ops

import "github.com/born-ml/tapegrad/internal/tensor"

// SubForward computes an element-wise subtraction: output = lhs - rhs.
type SubForward struct {
	Lhs, Rhs tensor.Handle
	Out      tensor.Handle
}

// NewSubForward creates a new SubForward.
func NewSubForward(lhs, rhs, out tensor.Handle) *SubForward {
	return &SubForward{Lhs: lhs, Rhs: rhs, Out: out}
}

// Name returns "sub".
func (op *SubForward) Name() string { return "sub" }

// Inputs returns [lhs, rhs].
func (op *SubForward) Inputs() []tensor.Handle { return []tensor.Handle{op.Lhs, op.Rhs} }

// Output returns the difference buffer.
func (op *SubForward) Output() tensor.Handle { return op.Out }

func (*SubForward) forwardOp() {}

// SubBackward propagates the gradient of a subtraction.
//
// Backward pass:
//   - d(a-b)/da = 1, so grad_a += outputGrad
//   - d(a-b)/db = -1, so grad_b -= outputGrad
type SubBackward struct {
	OutGrad          tensor.Handle
	LhsGrad, RhsGrad tensor.Handle
}

// NewSubBackward creates a new SubBackward.
func NewSubBackward(outGrad, lhsGrad, rhsGrad tensor.Handle) *SubBackward {
	return &SubBackward{OutGrad: outGrad, LhsGrad: lhsGrad, RhsGrad: rhsGrad}
}

// Name returns "sub".
func (op *SubBackward) Name() string { return "sub" }

// OutputGrad returns the gradient buffer of the difference.
func (op *SubBackward) OutputGrad() tensor.Handle { return op.OutGrad }

// InputGrads returns [grad_lhs, grad_rhs].
func (op *SubBackward) InputGrads() []tensor.Handle {
	return []tensor.Handle{op.LhsGrad, op.RhsGrad}
}

func (*SubBackward) backwardOp() {}

func forwardSub[T tensor.Float](op *SubForward, arena *tensor.Arena[T]) error {
	return forwardElementwise(arena, op.Lhs, op.Rhs, op.Out, tensor.SubInto[T])
}

func backwardSub[T tensor.Float](op *SubBackward, arena *tensor.Arena[T]) error {
	return backwardElementwise(arena, op.OutGrad, op.LhsGrad, 1, op.RhsGrad, -1)
}
