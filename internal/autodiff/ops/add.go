package ops

import "github.com/born-ml/tapegrad/internal/tensor"

// AddForward computes an element-wise addition: output = lhs + rhs.
// Operand shapes are identical; there is no broadcasting.
type AddForward struct {
	Lhs, Rhs tensor.Handle
	Out      tensor.Handle
}

// NewAddForward creates a new AddForward.
func NewAddForward(lhs, rhs, out tensor.Handle) *AddForward {
	return &AddForward{Lhs: lhs, Rhs: rhs, Out: out}
}

// Name returns "add".
func (op *AddForward) Name() string { return "add" }

// Inputs returns [lhs, rhs].
func (op *AddForward) Inputs() []tensor.Handle { return []tensor.Handle{op.Lhs, op.Rhs} }

// Output returns the sum buffer.
func (op *AddForward) Output() tensor.Handle { return op.Out }

func (*AddForward) forwardOp() {}

// AddBackward propagates the gradient of an addition.
//
// Backward pass:
//   - d(a+b)/da = 1, so grad_a += outputGrad
//   - d(a+b)/db = 1, so grad_b += outputGrad
type AddBackward struct {
	OutGrad          tensor.Handle
	LhsGrad, RhsGrad tensor.Handle // NoHandle when the operand is untracked
}

// NewAddBackward creates a new AddBackward.
func NewAddBackward(outGrad, lhsGrad, rhsGrad tensor.Handle) *AddBackward {
	return &AddBackward{OutGrad: outGrad, LhsGrad: lhsGrad, RhsGrad: rhsGrad}
}

// Name returns "add".
func (op *AddBackward) Name() string { return "add" }

// OutputGrad returns the gradient buffer of the sum.
func (op *AddBackward) OutputGrad() tensor.Handle { return op.OutGrad }

// InputGrads returns [grad_lhs, grad_rhs].
func (op *AddBackward) InputGrads() []tensor.Handle {
	return []tensor.Handle{op.LhsGrad, op.RhsGrad}
}

func (*AddBackward) backwardOp() {}

func forwardAdd[T tensor.Float](op *AddForward, arena *tensor.Arena[T]) error {
	return forwardElementwise(arena, op.Lhs, op.Rhs, op.Out, tensor.AddInto[T])
}

func backwardAdd[T tensor.Float](op *AddBackward, arena *tensor.Arena[T]) error {
	return backwardElementwise(arena, op.OutGrad, op.LhsGrad, 1, op.RhsGrad, 1)
}

// forwardElementwise borrows both operands shared and the output exclusively,
// then applies kernel.
func forwardElementwise[T tensor.Float](
	arena *tensor.Arena[T],
	lhs, rhs, out tensor.Handle,
	kernel func(dst, a, b *tensor.Dense[T]),
) error {
	b := newBorrows(arena)
	defer b.release()

	x, err := b.read(lhs)
	if err != nil {
		return err
	}
	y, err := b.read(rhs)
	if err != nil {
		return err
	}
	dst, err := b.write(out)
	if err != nil {
		return err
	}
	kernel(dst, x, y)
	return nil
}

// backwardElementwise accumulates lhsScale*outGrad into lhsGrad and
// rhsScale*outGrad into rhsGrad.
func backwardElementwise[T tensor.Float](
	arena *tensor.Arena[T],
	outGrad, lhsGrad tensor.Handle, lhsScale T,
	rhsGrad tensor.Handle, rhsScale T,
) error {
	g, release, err := arena.Borrow(outGrad)
	if err != nil {
		return err
	}
	defer release()

	if err := accumulate(arena, lhsScale, g, lhsGrad); err != nil {
		return err
	}
	return accumulate(arena, rhsScale, g, rhsGrad)
}
