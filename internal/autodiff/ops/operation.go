// Package ops defines the operators recorded on the tape.
//
// Operators form two closed sets. A ForwardOp recomputes a node's output
// buffer from its operand buffers; a BackwardOp propagates the node's output
// gradient into its operands' gradient buffers. Operators hold arena handles,
// never buffers, and are dispatched with an exhaustive type switch by Forward
// and Backward.
//
// Supported operators:
//   - Leaf: no-op in both directions
//   - Add: element-wise addition (d(a+b)/da = 1, d(a+b)/db = 1)
//   - Sub: element-wise subtraction (d(a-b)/da = 1, d(a-b)/db = -1)
//   - MatVec: matrix-vector product (d(M·v)/dM = grad ⊗ v, d(M·v)/dv = M^T·grad)
//
// Backward operators accumulate into gradient buffers, so a value consumed by
// several nodes receives the sum of their contributions.
package ops

import (
	"fmt"

	"github.com/born-ml/tapegrad/internal/tensor"
)

// ForwardOp recomputes the output buffer of a node.
type ForwardOp interface {
	// Name returns the operator name used in logs and errors.
	Name() string

	// Inputs returns the operand value buffers.
	Inputs() []tensor.Handle

	// Output returns the buffer written by the operator.
	Output() tensor.Handle

	forwardOp()
}

// BackwardOp propagates a node's output gradient into operand gradients.
type BackwardOp interface {
	// Name returns the operator name used in logs and errors.
	Name() string

	// OutputGrad returns the gradient buffer of the node itself.
	OutputGrad() tensor.Handle

	// InputGrads returns the operand gradient buffers. Untracked operands
	// are reported as tensor.NoHandle.
	InputGrads() []tensor.Handle

	backwardOp()
}

// Forward runs op against the buffers of arena.
func Forward[T tensor.Float](op ForwardOp, arena *tensor.Arena[T]) error {
	switch op := op.(type) {
	case *LeafForward:
		return nil
	case *AddForward:
		return forwardAdd(op, arena)
	case *SubForward:
		return forwardSub(op, arena)
	case *MatVecForward:
		return forwardMatVec(op, arena)
	default:
		panic(fmt.Sprintf("ops: unknown forward operator %T", op))
	}
}

// Backward runs op against the buffers of arena.
func Backward[T tensor.Float](op BackwardOp, arena *tensor.Arena[T]) error {
	switch op := op.(type) {
	case *LeafBackward:
		return nil
	case *AddBackward:
		return backwardAdd(op, arena)
	case *SubBackward:
		return backwardSub(op, arena)
	case *MatVecBackward:
		return backwardMatVec(op, arena)
	default:
		panic(fmt.Sprintf("ops: unknown backward operator %T", op))
	}
}

// borrows tracks the borrows taken by one operator invocation so they can be
// released together.
type borrows[T tensor.Float] struct {
	arena    *tensor.Arena[T]
	releases []func()
}

func newBorrows[T tensor.Float](arena *tensor.Arena[T]) *borrows[T] {
	return &borrows[T]{arena: arena, releases: make([]func(), 0, 4)}
}

func (b *borrows[T]) read(h tensor.Handle) (*tensor.Dense[T], error) {
	d, release, err := b.arena.Borrow(h)
	if err != nil {
		return nil, err
	}
	b.releases = append(b.releases, release)
	return d, nil
}

func (b *borrows[T]) write(h tensor.Handle) (*tensor.Dense[T], error) {
	d, release, err := b.arena.BorrowMut(h)
	if err != nil {
		return nil, err
	}
	b.releases = append(b.releases, release)
	return d, nil
}

func (b *borrows[T]) release() {
	for i := len(b.releases) - 1; i >= 0; i-- {
		b.releases[i]()
	}
	b.releases = b.releases[:0]
}

// accumulate adds alpha*src into the gradient buffer dst, if it exists.
// The borrow on dst is released before returning, so two operands sharing a
// gradient buffer each receive their contribution.
func accumulate[T tensor.Float](arena *tensor.Arena[T], alpha T, src *tensor.Dense[T], dst tensor.Handle) error {
	if !dst.Valid() {
		return nil
	}
	g, release, err := arena.BorrowMut(dst)
	if err != nil {
		return err
	}
	defer release()
	tensor.Axpy(alpha, src, g)
	return nil
}
