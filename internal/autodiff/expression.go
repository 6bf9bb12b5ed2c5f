package autodiff

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/tapegrad/internal/autodiff/ops"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Expression is a handle to the value, and optional gradient, of one node on
// a Tape. Operator methods compute their result immediately, record a node
// and return a new Expression.
//
// Expressions are cheap to copy; the buffers they refer to are owned by the
// tape.
type Expression[T tensor.Float] struct {
	tape  *Tape[T]
	index int
	value tensor.Handle
	grad  tensor.Handle // NoHandle when gradients are not tracked
}

// Tape returns the tape the expression was recorded on.
func (e *Expression[T]) Tape() *Tape[T] {
	return e.tape
}

// Index returns the index of the expression's node on the tape.
func (e *Expression[T]) Index() int {
	return e.index
}

// Shape returns the shape of the expression's value.
func (e *Expression[T]) Shape() tensor.Shape {
	s, err := e.tape.arena.Shape(e.value)
	if err != nil {
		// Handles of a live expression are never rolled back.
		panic(err)
	}
	return s.Clone()
}

// GradExists reports whether a gradient buffer is attached.
func (e *Expression[T]) GradExists() bool {
	return e.grad.Valid()
}

// IsLeaf reports whether the expression was created directly from the tape
// rather than by an operator.
func (e *Expression[T]) IsLeaf() bool {
	_, ok := e.tape.nodes[e.index].Forward.(*ops.LeafForward)
	return ok
}

// Add returns e + rhs. Shapes must be identical.
func (e *Expression[T]) Add(rhs *Expression[T]) (*Expression[T], error) {
	if err := e.sameTape(rhs); err != nil {
		return nil, err
	}
	shape := e.Shape()
	if err := tensor.CheckElementwise("add", shape, rhs.Shape()); err != nil {
		return nil, err
	}
	return e.tape.apply(shape, []*Expression[T]{e, rhs}, func(out, outGrad tensor.Handle) (ops.ForwardOp, ops.BackwardOp) {
		fw := ops.NewAddForward(e.value, rhs.value, out)
		if !outGrad.Valid() {
			return fw, nil
		}
		return fw, ops.NewAddBackward(outGrad, e.grad, rhs.grad)
	})
}

// Sub returns e - rhs. Shapes must be identical.
func (e *Expression[T]) Sub(rhs *Expression[T]) (*Expression[T], error) {
	if err := e.sameTape(rhs); err != nil {
		return nil, err
	}
	shape := e.Shape()
	if err := tensor.CheckElementwise("sub", shape, rhs.Shape()); err != nil {
		return nil, err
	}
	return e.tape.apply(shape, []*Expression[T]{e, rhs}, func(out, outGrad tensor.Handle) (ops.ForwardOp, ops.BackwardOp) {
		fw := ops.NewSubForward(e.value, rhs.value, out)
		if !outGrad.Valid() {
			return fw, nil
		}
		return fw, ops.NewSubBackward(outGrad, e.grad, rhs.grad)
	})
}

// MatVec returns the matrix-vector product e · v. e must be a matrix whose
// column count equals the length of the vector v.
func (e *Expression[T]) MatVec(v *Expression[T]) (*Expression[T], error) {
	if err := e.sameTape(v); err != nil {
		return nil, err
	}
	mshape, vshape := e.Shape(), v.Shape()
	if err := tensor.CheckMatVec("matvec", mshape, vshape); err != nil {
		return nil, err
	}
	return e.tape.apply(tensor.Shape{mshape[0]}, []*Expression[T]{e, v}, func(out, outGrad tensor.Handle) (ops.ForwardOp, ops.BackwardOp) {
		fw := ops.NewMatVecForward(e.value, v.value, out)
		if !outGrad.Valid() {
			return fw, nil
		}
		return fw, ops.NewMatVecBackward(e.value, v.value, outGrad, e.grad, v.grad)
	})
}

// Backward seeds this expression's gradient with seed and propagates it to
// every node on the tape in reverse order. Only the last node inserted into
// the tape may start a backward pass. Gradients from earlier passes are
// cleared first.
func (e *Expression[T]) Backward(seed *tensor.Dense[T]) error {
	return e.tape.backward(e.index, seed)
}

// Value returns a copy of the expression's current value.
func (e *Expression[T]) Value() (*tensor.Dense[T], error) {
	return e.tape.snapshot(e.value)
}

// Grad returns a copy of the expression's gradient.
func (e *Expression[T]) Grad() (*tensor.Dense[T], error) {
	if !e.GradExists() {
		return nil, ErrNoGradient
	}
	return e.tape.snapshot(e.grad)
}

// Update gives fn exclusive access to a leaf's value for in-place mutation.
// Call Tape.Forward afterwards to propagate the change. Any other access to
// the buffer while fn runs, including Tape.Forward, fails with a
// *tensor.BorrowConflictError.
func (e *Expression[T]) Update(fn func(value *tensor.Dense[T]) error) error {
	if !e.IsLeaf() {
		return errors.Wrapf(ErrNotLeaf, "update node %d", e.index)
	}
	d, release, err := e.tape.arena.BorrowMut(e.value)
	if err != nil {
		return err
	}
	defer release()
	return fn(d)
}

// Assign overwrites a leaf's value with src. Shapes must be identical.
func (e *Expression[T]) Assign(src *tensor.Dense[T]) error {
	return e.Update(func(value *tensor.Dense[T]) error {
		return value.CopyFrom(src)
	})
}

func (e *Expression[T]) sameTape(other *Expression[T]) error {
	if e.tape != other.tape {
		return ErrTapeMismatch
	}
	return nil
}

// apply allocates the output (and gradient, when any operand tracks one) of
// a new node, builds its operators with build, runs the forward operator and
// records the node. On failure the allocations are rolled back and nothing
// is recorded.
func (t *Tape[T]) apply(
	shape tensor.Shape,
	operands []*Expression[T],
	build func(out, outGrad tensor.Handle) (ops.ForwardOp, ops.BackwardOp),
) (*Expression[T], error) {
	tracked := false
	indices := make([]int, len(operands))
	for i, op := range operands {
		indices[i] = op.index
		tracked = tracked || op.GradExists()
	}

	if err := t.reserve(shape, tracked); err != nil {
		return nil, err
	}
	out, err := tensor.Zeros[T](shape)
	if err != nil {
		return nil, err
	}
	bufs := []*tensor.Dense[T]{out}
	if tracked {
		bufs = append(bufs, tensor.ZerosLike(out))
	}

	mark := t.arena.Len()
	handles, err := t.arena.Alloc(bufs...)
	if err != nil {
		return nil, err
	}
	grad := tensor.NoHandle
	if tracked {
		grad = handles[1]
	}

	fw, bw := build(handles[0], grad)
	if err := ops.Forward(fw, t.arena); err != nil {
		t.arena.Rollback(mark)
		return nil, err
	}

	idx, err := t.Insert(Node{Forward: fw, Backward: bw, Operands: indices})
	if err != nil {
		t.arena.Rollback(mark)
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"index":   idx,
		"op":      fw.Name(),
		"tracked": tracked,
	}).Debug("forward evaluated")
	return &Expression[T]{tape: t, index: idx, value: handles[0], grad: grad}, nil
}

func (t *Tape[T]) snapshot(h tensor.Handle) (*tensor.Dense[T], error) {
	d, release, err := t.arena.Borrow(h)
	if err != nil {
		return nil, err
	}
	defer release()
	return d.Clone(), nil
}
