package autodiff_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/autodiff/ops"
	"github.com/born-ml/tapegrad/internal/tensor"
)

func full32(t *testing.T, shape tensor.Shape, v float32) *tensor.Dense[float32] {
	t.Helper()
	d, err := tensor.Full(shape, v)
	require.NoError(t, err)
	return d
}

func value(t *testing.T, e *autodiff.Expression[float32]) []float32 {
	t.Helper()
	v, err := e.Value()
	require.NoError(t, err)
	return v.Data()
}

func grad(t *testing.T, e *autodiff.Expression[float32]) []float32 {
	t.Helper()
	g, err := e.Grad()
	require.NoError(t, err)
	return g.Data()
}

func repeat(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// TestTape_Insert tests index assignment and operand validation.
func TestTape_Insert(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	assert.Equal(t, 0, tape.Len())

	a, err := tape.FromElem(tensor.Shape{2}, 1)
	require.NoError(t, err)
	b, err := tape.FromElem(tensor.Shape{2}, 2)
	require.NoError(t, err)
	c, err := a.Add(b)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Index())
	assert.Equal(t, 1, b.Index())
	assert.Equal(t, 2, c.Index())
	assert.Equal(t, 3, tape.Len())

	// Reuse an existing forward operator; only the operand list matters here.
	n, ok := tape.Node(2)
	require.True(t, ok)

	idx, err := tape.Insert(autodiff.Node{Forward: n.Forward, Operands: []int{0, 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	_, err = tape.Insert(autodiff.Node{Forward: n.Forward, Operands: []int{4}})
	var invalid *autodiff.InvalidOperandError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 4, invalid.Node)
	assert.Equal(t, 4, invalid.Operand)
	assert.Equal(t, 4, tape.Len(), "rejected node must not be inserted")
}

// TestTape_Leaves tests leaf creation with and without gradients.
func TestTape_Leaves(t *testing.T) {
	tape := autodiff.NewTape[float32]()

	plain, err := tape.FromElem(tensor.Shape{2, 3}, 7)
	require.NoError(t, err)
	assert.False(t, plain.GradExists())
	assert.True(t, plain.IsLeaf())
	assert.Equal(t, repeat(7, 6), value(t, plain))
	_, err = plain.Grad()
	assert.ErrorIs(t, err, autodiff.ErrNoGradient)

	tracked, err := tape.FromElemGrad(tensor.Shape{3}, -1)
	require.NoError(t, err)
	assert.True(t, tracked.GradExists())
	assert.Equal(t, repeat(0, 3), grad(t, tracked))

	src, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	fromDense, err := tape.FromDense(src, false)
	require.NoError(t, err)
	src.Set(100, 0, 0)
	assert.Equal(t, []float32{1, 2, 3, 4}, value(t, fromDense), "leaf must own a copy")

	_, err = tape.FromElem(tensor.Shape{3, 0}, 1)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
	assert.Equal(t, 3, tape.Len())
}

// TestTape_MutateAndReplay tests recomputation after a leaf update.
func TestTape_MutateAndReplay(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, err := tape.FromElem(tensor.Shape{3, 3}, 5)
	require.NoError(t, err)
	x, err := tape.FromElem(tensor.Shape{3}, 2)
	require.NoError(t, err)
	y, err := a.MatVec(x)
	require.NoError(t, err)

	require.NoError(t, tape.Forward())
	assert.Equal(t, []float32{30, 30, 30}, value(t, y))

	require.NoError(t, x.Assign(full32(t, tensor.Shape{3}, 0)))
	assert.Equal(t, []float32{30, 30, 30}, value(t, y), "no recompute before Forward")

	require.NoError(t, tape.Forward())
	assert.Equal(t, []float32{0, 0, 0}, value(t, y))
}

// TestTape_ForwardDeterminism tests that replays are bit-identical.
func TestTape_ForwardDeterminism(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	m, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	a, err := tape.FromDense(m, true)
	require.NoError(t, err)
	x, err := tape.FromElemGrad(tensor.Shape{3}, 1.0/3.0)
	require.NoError(t, err)
	b, err := tape.FromElem(tensor.Shape{2}, 0.7)
	require.NoError(t, err)
	ax, err := a.MatVec(x)
	require.NoError(t, err)
	y, err := ax.Sub(b)
	require.NoError(t, err)

	first := value(t, y)
	for i := 0; i < 5; i++ {
		require.NoError(t, tape.Forward())
		require.Equal(t, first, value(t, y))
	}
}

// TestExpression_ShapeMismatch tests the dimensional contracts.
func TestExpression_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		build func(tape *autodiff.Tape[float32]) error
		left  tensor.Shape
		right tensor.Shape
	}{
		{
			name: "add (3,)+(4,)",
			build: func(tape *autodiff.Tape[float32]) error {
				a, _ := tape.FromElemGrad(tensor.Shape{3}, 1)
				b, _ := tape.FromElem(tensor.Shape{4}, 1)
				_, err := a.Add(b)
				return err
			},
			left:  tensor.Shape{3},
			right: tensor.Shape{4},
		},
		{
			name: "sub (2,2)-(4,)",
			build: func(tape *autodiff.Tape[float32]) error {
				a, _ := tape.FromElem(tensor.Shape{2, 2}, 1)
				b, _ := tape.FromElem(tensor.Shape{4}, 1)
				_, err := a.Sub(b)
				return err
			},
			left:  tensor.Shape{2, 2},
			right: tensor.Shape{4},
		},
		{
			name: "matvec (3,4)·(3,)",
			build: func(tape *autodiff.Tape[float32]) error {
				m, _ := tape.FromElem(tensor.Shape{3, 4}, 1)
				v, _ := tape.FromElem(tensor.Shape{3}, 1)
				_, err := m.MatVec(v)
				return err
			},
			left:  tensor.Shape{3, 4},
			right: tensor.Shape{3},
		},
		{
			name: "matvec with vector as matrix",
			build: func(tape *autodiff.Tape[float32]) error {
				m, _ := tape.FromElem(tensor.Shape{4}, 1)
				v, _ := tape.FromElem(tensor.Shape{4}, 1)
				_, err := m.MatVec(v)
				return err
			},
			left:  tensor.Shape{4},
			right: tensor.Shape{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tape := autodiff.NewTape[float32]()
			err := tt.build(tape)

			var mismatch *tensor.ShapeMismatchError
			require.ErrorAs(t, err, &mismatch)
			if diff := cmp.Diff(tt.left, mismatch.Left); diff != "" {
				t.Errorf("Left shape mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.right, mismatch.Right); diff != "" {
				t.Errorf("Right shape mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 2, tape.Len(), "failed operation must not insert a node")
		})
	}
}

// TestExpression_GradientCorrectness tests y = A·x + b.
func TestExpression_GradientCorrectness(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, err := tape.FromElemGrad(tensor.Shape{3, 4}, 5)
	require.NoError(t, err)
	x, err := tape.FromElemGrad(tensor.Shape{4}, 3)
	require.NoError(t, err)
	b, err := tape.FromElemGrad(tensor.Shape{3}, -1)
	require.NoError(t, err)

	ax, err := a.MatVec(x)
	require.NoError(t, err)
	y, err := ax.Add(b)
	require.NoError(t, err)

	require.NoError(t, tape.Forward())
	assert.Equal(t, []float32{59, 59, 59}, value(t, y))

	require.NoError(t, y.Backward(full32(t, tensor.Shape{3}, 1)))

	assert.Equal(t, []float32{1, 1, 1}, grad(t, b))
	assert.Equal(t, []float32{15, 15, 15, 15}, grad(t, x))
	assert.Equal(t, repeat(3, 12), grad(t, a))
	assert.Equal(t, []float32{1, 1, 1}, grad(t, ax))
}

// TestExpression_BackwardIsRepeatable tests that a second backward pass
// yields the same gradients rather than doubling them.
func TestExpression_BackwardIsRepeatable(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElemGrad(tensor.Shape{2, 2}, 2)
	x, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
	y, err := a.MatVec(x)
	require.NoError(t, err)

	seed := full32(t, tensor.Shape{2}, 1)
	require.NoError(t, y.Backward(seed))
	first := grad(t, x)
	require.NoError(t, y.Backward(seed))
	assert.Equal(t, first, grad(t, x))
	assert.Equal(t, []float32{4, 4}, first)
}

// TestExpression_DiamondAccumulates tests that a leaf consumed by two
// branches receives the sum of both gradients.
func TestExpression_DiamondAccumulates(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	x, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
	m1, _ := tape.FromElem(tensor.Shape{3, 2}, 2)
	m2, _ := tape.FromElem(tensor.Shape{3, 2}, 5)

	left, err := m1.MatVec(x) // [4, 4, 4]
	require.NoError(t, err)
	right, err := m2.MatVec(x) // [10, 10, 10]
	require.NoError(t, err)
	y, err := left.Add(right)
	require.NoError(t, err)
	assert.Equal(t, []float32{14, 14, 14}, value(t, y))

	require.NoError(t, y.Backward(full32(t, tensor.Shape{3}, 1)))

	// grad_x = m1^T·1 + m2^T·1 = 6 + 15
	assert.Equal(t, []float32{21, 21}, grad(t, x))
}

// TestExpression_SelfAdd tests a value used twice by the same node.
func TestExpression_SelfAdd(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElemGrad(tensor.Shape{3}, 4)
	y, err := a.Add(a)
	require.NoError(t, err)
	assert.Equal(t, []float32{8, 8, 8}, value(t, y))

	require.NoError(t, y.Backward(full32(t, tensor.Shape{3}, 1)))
	assert.Equal(t, []float32{2, 2, 2}, grad(t, a))
}

// TestExpression_SubGradient tests the sign of the subtraction gradient.
func TestExpression_SubGradient(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElemGrad(tensor.Shape{2}, 5)
	b, _ := tape.FromElemGrad(tensor.Shape{2}, 3)
	y, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, value(t, y))

	seed, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2})
	require.NoError(t, y.Backward(seed))
	assert.Equal(t, []float32{1, 2}, grad(t, a))
	assert.Equal(t, []float32{-1, -2}, grad(t, b))
}

// TestExpression_PartialTracking tests that untracked operands are skipped.
func TestExpression_PartialTracking(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElem(tensor.Shape{2, 2}, 1)
	x, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
	c, _ := tape.FromElem(tensor.Shape{2}, 1)
	d, _ := tape.FromElem(tensor.Shape{2}, 1)

	untracked, err := c.Add(d)
	require.NoError(t, err)
	assert.False(t, untracked.GradExists())
	n, _ := tape.Node(untracked.Index())
	assert.Nil(t, n.Backward)

	ax, err := a.MatVec(x)
	require.NoError(t, err)
	assert.True(t, ax.GradExists())

	y, err := ax.Add(untracked)
	require.NoError(t, err)
	require.True(t, y.GradExists())

	require.NoError(t, y.Backward(full32(t, tensor.Shape{2}, 1)))
	assert.Equal(t, []float32{2, 2}, grad(t, x))
	_, err = a.Grad()
	assert.ErrorIs(t, err, autodiff.ErrNoGradient)
}

// TestExpression_BackwardErrors tests the backward preconditions.
func TestExpression_BackwardErrors(t *testing.T) {
	t.Run("not terminal", func(t *testing.T) {
		tape := autodiff.NewTape[float32]()
		a, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
		b, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
		sum, _ := a.Add(b)

		for _, e := range []*autodiff.Expression[float32]{a, b} {
			err := e.Backward(full32(t, tensor.Shape{2}, 1))
			var nt *autodiff.NotTerminalError
			require.ErrorAs(t, err, &nt)
			assert.Equal(t, e.Index(), nt.Index)
			assert.Equal(t, sum.Index(), nt.Last)
		}
		assert.Equal(t, []float32{0, 0}, grad(t, a), "failed backward must not touch gradients")
	})

	t.Run("no gradient", func(t *testing.T) {
		tape := autodiff.NewTape[float32]()
		a, _ := tape.FromElem(tensor.Shape{2}, 1)
		err := a.Backward(full32(t, tensor.Shape{2}, 1))
		assert.ErrorIs(t, err, autodiff.ErrNoGradient)
	})

	t.Run("seed shape", func(t *testing.T) {
		tape := autodiff.NewTape[float32]()
		a, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
		err := a.Backward(full32(t, tensor.Shape{3}, 1))
		var mismatch *tensor.ShapeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "backward", mismatch.Op)
	})

	t.Run("nil seed", func(t *testing.T) {
		tape := autodiff.NewTape[float32]()
		a, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
		b, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
		sum, _ := a.Add(b)
		err := sum.Backward(nil)
		assert.ErrorIs(t, err, tensor.ErrInvalidShape)
		assert.Equal(t, []float32{0, 0}, grad(t, a), "failed backward must not touch gradients")
	})

	t.Run("tape mismatch", func(t *testing.T) {
		t1 := autodiff.NewTape[float32]()
		t2 := autodiff.NewTape[float32]()
		a, _ := t1.FromElem(tensor.Shape{2}, 1)
		b, _ := t2.FromElem(tensor.Shape{2}, 1)
		_, err := a.Add(b)
		assert.ErrorIs(t, err, autodiff.ErrTapeMismatch)
	})
}

// TestExpression_BorrowConflicts tests runtime-checked exclusive access.
func TestExpression_BorrowConflicts(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	x, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
	c, _ := tape.FromElem(tensor.Shape{2}, 1)
	y, err := x.Add(c)
	require.NoError(t, err)

	err = x.Update(func(v *tensor.Dense[float32]) error {
		v.Fill(10)

		var conflict *tensor.BorrowConflictError
		require.ErrorAs(t, tape.Forward(), &conflict)
		assert.Equal(t, tensor.Exclusive, conflict.Held)

		require.ErrorAs(t, y.Backward(full32(t, tensor.Shape{2}, 1)), &conflict)

		_, err := x.Value()
		require.ErrorAs(t, err, &conflict)

		_, err = x.Add(c)
		require.ErrorAs(t, err, &conflict)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, tape.Len(), "conflicting operation must not insert a node")
	assert.Equal(t, []float32{2, 2}, value(t, y), "forward did not run while borrowed")

	require.NoError(t, tape.Forward())
	assert.Equal(t, []float32{11, 11}, value(t, y))
}

// TestExpression_UpdateErrors tests leaf-only mutation.
func TestExpression_UpdateErrors(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElem(tensor.Shape{2}, 1)
	b, _ := tape.FromElem(tensor.Shape{2}, 1)
	sum, _ := a.Add(b)

	assert.False(t, sum.IsLeaf())
	err := sum.Assign(full32(t, tensor.Shape{2}, 0))
	assert.ErrorIs(t, err, autodiff.ErrNotLeaf)

	err = a.Assign(full32(t, tensor.Shape{3}, 0))
	var mismatch *tensor.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)

	sentinel := errors.New("stop")
	assert.ErrorIs(t, a.Update(func(*tensor.Dense[float32]) error { return sentinel }), sentinel)
}

// TestTape_MemoryLimit tests that an operation exceeding the limit fails
// without changing the tape.
func TestTape_MemoryLimit(t *testing.T) {
	// Two float32 leaves of 4 elements with gradients = 64 bytes.
	tape := autodiff.NewTape[float32](autodiff.WithMemoryLimit(70))
	a, err := tape.FromElemGrad(tensor.Shape{4}, 1)
	require.NoError(t, err)
	b, err := tape.FromElemGrad(tensor.Shape{4}, 1)
	require.NoError(t, err)
	assert.Equal(t, 64, tape.Bytes())

	_, err = a.Add(b)
	assert.ErrorIs(t, err, tensor.ErrMemoryLimit)
	assert.Equal(t, 2, tape.Len())
	assert.Equal(t, 64, tape.Bytes())

	// An element count that would wrap around is an invalid shape, not a
	// zero-byte buffer slipping under the limit.
	_, err = tape.FromElem(tensor.Shape{1 << 32, 1 << 32}, 1)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)

	// Large valid shapes are rejected before their buffers are materialized.
	_, err = tape.FromElemGrad(tensor.Shape{1 << 40}, 1)
	assert.ErrorIs(t, err, tensor.ErrMemoryLimit)
	_, err = tape.FromElem(tensor.Shape{tensor.MaxElements}, 1)
	assert.ErrorIs(t, err, tensor.ErrMemoryLimit)

	assert.Equal(t, 2, tape.Len())
	assert.Equal(t, 64, tape.Bytes())
	require.NoError(t, tape.Validate())
}

// TestTape_Acyclicity tests that every operand precedes its node.
func TestTape_Acyclicity(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElemGrad(tensor.Shape{3, 2}, 1)
	x, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
	b, _ := tape.FromElem(tensor.Shape{3}, 1)
	ax, _ := a.MatVec(x)
	y, _ := ax.Add(b)
	z, err := y.Sub(ax)
	require.NoError(t, err)

	for i := 0; i < tape.Len(); i++ {
		n, ok := tape.Node(i)
		require.True(t, ok)
		for _, operand := range n.Operands {
			assert.Less(t, operand, i)
		}
	}

	n, _ := tape.Node(z.Index())
	if diff := cmp.Diff([]int{y.Index(), ax.Index()}, n.Operands); diff != "" {
		t.Errorf("operands mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, tape.Validate())

	_, ok := tape.Node(tape.Len())
	assert.False(t, ok)
}

// TestTape_LeafNoOp tests that leaf operators never touch buffers.
func TestTape_LeafNoOp(t *testing.T) {
	tape := autodiff.NewTape[float32]()
	a, _ := tape.FromElemGrad(tensor.Shape{2}, 3)
	require.NoError(t, a.Update(func(v *tensor.Dense[float32]) error {
		v.Set(9, 1)
		return nil
	}))

	n, _ := tape.Node(a.Index())
	_, isLeaf := n.Forward.(*ops.LeafForward)
	require.True(t, isLeaf)
	_, isLeafBw := n.Backward.(*ops.LeafBackward)
	require.True(t, isLeafBw)

	require.NoError(t, tape.Forward())
	assert.Equal(t, []float32{3, 9}, value(t, a))

	require.NoError(t, a.Backward(full32(t, tensor.Shape{2}, 0.5)))
	assert.Equal(t, []float32{0.5, 0.5}, grad(t, a), "a lone leaf receives the seed unchanged")
	assert.Equal(t, []float32{3, 9}, value(t, a))
}

// TestTape_Logging tests debug tracing through the configured logger.
func TestTape_Logging(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	tape := autodiff.NewTape[float64](autodiff.WithLogger(logger))
	a, _ := tape.FromElemGrad(tensor.Shape{2}, 1)
	b, _ := tape.FromElem(tensor.Shape{2}, 1)
	y, err := a.Add(b)
	require.NoError(t, err)
	require.NoError(t, tape.Forward())

	seed, _ := tensor.Full[float64](tensor.Shape{2}, 1)
	require.NoError(t, y.Backward(seed))

	messages := make([]string, 0, len(hook.AllEntries()))
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "node inserted")
	assert.Contains(t, messages, "forward evaluated")
	assert.Contains(t, messages, "forward replay")
	assert.Equal(t, "backward pass", hook.LastEntry().Message)
	assert.Equal(t, 2, hook.LastEntry().Data["index"])
}
