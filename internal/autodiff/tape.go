package autodiff

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/born-ml/tapegrad/internal/autodiff/ops"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Node is one tape entry: a forward operator, an optional backward operator
// and the indices of its operand nodes.
type Node struct {
	Forward  ops.ForwardOp
	Backward ops.BackwardOp // nil when nothing upstream tracks gradients
	Operands []int
}

// Tape records nodes in execution order and replays them forward or in
// reverse.
//
// Usage:
//
//	tape := NewTape[float64]()
//	x, _ := tape.FromElem(tensor.Shape{3}, 2)
//	// ... build expressions ...
//	_ = tape.Forward()
type Tape[T tensor.Float] struct {
	nodes  []Node
	arena  *tensor.Arena[T]
	logger logrus.FieldLogger
}

// NewTape creates an empty tape.
func NewTape[T tensor.Float](opts ...Option) *Tape[T] {
	o := &options{
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Tape[T]{
		nodes:  make([]Node, 0, 64), // Pre-allocate for common case
		arena:  tensor.NewArena[T](o.memoryLimit),
		logger: o.logger,
	}
}

// Insert appends a node and returns its index. Indices start at 0 and grow by
// one per insert. Every operand must refer to an earlier node.
func (t *Tape[T]) Insert(node Node) (int, error) {
	idx := len(t.nodes)
	for _, operand := range node.Operands {
		if operand < 0 || operand >= idx {
			return 0, &InvalidOperandError{Node: idx, Operand: operand}
		}
	}
	t.nodes = append(t.nodes, node)

	t.logger.WithFields(logrus.Fields{
		"index": idx,
		"op":    node.Forward.Name(),
	}).Debug("node inserted")
	return idx, nil
}

// FromElem creates a leaf filled with value. The leaf does not track
// gradients.
func (t *Tape[T]) FromElem(shape tensor.Shape, value T) (*Expression[T], error) {
	return t.fromElem(shape, value, false)
}

// FromElemGrad creates a leaf filled with value and a zeroed gradient buffer.
func (t *Tape[T]) FromElemGrad(shape tensor.Shape, value T) (*Expression[T], error) {
	return t.fromElem(shape, value, true)
}

func (t *Tape[T]) fromElem(shape tensor.Shape, value T, requiresGrad bool) (*Expression[T], error) {
	if err := t.reserve(shape, requiresGrad); err != nil {
		return nil, err
	}
	d, err := tensor.Full(shape, value)
	if err != nil {
		return nil, err
	}
	return t.leaf(d, requiresGrad)
}

// reserve checks that a value of shape, plus its gradient when withGrad is
// set, fits under the memory limit before either buffer is materialized.
func (t *Tape[T]) reserve(shape tensor.Shape, withGrad bool) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	size := shape.NumElements() * tensor.DataTypeOf[T]().Size()
	if withGrad {
		return t.arena.Fits(size, size)
	}
	return t.arena.Fits(size)
}

// FromDense creates a leaf holding a copy of d.
func (t *Tape[T]) FromDense(d *tensor.Dense[T], requiresGrad bool) (*Expression[T], error) {
	return t.leaf(d.Clone(), requiresGrad)
}

func (t *Tape[T]) leaf(d *tensor.Dense[T], requiresGrad bool) (*Expression[T], error) {
	bufs := []*tensor.Dense[T]{d}
	if requiresGrad {
		bufs = append(bufs, tensor.ZerosLike(d))
	}
	mark := t.arena.Len()
	handles, err := t.arena.Alloc(bufs...)
	if err != nil {
		return nil, err
	}

	node := Node{Forward: ops.NewLeafForward(handles[0])}
	grad := tensor.NoHandle
	if requiresGrad {
		grad = handles[1]
		node.Backward = ops.NewLeafBackward(grad)
	}

	idx, err := t.Insert(node)
	if err != nil {
		t.arena.Rollback(mark)
		return nil, err
	}
	return &Expression[T]{tape: t, index: idx, value: handles[0], grad: grad}, nil
}

// Forward recomputes every node in ascending index order. With unchanged
// leaves the result is bit-identical to the previous pass.
//
// Forward fails without touching any buffer if a buffer is currently
// borrowed, e.g. from inside Expression.Update.
func (t *Tape[T]) Forward() error {
	if err := t.arena.CheckIdle(); err != nil {
		return err
	}
	t.logger.WithField("nodes", len(t.nodes)).Debug("forward replay")

	for i := range t.nodes {
		if err := ops.Forward(t.nodes[i].Forward, t.arena); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of recorded nodes.
func (t *Tape[T]) Len() int {
	return len(t.nodes)
}

// Node returns the node at index i.
func (t *Tape[T]) Node(i int) (Node, bool) {
	if i < 0 || i >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Bytes returns the memory held by all values and gradients on the tape.
func (t *Tape[T]) Bytes() int {
	return t.arena.Bytes()
}

// Validate re-checks the structural invariants of the tape and reports every
// violation:
//   - each operand index is strictly less than its node's index
//   - each gradient buffer has the shape of its value buffer
func (t *Tape[T]) Validate() error {
	var err error
	for i, n := range t.nodes {
		for _, operand := range n.Operands {
			if operand < 0 || operand >= i {
				err = multierr.Append(err, &InvalidOperandError{Node: i, Operand: operand})
			}
		}
		if n.Backward == nil {
			continue
		}
		value, verr := t.arena.Shape(n.Forward.Output())
		grad, gerr := t.arena.Shape(n.Backward.OutputGrad())
		if verr != nil || gerr != nil {
			err = multierr.Append(err, multierr.Combine(verr, gerr))
			continue
		}
		err = multierr.Append(err, tensor.CheckElementwise("gradient", value, grad))
	}
	return err
}
