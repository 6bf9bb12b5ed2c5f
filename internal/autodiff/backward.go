package autodiff

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/tapegrad/internal/autodiff/ops"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// backward runs a reverse pass seeded at node index.
//
// Algorithm:
//  1. Check that index is the terminal node, that it tracks gradients and
//     that seed has its shape
//  2. Zero every gradient buffer on the tape
//  3. Copy seed into the terminal gradient
//  4. Walk nodes in reverse, each backward operator accumulating into its
//     operands' gradients
//
// Steps 2-4 only start once every check, including the borrow check, passed.
func (t *Tape[T]) backward(index int, seed *tensor.Dense[T]) error {
	if len(t.nodes) == 0 {
		return ErrEmptyTape
	}
	last := len(t.nodes) - 1
	if index != last {
		return &NotTerminalError{Index: index, Last: last}
	}
	terminal := t.nodes[last].Backward
	if terminal == nil {
		return ErrNoGradient
	}
	if seed == nil {
		return errors.Wrap(tensor.ErrInvalidShape, "backward: nil seed")
	}
	shape, err := t.arena.Shape(terminal.OutputGrad())
	if err != nil {
		return err
	}
	if err := tensor.CheckElementwise("backward", shape, seed.Shape()); err != nil {
		return err
	}
	if err := t.arena.CheckIdle(); err != nil {
		return err
	}

	t.logger.WithFields(logrus.Fields{
		"index": index,
		"nodes": len(t.nodes),
	}).Debug("backward pass")

	if err := t.zeroGrads(); err != nil {
		return err
	}
	if err := t.seed(terminal.OutputGrad(), seed); err != nil {
		return err
	}

	for i := last; i >= 0; i-- {
		bw := t.nodes[i].Backward
		if bw == nil {
			continue
		}
		if err := ops.Backward(bw, t.arena); err != nil {
			return err
		}
	}
	return nil
}

// zeroGrads clears every gradient buffer so that a backward pass does not
// depend on earlier ones.
func (t *Tape[T]) zeroGrads() error {
	for i := range t.nodes {
		bw := t.nodes[i].Backward
		if bw == nil {
			continue
		}
		g, release, err := t.arena.BorrowMut(bw.OutputGrad())
		if err != nil {
			return err
		}
		g.Fill(0)
		release()
	}
	return nil
}

func (t *Tape[T]) seed(h tensor.Handle, seed *tensor.Dense[T]) error {
	g, release, err := t.arena.BorrowMut(h)
	if err != nil {
		return err
	}
	defer release()
	tensor.Copy(seed, g)
	return nil
}
