package autodiff

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrNoGradient   = errors.New("expression does not track gradients")
	ErrNotLeaf      = errors.New("expression is not a leaf")
	ErrTapeMismatch = errors.New("expressions belong to different tapes")
	ErrEmptyTape    = errors.New("tape is empty")
)

// NotTerminalError is returned when Backward is called on an expression that
// is not the last node inserted into its tape.
type NotTerminalError struct {
	Index int // Offending node
	Last  int // Index of the terminal node
}

// Error implements the error interface.
func (e *NotTerminalError) Error() string {
	return fmt.Sprintf("backward from node %d: only the terminal node %d may seed a backward pass", e.Index, e.Last)
}

// InvalidOperandError reports a node whose operand index does not precede
// the node itself.
type InvalidOperandError struct {
	Node    int
	Operand int
}

// Error implements the error interface.
func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("node %d: operand %d must be an earlier node", e.Node, e.Operand)
}
