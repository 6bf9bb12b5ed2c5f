package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrInvalidShape = errors.New("invalid shape")
	ErrMemoryLimit  = errors.New("arena memory limit exceeded")
	ErrBadHandle    = errors.New("unknown buffer handle")
)

// ShapeMismatchError reports operands whose shapes violate an operator's
// dimensional contract.
type ShapeMismatchError struct {
	Op    string // Operation that rejected the shapes (e.g. "add", "matvec")
	Left  Shape
	Right Shape
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape mismatch %v vs %v", e.Op, e.Left, e.Right)
}

// BorrowKind describes how a buffer is being accessed.
type BorrowKind int

// Borrow kinds.
const (
	Unborrowed BorrowKind = iota
	Shared
	Exclusive
)

// String returns a human-readable name for the borrow kind.
func (k BorrowKind) String() string {
	switch k {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// BorrowConflictError is returned when a buffer access conflicts with an
// outstanding borrow of the same buffer.
type BorrowConflictError struct {
	Handle    Handle
	Held      BorrowKind
	Requested BorrowKind
}

// Error implements the error interface.
func (e *BorrowConflictError) Error() string {
	return fmt.Sprintf("buffer %d: %s borrow requested while %s borrow is outstanding",
		e.Handle, e.Requested, e.Held)
}
