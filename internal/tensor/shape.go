package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// MaxElements is the largest element count of a valid shape. It keeps the
// byte size of a buffer representable as an int for every element type.
const MaxElements = math.MaxInt / 8

// Validate checks if the shape is valid: all dimensions > 0 and at most
// MaxElements elements in total.
func (s Shape) Validate() error {
	n := 1
	for i, dim := range s {
		if dim <= 0 {
			return errors.Wrapf(ErrInvalidShape, "dimension at index %d is %d (must be > 0)", i, dim)
		}
		if n > MaxElements/dim {
			return errors.Wrapf(ErrInvalidShape, "shape %v exceeds %d elements", s, MaxElements)
		}
		n *= dim
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// CheckElementwise verifies that two shapes are identical, as required by
// element-wise operators. There is no broadcasting.
func CheckElementwise(op string, a, b Shape) error {
	if !a.Equal(b) {
		return &ShapeMismatchError{Op: op, Left: a.Clone(), Right: b.Clone()}
	}
	return nil
}

// CheckMatVec verifies that m is a matrix, v is a vector and the matrix
// column count equals the vector length.
//
//	(3, 4) · (4,) → ok
//	(3, 4) · (3,) → ShapeMismatchError
func CheckMatVec(op string, m, v Shape) error {
	if m.Rank() != 2 || v.Rank() != 1 || m[1] != v[0] {
		return &ShapeMismatchError{Op: op, Left: m.Clone(), Right: v.Clone()}
	}
	return nil
}
