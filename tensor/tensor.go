// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Type aliases for public API

// Float is the constraint for tensor element types: float32 or float64.
type Float = tensor.Float

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// Dense is an owned n-dimensional array.
type Dense[T Float] = tensor.Dense[T]

// ShapeMismatchError reports operands whose shapes violate an operator's
// dimensional contract.
type ShapeMismatchError = tensor.ShapeMismatchError

// BorrowConflictError reports conflicting access to a tape buffer.
type BorrowConflictError = tensor.BorrowConflictError

// Common errors.
var (
	ErrInvalidShape = tensor.ErrInvalidShape
	ErrMemoryLimit  = tensor.ErrMemoryLimit
)

// Zeros creates a tensor filled with zeros.
func Zeros[T Float](shape Shape) (*Dense[T], error) {
	return tensor.Zeros[T](shape)
}

// Full creates a tensor filled with value.
//
// Example:
//
//	t, _ := tensor.Full[float32](tensor.Shape{3, 3}, 5)
func Full[T Float](shape Shape, value T) (*Dense[T], error) {
	return tensor.Full(shape, value)
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice[T Float](data []T, shape Shape) (*Dense[T], error) {
	return tensor.FromSlice(data, shape)
}
