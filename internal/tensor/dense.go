package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dense is an owned, contiguous, row-major n-dimensional array.
//
// Example:
//
//	a := tensor.Full[float32](tensor.Shape{3, 3}, 5)
//	a.At(1, 2) // 5
type Dense[T Float] struct {
	shape  Shape
	stride []int
	data   []T
}

// Zeros creates a tensor filled with zeros.
func Zeros[T Float](shape Shape) (*Dense[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Dense[T]{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		data:   make([]T, shape.NumElements()),
	}, nil
}

// Full creates a tensor filled with a specific value.
func Full[T Float](shape Shape, value T) (*Dense[T], error) {
	t, err := Zeros[T](shape)
	if err != nil {
		return nil, err
	}
	t.Fill(value)
	return t, nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T Float](data []T, shape Shape) (*Dense[T], error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Wrapf(ErrInvalidShape, "shape %v requires %d elements, but got %d",
			shape, shape.NumElements(), len(data))
	}
	t, err := Zeros[T](shape)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}

// ZerosLike creates a zero tensor with the same shape as t.
func ZerosLike[T Float](t *Dense[T]) *Dense[T] {
	return &Dense[T]{
		shape:  t.shape.Clone(),
		stride: append([]int(nil), t.stride...),
		data:   make([]T, len(t.data)),
	}
}

// Shape returns the tensor's shape.
func (t *Dense[T]) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Dense[T]) DType() DataType {
	return DataTypeOf[T]()
}

// NumElements returns the total number of elements.
func (t *Dense[T]) NumElements() int {
	return len(t.data)
}

// ByteSize returns the total memory size in bytes.
func (t *Dense[T]) ByteSize() int {
	return len(t.data) * t.DType().Size()
}

// Data returns the underlying storage.
// WARNING: Direct access to underlying memory. Writes are visible to every
// holder of this tensor.
func (t *Dense[T]) Data() []T {
	return t.data
}

// At returns the element at the given coordinates.
// Panics if the coordinates are out of range, like a slice index.
func (t *Dense[T]) At(idx ...int) T {
	return t.data[t.offset(idx)]
}

// Set stores v at the given coordinates.
func (t *Dense[T]) Set(v T, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Dense[T]) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of size %d", x, i, t.shape[i]))
		}
		off += x * t.stride[i]
	}
	return off
}

// Fill sets every element to value.
func (t *Dense[T]) Fill(value T) {
	for i := range t.data {
		t.data[i] = value
	}
}

// Clone returns a deep copy.
func (t *Dense[T]) Clone() *Dense[T] {
	c := ZerosLike(t)
	copy(c.data, t.data)
	return c
}

// CopyFrom overwrites t with the contents of src. Shapes must be identical.
func (t *Dense[T]) CopyFrom(src *Dense[T]) error {
	if err := CheckElementwise("copy", t.shape, src.shape); err != nil {
		return err
	}
	Copy(src, t)
	return nil
}

// String formats the tensor with nested brackets, one level per dimension.
func (t *Dense[T]) String() string {
	var sb strings.Builder
	if len(t.shape) == 0 {
		fmt.Fprintf(&sb, "%v", t.data[0])
		return sb.String()
	}
	t.format(&sb, 0, 0)
	return sb.String()
}

func (t *Dense[T]) format(sb *strings.Builder, dim, off int) {
	sb.WriteByte('[')
	for i := 0; i < t.shape[dim]; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if dim == len(t.shape)-1 {
			fmt.Fprintf(sb, "%v", t.data[off+i])
			continue
		}
		t.format(sb, dim+1, off+i*t.stride[dim])
	}
	sb.WriteByte(']')
}
