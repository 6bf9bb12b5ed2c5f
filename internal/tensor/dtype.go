// Package tensor provides the dense numeric buffers, the handle arena and the
// BLAS-backed kernels used by the tapegrad autodiff engine.
package tensor

// Float is the constraint for tensor element types.
// The element type is fixed per graph instantiation.
type Float interface {
	float32 | float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// DataTypeOf infers DataType from a generic type T.
func DataTypeOf[T Float]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	default:
		return Float64
	}
}
