package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Kernels in this file dispatch to gonum's blas32 or blas64 depending on the
// element type. Callers validate shapes first; gonum panics on mismatched
// lengths.

func vec32(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}

func vec64(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Inc: 1, Data: data}
}

func general32(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

func general64(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// Copy copies src into dst: dst = src.
func Copy[T Float](src, dst *Dense[T]) {
	switch s := any(src.data).(type) {
	case []float32:
		blas32.Copy(vec32(s), vec32(any(dst.data).([]float32)))
	case []float64:
		blas64.Copy(vec64(s), vec64(any(dst.data).([]float64)))
	}
}

// Axpy accumulates a scaled tensor: y += alpha * x.
func Axpy[T Float](alpha T, x, y *Dense[T]) {
	switch xs := any(x.data).(type) {
	case []float32:
		blas32.Axpy(float32(alpha), vec32(xs), vec32(any(y.data).([]float32)))
	case []float64:
		blas64.Axpy(float64(alpha), vec64(xs), vec64(any(y.data).([]float64)))
	}
}

// Scale multiplies every element of x by alpha in place.
func Scale[T Float](alpha T, x *Dense[T]) {
	switch xs := any(x.data).(type) {
	case []float32:
		blas32.Scal(float32(alpha), vec32(xs))
	case []float64:
		blas64.Scal(float64(alpha), vec64(xs))
	}
}

// AddInto computes dst = a + b. dst must not alias b.
func AddInto[T Float](dst, a, b *Dense[T]) {
	Copy(a, dst)
	Axpy(1, b, dst)
}

// SubInto computes dst = a - b. dst must not alias b.
func SubInto[T Float](dst, a, b *Dense[T]) {
	Copy(a, dst)
	Axpy(-1, b, dst)
}

// Gemv computes y = alpha * op(m) * x + beta * y where m is a rank-2 tensor
// and op(m) is m or its transpose. The transpose is a view over the same
// storage; no transposed copy is formed.
//
// With beta == 0 the previous contents of y are ignored.
func Gemv[T Float](transpose bool, alpha T, m, x *Dense[T], beta T, y *Dense[T]) {
	tr := blas.NoTrans
	if transpose {
		tr = blas.Trans
	}
	rows, cols := m.shape[0], m.shape[1]
	switch ms := any(m.data).(type) {
	case []float32:
		blas32.Gemv(tr, float32(alpha), general32(rows, cols, ms),
			vec32(any(x.data).([]float32)), float32(beta), vec32(any(y.data).([]float32)))
	case []float64:
		blas64.Gemv(tr, float64(alpha), general64(rows, cols, ms),
			vec64(any(x.data).([]float64)), float64(beta), vec64(any(y.data).([]float64)))
	}
}

// Ger accumulates a scaled outer product into the rank-2 tensor m:
// m += alpha * x ⊗ y, with x as a column and y as a row.
func Ger[T Float](alpha T, x, y, m *Dense[T]) {
	rows, cols := m.shape[0], m.shape[1]
	switch xs := any(x.data).(type) {
	case []float32:
		blas32.Ger(float32(alpha), vec32(xs), vec32(any(y.data).([]float32)),
			general32(rows, cols, any(m.data).([]float32)))
	case []float64:
		blas64.Ger(float64(alpha), vec64(xs), vec64(any(y.data).([]float64)),
			general64(rows, cols, any(m.data).([]float64)))
	}
}
