package ops

import "github.com/born-ml/tapegrad/internal/tensor"

// MatVecForward computes a matrix-vector product: output = M · v,
// with M of shape (rows, cols), v of shape (cols,) and output of shape (rows,).
type MatVecForward struct {
	Matrix, Vector tensor.Handle
	Out            tensor.Handle
}

// NewMatVecForward creates a new MatVecForward.
func NewMatVecForward(matrix, vector, out tensor.Handle) *MatVecForward {
	return &MatVecForward{Matrix: matrix, Vector: vector, Out: out}
}

// Name returns "matvec".
func (op *MatVecForward) Name() string { return "matvec" }

// Inputs returns [matrix, vector].
func (op *MatVecForward) Inputs() []tensor.Handle { return []tensor.Handle{op.Matrix, op.Vector} }

// Output returns the product buffer.
func (op *MatVecForward) Output() tensor.Handle { return op.Out }

func (*MatVecForward) forwardOp() {}

// MatVecBackward propagates the gradient of a matrix-vector product.
//
// Backward pass:
//   - d(M·v)/dM = outputGrad ⊗ v (outer product, outputGrad as a column)
//   - d(M·v)/dv = M^T · outputGrad
//
// The transposed product reuses the forward kernel on a transposed view of
// M's storage.
type MatVecBackward struct {
	// Values captured from the forward pass.
	Matrix, Vector tensor.Handle

	OutGrad                tensor.Handle
	MatrixGrad, VectorGrad tensor.Handle
}

// NewMatVecBackward creates a new MatVecBackward.
func NewMatVecBackward(matrix, vector, outGrad, matrixGrad, vectorGrad tensor.Handle) *MatVecBackward {
	return &MatVecBackward{
		Matrix:     matrix,
		Vector:     vector,
		OutGrad:    outGrad,
		MatrixGrad: matrixGrad,
		VectorGrad: vectorGrad,
	}
}

// Name returns "matvec".
func (op *MatVecBackward) Name() string { return "matvec" }

// OutputGrad returns the gradient buffer of the product.
func (op *MatVecBackward) OutputGrad() tensor.Handle { return op.OutGrad }

// InputGrads returns [grad_matrix, grad_vector].
func (op *MatVecBackward) InputGrads() []tensor.Handle {
	return []tensor.Handle{op.MatrixGrad, op.VectorGrad}
}

func (*MatVecBackward) backwardOp() {}

func forwardMatVec[T tensor.Float](op *MatVecForward, arena *tensor.Arena[T]) error {
	b := newBorrows(arena)
	defer b.release()

	m, err := b.read(op.Matrix)
	if err != nil {
		return err
	}
	v, err := b.read(op.Vector)
	if err != nil {
		return err
	}
	out, err := b.write(op.Out)
	if err != nil {
		return err
	}
	tensor.Gemv(false, 1, m, v, 0, out)
	return nil
}

func backwardMatVec[T tensor.Float](op *MatVecBackward, arena *tensor.Arena[T]) error {
	b := newBorrows(arena)
	defer b.release()

	g, err := b.read(op.OutGrad)
	if err != nil {
		return err
	}

	if op.MatrixGrad.Valid() {
		v, err := b.read(op.Vector)
		if err != nil {
			return err
		}
		mg, err := b.write(op.MatrixGrad)
		if err != nil {
			return err
		}
		// grad_M += outputGrad ⊗ v
		tensor.Ger(1, g, v, mg)
	}

	if op.VectorGrad.Valid() {
		m, err := b.read(op.Matrix)
		if err != nil {
			return err
		}
		vg, err := b.write(op.VectorGrad)
		if err != nil {
			return err
		}
		// grad_v += M^T · outputGrad
		tensor.Gemv(true, 1, m, g, 1, vg)
	}
	return nil
}
