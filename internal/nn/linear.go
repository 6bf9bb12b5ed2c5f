package nn

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Linear implements a fully connected layer on a single vector.
//
// Performs the transformation: y = W·x + b
// where:
//   - x is the input vector with shape [in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output vector with shape [out_features]
//
// Weights use Xavier/Glorot initialization; biases start at zero.
type Linear[T tensor.Float] struct {
	inFeatures  int
	outFeatures int
	weight      *autodiff.Expression[T]
	bias        *autodiff.Expression[T]
}

// NewLinear records the weight and bias of a new Linear layer as tracked
// leaves on tape.
func NewLinear[T tensor.Float](tape *autodiff.Tape[T], inFeatures, outFeatures int, rng *rand.Rand) (*Linear[T], error) {
	w, err := Xavier[T](inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	if err != nil {
		return nil, errors.Wrap(err, "linear weight")
	}
	weight, err := tape.FromDense(w, true)
	if err != nil {
		return nil, errors.Wrap(err, "linear weight")
	}
	bias, err := tape.FromElemGrad(tensor.Shape{outFeatures}, 0)
	if err != nil {
		return nil, errors.Wrap(err, "linear bias")
	}

	return &Linear[T]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
	}, nil
}

// Forward records y = W·x + b.
func (l *Linear[T]) Forward(input *autodiff.Expression[T]) (*autodiff.Expression[T], error) {
	wx, err := l.weight.MatVec(input)
	if err != nil {
		return nil, err
	}
	return wx.Add(l.bias)
}

// Parameters returns [weight, bias].
func (l *Linear[T]) Parameters() []*autodiff.Expression[T] {
	return []*autodiff.Expression[T]{l.weight, l.bias}
}

// Weight returns the weight leaf.
func (l *Linear[T]) Weight() *autodiff.Expression[T] {
	return l.weight
}

// Bias returns the bias leaf.
func (l *Linear[T]) Bias() *autodiff.Expression[T] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[T]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[T]) OutFeatures() int {
	return l.outFeatures
}
