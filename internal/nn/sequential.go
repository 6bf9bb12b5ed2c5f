package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
type Sequential[T tensor.Float] struct {
	modules []Module[T]
}

// NewSequential creates a new Sequential container.
func NewSequential[T tensor.Float](modules ...Module[T]) *Sequential[T] {
	return &Sequential[T]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[T]) Forward(input *autodiff.Expression[T]) (*autodiff.Expression[T], error) {
	output := input
	for i, module := range s.modules {
		var err error
		output, err = module.Forward(output)
		if err != nil {
			return nil, errors.Wrapf(err, "module %d", i)
		}
	}
	return output, nil
}

// Parameters returns the parameters of every module, in order.
func (s *Sequential[T]) Parameters() []*autodiff.Expression[T] {
	params := make([]*autodiff.Expression[T], 0, 2*len(s.modules))
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Len returns the number of modules.
func (s *Sequential[T]) Len() int {
	return len(s.modules)
}
