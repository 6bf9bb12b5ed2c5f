package optim

import (
	"math"

	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	adam := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//	for step := 0; step < steps; step++ {
//	    _ = loss.Backward(seed)
//	    _ = adam.Step()
//	    _ = tape.Forward()
//	}
type Adam[T tensor.Float] struct {
	params []*autodiff.Expression[T]
	lr     T
	beta1  T
	beta2  T
	eps    T
	t      int                             // Timestep for bias correction
	m      map[paramKey[T]]*tensor.Dense[T] // First moment estimates
	v      map[paramKey[T]]*tensor.Dense[T] // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer over tracked leaf expressions.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam[T tensor.Float](params []*autodiff.Expression[T], config AdamConfig) *Adam[T] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[T]{
		params: uniqueParams(params),
		lr:     T(config.LR),
		beta1:  T(config.Betas[0]),
		beta2:  T(config.Betas[1]),
		eps:    T(config.Eps),
		m:      make(map[paramKey[T]]*tensor.Dense[T]),
		v:      make(map[paramKey[T]]*tensor.Dense[T]),
	}
}

// Step performs a single optimization step using the Adam algorithm.
//
// All parameters are checked before any of them is modified; a rejected
// step does not advance the timestep.
func (a *Adam[T]) Step() error {
	for _, p := range a.params {
		if err := checkParam(p); err != nil {
			return err
		}
	}

	a.t++
	biasCorrection1 := T(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := T(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, p := range a.params {
		grad, err := p.Grad()
		if err != nil {
			return err
		}
		m, v := a.moments(keyOf(p), grad)

		// m = beta1*m + (1-beta1)*g
		tensor.Scale(a.beta1, m)
		tensor.Axpy(1-a.beta1, grad, m)

		// v = beta2*v + (1-beta2)*g²
		tensor.Scale(a.beta2, v)
		g, vd := grad.Data(), v.Data()
		for i := range vd {
			vd[i] += (1 - a.beta2) * g[i] * g[i]
		}

		err = p.Update(func(value *tensor.Dense[T]) error {
			pd, md := value.Data(), m.Data()
			for i := range pd {
				mHat := md[i] / biasCorrection1
				vHat := vd[i] / biasCorrection2
				pd[i] -= a.lr * mHat / (T(math.Sqrt(float64(vHat))) + a.eps)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Adam[T]) moments(k paramKey[T], grad *tensor.Dense[T]) (m, v *tensor.Dense[T]) {
	m, ok := a.m[k]
	if !ok {
		m = tensor.ZerosLike(grad)
		a.m[k] = m
	}
	v, ok = a.v[k]
	if !ok {
		v = tensor.ZerosLike(grad)
		a.v[k] = v
	}
	return m, v
}

// GetLR returns the current learning rate.
func (a *Adam[T]) GetLR() float64 {
	return float64(a.lr)
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (a *Adam[T]) SetLR(lr float64) {
	a.lr = T(lr)
}

// GetTimestep returns the current timestep.
func (a *Adam[T]) GetTimestep() int {
	return a.t
}
