// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers that update tracked leaves in place.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// # Basic Usage
//
//	tape := autodiff.NewTape[float64]()
//	w, _ := tape.FromElemGrad(tensor.Shape{3, 4}, 0.5)
//	x, _ := tape.FromElem(tensor.Shape{4}, 1)
//	y, _ := w.MatVec(x)
//
//	sgd := optim.NewSGD([]*autodiff.Expression[float64]{w}, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
//
//	for step := 0; step < 100; step++ {
//	    _ = y.Backward(seed)  // gradients are cleared by every backward pass
//	    _ = sgd.Step()        // w -= lr * velocity
//	    _ = tape.Forward()    // recompute y from the new w
//	}
package optim
