// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides layers recorded on an autodiff tape.
//
// # Overview
//
// This package contains:
//   - Module interface: Forward + Parameters
//   - Linear: y = W·x + b
//   - Sequential: chains modules
//   - Xavier: Glorot uniform initialization
//
// # Basic Usage
//
//	tape := autodiff.NewTape[float32]()
//	rng := rand.New(rand.NewSource(1))
//
//	l1, _ := nn.NewLinear(tape, 4, 8, rng)
//	l2, _ := nn.NewLinear(tape, 8, 2, rng)
//	model := nn.NewSequential[float32](l1, l2)
//
//	x, _ := tape.FromElem(tensor.Shape{4}, 1)
//	y, _ := model.Forward(x)
//	_ = y.Backward(seed)
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})
//	_ = opt.Step()
//	_ = tape.Forward()
package nn
