// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/tapegrad/internal/autodiff"
	"github.com/born-ml/tapegrad/internal/optim"
	"github.com/born-ml/tapegrad/internal/tensor"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD represents the SGD optimizer with optional momentum.
type SGD[T tensor.Float] = optim.SGD[T]

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer over tracked leaf expressions.
//
// Example:
//
//	optimizer := optim.NewSGD(params, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD[T tensor.Float](params []*autodiff.Expression[T], config SGDConfig) *SGD[T] {
	return optim.NewSGD(params, config)
}

// Adam represents the Adam optimizer.
type Adam[T tensor.Float] = optim.Adam[T]

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer over tracked leaf expressions.
//
// Example:
//
//	optimizer := optim.NewAdam(params, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
func NewAdam[T tensor.Float](params []*autodiff.Expression[T], config AdamConfig) *Adam[T] {
	return optim.NewAdam(params, config)
}
