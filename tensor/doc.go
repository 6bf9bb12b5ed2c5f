// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense arrays used by the tapegrad engine.
//
// # Overview
//
// Tensors are owned, contiguous, row-major arrays with a fixed shape:
//   - Generic element type (float32 or float64)
//   - No broadcasting: element-wise operators require identical shapes
//   - BLAS kernels from gonum for accumulation and matrix-vector products
//
// # Basic Usage
//
//	x, _ := tensor.Full[float32](tensor.Shape{2, 3}, 1)
//	y, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	fmt.Println(y.At(1, 2)) // 6
//	fmt.Println(x)          // [[1, 1, 1], [1, 1, 1]]
//
// Tensors handed to a tape are copied; read values back through
// autodiff.Expression.Value and autodiff.Expression.Grad.
package tensor
