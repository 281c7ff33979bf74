// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements gpu.Device on the gogpu/wgpu hardware abstraction
// layer (Vulkan, Metal, DX12 or GLES, whichever hal backend is registered).
//
// The device is immediate mode over an explicit API. Every draw call is
// encoded into its own render pass and submitted before the next call
// returns, so uniform and vertex uploads issued between draws apply only to
// the draws that follow them. Clears are deferred and folded into the load
// operation of the next pass.
//
// # Programs
//
// A program is one shader module with vs_main and fs_main entry points and
// the bind group 0 layout of the built-in shaders:
//
//	binding 0: uniform block (mvp mat4, tint vec4, screen vec4)
//	binding 1: texture_2d<f32>
//	binding 2: sampler
//
// SPIRV is used when the descriptor carries it, WGSL otherwise. Matrices set
// through the MVP uniform use OpenGL clip depth [-1, 1] and are remapped to
// the [0, 1] range the hal expects.
//
// # Pipelines
//
// Render pipelines are created on first use for each combination of
// program, vertex layout, culling, depth test and blend state, then cached.
//
// # Registration
//
// Importing the package registers the "wgpu" backend. A hal backend must be
// linked in as well, usually through
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
//
// Without one, only the noop hal backend is present and the factory reports
// backend.ErrBackendNotAvailable so selection falls through to the next
// backend.
package wgpu
