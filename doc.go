// Package sr is a small real-time rendering runtime.
//
// # Overview
//
// A Controller owns the per-frame machinery that sits between user code and
// an immediate-mode GPU device:
//
//   - a frame-scoped bump arena for scratch allocations (package arena),
//   - a render-state stack that saves and restores fixed-function state
//     (package state),
//   - a batch compositor that coalesces 2D quads into large draw calls
//     (package batch).
//
// # Quick Start
//
//	dev := software.New(800, 600)
//	c, err := sr.New(dev)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Destroy()
//
//	for !c.ShouldClose() {
//	    if err := c.BeginFrame(); err != nil {
//	        log.Fatal(err)
//	    }
//	    c.DrawRect(sr.Rect{X: 10, Y: 10, W: 100, H: 50}, sr.RGB(1, 0, 0))
//	    if err := c.EndFrame(); err != nil {
//	        log.Print(err)
//	    }
//	}
//
// # Frames
//
// Every draw happens between BeginFrame and EndFrame. EndFrame flushes the
// compositor, presents, then clears the frame arena: memory obtained from
// TempArena must not be used after it. Drawing outside a frame, nested
// BeginFrame calls and unmatched EndFrame calls panic. A BeginFrame that
// returns an error starts no frame and may be retried.
//
// # Coordinate System
//
// 2D calls use framebuffer pixels with the origin at the top left, X right
// and Y down. 3D draws use the MVP uniform with OpenGL clip conventions, as
// produced by package camera; backends remap depth as they need.
//
// # Backends
//
// Devices live under backend/: a CPU rasteriser (backend/software), a wgpu
// HAL device (backend/wgpu) and an ebiten window (backend/ebiten). The
// backend package keeps a registry so programs can pick one by name.
package sr

// Version is the library version.
const Version = "0.1.0"
