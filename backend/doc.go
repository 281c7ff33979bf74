// Package backend is the registry of device implementations.
//
// Backend packages register a Factory from init, so importing one makes
// it selectable:
//
//	import _ "github.com/gogpu/sr/backend/software"
//
// # Backend Selection
//
// Use Default to create a device with the best available backend, or Get
// to request one by name:
//
//	dev, name, err := backend.Default(backend.Config{Width: 800, Height: 600})
//
//	// Or request a specific backend
//	dev, err := backend.Get(backend.BackendSoftware, cfg)
//
// Priority order is wgpu, ebiten, software. A backend whose factory fails
// (no adapter, no display) is skipped.
//
// # Available Backends
//
//   - software: CPU rasteriser into an *image.RGBA. Always works.
//   - wgpu: WebGPU through gogpu/wgpu, for headless or surface rendering.
//   - ebiten: draws into an ebiten image inside an ebiten game loop.
package backend
