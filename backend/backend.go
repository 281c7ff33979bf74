package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/sr/gpu"
)

// Backend names. Each backend package registers itself under one of these
// from its init function.
const (
	// BackendWGPU is the WebGPU device built on gogpu/wgpu.
	BackendWGPU = "wgpu"
	// BackendEbiten is the device that draws into an ebiten image.
	BackendEbiten = "ebiten"
	// BackendSoftware is the CPU rasteriser. It is always available.
	BackendSoftware = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or could not create a device.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrInvalidSize is returned by factories for a non-positive target size.
	ErrInvalidSize = errors.New("backend: invalid target size")
)

// Config describes the render target a factory should create a device for.
type Config struct {
	Width  int
	Height int
	// Label names the device in logs and debug tools.
	Label string
}

// Validate reports whether the target size is usable.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.Width, c.Height)
	}
	return nil
}

// Factory creates a device for cfg.
type Factory func(cfg Config) (gpu.Device, error)
