// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software implements gpu.Device with a CPU rasteriser.
//
// Programs are not compiled: each one is interpreted by its gpu.Shading
// model. The color target is an *image.NRGBA holding raw channel values the
// way a GPU framebuffer would, next to a float32 depth buffer. Present
// copies the target into a front buffer readable with Frame. Large draws
// are filled in horizontal bands on a shared worker pool.
//
// Importing the package registers it with the backend registry:
//
//	import _ "github.com/gogpu/sr/backend/software"
package software

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/gogpu/sr/backend"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/internal/parallel"
)

func init() {
	backend.Register(backend.BackendSoftware, func(cfg backend.Config) (gpu.Device, error) {
		return New(cfg.Width, cfg.Height), nil
	})
}

type buffer struct {
	data  []byte
	usage gpu.BufferUsage
	label string
}

type texture struct {
	width, height int
	pix           []byte
	nearest       bool
}

type program struct {
	desc     gpu.ProgramDescriptor
	uniforms map[string]gpu.Uniform
}

// Stats counts rasteriser work since the device was created.
type Stats struct {
	DrawCalls int
	Triangles int
	Culled    int
	Clipped   int
	Fragments int
	Presents  int
}

// Device is a CPU implementation of gpu.Device. It is not safe for
// concurrent use.
type Device struct {
	color *image.NRGBA
	depth []float32
	front *image.NRGBA

	buffers  map[gpu.BufferID]*buffer
	textures map[gpu.TextureID]*texture
	programs map[gpu.ProgramID]*program
	next     uint32

	prog    gpu.ProgramID
	tex     gpu.TextureID
	toggles [3]bool
	blend   gpu.BlendMode
	vbuf    gpu.BufferID
	layout  gpu.VertexLayout
	ibuf    gpu.BufferID

	tris []screenTriangle
	pool *parallel.Pool

	log       *slog.Logger
	stats     Stats
	destroyed bool
}

// fillPool is shared by every device. Its workers live for the process.
var fillPool = sync.OnceValue(func() *parallel.Pool { return parallel.NewPool(0) })

var nopLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))

// New returns a device rendering into a width x height target.
func New(width, height int) *Device {
	d := &Device{
		buffers:  make(map[gpu.BufferID]*buffer),
		textures: make(map[gpu.TextureID]*texture),
		programs: make(map[gpu.ProgramID]*program),
		pool:     fillPool(),
		log:      nopLogger,
	}
	d.allocTargets(width, height)
	return d
}

func (d *Device) allocTargets(width, height int) {
	width, height = max(width, 1), max(height, 1)
	d.color = image.NewNRGBA(image.Rect(0, 0, width, height))
	d.front = image.NewNRGBA(d.color.Rect)
	d.depth = make([]float32, width*height)
	for i := range d.depth {
		d.depth[i] = 1
	}
}

// SetLogger sets the device logger. nil silences it.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = nopLogger
	}
	d.log = l
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.BufferID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	if desc.Size <= 0 {
		return 0, fmt.Errorf("%w: buffer %q size %d", gpu.ErrOutOfRange, desc.Label, desc.Size)
	}
	id := gpu.BufferID(d.id())
	d.buffers[id] = &buffer{data: make([]byte, desc.Size), usage: desc.Usage, label: desc.Label}
	return id, nil
}

// UploadBuffer implements gpu.Device.
func (d *Device) UploadBuffer(buf gpu.BufferID, offset int, data []byte) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	b, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrInvalidHandle, buf)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("%w: upload [%d,%d) into %q of %d bytes",
			gpu.ErrOutOfRange, offset, offset+len(data), b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer implements gpu.Device.
func (d *Device) DestroyBuffer(buf gpu.BufferID) {
	delete(d.buffers, buf)
	if d.vbuf == buf {
		d.vbuf = 0
	}
	if d.ibuf == buf {
		d.ibuf = 0
	}
}

// CreateTexture implements gpu.Device.
func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.TextureID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("%w: texture %q is %dx%d", gpu.ErrOutOfRange, desc.Label, desc.Width, desc.Height)
	}
	size := desc.Width * desc.Height * 4
	if desc.Pixels != nil && len(desc.Pixels) != size {
		return 0, fmt.Errorf("%w: texture %q has %d bytes, want %d",
			gpu.ErrOutOfRange, desc.Label, len(desc.Pixels), size)
	}
	t := &texture{width: desc.Width, height: desc.Height, pix: make([]byte, size), nearest: desc.Nearest}
	copy(t.pix, desc.Pixels)
	id := gpu.TextureID(d.id())
	d.textures[id] = t
	d.log.Debug("software: texture created", "id", id, "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// DestroyTexture implements gpu.Device.
func (d *Device) DestroyTexture(tex gpu.TextureID) {
	delete(d.textures, tex)
	if d.tex == tex {
		d.tex = 0
	}
}

// CreateProgram implements gpu.Device. Sources are ignored.
func (d *Device) CreateProgram(desc gpu.ProgramDescriptor) (gpu.ProgramID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	id := gpu.ProgramID(d.id())
	d.programs[id] = &program{
		desc: desc,
		uniforms: map[string]gpu.Uniform{
			gpu.UniformMVP:  gpu.Mat4(gpu.Identity),
			gpu.UniformTint: gpu.Vec4([4]float32{1, 1, 1, 1}),
		},
	}
	d.log.Debug("software: program created", "id", id, "label", desc.Label, "shading", desc.Shading.String())
	return id, nil
}

// DestroyProgram implements gpu.Device.
func (d *Device) DestroyProgram(prog gpu.ProgramID) {
	delete(d.programs, prog)
	if d.prog == prog {
		d.prog = 0
	}
}

// UseProgram implements gpu.Device.
func (d *Device) UseProgram(prog gpu.ProgramID) { d.prog = prog }

// BindTexture implements gpu.Device. Only unit 0 is sampled.
func (d *Device) BindTexture(unit int, tex gpu.TextureID) {
	if unit != 0 {
		d.log.Warn("software: texture unit ignored", "unit", unit)
		return
	}
	d.tex = tex
}

// SetToggle implements gpu.Device.
func (d *Device) SetToggle(t gpu.Toggle, enabled bool) {
	if int(t) < len(d.toggles) {
		d.toggles[t] = enabled
	}
}

// SetBlendMode implements gpu.Device.
func (d *Device) SetBlendMode(m gpu.BlendMode) { d.blend = m }

// SetUniform implements gpu.Device. Without a bound program it is a no-op.
// Names other than MVP and Tint must be members of the program's material
// block. They are kept for Uniform but the shading models do not read them.
func (d *Device) SetUniform(name string, u gpu.Uniform) {
	p, ok := d.programs[d.prog]
	if !ok {
		d.log.Warn("software: uniform set without a program", "name", name)
		return
	}
	if name != gpu.UniformMVP && name != gpu.UniformTint {
		if _, err := p.desc.Uniforms.Check(name, u); err != nil {
			d.log.Warn("software: uniform dropped", "program", d.prog, "err", err)
			return
		}
	}
	p.uniforms[name] = u
}

// UniformLayout implements gpu.Device.
func (d *Device) UniformLayout(prog gpu.ProgramID) *gpu.UniformBlock {
	if p, ok := d.programs[prog]; ok {
		return p.desc.Uniforms
	}
	return nil
}

// Uniform returns the value last set for name on prog.
func (d *Device) Uniform(prog gpu.ProgramID, name string) (gpu.Uniform, bool) {
	p, ok := d.programs[prog]
	if !ok {
		return gpu.Uniform{}, false
	}
	u, ok := p.uniforms[name]
	return u, ok
}

// BindVertexBuffer implements gpu.Device.
func (d *Device) BindVertexBuffer(buf gpu.BufferID, layout gpu.VertexLayout) {
	d.vbuf, d.layout = buf, layout
}

// BindIndexBuffer implements gpu.Device.
func (d *Device) BindIndexBuffer(buf gpu.BufferID) { d.ibuf = buf }

// Clear implements gpu.Device.
func (d *Device) Clear(color [4]float32, depth bool) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	c := [4]byte{to8(color[0]), to8(color[1]), to8(color[2]), to8(color[3])}
	pix := d.color.Pix
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], c[:])
	}
	if depth {
		for i := range d.depth {
			d.depth[i] = 1
		}
	}
	return nil
}

// Present implements gpu.Device. It copies the target to the front buffer.
func (d *Device) Present() error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	copy(d.front.Pix, d.color.Pix)
	d.stats.Presents++
	return nil
}

// Frame returns a copy of the last presented frame.
func (d *Device) Frame() *image.NRGBA {
	img := image.NewNRGBA(d.front.Rect)
	copy(img.Pix, d.front.Pix)
	return img
}

// Target returns the color target being drawn into. It is reused across
// frames.
func (d *Device) Target() *image.NRGBA { return d.color }

// Size implements gpu.Device.
func (d *Device) Size() (int, int) {
	b := d.color.Rect
	return b.Dx(), b.Dy()
}

// Resize implements gpu.Resizer. The contents are discarded.
func (d *Device) Resize(width, height int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: resize to %dx%d", gpu.ErrOutOfRange, width, height)
	}
	d.allocTargets(width, height)
	d.log.Debug("software: resized", "width", width, "height", height)
	return nil
}

// Stats returns rasteriser counters.
func (d *Device) Stats() Stats { return d.stats }

// Live returns the number of live buffers, textures and programs.
func (d *Device) Live() (buffers, textures, programs int) {
	return len(d.buffers), len(d.textures), len(d.programs)
}

// Destroy implements gpu.Device. Every resource is released.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	clear(d.buffers)
	clear(d.textures)
	clear(d.programs)
}
