// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ebiten implements gpu.Device on top of Ebitengine.
//
// Ebitengine draws textured 2D triangles, so vertices are transformed,
// near-clipped and culled on the CPU and submitted with DrawTriangles.
// There is no depth buffer: with DepthTest enabled the triangles of one
// draw call are sorted back to front instead. Texture coordinates are
// interpolated affinely in screen space.
//
// Textures are uploaded as straight alpha and premultiplied for
// Ebitengine. Blend modes map to Ebitengine's blend presets.
//
// Game adapts a frame function to the Ebitengine game loop and feeds an
// input.Tracker from Ebitengine's input state.
package ebiten

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/sr/backend"
	"github.com/gogpu/sr/gpu"
)

func init() {
	backend.Register(backend.BackendEbiten, func(cfg backend.Config) (gpu.Device, error) {
		return New(cfg.Width, cfg.Height), nil
	})
}

// whiteSrc is the source coordinate sampled from the white image when no
// texture is bound: the centre of its middle texel.
const whiteSrc = 1.5

type buffer struct {
	data  []byte
	usage gpu.BufferUsage
	label string
}

type texture struct {
	img     *eb.Image
	width   int
	height  int
	nearest bool
}

type program struct {
	desc gpu.ProgramDescriptor
	mvp  mgl32.Mat4
	tint [4]float32
}

// Stats counts device work since creation.
type Stats struct {
	DrawCalls int
	Batches   int // DrawTriangles calls
	Triangles int
	Culled    int
	Clipped   int
	Presents  int
}

// Device is an Ebitengine implementation of gpu.Device. It must be used
// from the goroutine running the game loop.
type Device struct {
	target *eb.Image
	front  *eb.Image
	white  *eb.Image
	width  int
	height int

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

	decoded  []gpu.DecodedVertex
	tris     []triangle
	vertices []eb.Vertex
	indices  []uint16

	depthWarned bool
	log         *slog.Logger
	stats       Stats
	destroyed   bool
}

var nopLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))

// New returns a device rendering into a width x height offscreen image.
func New(width, height int) *Device {
	d := &Device{
		buffers:  make(map[gpu.BufferID]*buffer),
		textures: make(map[gpu.TextureID]*texture),
		programs: make(map[gpu.ProgramID]*program),
		log:      nopLogger,
	}
	white := eb.NewImage(3, 3)
	white.Fill(color.White)
	d.white = white
	d.allocTargets(width, height)
	return d
}

func (d *Device) allocTargets(width, height int) {
	d.width, d.height = max(width, 1), max(height, 1)
	d.target = eb.NewImage(d.width, d.height)
	d.front = eb.NewImage(d.width, d.height)
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

// CreateBuffer implements gpu.Device. Buffers live in CPU memory.
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
	img := eb.NewImage(desc.Width, desc.Height)
	if desc.Pixels != nil {
		img.WritePixels(premultiply(desc.Pixels))
	}
	id := gpu.TextureID(d.id())
	d.textures[id] = &texture{img: img, width: desc.Width, height: desc.Height, nearest: desc.Nearest}
	d.log.Debug("ebiten: texture created", "id", id, "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// premultiply returns a premultiplied copy of straight RGBA pixels.
func premultiply(pix []byte) []byte {
	out := make([]byte, len(pix))
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		out[i] = byte((uint32(pix[i])*a + 127) / 255)
		out[i+1] = byte((uint32(pix[i+1])*a + 127) / 255)
		out[i+2] = byte((uint32(pix[i+2])*a + 127) / 255)
		out[i+3] = pix[i+3]
	}
	return out
}

// DestroyTexture implements gpu.Device.
func (d *Device) DestroyTexture(tex gpu.TextureID) {
	t, ok := d.textures[tex]
	if !ok {
		return
	}
	t.img.Deallocate()
	delete(d.textures, tex)
	if d.tex == tex {
		d.tex = 0
	}
}

// CreateProgram implements gpu.Device. Shader sources are ignored; the
// program is interpreted by its shading model.
func (d *Device) CreateProgram(desc gpu.ProgramDescriptor) (gpu.ProgramID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	id := gpu.ProgramID(d.id())
	d.programs[id] = &program{desc: desc, mvp: mgl32.Ident4(), tint: [4]float32{1, 1, 1, 1}}
	d.log.Debug("ebiten: program created", "id", id, "label", desc.Label, "shading", desc.Shading.String())
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
		d.log.Warn("ebiten: texture unit ignored", "unit", unit)
		return
	}
	d.tex = tex
}

// SetToggle implements gpu.Device.
func (d *Device) SetToggle(t gpu.Toggle, enabled bool) {
	if int(t) >= len(d.toggles) {
		return
	}
	d.toggles[t] = enabled
	if t == gpu.DepthTest && enabled && !d.depthWarned {
		d.depthWarned = true
		d.log.Info("ebiten: no depth buffer, depth test approximated by sorting triangles per draw")
	}
}

// SetBlendMode implements gpu.Device.
func (d *Device) SetBlendMode(m gpu.BlendMode) { d.blend = m }

// SetUniform implements gpu.Device. Only MVP and Tint are interpreted;
// material values are checked against the program's block.
func (d *Device) SetUniform(name string, u gpu.Uniform) {
	p, ok := d.programs[d.prog]
	if !ok {
		d.log.Warn("ebiten: uniform set without a program", "name", name)
		return
	}
	switch name {
	case gpu.UniformMVP:
		p.mvp = mgl32.Mat4(u.F)
	case gpu.UniformTint:
		p.tint = u.Vec4Value()
	default:
		if _, err := p.desc.Uniforms.Check(name, u); err != nil {
			d.log.Warn("ebiten: uniform dropped", "program", d.prog, "err", err)
		}
	}
}

// UniformLayout implements gpu.Device.
func (d *Device) UniformLayout(prog gpu.ProgramID) *gpu.UniformBlock {
	if p, ok := d.programs[prog]; ok {
		return p.desc.Uniforms
	}
	return nil
}

// BindVertexBuffer implements gpu.Device.
func (d *Device) BindVertexBuffer(buf gpu.BufferID, layout gpu.VertexLayout) {
	d.vbuf, d.layout = buf, layout
}

// BindIndexBuffer implements gpu.Device.
func (d *Device) BindIndexBuffer(buf gpu.BufferID) { d.ibuf = buf }

// Clear implements gpu.Device. There is no depth buffer to reset.
func (d *Device) Clear(c [4]float32, _ bool) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	d.target.Fill(color.NRGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: to8(c[3])})
	return nil
}

// Present implements gpu.Device. It copies the target to the image drawn
// by Game.Draw.
func (d *Device) Present() error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	d.front.DrawImage(d.target, &eb.DrawImageOptions{Blend: eb.BlendCopy})
	d.stats.Presents++
	return nil
}

// Front returns the last presented image.
func (d *Device) Front() *eb.Image { return d.front }

// Frame reads the last presented image back. Pixels can only be read while
// the game loop runs.
func (d *Device) Frame() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
	d.front.ReadPixels(img.Pix)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := uint32(img.Pix[i+3])
		if a == 0 || a == 255 {
			continue
		}
		for c := range 3 {
			img.Pix[i+c] = byte(min(255, (uint32(img.Pix[i+c])*255+a/2)/a))
		}
	}
	return img
}

// Size implements gpu.Device.
func (d *Device) Size() (int, int) { return d.width, d.height }

// Resize implements gpu.Resizer. The contents are discarded.
func (d *Device) Resize(width, height int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: resize to %dx%d", gpu.ErrOutOfRange, width, height)
	}
	if width == d.width && height == d.height {
		return nil
	}
	d.target.Deallocate()
	d.front.Deallocate()
	d.allocTargets(width, height)
	d.log.Debug("ebiten: resized", "width", width, "height", height)
	return nil
}

// Stats returns device counters.
func (d *Device) Stats() Stats { return d.stats }

// Destroy implements gpu.Device. Every image is deallocated.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	for id, t := range d.textures {
		t.img.Deallocate()
		delete(d.textures, id)
	}
	clear(d.buffers)
	clear(d.programs)
	d.target.Deallocate()
	d.front.Deallocate()
	d.white.Deallocate()
}

func to8(f float32) uint8 {
	return uint8(min(max(f, 0), 1)*255 + 0.5)
}
