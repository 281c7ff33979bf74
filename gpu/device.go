// Package gpu defines the immediate-mode device contract the runtime renders
// through: create and upload buffers, bind textures and programs, toggle
// fixed-function state, issue array or indexed draws, present.
//
// Handles are opaque integers owned by the device that created them. The zero
// value of every handle type means "none".
//
// Backends live under backend/. A Device is driven from the frame loop's
// goroutine only.
package gpu

import "errors"

// Errors shared by device implementations.
var (
	// ErrInvalidHandle is returned when a handle is zero, unknown, or destroyed.
	ErrInvalidHandle = errors.New("gpu: invalid handle")

	// ErrNoVertexBuffer is returned by draws issued with no vertex buffer bound.
	ErrNoVertexBuffer = errors.New("gpu: no vertex buffer bound")

	// ErrNoIndexBuffer is returned by DrawIndexed with no index buffer bound.
	ErrNoIndexBuffer = errors.New("gpu: no index buffer bound")

	// ErrOutOfRange is returned for uploads or draws beyond a buffer's size.
	ErrOutOfRange = errors.New("gpu: range out of bounds")

	// ErrDeviceDestroyed is returned by any call after Destroy.
	ErrDeviceDestroyed = errors.New("gpu: device destroyed")

	// ErrUnknownUniform is returned for a name outside the program's
	// uniform block.
	ErrUnknownUniform = errors.New("gpu: unknown uniform")

	// ErrUniformKind is returned when a value does not fit the declared
	// member type.
	ErrUniformKind = errors.New("gpu: uniform kind mismatch")
)

// BufferID identifies a device buffer.
type BufferID uint32

// TextureID identifies a device texture.
type TextureID uint32

// ProgramID identifies a linked shader program.
type ProgramID uint32

// Toggle is a fixed-function pipeline switch.
type Toggle uint8

const (
	// FaceCulling discards back faces: triangles wound clockwise in
	// normalized device coordinates.
	FaceCulling Toggle = iota
	// DepthTest enables less-than depth testing and depth writes.
	DepthTest
	// Blending enables color blending with the current BlendMode.
	Blending
)

// String returns the toggle name.
func (t Toggle) String() string {
	switch t {
	case FaceCulling:
		return "FaceCulling"
	case DepthTest:
		return "DepthTest"
	case Blending:
		return "Blending"
	default:
		return "Unknown"
	}
}

// BlendMode selects the blend equation used while Blending is enabled.
type BlendMode uint8

const (
	// BlendAlpha is src*srcAlpha + dst*(1-srcAlpha).
	BlendAlpha BlendMode = iota
	// BlendAdditive is src*srcAlpha + dst.
	BlendAdditive
	// BlendPremultiplied is src + dst*(1-srcAlpha).
	BlendPremultiplied
)

// String returns the blend mode name.
func (m BlendMode) String() string {
	switch m {
	case BlendAlpha:
		return "Alpha"
	case BlendAdditive:
		return "Additive"
	case BlendPremultiplied:
		return "Premultiplied"
	default:
		return "Unknown"
	}
}

// BufferUsage says how a buffer is bound.
type BufferUsage uint8

const (
	// UsageVertex buffers are bound with BindVertexBuffer.
	UsageVertex BufferUsage = iota
	// UsageIndex buffers hold uint32 indices and are bound with BindIndexBuffer.
	UsageIndex
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  int
	Usage BufferUsage
}

// TextureDescriptor describes a 2D RGBA8 texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	// Pixels holds Width*Height*4 bytes of non-premultiplied RGBA, row-major,
	// or nil for a zeroed texture.
	Pixels []byte
	// Nearest selects nearest-neighbour filtering instead of linear.
	Nearest bool
}

// ProgramDescriptor describes a shader program.
//
// Shader-capable backends compile WGSL (or consume SPIRV when present).
// Fixed-function backends ignore the sources and interpret Shading.
type ProgramDescriptor struct {
	Label   string
	WGSL    string
	SPIRV   []uint32
	Shading Shading
	// SolidColor is the output of ShadingSolid programs.
	SolidColor [4]float32
	// Uniforms is the layout of the @group(1) @binding(0) uniform struct
	// that holds the program's material values. Nil when there is none.
	Uniforms *UniformBlock
}

// Shading is the fixed-function model a program stands for.
type Shading uint8

const (
	// ShadingTextured transforms positions by the MVP uniform and outputs
	// texture * vertex color * Tint.
	ShadingTextured Shading = iota
	// ShadingScreen treats X/Y positions as framebuffer pixels (origin top
	// left) and outputs texture * vertex color.
	ShadingScreen
	// ShadingSolid transforms by MVP and outputs ProgramDescriptor.SolidColor.
	ShadingSolid
)

// String returns the shading model name.
func (s Shading) String() string {
	switch s {
	case ShadingTextured:
		return "Textured"
	case ShadingScreen:
		return "Screen"
	case ShadingSolid:
		return "Solid"
	default:
		return "Unknown"
	}
}

// Device is an immediate-mode GPU context.
//
// Bind and toggle calls change the current state; draws consume it. Uniforms
// are set on the currently bound program and persist with it.
type Device interface {
	CreateBuffer(desc BufferDescriptor) (BufferID, error)
	UploadBuffer(buf BufferID, offset int, data []byte) error
	DestroyBuffer(buf BufferID)

	CreateTexture(desc TextureDescriptor) (TextureID, error)
	DestroyTexture(tex TextureID)

	CreateProgram(desc ProgramDescriptor) (ProgramID, error)
	DestroyProgram(prog ProgramID)

	UseProgram(prog ProgramID)
	BindTexture(unit int, tex TextureID)
	SetToggle(t Toggle, enabled bool)
	SetBlendMode(m BlendMode)
	SetUniform(name string, u Uniform)
	// UniformLayout returns the material block of prog, or nil when the
	// program declares none.
	UniformLayout(prog ProgramID) *UniformBlock

	BindVertexBuffer(buf BufferID, layout VertexLayout)
	BindIndexBuffer(buf BufferID)

	// Clear fills the color target and, if depth is true, resets the depth
	// buffer to the far plane.
	Clear(color [4]float32, depth bool) error
	// DrawArrays draws count vertices starting at first as a triangle list.
	DrawArrays(first, count int) error
	// DrawIndexed draws count indices from the bound index buffer.
	DrawIndexed(count int) error

	// Present finishes the frame and shows it.
	Present() error
	// Size returns the render target size in pixels.
	Size() (width, height int)

	Destroy()
}

// Resizer is implemented by devices whose render target can be resized.
type Resizer interface {
	Resize(width, height int) error
}
