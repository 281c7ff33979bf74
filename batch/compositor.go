// Package batch implements the vertex batch compositor: screen-space
// triangles accumulate in a bounded buffer keyed to one texture and are
// submitted as a single draw call when the buffer would overflow, when the
// texture changes, or when the caller flushes at a frame boundary.
//
// A flush brackets its draw with its own render-state snapshot (culling off,
// depth test off, alpha blending on, compositor program bound), so the
// caller's 3D state is untouched afterwards.
package batch

import (
	"errors"
	"fmt"

	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/state"
)

var (
	// ErrTooLarge is the panic cause when a single Enqueue holds more
	// vertices than the buffer. Primitives are never split across draws.
	ErrTooLarge = errors.New("batch: primitive larger than batch capacity")

	// ErrPartialTriangle is the panic cause when an Enqueue length is not a
	// multiple of 3.
	ErrPartialTriangle = errors.New("batch: vertex count is not a multiple of 3")

	// ErrInvalidCapacity is returned by New for a capacity that is not a
	// positive multiple of 3.
	ErrInvalidCapacity = errors.New("batch: capacity must be a positive multiple of 3")
)

// DefaultCapacity is the vertex capacity used when Descriptor.Capacity is 0.
const DefaultCapacity = 6 * 4096

// Device is the part of a gpu.Device the compositor needs.
type Device interface {
	CreateBuffer(desc gpu.BufferDescriptor) (gpu.BufferID, error)
	UploadBuffer(buf gpu.BufferID, offset int, data []byte) error
	DestroyBuffer(buf gpu.BufferID)
	BindVertexBuffer(buf gpu.BufferID, layout gpu.VertexLayout)
	DrawArrays(first, count int) error
}

// Descriptor configures a Compositor.
type Descriptor struct {
	// Capacity is the number of vertices buffered before a forced flush.
	Capacity int
	// Program is the screen-space program bound during flushes.
	Program gpu.ProgramID
	// Texture is the texture bound before the first Enqueue.
	Texture gpu.TextureID
}

// FlushReason says why a flush happened.
type FlushReason uint8

const (
	// FlushExplicit is a caller-requested flush (for example at EndFrame).
	FlushExplicit FlushReason = iota
	// FlushCapacity means the next enqueue would have exceeded capacity.
	FlushCapacity
	// FlushTexture means the next enqueue needed a different texture.
	FlushTexture
)

// String returns the reason name.
func (r FlushReason) String() string {
	switch r {
	case FlushExplicit:
		return "explicit"
	case FlushCapacity:
		return "capacity"
	case FlushTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// Stats counts compositor activity since creation.
type Stats struct {
	Flushes         [3]int // indexed by FlushReason
	DrawCalls       int
	VerticesDrawn   int
	VerticesQueued  int
	LargestDrawCall int
}

// Total returns the number of flushes that issued a draw call.
func (s Stats) Total() int { return s.Flushes[0] + s.Flushes[1] + s.Flushes[2] }

// Compositor accumulates batch vertices and flushes them in enqueue order.
// It is not safe for concurrent use.
type Compositor struct {
	dev      Device
	states   *state.Stack
	program  gpu.ProgramID
	buf      gpu.BufferID
	vertices []Vertex // cap == capacity, never grown
	staging  []byte
	bound    gpu.TextureID
	stats    Stats
}

// New allocates the GPU vertex buffer and CPU staging for a compositor.
// states must drive the same device as dev.
func New(dev Device, states *state.Stack, desc Descriptor) (*Compositor, error) {
	capacity := desc.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 || capacity%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	buf, err := dev.CreateBuffer(gpu.BufferDescriptor{
		Label: "batch_vertices",
		Size:  capacity * VertexSize,
		Usage: gpu.UsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("batch: create vertex buffer: %w", err)
	}

	return &Compositor{
		dev:      dev,
		states:   states,
		program:  desc.Program,
		buf:      buf,
		vertices: make([]Vertex, 0, capacity),
		staging:  make([]byte, capacity*VertexSize),
		bound:    desc.Texture,
	}, nil
}

// Enqueue appends vertices that sample tex. It flushes first when tex differs
// from the bound texture and vertices are pending, or when the pending count
// plus len(vertices) would exceed capacity; a batch may fill exactly to
// capacity without flushing.
//
// Enqueue panics if len(vertices) is not a multiple of 3 or exceeds the
// capacity. An empty slice is a no-op.
func (c *Compositor) Enqueue(vertices []Vertex, tex gpu.TextureID) error {
	n := len(vertices)
	if n == 0 {
		return nil
	}
	if n%3 != 0 {
		panic(fmt.Errorf("%w: %d vertices", ErrPartialTriangle, n))
	}
	if n > cap(c.vertices) {
		panic(fmt.Errorf("%w: %d vertices, capacity %d", ErrTooLarge, n, cap(c.vertices)))
	}

	switch {
	case len(c.vertices) > 0 && tex != c.bound:
		if err := c.flush(FlushTexture); err != nil {
			return err
		}
	case len(c.vertices)+n > cap(c.vertices):
		if err := c.flush(FlushCapacity); err != nil {
			return err
		}
	}

	c.bound = tex
	c.vertices = append(c.vertices, vertices...)
	c.stats.VerticesQueued += n
	return nil
}

// Flush submits pending vertices as one draw call. It is a no-op when nothing
// is pending.
func (c *Compositor) Flush() error {
	return c.flush(FlushExplicit)
}

func (c *Compositor) flush(reason FlushReason) error {
	n := len(c.vertices)
	if n == 0 {
		return nil
	}
	// Pending vertices are dropped even when the device fails.
	defer func() { c.vertices = c.vertices[:0] }()

	c.states.Push(state.Snapshot{
		Shader:      c.program,
		Texture:     c.bound,
		FaceCulling: false,
		DepthTest:   false,
		Blending:    true,
		Blend:       gpu.BlendAlpha,
	})
	defer c.states.Pop()

	data := c.staging[:n*VertexSize]
	off := 0
	for i := range c.vertices {
		off = c.vertices[i].put(data, off)
	}

	if err := c.dev.UploadBuffer(c.buf, 0, data); err != nil {
		return fmt.Errorf("batch: upload %d vertices: %w", n, err)
	}
	c.dev.BindVertexBuffer(c.buf, gpu.LayoutBatch)
	if err := c.dev.DrawArrays(0, n); err != nil {
		return fmt.Errorf("batch: draw %d vertices: %w", n, err)
	}

	c.stats.Flushes[reason]++
	c.stats.DrawCalls++
	c.stats.VerticesDrawn += n
	c.stats.LargestDrawCall = max(c.stats.LargestDrawCall, n)
	slogger().Debug("batch: flush", "reason", reason.String(), "vertices", n, "texture", c.bound)
	return nil
}

// Len returns the number of pending vertices.
func (c *Compositor) Len() int { return len(c.vertices) }

// Capacity returns the vertex capacity.
func (c *Compositor) Capacity() int { return cap(c.vertices) }

// BoundTexture returns the texture pending vertices sample.
func (c *Compositor) BoundTexture() gpu.TextureID { return c.bound }

// Pending returns the pending vertices. The slice is only valid until the
// next Enqueue or Flush.
func (c *Compositor) Pending() []Vertex { return c.vertices }

// Stats returns activity counters.
func (c *Compositor) Stats() Stats { return c.stats }

// SetProgram changes the program used by later flushes.
func (c *Compositor) SetProgram(prog gpu.ProgramID) { c.program = prog }

// Destroy releases the vertex buffer. Pending vertices are discarded.
// Destroy is safe to call more than once.
func (c *Compositor) Destroy() {
	if c.buf != 0 {
		c.dev.DestroyBuffer(c.buf)
		c.buf = 0
	}
	c.vertices = c.vertices[:0]
}
