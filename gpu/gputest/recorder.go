// Package gputest provides a recording gpu.Device for tests.
//
// Recorder keeps every call in order, tracks the fixed-function state the
// way a real driver would, and decodes the vertices of each draw so tests can
// assert on submission order and on the state a draw observed.
package gputest

import (
	"fmt"
	"slices"

	"github.com/gogpu/sr/gpu"
)

// Op identifies a recorded device call.
type Op uint8

const (
	OpCreateBuffer Op = iota
	OpUploadBuffer
	OpDestroyBuffer
	OpCreateTexture
	OpDestroyTexture
	OpCreateProgram
	OpDestroyProgram
	OpUseProgram
	OpBindTexture
	OpSetToggle
	OpSetBlendMode
	OpSetUniform
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpClear
	OpDrawArrays
	OpDrawIndexed
	OpPresent
)

var opNames = [...]string{
	"CreateBuffer", "UploadBuffer", "DestroyBuffer", "CreateTexture",
	"DestroyTexture", "CreateProgram", "DestroyProgram", "UseProgram",
	"BindTexture", "SetToggle", "SetBlendMode", "SetUniform",
	"BindVertexBuffer", "BindIndexBuffer", "Clear", "DrawArrays",
	"DrawIndexed", "Present",
}

// String returns the call name.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Call is one recorded device call. Only the fields relevant to Op are set.
type Call struct {
	Op      Op
	Name    string
	Toggle  gpu.Toggle
	Enabled bool
	Blend   gpu.BlendMode
	Program gpu.ProgramID
	Texture gpu.TextureID
	Buffer  gpu.BufferID
	Unit    int
	First   int
	Count   int
}

// State is the fixed-function state tracked by the recorder.
type State struct {
	Program     gpu.ProgramID
	Texture     gpu.TextureID
	FaceCulling bool
	DepthTest   bool
	Blending    bool
	Blend       gpu.BlendMode
}

// Draw is a recorded draw call with the state it observed.
type Draw struct {
	State    State
	Layout   gpu.VertexLayout
	Indexed  bool
	Vertices []gpu.DecodedVertex
	Uniforms map[string]gpu.Uniform
}

// Recorder is a gpu.Device that records calls. The zero value is not usable;
// call New.
type Recorder struct {
	Calls    []Call
	Draws    []Draw
	Presents int

	// Injected failures, returned by the matching calls when non-nil.
	UploadErr  error
	DrawErr    error
	PresentErr error
	ProgramErr error
	ClearErr   error
	ResizeErr  error

	width, height int
	state         State
	vertexBuf     gpu.BufferID
	indexBuf      gpu.BufferID
	layout        gpu.VertexLayout
	nextID        uint32
	buffers       map[gpu.BufferID][]byte
	textures      map[gpu.TextureID]gpu.TextureDescriptor
	programs      map[gpu.ProgramID]gpu.ProgramDescriptor
	uniforms      map[gpu.ProgramID]map[string]gpu.Uniform
	destroyed     bool
}

var _ gpu.Device = (*Recorder)(nil)

// New returns a recorder with a width x height render target.
func New(width, height int) *Recorder {
	return &Recorder{
		width:    width,
		height:   height,
		buffers:  make(map[gpu.BufferID][]byte),
		textures: make(map[gpu.TextureID]gpu.TextureDescriptor),
		programs: make(map[gpu.ProgramID]gpu.ProgramDescriptor),
		uniforms: make(map[gpu.ProgramID]map[string]gpu.Uniform),
	}
}

// State returns the current fixed-function state.
func (r *Recorder) State() State { return r.state }

// Count returns how many calls with op were recorded.
func (r *Recorder) Count(op Op) int {
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the recorded call sequence, optionally filtered to the given ops.
func (r *Recorder) Ops(filter ...Op) []Op {
	var ops []Op
	for _, c := range r.Calls {
		if len(filter) == 0 || slices.Contains(filter, c.Op) {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Reset forgets recorded calls and draws but keeps resources and state.
func (r *Recorder) Reset() {
	r.Calls = r.Calls[:0]
	r.Draws = r.Draws[:0]
	r.Presents = 0
}

// BufferData returns the current contents of a buffer.
func (r *Recorder) BufferData(buf gpu.BufferID) []byte { return r.buffers[buf] }

// Texture returns the descriptor a texture was created with.
func (r *Recorder) Texture(tex gpu.TextureID) (gpu.TextureDescriptor, bool) {
	d, ok := r.textures[tex]
	return d, ok
}

// Program returns the descriptor a program was created with.
func (r *Recorder) Program(prog gpu.ProgramID) (gpu.ProgramDescriptor, bool) {
	d, ok := r.programs[prog]
	return d, ok
}

// Live reports how many buffers, textures and programs are alive.
func (r *Recorder) Live() (buffers, textures, programs int) {
	return len(r.buffers), len(r.textures), len(r.programs)
}

func (r *Recorder) record(c Call) { r.Calls = append(r.Calls, c) }

func (r *Recorder) id() uint32 {
	r.nextID++
	return r.nextID
}

func (r *Recorder) CreateBuffer(desc gpu.BufferDescriptor) (gpu.BufferID, error) {
	if r.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	id := gpu.BufferID(r.id())
	r.buffers[id] = make([]byte, desc.Size)
	r.record(Call{Op: OpCreateBuffer, Name: desc.Label, Buffer: id, Count: desc.Size})
	return id, nil
}

func (r *Recorder) UploadBuffer(buf gpu.BufferID, offset int, data []byte) error {
	r.record(Call{Op: OpUploadBuffer, Buffer: buf, First: offset, Count: len(data)})
	if r.UploadErr != nil {
		return r.UploadErr
	}
	dst, ok := r.buffers[buf]
	if !ok {
		return gpu.ErrInvalidHandle
	}
	if offset < 0 || offset+len(data) > len(dst) {
		return gpu.ErrOutOfRange
	}
	copy(dst[offset:], data)
	return nil
}

func (r *Recorder) DestroyBuffer(buf gpu.BufferID) {
	r.record(Call{Op: OpDestroyBuffer, Buffer: buf})
	delete(r.buffers, buf)
}

func (r *Recorder) CreateTexture(desc gpu.TextureDescriptor) (gpu.TextureID, error) {
	if r.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	id := gpu.TextureID(r.id())
	r.textures[id] = desc
	r.record(Call{Op: OpCreateTexture, Name: desc.Label, Texture: id})
	return id, nil
}

func (r *Recorder) DestroyTexture(tex gpu.TextureID) {
	r.record(Call{Op: OpDestroyTexture, Texture: tex})
	delete(r.textures, tex)
}

func (r *Recorder) CreateProgram(desc gpu.ProgramDescriptor) (gpu.ProgramID, error) {
	if r.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	if r.ProgramErr != nil {
		return 0, r.ProgramErr
	}
	id := gpu.ProgramID(r.id())
	r.programs[id] = desc
	r.record(Call{Op: OpCreateProgram, Name: desc.Label, Program: id})
	return id, nil
}

func (r *Recorder) DestroyProgram(prog gpu.ProgramID) {
	r.record(Call{Op: OpDestroyProgram, Program: prog})
	delete(r.programs, prog)
	delete(r.uniforms, prog)
}

func (r *Recorder) UseProgram(prog gpu.ProgramID) {
	r.record(Call{Op: OpUseProgram, Program: prog})
	r.state.Program = prog
}

func (r *Recorder) BindTexture(unit int, tex gpu.TextureID) {
	r.record(Call{Op: OpBindTexture, Unit: unit, Texture: tex})
	if unit == 0 {
		r.state.Texture = tex
	}
}

func (r *Recorder) SetToggle(t gpu.Toggle, enabled bool) {
	r.record(Call{Op: OpSetToggle, Toggle: t, Enabled: enabled})
	switch t {
	case gpu.FaceCulling:
		r.state.FaceCulling = enabled
	case gpu.DepthTest:
		r.state.DepthTest = enabled
	case gpu.Blending:
		r.state.Blending = enabled
	}
}

func (r *Recorder) SetBlendMode(m gpu.BlendMode) {
	r.record(Call{Op: OpSetBlendMode, Blend: m})
	r.state.Blend = m
}

func (r *Recorder) SetUniform(name string, u gpu.Uniform) {
	r.record(Call{Op: OpSetUniform, Name: name, Program: r.state.Program})
	m := r.uniforms[r.state.Program]
	if m == nil {
		m = make(map[string]gpu.Uniform)
		r.uniforms[r.state.Program] = m
	}
	m[name] = u
}

func (r *Recorder) UniformLayout(prog gpu.ProgramID) *gpu.UniformBlock {
	return r.programs[prog].Uniforms
}

// Uniform returns the value last set for name on prog.
func (r *Recorder) Uniform(prog gpu.ProgramID, name string) (gpu.Uniform, bool) {
	u, ok := r.uniforms[prog][name]
	return u, ok
}

func (r *Recorder) BindVertexBuffer(buf gpu.BufferID, layout gpu.VertexLayout) {
	r.record(Call{Op: OpBindVertexBuffer, Buffer: buf})
	r.vertexBuf = buf
	r.layout = layout
}

func (r *Recorder) BindIndexBuffer(buf gpu.BufferID) {
	r.record(Call{Op: OpBindIndexBuffer, Buffer: buf})
	r.indexBuf = buf
}

func (r *Recorder) Clear(color [4]float32, depth bool) error {
	r.record(Call{Op: OpClear, Enabled: depth})
	return r.ClearErr
}

func (r *Recorder) DrawArrays(first, count int) error {
	r.record(Call{Op: OpDrawArrays, First: first, Count: count, Program: r.state.Program, Texture: r.state.Texture})
	if r.DrawErr != nil {
		return r.DrawErr
	}
	data, ok := r.buffers[r.vertexBuf]
	if !ok {
		return gpu.ErrNoVertexBuffer
	}
	if first < 0 || (first+count)*r.layout.Stride > len(data) {
		return gpu.ErrOutOfRange
	}
	d := r.newDraw(false)
	for i := first; i < first+count; i++ {
		d.Vertices = append(d.Vertices, gpu.DecodeVertex(data, r.layout, i))
	}
	r.Draws = append(r.Draws, d)
	return nil
}

func (r *Recorder) DrawIndexed(count int) error {
	r.record(Call{Op: OpDrawIndexed, Count: count, Program: r.state.Program, Texture: r.state.Texture})
	if r.DrawErr != nil {
		return r.DrawErr
	}
	data, ok := r.buffers[r.vertexBuf]
	if !ok {
		return gpu.ErrNoVertexBuffer
	}
	idx, ok := r.buffers[r.indexBuf]
	if !ok {
		return gpu.ErrNoIndexBuffer
	}
	if count*4 > len(idx) {
		return gpu.ErrOutOfRange
	}
	d := r.newDraw(true)
	for i := range count {
		o := i * 4
		v := int(uint32(idx[o]) | uint32(idx[o+1])<<8 | uint32(idx[o+2])<<16 | uint32(idx[o+3])<<24)
		if (v+1)*r.layout.Stride > len(data) {
			return gpu.ErrOutOfRange
		}
		d.Vertices = append(d.Vertices, gpu.DecodeVertex(data, r.layout, v))
	}
	r.Draws = append(r.Draws, d)
	return nil
}

func (r *Recorder) newDraw(indexed bool) Draw {
	d := Draw{State: r.state, Layout: r.layout, Indexed: indexed}
	if u := r.uniforms[r.state.Program]; len(u) > 0 {
		d.Uniforms = make(map[string]gpu.Uniform, len(u))
		for k, v := range u {
			d.Uniforms[k] = v
		}
	}
	return d
}

func (r *Recorder) Present() error {
	r.record(Call{Op: OpPresent})
	if r.PresentErr != nil {
		return r.PresentErr
	}
	r.Presents++
	return nil
}

func (r *Recorder) Size() (int, int) { return r.width, r.height }

// Resize changes the reported target size.
func (r *Recorder) Resize(width, height int) error {
	if r.ResizeErr != nil {
		return r.ResizeErr
	}
	r.width, r.height = width, height
	return nil
}

func (r *Recorder) Destroy() { r.destroyed = true }
