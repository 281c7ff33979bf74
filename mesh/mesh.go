// Package mesh holds indexed triangle meshes and the built-in generators
// (quad, cube, plane, UV sphere).
//
// Mesh storage can come from an arena: pass the controller's persistent
// arena to keep generated geometry out of the Go heap, or nil to allocate
// normally.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/sr/arena"
	"github.com/gogpu/sr/gpu"
)

var (
	// ErrNotTriangles is returned when the index count is not a multiple of 3.
	ErrNotTriangles = errors.New("mesh: index count is not a multiple of 3")

	// ErrIndexRange is returned when an index points past the vertices.
	ErrIndexRange = errors.New("mesh: index out of range")

	// ErrEmpty is returned when drawing a mesh with no indices.
	ErrEmpty = errors.New("mesh: no triangles")
)

// VertexSize is the packed size of a Vertex (gpu.LayoutMesh).
const VertexSize = 48

// Vertex is one mesh vertex.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
	Color    [4]float32
}

// Device is the part of a gpu.Device a mesh needs.
type Device interface {
	CreateBuffer(desc gpu.BufferDescriptor) (gpu.BufferID, error)
	UploadBuffer(buf gpu.BufferID, offset int, data []byte) error
	DestroyBuffer(buf gpu.BufferID)
	BindVertexBuffer(buf gpu.BufferID, layout gpu.VertexLayout)
	BindIndexBuffer(buf gpu.BufferID)
	DrawIndexed(count int) error
}

// Mesh is an indexed triangle list with counter-clockwise front faces.
//
// Edit Vertices or Indices in place and call Invalidate to re-upload on the
// next Draw. The slice lengths must not change after the first Upload.
type Mesh struct {
	Label    string
	Vertices []Vertex
	Indices  []uint32

	vbuf, ibuf gpu.BufferID
	vcap, icap int
	dirty      bool
}

// New allocates a mesh with nv vertices and ni indices, from a when it is
// non-nil. Vertex colors start opaque white.
func New(a *arena.Arena, nv, ni int) *Mesh {
	m := &Mesh{dirty: true}
	if a != nil {
		m.Vertices = arena.AllocSlice[Vertex](a, nv)
		m.Indices = arena.AllocSlice[uint32](a, ni)
	} else {
		m.Vertices = make([]Vertex, nv)
		m.Indices = make([]uint32, ni)
	}
	for i := range m.Vertices {
		m.Vertices[i].Color = [4]float32{1, 1, 1, 1}
	}
	return m
}

// Validate checks the index list.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrNotTriangles, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("%w: index %d is %d, %d vertices", ErrIndexRange, i, idx, len(m.Vertices))
		}
	}
	return nil
}

// Invalidate marks the mesh for re-upload.
func (m *Mesh) Invalidate() { m.dirty = true }

// Uploaded reports whether the mesh has device buffers.
func (m *Mesh) Uploaded() bool { return m.vbuf != 0 }

// Upload validates the mesh and copies it to device buffers, creating them
// on first use.
func (m *Mesh) Upload(dev Device) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if len(m.Indices) == 0 {
		return ErrEmpty
	}

	vdata := make([]byte, len(m.Vertices)*VertexSize)
	off := 0
	for i := range m.Vertices {
		off = m.Vertices[i].put(vdata, off)
	}
	idata := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(idata[i*4:], idx)
	}

	var err error
	if m.vbuf, m.vcap, err = ensure(dev, m.vbuf, m.vcap, len(vdata), gpu.UsageVertex, m.Label+"_vertices"); err != nil {
		return err
	}
	if m.ibuf, m.icap, err = ensure(dev, m.ibuf, m.icap, len(idata), gpu.UsageIndex, m.Label+"_indices"); err != nil {
		return err
	}
	if err := dev.UploadBuffer(m.vbuf, 0, vdata); err != nil {
		return fmt.Errorf("mesh: upload vertices: %w", err)
	}
	if err := dev.UploadBuffer(m.ibuf, 0, idata); err != nil {
		return fmt.Errorf("mesh: upload indices: %w", err)
	}
	m.dirty = false
	return nil
}

// ensure returns a buffer of at least size bytes, replacing buf if it is
// too small.
func ensure(dev Device, buf gpu.BufferID, capacity, size int, usage gpu.BufferUsage, label string) (gpu.BufferID, int, error) {
	if buf != 0 && capacity >= size {
		return buf, capacity, nil
	}
	if buf != 0 {
		dev.DestroyBuffer(buf)
	}
	nb, err := dev.CreateBuffer(gpu.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return 0, 0, fmt.Errorf("mesh: create %s: %w", label, err)
	}
	return nb, size, nil
}

// Draw binds the mesh buffers and issues one indexed draw with whatever
// program, texture and uniforms are current. It uploads first if needed.
func (m *Mesh) Draw(dev Device) error {
	if m.dirty || m.vbuf == 0 {
		if err := m.Upload(dev); err != nil {
			return err
		}
	}
	dev.BindVertexBuffer(m.vbuf, gpu.LayoutMesh)
	dev.BindIndexBuffer(m.ibuf)
	if err := dev.DrawIndexed(len(m.Indices)); err != nil {
		return fmt.Errorf("mesh: draw: %w", err)
	}
	return nil
}

// Release destroys the device buffers. The CPU data is kept and a later
// Draw uploads again.
func (m *Mesh) Release(dev Device) {
	if m.vbuf != 0 {
		dev.DestroyBuffer(m.vbuf)
	}
	if m.ibuf != 0 {
		dev.DestroyBuffer(m.ibuf)
	}
	m.vbuf, m.ibuf = 0, 0
	m.vcap, m.icap = 0, 0
	m.dirty = true
}

// Transform applies mat to positions and its inverse transpose to normals.
func (m *Mesh) Transform(mat mgl32.Mat4) {
	nmat := mat.Mat3().Inv().Transpose()
	for i := range m.Vertices {
		v := &m.Vertices[i]
		p := mat.Mul4x1(mgl32.Vec3(v.Position).Vec4(1))
		v.Position = [3]float32(p.Vec3())
		n := nmat.Mul3x1(mgl32.Vec3(v.Normal))
		if n.Len() > 0 {
			n = n.Normalize()
		}
		v.Normal = [3]float32(n)
	}
	m.dirty = true
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return lo, hi
	}
	lo = m.Vertices[0].Position
	hi = lo
	for _, v := range m.Vertices[1:] {
		for c := range 3 {
			lo[c] = min(lo[c], v.Position[c])
			hi[c] = max(hi[c], v.Position[c])
		}
	}
	return lo, hi
}

// CalculateNormals replaces every normal with the normalised sum of the
// face normals of the triangles sharing the vertex.
func CalculateNormals(m *Mesh) {
	for i := range m.Vertices {
		m.Vertices[i].Normal = [3]float32{}
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		ia, ib, ic := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		a := mgl32.Vec3(m.Vertices[ia].Position)
		b := mgl32.Vec3(m.Vertices[ib].Position)
		c := mgl32.Vec3(m.Vertices[ic].Position)
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range [3]uint32{ia, ib, ic} {
			m.Vertices[idx].Normal = [3]float32(mgl32.Vec3(m.Vertices[idx].Normal).Add(n))
		}
	}
	for i := range m.Vertices {
		n := mgl32.Vec3(m.Vertices[i].Normal)
		if l := n.Len(); l > 0 {
			m.Vertices[i].Normal = [3]float32(n.Mul(1 / l))
		}
	}
	m.dirty = true
}

func (v *Vertex) put(dst []byte, off int) int {
	off = gpu.PutFloat32s(dst, off, v.Position[0], v.Position[1], v.Position[2])
	off = gpu.PutFloat32s(dst, off, v.Normal[0], v.Normal[1], v.Normal[2])
	off = gpu.PutFloat32s(dst, off, v.UV[0], v.UV[1])
	return gpu.PutFloat32s(dst, off, v.Color[0], v.Color[1], v.Color[2], v.Color[3])
}

func sincos(a float64) (float32, float32) {
	s, c := math.Sincos(a)
	return float32(s), float32(c)
}
