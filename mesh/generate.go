package mesh

import (
	"fmt"
	"math"

	"github.com/gogpu/sr/arena"
)

// Quad returns a unit quad in the XY plane facing +Z.
func Quad(a *arena.Arena) *Mesh {
	m := New(a, 4, 6)
	m.Label = "quad"
	pos := [4][3]float32{{0.5, 0.5, 0}, {0.5, -0.5, 0}, {-0.5, -0.5, 0}, {-0.5, 0.5, 0}}
	uv := [4][2]float32{{1, 1}, {1, 0}, {0, 0}, {0, 1}}
	for i := range m.Vertices {
		m.Vertices[i].Position = pos[i]
		m.Vertices[i].UV = uv[i]
		m.Vertices[i].Normal = [3]float32{0, 0, 1}
	}
	copy(m.Indices, []uint32{0, 3, 1, 1, 3, 2})
	return m
}

// cubeFaces lists each face's corners in index order 0..3, with the face
// normal and a debug color.
var cubeFaces = [6]struct {
	corners [4][3]float32
	normal  [3]float32
	color   [4]float32
	tris    [6]uint32
}{
	{ // front
		corners: [4][3]float32{{0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}},
		normal:  [3]float32{0, 0, 1},
		color:   [4]float32{1, 0, 0, 1},
		tris:    [6]uint32{0, 2, 1, 0, 3, 2},
	},
	{ // back
		corners: [4][3]float32{{0.5, 0.5, -0.5}, {0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}},
		normal:  [3]float32{0, 0, -1},
		color:   [4]float32{0, 1, 0, 1},
		tris:    [6]uint32{0, 1, 2, 0, 2, 3},
	},
	{ // left
		corners: [4][3]float32{{-0.5, 0.5, 0.5}, {-0.5, -0.5, 0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}},
		normal:  [3]float32{-1, 0, 0},
		color:   [4]float32{0, 0, 1, 1},
		tris:    [6]uint32{0, 2, 1, 0, 3, 2},
	},
	{ // right
		corners: [4][3]float32{{0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}},
		normal:  [3]float32{1, 0, 0},
		color:   [4]float32{1, 1, 0, 1},
		tris:    [6]uint32{0, 1, 2, 0, 2, 3},
	},
	{ // top
		corners: [4][3]float32{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}},
		normal:  [3]float32{0, 1, 0},
		color:   [4]float32{0, 1, 1, 1},
		tris:    [6]uint32{0, 1, 2, 0, 2, 3},
	},
	{ // bottom
		corners: [4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}},
		normal:  [3]float32{0, -1, 0},
		color:   [4]float32{1, 0, 1, 1},
		tris:    [6]uint32{0, 3, 2, 0, 2, 1},
	},
}

// Cube returns a unit cube centred on the origin: 24 vertices so each face
// has its own normal, UVs and color.
func Cube(a *arena.Arena) *Mesh {
	m := New(a, 24, 36)
	m.Label = "cube"
	uv := [4][2]float32{{1, 1}, {1, 0}, {0, 0}, {0, 1}}
	for f, face := range cubeFaces {
		base := f * 4
		for c := range 4 {
			m.Vertices[base+c] = Vertex{
				Position: face.corners[c],
				Normal:   face.normal,
				UV:       uv[c],
				Color:    face.color,
			}
		}
		for i, t := range face.tris {
			m.Indices[f*6+i] = uint32(base) + t
		}
	}
	return m
}

// Plane returns a size x size vertex grid on the XZ plane facing +Y, one unit
// between vertices, with its corner at the origin.
func Plane(a *arena.Arena, size int) (*Mesh, error) {
	if size < 2 {
		return nil, fmt.Errorf("mesh: plane size %d, want >= 2", size)
	}
	cells := size - 1
	m := New(a, size*size, cells*cells*6)
	m.Label = "plane"
	for z := range size {
		for x := range size {
			v := &m.Vertices[z*size+x]
			v.Position = [3]float32{float32(x), 0, float32(z)}
			v.Normal = [3]float32{0, 1, 0}
			v.UV = [2]float32{float32(x) / float32(cells), float32(z) / float32(cells)}
		}
	}
	i := 0
	for z := range cells {
		for x := range cells {
			idx := uint32(z*size + x)
			s := uint32(size)
			copy(m.Indices[i:], []uint32{idx, idx + s + 1, idx + 1, idx, idx + s, idx + s + 1})
			i += 6
		}
	}
	return m, nil
}

// UVSphere returns a unit-radius sphere with n rings and n segments. Normals
// point outward.
func UVSphere(a *arena.Arena, n int) (*Mesh, error) {
	if n < 3 {
		return nil, fmt.Errorf("mesh: sphere resolution %d, want >= 3", n)
	}
	nv := (n-1)*n + 2
	m := New(a, nv, (n-1)*n*6)
	m.Label = "sphere"

	top, bottom := 0, nv-1
	m.Vertices[top].Position = [3]float32{0, 1, 0}
	m.Vertices[top].UV = [2]float32{0.5, 0}
	m.Vertices[bottom].Position = [3]float32{0, -1, 0}
	m.Vertices[bottom].UV = [2]float32{0.5, 1}

	for ring := range n - 1 {
		sp, cp := sincos(math.Pi * float64(ring+1) / float64(n))
		for seg := range n {
			sa, ca := sincos(2 * math.Pi * float64(seg) / float64(n))
			v := &m.Vertices[1+ring*n+seg]
			v.Position = [3]float32{sp * ca, cp, sp * sa}
			v.UV = [2]float32{float32(seg) / float32(n), float32(ring+1) / float32(n)}
		}
	}

	idx := m.Indices[:0]
	for seg := range n {
		next := (seg + 1) % n
		idx = append(idx, uint32(top), uint32(1+next), uint32(1+seg))
	}
	for ring := range n - 2 {
		upper, lower := 1+ring*n, 1+(ring+1)*n
		for seg := range n {
			next := (seg + 1) % n
			t1, t2 := uint32(upper+seg), uint32(upper+next)
			t3, t4 := uint32(lower+seg), uint32(lower+next)
			idx = append(idx, t1, t2, t4, t1, t4, t3)
		}
	}
	last := 1 + (n-2)*n
	for seg := range n {
		next := (seg + 1) % n
		idx = append(idx, uint32(bottom), uint32(last+seg), uint32(last+next))
	}
	m.Indices = idx

	CalculateNormals(m)
	return m, nil
}
