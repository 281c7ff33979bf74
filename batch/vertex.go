package batch

import "github.com/gogpu/sr/gpu"

// VertexSize is the packed size of a Vertex in bytes (gpu.LayoutBatch).
const VertexSize = 36

// Vertex is a screen-space batch vertex. Position X/Y are framebuffer pixels
// with the origin at the top left; Z is 0 for 2D content.
type Vertex struct {
	Position [3]float32
	UV       [2]float32
	Color    [4]float32 // RGBA, each channel in [0,1]
}

// put packs v little-endian at dst[off:] and returns the next offset.
func (v *Vertex) put(dst []byte, off int) int {
	off = gpu.PutFloat32s(dst, off, v.Position[0], v.Position[1], v.Position[2])
	off = gpu.PutFloat32s(dst, off, v.UV[0], v.UV[1])
	return gpu.PutFloat32s(dst, off, v.Color[0], v.Color[1], v.Color[2], v.Color[3])
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, W, H float32
}

// AppendQuad appends the two triangles covering dst, sampling src in UV
// space, to vs. Winding is clockwise on screen (top-left, top-right,
// bottom-right; top-left, bottom-right, bottom-left).
func AppendQuad(vs []Vertex, dst, src Rect, color [4]float32) []Vertex {
	l, r := dst.X, dst.X+dst.W
	t, b := dst.Y, dst.Y+dst.H
	u0, u1 := src.X, src.X+src.W
	v0, v1 := src.Y, src.Y+src.H

	return append(vs,
		Vertex{[3]float32{l, t, 0}, [2]float32{u0, v0}, color},
		Vertex{[3]float32{r, t, 0}, [2]float32{u1, v0}, color},
		Vertex{[3]float32{r, b, 0}, [2]float32{u1, v1}, color},
		Vertex{[3]float32{l, t, 0}, [2]float32{u0, v0}, color},
		Vertex{[3]float32{r, b, 0}, [2]float32{u1, v1}, color},
		Vertex{[3]float32{l, b, 0}, [2]float32{u0, v1}, color},
	)
}

// FullUV is the whole texture in UV space.
var FullUV = Rect{0, 0, 1, 1}
