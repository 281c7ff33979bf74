// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sr/gpu"
)

// clipVertex is a vertex in clip space with its varyings.
type clipVertex struct {
	pos   mgl32.Vec4
	uv    [2]float32
	color [4]float32
}

func lerpClip(a, b clipVertex, t float32) clipVertex {
	var v clipVertex
	v.pos = a.pos.Add(b.pos.Sub(a.pos).Mul(t))
	for i := range v.uv {
		v.uv[i] = a.uv[i] + (b.uv[i]-a.uv[i])*t
	}
	for i := range v.color {
		v.color[i] = a.color[i] + (b.color[i]-a.color[i])*t
	}
	return v
}

// screenVertex is a vertex after the viewport transform. Varyings are
// pre-divided by w for perspective-correct interpolation.
type screenVertex struct {
	x, y, z float32
	invW    float32
	uv      [2]float32
	color   [4]float32
}

// drawState is everything a draw reads, resolved once per call.
type drawState struct {
	shading gpu.Shading
	mvp     mgl32.Mat4
	tint    [4]float32
	tex     *texture
}

// DrawArrays implements gpu.Device.
func (d *Device) DrawArrays(first, count int) error {
	data, n, err := d.vertexData()
	if err != nil {
		return err
	}
	if first < 0 || count < 0 || first+count > n {
		return fmt.Errorf("%w: draw [%d,%d) of %d vertices", gpu.ErrOutOfRange, first, first+count, n)
	}
	st, ok := d.resolve()
	if !ok {
		return nil
	}
	d.stats.DrawCalls++
	for i := first; i+3 <= first+count; i += 3 {
		d.triangle(st, data, i, i+1, i+2)
	}
	d.fill(st)
	return nil
}

// DrawIndexed implements gpu.Device.
func (d *Device) DrawIndexed(count int) error {
	data, n, err := d.vertexData()
	if err != nil {
		return err
	}
	ib, ok := d.buffers[d.ibuf]
	if !ok {
		return gpu.ErrNoIndexBuffer
	}
	if count < 0 || count*4 > len(ib.data) {
		return fmt.Errorf("%w: %d indices, buffer holds %d", gpu.ErrOutOfRange, count, len(ib.data)/4)
	}
	idx := make([]int, count)
	for i := range idx {
		v := int(binary.LittleEndian.Uint32(ib.data[i*4:]))
		if v >= n {
			return fmt.Errorf("%w: index %d = %d, %d vertices", gpu.ErrOutOfRange, i, v, n)
		}
		idx[i] = v
	}
	st, ok := d.resolve()
	if !ok {
		return nil
	}
	d.stats.DrawCalls++
	for i := 0; i+3 <= count; i += 3 {
		d.triangle(st, data, idx[i], idx[i+1], idx[i+2])
	}
	d.fill(st)
	return nil
}

func (d *Device) vertexData() ([]byte, int, error) {
	if d.destroyed {
		return nil, 0, gpu.ErrDeviceDestroyed
	}
	vb, ok := d.buffers[d.vbuf]
	if !ok || d.layout.Stride <= 0 {
		return nil, 0, gpu.ErrNoVertexBuffer
	}
	return vb.data, len(vb.data) / d.layout.Stride, nil
}

// resolve gathers the bound program and texture. Drawing without a program
// produces nothing, like a GPU with no pipeline.
func (d *Device) resolve() (drawState, bool) {
	p, ok := d.programs[d.prog]
	if !ok {
		d.log.Warn("software: draw without a program")
		return drawState{}, false
	}
	st := drawState{
		shading: p.desc.Shading,
		mvp:     mgl32.Mat4(p.uniforms[gpu.UniformMVP].F),
		tint:    p.uniforms[gpu.UniformTint].Vec4Value(),
		tex:     d.textures[d.tex],
	}
	if st.shading == gpu.ShadingSolid {
		st.tint = p.desc.SolidColor
	}
	return st, true
}

func (d *Device) transform(st drawState, v gpu.DecodedVertex) clipVertex {
	cv := clipVertex{uv: v.UV, color: v.Color}
	p := v.Position
	if st.shading == gpu.ShadingScreen {
		w, h := d.Size()
		cv.pos = mgl32.Vec4{p[0]/float32(w)*2 - 1, 1 - p[1]/float32(h)*2, 0, 1}
		return cv
	}
	cv.pos = st.mvp.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1})
	return cv
}

// Parallel fill thresholds. Smaller draws are filled on the calling
// goroutine.
const (
	minParallelTriangles = 8
	minBandRows          = 32
)

func (d *Device) triangle(st drawState, data []byte, i0, i1, i2 int) {
	d.stats.Triangles++
	in := [3]clipVertex{
		d.transform(st, gpu.DecodeVertex(data, d.layout, i0)),
		d.transform(st, gpu.DecodeVertex(data, d.layout, i1)),
		d.transform(st, gpu.DecodeVertex(data, d.layout, i2)),
	}

	poly, clipped := clipNear(in)
	if clipped {
		d.stats.Clipped++
	}
	if len(poly) < 3 {
		return
	}
	sv := make([]screenVertex, len(poly))
	for i, v := range poly {
		sv[i] = d.viewport(v)
	}
	for i := 1; i+1 < len(sv); i++ {
		d.setup(sv[0], sv[i], sv[i+1])
	}
}

// clipNear clips a triangle against the near plane z >= -w.
func clipNear(in [3]clipVertex) ([]clipVertex, bool) {
	inside := func(v clipVertex) bool { return v.pos.Z() >= -v.pos.W() }
	if inside(in[0]) && inside(in[1]) && inside(in[2]) {
		return in[:], false
	}
	out := make([]clipVertex, 0, 4)
	for i := range in {
		a, b := in[i], in[(i+1)%3]
		da, db := a.pos.Z()+a.pos.W(), b.pos.Z()+b.pos.W()
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpClip(a, b, da/(da-db)))
		}
	}
	return out, true
}

func (d *Device) viewport(v clipVertex) screenVertex {
	w, h := d.Size()
	invW := 1 / v.pos.W()
	nx, ny, nz := v.pos.X()*invW, v.pos.Y()*invW, v.pos.Z()*invW
	sv := screenVertex{
		x:    (nx + 1) / 2 * float32(w),
		y:    (1 - ny) / 2 * float32(h),
		z:    (nz + 1) / 2,
		invW: invW,
	}
	for i := range sv.uv {
		sv.uv[i] = v.uv[i] * invW
	}
	for i := range sv.color {
		sv.color[i] = v.color[i] * invW
	}
	return sv
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (px-a.x)*(b.y-a.y) - (py-a.y)*(b.x-a.x)
}

// owns reports whether pixels exactly on edge a->b belong to this triangle.
// Two triangles sharing an edge traverse it in opposite directions, so
// exactly one of them owns it.
func owns(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x < a.x)
}

func covered(w float32, own bool) bool {
	return w > 0 || (w == 0 && own)
}

// screenTriangle is a triangle ready for scan conversion, wound so its
// area is positive, with its pixel bounds clamped to the target.
type screenTriangle struct {
	v                      [3]screenVertex
	area                   float32
	own                    [3]bool
	minX, maxX, minY, maxY int
}

// setup culls and bounds a triangle and queues it for fill.
func (d *Device) setup(v0, v1, v2 screenVertex) {
	area := edge(v0, v1, v2.x, v2.y)
	if area == 0 {
		return
	}
	// Screen y points down, so a triangle that is counter-clockwise in
	// normalized device coordinates (a front face) has positive area here.
	if d.toggles[gpu.FaceCulling] && area < 0 {
		d.stats.Culled++
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}

	w, h := d.Size()
	t := screenTriangle{
		v:    [3]screenVertex{v0, v1, v2},
		area: area,
		own:  [3]bool{owns(v1, v2), owns(v2, v0), owns(v0, v1)},
		minX: max(int(math.Floor(float64(min(v0.x, v1.x, v2.x)))), 0),
		maxX: min(int(math.Ceil(float64(max(v0.x, v1.x, v2.x)))), w-1),
		minY: max(int(math.Floor(float64(min(v0.y, v1.y, v2.y)))), 0),
		maxY: min(int(math.Ceil(float64(max(v0.y, v1.y, v2.y)))), h-1),
	}
	if t.minX > t.maxX || t.minY > t.maxY {
		return
	}
	d.tris = append(d.tris, t)
}

// fill scan-converts the queued triangles. The target is split into
// horizontal bands filled concurrently; each band walks every triangle in
// submission order, so per-pixel paint order is preserved.
func (d *Device) fill(st drawState) {
	if len(d.tris) == 0 {
		return
	}
	_, h := d.Size()
	pool := d.pool
	bands := 1
	if pool != nil && len(d.tris) >= minParallelTriangles {
		bands = min(pool.Workers(), h/minBandRows)
	}
	if bands <= 1 {
		d.stats.Fragments += d.fillRows(st, 0, h)
		d.tris = d.tris[:0]
		return
	}

	rows := (h + bands - 1) / bands
	counts := make([]int, bands)
	pool.Range(bands, func(i int) {
		counts[i] = d.fillRows(st, i*rows, min((i+1)*rows, h))
	})
	for _, n := range counts {
		d.stats.Fragments += n
	}
	d.tris = d.tris[:0]
}

// fillRows draws the queued triangles' pixels in rows [y0, y1) and returns
// how many fragments it shaded. It touches only those rows of the color
// and depth targets.
func (d *Device) fillRows(st drawState, y0, y1 int) int {
	w, _ := d.Size()
	depthTest := d.toggles[gpu.DepthTest]
	fragments := 0
	for ti := range d.tris {
		t := &d.tris[ti]
		v0, v1, v2 := t.v[0], t.v[1], t.v[2]
		for y := max(t.minY, y0); y <= min(t.maxY, y1-1); y++ {
			py := float32(y) + 0.5
			for x := t.minX; x <= t.maxX; x++ {
				px := float32(x) + 0.5
				w0 := edge(v1, v2, px, py)
				w1 := edge(v2, v0, px, py)
				w2 := edge(v0, v1, px, py)
				if !covered(w0, t.own[0]) || !covered(w1, t.own[1]) || !covered(w2, t.own[2]) {
					continue
				}
				l0, l1, l2 := w0/t.area, w1/t.area, w2/t.area

				z := l0*v0.z + l1*v1.z + l2*v2.z
				di := y*w + x
				if depthTest {
					if z < 0 || z >= d.depth[di] {
						continue
					}
					d.depth[di] = z
				}

				invW := l0*v0.invW + l1*v1.invW + l2*v2.invW
				var uv [2]float32
				for i := range uv {
					uv[i] = (l0*v0.uv[i] + l1*v1.uv[i] + l2*v2.uv[i]) / invW
				}
				var col [4]float32
				for i := range col {
					col[i] = (l0*v0.color[i] + l1*v1.color[i] + l2*v2.color[i]) / invW
				}

				fragments++
				d.write(x, y, d.shade(st, uv, col))
			}
		}
	}
	return fragments
}

// shade evaluates the program's shading model for one fragment.
func (d *Device) shade(st drawState, uv [2]float32, col [4]float32) [4]float32 {
	if st.shading == gpu.ShadingSolid {
		return st.tint
	}
	t := [4]float32{1, 1, 1, 1}
	if st.tex != nil {
		t = st.tex.sample(uv[0], uv[1])
	}
	for i := range t {
		t[i] *= col[i]
		if st.shading == gpu.ShadingTextured {
			t[i] *= st.tint[i]
		}
	}
	return t
}

func (d *Device) write(x, y int, src [4]float32) {
	off := d.color.PixOffset(x, y)
	px := d.color.Pix[off : off+4 : off+4]
	if !d.toggles[gpu.Blending] {
		for i := range px {
			px[i] = to8(src[i])
		}
		return
	}
	a := clamp01(src[3])
	for i := range px {
		dst := float32(px[i]) / 255
		var out float32
		switch d.blend {
		case gpu.BlendAdditive:
			out = src[i]*a + dst
		case gpu.BlendPremultiplied:
			out = src[i] + dst*(1-a)
		default:
			out = src[i]*a + dst*(1-a)
		}
		px[i] = to8(out)
	}
}

// sample reads the texture at uv with repeat wrapping.
func (t *texture) sample(u, v float32) [4]float32 {
	if t.nearest {
		x := wrap(int(math.Floor(float64(u*float32(t.width)))), t.width)
		y := wrap(int(math.Floor(float64(v*float32(t.height)))), t.height)
		return t.texel(x, y)
	}

	fx := u*float32(t.width) - 0.5
	fy := v*float32(t.height) - 0.5
	x0, y0 := int(math.Floor(float64(fx))), int(math.Floor(float64(fy)))
	tx, ty := fx-float32(x0), fy-float32(y0)
	x1, y1 := wrap(x0+1, t.width), wrap(y0+1, t.height)
	x0, y0 = wrap(x0, t.width), wrap(y0, t.height)

	c00, c10 := t.texel(x0, y0), t.texel(x1, y0)
	c01, c11 := t.texel(x0, y1), t.texel(x1, y1)
	var out [4]float32
	for i := range out {
		top := c00[i] + (c10[i]-c00[i])*tx
		bottom := c01[i] + (c11[i]-c01[i])*tx
		out[i] = top + (bottom-top)*ty
	}
	return out
}

func (t *texture) texel(x, y int) [4]float32 {
	off := (y*t.width + x) * 4
	p := t.pix[off : off+4 : off+4]
	return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func clamp01(v float32) float32 { return min(max(v, 0), 1) }

func to8(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v)) * 255))
}
