// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/sr/gpu"
)

// drawState is the bound state a draw call is tessellated with.
type drawState struct {
	shading gpu.Shading
	mvp     mgl32.Mat4
	tint    [4]float32
	solid   [4]float32
	cull    bool
	sort    bool
	width   float32 // target size in pixels
	height  float32
	texW    float32 // source image size, or 0 for the white image
	texH    float32
}

type clipVertex struct {
	pos   mgl32.Vec4
	uv    [2]float32
	color [4]float32
}

func lerpClip(a, b clipVertex, t float32) clipVertex {
	v := clipVertex{pos: a.pos.Add(b.pos.Sub(a.pos).Mul(t))}
	for i := range v.uv {
		v.uv[i] = a.uv[i] + (b.uv[i]-a.uv[i])*t
	}
	for i := range v.color {
		v.color[i] = a.color[i] + (b.color[i]-a.color[i])*t
	}
	return v
}

// triangle is a screen-space triangle ready for DrawTriangles. depth is the
// mean normalized device depth, used for back-to-front sorting.
type triangle struct {
	v     [3]eb.Vertex
	depth float32
}

type tessStats struct {
	triangles int
	culled    int
	clipped   int
}

// tessellate transforms a triangle list into screen-space triangles,
// clipping against the near plane and culling clockwise faces when
// st.cull is set. Results are appended to out.
func tessellate(st *drawState, verts []gpu.DecodedVertex, out []triangle) ([]triangle, tessStats) {
	var stats tessStats
	var poly [4]clipVertex
	for i := 0; i+2 < len(verts); i += 3 {
		stats.triangles++
		in := [3]clipVertex{
			st.transform(verts[i]),
			st.transform(verts[i+1]),
			st.transform(verts[i+2]),
		}
		n := clipNear(in, &poly)
		if n < 3 {
			stats.clipped++
			continue
		}
		if n != 3 {
			stats.clipped++
		}
		for k := 1; k+1 < n; k++ {
			t, ok := st.project(poly[0], poly[k], poly[k+1])
			if !ok {
				stats.culled++
				continue
			}
			out = append(out, t)
		}
	}
	if st.sort {
		slices.SortStableFunc(out, func(a, b triangle) int { return cmp.Compare(b.depth, a.depth) })
	}
	return out, stats
}

// transform moves a vertex to clip space and resolves its color.
func (st *drawState) transform(v gpu.DecodedVertex) clipVertex {
	cv := clipVertex{uv: v.UV, color: v.Color}
	switch st.shading {
	case gpu.ShadingScreen:
		cv.pos = mgl32.Vec4{
			v.Position[0]/st.width*2 - 1,
			1 - v.Position[1]/st.height*2,
			v.Position[2],
			1,
		}
	default:
		cv.pos = st.mvp.Mul4x1(mgl32.Vec4{v.Position[0], v.Position[1], v.Position[2], 1})
	}
	switch st.shading {
	case gpu.ShadingSolid:
		cv.color = st.solid
	case gpu.ShadingTextured:
		for i := range cv.color {
			cv.color[i] *= st.tint[i]
		}
	}
	return cv
}

// clipNear clips a triangle against z >= -w. It writes up to four vertices
// into poly and returns how many.
func clipNear(in [3]clipVertex, poly *[4]clipVertex) int {
	n := 0
	for i := range in {
		a, b := in[i], in[(i+1)%3]
		da, db := a.pos.Z()+a.pos.W(), b.pos.Z()+b.pos.W()
		if da >= 0 {
			poly[n] = a
			n++
		}
		if (da >= 0) != (db >= 0) {
			poly[n] = lerpClip(a, b, da/(da-db))
			n++
		}
	}
	return n
}

// project performs the perspective divide and viewport mapping. It reports
// false for a culled face.
func (st *drawState) project(a, b, c clipVertex) (triangle, bool) {
	in := [3]clipVertex{a, b, c}
	var ndc [3]mgl32.Vec3
	for i, v := range in {
		ndc[i] = v.pos.Vec3().Mul(1 / v.pos.W())
	}
	area := (ndc[1].X()-ndc[0].X())*(ndc[2].Y()-ndc[0].Y()) - (ndc[1].Y()-ndc[0].Y())*(ndc[2].X()-ndc[0].X())
	if st.cull && area < 0 {
		return triangle{}, false
	}

	var t triangle
	for i, v := range in {
		sx, sy := whiteSrc, whiteSrc
		if st.texW > 0 {
			sx, sy = v.uv[0]*st.texW, v.uv[1]*st.texH
		}
		t.v[i] = eb.Vertex{
			DstX:   (ndc[i].X() + 1) / 2 * st.width,
			DstY:   (1 - ndc[i].Y()) / 2 * st.height,
			SrcX:   sx,
			SrcY:   sy,
			ColorR: v.color[0],
			ColorG: v.color[1],
			ColorB: v.color[2],
			ColorA: v.color[3],
		}
		t.depth += ndc[i].Z() / 3
	}
	return t, true
}
