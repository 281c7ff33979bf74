// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"encoding/binary"
	"fmt"

	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/sr/gpu"
)

// maxTrianglesPerBatch keeps each DrawTriangles call within uint16 indices.
const maxTrianglesPerBatch = eb.MaxIndicesCount / 3

// DrawArrays implements gpu.Device.
func (d *Device) DrawArrays(first, count int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	vb, ok := d.buffers[d.vbuf]
	if !ok {
		return gpu.ErrNoVertexBuffer
	}
	if first < 0 || count < 0 || d.layout.Stride <= 0 || (first+count)*d.layout.Stride > len(vb.data) {
		return fmt.Errorf("%w: draw [%d,%d) from %q of %d bytes, stride %d",
			gpu.ErrOutOfRange, first, first+count, vb.label, len(vb.data), d.layout.Stride)
	}
	d.decoded = d.decoded[:0]
	for i := first; i < first+count; i++ {
		d.decoded = append(d.decoded, gpu.DecodeVertex(vb.data, d.layout, i))
	}
	return d.draw()
}

// DrawIndexed implements gpu.Device.
func (d *Device) DrawIndexed(count int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	vb, ok := d.buffers[d.vbuf]
	if !ok {
		return gpu.ErrNoVertexBuffer
	}
	ib, ok := d.buffers[d.ibuf]
	if !ok {
		return gpu.ErrNoIndexBuffer
	}
	if count < 0 || count*4 > len(ib.data) || d.layout.Stride <= 0 {
		return fmt.Errorf("%w: %d indices from %q of %d bytes", gpu.ErrOutOfRange, count, ib.label, len(ib.data))
	}
	n := len(vb.data) / d.layout.Stride
	d.decoded = d.decoded[:0]
	for i := range count {
		idx := int(binary.LittleEndian.Uint32(ib.data[i*4:]))
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d, %q holds %d vertices", gpu.ErrOutOfRange, idx, i, vb.label, n)
		}
		d.decoded = append(d.decoded, gpu.DecodeVertex(vb.data, d.layout, idx))
	}
	return d.draw()
}

// draw tessellates the decoded vertices with the bound state and submits
// them in as few DrawTriangles calls as the index limit allows.
func (d *Device) draw() error {
	p, ok := d.programs[d.prog]
	if !ok {
		d.log.Warn("ebiten: draw without a program", "program", d.prog)
		return nil
	}

	st := drawState{
		shading: p.desc.Shading,
		mvp:     p.mvp,
		tint:    p.tint,
		solid:   p.desc.SolidColor,
		cull:    d.toggles[gpu.FaceCulling],
		sort:    d.toggles[gpu.DepthTest],
		width:   float32(d.width),
		height:  float32(d.height),
	}
	src, filter := d.white, eb.FilterNearest
	if t, ok := d.textures[d.tex]; ok {
		src = t.img
		st.texW, st.texH = float32(t.width), float32(t.height)
		if !t.nearest {
			filter = eb.FilterLinear
		}
	}

	var ts tessStats
	d.tris, ts = tessellate(&st, d.decoded, d.tris[:0])
	d.stats.DrawCalls++
	d.stats.Triangles += ts.triangles
	d.stats.Culled += ts.culled
	d.stats.Clipped += ts.clipped

	blend, scale := blendOptions(d.toggles[gpu.Blending], d.blend)
	opts := &eb.DrawTrianglesOptions{
		Blend:          blend,
		ColorScaleMode: scale,
		Filter:         filter,
		Address:        eb.AddressRepeat,
	}
	for start := 0; start < len(d.tris); start += maxTrianglesPerBatch {
		end := min(start+maxTrianglesPerBatch, len(d.tris))
		d.vertices, d.indices = appendBatch(d.vertices[:0], d.indices[:0], d.tris[start:end])
		d.target.DrawTriangles(d.vertices, d.indices, src, opts)
		d.stats.Batches++
	}
	return nil
}

// appendBatch flattens triangles into a vertex list with sequential
// indices.
func appendBatch(vs []eb.Vertex, is []uint16, tris []triangle) ([]eb.Vertex, []uint16) {
	for _, t := range tris {
		base := uint16(len(vs))
		vs = append(vs, t.v[:]...)
		is = append(is, base, base+1, base+2)
	}
	return vs, is
}

// blendOptions maps the blend toggle and mode to an Ebitengine blend and
// the encoding of vertex colors.
func blendOptions(enabled bool, m gpu.BlendMode) (eb.Blend, eb.ColorScaleMode) {
	if !enabled {
		return eb.BlendCopy, eb.ColorScaleModeStraightAlpha
	}
	switch m {
	case gpu.BlendAdditive:
		return eb.BlendLighter, eb.ColorScaleModeStraightAlpha
	case gpu.BlendPremultiplied:
		return eb.BlendSourceOver, eb.ColorScaleModePremultipliedAlpha
	default:
		return eb.BlendSourceOver, eb.ColorScaleModeStraightAlpha
	}
}
