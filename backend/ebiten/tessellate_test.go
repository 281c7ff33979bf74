// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/sr/gpu"
)

func vtx(x, y, z float32) gpu.DecodedVertex {
	return gpu.DecodedVertex{Position: [3]float32{x, y, z}, Color: [4]float32{1, 1, 1, 1}}
}

func newState(shading gpu.Shading) *drawState {
	return &drawState{
		shading: shading,
		mvp:     mgl32.Ident4(),
		tint:    [4]float32{1, 1, 1, 1},
		width:   100,
		height:  50,
	}
}

func TestScreenShadingKeepsPixels(t *testing.T) {
	st := newState(gpu.ShadingScreen)
	st.texW, st.texH = 8, 4

	in := []gpu.DecodedVertex{vtx(10, 20, 0), vtx(30, 20, 0), vtx(10, 40, 0)}
	in[1].UV = [2]float32{1, 0.5}

	tris, stats := tessellate(st, in, nil)
	if len(tris) != 1 || stats.triangles != 1 {
		t.Fatalf("got %d triangles, stats %+v", len(tris), stats)
	}
	want := [][2]float32{{10, 20}, {30, 20}, {10, 40}}
	for i, v := range tris[0].v {
		if !mgl32.FloatEqual(v.DstX, want[i][0]) || !mgl32.FloatEqual(v.DstY, want[i][1]) {
			t.Errorf("vertex %d at (%v,%v), want %v", i, v.DstX, v.DstY, want[i])
		}
	}
	if v := tris[0].v[1]; v.SrcX != 8 || v.SrcY != 2 {
		t.Errorf("source texel = (%v,%v), want (8,2)", v.SrcX, v.SrcY)
	}
}

func TestNDCToViewport(t *testing.T) {
	st := newState(gpu.ShadingTextured)
	in := []gpu.DecodedVertex{vtx(-1, 1, 0), vtx(-1, -1, 0), vtx(1, -1, 0)}

	tris, _ := tessellate(st, in, nil)
	if len(tris) != 1 {
		t.Fatalf("got %d triangles", len(tris))
	}
	want := [][2]float32{{0, 0}, {0, 50}, {100, 50}}
	for i, v := range tris[0].v {
		if v.DstX != want[i][0] || v.DstY != want[i][1] {
			t.Errorf("vertex %d at (%v,%v), want %v", i, v.DstX, v.DstY, want[i])
		}
		if v.SrcX != whiteSrc || v.SrcY != whiteSrc {
			t.Errorf("untextured vertex %d samples (%v,%v)", i, v.SrcX, v.SrcY)
		}
	}
}

func TestCulling(t *testing.T) {
	ccw := []gpu.DecodedVertex{vtx(-1, -1, 0), vtx(1, -1, 0), vtx(0, 1, 0)}
	cw := []gpu.DecodedVertex{vtx(-1, -1, 0), vtx(0, 1, 0), vtx(1, -1, 0)}

	tests := []struct {
		name  string
		cull  bool
		verts []gpu.DecodedVertex
		want  int
	}{
		{"front kept", true, ccw, 1},
		{"back culled", true, cw, 0},
		{"back kept without culling", false, cw, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState(gpu.ShadingTextured)
			st.cull = tt.cull
			tris, stats := tessellate(st, tt.verts, nil)
			if len(tris) != tt.want {
				t.Errorf("got %d triangles, want %d", len(tris), tt.want)
			}
			if stats.culled != 1-tt.want {
				t.Errorf("culled = %d, want %d", stats.culled, 1-tt.want)
			}
		})
	}
}

func TestNearPlaneClipping(t *testing.T) {
	st := newState(gpu.ShadingTextured)

	behind := []gpu.DecodedVertex{vtx(-1, -1, -2), vtx(1, -1, -2), vtx(0, 1, -2)}
	tris, stats := tessellate(st, behind, nil)
	if len(tris) != 0 || stats.clipped != 1 {
		t.Errorf("fully clipped: %d triangles, stats %+v", len(tris), stats)
	}

	// One vertex behind the near plane leaves a quad, drawn as two triangles.
	straddling := []gpu.DecodedVertex{vtx(-1, -1, 0), vtx(1, -1, 0), vtx(0, 1, -3)}
	tris, stats = tessellate(st, straddling, nil)
	if len(tris) != 2 || stats.clipped != 1 {
		t.Errorf("straddling: %d triangles, stats %+v", len(tris), stats)
	}
}

func TestDepthSortBackToFront(t *testing.T) {
	st := newState(gpu.ShadingTextured)
	st.sort = true

	var in []gpu.DecodedVertex
	for _, z := range []float32{-0.5, 0.5, 0} {
		in = append(in, vtx(-1, -1, z), vtx(1, -1, z), vtx(0, 1, z))
	}
	tris, _ := tessellate(st, in, nil)
	if len(tris) != 3 {
		t.Fatalf("got %d triangles", len(tris))
	}
	for i := 1; i < len(tris); i++ {
		if tris[i].depth > tris[i-1].depth {
			t.Errorf("triangle %d depth %v after %v: not back to front", i, tris[i].depth, tris[i-1].depth)
		}
	}
}

func TestShadingColors(t *testing.T) {
	in := []gpu.DecodedVertex{vtx(-1, -1, 0), vtx(1, -1, 0), vtx(0, 1, 0)}
	in[0].Color = [4]float32{0.5, 1, 1, 1}

	tests := []struct {
		shading gpu.Shading
		want    [4]float32
	}{
		{gpu.ShadingTextured, [4]float32{0.25, 0.5, 1, 1}},
		{gpu.ShadingScreen, [4]float32{0.5, 1, 1, 1}},
		{gpu.ShadingSolid, [4]float32{0, 1, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.shading.String(), func(t *testing.T) {
			st := newState(tt.shading)
			st.tint = [4]float32{0.5, 0.5, 1, 1}
			st.solid = [4]float32{0, 1, 0, 1}
			if tt.shading == gpu.ShadingScreen {
				in := []gpu.DecodedVertex{vtx(0, 50, 0), vtx(100, 50, 0), vtx(50, 0, 0)}
				in[0].Color = [4]float32{0.5, 1, 1, 1}
				tris, _ := tessellate(st, in, nil)
				checkColor(t, tris, tt.want)
				return
			}
			tris, _ := tessellate(st, in, nil)
			checkColor(t, tris, tt.want)
		})
	}
}

func checkColor(t *testing.T, tris []triangle, want [4]float32) {
	t.Helper()
	if len(tris) != 1 {
		t.Fatalf("got %d triangles", len(tris))
	}
	v := tris[0].v[0]
	got := [4]float32{v.ColorR, v.ColorG, v.ColorB, v.ColorA}
	if got != want {
		t.Errorf("color = %v, want %v", got, want)
	}
}

func TestAppendBatch(t *testing.T) {
	tris := make([]triangle, 3)
	vs, is := appendBatch(nil, nil, tris)
	if len(vs) != 9 || len(is) != 9 {
		t.Fatalf("got %d vertices, %d indices", len(vs), len(is))
	}
	for i, idx := range is {
		if int(idx) != i {
			t.Errorf("index %d = %d", i, idx)
		}
	}
}

func TestBlendOptions(t *testing.T) {
	tests := []struct {
		enabled bool
		mode    gpu.BlendMode
		blend   eb.Blend
		scale   eb.ColorScaleMode
	}{
		{false, gpu.BlendAlpha, eb.BlendCopy, eb.ColorScaleModeStraightAlpha},
		{true, gpu.BlendAlpha, eb.BlendSourceOver, eb.ColorScaleModeStraightAlpha},
		{true, gpu.BlendAdditive, eb.BlendLighter, eb.ColorScaleModeStraightAlpha},
		{true, gpu.BlendPremultiplied, eb.BlendSourceOver, eb.ColorScaleModePremultipliedAlpha},
	}
	for _, tt := range tests {
		blend, scale := blendOptions(tt.enabled, tt.mode)
		if blend != tt.blend || scale != tt.scale {
			t.Errorf("blendOptions(%v, %v) = %+v, %v", tt.enabled, tt.mode, blend, scale)
		}
	}
}

func TestPremultiply(t *testing.T) {
	got := premultiply([]byte{255, 128, 0, 128, 10, 20, 30, 255})
	want := []byte{128, 64, 0, 128, 10, 20, 30, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("premultiply = %v, want %v", got, want)
		}
	}
}

func TestKeyMap(t *testing.T) {
	tests := map[eb.Key]gpucontext.Key{
		eb.KeyA:         gpucontext.KeyA,
		eb.KeyZ:         gpucontext.KeyZ,
		eb.KeyDigit7:    gpucontext.Key7,
		eb.KeyF12:       gpucontext.KeyF12,
		eb.KeyNumpad3:   gpucontext.KeyNumpad3,
		eb.KeyArrowUp:   gpucontext.KeyUp,
		eb.KeyEscape:    gpucontext.KeyEscape,
		eb.KeyBackquote: gpucontext.KeyGrave,
	}
	for k, want := range tests {
		if got, ok := keyMap[k]; !ok || got != want {
			t.Errorf("keyMap[%v] = %v, %v; want %v", k, got, ok, want)
		}
	}
	if _, ok := keyMap[eb.KeyF24]; ok {
		t.Error("F24 has no gpucontext equivalent but is mapped")
	}
}
