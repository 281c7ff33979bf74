package software

import (
	"errors"
	"image/color"
	"testing"

	"github.com/gogpu/sr/gpu"
)

// vtx is a batch-layout vertex: position, uv, color.
type vtx struct {
	x, y, z float32
	u, v    float32
	c       [4]float32
}

var (
	red   = [4]float32{1, 0, 0, 1}
	green = [4]float32{0, 1, 0, 1}
	white = [4]float32{1, 1, 1, 1}
)

func pack(vs ...vtx) []byte {
	data := make([]byte, len(vs)*gpu.LayoutBatch.Stride)
	off := 0
	for _, v := range vs {
		off = gpu.PutFloat32s(data, off, v.x, v.y, v.z, v.u, v.v, v.c[0], v.c[1], v.c[2], v.c[3])
	}
	return data
}

// quad returns two triangles covering [x0,x1]x[y0,y1] with full UVs.
func quad(x0, y0, x1, y1, z float32, c [4]float32) []vtx {
	tl := vtx{x0, y0, z, 0, 0, c}
	tr := vtx{x1, y0, z, 1, 0, c}
	br := vtx{x1, y1, z, 1, 1, c}
	bl := vtx{x0, y1, z, 0, 1, c}
	return []vtx{tl, tr, br, tl, br, bl}
}

type fixture struct {
	t   *testing.T
	dev *Device
}

func newFixture(t *testing.T, w, h int) *fixture {
	t.Helper()
	d := New(w, h)
	t.Cleanup(d.Destroy)
	return &fixture{t: t, dev: d}
}

func (f *fixture) program(shading gpu.Shading, solid [4]float32) gpu.ProgramID {
	f.t.Helper()
	p, err := f.dev.CreateProgram(gpu.ProgramDescriptor{Label: shading.String(), Shading: shading, SolidColor: solid})
	if err != nil {
		f.t.Fatal(err)
	}
	f.dev.UseProgram(p)
	return p
}

func (f *fixture) draw(vs []vtx) {
	f.t.Helper()
	data := pack(vs...)
	buf, err := f.dev.CreateBuffer(gpu.BufferDescriptor{Size: len(data), Usage: gpu.UsageVertex})
	if err != nil {
		f.t.Fatal(err)
	}
	if err := f.dev.UploadBuffer(buf, 0, data); err != nil {
		f.t.Fatal(err)
	}
	f.dev.BindVertexBuffer(buf, gpu.LayoutBatch)
	if err := f.dev.DrawArrays(0, len(vs)); err != nil {
		f.t.Fatalf("DrawArrays() error = %v", err)
	}
	f.dev.DestroyBuffer(buf)
}

func (f *fixture) pixel(x, y int) color.NRGBA {
	f.t.Helper()
	if err := f.dev.Present(); err != nil {
		f.t.Fatal(err)
	}
	return f.dev.Frame().NRGBAAt(x, y)
}

func TestClearAndPresent(t *testing.T) {
	f := newFixture(t, 4, 3)
	if err := f.dev.Clear([4]float32{0.2, 0.4, 0.6, 1}, true); err != nil {
		t.Fatal(err)
	}
	if got := f.dev.Frame().NRGBAAt(1, 1); got != (color.NRGBA{}) {
		t.Errorf("Frame before Present = %v, want zero", got)
	}
	want := color.NRGBA{51, 102, 153, 255}
	for y := range 3 {
		for x := range 4 {
			if got := f.pixel(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestScreenQuadCoversExactly(t *testing.T) {
	f := newFixture(t, 8, 8)
	f.dev.Clear([4]float32{0, 0, 0, 1}, false)
	f.program(gpu.ShadingScreen, [4]float32{})
	f.draw(quad(2, 2, 6, 6, 0, red))

	for y := range 8 {
		for x := range 8 {
			inside := x >= 2 && x < 6 && y >= 2 && y < 6
			got := f.pixel(x, y)
			if inside && got.R != 255 || !inside && got.R != 0 {
				t.Errorf("pixel (%d,%d) = %v, inside=%v", x, y, got, inside)
			}
		}
	}
	// 16 pixels, none drawn twice along the shared diagonal.
	if s := f.dev.Stats(); s.Fragments != 16 || s.Triangles != 2 {
		t.Errorf("Stats() = %+v, want 16 fragments from 2 triangles", s)
	}
}

func TestDepthTest(t *testing.T) {
	tests := []struct {
		name  string
		depth bool
		want  uint8 // green channel of the center pixel
	}{
		{"enabled keeps nearer", true, 0},
		{"disabled keeps last", false, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 4, 4)
			f.dev.Clear([4]float32{0, 0, 0, 1}, true)
			f.dev.SetToggle(gpu.DepthTest, tt.depth)
			f.program(gpu.ShadingTextured, [4]float32{})
			f.draw(quad(-1, 1, 1, -1, -0.5, red))
			f.draw(quad(-1, 1, 1, -1, 0.5, green))
			if got := f.pixel(2, 2); got.G != tt.want {
				t.Errorf("pixel = %v, want G=%d", got, tt.want)
			}
		})
	}
}

func TestFaceCulling(t *testing.T) {
	// Counter-clockwise in NDC: a front face.
	front := []vtx{{-1, -1, 0, 0, 0, white}, {1, -1, 0, 0, 0, white}, {-1, 1, 0, 0, 0, white}}
	back := []vtx{front[0], front[2], front[1]}

	f := newFixture(t, 4, 4)
	f.dev.SetToggle(gpu.FaceCulling, true)
	f.program(gpu.ShadingTextured, [4]float32{})
	f.draw(front)
	f.draw(back)

	if s := f.dev.Stats(); s.Culled != 1 {
		t.Errorf("Culled = %d, want 1", s.Culled)
	}
	if got := f.pixel(0, 3); got.R != 255 {
		t.Errorf("front face not drawn: %v", got)
	}

	f.dev.SetToggle(gpu.FaceCulling, false)
	f.draw(back)
	if s := f.dev.Stats(); s.Culled != 1 {
		t.Errorf("Culled = %d after disabling culling, want 1", s.Culled)
	}
}

func TestBlendModes(t *testing.T) {
	tests := []struct {
		name  string
		mode  gpu.BlendMode
		clear [4]float32
		src   [4]float32
		want  [2]uint8 // R, G
	}{
		{"alpha", gpu.BlendAlpha, [4]float32{0, 0, 0, 1}, [4]float32{1, 1, 1, 0.5}, [2]uint8{128, 128}},
		{"additive", gpu.BlendAdditive, [4]float32{0.25, 0.25, 0.25, 1}, red, [2]uint8{255, 64}},
		{"premultiplied", gpu.BlendPremultiplied, [4]float32{0, 0, 0, 1}, [4]float32{0.5, 0, 0, 0.5}, [2]uint8{128, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2, 2)
			f.dev.Clear(tt.clear, false)
			f.dev.SetToggle(gpu.Blending, true)
			f.dev.SetBlendMode(tt.mode)
			f.program(gpu.ShadingScreen, [4]float32{})
			f.draw(quad(0, 0, 2, 2, 0, tt.src))
			got := f.pixel(0, 0)
			if got.R != tt.want[0] || got.G != tt.want[1] {
				t.Errorf("pixel = %v, want R=%d G=%d", got, tt.want[0], tt.want[1])
			}
		})
	}
}

func TestNearestTextureSampling(t *testing.T) {
	f := newFixture(t, 4, 4)
	pix := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
	tex, err := f.dev.CreateTexture(gpu.TextureDescriptor{Width: 2, Height: 2, Pixels: pix, Nearest: true})
	if err != nil {
		t.Fatal(err)
	}
	f.dev.BindTexture(0, tex)
	f.program(gpu.ShadingScreen, [4]float32{})
	f.draw(quad(0, 0, 4, 4, 0, white))

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, color.NRGBA{255, 0, 0, 255}},
		{3, 0, color.NRGBA{0, 255, 0, 255}},
		{1, 3, color.NRGBA{0, 0, 255, 255}},
		{2, 2, color.NRGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := f.pixel(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestShadingModels(t *testing.T) {
	f := newFixture(t, 2, 2)
	prog := f.program(gpu.ShadingTextured, [4]float32{})
	f.dev.SetUniform(gpu.UniformTint, gpu.Vec4([4]float32{0, 1, 0, 1}))
	f.draw(quad(-1, 1, 1, -1, 0, white))
	if got := f.pixel(0, 0); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("textured with tint = %v", got)
	}

	f.program(gpu.ShadingSolid, [4]float32{1, 0, 1, 1})
	f.draw(quad(-1, 1, 1, -1, 0, white))
	if got := f.pixel(1, 1); got != (color.NRGBA{255, 0, 255, 255}) {
		t.Errorf("solid = %v", got)
	}

	// Uniforms stay with their program.
	f.dev.UseProgram(prog)
	f.dev.SetUniform(gpu.UniformMVP, gpu.Mat4([16]float32{
		0.25, 0, 0, 0,
		0, 0.25, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}))
	f.dev.Clear([4]float32{0, 0, 0, 1}, false)
	f.dev.SetUniform(gpu.UniformTint, gpu.Vec4(white))
	f.draw(quad(-1, 1, 1, -1, 0, red))
	// Scaled to a quarter, the quad covers no pixel centre of a 2x2 target.
	if s := f.dev.Stats(); s.Fragments != 8 {
		t.Errorf("Fragments = %d, want 8", s.Fragments)
	}
}

func TestNearPlaneClipping(t *testing.T) {
	f := newFixture(t, 4, 4)
	f.program(gpu.ShadingTextured, [4]float32{})
	// One vertex behind the near plane (z < -w).
	f.draw([]vtx{{-1, -1, -2, 0, 0, red}, {1, -1, 0, 0, 0, red}, {-1, 1, 0, 0, 0, red}})
	if s := f.dev.Stats(); s.Clipped != 1 || s.Fragments == 0 {
		t.Errorf("Stats() = %+v, want one clipped triangle with fragments", s)
	}
}

func TestDrawErrors(t *testing.T) {
	f := newFixture(t, 4, 4)
	if err := f.dev.DrawArrays(0, 3); !errors.Is(err, gpu.ErrNoVertexBuffer) {
		t.Errorf("DrawArrays without buffer = %v", err)
	}

	buf, _ := f.dev.CreateBuffer(gpu.BufferDescriptor{Size: 3 * gpu.LayoutBatch.Stride})
	f.dev.BindVertexBuffer(buf, gpu.LayoutBatch)
	if err := f.dev.DrawArrays(0, 6); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("DrawArrays past end = %v", err)
	}
	if err := f.dev.DrawIndexed(3); !errors.Is(err, gpu.ErrNoIndexBuffer) {
		t.Errorf("DrawIndexed without index buffer = %v", err)
	}

	ib, _ := f.dev.CreateBuffer(gpu.BufferDescriptor{Size: 12, Usage: gpu.UsageIndex})
	f.dev.UploadBuffer(ib, 0, []byte{0, 0, 0, 0, 1, 0, 0, 0, 7, 0, 0, 0})
	f.dev.BindIndexBuffer(ib)
	if err := f.dev.DrawIndexed(3); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("DrawIndexed with bad index = %v", err)
	}

	if err := f.dev.UploadBuffer(99, 0, nil); !errors.Is(err, gpu.ErrInvalidHandle) {
		t.Errorf("UploadBuffer(99) = %v", err)
	}
	if err := f.dev.UploadBuffer(buf, 100, make([]byte, 100)); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("UploadBuffer overflow = %v", err)
	}
	if _, err := f.dev.CreateTexture(gpu.TextureDescriptor{Width: 2, Height: 2, Pixels: []byte{1}}); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("CreateTexture short pixels = %v", err)
	}

	f.dev.Destroy()
	if err := f.dev.Present(); !errors.Is(err, gpu.ErrDeviceDestroyed) {
		t.Errorf("Present after Destroy = %v", err)
	}
	if b, tx, p := f.dev.Live(); b+tx+p != 0 {
		t.Errorf("Live() = %d %d %d after Destroy", b, tx, p)
	}
}

func TestResize(t *testing.T) {
	f := newFixture(t, 4, 4)
	if err := f.dev.Resize(10, 6); err != nil {
		t.Fatal(err)
	}
	if w, h := f.dev.Size(); w != 10 || h != 6 {
		t.Errorf("Size() = %dx%d", w, h)
	}
	if err := f.dev.Resize(0, 6); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("Resize(0,6) = %v", err)
	}
}

func TestBandedFillMatchesSerial(t *testing.T) {
	render := func(parallel bool) ([]byte, Stats) {
		f := newFixture(t, 160, 128)
		if !parallel {
			f.dev.pool = nil
		}
		f.dev.Clear([4]float32{0, 0, 0, 1}, true)
		f.program(gpu.ShadingScreen, [4]float32{})
		f.dev.SetToggle(gpu.Blending, true)
		f.dev.SetToggle(gpu.DepthTest, true)

		// Overlapping translucent quads cross band boundaries with
		// blending and the depth test on.
		var vs []vtx
		for i := range 12 {
			o := float32(i * 9)
			c := [4]float32{float32(i%3) / 2, float32(i%4) / 3, 1 - float32(i)/12, 0.6}
			vs = append(vs, quad(o, o*0.7, o+60, o*0.7+70, 0.9-float32(i)*0.05, c)...)
		}
		f.draw(vs)
		if err := f.dev.Present(); err != nil {
			t.Fatal(err)
		}
		return append([]byte(nil), f.dev.Frame().Pix...), f.dev.Stats()
	}

	serial, serialStats := render(false)
	banded, bandedStats := render(true)
	if serialStats.Fragments != bandedStats.Fragments || serialStats.Fragments == 0 {
		t.Errorf("fragments serial %d, banded %d", serialStats.Fragments, bandedStats.Fragments)
	}
	for i := range serial {
		if serial[i] != banded[i] {
			t.Fatalf("byte %d differs: serial %d, banded %d", i, serial[i], banded[i])
		}
	}
}

func TestMaterialUniformsChecked(t *testing.T) {
	f := newFixture(t, 4, 4)
	block := &gpu.UniformBlock{
		Fields: []gpu.UniformField{{Name: "time", Kind: gpu.UniformFloat}},
		Size:   16,
	}
	prog, err := f.dev.CreateProgram(gpu.ProgramDescriptor{Label: "m", Shading: gpu.ShadingTextured, Uniforms: block})
	if err != nil {
		t.Fatal(err)
	}
	f.dev.UseProgram(prog)
	if f.dev.UniformLayout(prog) != block {
		t.Error("UniformLayout() does not return the program's block")
	}

	f.dev.SetUniform("time", gpu.Float(2))
	f.dev.SetUniform("time", gpu.Vec4(red))
	f.dev.SetUniform("other", gpu.Float(1))

	if u, ok := f.dev.Uniform(prog, "time"); !ok || u.F[0] != 2 || u.Kind != gpu.UniformFloat {
		t.Errorf("time = %+v, %v; want the float kept", u, ok)
	}
	if _, ok := f.dev.Uniform(prog, "other"); ok {
		t.Error("undeclared uniform was stored")
	}
}
