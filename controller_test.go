package sr

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/sr/batch"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/gpu/gputest"
	"github.com/gogpu/sr/input"
	"github.com/gogpu/sr/mesh"
	"github.com/gogpu/sr/shader"
	"github.com/gogpu/sr/state"
	"github.com/gogpu/sr/texture"
)

func newTestController(t *testing.T, opts ...Option) (*Controller, *gputest.Recorder) {
	t.Helper()
	rec := gputest.New(200, 100)
	opts = append([]Option{WithArenaReserve(1 << 20), WithPersistentReserve(1 << 20)}, opts...)
	c, err := New(rec, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Destroy)
	rec.Reset()
	return c, rec
}

func mustPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		err, _ := recover().(error)
		if !errors.Is(err, target) {
			t.Errorf("panic = %v, want %v", err, target)
		}
	}()
	fn()
}

func mustBegin(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
}

func TestFrameLifecycle(t *testing.T) {
	c, rec := newTestController(t)
	if c.Phase() != PhaseUninitialized {
		t.Fatalf("Phase() = %v", c.Phase())
	}

	mustBegin(t, c)
	if c.Phase() != PhaseFrame {
		t.Errorf("Phase() after BeginFrame = %v", c.Phase())
	}
	if err := c.DrawRect(Rect{X: 1, Y: 2, W: 3, H: 4}, Red); err != nil {
		t.Fatal(err)
	}
	if c.TempArena().Len() == 0 {
		t.Error("DrawRect did not allocate from the frame arena")
	}
	if n := rec.Count(gputest.OpDrawArrays); n != 0 {
		t.Errorf("draws before EndFrame = %d, want 0", n)
	}

	if err := c.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	want := []gputest.Op{gputest.OpClear, gputest.OpDrawArrays, gputest.OpPresent}
	if got := rec.Ops(gputest.OpClear, gputest.OpDrawArrays, gputest.OpPresent); !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if c.temp.Len() != 0 {
		t.Errorf("frame arena holds %d bytes after EndFrame", c.temp.Len())
	}
	if c.Phase() != PhaseFrameEnded || c.Frames() != 1 {
		t.Errorf("phase=%v frames=%d", c.Phase(), c.Frames())
	}
}

func TestFrameMisusePanics(t *testing.T) {
	tests := []struct {
		name   string
		target error
		fn     func(c *Controller)
	}{
		{"draw before first frame", ErrNotInFrame, func(c *Controller) { c.DrawRect(Rect{}, White) }},
		{"end without begin", ErrNotInFrame, func(c *Controller) { c.EndFrame() }},
		{"temp arena outside frame", ErrNotInFrame, func(c *Controller) { c.TempArena() }},
		{"draw after end", ErrNotInFrame, func(c *Controller) {
			c.BeginFrame()
			c.EndFrame()
			c.DrawTexturedQuad(texture.Texture{}, Rect{}, FullUV, White)
		}},
		{"nested begin", ErrFrameActive, func(c *Controller) {
			c.BeginFrame()
			c.BeginFrame()
		}},
		{"string outside frame", ErrNotInFrame, func(c *Controller) { c.DrawString("x", nil, mgl32.Vec2{}, White) }},
		{"mesh outside frame", ErrNotInFrame, func(c *Controller) { c.DrawMesh(mesh.Quad(nil), mgl32.Ident4()) }},
		{"pop baseline", state.ErrUnderflow, func(c *Controller) { c.PopState() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t)
			mustPanic(t, tt.target, func() { tt.fn(c) })
		})
	}
}

func TestEndFrameErrorsStillEndFrame(t *testing.T) {
	c, rec := newTestController(t)
	rec.PresentErr = errors.New("lost surface")
	rec.DrawErr = errors.New("draw failed")

	mustBegin(t, c)
	c.DrawRect(Rect{W: 1, H: 1}, White)
	err := c.EndFrame()
	if !errors.Is(err, rec.PresentErr) || !errors.Is(err, rec.DrawErr) {
		t.Errorf("EndFrame() = %v, want both errors", err)
	}
	if c.Phase() != PhaseFrameEnded || c.temp.Len() != 0 {
		t.Errorf("frame not ended: phase=%v arena=%d", c.Phase(), c.temp.Len())
	}
	if c.batch.Len() != 0 {
		t.Errorf("pending vertices after failed flush = %d", c.batch.Len())
	}
}

func TestDrawRectVertices(t *testing.T) {
	c, rec := newTestController(t)
	mustBegin(t, c)
	c.DrawRect(Rect{X: 10, Y: 20, W: 30, H: 40}, Blue)
	c.EndFrame()

	if len(rec.Draws) != 1 {
		t.Fatalf("draws = %d", len(rec.Draws))
	}
	d := rec.Draws[0]
	if d.State.Texture != c.WhiteTexture().ID || d.Layout != gpu.LayoutBatch {
		t.Errorf("draw texture=%d layout=%v", d.State.Texture, d.Layout)
	}
	if len(d.Vertices) != 6 {
		t.Fatalf("vertices = %d", len(d.Vertices))
	}
	if p := d.Vertices[2].Position; p != [3]float32{40, 60, 0} {
		t.Errorf("bottom-right = %v", p)
	}
	for _, v := range d.Vertices {
		if v.Color != Blue.Vec4() {
			t.Fatalf("color = %v", v.Color)
		}
	}
}

func TestTextureChangeFlushesInOrder(t *testing.T) {
	c, rec := newTestController(t)
	a := texture.Texture{ID: 900, Width: 8, Height: 8}
	b := texture.Texture{ID: 901, Width: 4, Height: 4}

	mustBegin(t, c)
	c.DrawTexture(a, mgl32.Vec2{0, 0}, mgl32.Vec2{})
	c.DrawTexture(a, mgl32.Vec2{10, 0}, mgl32.Vec2{})
	c.DrawTexture(b, mgl32.Vec2{20, 0}, mgl32.Vec2{0.5, 0.5})
	if got := len(rec.Draws); got != 1 {
		t.Fatalf("draws after texture change = %d, want 1", got)
	}
	c.EndFrame()

	if len(rec.Draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(rec.Draws))
	}
	if rec.Draws[0].State.Texture != a.ID || rec.Draws[1].State.Texture != b.ID {
		t.Errorf("textures = %d, %d", rec.Draws[0].State.Texture, rec.Draws[1].State.Texture)
	}
	if n := len(rec.Draws[0].Vertices); n != 12 {
		t.Errorf("first draw vertices = %d, want 12", n)
	}
	// Origin (0.5, 0.5) centres the 4x4 texture on (20, 0).
	if p := rec.Draws[1].Vertices[0].Position; p != [3]float32{18, -2, 0} {
		t.Errorf("centred quad top-left = %v", p)
	}
	if s := c.BatchStats(); s.Flushes[batch.FlushTexture] != 1 {
		t.Errorf("texture flushes = %d, want 1", s.Flushes[batch.FlushTexture])
	}
}

func TestDrawTextureFragmentUV(t *testing.T) {
	c, rec := newTestController(t)
	tex := texture.Texture{ID: 42, Width: 64, Height: 32}

	mustBegin(t, c)
	c.DrawTextureFragment(tex, Rect{X: 16, Y: 8, W: 32, H: 16}, Rect{W: 10, H: 10}, White)
	c.EndFrame()

	v := rec.Draws[0].Vertices
	if v[0].UV != [2]float32{0.25, 0.25} || v[2].UV != [2]float32{0.75, 0.75} {
		t.Errorf("UVs = %v .. %v", v[0].UV, v[2].UV)
	}
}

func TestDrawTexturedQuad(t *testing.T) {
	c, rec := newTestController(t)
	tex := texture.Texture{ID: 77, Width: 16, Height: 16}
	dst := Rect{X: 5, Y: 10, W: 20, H: 30}
	uv := Rect{X: 0.5, Y: 0, W: 0.5, H: 0.25}

	mustBegin(t, c)
	if err := c.DrawTexturedQuad(tex, dst, uv, Red); err != nil {
		t.Fatalf("DrawTexturedQuad() error = %v", err)
	}
	// The zero texture draws with the white texture.
	if err := c.DrawTexturedQuad(texture.Texture{}, dst, FullUV, Green); err != nil {
		t.Fatalf("DrawTexturedQuad(zero) error = %v", err)
	}
	c.EndFrame()

	if len(rec.Draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(rec.Draws))
	}
	if got := rec.Draws[0].State.Texture; got != tex.ID {
		t.Errorf("texture = %d, want %d", got, tex.ID)
	}
	if got := rec.Draws[1].State.Texture; got != c.WhiteTexture().ID {
		t.Errorf("zero texture bound %d, want white %d", got, c.WhiteTexture().ID)
	}

	want := []struct {
		pos [3]float32
		uv  [2]float32
	}{
		{[3]float32{5, 10, 0}, [2]float32{0.5, 0}},
		{[3]float32{25, 10, 0}, [2]float32{1, 0}},
		{[3]float32{25, 40, 0}, [2]float32{1, 0.25}},
		{[3]float32{5, 10, 0}, [2]float32{0.5, 0}},
		{[3]float32{25, 40, 0}, [2]float32{1, 0.25}},
		{[3]float32{5, 40, 0}, [2]float32{0.5, 0.25}},
	}
	v := rec.Draws[0].Vertices
	if len(v) != len(want) {
		t.Fatalf("vertices = %d, want %d", len(v), len(want))
	}
	for i, w := range want {
		if v[i].Position != w.pos || v[i].UV != w.uv || v[i].Color != Red.Vec4() {
			t.Errorf("vertex %d = %v %v %v, want %v %v", i, v[i].Position, v[i].UV, v[i].Color, w.pos, w.uv)
		}
	}
	if c := rec.Draws[1].Vertices[0].Color; c != Green.Vec4() {
		t.Errorf("white quad color = %v", c)
	}
}

func TestBatchIsolatesUserState(t *testing.T) {
	c, rec := newTestController(t)
	user := state.Snapshot{
		Shader:      c.DefaultProgram().ID,
		Texture:     c.WhiteTexture().ID,
		FaceCulling: true,
		DepthTest:   true,
		Blending:    false,
		Blend:       gpu.BlendAdditive,
	}

	mustBegin(t, c)
	c.PushState(user)
	c.DrawRect(Rect{W: 5, H: 5}, White)
	c.EndFrame()

	d := rec.Draws[0].State
	if d.FaceCulling || d.DepthTest || !d.Blending || d.Blend != gpu.BlendAlpha || d.Program == user.Shader {
		t.Errorf("batch draw state = %+v", d)
	}
	got := rec.State()
	if got.Program != user.Shader || !got.FaceCulling || !got.DepthTest || got.Blending || got.Blend != gpu.BlendAdditive {
		t.Errorf("state after flush = %+v, want %+v", got, user)
	}
	if c.State() != user {
		t.Errorf("State() = %+v", c.State())
	}
	if popped := c.PopState(); popped != user || c.StateDepth() != 1 {
		t.Errorf("PopState() = %+v, depth %d", popped, c.StateDepth())
	}
}

func TestDrawStringSplitsIntoBatches(t *testing.T) {
	c, rec := newTestController(t, WithBatchCapacity(12))

	mustBegin(t, c)
	if err := c.DrawString("ABCDE", nil, mgl32.Vec2{5, 5}, White); err != nil {
		t.Fatalf("DrawString() error = %v", err)
	}
	c.EndFrame()

	var sizes []int
	for _, d := range rec.Draws {
		sizes = append(sizes, len(d.Vertices))
		if d.State.Texture != c.font.Atlas.ID {
			t.Errorf("glyph draw bound texture %d, want atlas %d", d.State.Texture, c.font.Atlas.ID)
		}
	}
	if !slices.Equal(sizes, []int{12, 12, 6}) {
		t.Errorf("draw sizes = %v, want [12 12 6]", sizes)
	}

	w, h, err := c.MeasureString("ABCDE", nil)
	if err != nil || w <= 0 || h != c.font.LineHeight {
		t.Errorf("MeasureString() = %v, %v, %v", w, h, err)
	}
}

func TestDrawMeshFlushesAndSetsMVP(t *testing.T) {
	c, rec := newTestController(t)
	m := mesh.Cube(c.PersistentArena())
	mvp := mgl32.Translate3D(0, 0, -3)

	mustBegin(t, c)
	c.DrawRect(Rect{W: 2, H: 2}, White)
	if err := c.DrawMesh(m, mvp); err != nil {
		t.Fatalf("DrawMesh() error = %v", err)
	}
	c.EndFrame()

	if len(rec.Draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(rec.Draws))
	}
	if rec.Draws[0].Indexed || !rec.Draws[1].Indexed {
		t.Fatal("2D quads must be drawn before the mesh")
	}
	d := rec.Draws[1]
	if d.State.Program != c.DefaultProgram().ID || !d.State.DepthTest || !d.State.FaceCulling {
		t.Errorf("mesh draw state = %+v", d.State)
	}
	if u := d.Uniforms[gpu.UniformMVP]; u.F != [16]float32(mvp) {
		t.Errorf("MVP = %v", u.F)
	}
	m.Release(c.Device())
}

func TestUseShaderInvalidUsesFallback(t *testing.T) {
	c, _ := newTestController(t)
	p, err := c.Shaders().LoadSource("broken", "this is not wgsl", gpu.ShadingTextured)
	if err == nil {
		t.Fatal("expected compile error")
	}
	c.UseShader(p)
	if got := c.State().Shader; got != c.Shaders().Fallback().ID {
		t.Errorf("shader = %d, want fallback %d", got, c.Shaders().Fallback().ID)
	}
	c.UseShader(shader.Program{})
	if got := c.State().Shader; got != c.DefaultProgram().ID {
		t.Errorf("zero program selected %d", got)
	}
}

func TestBlendPresets(t *testing.T) {
	c, rec := newTestController(t)
	c.SetBlending(false)
	c.SetBlendingAdditive()
	if s := rec.State(); !s.Blending || s.Blend != gpu.BlendAdditive {
		t.Errorf("state = %+v", s)
	}
	c.SetBlendingPremultiplied()
	if rec.State().Blend != gpu.BlendPremultiplied {
		t.Error("premultiplied not applied")
	}
	c.SetBlendingAlpha()
	if rec.State().Blend != gpu.BlendAlpha {
		t.Error("alpha not applied")
	}
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestTimingAndResize(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	in := input.New()
	c, rec := newTestController(t, WithClock(clk.Now), WithInput(in))

	for range 40 {
		mustBegin(t, c)
		c.EndFrame()
		clk.now = clk.now.Add(16 * time.Millisecond)
	}
	s := c.Timer().Stats()
	if s.Mean != 16*time.Millisecond || s.Min != s.Mean || s.Max != s.Mean {
		t.Errorf("timer stats = %+v", s)
	}
	if c.Timer().Delta() != 16*time.Millisecond {
		t.Errorf("Delta() = %v", c.Timer().Delta())
	}

	in.Resized(320, 240)
	mustBegin(t, c)
	if !c.Resized() {
		t.Error("Resized() = false")
	}
	if w, h := rec.Size(); w != 320 || h != 240 {
		t.Errorf("device size = %dx%d, want 320x240", w, h)
	}
	c.EndFrame()
}

func TestBeginFrameFailureStartsNoFrame(t *testing.T) {
	c, rec := newTestController(t)
	lost := errors.New("lost surface")
	rec.ClearErr = lost

	if err := c.BeginFrame(); !errors.Is(err, lost) {
		t.Fatalf("BeginFrame() error = %v, want %v", err, lost)
	}
	if c.Phase() != PhaseUninitialized || c.Timer().Frame() != 0 {
		t.Errorf("after failed BeginFrame: phase=%v timer frame=%d", c.Phase(), c.Timer().Frame())
	}
	mustPanic(t, ErrNotInFrame, func() { c.DrawRect(Rect{W: 1, H: 1}, Red) })

	rec.ClearErr = nil
	mustBegin(t, c)
	if c.Phase() != PhaseFrame || c.Timer().Frame() != 1 {
		t.Errorf("retry: phase=%v timer frame=%d", c.Phase(), c.Timer().Frame())
	}
	if err := c.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestFailedResizeIsRetried(t *testing.T) {
	in := input.New()
	c, rec := newTestController(t, WithInput(in))
	rec.ResizeErr = errors.New("no memory")

	in.Resized(320, 240)
	if err := c.BeginFrame(); !errors.Is(err, rec.ResizeErr) {
		t.Fatalf("BeginFrame() error = %v, want resize failure", err)
	}
	if c.Phase() != PhaseUninitialized {
		t.Errorf("Phase() = %v after failed resize", c.Phase())
	}

	rec.ResizeErr = nil
	mustBegin(t, c)
	if w, h := rec.Size(); w != 320 || h != 240 {
		t.Errorf("device size = %dx%d, want the pending 320x240", w, h)
	}
	c.EndFrame()
}

func TestEscapeRequestsClose(t *testing.T) {
	in := input.New()
	c, _ := newTestController(t, WithInput(in))
	in.KeyPressed(gpucontext.KeyEscape)
	mustBegin(t, c)
	if !c.ShouldClose() {
		t.Error("ShouldClose() = false after Escape")
	}
	c.EndFrame()
}

func TestDestroyReleasesEverything(t *testing.T) {
	rec := gputest.New(32, 32)
	c, err := New(rec, WithArenaReserve(1<<20), WithPersistentReserve(1<<20))
	if err != nil {
		t.Fatal(err)
	}
	mustBegin(t, c)
	c.DrawString("hi", nil, mgl32.Vec2{}, White)
	c.EndFrame()

	c.Destroy()
	c.Destroy()
	if b, tex, p := rec.Live(); b != 0 || tex != 0 || p != 0 {
		t.Errorf("live after Destroy: buffers=%d textures=%d programs=%d", b, tex, p)
	}
	mustPanic(t, ErrDestroyed, func() { c.BeginFrame() })
}

func TestNewInvalidCapacity(t *testing.T) {
	rec := gputest.New(8, 8)
	for _, n := range []int{3, 7} {
		_, err := New(rec, WithBatchCapacity(n), WithArenaReserve(1<<16), WithPersistentReserve(1<<16))
		if !errors.Is(err, batch.ErrInvalidCapacity) {
			t.Errorf("New() with capacity %d error = %v, want ErrInvalidCapacity", n, err)
		}
		if b, tex, p := rec.Live(); b != 0 || tex != 0 || p != 0 {
			t.Errorf("failed New(capacity %d) leaked: buffers=%d textures=%d programs=%d", n, b, tex, p)
		}
	}

	// One quad fits the smallest batch.
	c, err := New(rec, WithBatchCapacity(MinBatchCapacity), WithArenaReserve(1<<16), WithPersistentReserve(1<<16))
	if err != nil {
		t.Fatalf("New(capacity %d) error = %v", MinBatchCapacity, err)
	}
	defer c.Destroy()
	mustBegin(t, c)
	c.DrawRect(Rect{W: 1, H: 1}, White)
	c.DrawRect(Rect{W: 1, H: 1}, White)
	c.EndFrame()
	if s := c.BatchStats(); s.Flushes[batch.FlushCapacity] != 1 {
		t.Errorf("capacity flushes = %d, want 1", s.Flushes[batch.FlushCapacity])
	}
}
