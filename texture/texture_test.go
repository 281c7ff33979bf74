package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/gogpu/sr/gpu/gputest"
)

func newTestLoader(t *testing.T) (*Loader, *gputest.Recorder) {
	t.Helper()
	rec := gputest.New(16, 16)
	l, err := NewLoader(rec)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return l, rec
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromImageConvertsToNRGBA(t *testing.T) {
	rec := gputest.New(4, 4)
	src := image.NewRGBA(image.Rect(10, 10, 13, 12))
	src.Set(10, 10, color.RGBA{255, 0, 0, 255})
	src.Set(12, 11, color.RGBA{0, 0, 128, 128}) // premultiplied half-alpha blue

	tex, err := FromImage(rec, "t", src, false)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 3 || tex.Height != 2 || !tex.Valid {
		t.Fatalf("FromImage() = %+v", tex)
	}
	desc, _ := rec.Texture(tex.ID)
	if len(desc.Pixels) != 3*2*4 {
		t.Fatalf("pixels = %d bytes", len(desc.Pixels))
	}
	if got := desc.Pixels[0:4]; !bytes.Equal(got, []byte{255, 0, 0, 255}) {
		t.Errorf("pixel (0,0) = %v", got)
	}
	last := desc.Pixels[len(desc.Pixels)-4:]
	if last[2] != 255 || last[3] != 128 {
		t.Errorf("pixel (2,1) = %v, want un-premultiplied blue", last)
	}
}

func TestFromImageEmpty(t *testing.T) {
	rec := gputest.New(4, 4)
	if _, err := FromImage(rec, "e", image.NewNRGBA(image.Rect(0, 0, 0, 0)), false); !errors.Is(err, ErrEmpty) {
		t.Errorf("FromImage(empty) = %v, want ErrEmpty", err)
	}
}

func TestWhite(t *testing.T) {
	rec := gputest.New(4, 4)
	tex, err := White(rec)
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := rec.Texture(tex.ID)
	if tex.Width != 2 || tex.Height != 2 || !desc.Nearest {
		t.Errorf("White() = %+v nearest=%v", tex, desc.Nearest)
	}
	for i, b := range desc.Pixels {
		if b != 255 {
			t.Fatalf("byte %d = %d, want 255", i, b)
		}
	}
}

func TestCheckerboard(t *testing.T) {
	img := Checkerboard(8, 2, magenta, black)
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, magenta},
		{1, 1, magenta},
		{2, 0, black},
		{0, 2, black},
		{2, 2, magenta},
	}
	for _, tt := range tests {
		if got := img.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestLoadCachesByPath(t *testing.T) {
	l, rec := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, encodePNG(t, Solid(4, 3, color.NRGBA{1, 2, 3, 255})), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	b, _ := l.Load(path)
	if a.ID != b.ID || a.Width != 4 || a.Height != 3 || a.Path != path {
		t.Errorf("Load twice = %+v / %+v", a, b)
	}
	if n := rec.Count(gputest.OpCreateTexture); n != 2 { // sentinel + a.png
		t.Errorf("CreateTexture calls = %d, want 2", n)
	}

	l.Release(a)
	if _, ok := rec.Texture(b.ID); !ok || l.Loaded() != 1 {
		t.Fatal("texture destroyed while a second load still holds it")
	}
	l.Release(b)
	if l.Loaded() != 0 {
		t.Errorf("Loaded() after Release = %d", l.Loaded())
	}
	if _, ok := rec.Texture(a.ID); ok {
		t.Error("texture still alive after the last Release")
	}
}

func TestLoadKeepsHeldTexturesAlive(t *testing.T) {
	l, rec := newTestLoader(t)
	dir := t.TempDir()
	data := encodePNG(t, Solid(2, 2, color.NRGBA{0, 0, 0, 255}))

	const n = 300
	held := make([]Texture, n)
	for i := range held {
		path := filepath.Join(dir, fmt.Sprintf("t%03d.png", i))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}
		tex, err := l.Load(path)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", path, err)
		}
		held[i] = tex
	}

	if got := rec.Count(gputest.OpDestroyTexture); got != 0 {
		t.Errorf("DestroyTexture calls while every texture is held = %d", got)
	}
	if _, ok := rec.Texture(held[0].ID); !ok {
		t.Error("first texture destroyed by later loads")
	}
	if _, textures, _ := rec.Live(); textures != n+1 {
		t.Errorf("live textures = %d, want %d", textures, n+1)
	}

	for _, tex := range held {
		l.Release(tex)
	}
	if _, textures, _ := rec.Live(); textures != 1 {
		t.Errorf("live textures after Release = %d, want only the sentinel", textures)
	}
}

func TestLoadFailureReturnsSentinel(t *testing.T) {
	l, _ := newTestLoader(t)

	tests := []struct {
		name string
		load func() (Texture, error)
	}{
		{"missing file", func() (Texture, error) { return l.Load(filepath.Join(t.TempDir(), "none.png")) }},
		{"garbage bytes", func() (Texture, error) { return l.LoadFromMemory("junk", []byte("not an image")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex, err := tt.load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if tex.Valid || tex.ID != l.Sentinel().ID || tex.Err == nil {
				t.Errorf("result = %+v, want invalid sentinel", tex)
			}
			if tex.Width != 16 || tex.Height != 16 {
				t.Errorf("sentinel size = %dx%d", tex.Width, tex.Height)
			}
		})
	}
	if l.Loaded() != 0 {
		t.Errorf("failures were cached: %d", l.Loaded())
	}
}

func TestLoadFromMemoryBMP(t *testing.T) {
	l, _ := newTestLoader(t)
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, Solid(5, 2, color.NRGBA{9, 9, 9, 255})); err != nil {
		t.Fatal(err)
	}
	tex, err := l.LoadFromMemory("b.bmp", buf.Bytes())
	if err != nil {
		t.Fatalf("LoadFromMemory() error = %v", err)
	}
	if tex.Width != 5 || tex.Height != 2 || !tex.Valid {
		t.Errorf("LoadFromMemory() = %+v", tex)
	}
}

func TestMaxSizeDownscales(t *testing.T) {
	l, _ := newTestLoader(t)
	l.MaxSize = 8
	tex, err := l.LoadFromMemory("big", encodePNG(t, Solid(32, 16, color.NRGBA{0, 255, 0, 255})))
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 8 || tex.Height != 4 {
		t.Errorf("size = %dx%d, want 8x4", tex.Width, tex.Height)
	}
}

func TestClose(t *testing.T) {
	l, rec := newTestLoader(t)
	if _, err := l.LoadFromMemory("m", encodePNG(t, Solid(2, 2, magenta))); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "c.png")
	_ = os.WriteFile(path, encodePNG(t, Solid(2, 2, black)), 0o600)
	if _, err := l.Load(path); err != nil {
		t.Fatal(err)
	}

	l.Close()
	l.Close()
	if _, tex, _ := rec.Live(); tex != 1 { // the memory texture is caller-owned
		t.Errorf("live textures after Close = %d, want 1", tex)
	}
	if _, err := l.Load(path); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close = %v", err)
	}
}
