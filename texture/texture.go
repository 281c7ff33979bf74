// Package texture decodes images and uploads them as device textures.
//
// Decoding understands PNG, JPEG, GIF, BMP, WebP and TIFF. A texture that
// fails to load is replaced by the loader's sentinel, a magenta and black
// checkerboard, and comes back with Valid == false.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"io"
	"log/slog"
	"os"

	_ "golang.org/x/image/bmp" // register BMP
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/internal/cache"
	"github.com/gogpu/sr/internal/logging"
)

var (
	// ErrEmpty is returned for images with no pixels.
	ErrEmpty = errors.New("texture: empty image")

	// ErrClosed is returned by a loader after Close.
	ErrClosed = errors.New("texture: loader closed")
)

var logger logging.Var

// SetLogger sets the logger for load failures. nil silences it.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// Device is the part of a gpu.Device textures need.
type Device interface {
	CreateTexture(desc gpu.TextureDescriptor) (gpu.TextureID, error)
	DestroyTexture(tex gpu.TextureID)
}

// Texture is a device texture and its size in pixels.
type Texture struct {
	ID     gpu.TextureID
	Width  int
	Height int
	Label  string
	Path   string

	// Valid is false when ID is a sentinel substituted for a failed load.
	Valid bool
	Err   error
}

// Size returns the texture size as float32 for vertex math.
func (t Texture) Size() (w, h float32) { return float32(t.Width), float32(t.Height) }

// Decode decodes any registered image format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("texture: decode: %w", err)
	}
	return img, format, nil
}

// FromImage uploads img as non-premultiplied RGBA.
func FromImage(dev Device, label string, img image.Image, nearest bool) (Texture, error) {
	b := img.Bounds()
	if b.Empty() {
		return Texture{}, fmt.Errorf("%w: %s", ErrEmpty, label)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != 4*b.Dx() || len(nrgba.Pix) != 4*b.Dx()*b.Dy() {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(nrgba, nrgba.Bounds(), img, b.Min, xdraw.Src)
	}
	id, err := dev.CreateTexture(gpu.TextureDescriptor{
		Label:   label,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Pixels:  nrgba.Pix,
		Nearest: nearest,
	})
	if err != nil {
		return Texture{}, fmt.Errorf("texture %q: create: %w", label, err)
	}
	return Texture{ID: id, Width: b.Dx(), Height: b.Dy(), Label: label, Valid: true}, nil
}

// White returns a 2x2 opaque white texture for untextured quads.
func White(dev Device) (Texture, error) {
	return FromImage(dev, "white", Solid(2, 2, color.NRGBA{255, 255, 255, 255}), true)
}

// Solid returns a w x h image of one color.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// Checkerboard returns a size x size image of cell x cell squares
// alternating between a and b, starting with a at the top left.
func Checkerboard(size, cell int, a, b color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var (
	magenta = color.NRGBA{255, 0, 255, 255}
	black   = color.NRGBA{0, 0, 0, 255}
)

// Loader loads textures from files and memory and owns the ones it caches.
// File textures are shared per path and reference counted: each Load must
// be matched by a Release. It is not safe for concurrent use.
type Loader struct {
	// Nearest selects nearest filtering for loaded textures.
	Nearest bool

	// MaxSize, when positive, downscales images whose larger side exceeds it.
	MaxSize int

	dev      Device
	sentinel Texture
	files    *cache.Cache[string, *fileTexture]
	closed   bool
}

type fileTexture struct {
	tex  Texture
	refs int
}

// NewLoader creates the checkerboard sentinel on dev.
func NewLoader(dev Device) (*Loader, error) {
	s, err := FromImage(dev, "missing", Checkerboard(16, 4, magenta, black), true)
	if err != nil {
		return nil, err
	}
	l := &Loader{dev: dev, sentinel: s}
	// Unbounded: a held texture is only destroyed by its last Release.
	l.files = cache.New(0, func(_ string, f *fileTexture) { l.destroy(f.tex.ID) })
	return l, nil
}

// Sentinel returns the texture substituted for failed loads.
func (l *Loader) Sentinel() Texture { return l.sentinel }

// Load decodes and uploads the image at path. Repeated loads of a path
// share one texture until every one of them is released. Failures are not
// cached.
func (l *Loader) Load(path string) (Texture, error) {
	if l.closed {
		return l.failed(path, ErrClosed), ErrClosed
	}
	f, err := l.files.GetOrCreate(path, func() (*fileTexture, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("texture: %w", err)
		}
		t, err := l.fromBytes(path, data)
		if err != nil {
			return nil, err
		}
		t.Path = path
		return &fileTexture{tex: t}, nil
	})
	if err != nil {
		return l.failed(path, err), err
	}
	f.refs++
	return f.tex, nil
}

// LoadFromMemory decodes and uploads encoded image bytes. The result is
// owned by the caller: release it with Release.
func (l *Loader) LoadFromMemory(name string, data []byte) (Texture, error) {
	if l.closed {
		return l.failed(name, ErrClosed), ErrClosed
	}
	t, err := l.fromBytes(name, data)
	if err != nil {
		return l.failed(name, err), err
	}
	return t, nil
}

func (l *Loader) fromBytes(label string, data []byte) (Texture, error) {
	img, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Texture{}, err
	}
	img = l.fit(img)
	t, err := FromImage(l.dev, label, img, l.Nearest)
	if err != nil {
		return Texture{}, err
	}
	logger.Load().Debug("texture: loaded", "label", label, "format", format, "width", t.Width, "height", t.Height)
	return t, nil
}

// fit downscales img so its larger side is at most MaxSize.
func (l *Loader) fit(img image.Image) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if l.MaxSize <= 0 || longest <= l.MaxSize {
		return img
	}
	w := max(1, b.Dx()*l.MaxSize/longest)
	h := max(1, b.Dy()*l.MaxSize/longest)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func (l *Loader) failed(label string, err error) Texture {
	logger.Load().Warn("texture: using sentinel", "label", label, "err", err)
	t := l.sentinel
	t.Label, t.Valid, t.Err = label, false, err
	return t
}

// Release gives back a texture from this loader. A file texture is
// destroyed when its last reference is released; the sentinel is never
// destroyed.
func (l *Loader) Release(t Texture) {
	if l.closed {
		return
	}
	if t.Path != "" {
		if f, ok := l.files.Get(t.Path); ok && f.tex.ID == t.ID {
			if f.refs--; f.refs == 0 {
				l.files.Delete(t.Path)
			}
			return
		}
	}
	l.destroy(t.ID)
}

// Loaded returns the number of file textures currently held.
func (l *Loader) Loaded() int { return l.files.Len() }

// Close destroys every cached texture and the sentinel.
func (l *Loader) Close() {
	if l.closed {
		return
	}
	l.files.Clear()
	l.dev.DestroyTexture(l.sentinel.ID)
	l.closed = true
}

func (l *Loader) destroy(id gpu.TextureID) {
	if id != 0 && id != l.sentinel.ID {
		l.dev.DestroyTexture(id)
	}
}
