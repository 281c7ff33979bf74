// Package text rasterises fonts into glyph atlases and lays out strings as
// textured quads for the batch compositor.
//
// An atlas covers runes 32 through 382 (Basic Latin to Latin Extended-A).
// Layout shapes each line with HarfBuzz so kerning is honoured, then maps
// every glyph back to its atlas cell. Runes outside the atlas render as '?'.
package text

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"

	"github.com/go-text/typesetting/font"
	xdraw "golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/sr/internal/logging"
	"github.com/gogpu/sr/texture"
)

const (
	// FirstRune is the first rune in every atlas.
	FirstRune = 32
	// LastRune is the last rune in every atlas.
	LastRune = 382

	// Replacement is drawn for runes outside the atlas.
	Replacement = '?'

	glyphCount = LastRune - FirstRune + 1
	padding    = 1
)

var (
	// ErrInvalidSize is returned for non-positive font sizes.
	ErrInvalidSize = errors.New("text: font size must be positive")

	// ErrParse wraps font parse failures.
	ErrParse = errors.New("text: parse font")
)

var logger logging.Var

// SetLogger sets the logger for font loading. nil silences it.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// Glyph is one atlas cell.
type Glyph struct {
	// Cell is the glyph's rectangle in atlas pixels. Empty for blank glyphs.
	Cell image.Rectangle

	// Offset is the position of Cell's top left relative to the pen on
	// the baseline, y down.
	OffsetX, OffsetY float32

	// Advance is the unkerned pen advance.
	Advance float32
}

// Font is a rasterised font at one pixel size.
type Font struct {
	Name       string
	Size       float32
	Atlas      texture.Texture
	Ascent     float32
	Descent    float32
	LineHeight float32

	// Valid is false when the requested font failed to parse and the
	// built-in Go Regular font was loaded instead.
	Valid bool
	Err   error

	glyphs [glyphCount]Glyph
	shaper *shaper
	dev    texture.Device
}

// Glyph returns the atlas cell for r, or the replacement glyph.
func (f *Font) Glyph(r rune) Glyph {
	if r < FirstRune || r > LastRune {
		r = Replacement
	}
	return f.glyphs[r-FirstRune]
}

// AtlasSize returns the atlas size in pixels.
func (f *Font) AtlasSize() (w, h int) { return f.Atlas.Width, f.Atlas.Height }

// LoadFont rasterises TrueType/OpenType data at size pixels and uploads the
// atlas. If data does not parse, the built-in font is loaded instead and
// returned with Valid == false and the parse error.
func LoadFont(dev texture.Device, name string, data []byte, size float32) (*Font, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	f, err := build(dev, name, data, size)
	if err == nil {
		return f, nil
	}
	logger.Load().Warn("text: using default font", "font", name, "err", err)
	f, ferr := build(dev, "goregular", goregular.TTF, size)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	f.Valid, f.Err = false, err
	return f, err
}

// LoadFontFile reads a font file and calls LoadFont.
func LoadFontFile(dev texture.Device, path string, size float32) (*Font, error) {
	data, readErr := os.ReadFile(path)
	f, err := LoadFont(dev, path, data, size)
	if readErr != nil && f != nil {
		f.Err = fmt.Errorf("text: %w", readErr)
		return f, f.Err
	}
	return f, err
}

// DefaultFont loads the built-in Go Regular font.
func DefaultFont(dev texture.Device, size float32) (*Font, error) {
	return LoadFont(dev, "goregular", goregular.TTF, size)
}

func build(dev texture.Device, name string, data []byte, size float32) (*Font, error) {
	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrParse, name, err)
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: xfont.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrParse, name, err)
	}
	defer face.Close()

	f := &Font{Name: name, Size: size, Valid: true, dev: dev}
	m := face.Metrics()
	f.Ascent = fixedToFloat(m.Ascent)
	f.Descent = fixedToFloat(m.Descent)
	f.LineHeight = fixedToFloat(m.Height)

	atlas := f.rasterise(face)
	f.Atlas, err = texture.FromImage(dev, "font:"+name, atlas, false)
	if err != nil {
		return nil, err
	}

	// Shaping is optional: without it layout falls back to atlas advances.
	if gf, err := font.ParseTTF(bytes.NewReader(data)); err == nil {
		f.shaper = newShaper(gf.Font, size)
	} else {
		logger.Load().Debug("text: shaping disabled", "font", name, "err", err)
	}
	logger.Load().Debug("text: font loaded", "font", name, "size", size,
		"atlas_w", f.Atlas.Width, "atlas_h", f.Atlas.Height)
	return f, nil
}

// rasterise packs every atlas rune into rows of a white, alpha-masked image.
func (f *Font) rasterise(face xfont.Face) *image.NRGBA {
	type pending struct {
		mask  image.Image
		maskp image.Point
	}
	var masks [glyphCount]pending
	atlasWidth := min(4096, max(256, nextPow2(int(f.Size*20))))

	x, y, rowH := padding, padding, 0
	for r := rune(FirstRune); r <= LastRune; r++ {
		dr, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		g := &f.glyphs[r-FirstRune]
		if !ok {
			continue
		}
		g.Advance = fixedToFloat(adv)
		g.OffsetX, g.OffsetY = float32(dr.Min.X), float32(dr.Min.Y)
		w, h := dr.Dx(), dr.Dy()
		if w == 0 || h == 0 {
			continue
		}
		if x+w+padding > atlasWidth {
			x, y, rowH = padding, y+rowH+padding, 0
		}
		g.Cell = image.Rect(x, y, x+w, y+h)
		masks[r-FirstRune] = pending{mask, maskp}
		x += w + padding
		rowH = max(rowH, h)
	}

	height := nextPow2(y + rowH + padding)
	atlas := image.NewNRGBA(image.Rect(0, 0, atlasWidth, height))
	white := image.NewUniform(color.NRGBA{255, 255, 255, 255})
	for i := range f.glyphs {
		g := f.glyphs[i]
		if g.Cell.Empty() {
			continue
		}
		xdraw.DrawMask(atlas, g.Cell, white, image.Point{}, masks[i].mask, masks[i].maskp, xdraw.Over)
	}

	// Glyphs the face lacks render as the replacement.
	repl := f.glyphs[Replacement-FirstRune]
	for i := range f.glyphs {
		if f.glyphs[i].Advance == 0 && f.glyphs[i].Cell.Empty() && rune(i+FirstRune) != ' ' {
			f.glyphs[i] = repl
		}
	}
	return atlas
}

// Destroy releases the atlas texture.
func (f *Font) Destroy() {
	if f.Atlas.ID != 0 && f.dev != nil {
		f.dev.DestroyTexture(f.Atlas.ID)
		f.Atlas.ID = 0
	}
}

func fixedToFloat(v fixed.Int26_6) float32 { return float32(v) / 64 }

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
