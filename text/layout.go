package text

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/sr/batch"
)

// Quad is one glyph to draw: a screen rectangle and its atlas UVs.
type Quad struct {
	Dst batch.Rect
	UV  batch.Rect
}

// Layout appends the quads for s with its top-left corner at (x, y) to dst.
// Lines break at '\n'. Blank glyphs produce no quad.
func (f *Font) Layout(dst []Quad, s string, x, y float32) []Quad {
	aw, ah := f.Atlas.Size()
	baseline := y + f.Ascent
	var places []placement
	for line := range strings.SplitSeq(norm.NFC.String(s), "\n") {
		places, _ = f.place(places[:0], line)
		for _, p := range places {
			g := f.Glyph(p.r)
			if g.Cell.Empty() {
				continue
			}
			w, h := float32(g.Cell.Dx()), float32(g.Cell.Dy())
			dst = append(dst, Quad{
				Dst: batch.Rect{X: x + p.x + g.OffsetX, Y: baseline + p.y + g.OffsetY, W: w, H: h},
				UV:  batch.Rect{X: float32(g.Cell.Min.X) / aw, Y: float32(g.Cell.Min.Y) / ah, W: w / aw, H: h / ah},
			})
		}
		baseline += f.LineHeight
	}
	return dst
}

// Measure returns the width of the widest line and the height of all lines.
func (f *Font) Measure(s string) (w, h float32) {
	var places []placement
	lines := 0
	for line := range strings.SplitSeq(norm.NFC.String(s), "\n") {
		var lw float32
		places, lw = f.place(places[:0], line)
		w = max(w, lw)
		lines++
	}
	return w, float32(lines) * f.LineHeight
}

// place positions the runes of one line, shaped when possible.
func (f *Font) place(dst []placement, line string) ([]placement, float32) {
	runes := []rune(strings.TrimSuffix(line, "\r"))
	for i, r := range runes {
		switch {
		case r == '\t':
			runes[i] = ' '
		case r < FirstRune || r > LastRune:
			runes[i] = Replacement
		}
	}
	if f.shaper != nil {
		if out, width, ok := f.shaper.shape(dst, runes); ok {
			return out, width
		}
	}
	var pen float32
	for _, r := range runes {
		dst = append(dst, placement{r: r, x: pen})
		pen += f.Glyph(r).Advance
	}
	return dst, pen
}
