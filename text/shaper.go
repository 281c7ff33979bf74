package text

import (
	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// Ligatures would merge runes into glyphs the atlas does not have.
var noLigatures = []shaping.FontFeature{
	{Tag: ot.MustNewTag("liga"), Value: 0},
	{Tag: ot.MustNewTag("clig"), Value: 0},
	{Tag: ot.MustNewTag("dlig"), Value: 0},
}

// placement is the pen-relative position of one rune after shaping.
type placement struct {
	r    rune
	x, y float32
}

// shaper wraps a HarfBuzz shaper for one face and size. It is not safe for
// concurrent use.
type shaper struct {
	face *font.Face
	size fixed.Int26_6
	hb   shaping.HarfbuzzShaper
}

func newShaper(f *font.Font, size float32) *shaper {
	return &shaper{face: font.NewFace(f), size: fixed.Int26_6(size * 64)}
}

// shape positions runes left to right and returns the placements and the
// total advance. ok is false when the output does not map one glyph per
// rune, in which case the caller uses unkerned advances.
func (s *shaper) shape(dst []placement, runes []rune) (_ []placement, width float32, ok bool) {
	if len(runes) == 0 {
		return dst, 0, true
	}
	out := s.hb.Shape(shaping.Input{
		Text:         runes,
		RunStart:     0,
		RunEnd:       len(runes),
		Direction:    di.DirectionLTR,
		Face:         s.face,
		FontFeatures: noLigatures,
		Size:         s.size,
		Script:       language.Latin,
		Language:     language.NewLanguage("en"),
	})
	if len(out.Glyphs) != len(runes) {
		return dst, 0, false
	}
	start := len(dst)
	var pen float32
	for _, g := range out.Glyphs {
		i := g.TextIndex()
		if i < 0 || i >= len(runes) {
			return dst[:start], 0, false
		}
		dst = append(dst, placement{
			r: runes[i],
			x: pen + fixedToFloat(g.XOffset),
			y: -fixedToFloat(g.YOffset),
		})
		pen += fixedToFloat(g.Advance)
	}
	return dst, pen, true
}
