package sr

import (
	"image/color"
	"testing"
)

func TestHex(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"f008", color.NRGBA{255, 0, 0, 136}},
		{"#336699", color.NRGBA{0x33, 0x66, 0x99, 255}},
		{"33669980", color.NRGBA{0x33, 0x66, 0x99, 0x80}},
		{"12345", color.NRGBA{0, 0, 0, 255}},
		{"zzzzzz", color.NRGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Hex(tt.in).NRGBA(); got != tt.want {
				t.Errorf("Hex(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorConversions(t *testing.T) {
	c := FromColor(color.NRGBA{255, 128, 0, 255})
	if got := c.NRGBA(); got != (color.NRGBA{255, 128, 0, 255}) {
		t.Errorf("round trip = %v", got)
	}
	if got := (Color{2, -1, 0.5, 1}).NRGBA(); got != (color.NRGBA{255, 0, 128, 255}) {
		t.Errorf("clamped = %v", got)
	}
	if p := (Color{1, 0.5, 0, 0.5}).Premultiply(); p != (Color{0.5, 0.25, 0, 0.5}) {
		t.Errorf("Premultiply() = %v", p)
	}
	if l := Black.Lerp(White, 0.5); l != (Color{0.5, 0.5, 0.5, 1}) {
		t.Errorf("Lerp() = %v", l)
	}
	if v := Red.WithAlpha(0.25).Vec4(); v != [4]float32{1, 0, 0, 0.25} {
		t.Errorf("Vec4() = %v", v)
	}
}
