package gpu

import (
	"encoding/binary"
	"math"
)

// Semantic names the meaning of a vertex attribute. Shader location is
// Semantic-1.
type Semantic uint8

const (
	SemanticNone Semantic = iota
	SemanticPosition
	SemanticUV
	SemanticColor
	SemanticNormal
)

// MaxAttributes is the number of attribute slots in a VertexLayout.
const MaxAttributes = 4

// Attribute describes one float32 vertex attribute.
type Attribute struct {
	Semantic   Semantic
	Offset     int // bytes from the start of the vertex
	Components int // 1 to 4 float32 values
}

// VertexLayout describes interleaved float32 vertices. Unused slots have
// SemanticNone. VertexLayout is comparable and can key caches.
type VertexLayout struct {
	Stride     int
	Attributes [MaxAttributes]Attribute
}

// Predefined layouts.
var (
	// LayoutBatch is position(3) uv(2) color(4): 36 bytes.
	LayoutBatch = VertexLayout{
		Stride: 36,
		Attributes: [MaxAttributes]Attribute{
			{SemanticPosition, 0, 3},
			{SemanticUV, 12, 2},
			{SemanticColor, 20, 4},
		},
	}

	// LayoutMesh is position(3) normal(3) uv(2) color(4): 48 bytes.
	LayoutMesh = VertexLayout{
		Stride: 48,
		Attributes: [MaxAttributes]Attribute{
			{SemanticPosition, 0, 3},
			{SemanticNormal, 12, 3},
			{SemanticUV, 24, 2},
			{SemanticColor, 32, 4},
		},
	}
)

// Find returns the attribute with the given semantic.
func (l VertexLayout) Find(s Semantic) (Attribute, bool) {
	for _, a := range l.Attributes {
		if a.Semantic == s && s != SemanticNone {
			return a, true
		}
	}
	return Attribute{}, false
}

// DecodedVertex is a vertex unpacked from a buffer. Missing attributes keep
// their defaults: zero position, normal and UV, opaque white color.
type DecodedVertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
	Color    [4]float32
}

// DecodeVertex unpacks vertex i of data according to the layout. It is the
// inverse of the little-endian packing used by the batch and mesh packages.
// The caller guarantees data holds at least i+1 vertices.
func DecodeVertex(data []byte, l VertexLayout, i int) DecodedVertex {
	v := DecodedVertex{Color: [4]float32{1, 1, 1, 1}}
	base := i * l.Stride
	for _, a := range l.Attributes {
		var dst []float32
		switch a.Semantic {
		case SemanticPosition:
			dst = v.Position[:]
		case SemanticNormal:
			dst = v.Normal[:]
		case SemanticUV:
			dst = v.UV[:]
		case SemanticColor:
			dst = v.Color[:]
		default:
			continue
		}
		n := min(a.Components, len(dst))
		for c := range n {
			off := base + a.Offset + c*4
			dst[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		}
	}
	return v
}

// PutFloat32s writes values little-endian into dst starting at offset and
// returns the offset past the last value.
func PutFloat32s(dst []byte, offset int, values ...float32) int {
	for _, f := range values {
		binary.LittleEndian.PutUint32(dst[offset:], math.Float32bits(f))
		offset += 4
	}
	return offset
}
