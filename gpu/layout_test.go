package gpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestDecodeVertexBatchLayout(t *testing.T) {
	buf := make([]byte, 2*LayoutBatch.Stride)
	off := LayoutBatch.Stride
	off = PutFloat32s(buf, off, 10, 20, 0)
	off = PutFloat32s(buf, off, 0.25, 0.75)
	PutFloat32s(buf, off, 1, 0.5, 0, 1)

	got := DecodeVertex(buf, LayoutBatch, 1)
	want := DecodedVertex{
		Position: [3]float32{10, 20, 0},
		UV:       [2]float32{0.25, 0.75},
		Color:    [4]float32{1, 0.5, 0, 1},
	}
	if got != want {
		t.Errorf("DecodeVertex = %+v, want %+v", got, want)
	}
}

func TestDecodeVertexDefaults(t *testing.T) {
	layout := VertexLayout{Stride: 8, Attributes: [MaxAttributes]Attribute{{SemanticPosition, 0, 2}}}
	buf := make([]byte, 8)
	PutFloat32s(buf, 0, 3, 4)

	got := DecodeVertex(buf, layout, 0)
	if got.Position != [3]float32{3, 4, 0} {
		t.Errorf("Position = %v", got.Position)
	}
	if got.Color != [4]float32{1, 1, 1, 1} {
		t.Errorf("Color default = %v, want opaque white", got.Color)
	}
}

func TestLayoutFind(t *testing.T) {
	tests := []struct {
		layout VertexLayout
		sem    Semantic
		ok     bool
		offset int
	}{
		{LayoutBatch, SemanticColor, true, 20},
		{LayoutBatch, SemanticNormal, false, 0},
		{LayoutMesh, SemanticNormal, true, 12},
		{LayoutMesh, SemanticNone, false, 0},
	}
	for _, tt := range tests {
		a, ok := tt.layout.Find(tt.sem)
		if ok != tt.ok || a.Offset != tt.offset {
			t.Errorf("Find(%d) = %+v, %v; want offset %d, %v", tt.sem, a, ok, tt.offset, tt.ok)
		}
	}
}

func TestEnumStrings(t *testing.T) {
	if FaceCulling.String() != "FaceCulling" || Blending.String() != "Blending" {
		t.Error("Toggle.String mismatch")
	}
	if BlendPremultiplied.String() != "Premultiplied" {
		t.Error("BlendMode.String mismatch")
	}
	if ShadingScreen.String() != "Screen" {
		t.Error("Shading.String mismatch")
	}
	if UniformMat4.String() != "mat4" {
		t.Error("UniformKind.String mismatch")
	}
}

func TestUniformBlockPut(t *testing.T) {
	block := &UniformBlock{
		Fields: []UniformField{
			{Name: "time", Kind: UniformFloat, Offset: 0},
			{Name: "mode", Kind: UniformUint, Offset: 4},
			{Name: "color", Kind: UniformVec4, Offset: 16},
		},
		Size: 32,
	}
	data := block.NewData()

	if err := block.Put(data, "time", Float(1.5)); err != nil {
		t.Fatalf("Put(time) = %v", err)
	}
	if err := block.Put(data, "mode", Bool(true)); err != nil {
		t.Fatalf("Put(mode) = %v", err)
	}
	if err := block.Put(data, "color", Vec4([4]float32{0, 0.5, 1, 1})); err != nil {
		t.Fatalf("Put(color) = %v", err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[0:])); got != 1.5 {
		t.Errorf("time = %v", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:]); got != 1 {
		t.Errorf("mode = %d", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[20:])); got != 0.5 {
		t.Errorf("color.g = %v", got)
	}

	if err := block.Put(data, "nope", Float(1)); !errors.Is(err, ErrUnknownUniform) {
		t.Errorf("Put(nope) = %v, want ErrUnknownUniform", err)
	}
	if err := block.Put(data, "color", Float(1)); !errors.Is(err, ErrUniformKind) {
		t.Errorf("Put(color, float) = %v, want ErrUniformKind", err)
	}
	var none *UniformBlock
	if _, err := none.Check("time", Float(1)); !errors.Is(err, ErrUnknownUniform) {
		t.Errorf("nil block Check = %v, want ErrUnknownUniform", err)
	}
}
