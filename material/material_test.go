package material

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/gpu/gputest"
	"github.com/gogpu/sr/shader"
)

func TestAddSetGet(t *testing.T) {
	m := New("lit", 3)
	if err := m.Add("Tint", gpu.Vec4([4]float32{1, 1, 1, 1})); err != nil {
		t.Fatal(err)
	}
	if err := m.Add("Time", gpu.Float(0)); err != nil {
		t.Fatal(err)
	}

	if err := m.SetFloat("Time", 2.5); err != nil {
		t.Fatalf("SetFloat() = %v", err)
	}
	u, ok := m.Get("Time")
	if !ok || u.F[0] != 2.5 {
		t.Errorf("Get(Time) = %v, %v", u, ok)
	}
	if got := m.Names(); !slices.Equal(got, []string{"Tint", "Time"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestErrors(t *testing.T) {
	m := New("m", 1)
	_ = m.Add("A", gpu.Float(1))

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate", m.Add("A", gpu.Float(2)), ErrDuplicate},
		{"unknown", m.SetFloat("B", 1), ErrUnknownUniform},
		{"kind", m.SetVec4("A", mgl32.Vec4{}), ErrKindMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestCapacity(t *testing.T) {
	m := New("full", 1)
	for i := range MaxUniforms {
		if err := m.Add(fmt.Sprintf("u%d", i), gpu.Int(int32(i))); err != nil {
			t.Fatalf("Add(%d) = %v", i, err)
		}
	}
	if err := m.Add("extra", gpu.Int(0)); !errors.Is(err, ErrTooManyUniforms) {
		t.Errorf("Add past capacity = %v, want ErrTooManyUniforms", err)
	}
	if m.Len() != MaxUniforms {
		t.Errorf("Len() = %d", m.Len())
	}
}

func TestApply(t *testing.T) {
	rec := gputest.New(8, 8)
	prog, _ := rec.CreateProgram(gpu.ProgramDescriptor{Label: "p"})
	rec.UseProgram(prog)

	m := New("m", prog)
	_ = m.Add(gpu.UniformMVP, gpu.Mat4(gpu.Identity))
	_ = m.Add(gpu.UniformTint, gpu.Vec4([4]float32{1, 0, 0, 1}))
	_ = m.SetMat4(gpu.UniformMVP, mgl32.Scale3D(2, 2, 2))
	if err := m.Apply(rec); err != nil {
		t.Fatalf("Apply() = %v", err)
	}

	u, ok := rec.Uniform(prog, gpu.UniformMVP)
	if !ok || u.F[0] != 2 || u.F[15] != 1 {
		t.Errorf("MVP = %v, %v", u.F, ok)
	}
	if u, _ := rec.Uniform(prog, gpu.UniformTint); u.Vec4Value() != [4]float32{1, 0, 0, 1} {
		t.Errorf("Tint = %v", u.Vec4Value())
	}
}

func TestApplyMaterialBlock(t *testing.T) {
	block, err := shader.Reflect(shader.TexturedWGSL + `
struct Surface {
    u_time: f32,
    u_color: vec4<f32>,
    u_mode: u32,
    u_scale: vec2<f32>,
}
@group(1) @binding(0) var<uniform> surface: Surface;
`)
	if err != nil {
		t.Fatalf("Reflect() = %v", err)
	}
	rec := gputest.New(8, 8)
	prog, _ := rec.CreateProgram(gpu.ProgramDescriptor{Label: "surface", Uniforms: block})
	rec.UseProgram(prog)

	m := New("surface", prog)
	_ = m.Add("u_time", gpu.Float(3.5))
	_ = m.Add("u_color", gpu.Vec4([4]float32{1, 0.5, 0, 1}))
	_ = m.Add("u_mode", gpu.Bool(true))
	_ = m.Add("u_missing", gpu.Float(1))
	_ = m.Add("u_scale", gpu.Float(2))

	err = m.Apply(rec)
	if !errors.Is(err, gpu.ErrUnknownUniform) || !errors.Is(err, gpu.ErrUniformKind) {
		t.Fatalf("Apply() = %v, want unknown and kind errors", err)
	}
	for _, name := range []string{"u_time", "u_color", "u_mode"} {
		if _, ok := rec.Uniform(prog, name); !ok {
			t.Errorf("%s was not applied", name)
		}
	}
	for _, name := range []string{"u_missing", "u_scale"} {
		if _, ok := rec.Uniform(prog, name); ok {
			t.Errorf("%s was applied despite the error", name)
		}
	}
}
