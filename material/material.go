// Package material pairs a shader program with a fixed set of named
// uniform values.
//
// MVP and Tint are the standard uniforms every program has. Any other name
// must be a member of the program's material block, the struct bound at
// @group(1) @binding(0) of its WGSL.
package material

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/sr/gpu"
)

// MaxUniforms is the number of uniforms a material can hold.
const MaxUniforms = 16

var (
	// ErrTooManyUniforms is returned by Add past MaxUniforms.
	ErrTooManyUniforms = errors.New("material: too many uniforms")

	// ErrDuplicate is returned by Add for a name already declared.
	ErrDuplicate = errors.New("material: uniform already declared")

	// ErrUnknownUniform is returned by Set for an undeclared name.
	ErrUnknownUniform = errors.New("material: unknown uniform")

	// ErrKindMismatch is returned by Set when the value kind differs from
	// the declared one.
	ErrKindMismatch = errors.New("material: uniform kind mismatch")
)

// Device is the part of a gpu.Device a material needs.
type Device interface {
	SetUniform(name string, u gpu.Uniform)
	UniformLayout(prog gpu.ProgramID) *gpu.UniformBlock
}

type entry struct {
	name  string
	value gpu.Uniform
}

// Material is a program plus up to MaxUniforms uniforms, applied in
// declaration order.
type Material struct {
	Name    string
	Program gpu.ProgramID

	entries [MaxUniforms]entry
	n       int
}

// New returns an empty material for prog.
func New(name string, prog gpu.ProgramID) *Material {
	return &Material{Name: name, Program: prog}
}

// Add declares a uniform with its initial value.
func (m *Material) Add(name string, u gpu.Uniform) error {
	if m.find(name) >= 0 {
		return fmt.Errorf("%w: %q in %s", ErrDuplicate, name, m.Name)
	}
	if m.n == MaxUniforms {
		return fmt.Errorf("%w: %s has %d", ErrTooManyUniforms, m.Name, MaxUniforms)
	}
	m.entries[m.n] = entry{name: name, value: u}
	m.n++
	return nil
}

// Set replaces the value of a declared uniform. The kind cannot change.
func (m *Material) Set(name string, u gpu.Uniform) error {
	i := m.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q in %s", ErrUnknownUniform, name, m.Name)
	}
	if m.entries[i].value.Kind != u.Kind {
		return fmt.Errorf("%w: %q is %s, got %s", ErrKindMismatch, name, m.entries[i].value.Kind, u.Kind)
	}
	m.entries[i].value = u
	return nil
}

// Get returns the value of a declared uniform.
func (m *Material) Get(name string) (gpu.Uniform, bool) {
	if i := m.find(name); i >= 0 {
		return m.entries[i].value, true
	}
	return gpu.Uniform{}, false
}

// SetFloat sets a float uniform.
func (m *Material) SetFloat(name string, v float32) error {
	return m.Set(name, gpu.Float(v))
}

// SetVec4 sets a vec4 uniform.
func (m *Material) SetVec4(name string, v mgl32.Vec4) error {
	return m.Set(name, gpu.Vec4(v))
}

// SetMat4 sets a mat4 uniform.
func (m *Material) SetMat4(name string, v mgl32.Mat4) error {
	return m.Set(name, gpu.Mat4(v))
}

// Len returns the number of declared uniforms.
func (m *Material) Len() int { return m.n }

// Names returns the uniform names in declaration order.
func (m *Material) Names() []string {
	names := make([]string, m.n)
	for i := range m.n {
		names[i] = m.entries[i].name
	}
	return names
}

// Apply uploads every uniform to the program currently bound on dev, which
// should be m.Program. Uniforms the program's material block does not
// declare, or declares with another kind, are skipped and reported in the
// returned error, wrapping gpu.ErrUnknownUniform or gpu.ErrUniformKind.
func (m *Material) Apply(dev Device) error {
	block := dev.UniformLayout(m.Program)
	var errs []error
	for i := range m.n {
		e := m.entries[i]
		if e.name != gpu.UniformMVP && e.name != gpu.UniformTint {
			if _, err := block.Check(e.name, e.value); err != nil {
				errs = append(errs, fmt.Errorf("material %s: %w", m.Name, err))
				continue
			}
		}
		dev.SetUniform(e.name, e.value)
	}
	return errors.Join(errs...)
}

func (m *Material) find(name string) int {
	for i := range m.n {
		if m.entries[i].name == name {
			return i
		}
	}
	return -1
}
