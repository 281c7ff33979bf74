package gpu

import (
	"encoding/binary"
	"fmt"
)

// Standard uniform names understood by every backend.
const (
	// UniformMVP is the model-view-projection matrix (Mat4, column-major).
	UniformMVP = "MVP"
	// UniformTint multiplies the output color of textured programs (Vec4).
	UniformTint = "Tint"
)

// UniformKind is the type of a uniform value.
type UniformKind uint8

const (
	UniformFloat UniformKind = iota
	UniformVec2
	UniformVec3
	UniformVec4
	UniformInt
	UniformUint
	UniformBool
	UniformMat4
)

// String returns the kind name.
func (k UniformKind) String() string {
	switch k {
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformVec3:
		return "vec3"
	case UniformVec4:
		return "vec4"
	case UniformInt:
		return "int"
	case UniformUint:
		return "uint"
	case UniformBool:
		return "bool"
	case UniformMat4:
		return "mat4"
	default:
		return "unknown"
	}
}

// Uniform is a tagged uniform value. Float kinds use F, integer and bool
// kinds use I. Matrices are column-major.
type Uniform struct {
	Kind UniformKind
	F    [16]float32
	I    [4]int32
}

// Float returns a float uniform.
func Float(v float32) Uniform { return Uniform{Kind: UniformFloat, F: [16]float32{v}} }

// Vec2 returns a vec2 uniform.
func Vec2(x, y float32) Uniform { return Uniform{Kind: UniformVec2, F: [16]float32{x, y}} }

// Vec3 returns a vec3 uniform.
func Vec3(x, y, z float32) Uniform { return Uniform{Kind: UniformVec3, F: [16]float32{x, y, z}} }

// Vec4 returns a vec4 uniform.
func Vec4(v [4]float32) Uniform {
	return Uniform{Kind: UniformVec4, F: [16]float32{v[0], v[1], v[2], v[3]}}
}

// Int returns an int uniform.
func Int(v int32) Uniform { return Uniform{Kind: UniformInt, I: [4]int32{v}} }

// Uint returns a uint uniform.
func Uint(v uint32) Uniform { return Uniform{Kind: UniformUint, I: [4]int32{int32(v)}} }

// Bool returns a bool uniform.
func Bool(v bool) Uniform {
	u := Uniform{Kind: UniformBool}
	if v {
		u.I[0] = 1
	}
	return u
}

// Mat4 returns a mat4 uniform from a column-major matrix.
func Mat4(m [16]float32) Uniform { return Uniform{Kind: UniformMat4, F: m} }

// Vec4Value returns the first four float components.
func (u Uniform) Vec4Value() [4]float32 { return [4]float32{u.F[0], u.F[1], u.F[2], u.F[3]} }

// Identity is the 4x4 identity matrix.
var Identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// UniformField is one member of a uniform block.
type UniformField struct {
	Name   string
	Kind   UniformKind
	Offset int
}

// size returns the number of bytes the field occupies.
func (f UniformField) size() int {
	switch f.Kind {
	case UniformVec2:
		return 8
	case UniformVec3:
		return 12
	case UniformVec4:
		return 16
	case UniformMat4:
		return 64
	default:
		return 4
	}
}

// UniformBlock is the WGSL layout of a program's material uniform struct.
type UniformBlock struct {
	Fields []UniformField
	// Size is the struct size in bytes, a multiple of 16.
	Size int
}

// Field returns the member called name.
func (b *UniformBlock) Field(name string) (UniformField, bool) {
	if b == nil {
		return UniformField{}, false
	}
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return UniformField{}, false
}

// Check reports whether u can be stored in the member called name. A bool
// value fits a u32 member since WGSL uniforms cannot hold bool.
func (b *UniformBlock) Check(name string, u Uniform) (UniformField, error) {
	f, ok := b.Field(name)
	if !ok {
		return f, fmt.Errorf("%w: %q", ErrUnknownUniform, name)
	}
	if f.Kind != u.Kind && !(f.Kind == UniformUint && u.Kind == UniformBool) {
		return f, fmt.Errorf("%w: %q is %s, got %s", ErrUniformKind, name, f.Kind, u.Kind)
	}
	return f, nil
}

// Put writes u into data, which must be Size bytes, at the offset of the
// member called name.
func (b *UniformBlock) Put(data []byte, name string, u Uniform) error {
	f, err := b.Check(name, u)
	if err != nil {
		return err
	}
	if f.Offset+f.size() > len(data) {
		return fmt.Errorf("%w: %q at %d in %d bytes", ErrOutOfRange, name, f.Offset, len(data))
	}
	switch f.Kind {
	case UniformInt, UniformUint:
		binary.LittleEndian.PutUint32(data[f.Offset:], uint32(u.I[0]))
	default:
		PutFloat32s(data, f.Offset, u.F[:f.size()/4]...)
	}
	return nil
}

// NewData returns a zeroed buffer for the block.
func (b *UniformBlock) NewData() []byte {
	if b == nil {
		return nil
	}
	return make([]byte, b.Size)
}
