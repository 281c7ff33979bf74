package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/sr/gpu"
)

// MaterialGroup and MaterialBinding locate the material uniform struct of
// a custom program:
//
//	struct Material {
//	    time: f32,
//	    color: vec4<f32>,
//	}
//	@group(1) @binding(0) var<uniform> material: Material;
const (
	MaterialGroup   = 1
	MaterialBinding = 0
)

// Reflect returns the layout of the material uniform struct declared in
// wgsl, or nil when the module has none. Member offsets come from naga's
// WGSL layout rules.
func Reflect(wgsl string) (*gpu.UniformBlock, error) {
	ast, err := naga.Parse(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	module, err := naga.LowerWithSource(ast, wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	for _, g := range module.GlobalVariables {
		if g.Space != ir.SpaceUniform || g.Binding == nil ||
			g.Binding.Group != MaterialGroup || g.Binding.Binding != MaterialBinding {
			continue
		}
		return reflectStruct(module, g)
	}
	return nil, nil
}

func reflectStruct(module *ir.Module, g ir.GlobalVariable) (*gpu.UniformBlock, error) {
	st, ok := typeInner(module, g.Type).(ir.StructType)
	if !ok {
		return nil, fmt.Errorf("shader: material %q is not a struct", g.Name)
	}
	block := &gpu.UniformBlock{Size: int(st.Span+15) &^ 15}
	for _, m := range st.Members {
		kind, err := memberKind(typeInner(module, m.Type))
		if err != nil {
			return nil, fmt.Errorf("shader: material member %q: %w", m.Name, err)
		}
		block.Fields = append(block.Fields, gpu.UniformField{Name: m.Name, Kind: kind, Offset: int(m.Offset)})
	}
	return block, nil
}

func typeInner(module *ir.Module, h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(module.Types) {
		return nil
	}
	return module.Types[h].Inner
}

func memberKind(t ir.TypeInner) (gpu.UniformKind, error) {
	switch t := t.(type) {
	case ir.ScalarType:
		switch t.Kind {
		case ir.ScalarFloat:
			return gpu.UniformFloat, nil
		case ir.ScalarSint:
			return gpu.UniformInt, nil
		case ir.ScalarUint:
			return gpu.UniformUint, nil
		}
	case ir.VectorType:
		if t.Scalar.Kind == ir.ScalarFloat {
			switch t.Size {
			case ir.Vec2:
				return gpu.UniformVec2, nil
			case ir.Vec3:
				return gpu.UniformVec3, nil
			case ir.Vec4:
				return gpu.UniformVec4, nil
			}
		}
	case ir.MatrixType:
		if t.Columns == ir.Vec4 && t.Rows == ir.Vec4 && t.Scalar.Kind == ir.ScalarFloat {
			return gpu.UniformMat4, nil
		}
	}
	return 0, fmt.Errorf("unsupported type %T", t)
}
