// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sr/gpu"
)

// pipelineKey is every piece of bound state baked into a render pipeline.
type pipelineKey struct {
	program  gpu.ProgramID
	layout   gpu.VertexLayout
	cull     bool
	depth    bool
	blending bool
	blend    gpu.BlendMode
}

// bindKey identifies the group 0 bind group of a program and texture pair.
// Texture 0 selects the white fallback.
type bindKey struct {
	program gpu.ProgramID
	texture gpu.TextureID
}

func (d *Device) pipeline(key pipelineKey, p *program) (hal.RenderPipeline, error) {
	return d.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		return d.createPipeline(key, p)
	})
}

func (d *Device) createPipeline(key pipelineKey, p *program) (hal.RenderPipeline, error) {
	cull := gputypes.CullModeNone
	if key.cull {
		cull = gputypes.CullModeBack
	}

	depth := &hal.DepthStencilState{
		Format:            depthFormat,
		DepthWriteEnabled: key.depth,
		DepthCompare:      gputypes.CompareFunctionAlways,
		StencilFront:      hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
		StencilBack:       hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
	}
	if key.depth {
		depth.DepthCompare = gputypes.CompareFunctionLess
	}

	var blend *gputypes.BlendState
	if key.blending {
		blend = blendState(key.blend)
	}

	layout := d.pipeLayout
	if p.materialGroup != nil {
		layout = d.materialPipe
	}
	label := fmt.Sprintf("%s_pipeline", p.desc.Label)
	pipe, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    []gputypes.VertexBufferLayout{vertexBufferLayout(key.layout)},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  cull,
		},
		DepthStencil: depth,
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    colorFormat,
				Blend:     blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline %s: %w", label, err)
	}
	d.stats.PipelinesBuilt++
	d.log.Debug("wgpu: pipeline created", "program", key.program, "cull", key.cull,
		"depth", key.depth, "blending", key.blending, "blend", key.blend.String())
	return pipe, nil
}

// blendState maps a blend mode to its fixed-function equation.
func blendState(m gpu.BlendMode) *gputypes.BlendState {
	var s gputypes.BlendState
	switch m {
	case gpu.BlendAdditive:
		s = gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorSrcAlpha,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case gpu.BlendPremultiplied:
		s = gputypes.BlendStatePremultiplied()
	default:
		s = gputypes.BlendStateAlpha()
	}
	return &s
}

// vertexBufferLayout converts a vertex layout to a single interleaved
// buffer layout. Shader locations follow the semantic numbering.
func vertexBufferLayout(l gpu.VertexLayout) gputypes.VertexBufferLayout {
	attrs := make([]gputypes.VertexAttribute, 0, gpu.MaxAttributes)
	for _, a := range l.Attributes {
		if a.Semantic == gpu.SemanticNone {
			continue
		}
		attrs = append(attrs, gputypes.VertexAttribute{
			Format:         vertexFormat(a.Components),
			Offset:         uint64(a.Offset),
			ShaderLocation: uint32(a.Semantic - 1),
		})
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(l.Stride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}
}

func vertexFormat(components int) gputypes.VertexFormat {
	switch components {
	case 1:
		return gputypes.VertexFormatFloat32
	case 2:
		return gputypes.VertexFormatFloat32x2
	case 3:
		return gputypes.VertexFormatFloat32x3
	default:
		return gputypes.VertexFormatFloat32x4
	}
}

func (d *Device) bindGroup(key bindKey, p *program) (hal.BindGroup, error) {
	return d.bindGroups.GetOrCreate(key, func() (hal.BindGroup, error) {
		t := d.white
		if key.texture != 0 {
			t = d.textures[key.texture]
		}
		sampler := d.linear
		if t.nearest {
			sampler = d.nearest
		}
		g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  p.desc.Label + "_bind",
			Layout: d.groupLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: p.uniforms.NativeHandle(), Offset: 0, Size: uniformSize,
				}},
				{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}},
				{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()}},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create bind group: %w", err)
		}
		return g, nil
	})
}
