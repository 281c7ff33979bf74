// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/shader"
)

const uniformSize = shader.UniformSize

// clipDepthRemap maps OpenGL clip depth [-w, w] onto [0, w].
var clipDepthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// submission is a command buffer the GPU may still be reading.
type submission struct {
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

type drawCall struct {
	pipeline hal.RenderPipeline
	group    hal.BindGroup
	material hal.BindGroup
	vbuf     hal.Buffer
	ibuf     hal.Buffer
	first    int
	count    int
}

// DrawArrays implements gpu.Device.
func (d *Device) DrawArrays(first, count int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	vb, ok := d.buffers[d.vbuf]
	if !ok {
		return gpu.ErrNoVertexBuffer
	}
	if first < 0 || count < 0 || d.vlayout.Stride <= 0 || (first+count)*d.vlayout.Stride > vb.size {
		return fmt.Errorf("%w: draw [%d,%d) from %q of %d bytes, stride %d",
			gpu.ErrOutOfRange, first, first+count, vb.label, vb.size, d.vlayout.Stride)
	}
	if count < 3 {
		return nil
	}
	dc, err := d.prepare(vb)
	if err != nil || dc == nil {
		return err
	}
	dc.first, dc.count = first, count
	return d.encodePass("sr_draw", dc)
}

// DrawIndexed implements gpu.Device. Index values are not validated on the
// CPU.
func (d *Device) DrawIndexed(count int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	vb, ok := d.buffers[d.vbuf]
	if !ok {
		return gpu.ErrNoVertexBuffer
	}
	ib, ok := d.buffers[d.ibuf]
	if !ok {
		return gpu.ErrNoIndexBuffer
	}
	if count < 0 || count*4 > ib.size {
		return fmt.Errorf("%w: %d indices from %q of %d bytes", gpu.ErrOutOfRange, count, ib.label, ib.size)
	}
	if count < 3 {
		return nil
	}
	dc, err := d.prepare(vb)
	if err != nil || dc == nil {
		return err
	}
	dc.ibuf, dc.count = ib.raw, count
	return d.encodePass("sr_draw_indexed", dc)
}

// prepare resolves the bound state into a pipeline and bind group and
// uploads the program's uniforms. It returns nil without a program.
func (d *Device) prepare(vb *buffer) (*drawCall, error) {
	p, ok := d.programs[d.prog]
	if !ok {
		d.log.Warn("wgpu: draw without a program", "program", d.prog)
		return nil, nil
	}
	tex := d.tex
	if _, ok := d.textures[tex]; !ok && tex != 0 {
		d.log.Warn("wgpu: draw with unknown texture", "texture", tex)
		tex = 0
	}

	if err := d.writeUniforms(p); err != nil {
		return nil, err
	}
	key := pipelineKey{
		program:  d.prog,
		layout:   d.vlayout,
		cull:     d.toggles[gpu.FaceCulling],
		depth:    d.toggles[gpu.DepthTest],
		blending: d.toggles[gpu.Blending],
		blend:    d.blend,
	}
	if !key.blending {
		// The blend mode is ignored without blending.
		key.blend = gpu.BlendAlpha
	}
	pipe, err := d.pipeline(key, p)
	if err != nil {
		return nil, err
	}
	group, err := d.bindGroup(bindKey{program: d.prog, texture: tex}, p)
	if err != nil {
		return nil, err
	}
	return &drawCall{pipeline: pipe, group: group, material: p.materialGroup, vbuf: vb.raw}, nil
}

// packUniforms lays out the uniform block: mvp, tint, then the target size.
func (d *Device) packUniforms(p *program) [uniformSize]byte {
	mvp := clipDepthRemap.Mul4(mgl32.Mat4(p.mvp))
	tint := p.tint
	if p.desc.Shading == gpu.ShadingSolid {
		tint = p.desc.SolidColor
	}
	var data [uniformSize]byte
	off := gpu.PutFloat32s(data[:], 0, mvp[:]...)
	off = gpu.PutFloat32s(data[:], off, tint[:]...)
	gpu.PutFloat32s(data[:], off, float32(d.target.width), float32(d.target.height), 0, 0)
	return data
}

func (d *Device) writeUniforms(p *program) error {
	data := d.packUniforms(p)
	if err := d.queue.WriteBuffer(p.uniforms, 0, data[:]); err != nil {
		return fmt.Errorf("wgpu: write uniforms of %q: %w", p.desc.Label, err)
	}
	if p.materialBuf != nil && p.materialDirty {
		if err := d.queue.WriteBuffer(p.materialBuf, 0, p.material); err != nil {
			return fmt.Errorf("wgpu: write material of %q: %w", p.desc.Label, err)
		}
		p.materialDirty = false
		d.stats.MaterialWrites++
	}
	return nil
}

// encodePass records one render pass into the color and depth targets,
// applying any pending clear, and submits it. dc may be nil for a pass
// that only clears.
func (d *Device) encodePass(label string, dc *drawCall) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.Destroy()
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	colorLoad, depthLoad := gputypes.LoadOpLoad, gputypes.LoadOpLoad
	var clearColor gputypes.Color
	if c := d.clear; c != nil {
		colorLoad = gputypes.LoadOpClear
		clearColor = gputypes.Color{
			R: float64(c.color[0]),
			G: float64(c.color[1]),
			B: float64(c.color[2]),
			A: float64(c.color[3]),
		}
		if c.depth {
			depthLoad = gputypes.LoadOpClear
		}
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       d.target.colorView,
			LoadOp:     colorLoad,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor,
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:            d.target.depthView,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1.0,
			StencilLoadOp:   gputypes.LoadOpLoad,
			StencilStoreOp:  gputypes.StoreOpStore,
		},
	})
	if dc != nil {
		rp.SetPipeline(dc.pipeline)
		rp.SetBindGroup(0, dc.group, nil)
		if dc.material != nil {
			rp.SetBindGroup(1, dc.material, nil)
		}
		rp.SetVertexBuffer(0, dc.vbuf, 0)
		if dc.ibuf != nil {
			rp.SetIndexBuffer(dc.ibuf, gputypes.IndexFormatUint32, 0)
			rp.DrawIndexed(uint32(dc.count), 1, 0, 0, 0)
		} else {
			rp.Draw(uint32(dc.count), 1, uint32(dc.first), 0)
		}
		d.stats.DrawCalls++
	}
	rp.End()

	if err := d.submit(encoder); err != nil {
		return err
	}
	d.clear = nil
	d.stats.Passes++
	return nil
}

// submit ends encoding and queues the command buffer. It is freed by the
// next sync.
func (d *Device) submit(encoder hal.CommandEncoder) error {
	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.Destroy()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		d.device.FreeCommandBuffer(cmd)
		encoder.Destroy()
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	d.inflight = append(d.inflight, submission{encoder: encoder, cmd: cmd})
	d.stats.Submits++
	return nil
}

// Frame reads the color target back into an image. Pending clears are
// applied and all submitted work is waited for.
func (d *Device) Frame() (*image.NRGBA, error) {
	if d.destroyed {
		return nil, gpu.ErrDeviceDestroyed
	}
	if d.clear != nil {
		if err := d.encodePass("sr_clear", nil); err != nil {
			return nil, err
		}
	}

	w, h := uint32(d.target.width), uint32(d.target.height)
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "sr_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sr_readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sr_readback"); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target.color,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(d.target.color, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.target.color, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target.color,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	if err := d.submit(encoder); err != nil {
		return nil, err
	}
	if err := d.sync(); err != nil {
		return nil, err
	}

	mapping, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("wgpu: map readback buffer: %w", err)
	}
	defer func() {
		if err := d.device.UnmapBuffer(staging); err != nil {
			d.log.Warn("wgpu: unmap readback buffer", "error", err)
		}
	}()
	raw := unsafe.Slice((*byte)(mapping.Ptr), size)

	img := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	for y := range int(h) {
		src := raw[y*int(alignedBytesPerRow):]
		copy(img.Pix[y*img.Stride:(y+1)*img.Stride], src[:bytesPerRow])
	}
	return img, nil
}
