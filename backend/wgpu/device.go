// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sr/backend"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/internal/cache"
)

func init() {
	backend.Register(backend.BackendWGPU, func(cfg backend.Config) (gpu.Device, error) {
		return Open(cfg.Width, cfg.Height)
	})
}

const (
	colorFormat = gputypes.TextureFormatRGBA8Unorm
	depthFormat = gputypes.TextureFormatDepth24Plus

	// copyPitchAlignment is the required BytesPerRow alignment of
	// texture-to-buffer copies.
	copyPitchAlignment = 256
)

type buffer struct {
	raw   hal.Buffer
	size  int
	usage gpu.BufferUsage
	label string
}

type texture struct {
	raw     hal.Texture
	view    hal.TextureView
	width   int
	height  int
	nearest bool
}

type program struct {
	desc     gpu.ProgramDescriptor
	module   hal.ShaderModule
	uniforms hal.Buffer
	mvp      [16]float32
	tint     [4]float32

	// Material block at group 1, present when desc.Uniforms is set.
	material      []byte
	materialBuf   hal.Buffer
	materialGroup hal.BindGroup
	materialDirty bool
}

type renderTarget struct {
	color     hal.Texture
	colorView hal.TextureView
	depth     hal.Texture
	depthView hal.TextureView
	width     int
	height    int
}

type pendingClear struct {
	color [4]float32
	depth bool
}

// Stats counts device work since creation.
type Stats struct {
	DrawCalls      int
	Passes         int
	Submits        int
	Presents       int
	PipelinesBuilt int
	MaterialWrites int
}

// Device implements gpu.Device on a hal device and queue. It is not safe
// for concurrent use.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // nil when the hal device was supplied by the caller

	groupLayout    hal.BindGroupLayout
	pipeLayout     hal.PipelineLayout
	materialLayout hal.BindGroupLayout
	materialPipe   hal.PipelineLayout
	linear      hal.Sampler
	nearest     hal.Sampler
	white       *texture
	target      renderTarget

	buffers  map[gpu.BufferID]*buffer
	textures map[gpu.TextureID]*texture
	programs map[gpu.ProgramID]*program
	next     uint32

	pipelines  *cache.Cache[pipelineKey, hal.RenderPipeline]
	bindGroups *cache.Cache[bindKey, hal.BindGroup]

	prog    gpu.ProgramID
	tex     gpu.TextureID
	toggles [3]bool
	blend   gpu.BlendMode
	vbuf    gpu.BufferID
	vlayout gpu.VertexLayout
	ibuf    gpu.BufferID
	clear   *pendingClear

	inflight  []submission
	log       *slog.Logger
	stats     Stats
	destroyed bool
}

var nopLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))

// Open selects the best registered hal backend, opens its preferred adapter
// and returns a device rendering into a width x height offscreen target.
// It fails with backend.ErrBackendNotAvailable when only the noop hal
// backend is linked in.
func Open(width, height int) (*Device, error) {
	hb, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, err)
	}
	if hb.Variant() == gputypes.BackendEmpty {
		return nil, fmt.Errorf("%w: no hardware hal backend linked", backend.ErrBackendNotAvailable)
	}

	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", backend.ErrBackendNotAvailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", backend.ErrBackendNotAvailable)
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", backend.ErrBackendNotAvailable, err)
	}

	d, err := New(openDev.Device, openDev.Queue, width, height)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.log.Info("wgpu: device opened", "adapter", selected.Info.Name, "backend", hb.Variant().String())
	return d, nil
}

// New wraps an open hal device and queue. The device takes ownership of
// both and destroys the hal device in Destroy.
func New(device hal.Device, queue hal.Queue, width, height int) (*Device, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	d := &Device{
		device:   device,
		queue:    queue,
		buffers:  make(map[gpu.BufferID]*buffer),
		textures: make(map[gpu.TextureID]*texture),
		programs: make(map[gpu.ProgramID]*program),
		log:      nopLogger,
	}
	d.pipelines = cache.New(0, func(_ pipelineKey, p hal.RenderPipeline) {
		d.device.DestroyRenderPipeline(p)
	})
	d.bindGroups = cache.New(0, func(_ bindKey, g hal.BindGroup) {
		d.device.DestroyBindGroup(g)
	})

	if err := d.createShared(); err != nil {
		d.releaseShared()
		return nil, err
	}
	if err := d.createTarget(width, height); err != nil {
		d.releaseShared()
		return nil, err
	}
	return d, nil
}

// createShared builds the objects every program shares: the group 0
// layout, samplers and the white fallback texture.
func (d *Device) createShared() error {
	var err error
	d.groupLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "sr_group0_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout: %w", err)
	}

	d.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "sr_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.groupLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	d.materialLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "sr_material_layout",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create material layout: %w", err)
	}
	d.materialPipe, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "sr_material_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.groupLayout, d.materialLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create material pipeline layout: %w", err)
	}

	if d.linear, err = d.createSampler("sr_linear", gputypes.FilterModeLinear); err != nil {
		return err
	}
	if d.nearest, err = d.createSampler("sr_nearest", gputypes.FilterModeNearest); err != nil {
		return err
	}

	d.white, err = d.createTexture(gpu.TextureDescriptor{
		Label:   "sr_white",
		Width:   1,
		Height:  1,
		Pixels:  []byte{255, 255, 255, 255},
		Nearest: true,
	})
	if err != nil {
		return err
	}
	return nil
}

func (d *Device) createSampler(label string, filter gputypes.FilterMode) (hal.Sampler, error) {
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create sampler %s: %w", label, err)
	}
	return s, nil
}

func (d *Device) releaseShared() {
	if d.white != nil {
		d.releaseTexture(d.white)
		d.white = nil
	}
	if d.nearest != nil {
		d.device.DestroySampler(d.nearest)
		d.nearest = nil
	}
	if d.linear != nil {
		d.device.DestroySampler(d.linear)
		d.linear = nil
	}
	if d.materialPipe != nil {
		d.device.DestroyPipelineLayout(d.materialPipe)
		d.materialPipe = nil
	}
	if d.materialLayout != nil {
		d.device.DestroyBindGroupLayout(d.materialLayout)
		d.materialLayout = nil
	}
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.groupLayout != nil {
		d.device.DestroyBindGroupLayout(d.groupLayout)
		d.groupLayout = nil
	}
}

func (d *Device) createTarget(width, height int) error {
	t := renderTarget{width: width, height: height}
	size := hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	var err error
	t.color, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "sr_color_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        colorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create color target: %w", err)
	}
	t.colorView, err = d.device.CreateTextureView(t.color, &hal.TextureViewDescriptor{
		Label:         "sr_color_target_view",
		Format:        colorFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(t.color)
		return fmt.Errorf("wgpu: create color target view: %w", err)
	}

	t.depth, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "sr_depth_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		d.device.DestroyTextureView(t.colorView)
		d.device.DestroyTexture(t.color)
		return fmt.Errorf("wgpu: create depth target: %w", err)
	}
	t.depthView, err = d.device.CreateTextureView(t.depth, &hal.TextureViewDescriptor{
		Label:         "sr_depth_target_view",
		Format:        depthFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectDepthOnly,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(t.depth)
		d.device.DestroyTextureView(t.colorView)
		d.device.DestroyTexture(t.color)
		return fmt.Errorf("wgpu: create depth target view: %w", err)
	}

	d.target = t
	// A fresh target has undefined contents.
	d.clear = &pendingClear{depth: true}
	return nil
}

func (d *Device) releaseTarget() {
	t := d.target
	if t.depthView != nil {
		d.device.DestroyTextureView(t.depthView)
	}
	if t.depth != nil {
		d.device.DestroyTexture(t.depth)
	}
	if t.colorView != nil {
		d.device.DestroyTextureView(t.colorView)
	}
	if t.color != nil {
		d.device.DestroyTexture(t.color)
	}
	d.target = renderTarget{}
}

// SetLogger sets the device logger. nil silences it.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = nopLogger
	}
	d.log = l
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

// sync waits for submitted work and frees its command buffers. Resources
// are only released after a sync so that no in-flight pass references them.
func (d *Device) sync() error {
	if len(d.inflight) == 0 {
		return nil
	}
	err := d.device.WaitIdle()
	for _, s := range d.inflight {
		d.device.FreeCommandBuffer(s.cmd)
		s.encoder.Destroy()
	}
	clear(d.inflight)
	d.inflight = d.inflight[:0]
	if err != nil {
		return fmt.Errorf("wgpu: wait idle: %w", err)
	}
	return nil
}

func (d *Device) syncQuiet() {
	if err := d.sync(); err != nil {
		d.log.Warn("wgpu: sync failed", "error", err)
	}
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.BufferID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	if desc.Size <= 0 {
		return 0, fmt.Errorf("%w: buffer %q size %d", gpu.ErrOutOfRange, desc.Label, desc.Size)
	}
	usage := gputypes.BufferUsageVertex
	if desc.Usage == gpu.UsageIndex {
		usage = gputypes.BufferUsageIndex
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(align4(desc.Size)),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	id := gpu.BufferID(d.id())
	d.buffers[id] = &buffer{raw: raw, size: desc.Size, usage: desc.Usage, label: desc.Label}
	return id, nil
}

// UploadBuffer implements gpu.Device. Writes are ordered with the draws
// around them.
func (d *Device) UploadBuffer(buf gpu.BufferID, offset int, data []byte) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	b, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrInvalidHandle, buf)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("%w: upload [%d,%d) into %q of %d bytes",
			gpu.ErrOutOfRange, offset, offset+len(data), b.label, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: upload offset %d into %q is not 4-byte aligned", gpu.ErrOutOfRange, offset, b.label)
	}
	if n := align4(len(data)); n != len(data) {
		padded := make([]byte, n)
		copy(padded, data)
		data = padded
	}
	if err := d.queue.WriteBuffer(b.raw, uint64(offset), data); err != nil {
		return fmt.Errorf("wgpu: write buffer %q: %w", b.label, err)
	}
	return nil
}

// DestroyBuffer implements gpu.Device.
func (d *Device) DestroyBuffer(buf gpu.BufferID) {
	b, ok := d.buffers[buf]
	if !ok {
		return
	}
	d.syncQuiet()
	d.device.DestroyBuffer(b.raw)
	delete(d.buffers, buf)
	if d.vbuf == buf {
		d.vbuf = 0
	}
	if d.ibuf == buf {
		d.ibuf = 0
	}
}

// CreateTexture implements gpu.Device.
func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.TextureID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	t, err := d.createTexture(desc)
	if err != nil {
		return 0, err
	}
	id := gpu.TextureID(d.id())
	d.textures[id] = t
	d.log.Debug("wgpu: texture created", "id", id, "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

func (d *Device) createTexture(desc gpu.TextureDescriptor) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", gpu.ErrOutOfRange, desc.Label, desc.Width, desc.Height)
	}
	size := desc.Width * desc.Height * 4
	if desc.Pixels != nil && len(desc.Pixels) != size {
		return nil, fmt.Errorf("%w: texture %q has %d bytes, want %d",
			gpu.ErrOutOfRange, desc.Label, len(desc.Pixels), size)
	}

	w, h := uint32(desc.Width), uint32(desc.Height)
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        colorFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        colorFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
		return nil, fmt.Errorf("wgpu: create texture view %q: %w", desc.Label, err)
	}

	pixels := desc.Pixels
	if pixels == nil {
		pixels = make([]byte, size)
	}
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: raw, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		d.device.DestroyTextureView(view)
		d.device.DestroyTexture(raw)
		return nil, fmt.Errorf("wgpu: upload texture %q: %w", desc.Label, err)
	}
	return &texture{raw: raw, view: view, width: desc.Width, height: desc.Height, nearest: desc.Nearest}, nil
}

func (d *Device) releaseTexture(t *texture) {
	d.device.DestroyTextureView(t.view)
	d.device.DestroyTexture(t.raw)
}

// DestroyTexture implements gpu.Device.
func (d *Device) DestroyTexture(tex gpu.TextureID) {
	t, ok := d.textures[tex]
	if !ok {
		return
	}
	d.syncQuiet()
	d.bindGroups.DeleteFunc(func(k bindKey, _ hal.BindGroup) bool { return k.texture == tex })
	d.releaseTexture(t)
	delete(d.textures, tex)
	if d.tex == tex {
		d.tex = 0
	}
}

// CreateProgram implements gpu.Device. The module is compiled from SPIRV
// when present and from WGSL otherwise.
func (d *Device) CreateProgram(desc gpu.ProgramDescriptor) (gpu.ProgramID, error) {
	if d.destroyed {
		return 0, gpu.ErrDeviceDestroyed
	}
	if desc.WGSL == "" && len(desc.SPIRV) == 0 {
		return 0, fmt.Errorf("wgpu: program %q has no shader source", desc.Label)
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{WGSL: desc.WGSL, SPIRV: desc.SPIRV},
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: compile program %q: %w", desc.Label, err)
	}
	uniforms, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label + "_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		return 0, fmt.Errorf("wgpu: create uniform buffer for %q: %w", desc.Label, err)
	}

	p := &program{
		desc:     desc,
		module:   module,
		uniforms: uniforms,
		mvp:      gpu.Identity,
		tint:     [4]float32{1, 1, 1, 1},
	}
	if err := d.createMaterial(p); err != nil {
		d.releaseProgram(p)
		return 0, err
	}
	id := gpu.ProgramID(d.id())
	d.programs[id] = p
	d.log.Debug("wgpu: program created", "id", id, "label", desc.Label, "shading", desc.Shading.String())
	return id, nil
}

// DestroyProgram implements gpu.Device.
func (d *Device) DestroyProgram(prog gpu.ProgramID) {
	p, ok := d.programs[prog]
	if !ok {
		return
	}
	d.syncQuiet()
	d.pipelines.DeleteFunc(func(k pipelineKey, _ hal.RenderPipeline) bool { return k.program == prog })
	d.bindGroups.DeleteFunc(func(k bindKey, _ hal.BindGroup) bool { return k.program == prog })
	d.releaseProgram(p)
	delete(d.programs, prog)
	if d.prog == prog {
		d.prog = 0
	}
}

// createMaterial allocates the group 1 buffer and bind group of a program
// that declares a material block.
func (d *Device) createMaterial(p *program) error {
	block := p.desc.Uniforms
	if block == nil || block.Size == 0 {
		return nil
	}
	var err error
	p.materialBuf, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.desc.Label + "_material",
		Size:  uint64(block.Size),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create material buffer for %q: %w", p.desc.Label, err)
	}
	p.materialGroup, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  p.desc.Label + "_material_bind",
		Layout: d.materialLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.materialBuf.NativeHandle(), Offset: 0, Size: uint64(block.Size),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create material bind group for %q: %w", p.desc.Label, err)
	}
	p.material = block.NewData()
	p.materialDirty = true
	return nil
}

func (d *Device) releaseProgram(p *program) {
	if p.materialGroup != nil {
		d.device.DestroyBindGroup(p.materialGroup)
	}
	if p.materialBuf != nil {
		d.device.DestroyBuffer(p.materialBuf)
	}
	d.device.DestroyBuffer(p.uniforms)
	d.device.DestroyShaderModule(p.module)
}

// UseProgram implements gpu.Device.
func (d *Device) UseProgram(prog gpu.ProgramID) { d.prog = prog }

// BindTexture implements gpu.Device. Only unit 0 exists in the bind group.
func (d *Device) BindTexture(unit int, tex gpu.TextureID) {
	if unit != 0 {
		d.log.Warn("wgpu: texture unit ignored", "unit", unit)
		return
	}
	d.tex = tex
}

// SetToggle implements gpu.Device.
func (d *Device) SetToggle(t gpu.Toggle, enabled bool) {
	if int(t) < len(d.toggles) {
		d.toggles[t] = enabled
	}
}

// SetBlendMode implements gpu.Device.
func (d *Device) SetBlendMode(m gpu.BlendMode) { d.blend = m }

// SetUniform implements gpu.Device. MVP and Tint go to the group 0 block;
// other names are written into the program's material block.
func (d *Device) SetUniform(name string, u gpu.Uniform) {
	p, ok := d.programs[d.prog]
	if !ok {
		d.log.Warn("wgpu: uniform set without a program", "name", name)
		return
	}
	switch name {
	case gpu.UniformMVP:
		p.mvp = u.F
	case gpu.UniformTint:
		p.tint = u.Vec4Value()
	default:
		if err := p.desc.Uniforms.Put(p.material, name, u); err != nil {
			d.log.Warn("wgpu: uniform dropped", "program", d.prog, "err", err)
			return
		}
		p.materialDirty = true
	}
}

// UniformLayout implements gpu.Device.
func (d *Device) UniformLayout(prog gpu.ProgramID) *gpu.UniformBlock {
	if p, ok := d.programs[prog]; ok {
		return p.desc.Uniforms
	}
	return nil
}

// BindVertexBuffer implements gpu.Device.
func (d *Device) BindVertexBuffer(buf gpu.BufferID, layout gpu.VertexLayout) {
	d.vbuf, d.vlayout = buf, layout
}

// BindIndexBuffer implements gpu.Device.
func (d *Device) BindIndexBuffer(buf gpu.BufferID) { d.ibuf = buf }

// Clear implements gpu.Device. The clear is applied by the next pass.
func (d *Device) Clear(color [4]float32, depth bool) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	if d.clear != nil && d.clear.depth {
		depth = true
	}
	d.clear = &pendingClear{color: color, depth: depth}
	return nil
}

// Present implements gpu.Device. It applies any pending clear and waits for
// the frame's passes to finish.
func (d *Device) Present() error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	if d.clear != nil {
		if err := d.encodePass("sr_clear", nil); err != nil {
			return err
		}
	}
	if err := d.sync(); err != nil {
		return err
	}
	d.stats.Presents++
	return nil
}

// Size implements gpu.Device.
func (d *Device) Size() (int, int) { return d.target.width, d.target.height }

// Resize implements gpu.Resizer. The contents are discarded.
func (d *Device) Resize(width, height int) error {
	if d.destroyed {
		return gpu.ErrDeviceDestroyed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: resize to %dx%d", gpu.ErrOutOfRange, width, height)
	}
	if width == d.target.width && height == d.target.height {
		return nil
	}
	if err := d.sync(); err != nil {
		return err
	}
	d.releaseTarget()
	if err := d.createTarget(width, height); err != nil {
		return err
	}
	d.log.Debug("wgpu: resized", "width", width, "height", height)
	return nil
}

// Stats returns device counters.
func (d *Device) Stats() Stats { return d.stats }

// Live returns the number of live buffers, textures and programs.
func (d *Device) Live() (buffers, textures, programs int) {
	return len(d.buffers), len(d.textures), len(d.programs)
}

// Destroy implements gpu.Device. Every resource is released and the hal
// device destroyed.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.syncQuiet()
	d.destroyed = true

	d.pipelines.Clear()
	d.bindGroups.Clear()
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	for id, t := range d.textures {
		d.releaseTexture(t)
		delete(d.textures, id)
	}
	for id, p := range d.programs {
		d.releaseProgram(p)
		delete(d.programs, id)
	}
	d.releaseTarget()
	d.releaseShared()

	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	d.log.Debug("wgpu: device destroyed")
}

func align4(n int) int { return (n + 3) &^ 3 }
