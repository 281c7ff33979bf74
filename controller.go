package sr

import (
	"errors"
	"fmt"

	"github.com/gogpu/sr/arena"
	"github.com/gogpu/sr/batch"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/input"
	"github.com/gogpu/sr/shader"
	"github.com/gogpu/sr/state"
	"github.com/gogpu/sr/text"
	"github.com/gogpu/sr/texture"
)

// Phase is the controller's position in the frame cycle.
type Phase uint8

const (
	// PhaseUninitialized is the phase before the first BeginFrame.
	PhaseUninitialized Phase = iota
	// PhaseFrame is the phase between BeginFrame and EndFrame.
	PhaseFrame
	// PhaseFrameEnded is the phase after EndFrame.
	PhaseFrameEnded
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "Uninitialized"
	case PhaseFrame:
		return "Frame"
	case PhaseFrameEnded:
		return "FrameEnded"
	default:
		return "Unknown"
	}
}

// Rect is an axis-aligned rectangle in pixels (or UV space for texture
// coordinates).
type Rect = batch.Rect

// FullUV covers a whole texture.
var FullUV = batch.FullUV

// Controller sequences frames over one device. It owns the frame arena,
// the render-state stack and the batch compositor, plus the built-in
// programs, the white texture and the resource loaders.
//
// A Controller is driven from a single goroutine.
type Controller struct {
	dev  gpu.Device
	opts options

	temp       *arena.Arena
	persistent *arena.Arena
	states     *state.Stack
	batch      *batch.Compositor
	shaders    *shader.Library
	textures   *texture.Loader

	screenProg shader.Program
	meshProg   shader.Program
	white      texture.Texture
	font       *text.Font

	timer *FrameTimer
	input *input.Tracker

	phase     Phase
	frames    uint64
	destroyed bool

	// resize is a window size the device has not been resized to yet.
	resize [2]int
}

// New creates a controller on dev: it reserves the arenas, creates the
// built-in programs and the white texture, and applies the baseline state
// (culling and depth test on, alpha blending on, textured program, white
// texture).
func New(dev gpu.Device, opts ...Option) (_ *Controller, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.batchCapacity < MinBatchCapacity {
		return nil, fmt.Errorf("sr: batch capacity %d is below %d: %w",
			o.batchCapacity, MinBatchCapacity, batch.ErrInvalidCapacity)
	}

	c := &Controller{dev: dev, opts: o, input: o.input}
	defer func() {
		if err != nil {
			c.Destroy()
		}
	}()

	propagateLogger(dev, Logger())

	if c.temp, err = arena.New(arena.Descriptor{Reserve: o.arenaReserve}); err != nil {
		return nil, fmt.Errorf("sr: frame arena: %w", err)
	}
	if c.persistent, err = arena.New(arena.Descriptor{Reserve: o.persistentReserve}); err != nil {
		return nil, fmt.Errorf("sr: persistent arena: %w", err)
	}

	if c.shaders, err = shader.NewLibrary(dev); err != nil {
		return nil, err
	}
	c.screenProg, err = c.shaders.Create(gpu.ProgramDescriptor{
		Label:   "batch",
		WGSL:    shader.ScreenWGSL,
		Shading: gpu.ShadingScreen,
	})
	if err != nil {
		return nil, err
	}
	c.meshProg, err = c.shaders.Create(gpu.ProgramDescriptor{
		Label:   "textured",
		WGSL:    shader.TexturedWGSL,
		Shading: gpu.ShadingTextured,
	})
	if err != nil {
		return nil, err
	}

	if c.textures, err = texture.NewLoader(dev); err != nil {
		return nil, err
	}
	if c.white, err = texture.White(dev); err != nil {
		return nil, err
	}

	c.states = state.New(dev, state.Snapshot{
		Shader:      c.meshProg.ID,
		Texture:     c.white.ID,
		FaceCulling: true,
		DepthTest:   true,
		Blending:    true,
		Blend:       gpu.BlendAlpha,
	}, o.stackDepth)
	dev.SetUniform(gpu.UniformMVP, gpu.Mat4(gpu.Identity))
	dev.SetUniform(gpu.UniformTint, gpu.Vec4(White.Vec4()))

	c.batch, err = batch.New(dev, c.states, batch.Descriptor{
		Capacity: o.batchCapacity,
		Program:  c.screenProg.ID,
		Texture:  c.white.ID,
	})
	if err != nil {
		return nil, err
	}

	c.timer = NewFrameTimer(o.clock)
	if c.input == nil {
		c.input = input.New()
	}

	w, h := dev.Size()
	Logger().Info("sr: controller created", "width", w, "height", h,
		"batch_capacity", c.batch.Capacity(), "stack_depth", c.states.Cap())
	return c, nil
}

// BeginFrame starts a frame: it advances the timer, snapshots input and
// clears the target to the clear color and the depth buffer.
//
// When the resize or the clear fails no frame is started and the timer
// does not advance; BeginFrame may be called again. A failed resize is
// retried by the next call.
//
// BeginFrame panics with ErrFrameActive inside a frame.
func (c *Controller) BeginFrame() error {
	c.checkLive()
	if c.phase == PhaseFrame {
		panic(fmt.Errorf("%w: frame %d", ErrFrameActive, c.frames))
	}

	w, h := c.dev.Size()
	c.input.BeginFrame(w, h)
	if f := c.input.Frame(); f.Resized && f.Width > 0 && f.Height > 0 && (f.Width != w || f.Height != h) {
		c.resize = [2]int{f.Width, f.Height}
	}
	if c.resize != [2]int{} {
		if r, ok := c.dev.(gpu.Resizer); ok {
			if err := r.Resize(c.resize[0], c.resize[1]); err != nil {
				return fmt.Errorf("sr: resize: %w", err)
			}
		}
		c.resize = [2]int{}
	}

	if err := c.dev.Clear(c.opts.clearColor.Vec4(), true); err != nil {
		return fmt.Errorf("sr: clear: %w", err)
	}
	c.phase = PhaseFrame
	c.timer.Tick()
	return nil
}

// EndFrame flushes the compositor, presents, and clears the frame arena,
// in that order. The frame ends even when flushing or presenting fails;
// the errors are returned joined.
//
// EndFrame panics with ErrNotInFrame outside a frame.
func (c *Controller) EndFrame() error {
	c.requireFrame("EndFrame")

	var errs []error
	if err := c.batch.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := c.dev.Present(); err != nil {
		errs = append(errs, fmt.Errorf("sr: present: %w", err))
	}
	c.temp.Clear()
	c.phase = PhaseFrameEnded
	c.frames++
	return errors.Join(errs...)
}

// Phase returns the current frame phase.
func (c *Controller) Phase() Phase { return c.phase }

// Frames returns the number of completed frames.
func (c *Controller) Frames() uint64 { return c.frames }

// TempArena returns the frame arena. Allocations are valid until EndFrame.
// It panics outside a frame.
func (c *Controller) TempArena() *arena.Arena {
	c.requireFrame("TempArena")
	return c.temp
}

// PersistentArena returns the arena that lives as long as the controller,
// for meshes and other long-lived pointer-free data.
func (c *Controller) PersistentArena() *arena.Arena {
	c.checkLive()
	return c.persistent
}

// Device returns the device the controller renders through.
func (c *Controller) Device() gpu.Device { return c.dev }

// Shaders returns the shader library.
func (c *Controller) Shaders() *shader.Library { return c.shaders }

// Textures returns the texture loader.
func (c *Controller) Textures() *texture.Loader { return c.textures }

// WhiteTexture returns the 2x2 white texture used by DrawRect.
func (c *Controller) WhiteTexture() texture.Texture { return c.white }

// DefaultProgram returns the built-in textured 3D program.
func (c *Controller) DefaultProgram() shader.Program { return c.meshProg }

// Input returns the input tracker.
func (c *Controller) Input() *input.Tracker { return c.input }

// Timer returns the frame timer.
func (c *Controller) Timer() *FrameTimer { return c.timer }

// Size returns the render target size.
func (c *Controller) Size() (width, height int) { return c.dev.Size() }

// Resized reports whether the window was resized since the previous frame.
func (c *Controller) Resized() bool { return c.input.Frame().Resized }

// ShouldClose reports whether the host or the user (Escape) asked to quit.
func (c *Controller) ShouldClose() bool { return c.input.CloseRequested() }

// Stats describes controller activity.
type Stats struct {
	Frames     uint64
	Batch      batch.Stats
	Arena      arena.Stats
	Persistent arena.Stats
	StateDepth int
	Timing     FrameStats
}

// Stats returns a snapshot of the controller's counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Frames:     c.frames,
		Batch:      c.batch.Stats(),
		Arena:      c.temp.Stats(),
		Persistent: c.persistent.Stats(),
		StateDepth: c.states.Len(),
		Timing:     c.timer.Stats(),
	}
}

// DefaultFont returns the built-in font at the configured size, creating
// its atlas on first use.
func (c *Controller) DefaultFont() (*text.Font, error) {
	if c.font != nil {
		return c.font, nil
	}
	f, err := text.DefaultFont(c.dev, c.opts.fontSize)
	if err != nil {
		return nil, err
	}
	c.font = f
	return f, nil
}

// Destroy releases everything the controller created. The device is not
// destroyed. Destroy is safe to call more than once.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	if c.font != nil {
		c.font.Destroy()
	}
	if c.batch != nil {
		c.batch.Destroy()
	}
	if c.white.ID != 0 {
		c.dev.DestroyTexture(c.white.ID)
	}
	if c.textures != nil {
		c.textures.Close()
	}
	if c.shaders != nil {
		c.shaders.Unload(&c.screenProg)
		c.shaders.Unload(&c.meshProg)
		c.shaders.Close()
	}
	for _, a := range []*arena.Arena{c.temp, c.persistent} {
		if a == nil {
			continue
		}
		if err := a.Destroy(); err != nil {
			Logger().Warn("sr: arena release failed", "err", err)
		}
	}
}

func (c *Controller) checkLive() {
	if c.destroyed {
		panic(ErrDestroyed)
	}
}

func (c *Controller) requireFrame(op string) {
	c.checkLive()
	if c.phase != PhaseFrame {
		panic(fmt.Errorf("%w: %s in phase %s", ErrNotInFrame, op, c.phase))
	}
}
