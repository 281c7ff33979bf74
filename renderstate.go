package sr

import (
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/material"
	"github.com/gogpu/sr/shader"
	"github.com/gogpu/sr/state"
	"github.com/gogpu/sr/texture"
)

// PushState saves the current render state and applies s. Only fields
// that differ reach the device.
func (c *Controller) PushState(s state.Snapshot) {
	c.checkLive()
	c.states.Push(s)
}

// PopState restores the state saved by the matching PushState and returns
// the discarded one. Popping the baseline panics with state.ErrUnderflow.
func (c *Controller) PopState() state.Snapshot {
	c.checkLive()
	return c.states.Pop()
}

// State returns the current render state.
func (c *Controller) State() state.Snapshot { return c.states.Top() }

// StateDepth returns the number of stack entries, baseline included.
func (c *Controller) StateDepth() int { return c.states.Len() }

// SetFaceCulling toggles back-face culling.
func (c *Controller) SetFaceCulling(enabled bool) { c.states.SetFaceCulling(enabled) }

// SetDepthTest toggles depth testing.
func (c *Controller) SetDepthTest(enabled bool) { c.states.SetDepthTest(enabled) }

// SetBlending toggles blending.
func (c *Controller) SetBlending(enabled bool) { c.states.SetBlending(enabled) }

// SetBlendMode selects the blend equation.
func (c *Controller) SetBlendMode(m gpu.BlendMode) { c.states.SetBlendMode(m) }

// SetBlendingAlpha enables standard alpha blending.
func (c *Controller) SetBlendingAlpha() { c.setBlend(gpu.BlendAlpha) }

// SetBlendingAdditive enables additive blending.
func (c *Controller) SetBlendingAdditive() { c.setBlend(gpu.BlendAdditive) }

// SetBlendingPremultiplied enables blending for premultiplied colors.
func (c *Controller) SetBlendingPremultiplied() { c.setBlend(gpu.BlendPremultiplied) }

func (c *Controller) setBlend(m gpu.BlendMode) {
	c.states.SetBlending(true)
	c.states.SetBlendMode(m)
}

// UseShader makes p the current program. A program that failed to load
// already carries the fallback; a zero program selects the default one.
func (c *Controller) UseShader(p shader.Program) {
	id := p.ID
	if id == 0 {
		id = c.meshProg.ID
	}
	c.states.SetShader(id)
}

// UseDefaultShader selects the built-in textured program.
func (c *Controller) UseDefaultShader() { c.states.SetShader(c.meshProg.ID) }

// BindTexture makes tex the current 3D texture. A zero texture selects the
// white texture.
func (c *Controller) BindTexture(tex texture.Texture) {
	c.states.SetTexture(c.textureID(tex))
}

// UseMaterial binds the material's program and uploads its uniforms. The
// error lists uniforms the program does not declare; the rest are applied.
func (c *Controller) UseMaterial(m *material.Material) error {
	prog := m.Program
	if prog == 0 {
		prog = c.meshProg.ID
	}
	c.states.SetShader(prog)
	return m.Apply(c.dev)
}

// SetUniform sets a uniform on the current program.
func (c *Controller) SetUniform(name string, u gpu.Uniform) {
	c.dev.SetUniform(name, u)
}
