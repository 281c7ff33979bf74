package sr

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sr/arena"
	"github.com/gogpu/sr/batch"
	"github.com/gogpu/sr/camera"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/mesh"
	"github.com/gogpu/sr/text"
	"github.com/gogpu/sr/texture"
)

// DrawRect queues a solid rectangle. It panics outside a frame.
func (c *Controller) DrawRect(r Rect, col Color) error {
	c.requireFrame("DrawRect")
	return c.quad(c.white.ID, r, FullUV, col)
}

// DrawTexturedQuad queues tex mapped onto dst, sampling uv in texture
// space, tinted by col. It panics outside a frame.
func (c *Controller) DrawTexturedQuad(tex texture.Texture, dst, uv Rect, col Color) error {
	c.requireFrame("DrawTexturedQuad")
	return c.quad(c.textureID(tex), dst, uv, col)
}

// DrawTexture draws tex at its pixel size. origin is the anchor within the
// texture in [0,1]: (0,0) puts the top-left corner at pos, (0.5,0.5)
// centres it.
func (c *Controller) DrawTexture(tex texture.Texture, pos, origin mgl32.Vec2) error {
	c.requireFrame("DrawTexture")
	w, h := tex.Size()
	dst := Rect{X: pos.X() - w*origin.X(), Y: pos.Y() - h*origin.Y(), W: w, H: h}
	return c.quad(c.textureID(tex), dst, FullUV, White)
}

// DrawTextureFragment draws the src rectangle of tex, in texture pixels,
// into dst.
func (c *Controller) DrawTextureFragment(tex texture.Texture, src, dst Rect, col Color) error {
	c.requireFrame("DrawTextureFragment")
	w, h := tex.Size()
	if w == 0 || h == 0 {
		return nil
	}
	uv := Rect{X: src.X / w, Y: src.Y / h, W: src.W / w, H: src.H / h}
	return c.quad(c.textureID(tex), dst, uv, col)
}

// quad builds six vertices in the frame arena and enqueues them.
func (c *Controller) quad(tex gpu.TextureID, dst, uv Rect, col Color) error {
	vs := arena.AllocSlice[batch.Vertex](c.temp, 6)
	vs = batch.AppendQuad(vs[:0], dst, uv, col.Vec4())
	return c.batch.Enqueue(vs, tex)
}

// DrawString draws s with its top-left corner at pos. A nil font selects
// the default font.
func (c *Controller) DrawString(s string, f *text.Font, pos mgl32.Vec2, col Color) error {
	c.requireFrame("DrawString")
	if s == "" {
		return nil
	}
	f, err := c.fontOrDefault(f)
	if err != nil {
		return err
	}

	quads := arena.AllocSlice[text.Quad](c.temp, utf8.RuneCountInString(s))
	quads = f.Layout(quads[:0], s, pos.X(), pos.Y())
	if len(quads) == 0 {
		return nil
	}
	vs := arena.AllocSlice[batch.Vertex](c.temp, 6*len(quads))[:0]
	for _, q := range quads {
		vs = batch.AppendQuad(vs, q.Dst, q.UV, col.Vec4())
	}

	// Long strings are split into whole quads that fit the batch.
	chunk := max(6, c.batch.Capacity()/6*6)
	for len(vs) > 0 {
		n := min(chunk, len(vs))
		if err := c.batch.Enqueue(vs[:n], f.Atlas.ID); err != nil {
			return err
		}
		vs = vs[n:]
	}
	return nil
}

// MeasureString returns the size DrawString would cover.
func (c *Controller) MeasureString(s string, f *text.Font) (w, h float32, err error) {
	f, err = c.fontOrDefault(f)
	if err != nil {
		return 0, 0, err
	}
	w, h = f.Measure(s)
	return w, h, nil
}

// DrawFrameTime draws the frame timing overlay at pos.
func (c *Controller) DrawFrameTime(pos mgl32.Vec2) error {
	return c.DrawString(c.timer.Stats().String(), nil, pos, White)
}

func (c *Controller) fontOrDefault(f *text.Font) (*text.Font, error) {
	if f != nil {
		return f, nil
	}
	return c.DefaultFont()
}

// DrawMesh draws m with the current 3D state, setting the MVP uniform of
// the current program to mvp. Pending 2D quads are flushed first so paint
// order holds across 2D and 3D draws.
func (c *Controller) DrawMesh(m *mesh.Mesh, mvp mgl32.Mat4) error {
	c.requireFrame("DrawMesh")
	if err := c.batch.Flush(); err != nil {
		return err
	}
	c.dev.SetUniform(gpu.UniformMVP, gpu.Mat4(mvp))
	if err := m.Draw(c.dev); err != nil {
		return fmt.Errorf("sr: draw mesh %q: %w", m.Label, err)
	}
	return nil
}

// DrawMeshCamera draws m with model transformed by cam.
func (c *Controller) DrawMeshCamera(m *mesh.Mesh, cam *camera.Camera, model mgl32.Mat4) error {
	return c.DrawMesh(m, cam.MVP(model))
}

// Clear flushes pending 2D quads and clears color and depth.
func (c *Controller) Clear(col Color) error {
	c.requireFrame("Clear")
	if err := c.batch.Flush(); err != nil {
		return err
	}
	if err := c.dev.Clear(col.Vec4(), true); err != nil {
		return fmt.Errorf("sr: clear: %w", err)
	}
	return nil
}

// Flush submits pending 2D quads now.
func (c *Controller) Flush() error {
	c.checkLive()
	return c.batch.Flush()
}

// BatchStats returns the compositor counters.
func (c *Controller) BatchStats() batch.Stats { return c.batch.Stats() }

func (c *Controller) textureID(tex texture.Texture) gpu.TextureID {
	if tex.ID == 0 {
		return c.white.ID
	}
	return tex.ID
}
