package main

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/sr"
	"github.com/gogpu/sr/camera"
	"github.com/gogpu/sr/mesh"
	"github.com/gogpu/sr/shader"
	"github.com/gogpu/sr/state"
	"github.com/gogpu/sr/texture"
)

// scene is a spinning cube behind a row of 2D quads and a timing overlay.
type scene struct {
	ctrl    *sr.Controller
	cube    *mesh.Mesh
	checker texture.Texture
	cam     *camera.Camera
	angle   float32

	// shader replaces the default cube program when set. It is checked
	// for changes every reload interval.
	shader     *shader.Program
	reload     time.Duration
	lastReload time.Duration
}

func newScene(ctrl *sr.Controller) (*scene, error) {
	cube := mesh.Cube(ctrl.PersistentArena())
	checker, err := texture.FromImage(ctrl.Device(), "checker",
		texture.Checkerboard(64, 8, color.NRGBA{240, 240, 240, 255}, color.NRGBA{40, 120, 200, 255}), true)
	if err != nil {
		return nil, fmt.Errorf("checker texture: %w", err)
	}
	w, h := ctrl.Size()
	cam := camera.NewPerspective(60, 0.1, 100, float32(w)/float32(h))
	cam.Position = mgl32.Vec3{-3, 0, 0}
	return &scene{ctrl: ctrl, cube: cube, checker: checker, cam: cam}, nil
}

// frame renders one frame.
func (s *scene) frame() error {
	c := s.ctrl
	if err := c.BeginFrame(); err != nil {
		return err
	}
	if err := s.draw(); err != nil {
		_ = c.EndFrame()
		return err
	}
	return c.EndFrame()
}

func (s *scene) draw() error {
	c := s.ctrl
	if c.Resized() {
		s.cam.SetAspect(c.Size())
	}
	s.angle += c.Timer().DeltaSeconds()
	if s.shader != nil && s.reload > 0 {
		if now := c.Timer().Elapsed(); now-s.lastReload >= s.reload {
			s.lastReload = now
			c.Shaders().ReloadAll()
		}
	}

	prog := c.DefaultProgram().ID
	if s.shader != nil {
		prog = s.shader.ID
	}
	c.PushState(state.Snapshot{
		Shader:      prog,
		Texture:     s.checker.ID,
		FaceCulling: true,
		DepthTest:   true,
	})
	model := mgl32.HomogRotate3DY(s.angle).Mul4(mgl32.HomogRotate3DX(s.angle * 0.5))
	err := c.DrawMeshCamera(s.cube, s.cam, model)
	c.PopState()
	if err != nil {
		return err
	}

	w, _ := c.Size()
	for i := range 8 {
		t := float32(i) / 7
		hue := sr.RGB(t, 0.4+0.4*float32(math.Sin(float64(s.angle)+float64(i))), 1-t)
		r := sr.Rect{X: 16 + float32(i)*float32(w-32)/8, Y: 16, W: float32(w-32)/8 - 8, H: 24}
		if err := c.DrawRect(r, hue.WithAlpha(0.8)); err != nil {
			return err
		}
	}

	if err := c.DrawTexture(s.checker, mgl32.Vec2{24, 56}, mgl32.Vec2{}); err != nil {
		return err
	}
	return c.DrawFrameTime(mgl32.Vec2{8, 128})
}

func (s *scene) release() {
	dev := s.ctrl.Device()
	s.cube.Release(dev)
	dev.DestroyTexture(s.checker.ID)
}
