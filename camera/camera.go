// Package camera computes view and projection matrices for perspective and
// orthographic cameras.
//
// Matrices are column-major mgl32.Mat4 values in OpenGL clip-space
// convention (depth in [-1, 1]); backends with a [0, 1] depth range remap
// it themselves.
package camera

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Kind selects the projection.
type Kind uint8

const (
	Perspective Kind = iota
	Orthographic
)

// String returns the projection name.
func (k Kind) String() string {
	switch k {
	case Perspective:
		return "Perspective"
	case Orthographic:
		return "Orthographic"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Camera is a position plus yaw/pitch orientation.
//
// With zero yaw and pitch the camera looks down +X. Yaw rotates around the
// world up axis; pitch tilts toward it. Angles are in radians.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	WorldUp  mgl32.Vec3

	Kind Kind

	// FOV is the vertical field of view in radians (Perspective).
	FOV float32

	// OrthoSize is half the visible height in world units (Orthographic).
	OrthoSize float32

	Aspect    float32
	Near, Far float32
}

// NewPerspective returns a perspective camera. fovDegrees is the vertical
// field of view.
func NewPerspective(fovDegrees, near, far, aspect float32) *Camera {
	return &Camera{
		WorldUp: mgl32.Vec3{0, 1, 0},
		Kind:    Perspective,
		FOV:     mgl32.DegToRad(fovDegrees),
		Aspect:  aspect,
		Near:    near,
		Far:     far,
	}
}

// NewOrthographic returns an orthographic camera showing size world units
// above and below its centre.
func NewOrthographic(size, near, far, aspect float32) *Camera {
	return &Camera{
		WorldUp:   mgl32.Vec3{0, 1, 0},
		Kind:      Orthographic,
		OrthoSize: size,
		Aspect:    aspect,
		Near:      near,
		Far:       far,
	}
}

// Forward returns the unit view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	sy, cy := sincos(c.Yaw)
	sp, cp := sincos(c.Pitch)
	return mgl32.Vec3{cy * cp, sp, sy * cp}.Normalize()
}

// Right returns the unit vector to the camera's right.
func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(c.worldUp()).Normalize()
}

// Up returns the camera's unit up vector.
func (c *Camera) Up() mgl32.Vec3 {
	return c.Right().Cross(c.Forward()).Normalize()
}

// View returns the world-to-view matrix.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), c.worldUp())
}

// Projection returns the view-to-clip matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	switch c.Kind {
	case Orthographic:
		h := c.OrthoSize
		w := h * c.Aspect
		return mgl32.Ortho(-w, w, -h, h, c.Near, c.Far)
	default:
		return mgl32.Perspective(c.FOV, c.Aspect, c.Near, c.Far)
	}
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// MVP returns Projection * View * model.
func (c *Camera) MVP(model mgl32.Mat4) mgl32.Mat4 {
	return c.ViewProjection().Mul4(model)
}

// SetAspect updates the aspect ratio from a framebuffer size. A zero height
// leaves it unchanged.
func (c *Camera) SetAspect(width, height int) {
	if height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

// Rotate adds yaw and pitch, clamping pitch just short of straight up/down
// so the view basis stays defined.
func (c *Camera) Rotate(dyaw, dpitch float32) {
	const limit = 89 * math.Pi / 180
	c.Yaw += dyaw
	c.Pitch = mgl32.Clamp(c.Pitch+dpitch, -limit, limit)
}

func (c *Camera) worldUp() mgl32.Vec3 {
	if c.WorldUp == (mgl32.Vec3{}) {
		return mgl32.Vec3{0, 1, 0}
	}
	return c.WorldUp
}

func sincos(a float32) (float32, float32) {
	return float32(math.Sin(float64(a))), float32(math.Cos(float64(a)))
}
