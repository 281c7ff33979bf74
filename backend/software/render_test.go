package software_test

import (
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	sr "github.com/gogpu/sr"
	"github.com/gogpu/sr/backend"
	"github.com/gogpu/sr/backend/software"
	"github.com/gogpu/sr/camera"
	"github.com/gogpu/sr/mesh"
)

func TestRegistered(t *testing.T) {
	dev, err := backend.Get(backend.BackendSoftware, backend.Config{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer dev.Destroy()
	if _, ok := dev.(*software.Device); !ok {
		t.Errorf("Get() = %T, want *software.Device", dev)
	}
}

func TestControllerFrame(t *testing.T) {
	dev := software.New(64, 48)
	c, err := sr.New(dev, sr.WithArenaReserve(1<<20), sr.WithPersistentReserve(1<<20))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	cube := mesh.Cube(nil)
	defer cube.Release(dev)

	cam := camera.NewPerspective(60, 0.1, 100, 64.0/48.0)
	cam.Position = mgl32.Vec3{-3, 0, 0}

	if err := c.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	if err := c.DrawMeshCamera(cube, cam, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	if err := c.DrawRect(sr.Rect{X: 0, Y: 0, W: 8, H: 8}, sr.Red); err != nil {
		t.Fatal(err)
	}
	if err := c.EndFrame(); err != nil {
		t.Fatal(err)
	}

	frame := dev.Frame()
	clearColor := sr.DefaultClearColor.NRGBA()
	if got := frame.NRGBAAt(4, 4); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("rect pixel = %v, want red", got)
	}
	if got := frame.NRGBAAt(60, 44); got != clearColor {
		t.Errorf("corner pixel = %v, want clear color %v", got, clearColor)
	}
	if got := frame.NRGBAAt(32, 24); got == clearColor {
		t.Error("cube not drawn at the centre")
	}
	if s := dev.Stats(); s.Culled == 0 {
		t.Error("expected the cube's back faces to be culled")
	}
}
