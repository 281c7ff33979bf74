package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/gogpu/sr"
	"github.com/gogpu/sr/backend/software"
	"github.com/gogpu/sr/backend/wgpu"
)

// capture returns the last presented frame of devices that can read it
// back.
func capture(ctrl *sr.Controller) (*image.NRGBA, error) {
	switch d := ctrl.Device().(type) {
	case *software.Device:
		return d.Frame(), nil
	case *wgpu.Device:
		return d.Frame()
	default:
		return nil, fmt.Errorf("%T cannot read frames back", d)
	}
}

// render draws frames and writes each one to out as frame_NNNN.png.
func render(ctrl *sr.Controller, sc *scene, frames int, out string) error {
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	bar := progressbar.Default(int64(frames), "rendering")
	defer bar.Close()

	for i := range frames {
		if err := sc.frame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		img, err := capture(ctrl)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(out, fmt.Sprintf("frame_%04d.png", i)), img); err != nil {
			return err
		}
		_ = bar.Add(1)
	}
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
