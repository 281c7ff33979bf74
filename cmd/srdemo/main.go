// Command srdemo renders a small scene with the sr runtime.
//
// With -frames it renders headless and writes each frame as a PNG:
//
//	srdemo -backend software -frames 60 -out frames
//
// Without -frames it opens a window on the ebiten backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/gogpu/sr"
	"github.com/gogpu/sr/backend"
	ebitenbackend "github.com/gogpu/sr/backend/ebiten"
	_ "github.com/gogpu/sr/backend/software"
	_ "github.com/gogpu/sr/backend/wgpu"
	"github.com/gogpu/sr/config"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/input"

	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func main() {
	if err := run(); err != nil {
		slog.Error("srdemo failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML config file")
		backendArg = flag.String("backend", "", "backend name (wgpu, ebiten, software); empty picks the best available")
		width      = flag.Int("width", 0, "target width, overrides the config")
		height     = flag.Int("height", 0, "target height, overrides the config")
		frames     = flag.Int("frames", 0, "render this many frames headless instead of opening a window")
		out        = flag.String("out", "frames", "output directory for headless frames")
		shaderPath = flag.String("shader", "", "WGSL file used for the cube, reloaded when it changes")
		logLevel   = flag.String("log-level", "", "log level, overrides the config")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendArg
		case "width":
			cfg.Window.Width = *width
		case "height":
			cfg.Window.Height = *height
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	sr.SetLogger(logger)

	if *frames > 0 {
		return runHeadless(cfg, *frames, *out, *shaderPath)
	}
	return runWindow(cfg, *shaderPath)
}

// newLogger builds a text handler for terminals and a JSON handler
// otherwise, unless the format is fixed.
func newLogger(c config.Log) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	format := c.Format
	if format == "auto" {
		format = "json"
		if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// openHeadless opens the configured backend, or the first of wgpu and
// software that works.
func openHeadless(cfg config.Config) (gpu.Device, string, error) {
	bc := cfg.BackendConfig()
	if cfg.Backend == backend.BackendEbiten {
		return nil, "", errors.New("the ebiten backend cannot render headless")
	}
	if cfg.Backend != "" {
		dev, err := backend.Get(cfg.Backend, bc)
		return dev, cfg.Backend, err
	}
	var errs []error
	for _, name := range []string{backend.BackendWGPU, backend.BackendSoftware} {
		dev, err := backend.Get(name, bc)
		if err == nil {
			return dev, name, nil
		}
		slog.Debug("backend unavailable", "backend", name, "err", err)
		errs = append(errs, err)
	}
	return nil, "", errors.Join(errs...)
}

func newController(dev gpu.Device, cfg config.Config, opts ...sr.Option) (*sr.Controller, *scene, error) {
	ctrl, err := sr.New(dev, append(cfg.Options(), opts...)...)
	if err != nil {
		return nil, nil, err
	}
	sc, err := newScene(ctrl)
	if err != nil {
		ctrl.Destroy()
		return nil, nil, err
	}
	sc.reload = cfg.Shaders.ReloadInterval.Std()
	return ctrl, sc, nil
}

func loadShader(ctrl *sr.Controller, sc *scene, path string) {
	if path == "" {
		return
	}
	p, err := ctrl.Shaders().LoadFile(path, gpu.ShadingTextured)
	if err != nil {
		slog.Warn("shader failed to load, drawing with the fallback", "path", path, "err", err)
	}
	sc.shader = p
}

func runWindow(cfg config.Config, shaderPath string) error {
	if cfg.Backend != "" && cfg.Backend != backend.BackendEbiten {
		return fmt.Errorf("window mode needs the %s backend, got %q", backend.BackendEbiten, cfg.Backend)
	}
	dev := ebitenbackend.New(cfg.Window.Width, cfg.Window.Height)
	tracker := input.New()
	ctrl, sc, err := newController(dev, cfg, sr.WithInput(tracker))
	if err != nil {
		dev.Destroy()
		return err
	}
	defer func() {
		sc.release()
		ctrl.Destroy()
		dev.Destroy()
	}()
	loadShader(ctrl, sc, shaderPath)

	game := ebitenbackend.NewGame(dev, tracker, sc.frame)
	if err := ebitenbackend.Run(cfg.Window.Title, game); err != nil {
		return err
	}
	slog.Info("window closed", "frames", ctrl.Frames(), "timing", ctrl.Timer().Stats().String())
	return nil
}

func runHeadless(cfg config.Config, frames int, out, shaderPath string) error {
	dev, name, err := openHeadless(cfg)
	if err != nil {
		return err
	}

	// A fixed 60 Hz clock keeps the output independent of render speed.
	now := time.Unix(0, 0)
	clock := func() time.Time {
		t := now
		now = now.Add(time.Second / 60)
		return t
	}
	ctrl, sc, err := newController(dev, cfg, sr.WithClock(clock))
	if err != nil {
		dev.Destroy()
		return err
	}
	defer func() {
		sc.release()
		ctrl.Destroy()
		dev.Destroy()
	}()
	loadShader(ctrl, sc, shaderPath)

	slog.Info("rendering headless", "backend", name, "frames", frames, "out", out)
	if err := render(ctrl, sc, frames, out); err != nil {
		return err
	}
	st := ctrl.Stats()
	slog.Info("done", "frames", st.Frames, "draw_calls", st.Batch.DrawCalls, "vertices", st.Batch.VerticesDrawn)
	return nil
}
