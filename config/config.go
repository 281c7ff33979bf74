// Package config loads runtime settings from YAML.
//
// A file only needs the keys it changes; everything else keeps the values
// from Default:
//
//	backend: software
//	window:
//	  title: demo
//	  width: 1280
//	  height: 720
//	render:
//	  batch_capacity: 24576
//	  arena_reserve: 512MiB
//	  clear_color: "#202830"
//	log:
//	  level: debug
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/sr"
	"github.com/gogpu/sr/arena"
	"github.com/gogpu/sr/backend"
	"github.com/gogpu/sr/batch"
	"github.com/gogpu/sr/state"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete runtime configuration.
type Config struct {
	// Backend names a registered backend. Empty selects backend.Default.
	Backend string  `yaml:"backend"`
	Window  Window  `yaml:"window"`
	Render  Render  `yaml:"render"`
	Shaders Shaders `yaml:"shaders"`
	Log     Log     `yaml:"log"`
}

// Window describes the render target.
type Window struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Render holds controller tuning.
type Render struct {
	BatchCapacity     int     `yaml:"batch_capacity"`
	ArenaReserve      Size    `yaml:"arena_reserve"`
	PersistentReserve Size    `yaml:"persistent_reserve"`
	StackDepth        int     `yaml:"stack_depth"`
	ClearColor        string  `yaml:"clear_color"`
	FontSize          float32 `yaml:"font_size"`
}

// Shaders controls shader file reloading.
type Shaders struct {
	// ReloadInterval is how often loaded shader files are checked for
	// changes. Zero disables reloading.
	ReloadInterval Duration `yaml:"reload_interval"`
}

// Log selects the log level and output format.
type Log struct {
	Level string `yaml:"level"`
	// Format is "text", "json" or "auto". Auto picks text for a terminal.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Window: Window{Title: "sr", Width: 800, Height: 600},
		Render: Render{
			BatchCapacity:     batch.DefaultCapacity,
			ArenaReserve:      arena.DefaultReserve,
			PersistentReserve: 256 << 20,
			StackDepth:        state.DefaultDepth,
			ClearColor:        "#999999",
			FontSize:          16,
		},
		Log: Log{Level: "info", Format: "auto"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if err := (backend.Config{Width: c.Window.Width, Height: c.Window.Height}).Validate(); err != nil {
		bad("window: %v", err)
	}
	r := c.Render
	if r.BatchCapacity < sr.MinBatchCapacity || r.BatchCapacity%3 != 0 {
		bad("render.batch_capacity %d is not a multiple of 3 of at least %d", r.BatchCapacity, sr.MinBatchCapacity)
	}
	if r.ArenaReserve <= 0 {
		bad("render.arena_reserve must be positive")
	}
	if r.PersistentReserve <= 0 {
		bad("render.persistent_reserve must be positive")
	}
	if r.StackDepth <= 0 {
		bad("render.stack_depth %d must be positive", r.StackDepth)
	}
	if !validHex(r.ClearColor) {
		bad("render.clear_color %q is not a hex color", r.ClearColor)
	}
	if r.FontSize <= 0 {
		bad("render.font_size %v must be positive", r.FontSize)
	}
	if c.Shaders.ReloadInterval < 0 {
		bad("shaders.reload_interval must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		bad("log.level: %v", err)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		bad("log.format %q: want auto, text or json", c.Log.Format)
	}
	return errors.Join(errs...)
}

// Options converts the render settings to controller options.
func (c Config) Options() []sr.Option {
	r := c.Render
	return []sr.Option{
		sr.WithBatchCapacity(r.BatchCapacity),
		sr.WithArenaReserve(int(r.ArenaReserve)),
		sr.WithPersistentReserve(int(r.PersistentReserve)),
		sr.WithStackDepth(r.StackDepth),
		sr.WithClearColor(sr.Hex(r.ClearColor)),
		sr.WithFontSize(r.FontSize),
	}
}

// BackendConfig returns the device configuration for the window.
func (c Config) BackendConfig() backend.Config {
	return backend.Config{Width: c.Window.Width, Height: c.Window.Height, Label: c.Window.Title}
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lv slog.Level
	err := lv.UnmarshalText([]byte(l.Level))
	return lv, err
}

func validHex(s string) bool {
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Size is a byte count written either as an integer or with a binary
// suffix (KiB, MiB, GiB).
type Size int64

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"GiB", 30},
	{"MiB", 20},
	{"KiB", 10},
	{"B", 0},
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(n *yaml.Node) error {
	var raw string
	if err := n.Decode(&raw); err != nil {
		return err
	}
	v, err := ParseSize(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*s = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (any, error) { return s.String(), nil }

// ParseSize parses "4096", "64KiB", "512MiB" or "1GiB".
func ParseSize(raw string) (Size, error) {
	str := strings.TrimSpace(raw)
	for _, u := range sizeUnits {
		if num, ok := strings.CutSuffix(str, u.suffix); ok {
			v, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
			if err != nil || v < 0 || v > (1<<62)>>u.shift {
				return 0, fmt.Errorf("invalid size %q", raw)
			}
			return Size(v << u.shift), nil
		}
	}
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid size %q", raw)
	}
	return Size(v), nil
}

func (s Size) String() string {
	for _, u := range sizeUnits[:3] {
		if s > 0 && s%(1<<u.shift) == 0 {
			return strconv.FormatInt(int64(s)>>u.shift, 10) + u.suffix
		}
	}
	return strconv.FormatInt(int64(s), 10)
}
