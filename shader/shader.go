// Package shader compiles, caches and hot-reloads shader programs.
//
// WGSL sources are validated and translated to SPIR-V with naga before a
// program reaches the device. A program that fails to load is replaced by
// the library's fallback, a solid magenta program, and comes back with
// Valid == false and the cause in Err. Callers can draw with it regardless.
package shader

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gogpu/naga"
	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/internal/cache"
)

var (
	// ErrCompile wraps WGSL validation failures.
	ErrCompile = errors.New("shader: compile failed")

	// ErrClosed is returned by a library after Close.
	ErrClosed = errors.New("shader: library closed")
)

// Device is the part of a gpu.Device the library needs.
type Device interface {
	CreateProgram(desc gpu.ProgramDescriptor) (gpu.ProgramID, error)
	DestroyProgram(prog gpu.ProgramID)
}

// Program is a loaded shader program.
type Program struct {
	ID      gpu.ProgramID
	Label   string
	Path    string
	Shading gpu.Shading

	// Uniforms is the material block the program declares, if any.
	Uniforms *gpu.UniformBlock

	// Valid is false when ID is the fallback program.
	Valid bool
	Err   error

	modTime time.Time
}

// Compile validates WGSL and returns its SPIR-V words.
func Compile(wgsl string) ([]uint32, error) {
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}

// Library creates programs on one device and owns the file-backed ones.
// It is not safe for concurrent use.
type Library struct {
	dev      Device
	fallback gpu.ProgramID
	files    *cache.Cache[string, *Program]
	closed   bool
}

// NewLibrary creates the fallback program on dev.
func NewLibrary(dev Device) (*Library, error) {
	spirv, err := Compile(SolidWGSL)
	if err != nil {
		return nil, err
	}
	id, err := dev.CreateProgram(gpu.ProgramDescriptor{
		Label:      "fallback",
		WGSL:       SolidWGSL,
		SPIRV:      spirv,
		Shading:    gpu.ShadingSolid,
		SolidColor: Magenta,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create fallback: %w", err)
	}
	l := &Library{dev: dev, fallback: id}
	// Unbounded: callers hold *Program, so only Unload or Close may destroy one.
	l.files = cache.New(0, func(_ string, p *Program) { l.destroy(p.ID) })
	return l, nil
}

// Fallback returns the magenta program substituted for failed loads.
func (l *Library) Fallback() Program {
	return Program{ID: l.fallback, Label: "fallback", Shading: gpu.ShadingSolid, Valid: true}
}

// Create compiles desc.WGSL when present and creates the program. Unlike
// the Load methods it does not substitute the fallback.
func (l *Library) Create(desc gpu.ProgramDescriptor) (Program, error) {
	if l.closed {
		return Program{}, ErrClosed
	}
	if desc.WGSL != "" && desc.SPIRV == nil {
		spirv, err := Compile(desc.WGSL)
		if err != nil {
			return Program{}, fmt.Errorf("shader %q: %w", desc.Label, err)
		}
		desc.SPIRV = spirv
	}
	if desc.WGSL != "" && desc.Uniforms == nil {
		block, err := Reflect(desc.WGSL)
		if err != nil {
			return Program{}, fmt.Errorf("shader %q: %w", desc.Label, err)
		}
		desc.Uniforms = block
	}
	id, err := l.dev.CreateProgram(desc)
	if err != nil {
		return Program{}, fmt.Errorf("shader %q: create: %w", desc.Label, err)
	}
	return Program{ID: id, Label: desc.Label, Shading: desc.Shading, Uniforms: desc.Uniforms, Valid: true}, nil
}

// LoadSource compiles wgsl into a program. On failure it returns the
// fallback with Valid == false together with the error.
func (l *Library) LoadSource(label, wgsl string, shading gpu.Shading) (Program, error) {
	p, err := l.Create(gpu.ProgramDescriptor{Label: label, WGSL: wgsl, Shading: shading})
	if err != nil {
		slogger().Warn("shader: using fallback", "label", label, "err", err)
		return l.failed(label, shading, err), err
	}
	return p, nil
}

// LoadFile loads a WGSL file. Repeated loads of the same path return the
// same *Program until it is unloaded. A failed load is cached as
// the fallback so that ReloadIfChanged can pick up a fixed file.
func (l *Library) LoadFile(path string, shading gpu.Shading) (*Program, error) {
	if l.closed {
		return nil, ErrClosed
	}
	p, _ := l.files.GetOrCreate(path, func() (*Program, error) {
		p := &Program{Path: path, Label: path, Shading: shading}
		_ = l.loadInto(p)
		return p, nil
	})
	return p, p.Err
}

// loadInto reads p.Path and replaces p's program. On failure p keeps its
// previous program, or becomes the fallback if it had none.
func (l *Library) loadInto(p *Program) error {
	info, err := os.Stat(p.Path)
	if err != nil {
		return l.fail(p, fmt.Errorf("shader: %w", err))
	}
	p.modTime = info.ModTime()

	src, err := os.ReadFile(p.Path)
	if err != nil {
		return l.fail(p, fmt.Errorf("shader: %w", err))
	}
	np, err := l.Create(gpu.ProgramDescriptor{Label: p.Label, WGSL: string(src), Shading: p.Shading})
	if err != nil {
		return l.fail(p, err)
	}
	if p.Valid {
		l.destroy(p.ID)
	}
	p.ID, p.Uniforms, p.Valid, p.Err = np.ID, np.Uniforms, true, nil
	return nil
}

func (l *Library) fail(p *Program, err error) error {
	p.Err = err
	if !p.Valid {
		p.ID = l.fallback
	}
	slogger().Warn("shader: load failed", "path", p.Path, "keep_previous", p.Valid, "err", err)
	return err
}

// ReloadIfChanged reloads a file-backed program when the file's
// modification time differs from the last load. It reports whether a new
// program was installed. A failed reload keeps the previous program.
func (l *Library) ReloadIfChanged(p *Program) (bool, error) {
	if p == nil || p.Path == "" {
		return false, nil
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		return false, fmt.Errorf("shader: %w", err)
	}
	if info.ModTime().Equal(p.modTime) {
		return false, nil
	}
	before := p.ID
	if err := l.loadInto(p); err != nil {
		return false, err
	}
	slogger().Info("shader: reloaded", "path", p.Path, "old", before, "new", p.ID)
	return true, nil
}

// ReloadAll runs ReloadIfChanged on every cached file and returns how many
// were replaced. Failures are logged.
func (l *Library) ReloadAll() int {
	n := 0
	for _, p := range l.files.Values() {
		if ok, _ := l.ReloadIfChanged(p); ok {
			n++
		}
	}
	return n
}

// Unload destroys a program created by this library. File-backed programs
// are also dropped from the cache. The fallback is never destroyed.
func (l *Library) Unload(p *Program) {
	if p == nil {
		return
	}
	if p.Path != "" && l.files.Delete(p.Path) {
		p.ID, p.Valid = 0, false
		return
	}
	l.destroy(p.ID)
	p.ID, p.Valid = 0, false
}

// Loaded returns the number of cached file-backed programs.
func (l *Library) Loaded() int { return l.files.Len() }

// Close destroys every cached program and the fallback. Programs returned
// by Create or LoadSource are owned by the caller.
func (l *Library) Close() {
	if l.closed {
		return
	}
	l.files.Clear()
	l.dev.DestroyProgram(l.fallback)
	l.closed = true
}

func (l *Library) failed(label string, shading gpu.Shading, err error) Program {
	return Program{ID: l.fallback, Label: label, Shading: shading, Err: err}
}

func (l *Library) destroy(id gpu.ProgramID) {
	if id != 0 && id != l.fallback {
		l.dev.DestroyProgram(id)
	}
}
