// Package state implements the render-state stack: a bounded save/restore
// stack of fixed-function GPU configurations.
//
// Entry 0 is the baseline applied when the stack is created. Push duplicates
// the top and applies a new snapshot, Set* mutate the top in place, Pop
// restores the entry below. Only fields that actually change reach the
// device.
package state

import (
	"errors"
	"fmt"

	"github.com/gogpu/sr/gpu"
)

var (
	// ErrUnderflow is the panic cause for Pop at the baseline entry.
	ErrUnderflow = errors.New("state: pop below baseline")

	// ErrOverflow is the panic cause for Push beyond the stack depth.
	ErrOverflow = errors.New("state: stack depth exceeded")
)

// DefaultDepth is the stack depth used when New is given zero.
const DefaultDepth = 16

// Snapshot is one fixed-function configuration.
type Snapshot struct {
	Shader      gpu.ProgramID
	Texture     gpu.TextureID
	FaceCulling bool
	DepthTest   bool
	Blending    bool
	Blend       gpu.BlendMode
}

// Applier is the part of a gpu.Device the stack drives.
type Applier interface {
	UseProgram(prog gpu.ProgramID)
	BindTexture(unit int, tex gpu.TextureID)
	SetToggle(t gpu.Toggle, enabled bool)
	SetBlendMode(m gpu.BlendMode)
}

// Stack is a bounded stack of snapshots. It is not safe for concurrent use.
type Stack struct {
	dev     Applier
	entries []Snapshot // len >= 1, cap is the depth bound
}

// New creates a stack holding baseline and applies every baseline field to
// dev. A depth of zero selects DefaultDepth.
func New(dev Applier, baseline Snapshot, depth int) *Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}
	s := &Stack{
		dev:     dev,
		entries: make([]Snapshot, 1, depth),
	}
	s.entries[0] = baseline
	applyAll(dev, baseline)
	return s
}

// Top returns the current snapshot.
func (s *Stack) Top() Snapshot { return s.entries[len(s.entries)-1] }

// Len returns the number of entries, baseline included.
func (s *Stack) Len() int { return len(s.entries) }

// Cap returns the depth bound.
func (s *Stack) Cap() int { return cap(s.entries) }

// Push saves the current top and makes next the new top, issuing only the
// changes between them.
func (s *Stack) Push(next Snapshot) {
	if len(s.entries) == cap(s.entries) {
		panic(fmt.Errorf("%w: depth %d", ErrOverflow, cap(s.entries)))
	}
	prev := s.Top()
	s.entries = append(s.entries, next)
	apply(s.dev, prev, next)
}

// Pop discards the top and restores the entry below it. It returns the
// discarded snapshot and panics at the baseline.
func (s *Stack) Pop() Snapshot {
	n := len(s.entries)
	if n == 1 {
		panic(ErrUnderflow)
	}
	top := s.entries[n-1]
	s.entries = s.entries[:n-1]
	apply(s.dev, top, s.Top())
	return top
}

// Scoped pushes next, runs fn and pops, also when fn panics.
func (s *Stack) Scoped(next Snapshot, fn func() error) error {
	s.Push(next)
	defer s.Pop()
	return fn()
}

func (s *Stack) top() *Snapshot { return &s.entries[len(s.entries)-1] }

// SetFaceCulling changes culling on the top entry.
func (s *Stack) SetFaceCulling(enabled bool) {
	if t := s.top(); t.FaceCulling != enabled {
		t.FaceCulling = enabled
		s.dev.SetToggle(gpu.FaceCulling, enabled)
	}
}

// SetDepthTest changes depth testing on the top entry.
func (s *Stack) SetDepthTest(enabled bool) {
	if t := s.top(); t.DepthTest != enabled {
		t.DepthTest = enabled
		s.dev.SetToggle(gpu.DepthTest, enabled)
	}
}

// SetBlending changes blending on the top entry.
func (s *Stack) SetBlending(enabled bool) {
	if t := s.top(); t.Blending != enabled {
		t.Blending = enabled
		s.dev.SetToggle(gpu.Blending, enabled)
	}
}

// SetBlendMode changes the blend equation on the top entry.
func (s *Stack) SetBlendMode(m gpu.BlendMode) {
	if t := s.top(); t.Blend != m {
		t.Blend = m
		s.dev.SetBlendMode(m)
	}
}

// SetShader binds a program on the top entry.
func (s *Stack) SetShader(prog gpu.ProgramID) {
	if t := s.top(); t.Shader != prog {
		t.Shader = prog
		s.dev.UseProgram(prog)
	}
}

// SetTexture binds a texture to unit 0 on the top entry.
func (s *Stack) SetTexture(tex gpu.TextureID) {
	if t := s.top(); t.Texture != tex {
		t.Texture = tex
		s.dev.BindTexture(0, tex)
	}
}

// apply issues the device calls that turn from into to.
func apply(dev Applier, from, to Snapshot) {
	if from.Shader != to.Shader {
		dev.UseProgram(to.Shader)
	}
	if from.Texture != to.Texture {
		dev.BindTexture(0, to.Texture)
	}
	if from.FaceCulling != to.FaceCulling {
		dev.SetToggle(gpu.FaceCulling, to.FaceCulling)
	}
	if from.DepthTest != to.DepthTest {
		dev.SetToggle(gpu.DepthTest, to.DepthTest)
	}
	if from.Blending != to.Blending {
		dev.SetToggle(gpu.Blending, to.Blending)
	}
	if from.Blend != to.Blend {
		dev.SetBlendMode(to.Blend)
	}
}

func applyAll(dev Applier, s Snapshot) {
	dev.UseProgram(s.Shader)
	dev.BindTexture(0, s.Texture)
	dev.SetToggle(gpu.FaceCulling, s.FaceCulling)
	dev.SetToggle(gpu.DepthTest, s.DepthTest)
	dev.SetToggle(gpu.Blending, s.Blending)
	dev.SetBlendMode(s.Blend)
}
