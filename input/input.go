// Package input turns window events into per-frame input state.
//
// Event callbacks (from a gpucontext.EventSource or a polling host) write
// into a pending record under a mutex; BeginFrame copies that record into a
// frame snapshot that the render goroutine reads without locking.
package input

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
)

// Key is a keyboard key.
type Key = gpucontext.Key

// MouseButton is a mouse button.
type MouseButton = gpucontext.MouseButton

const keyCount = int(gpucontext.KeyPause) + 1

const buttonCount = int(gpucontext.MouseButtonMiddle) + 1

// KeyState is the state of a key in the current frame relative to the
// previous one.
type KeyState uint8

const (
	// KeyUp means released in both frames.
	KeyUp KeyState = iota
	// KeyJustPressed means released last frame, held this frame.
	KeyJustPressed
	// KeyDown means held in both frames.
	KeyDown
	// KeyJustReleased means held last frame, released this frame.
	KeyJustReleased
)

// String returns the state name.
func (s KeyState) String() string {
	switch s {
	case KeyUp:
		return "Up"
	case KeyJustPressed:
		return "JustPressed"
	case KeyDown:
		return "Down"
	case KeyJustReleased:
		return "JustReleased"
	default:
		return "Unknown"
	}
}

// Tracker accumulates events and exposes them one frame at a time.
//
// The event-side methods (KeyPressed, MouseMoved, ...) are safe for
// concurrent use. The frame-side accessors must be called from the
// goroutine that calls BeginFrame.
type Tracker struct {
	// CloseOnEscape makes a held Escape key request close at BeginFrame.
	CloseOnEscape bool

	mu      sync.Mutex
	pending pendingState

	prev, cur [keyCount]bool
	frame     Frame
	started   bool
}

type pendingState struct {
	keys    [keyCount]bool
	buttons [buttonCount]bool
	x, y    float64
	scrollX float64
	scrollY float64
	resized bool
	width   int
	height  int
	close   bool
	focused bool
}

// Frame is the input snapshot taken at BeginFrame.
type Frame struct {
	// Mouse is the cursor position divided by the framebuffer size, so
	// (0,0) is the top-left corner and (1,1) the bottom-right.
	Mouse mgl32.Vec2

	// MouseDelta is Mouse minus the previous frame's Mouse.
	MouseDelta mgl32.Vec2

	// MousePixels is the cursor position in framebuffer pixels.
	MousePixels mgl32.Vec2

	// Buttons holds left, right and middle button state.
	Buttons [buttonCount]bool

	// Scroll is the wheel movement accumulated since the previous frame.
	Scroll mgl32.Vec2

	// Resized reports a resize event since the previous frame.
	Resized bool

	// Width and Height are the last reported window size, or zero.
	Width, Height int

	// Focused is false after the window lost focus.
	Focused bool
}

// New returns a tracker with CloseOnEscape enabled.
func New() *Tracker {
	t := &Tracker{CloseOnEscape: true}
	t.pending.focused = true
	return t
}

// Attach subscribes the tracker to src.
func (t *Tracker) Attach(src gpucontext.EventSource) {
	src.OnKeyPress(func(k gpucontext.Key, _ gpucontext.Modifiers) { t.KeyPressed(k) })
	src.OnKeyRelease(func(k gpucontext.Key, _ gpucontext.Modifiers) { t.KeyReleased(k) })
	src.OnMouseMove(t.MouseMoved)
	src.OnMousePress(func(b gpucontext.MouseButton, x, y float64) {
		t.MouseMoved(x, y)
		t.SetButton(b, true)
	})
	src.OnMouseRelease(func(b gpucontext.MouseButton, x, y float64) {
		t.MouseMoved(x, y)
		t.SetButton(b, false)
	})
	src.OnScroll(t.Scrolled)
	src.OnResize(t.Resized)
	src.OnFocus(t.Focus)
}

// KeyPressed records k as held.
func (t *Tracker) KeyPressed(k Key) { t.setKey(k, true) }

// KeyReleased records k as released.
func (t *Tracker) KeyReleased(k Key) { t.setKey(k, false) }

func (t *Tracker) setKey(k Key, down bool) {
	if int(k) >= keyCount {
		return
	}
	t.mu.Lock()
	t.pending.keys[k] = down
	t.mu.Unlock()
}

// MouseMoved records the cursor position in pixels.
func (t *Tracker) MouseMoved(x, y float64) {
	t.mu.Lock()
	t.pending.x, t.pending.y = x, y
	t.mu.Unlock()
}

// SetButton records a mouse button state.
func (t *Tracker) SetButton(b MouseButton, down bool) {
	if int(b) >= buttonCount {
		return
	}
	t.mu.Lock()
	t.pending.buttons[b] = down
	t.mu.Unlock()
}

// Scrolled accumulates wheel movement.
func (t *Tracker) Scrolled(dx, dy float64) {
	t.mu.Lock()
	t.pending.scrollX += dx
	t.pending.scrollY += dy
	t.mu.Unlock()
}

// Resized records a new window size.
func (t *Tracker) Resized(width, height int) {
	t.mu.Lock()
	t.pending.resized = true
	t.pending.width, t.pending.height = width, height
	t.mu.Unlock()
}

// Focus records a focus change. Losing focus releases every key and button.
func (t *Tracker) Focus(focused bool) {
	t.mu.Lock()
	t.pending.focused = focused
	if !focused {
		t.pending.keys = [keyCount]bool{}
		t.pending.buttons = [buttonCount]bool{}
	}
	t.mu.Unlock()
}

// RequestClose marks the window for closing.
func (t *Tracker) RequestClose() {
	t.mu.Lock()
	t.pending.close = true
	t.mu.Unlock()
}

// CloseRequested reports whether RequestClose was called or Escape was
// seen with CloseOnEscape set.
func (t *Tracker) CloseRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.close
}

// BeginFrame snapshots pending events for a framebuffer of the given size.
// Scroll and resize are consumed; key and button state carry over.
func (t *Tracker) BeginFrame(width, height int) {
	t.mu.Lock()
	p := &t.pending
	t.prev = t.cur
	t.cur = p.keys
	if t.CloseOnEscape && p.keys[gpucontext.KeyEscape] {
		p.close = true
	}

	prevMouse := t.frame.Mouse
	f := Frame{
		MousePixels: mgl32.Vec2{float32(p.x), float32(p.y)},
		Buttons:     p.buttons,
		Scroll:      mgl32.Vec2{float32(p.scrollX), float32(p.scrollY)},
		Resized:     p.resized,
		Width:       p.width,
		Height:      p.height,
		Focused:     p.focused,
	}
	p.scrollX, p.scrollY = 0, 0
	p.resized = false
	t.mu.Unlock()

	if width > 0 && height > 0 {
		f.Mouse = mgl32.Vec2{f.MousePixels[0] / float32(width), f.MousePixels[1] / float32(height)}
	}
	if t.started {
		f.MouseDelta = f.Mouse.Sub(prevMouse)
	}
	t.started = true
	t.frame = f
}

// Frame returns the current snapshot.
func (t *Tracker) Frame() Frame { return t.frame }

// KeyState returns the state of k in the current frame.
func (t *Tracker) KeyState(k Key) KeyState {
	if int(k) >= keyCount {
		return KeyUp
	}
	cur, prev := t.cur[k], t.prev[k]
	switch {
	case cur && prev:
		return KeyDown
	case cur:
		return KeyJustPressed
	case prev:
		return KeyJustReleased
	default:
		return KeyUp
	}
}

// IsKeyDown reports whether k is held in the current frame.
func (t *Tracker) IsKeyDown(k Key) bool { return int(k) < keyCount && t.cur[k] }

// IsKeyUp reports whether k is released in the current frame.
func (t *Tracker) IsKeyUp(k Key) bool { return !t.IsKeyDown(k) }

// Button reports whether b is held in the current frame.
func (t *Tracker) Button(b MouseButton) bool {
	return int(b) < buttonCount && t.frame.Buttons[b]
}

// Mouse returns the normalised cursor position.
func (t *Tracker) Mouse() mgl32.Vec2 { return t.frame.Mouse }

// MouseDelta returns the normalised cursor movement since the previous frame.
func (t *Tracker) MouseDelta() mgl32.Vec2 { return t.frame.MouseDelta }
