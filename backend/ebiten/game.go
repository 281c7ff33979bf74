// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"github.com/gogpu/gpucontext"
	eb "github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/sr/input"
)

// Game runs a frame function once per Ebitengine tick and shows the
// device's presented image. It implements ebiten.Game.
type Game struct {
	dev     *Device
	tracker *input.Tracker
	frame   func() error

	keys    []eb.Key
	outside [2]int
	focused bool
}

// NewGame returns a game that renders with frame and reports input to
// tracker. frame usually wraps Controller.BeginFrame and EndFrame.
func NewGame(dev *Device, tracker *input.Tracker, frame func() error) *Game {
	return &Game{dev: dev, tracker: tracker, frame: frame, focused: true}
}

// Run opens a window and runs the game until it is closed, close is
// requested through the tracker, or frame fails.
func Run(title string, g *Game) error {
	w, h := g.dev.Size()
	eb.SetWindowTitle(title)
	eb.SetWindowSize(w, h)
	eb.SetWindowResizingMode(eb.WindowResizingModeEnabled)
	eb.SetWindowClosingHandled(true)
	return eb.RunGame(g)
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	g.poll()
	if err := g.frame(); err != nil {
		return err
	}
	if g.tracker.CloseRequested() {
		return eb.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *eb.Image) {
	screen.DrawImage(g.dev.Front(), nil)
}

// Layout implements ebiten.Game. The logical screen follows the window so
// the device is resized instead of scaled.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if [2]int{outsideWidth, outsideHeight} != g.outside {
		g.outside = [2]int{outsideWidth, outsideHeight}
		g.tracker.Resized(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

// poll forwards this tick's Ebitengine input to the tracker.
func (g *Game) poll() {
	t := g.tracker

	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		if key, ok := keyMap[k]; ok {
			t.KeyPressed(key)
		}
	}
	g.keys = inpututil.AppendJustReleasedKeys(g.keys[:0])
	for _, k := range g.keys {
		if key, ok := keyMap[k]; ok {
			t.KeyReleased(key)
		}
	}

	x, y := eb.CursorPosition()
	t.MouseMoved(float64(x), float64(y))
	for btn, b := range buttonMap {
		if inpututil.IsMouseButtonJustPressed(btn) {
			t.SetButton(b, true)
		}
		if inpututil.IsMouseButtonJustReleased(btn) {
			t.SetButton(b, false)
		}
	}
	if dx, dy := eb.Wheel(); dx != 0 || dy != 0 {
		t.Scrolled(dx, dy)
	}

	if f := eb.IsFocused(); f != g.focused {
		g.focused = f
		t.Focus(f)
	}
	if eb.IsWindowBeingClosed() {
		t.RequestClose()
	}
}

var buttonMap = map[eb.MouseButton]gpucontext.MouseButton{
	eb.MouseButtonLeft:   gpucontext.MouseButtonLeft,
	eb.MouseButtonRight:  gpucontext.MouseButtonRight,
	eb.MouseButtonMiddle: gpucontext.MouseButtonMiddle,
}
