package sr

import "errors"

var (
	// ErrNotInFrame is the panic cause for draws, TempArena or EndFrame
	// outside BeginFrame/EndFrame.
	ErrNotInFrame = errors.New("sr: not inside a frame")

	// ErrFrameActive is the panic cause for BeginFrame inside a frame.
	ErrFrameActive = errors.New("sr: frame already active")

	// ErrDestroyed is the panic cause for using a destroyed controller.
	ErrDestroyed = errors.New("sr: controller destroyed")
)
