package sr

import (
	"time"

	"github.com/gogpu/sr/arena"
	"github.com/gogpu/sr/batch"
	"github.com/gogpu/sr/input"
	"github.com/gogpu/sr/state"
)

// Option configures a Controller during creation.
//
// Example:
//
//	c, err := sr.New(dev,
//	    sr.WithBatchCapacity(6*1024),
//	    sr.WithClearColor(sr.Black),
//	)
type Option func(*options)

// options holds optional configuration for Controller creation.
type options struct {
	batchCapacity     int
	arenaReserve      int
	persistentReserve int
	stackDepth        int
	clock             func() time.Time
	input             *input.Tracker
	clearColor        Color
	fontSize          float32
}

// defaultOptions returns the default controller options.
func defaultOptions() options {
	return options{
		batchCapacity:     batch.DefaultCapacity,
		arenaReserve:      arena.DefaultReserve,
		persistentReserve: 256 << 20,
		stackDepth:        state.DefaultDepth,
		clock:             time.Now,
		clearColor:        DefaultClearColor,
		fontSize:          16,
	}
}

// MinBatchCapacity is the smallest batch capacity New accepts: one quad.
const MinBatchCapacity = 6

// WithBatchCapacity sets the compositor's vertex capacity. It must be a
// multiple of 3 and at least MinBatchCapacity.
func WithBatchCapacity(n int) Option {
	return func(o *options) {
		o.batchCapacity = n
	}
}

// WithArenaReserve sets the address space reserved for the frame arena.
func WithArenaReserve(bytes int) Option {
	return func(o *options) {
		o.arenaReserve = bytes
	}
}

// WithPersistentReserve sets the address space reserved for the persistent
// arena, which lives as long as the controller.
func WithPersistentReserve(bytes int) Option {
	return func(o *options) {
		o.persistentReserve = bytes
	}
}

// WithStackDepth sets the render-state stack depth.
func WithStackDepth(n int) Option {
	return func(o *options) {
		o.stackDepth = n
	}
}

// WithClock replaces time.Now for frame timing. Tests use it to drive the
// timer deterministically.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithInput supplies the input tracker. Hosts that own the window use it
// to feed events; by default the controller creates a detached tracker.
func WithInput(t *input.Tracker) Option {
	return func(o *options) {
		o.input = t
	}
}

// WithClearColor sets the color BeginFrame clears to.
func WithClearColor(c Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithFontSize sets the pixel size of the default font.
func WithFontSize(px float32) Option {
	return func(o *options) {
		o.fontSize = px
	}
}
