package sr

import (
	"fmt"
	"time"
)

// StatsWindow is the period over which FrameTimer aggregates frame times.
const StatsWindow = 500 * time.Millisecond

// FrameStats summarises the frame times of one completed window.
type FrameStats struct {
	Frames int
	Mean   time.Duration
	Min    time.Duration
	Max    time.Duration
}

// FPS returns the mean frame rate, or 0 without data.
func (s FrameStats) FPS() float64 {
	if s.Mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Mean)
}

// String formats the stats for an on-screen overlay.
func (s FrameStats) String() string {
	return fmt.Sprintf("%.2f ms (%.0f fps) min %.2f max %.2f",
		ms(s.Mean), s.FPS(), ms(s.Min), ms(s.Max))
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// FrameTimer measures per-frame delta time and aggregates it over
// StatsWindow.
type FrameTimer struct {
	clock func() time.Time
	start time.Time
	last  time.Time
	delta time.Duration
	frame uint64

	winStart time.Time
	winCount int
	winSum   time.Duration
	winMin   time.Duration
	winMax   time.Duration
	stats    FrameStats
}

// NewFrameTimer returns a timer reading clock, or time.Now when nil.
func NewFrameTimer(clock func() time.Time) *FrameTimer {
	if clock == nil {
		clock = time.Now
	}
	return &FrameTimer{clock: clock}
}

// Tick starts a new frame and returns the time since the previous one.
// The first tick returns 0.
func (t *FrameTimer) Tick() time.Duration {
	now := t.clock()
	if t.frame == 0 {
		t.start, t.last, t.winStart = now, now, now
		t.frame = 1
		t.delta = 0
		return 0
	}
	t.delta = now.Sub(t.last)
	t.last = now
	t.frame++

	if t.winCount == 0 || t.delta < t.winMin {
		t.winMin = t.delta
	}
	t.winMax = max(t.winMax, t.delta)
	t.winSum += t.delta
	t.winCount++

	if now.Sub(t.winStart) >= StatsWindow {
		t.stats = FrameStats{
			Frames: t.winCount,
			Mean:   t.winSum / time.Duration(t.winCount),
			Min:    t.winMin,
			Max:    t.winMax,
		}
		t.winStart = now
		t.winCount, t.winSum, t.winMin, t.winMax = 0, 0, 0, 0
	}
	return t.delta
}

// Delta returns the duration of the previous frame.
func (t *FrameTimer) Delta() time.Duration { return t.delta }

// DeltaSeconds returns Delta in seconds.
func (t *FrameTimer) DeltaSeconds() float32 { return float32(t.delta.Seconds()) }

// Elapsed returns the time since the first tick.
func (t *FrameTimer) Elapsed() time.Duration {
	if t.frame == 0 {
		return 0
	}
	return t.last.Sub(t.start)
}

// Frame returns the number of ticks so far.
func (t *FrameTimer) Frame() uint64 { return t.frame }

// Stats returns the aggregate of the last completed window.
func (t *FrameTimer) Stats() FrameStats { return t.stats }
