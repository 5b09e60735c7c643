// Package sand implements the Hour-Glass resource model: a bounded
// integer pool of sand that regenerates fractionally over wall-clock
// time, driven by a clamped delta-time clock.
package sand

import (
	"time"
)

// TimeFunc returns the current wall-clock time. A custom TimeFunc can be
// injected to make timing deterministic in tests.
type TimeFunc func() time.Time

// A PrecisionClock is a delta-time source. Every call to Sample returns
// the time elapsed since the previous call, clamped so that a single
// stall (debugger pause, OS scheduling hiccup) is never misread as a
// long in-game duration.
type PrecisionClock struct {
	now TimeFunc

	lastSample    time.Time
	isPaused      bool
	maxDeltaClamp float64
	timeScale     float64
	clampCount    uint64
}

// NewPrecisionClock creates a PrecisionClock that samples time.Now with a
// 50ms delta clamp.
func NewPrecisionClock() *PrecisionClock {
	c := &PrecisionClock{
		now:           time.Now,
		maxDeltaClamp: 0.05,
		timeScale:     1.0,
	}
	c.lastSample = c.now()

	return c
}

// WithTimeFunc replaces the wall-clock source and resets the reference
// timestamp.
func (c *PrecisionClock) WithTimeFunc(f TimeFunc) *PrecisionClock {
	c.now = f
	c.lastSample = f()

	return c
}

// WithMaxDeltaClamp sets the largest raw delta, in seconds, that a single
// Sample call may report.
func (c *PrecisionClock) WithMaxDeltaClamp(seconds float64) *PrecisionClock {
	c.maxDeltaClamp = seconds

	return c
}

// Sample returns the seconds elapsed since the previous Sample call,
// clamped to the max delta and multiplied by the time scale. It returns 0
// while the clock is paused. The reference timestamp advances on every
// unpaused call.
func (c *PrecisionClock) Sample() float64 {
	if c.isPaused {
		return 0
	}

	now := c.now()
	raw := now.Sub(c.lastSample).Seconds()
	c.lastSample = now

	if raw < 0 {
		raw = 0
	}

	delta := raw
	if delta > c.maxDeltaClamp {
		delta = c.maxDeltaClamp
		c.clampCount++
	}

	return delta * c.timeScale
}

// Pause stops the clock. Subsequent Sample calls return 0. Pausing an
// already-paused clock has no effect.
func (c *PrecisionClock) Pause() {
	c.isPaused = true
}

// Resume restarts the clock. The reference timestamp is reset to now, so
// the paused interval contributes zero elapsed time and no catch-up burst
// occurs.
func (c *PrecisionClock) Resume() {
	if !c.isPaused {
		return
	}

	c.isPaused = false
	c.lastSample = c.now()
}

// IsPaused returns whether the clock is paused.
func (c *PrecisionClock) IsPaused() bool {
	return c.isPaused
}

// SetTimeScale changes the multiplier applied to future deltas. Already
// returned deltas are not affected. Used for debug speed-up or slow-down.
func (c *PrecisionClock) SetTimeScale(factor float64) {
	c.timeScale = factor
}

// TimeScale returns the current delta multiplier.
func (c *PrecisionClock) TimeScale() float64 {
	return c.timeScale
}

// ClampCount returns how many Sample calls had their delta clamped.
// Clamping itself stays silent; the counter exists so that a caller can
// detect sustained stalls that would otherwise be absorbed invisibly.
func (c *PrecisionClock) ClampCount() uint64 {
	return c.clampCount
}
