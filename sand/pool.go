package sand

import (
	"log"
	"math"
)

// MaxCapacity is the absolute ceiling on pool capacity. Capacity buffs
// can never raise a pool beyond this many units.
const MaxCapacity = 8

// RegenContext carries the combat state that modulates a pool's
// regeneration rate for one tick. The zero value means an unhurt actor
// with no blessings.
type RegenContext struct {
	// HealthFraction is the owning actor's health in (0, 1]. A
	// non-positive value is treated as full health.
	HealthFraction float64

	// DivineBlessing marks an active blessing effect.
	DivineBlessing bool

	// DivineFavor is the actor's moral alignment in [-10, 10].
	DivineFavor int
}

func (c RegenContext) healthFraction() float64 {
	if c.HealthFraction <= 0 {
		return 1
	}

	return c.HealthFraction
}

// RegenModifiers holds the multiplicative factors applied on top of a
// pool's base regeneration rate. Factors compose by multiplication.
type RegenModifiers struct {
	Desperation     float64 // below 30% health
	Wounded         float64 // below 60% health
	NearFullDamping float64 // one unit below capacity
	Blessing        float64 // divine blessing active
	HighFavor       float64 // divine favor above +5
	LowFavor        float64 // divine favor below -5
}

// DefaultRegenModifiers returns the factors used by the stock combat
// rules.
func DefaultRegenModifiers() RegenModifiers {
	return RegenModifiers{
		Desperation:     1.5,
		Wounded:         1.2,
		NearFullDamping: 0.5,
		Blessing:        1.25,
		HighFavor:       1.3,
		LowFavor:        0.7,
	}
}

// A Pool is a bounded integer sand reserve owned by a single actor.
// Sand regenerates fractionally over time and is spent in whole units to
// pay for actions. Progress toward the next unit is kept in a fractional
// carry so that no regeneration is ever lost to rounding, regardless of
// how the elapsed time is sliced into ticks.
//
// A Pool is not safe for concurrent use. The whole engine assumes a
// single logical thread of control.
type Pool struct {
	HookableBase

	current   int
	capacity  int
	baseRate  float64
	carry     float64
	clock     *PrecisionClock
	modifiers RegenModifiers
}

// NewPool creates a pool holding initial units out of capacity, refilling
// at ratePerSec units per second. Capacity must be in [1, MaxCapacity]
// and the rate must be positive.
func NewPool(initial, capacity int, ratePerSec float64) *Pool {
	if capacity < 1 || capacity > MaxCapacity {
		log.Panicf("pool capacity %d outside [1, %d]", capacity, MaxCapacity)
	}

	if ratePerSec <= 0 {
		log.Panic("pool regeneration rate must be positive")
	}

	p := &Pool{
		capacity:  capacity,
		baseRate:  ratePerSec,
		clock:     NewPrecisionClock(),
		modifiers: DefaultRegenModifiers(),
	}
	p.current = clampInt(initial, 0, capacity)

	return p
}

// WithClock replaces the pool's clock. Useful for sharing a time source
// across pools in tests.
func (p *Pool) WithClock(c *PrecisionClock) *Pool {
	p.clock = c

	return p
}

// WithModifiers replaces the regeneration modifier table.
func (p *Pool) WithModifiers(m RegenModifiers) *Pool {
	p.modifiers = m

	return p
}

// Current returns the whole sand units available right now.
func (p *Pool) Current() int {
	return p.current
}

// Capacity returns the pool's current capacity.
func (p *Pool) Capacity() int {
	return p.capacity
}

// RegenerationRate returns the base regeneration rate in units per
// second, before contextual modifiers.
func (p *Pool) RegenerationRate() float64 {
	return p.baseRate
}

// FractionalCarry returns the sub-unit regeneration progress in [0, 1).
func (p *Pool) FractionalCarry() float64 {
	return p.carry
}

// CanAfford reports whether cost units are available. Negative costs are
// never affordable.
func (p *Pool) CanAfford(cost int) bool {
	return cost >= 0 && p.current >= cost
}

// Spend removes cost units from the pool. It either fully succeeds or
// leaves the pool untouched: a negative cost, a cost above capacity, or
// an unaffordable cost all return false without mutation.
func (p *Pool) Spend(cost int) bool {
	if cost < 0 || cost > p.capacity {
		return false
	}

	if !p.CanAfford(cost) {
		return false
	}

	p.current -= cost
	p.notifySandChange()

	return true
}

// Tick samples the clock and converts the elapsed time into sand. While
// the pool is saturated the elapsed time is discarded, never banked.
// The contextual regeneration rate is the base rate multiplied by the
// applicable modifiers.
func (p *Pool) Tick(ctx RegenContext) {
	delta := p.clock.Sample()

	if p.current >= p.capacity {
		return
	}

	if delta <= 0 {
		return
	}

	p.carry += delta * p.DynamicRate(ctx)

	whole := int(p.carry)
	if whole == 0 {
		return
	}

	p.carry -= float64(whole)

	old := p.current
	p.current += whole
	if p.current > p.capacity {
		p.current = p.capacity
	}

	if p.current != old {
		p.notifySandChange()
	}
}

// DynamicRate returns the regeneration rate for the given context:
// the base rate scaled by desperation, near-full damping, blessing, and
// divine-favor modifiers.
func (p *Pool) DynamicRate(ctx RegenContext) float64 {
	rate := p.baseRate

	health := ctx.healthFraction()
	switch {
	case health < 0.3:
		rate *= p.modifiers.Desperation
	case health < 0.6:
		rate *= p.modifiers.Wounded
	}

	if p.current >= p.capacity-1 {
		rate *= p.modifiers.NearFullDamping
	}

	if ctx.DivineBlessing {
		rate *= p.modifiers.Blessing
	}

	switch {
	case ctx.DivineFavor > 5:
		rate *= p.modifiers.HighFavor
	case ctx.DivineFavor < -5:
		rate *= p.modifiers.LowFavor
	}

	return rate
}

// Set assigns the sand amount directly, clamped to [0, capacity]. It
// bypasses regeneration timing and is used for initialization, scripted
// resets, and refunds.
func (p *Pool) Set(amount int) {
	old := p.current
	p.current = clampInt(amount, 0, p.capacity)

	if p.current != old {
		p.notifySandChange()
	}
}

// IncreaseCapacity grows the capacity by delta units. It fails without
// change when the new capacity would exceed MaxCapacity.
func (p *Pool) IncreaseCapacity(delta int) bool {
	newCapacity := p.capacity + delta
	if newCapacity > MaxCapacity || newCapacity < 1 {
		return false
	}

	p.capacity = newCapacity
	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosCapacityChange,
		Item:   p.capacity,
	})

	return true
}

// TimeToNextUnit returns the seconds until the next whole unit
// regenerates at the base rate, or 0 when the pool is full.
func (p *Pool) TimeToNextUnit() float64 {
	if p.current >= p.capacity {
		return 0
	}

	remaining := (1.0 - p.carry) / p.baseRate

	return math.Max(0, remaining)
}

// PauseRegeneration stops the pool's clock, typically for the duration
// of an action resolution or animation. The fractional carry is
// preserved and does not jump forward on resume.
func (p *Pool) PauseRegeneration() {
	p.clock.Pause()
}

// ResumeRegeneration restarts the pool's clock from now.
func (p *Pool) ResumeRegeneration() {
	p.clock.Resume()
}

// RegenerationPaused returns whether the pool's clock is paused.
func (p *Pool) RegenerationPaused() bool {
	return p.clock.IsPaused()
}

// Clock exposes the pool's clock for debug control such as time scaling.
func (p *Pool) Clock() *PrecisionClock {
	return p.clock
}

func (p *Pool) notifySandChange() {
	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosSandChange,
		Item:   p.current,
	})
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
