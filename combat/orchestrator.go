// Package combat drives the Hour-Glass combat loop: it owns one sand
// pool per participant and an action scheduler, spends costs before
// effects run, refunds them when effects fail, and pauses regeneration
// while an actor's hands are occupied resolving an action.
package combat

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/duatlab/hourglass/initiative"
	"github.com/duatlab/hourglass/sand"
)

// State is the orchestrator's lifecycle state.
type State int

// Orchestrator states.
const (
	StateIdle State = iota
	StateActive
	StateResolving
	StateEnded
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateResolving:
		return "resolving"
	case StateEnded:
		return "ended"
	}

	return "unknown"
}

// Outcome classifies how a single action resolution went.
type Outcome int

// Resolution outcomes.
const (
	// OutcomeResolved marks a fully successful resolution.
	OutcomeResolved Outcome = iota

	// OutcomeSpendRejected marks an action discarded because the pool
	// could no longer afford it when spending was attempted.
	OutcomeSpendRejected

	// OutcomeEffectFailed marks an effect-handler failure. The cost was
	// refunded.
	OutcomeEffectFailed

	// OutcomeNoHandler marks an action with no handler registered for
	// its kind. The cost was refunded.
	OutcomeNoHandler

	// OutcomeMissingPool marks an action whose actor had no pool at
	// resolution time.
	OutcomeMissingPool
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeSpendRejected:
		return "spend-rejected"
	case OutcomeEffectFailed:
		return "effect-failed"
	case OutcomeNoHandler:
		return "no-handler"
	case OutcomeMissingPool:
		return "missing-pool"
	}

	return "unknown"
}

// A Resolution reports what happened to one drained action.
type Resolution struct {
	Action  *initiative.Action
	Outcome Outcome
	Err     error
}

// Hook positions invoked by the orchestrator.
var (
	HookPosActionResolved = &sand.HookPos{Name: "ActionResolved"}
	HookPosActionFailed   = &sand.HookPos{Name: "ActionFailed"}
	HookPosSpendRejected  = &sand.HookPos{Name: "SpendRejected"}
	HookPosCombatEnded    = &sand.HookPos{Name: "CombatEnded"}
)

// ErrCombatNotActive reports a proposal made outside an active combat.
var ErrCombatNotActive = errors.New("combat is not active")

// A Participant configures one actor's hour-glass for a combat.
type Participant struct {
	ID           string
	Capacity     int
	StartingSand int
	RegenRate    float64
}

// An Orchestrator owns the scheduler and the pools of a single combat.
// Construct one per combat; there is no shared process-wide state.
//
// The orchestrator is driven by a single-threaded loop: call TickAll
// (or Update) once per frame, then drain ready actions.
type Orchestrator struct {
	sand.HookableBase

	state     State
	scheduler *initiative.Scheduler
	pools     map[string]*sand.Pool
	handlers  map[initiative.Kind]EffectHandler

	now        func() time.Time
	modifiers  sand.RegenModifiers
	clampSecs  float64
	timeScale  float64
	logger     *log.Logger
	winner     string
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator() *Orchestrator {
	o := &Orchestrator{
		pools:     make(map[string]*sand.Pool),
		handlers:  make(map[initiative.Kind]EffectHandler),
		now:       time.Now,
		modifiers: sand.DefaultRegenModifiers(),
		clampSecs: 0.05,
		timeScale: 1.0,
		logger:    log.Default(),
	}
	o.scheduler = initiative.NewScheduler()

	return o
}

// WithTimeFunc replaces the wall-clock source for the scheduler and all
// pools created by Start.
func (o *Orchestrator) WithTimeFunc(f func() time.Time) *Orchestrator {
	o.now = f
	o.scheduler.WithTimeFunc(f)

	return o
}

// WithLogger replaces the orchestrator's logger.
func (o *Orchestrator) WithLogger(l *log.Logger) *Orchestrator {
	o.logger = l
	o.scheduler.WithLogger(l)

	return o
}

// WithModifiers sets the regeneration modifier table applied to pools
// created by Start.
func (o *Orchestrator) WithModifiers(m sand.RegenModifiers) *Orchestrator {
	o.modifiers = m

	return o
}

// WithMaxDeltaClamp sets the largest per-sample delta, in seconds, for
// the clocks of pools created by Start.
func (o *Orchestrator) WithMaxDeltaClamp(seconds float64) *Orchestrator {
	o.clampSecs = seconds

	return o
}

// WithTimeScale sets the debug time multiplier for the clocks of pools
// created by Start.
func (o *Orchestrator) WithTimeScale(factor float64) *Orchestrator {
	o.timeScale = factor

	return o
}

// RegisterEffectHandler installs the handler that resolves actions of
// the given kind.
func (o *Orchestrator) RegisterEffectHandler(
	kind initiative.Kind,
	h EffectHandler,
) {
	o.handlers[kind] = h
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// Winner returns the winner recorded by End.
func (o *Orchestrator) Winner() string {
	return o.winner
}

// Scheduler exposes the orchestrator's scheduler.
func (o *Orchestrator) Scheduler() *initiative.Scheduler {
	return o.scheduler
}

// Pool returns the pool of the given actor.
func (o *Orchestrator) Pool(actorID string) (*sand.Pool, bool) {
	p, ok := o.pools[actorID]

	return p, ok
}

// Start transitions Idle to Active, creating one pool per participant.
// Starting from any other state is a contract violation.
func (o *Orchestrator) Start(participants []Participant) {
	if o.state != StateIdle {
		log.Panicf("starting combat from state %s", o.state)
	}

	for _, p := range participants {
		clock := sand.NewPrecisionClock().
			WithTimeFunc(sand.TimeFunc(o.now)).
			WithMaxDeltaClamp(o.clampSecs)
		clock.SetTimeScale(o.timeScale)

		pool := sand.NewPool(p.StartingSand, p.Capacity, p.RegenRate).
			WithClock(clock).
			WithModifiers(o.modifiers)

		o.pools[p.ID] = pool
		o.scheduler.RegisterPool(p.ID, pool)
	}

	o.state = StateActive
}

// Propose admits an action for an actor. It fails with
// ErrCombatNotActive outside an active combat.
func (o *Orchestrator) Propose(
	actorID string,
	cost, priority int,
	kind initiative.Kind,
) (initiative.Admission, error) {
	if o.state != StateActive && o.state != StateResolving {
		return initiative.Admission{}, ErrCombatNotActive
	}

	return o.scheduler.Propose(actorID, cost, priority, kind)
}

// TickAll regenerates every pool. The contexts map supplies per-actor
// regeneration context; absent actors tick with the zero context.
func (o *Orchestrator) TickAll(contexts map[string]sand.RegenContext) {
	for id, pool := range o.pools {
		pool.Tick(contexts[id])
	}
}

// Update runs one frame: all pools regenerate first, then ready actions
// drain, so an action that became affordable this frame executes this
// frame.
func (o *Orchestrator) Update(
	contexts map[string]sand.RegenContext,
) []Resolution {
	o.TickAll(contexts)

	return o.DrainReadyActions()
}

// DrainReadyActions pops and resolves ready actions until none remain.
// Draining outside the Active state is a contract violation.
func (o *Orchestrator) DrainReadyActions() []Resolution {
	if o.state != StateActive {
		log.Panicf("draining actions from state %s", o.state)
	}

	var resolutions []Resolution

	for o.state == StateActive {
		action := o.scheduler.NextReady()
		if action == nil {
			break
		}

		resolutions = append(resolutions, o.resolve(action))
	}

	return resolutions
}

// End transitions to Ended, cancels every pending action, and stops
// every pool. Ending an already-ended combat is a no-op.
func (o *Orchestrator) End(winner string) {
	if o.state == StateEnded {
		return
	}

	if o.state == StateIdle {
		log.Panic("ending combat that never started")
	}

	for id, pool := range o.pools {
		canceled := o.scheduler.CancelForActor(id)
		if canceled > 0 {
			o.logger.Printf("canceled %d pending actions for %s", canceled, id)
		}

		pool.PauseRegeneration()
	}

	o.winner = winner
	o.state = StateEnded

	o.InvokeHook(sand.HookCtx{
		Domain: o,
		Pos:    HookPosCombatEnded,
		Item:   winner,
	})
}

// SnapshotAll returns a read-only snapshot of every pool, keyed by actor.
func (o *Orchestrator) SnapshotAll() map[string]sand.Snapshot {
	snapshots := make(map[string]sand.Snapshot, len(o.pools))
	for id, pool := range o.pools {
		snapshots[id] = pool.Snapshot()
	}

	return snapshots
}

// resolve spends, executes, and settles a single action. Spend comes
// strictly before execution so no action can run for free; a failed
// effect refunds the full cost before the failure is reported.
func (o *Orchestrator) resolve(action *initiative.Action) Resolution {
	o.state = StateResolving
	defer func() { o.state = StateActive }()

	pool, ok := o.pools[action.ActorID]
	if !ok {
		o.logger.Printf(
			"skipping action %s: no pool for actor %s",
			action.ID, action.ActorID)

		return o.failed(Resolution{
			Action:  action,
			Outcome: OutcomeMissingPool,
		})
	}

	if !pool.Spend(action.Cost) {
		o.logger.Printf(
			"discarding action %s: actor %s can no longer afford cost %d",
			action.ID, action.ActorID, action.Cost)

		res := Resolution{Action: action, Outcome: OutcomeSpendRejected}
		o.InvokeHook(sand.HookCtx{
			Domain: o,
			Pos:    HookPosSpendRejected,
			Item:   res,
		})

		return res
	}

	pool.PauseRegeneration()
	defer pool.ResumeRegeneration()

	handler, ok := o.handlers[action.Kind]
	if !ok {
		pool.Set(pool.Current() + action.Cost)
		o.logger.Printf(
			"refunding action %s: no handler for kind %s",
			action.ID, action.Kind)

		return o.failed(Resolution{
			Action:  action,
			Outcome: OutcomeNoHandler,
		})
	}

	if err := handler.Resolve(action); err != nil {
		pool.Set(pool.Current() + action.Cost)
		o.logger.Printf("action %s failed, cost refunded: %v", action.ID, err)

		return o.failed(Resolution{
			Action:  action,
			Outcome: OutcomeEffectFailed,
			Err:     fmt.Errorf("resolving %s action: %w", action.Kind, err),
		})
	}

	res := Resolution{Action: action, Outcome: OutcomeResolved}
	o.InvokeHook(sand.HookCtx{
		Domain: o,
		Pos:    HookPosActionResolved,
		Item:   res,
	})

	return res
}

func (o *Orchestrator) failed(res Resolution) Resolution {
	o.InvokeHook(sand.HookCtx{
		Domain: o,
		Pos:    HookPosActionFailed,
		Item:   res,
	})

	return res
}
