package initiative

import (
	"container/heap"
	"errors"
	"log"
	"time"

	"github.com/rs/xid"
)

// Pool is the view of an actor's hour-glass that the scheduler needs.
// *sand.Pool satisfies it.
type Pool interface {
	CanAfford(cost int) bool
	Current() int
	Capacity() int
	RegenerationRate() float64
}

// Sentinel errors returned by Propose.
var (
	// ErrUnknownActor reports a proposal or query for an actor with no
	// registered pool.
	ErrUnknownActor = errors.New("no pool registered for actor")

	// ErrInvalidCost reports a cost that can never be satisfied: a
	// negative cost, a cost above the pool's capacity, or a cost that no
	// amount of waiting covers because the pool does not regenerate.
	// Such proposals are rejected outright rather than deferred forever.
	ErrInvalidCost = errors.New("cost can never be satisfied")
)

// DefaultStarvationWarnThreshold is the number of reschedules after
// which the scheduler logs a starvation warning for an action.
const DefaultStarvationWarnThreshold = 8

// An Admission describes how a proposal was admitted.
type Admission struct {
	Action   *Action
	Deferred bool
	ReadyAt  time.Time
}

// A Scheduler admits proposed actions and hands them out in execution
// order: immediately-affordable actions first by priority, then deferred
// actions as their ready times arrive.
//
// The scheduler is driven by a single-threaded cooperative loop. The
// caller must tick every pool before calling NextReady each frame so an
// action that became affordable this frame is eligible this frame.
type Scheduler struct {
	pools map[string]Pool

	immediate immediateQueue
	deferred  deferredQueue

	now           func() time.Time
	seq           uint64
	logger        *log.Logger
	warnThreshold int
}

// NewScheduler creates a Scheduler with no registered pools.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		pools:         make(map[string]Pool),
		now:           time.Now,
		logger:        log.Default(),
		warnThreshold: DefaultStarvationWarnThreshold,
	}
	heap.Init(&s.immediate)
	heap.Init(&s.deferred)

	return s
}

// WithTimeFunc replaces the scheduler's wall-clock source.
func (s *Scheduler) WithTimeFunc(f func() time.Time) *Scheduler {
	s.now = f

	return s
}

// WithLogger replaces the logger used for starvation and drop warnings.
func (s *Scheduler) WithLogger(l *log.Logger) *Scheduler {
	s.logger = l

	return s
}

// WithStarvationWarnThreshold replaces the reschedule count after which
// a starvation warning is logged.
func (s *Scheduler) WithStarvationWarnThreshold(n int) *Scheduler {
	s.warnThreshold = n

	return s
}

// RegisterPool associates an actor with its hour-glass.
func (s *Scheduler) RegisterPool(actorID string, pool Pool) {
	s.pools[actorID] = pool
}

// UnregisterPool removes an actor's pool. Pending actions for the actor
// are not removed; use CancelForActor.
func (s *Scheduler) UnregisterPool(actorID string) {
	delete(s.pools, actorID)
}

// Propose admits an action for the given actor. An affordable action
// joins the immediate collection; an unaffordable one is deferred until
// the earliest time enough sand will have regenerated. A cost of zero is
// always immediate. Costs that can never be satisfied are rejected with
// ErrInvalidCost.
func (s *Scheduler) Propose(
	actorID string,
	cost, priority int,
	kind Kind,
) (Admission, error) {
	pool, ok := s.pools[actorID]
	if !ok {
		return Admission{}, ErrUnknownActor
	}

	if cost < 0 || cost > pool.Capacity() {
		return Admission{}, ErrInvalidCost
	}

	now := s.now()
	s.seq++
	action := &Action{
		ID:          xid.New().String(),
		ActorID:     actorID,
		Cost:        cost,
		Priority:    priority,
		Kind:        kind,
		RequestedAt: now,
		seq:         s.seq,
	}

	if pool.CanAfford(cost) {
		heap.Push(&s.immediate, action)

		return Admission{Action: action}, nil
	}

	readyAt, ok := s.timeToAfford(pool, cost, now)
	if !ok {
		return Admission{}, ErrInvalidCost
	}

	action.ReadyAt = readyAt
	heap.Push(&s.deferred, action)

	return Admission{Action: action, Deferred: true, ReadyAt: readyAt}, nil
}

// NextReady returns the next action eligible for execution, or nil when
// nothing is ready yet. Immediate actions always win over deferred ones.
// A deferred action whose time has arrived is re-validated against its
// pool: the sand it counted on may have been spent on another action
// since admission, in which case it is re-deferred with a fresh ready
// time.
func (s *Scheduler) NextReady() *Action {
	if s.immediate.Len() > 0 {
		return heap.Pop(&s.immediate).(*Action)
	}

	now := s.now()

	for s.deferred.Len() > 0 {
		if s.deferred[0].ReadyAt.After(now) {
			return nil
		}

		action := heap.Pop(&s.deferred).(*Action)

		pool, ok := s.pools[action.ActorID]
		if !ok {
			s.logger.Printf(
				"dropping action %s: actor %s no longer registered",
				action.ID, action.ActorID)

			continue
		}

		if pool.CanAfford(action.Cost) {
			return action
		}

		readyAt, ok := s.timeToAfford(pool, action.Cost, now)
		if !ok {
			s.logger.Printf(
				"dropping action %s: pool for actor %s stopped regenerating",
				action.ID, action.ActorID)

			continue
		}

		action.reschedules++
		if action.reschedules == s.warnThreshold {
			s.logger.Printf(
				"action %s for actor %s rescheduled %d times, possible starvation",
				action.ID, action.ActorID, action.reschedules)
		}

		action.ReadyAt = readyAt
		heap.Push(&s.deferred, action)
	}

	return nil
}

// CancelForActor removes every pending action, immediate and deferred,
// belonging to the actor. It returns the number removed.
func (s *Scheduler) CancelForActor(actorID string) int {
	count := 0

	kept := s.immediate[:0]
	for _, a := range s.immediate {
		if a.ActorID == actorID {
			count++
		} else {
			kept = append(kept, a)
		}
	}
	s.immediate = kept
	heap.Init(&s.immediate)

	keptDeferred := s.deferred[:0]
	for _, a := range s.deferred {
		if a.ActorID == actorID {
			count++
		} else {
			keptDeferred = append(keptDeferred, a)
		}
	}
	s.deferred = keptDeferred
	heap.Init(&s.deferred)

	return count
}

// PendingCount returns the number of pending actions for the actor.
func (s *Scheduler) PendingCount(actorID string) int {
	count := 0

	for _, a := range s.immediate {
		if a.ActorID == actorID {
			count++
		}
	}

	for _, a := range s.deferred {
		if a.ActorID == actorID {
			count++
		}
	}

	return count
}

// Len returns the total number of pending actions.
func (s *Scheduler) Len() int {
	return s.immediate.Len() + s.deferred.Len()
}

func (s *Scheduler) timeToAfford(
	pool Pool,
	cost int,
	now time.Time,
) (time.Time, bool) {
	rate := pool.RegenerationRate()
	if rate <= 0 {
		return time.Time{}, false
	}

	missing := cost - pool.Current()
	if missing < 0 {
		missing = 0
	}

	wait := float64(missing) / rate

	return now.Add(time.Duration(wait * float64(time.Second))), true
}
