package datarecording

import (
	"github.com/duatlab/hourglass/combat"
	"github.com/duatlab/hourglass/sand"
)

// An ActionRecord is one settled action, successful or not.
type ActionRecord struct {
	ID          string
	Actor       string
	Kind        string
	Cost        int
	Priority    int
	Outcome     string
	Error       string
	RequestedAt int64
	Reschedules int
}

// A ClampRecord counts how often an actor's clock hit the delta clamp
// during a combat.
type ClampRecord struct {
	Actor  string
	Clamps uint64
}

// Table names used by the combat log.
const (
	ActionTableName = "combat_actions"
	ClampTableName  = "clock_clamps"
)

// A CombatLog is a hook that records every settled action into a
// DataRecorder. Attach it to an orchestrator with AcceptHook. When the
// combat ends it records per-actor clamp counts and flushes.
type CombatLog struct {
	recorder DataRecorder
}

// NewCombatLog creates a combat log writing into the given recorder.
func NewCombatLog(recorder DataRecorder) *CombatLog {
	recorder.CreateTable(ActionTableName, ActionRecord{})
	recorder.CreateTable(ClampTableName, ClampRecord{})

	return &CombatLog{recorder: recorder}
}

// Func records the hooked event.
func (l *CombatLog) Func(ctx sand.HookCtx) {
	switch ctx.Pos {
	case combat.HookPosActionResolved,
		combat.HookPosActionFailed,
		combat.HookPosSpendRejected:
		res := ctx.Item.(combat.Resolution)
		l.recorder.InsertData(ActionTableName, actionRecord(res))
	case combat.HookPosCombatEnded:
		l.recordClamps(ctx.Domain.(*combat.Orchestrator))
		l.recorder.Flush()
	}
}

func (l *CombatLog) recordClamps(orch *combat.Orchestrator) {
	for actorID := range orch.SnapshotAll() {
		pool, ok := orch.Pool(actorID)
		if !ok {
			continue
		}

		l.recorder.InsertData(ClampTableName, ClampRecord{
			Actor:  actorID,
			Clamps: pool.Clock().ClampCount(),
		})
	}
}

func actionRecord(res combat.Resolution) ActionRecord {
	record := ActionRecord{
		ID:          res.Action.ID,
		Actor:       res.Action.ActorID,
		Kind:        res.Action.Kind.String(),
		Cost:        res.Action.Cost,
		Priority:    res.Action.Priority,
		Outcome:     res.Outcome.String(),
		RequestedAt: res.Action.RequestedAt.UnixMilli(),
		Reschedules: res.Action.Reschedules(),
	}

	if res.Err != nil {
		record.Error = res.Err.Error()
	}

	return record
}
