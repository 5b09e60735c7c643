package combat

import (
	"github.com/duatlab/hourglass/initiative"
)

// An EffectHandler performs the gameplay effect of a ready action. The
// orchestrator spends the action's cost before calling the handler; a
// returned error triggers a full refund. Card and ability logic plugs in
// here.
type EffectHandler interface {
	Resolve(action *initiative.Action) error
}

// EffectHandlerFunc adapts a function to the EffectHandler interface.
type EffectHandlerFunc func(action *initiative.Action) error

// Resolve calls f.
func (f EffectHandlerFunc) Resolve(action *initiative.Action) error {
	return f(action)
}
