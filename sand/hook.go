package sand

// HookPos names a position at which hooks can be invoked.
type HookPos struct {
	Name string
}

// HookPosSandChange triggers whenever the current sand amount of a pool
// changes, whether by regeneration, spending, or a direct set.
var HookPosSandChange = &HookPos{Name: "SandChange"}

// HookPosCapacityChange triggers when a pool's capacity is increased.
var HookPosCapacityChange = &HookPos{Name: "CapacityChange"}

// HookCtx carries the information about the site where a hook is invoked.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is an object that accepts hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)
}

// A Hook is a short piece of program invoked by a hookable object.
type Hook interface {
	// Func determines what to do when the hook is invoked.
	Func(ctx HookCtx)
}

// HookableBase provides the hook-keeping utilities for types that
// implement Hookable.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// InvokeHook triggers all the registered hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

// NumHooks returns the number of registered hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}
