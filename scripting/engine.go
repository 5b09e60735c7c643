// Package scripting executes card and ability effects in Lua. Combat
// content lives in scripts; the Go engine only settles costs and
// ordering.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/duatlab/hourglass/initiative"
)

// Engine wraps a single gopher-lua VM for effect resolution.
// Single-goroutine access only (combat loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. Scripts must define a global function
//
//	on_action(kind, actor, cost, priority) -> ok, err
//
// returning true on success or false plus a message on failure.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load effect scripts: %w", err)
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded effect script", zap.String("file", path))
	}
	return nil
}

// Resolve implements combat.EffectHandler by dispatching to the
// on_action Lua function.
func (e *Engine) Resolve(action *initiative.Action) error {
	fn := e.vm.GetGlobal("on_action")
	if fn == lua.LNil {
		return fmt.Errorf("scripts define no on_action handler")
	}

	err := e.vm.CallByParam(
		lua.P{Fn: fn, NRet: 2, Protect: true},
		lua.LString(action.Kind.String()),
		lua.LString(action.ActorID),
		lua.LNumber(action.Cost),
		lua.LNumber(action.Priority),
	)
	if err != nil {
		return fmt.Errorf("on_action: %w", err)
	}

	ok := e.vm.Get(-2)
	msg := e.vm.Get(-1)
	e.vm.Pop(2)

	if lua.LVAsBool(ok) {
		return nil
	}

	if s, isString := msg.(lua.LString); isString {
		return fmt.Errorf("effect rejected: %s", string(s))
	}

	return fmt.Errorf("effect rejected by script")
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
