package scripting

import (
	"errors"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
)

// ErrNoScript is returned by CallHook when no script is loaded under the name.
var ErrNoScript = errors.New("no script loaded")

// ErrNoHook is returned by CallHook when the script does not define the hook.
var ErrNoHook = errors.New("hook not defined")

// Manager owns one sandboxed LState per loaded script and exposes hook dispatch.
//
// Every CallHook gets a fresh instruction budget. Each LState is
// single-threaded; the mutex serializes calls.
type Manager struct {
	mu        sync.Mutex
	scripts   map[string]*Sandbox
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	return &Manager{
		scripts:   make(map[string]*Sandbox),
		instLimit: instLimit,
		roller:    roller,
		logger:    logger,
	}
}

// LoadFile loads the Lua file at path under name, replacing any earlier script.
//
// Precondition: name must be non-empty; path must be readable.
func (m *Manager) LoadFile(name, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	return m.LoadString(name, string(src))
}

// LoadString loads Lua source under name, replacing any earlier script.
//
// Postcondition: on error no state is registered for name.
func (m *Manager) LoadString(name, src string) error {
	sb := NewSandbox(m.instLimit)
	m.RegisterModules(sb.L)
	if err := sb.L.DoString(src); err != nil {
		sb.Close()
		return fmt.Errorf("scripting: loading %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.scripts[name]; ok {
		old.Close()
	}
	m.scripts[name] = sb
	m.logger.Debug("script loaded", zap.String("script", name))
	return nil
}

// HasHook reports whether the script under name defines a global function hook.
func (m *Manager) HasHook(name, hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.scripts[name]
	if !ok {
		return false
	}
	_, isFn := sb.L.GetGlobal(hook).(*lua.LFunction)
	return isFn
}

// CallHook calls the named Lua global function in the script loaded under name.
// Lua runtime errors, including an exhausted instruction budget, are logged
// at Warn level and returned.
//
// Precondition: args must be valid lua.LValue instances created by this
// Manager's state (see Call for building arguments inside the lock).
// Postcondition: Returns the first return value of the hook.
func (m *Manager) CallHook(name, hook string, args ...lua.LValue) (lua.LValue, error) {
	var ret lua.LValue = lua.LNil
	err := m.Call(name, hook, func(*lua.LState) []lua.LValue { return args }, func(v lua.LValue) error {
		ret = v
		return nil
	})
	return ret, err
}

// Call builds arguments with build, calls hook and hands the result to read,
// all while holding the script's lock so tables created for and returned by
// the call are only touched by one goroutine.
func (m *Manager) Call(name, hook string, build func(L *lua.LState) []lua.LValue, read func(lua.LValue) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sb, ok := m.scripts[name]
	if !ok {
		return fmt.Errorf("scripting: %q: %w", name, ErrNoScript)
	}
	L := sb.L
	fn, isFn := L.GetGlobal(hook).(*lua.LFunction)
	if !isFn {
		return fmt.Errorf("scripting: %s.%s: %w", name, hook, ErrNoHook)
	}

	sb.Rearm()

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, build(L)...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("script", name),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return fmt.Errorf("scripting: %s.%s: %w", name, hook, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return read(ret)
}

// Close releases every loaded LState.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sb := range m.scripts {
		sb.Close()
	}
	m.scripts = make(map[string]*Sandbox)
}
