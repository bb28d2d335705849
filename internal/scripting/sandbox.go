// Package scripting provides a sandboxed GopherLua execution environment for
// automated-player policy scripts. It has no dependency on game rule packages;
// callers pass plain data in and read plain data back.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes a single hook
// call may execute when no override is configured.
const DefaultInstructionLimit = 100_000

// Globals a policy script must never reach: file and chunk loading, and the
// collector, which a script could use to stall the server.
var strippedGlobals = []string{"dofile", "loadfile", "load", "collectgarbage", "require"}

// opBudget cancels itself after Done has been called n times. GopherLua polls
// Done once per opcode, so n is an exact opcode allowance.
type opBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// Sandbox is one Lua state restricted to base, table, string and math, with a
// per-call opcode allowance.
type Sandbox struct {
	L      *lua.LState
	limit  int
	cancel context.CancelFunc
}

// NewSandbox creates a restricted Lua state armed with instLimit opcodes.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: the caller must Close the Sandbox.
func NewSandbox(instLimit int) *Sandbox {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	s := &Sandbox{L: L, limit: instLimit}
	s.Rearm()
	return s
}

// Rearm replaces the remaining allowance with a full one.
func (s *Sandbox) Rearm() {
	if s.cancel != nil {
		s.cancel()
	}
	base, cancel := context.WithCancel(context.Background())
	b := &opBudget{Context: base, cancel: cancel}
	b.left.Store(int64(s.limit))
	s.cancel = cancel
	s.L.SetContext(b)
}

// Close releases the Lua state.
func (s *Sandbox) Close() {
	s.cancel()
	s.L.Close()
}
