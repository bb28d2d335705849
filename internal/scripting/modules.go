package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
)

// RegisterModules registers the dungeon.* Lua table into L:
//
//	dungeon.log(msg)        writes msg to the server log at debug level
//	dungeon.roll(expr)      rolls a dice expression such as "1d6" and returns the total
//	dungeon.sides(mask)     returns the open-side letters of an openings mask, e.g. "NS"
//
// Precondition: L must belong to a Sandbox.
// Postcondition: dungeon global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(m.luaLog))
	L.SetField(mod, "roll", L.NewFunction(m.luaRoll))
	L.SetField(mod, "sides", L.NewFunction(luaSides))
	L.SetGlobal("dungeon", mod)
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Debug("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

func (m *Manager) luaRoll(L *lua.LState) int {
	expr, err := dice.Parse(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(lua.LNumber(dice.Roll(expr, m.roller.Source()).Total()))
	return 1
}

func luaSides(L *lua.LState) int {
	mask := L.CheckInt(1)
	var out []byte
	for i, letter := range "NESW" {
		if mask&(1<<i) != 0 {
			out = append(out, byte(letter))
		}
	}
	if len(out) == 0 {
		out = []byte("-")
	}
	L.Push(lua.LString(out))
	return 1
}
