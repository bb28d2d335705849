package bot

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/scripting"
)

// ScriptName is the name the bot script is loaded under.
const ScriptName = "bot"

// Hook is the Lua global a bot script defines. It receives the View as a
// table and returns an action table such as
//
//	{kind = "place_tile", pos = {x = 1, y = 0}, openings = 10}
//
// Field names match the JSON names of engine.Command.
const Hook = "choose_action"

// LuaPolicy asks a script for each command and falls back when the script
// errors, runs out of instructions, or returns nothing.
type LuaPolicy struct {
	scripts  *scripting.Manager
	fallback Policy
	logger   *zap.Logger
}

// NewLuaPolicy creates a LuaPolicy.
//
// Precondition: scripts has a script loaded under ScriptName; fallback and
// logger must be non-nil.
func NewLuaPolicy(scripts *scripting.Manager, fallback Policy, logger *zap.Logger) *LuaPolicy {
	return &LuaPolicy{scripts: scripts, fallback: fallback, logger: logger}
}

type luaAction struct {
	Kind          engine.CommandKind `json:"kind"`
	Pos           field.Position     `json:"pos"`
	Openings      field.Sides        `json:"openings"`
	ItemID        string             `json:"item_id"`
	ReplaceItemID string             `json:"replace_item_id"`
	BattleID      string             `json:"battle_id"`
	Selected      []string           `json:"selected"`
	Pickup        bool               `json:"pickup"`
}

// Choose implements Policy.
func (p *LuaPolicy) Choose(v View) (engine.Command, error) {
	var act luaAction
	err := p.scripts.Call(ScriptName, Hook,
		func(L *lua.LState) []lua.LValue {
			arg, convErr := scripting.ToLua(L, v)
			if convErr != nil {
				return []lua.LValue{lua.LNil}
			}
			return []lua.LValue{arg}
		},
		func(ret lua.LValue) error {
			if ret == lua.LNil {
				return fmt.Errorf("%s returned nil", Hook)
			}
			return scripting.FromLua(ret, &act)
		},
	)
	if err == nil && act.Kind == "" {
		err = fmt.Errorf("%s returned no kind", Hook)
	}
	if err != nil {
		p.logger.Warn("bot script failed; using fallback policy",
			zap.String("player_id", v.PlayerID),
			zap.Error(err),
		)
		return p.fallback.Choose(v)
	}
	return engine.Command{
		Kind:          act.Kind,
		PlayerID:      v.PlayerID,
		TurnID:        v.TurnID,
		Pos:           act.Pos,
		Openings:      act.Openings,
		ItemID:        act.ItemID,
		ReplaceItemID: act.ReplaceItemID,
		BattleID:      act.BattleID,
		Selected:      act.Selected,
		Pickup:        act.Pickup,
	}, nil
}
