package bot

import (
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
)

// Policy picks the next command for an automated player.
type Policy interface {
	Choose(v View) (engine.Command, error)
}

// Heuristic is the built-in policy: spend everything in battle, keep the
// stronger item, heal when low, explore by placing tiles, otherwise walk
// toward loot and unexplored edges.
type Heuristic struct{}

// Choose implements Policy.
//
// Postcondition: the returned command always carries v.PlayerID and v.TurnID.
func (Heuristic) Choose(v View) (engine.Command, error) {
	cmd := engine.Command{PlayerID: v.PlayerID, TurnID: v.TurnID}

	if v.Battle != nil {
		cmd.Kind = engine.CmdFightFinalize
		cmd.BattleID = v.Battle.ID
		cmd.Pickup = true
		for _, c := range v.Battle.Available {
			cmd.Selected = append(cmd.Selected, c.ID)
		}
		return cmd, nil
	}

	if v.Pickup != nil {
		cmd.Pos = v.Pickup.Pos
		if weakest, ok := weakestBelow(v.Pickup.Contents, v.Pickup.Offered); ok {
			cmd.Kind = engine.CmdPickItem
			cmd.ReplaceItemID = weakest.ID
		} else {
			cmd.Kind = engine.CmdLeaveItem
		}
		return cmd, nil
	}

	if v.Budget == 0 {
		cmd.Kind = engine.CmdEndTurn
		return cmd, nil
	}

	if v.HP*2 <= v.MaxHP && len(v.Fountains) > 0 {
		for _, spell := range v.Inventory[item.CategorySpell] {
			if spell.Kind == item.KindTeleport {
				cmd.Kind = engine.CmdUseSpell
				cmd.ItemID = spell.ID
				cmd.Pos = v.Fountains[0]
				return cmd, nil
			}
		}
	}

	if len(v.Placements) > 0 {
		pl := v.Placements[0]
		cmd.Kind = engine.CmdPlaceTile
		cmd.Pos = pl.Pos
		cmd.Openings = pl.Openings
		return cmd, nil
	}

	best, bestScore := -1, 0
	for i, s := range v.Steps {
		if score := scoreStep(v, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		cmd.Kind = engine.CmdMove
		cmd.Pos = v.Steps[best].Pos
		return cmd, nil
	}

	cmd.Kind = engine.CmdEndTurn
	return cmd, nil
}

func scoreStep(v View, s Step) int {
	score := 1
	if s.Guarded {
		// 7 is the mean of 2d6
		if v.HP <= 1 || 7+v.Weapons <= s.GuardHP {
			return 0
		}
		score += 3
	}
	if s.Loot != nil {
		score += 3
	}
	if s.Chest && len(v.Inventory[item.CategoryKey]) > 0 {
		score += 4
	}
	if s.Fountain && v.HP < v.MaxHP {
		score += 2
	}
	if s.Frontier {
		score++
	}
	return score
}

// weakestBelow returns the lowest-rated held item when offered rates higher.
func weakestBelow(held []item.Item, offered item.Item) (item.Item, bool) {
	if len(held) == 0 {
		return item.Item{}, false
	}
	weakest := held[0]
	for _, it := range held[1:] {
		if rating(it) < rating(weakest) {
			weakest = it
		}
	}
	return weakest, rating(offered) > rating(weakest)
}

func rating(it item.Item) int {
	if it.Kind == item.KindTeleport {
		return 1
	}
	return it.Damage + it.Value
}
