// Package bot chooses commands for automated players. A Policy sees a View of
// the game from the acting player's seat and returns one command at a time.
package bot

import (
	"fmt"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
)

// Placement is a legal spot and orientation for the held tile.
type Placement struct {
	Pos      field.Position `json:"pos"`
	Openings field.Sides    `json:"openings"`
}

// Step is a reachable neighbor and what waits there.
type Step struct {
	Pos      field.Position `json:"pos"`
	Guarded  bool           `json:"guarded"`
	GuardHP  int            `json:"guard_hp,omitempty"`
	Loot     *item.Item     `json:"loot,omitempty"`
	Fountain bool           `json:"fountain"`
	Chest    bool           `json:"chest"`
	// Frontier is true when the position borders an empty cell.
	Frontier bool `json:"frontier"`
}

// PendingBattle is an open consumable choice.
type PendingBattle struct {
	ID         string      `json:"id"`
	MonsterHP  int         `json:"monster_hp"`
	BaseDamage int         `json:"base_damage"`
	Available  []item.Item `json:"available"`
}

// PendingPickup is an open inventory-full decision.
type PendingPickup struct {
	Pos      field.Position `json:"pos"`
	Category item.Category  `json:"category"`
	Contents []item.Item    `json:"contents"`
	Offered  item.Item      `json:"offered"`
}

// View is everything a policy may base its decision on.
type View struct {
	PlayerID   string                        `json:"player_id"`
	TurnID     int64                         `json:"turn_id"`
	Budget     int                           `json:"budget"`
	HP         int                           `json:"hp"`
	MaxHP      int                           `json:"max_hp"`
	Pos        field.Position                `json:"pos"`
	Inventory  map[item.Category][]item.Item `json:"inventory"`
	Weapons    int                           `json:"weapons"`
	DeckLeft   int                           `json:"deck_left"`
	Placements []Placement                   `json:"placements"`
	Steps      []Step                        `json:"steps"`
	Fountains  []field.Position              `json:"fountains"`
	Battle     *PendingBattle                `json:"battle,omitempty"`
	Pickup     *PendingPickup                `json:"pickup,omitempty"`
}

// NewView builds the view of g for the turn owner.
//
// Precondition: g is active and playerID owns the open turn.
func NewView(g *engine.Game, playerID string) (View, error) {
	p, err := g.Player(playerID)
	if err != nil {
		return View{}, err
	}
	if g.Turn == nil || g.Turn.PlayerID != playerID {
		return View{}, fmt.Errorf("view for %s: %w", playerID, engine.ErrGameNotActive)
	}
	pos, err := g.Field.PlayerPosition(playerID)
	if err != nil {
		return View{}, err
	}

	v := View{
		PlayerID:  playerID,
		TurnID:    g.Turn.ID,
		Budget:    g.Turn.Budget,
		HP:        p.HP,
		MaxHP:     g.Rules.MaxHP,
		Pos:       pos,
		Inventory: make(map[item.Category][]item.Item),
		Weapons:   p.Inventory.WeaponDamage(),
		DeckLeft:  len(g.Deck),
		Fountains: g.Field.Fountains(),
	}
	for _, c := range []item.Category{item.CategoryKey, item.CategoryWeapon, item.CategorySpell, item.CategoryTreasure} {
		v.Inventory[c] = p.Inventory.Items(c)
	}

	if b := g.ActiveBattle(); b != nil && b.State == battle.AwaitingConsumableChoice {
		v.Battle = &PendingBattle{ID: b.ID, MonsterHP: b.MonsterHP, BaseDamage: b.BaseDamage, Available: b.Available}
	}
	if pk := g.Turn.Pickup; pk != nil {
		v.Pickup = &PendingPickup{Pos: pk.Pos, Category: pk.Full.Category, Contents: pk.Full.Contents, Offered: pk.Full.Offered}
	}

	neighbors := g.Field.Neighbors(pos)
	if held, ok := g.HeldTile(); ok {
		for _, d := range field.Directions {
			if neighbors[d] != nil {
				continue
			}
			held.Pos = pos.Step(d)
			for _, o := range g.Field.LegalOrientations(held, &pos) {
				v.Placements = append(v.Placements, Placement{Pos: held.Pos, Openings: o})
			}
		}
	}
	for _, d := range field.Directions {
		n := neighbors[d]
		if n == nil || g.Field.CanStep(pos, n.Pos) != nil {
			continue
		}
		s := Step{
			Pos:      n.Pos,
			Guarded:  n.HasLiveGuard(),
			Loot:     n.Loot,
			Fountain: n.IsFountain(),
			Chest:    n.HasLockedChest(),
		}
		if s.Guarded {
			s.GuardHP = n.Guard.HP
		}
		for _, nn := range g.Field.Neighbors(n.Pos) {
			if nn == nil {
				s.Frontier = true
			}
		}
		v.Steps = append(v.Steps, s)
	}
	return v, nil
}
