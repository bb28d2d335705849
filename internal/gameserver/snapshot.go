package gameserver

import (
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

// PlayerView is a seat as shown to every participant.
type PlayerView struct {
	ID        string                        `json:"id"`
	Name      string                        `json:"name"`
	Automated bool                          `json:"automated"`
	Ready     bool                          `json:"ready"`
	HP        int                           `json:"hp"`
	Stunned   bool                          `json:"stunned"`
	Left      bool                          `json:"left"`
	Pos       *field.Position               `json:"pos,omitempty"`
	Inventory map[item.Category][]item.Item `json:"inventory"`
	Treasure  int                           `json:"treasure"`
}

// Snapshot is the client-facing state of a game. The undrawn deck is
// reduced to its size.
type Snapshot struct {
	GameID   string          `json:"game_id"`
	Status   engine.Status   `json:"status"`
	Rules    engine.Rules    `json:"rules"`
	Players  []PlayerView    `json:"players"`
	Tiles    []*field.Tile   `json:"tiles"`
	Bounds   field.Bounds    `json:"bounds"`
	Turn     *turn.Turn      `json:"turn,omitempty"`
	HeldTile *field.Tile     `json:"held_tile,omitempty"`
	DeckLeft int             `json:"deck_left"`
	LastSeq  int64           `json:"last_seq"`
	Ended    *engine.EndInfo `json:"ended,omitempty"`
}

// NewSnapshot renders g.
func NewSnapshot(g *engine.Game) *Snapshot {
	s := &Snapshot{
		GameID:   g.ID,
		Status:   g.Status,
		Rules:    g.Rules,
		Tiles:    g.Field.Tiles(),
		Bounds:   g.Field.Bounds(),
		Turn:     g.Turn,
		DeckLeft: len(g.Deck),
		Ended:    g.Ended,
	}
	if n := len(g.History); n > 0 {
		s.LastSeq = g.History[n-1].Seq
	}
	if g.Status == engine.StatusActive {
		if held, ok := g.HeldTile(); ok {
			s.HeldTile = &held
		}
	}
	positions := g.Field.Players()
	for _, p := range g.Players {
		pv := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Automated: p.Automated,
			Ready:     p.Ready,
			HP:        p.HP,
			Stunned:   p.Stunned,
			Left:      p.Left,
			Inventory: make(map[item.Category][]item.Item),
			Treasure:  p.Inventory.TreasureTotal(),
		}
		if pos, ok := positions[p.ID]; ok {
			pv.Pos = &pos
		}
		for _, c := range []item.Category{item.CategoryKey, item.CategoryWeapon, item.CategorySpell, item.CategoryTreasure} {
			if items := p.Inventory.Items(c); len(items) > 0 {
				pv.Inventory[c] = items
			}
		}
		s.Players = append(s.Players, pv)
	}
	return s
}
