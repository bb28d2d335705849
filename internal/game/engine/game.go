// Package engine owns the Game aggregate and applies every player command to
// it: lobby, movement, tile placement, battles, inventory decisions and turn
// rotation.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

// Status is the lifecycle stage of a game.
type Status string

// Game statuses.
const (
	StatusLobby    Status = "lobby"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// MaxPlayers is the seat limit of a game.
const MaxPlayers = 2

// Player is a seat in a game.
type Player struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	ExternalID string               `json:"external_id,omitempty"`
	Wallet     string               `json:"wallet,omitempty"`
	Automated  bool                 `json:"automated"`
	Ready      bool                 `json:"ready"`
	HP         int                  `json:"hp"`
	Stunned    bool                 `json:"stunned"`
	Left       bool                 `json:"left"`
	Inventory  *inventory.Inventory `json:"inventory"`
}

// Rules are the per-game constants fixed at creation.
type Rules struct {
	ActionBudget int `json:"action_budget"`
	MaxHP        int `json:"max_hp"`
}

// ActionRecord is one applied command in the game's ordered history.
type ActionRecord struct {
	Seq      int64  `json:"seq"`
	TurnID   int64  `json:"turn_id"`
	PlayerID string `json:"player_id"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail,omitempty"`
}

// EndReason says why a game finished.
type EndReason string

// End reasons.
const (
	EndBossDefeated EndReason = "boss_defeated"
	EndAbandoned    EndReason = "abandoned"
)

// PlayerTotal is a player's final standing.
type PlayerTotal struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
	Wallet     string `json:"wallet,omitempty"`
	Automated  bool   `json:"automated"`
	Treasure   int    `json:"treasure"`
	Winner     bool   `json:"winner"`
}

// EndInfo is the payload of the game-ended notification.
type EndInfo struct {
	GameID string        `json:"game_id"`
	Reason EndReason     `json:"reason"`
	Totals []PlayerTotal `json:"totals"`
}

// Game is the authoritative state of one game.
type Game struct {
	ID      string       `json:"id"`
	Status  Status       `json:"status"`
	Rules   Rules        `json:"rules"`
	Players []*Player    `json:"players"`
	Field   *field.Field `json:"field"`
	// Deck holds the undrawn tiles; the turn owner holds Deck[0].
	Deck         []field.Tile              `json:"deck"`
	HeldOpenings field.Sides               `json:"held_openings"`
	Turn         *turn.Turn                `json:"turn,omitempty"`
	NextTurnID   int64                     `json:"next_turn_id"`
	Battles      map[string]*battle.Battle `json:"battles"`
	History      []ActionRecord            `json:"history"`
	Ended        *EndInfo                  `json:"ended,omitempty"`
}

// Player returns the seat with id.
func (g *Game) Player(id string) (*Player, error) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("player %q: %w", id, ErrUnknownPlayer)
}

// HeldTile returns the tile the turn owner may place, oriented as last rotated.
func (g *Game) HeldTile() (field.Tile, bool) {
	if len(g.Deck) == 0 {
		return field.Tile{}, false
	}
	t := g.Deck[0]
	t.Openings = g.HeldOpenings
	return t, true
}

// ActiveBattle returns the battle the current turn is waiting on, if any.
func (g *Game) ActiveBattle() *battle.Battle {
	if g.Turn == nil || g.Turn.BattleID == "" {
		return nil
	}
	return g.Battles[g.Turn.BattleID]
}

// HumansRemaining counts human players still in the game.
func (g *Game) HumansRemaining() int {
	n := 0
	for _, p := range g.Players {
		if !p.Automated && !p.Left {
			n++
		}
	}
	return n
}

// CurrentOwner returns the player whose turn is open.
func (g *Game) CurrentOwner() (*Player, bool) {
	if g.Status != StatusActive || g.Turn == nil || g.Turn.IsClosed() {
		return nil, false
	}
	p, err := g.Player(g.Turn.PlayerID)
	return p, err == nil
}

// Clone returns a deep copy made through the JSON encoding.
//
// Postcondition: mutating the copy never affects g.
func (g *Game) Clone() (*Game, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding game %s: %w", g.ID, err)
	}
	var out Game
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding game %s: %w", g.ID, err)
	}
	return &out, nil
}

func (g *Game) record(playerID, kind, detail string) {
	var turnID int64
	if g.Turn != nil {
		turnID = g.Turn.ID
	}
	g.History = append(g.History, ActionRecord{
		Seq:      int64(len(g.History)) + 1,
		TurnID:   turnID,
		PlayerID: playerID,
		Kind:     kind,
		Detail:   detail,
	})
}
