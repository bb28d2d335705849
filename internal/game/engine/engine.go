package engine

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/content"
	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

// Engine applies commands to games. It holds no per-game state and is safe
// for concurrent use on distinct games.
type Engine struct {
	catalog *content.Catalog
	roller  *dice.Roller
	shuffle dice.Source
	rules   Rules
	logger  *zap.Logger
}

// New creates an Engine.
//
// Precondition: catalog, roller, shuffle and logger must be non-nil;
// rules.ActionBudget and rules.MaxHP must be >= 1.
func New(catalog *content.Catalog, roller *dice.Roller, shuffle dice.Source, rules Rules, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		roller:  roller,
		shuffle: shuffle,
		rules:   rules,
		logger:  logger,
	}
}

// Rules returns the rules new games are created with.
func (e *Engine) Rules() Rules {
	return e.rules
}

// NewGame creates a game in the lobby with a freshly shuffled deck. An empty
// id is replaced by a random UUID.
//
// Postcondition: Status == StatusLobby and the field holds only the origin.
func (e *Engine) NewGame(id string) *Game {
	if id == "" {
		id = uuid.NewString()
	}
	g := &Game{
		ID:         id,
		Status:     StatusLobby,
		Rules:      e.rules,
		Field:      field.New(),
		Deck:       e.catalog.NewDeck(e.shuffle),
		NextTurnID: 1,
		Battles:    make(map[string]*battle.Battle),
	}
	if len(g.Deck) > 0 {
		g.HeldOpenings = g.Deck[0].Openings
	}
	g.record("", "create", "")
	return g
}

// JoinRequest describes a player taking a seat.
type JoinRequest struct {
	Name       string
	ExternalID string
	Wallet     string
	Automated  bool
}

// Join seats a new player. Automated players are ready at once.
//
// Postcondition: on success the returned player is the last seat.
func (e *Engine) Join(g *Game, req JoinRequest) (*Player, error) {
	var joined *Player
	_, err := e.atomically(g, func(w *Game) (Result, error) {
		if w.Status != StatusLobby {
			return Result{}, fmt.Errorf("joining %s: %w", w.ID, ErrNotInLobby)
		}
		if len(w.Players) >= MaxPlayers {
			return Result{}, fmt.Errorf("joining %s: %w", w.ID, ErrGameFull)
		}
		if req.Name == "" {
			return Result{}, fmt.Errorf("joining %s: %w", w.ID, ErrEmptyName)
		}
		for _, p := range w.Players {
			if p.Name == req.Name {
				return Result{}, fmt.Errorf("joining %s as %q: %w", w.ID, req.Name, ErrNameTaken)
			}
		}
		joined = &Player{
			ID:         uuid.NewString(),
			Name:       req.Name,
			ExternalID: req.ExternalID,
			Wallet:     req.Wallet,
			Automated:  req.Automated,
			Ready:      req.Automated,
			HP:         w.Rules.MaxHP,
			Inventory:  inventory.New(),
		}
		w.Players = append(w.Players, joined)
		w.record(joined.ID, "join", req.Name)
		return Result{}, nil
	})
	if err != nil {
		return nil, err
	}
	// the committed copy is now g; hand back its seat, not the scratch one
	return g.Player(joined.ID)
}

// MarkReady flags a human player as ready to start.
func (e *Engine) MarkReady(g *Game, playerID string) error {
	_, err := e.atomically(g, func(w *Game) (Result, error) {
		if w.Status != StatusLobby {
			return Result{}, fmt.Errorf("readying in %s: %w", w.ID, ErrNotInLobby)
		}
		p, err := w.Player(playerID)
		if err != nil {
			return Result{}, err
		}
		p.Ready = true
		w.record(p.ID, "ready", "")
		return Result{}, nil
	})
	return err
}

// Start moves a lobby into play: every player stands on the origin and the
// first seat gets the first turn.
//
// Precondition: playerID is seated; there are 1..MaxPlayers players, at least
// one of them human, and every human is ready.
func (e *Engine) Start(g *Game, playerID string) error {
	_, err := e.atomically(g, func(w *Game) (Result, error) {
		if w.Status != StatusLobby {
			return Result{}, fmt.Errorf("starting %s: %w", w.ID, ErrNotInLobby)
		}
		if _, err := w.Player(playerID); err != nil {
			return Result{}, err
		}
		if len(w.Players) == 0 {
			return Result{}, fmt.Errorf("starting %s: %w", w.ID, ErrNoPlayers)
		}
		if w.HumansRemaining() == 0 {
			return Result{}, fmt.Errorf("starting %s: %w", w.ID, ErrNoHumans)
		}
		for _, p := range w.Players {
			if !p.Ready {
				return Result{}, fmt.Errorf("starting %s: %s: %w", w.ID, p.Name, ErrNotReady)
			}
		}
		w.Status = StatusActive
		for _, p := range w.Players {
			if err := w.Field.PutPlayer(p.ID, field.Origin); err != nil {
				return Result{}, err
			}
		}
		w.record(playerID, "start", "")
		e.openTurn(w, w.Players[0])
		return Result{}, nil
	})
	return err
}

// Leave removes a player. In the lobby the seat is freed; in play the player
// is marked as left and the game is abandoned once no human remains.
func (e *Engine) Leave(g *Game, playerID string) (Result, error) {
	return e.atomically(g, func(w *Game) (Result, error) {
		p, err := w.Player(playerID)
		if err != nil {
			return Result{}, err
		}
		switch w.Status {
		case StatusFinished:
			return Result{}, fmt.Errorf("leaving %s: %w", w.ID, ErrGameFinished)
		case StatusLobby:
			for i, seat := range w.Players {
				if seat.ID == p.ID {
					w.Players = append(w.Players[:i], w.Players[i+1:]...)
					break
				}
			}
			w.record(p.ID, "leave", "")
			return Result{}, nil
		}
		if p.Left {
			return Result{}, fmt.Errorf("leaving %s: %w", w.ID, ErrPlayerLeft)
		}
		p.Left = true
		w.Field.RemovePlayer(p.ID)
		if b := w.ActiveBattle(); b != nil && w.Turn.PlayerID == p.ID {
			// Settle a pending battle with no consumables; its outcome has
			// no consequences for a player who is off the field.
			if err := b.Finalize(nil); err != nil {
				return Result{}, err
			}
			w.record(p.ID, "battle_end", fmt.Sprintf("%s abandoned %d/%d", b.ID, b.FinalDamage, b.MonsterHP))
			w.Turn.LeaveBattle()
		}
		w.record(p.ID, "leave", "")

		if w.HumansRemaining() == 0 {
			e.finish(w, EndAbandoned)
		} else if w.Turn != nil && w.Turn.PlayerID == p.ID && !w.Turn.IsClosed() {
			_ = w.Turn.Close(turn.ReasonLeft)
			e.advance(w)
		}
		return Result{Ended: w.Ended}, nil
	})
}

// atomically runs fn against a deep copy of g and commits it only on success,
// so a rejected command never leaves a partial change behind.
func (e *Engine) atomically(g *Game, fn func(*Game) (Result, error)) (Result, error) {
	work, err := g.Clone()
	if err != nil {
		return Result{}, err
	}
	res, err := fn(work)
	if err != nil {
		return Result{}, err
	}
	*g = *work
	return res, nil
}

func (e *Engine) openTurn(g *Game, p *Player) {
	g.Turn = turn.New(g.NextTurnID, p.ID, g.Rules.ActionBudget)
	g.NextTurnID++
	if len(g.Deck) > 0 {
		g.HeldOpenings = g.Deck[0].Openings
	}
	g.record(p.ID, "turn_start", "")
}

// advance hands the closed turn to the next eligible seat. Stunned players sit
// out one turn and recover to 1 HP as the skip is processed.
func (e *Engine) advance(g *Game) {
	if g.Status != StatusActive {
		return
	}
	idx := 0
	for i, p := range g.Players {
		if p.ID == g.Turn.PlayerID {
			idx = i
		}
	}
	for n := 0; n < 2*len(g.Players); n++ {
		idx = (idx + 1) % len(g.Players)
		p := g.Players[idx]
		if p.Left {
			continue
		}
		if p.Stunned {
			g.Turn = turn.NewSkipped(g.NextTurnID, p.ID)
			g.NextTurnID++
			p.Stunned = false
			p.HP = 1
			g.record(p.ID, "turn_skipped", "stunned")
			continue
		}
		e.openTurn(g, p)
		return
	}
	e.finish(g, EndAbandoned)
}

// finish ends the game and computes the final standings. Winners are only
// named when the boss fell.
func (e *Engine) finish(g *Game, reason EndReason) {
	if g.Status == StatusFinished {
		return
	}
	if g.Turn != nil && !g.Turn.IsClosed() {
		_ = g.Turn.Close(turn.ReasonGameOver)
	}
	g.Status = StatusFinished

	best := -1
	totals := make([]PlayerTotal, 0, len(g.Players))
	for _, p := range g.Players {
		t := PlayerTotal{
			PlayerID:   p.ID,
			Name:       p.Name,
			ExternalID: p.ExternalID,
			Wallet:     p.Wallet,
			Automated:  p.Automated,
			Treasure:   p.Inventory.TreasureTotal(),
		}
		best = max(best, t.Treasure)
		totals = append(totals, t)
	}
	if reason == EndBossDefeated {
		for i := range totals {
			totals[i].Winner = totals[i].Treasure == best
		}
	}
	g.Ended = &EndInfo{GameID: g.ID, Reason: reason, Totals: totals}
	g.record("", "game_end", string(reason))
	e.logger.Info("game finished",
		zap.String("game_id", g.ID),
		zap.String("reason", string(reason)),
		zap.Int("turns", int(g.NextTurnID-1)),
	)
}
