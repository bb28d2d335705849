// Package turn implements the per-turn state machine: ownership, action
// budget, pending decisions and closure.
package turn

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
)

// Turn errors.
var (
	ErrNotYourTurn      = errors.New("not your turn")
	ErrTurnIDRequired   = errors.New("command must carry the current turn id")
	ErrStaleTurn        = errors.New("turn id does not match the current turn")
	ErrTurnClosed       = errors.New("turn already closed")
	ErrBudgetExhausted  = errors.New("action budget exhausted")
	ErrDecisionPending  = errors.New("a pending decision must be resolved first")
	ErrIllegalPhase     = errors.New("illegal phase transition")
	ErrNoPendingPickup  = errors.New("no pickup pending")
	ErrBattleInProgress = errors.New("battle awaits consumable choice")
)

// Phase is where the turn is in its state machine.
type Phase string

// Phases. Moving, Placing and UsingItem are transient within one command;
// Battling persists across requests while a consumable choice is open.
const (
	AwaitingAction Phase = "awaiting_action"
	Moving         Phase = "moving"
	Placing        Phase = "placing"
	Battling       Phase = "battling"
	UsingItem      Phase = "using_item"
	Closed         Phase = "closed"
)

// CloseReason records why a turn ended.
type CloseReason string

// Close reasons.
const (
	ReasonBudget     CloseReason = "budget"
	ReasonEnded      CloseReason = "ended"
	ReasonBattleLost CloseReason = "battle_lost"
	ReasonBattleDraw CloseReason = "battle_draw"
	ReasonChest      CloseReason = "chest"
	ReasonFountain   CloseReason = "fountain"
	ReasonStunned    CloseReason = "stunned"
	ReasonSkipped    CloseReason = "skipped"
	ReasonLeft       CloseReason = "left"
	ReasonGameOver   CloseReason = "game_over"
)

// Action is one entry in the turn's ordered log.
type Action struct {
	Kind string `json:"kind"`
	Cost int    `json:"cost"`
}

// Pickup is an inventory-full decision the owner must resolve by replacing an
// item or leaving the found one where it lies.
type Pickup struct {
	Pos  field.Position             `json:"pos"`
	Full inventory.CapacityExceeded `json:"full"`
}

// Turn is one player's turn.
type Turn struct {
	ID       int64    `json:"id"`
	PlayerID string   `json:"player_id"`
	Budget   int      `json:"budget"`
	Spent    int      `json:"spent"`
	Phase    Phase    `json:"phase"`
	Actions  []Action `json:"actions"`
	// BattleID is set while Phase is Battling.
	BattleID    string      `json:"battle_id,omitempty"`
	Pickup      *Pickup     `json:"pickup,omitempty"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
}

// New opens a turn for playerID with the given budget.
//
// Precondition: budget >= 1.
// Postcondition: Phase == AwaitingAction and Budget == budget.
func New(id int64, playerID string, budget int) *Turn {
	return &Turn{ID: id, PlayerID: playerID, Budget: budget, Phase: AwaitingAction}
}

// NewSkipped returns an already-closed turn recording that a stunned player sat out.
func NewSkipped(id int64, playerID string) *Turn {
	return &Turn{ID: id, PlayerID: playerID, Phase: Closed, CloseReason: ReasonSkipped}
}

// IsClosed reports whether the turn has ended.
func (t *Turn) IsClosed() bool {
	return t.Phase == Closed
}

// HasPending reports whether a battle choice or a pickup decision is open.
func (t *Turn) HasPending() bool {
	return t.Phase == Battling || t.Pickup != nil
}

// Authorize checks that playerID owns this open turn and that turnID names it.
// The turn id is the idempotency key of every in-turn command, so it is required.
func (t *Turn) Authorize(playerID string, turnID int64) error {
	if turnID == 0 {
		return fmt.Errorf("player %s: %w", playerID, ErrTurnIDRequired)
	}
	if turnID != t.ID {
		return fmt.Errorf("turn %d (current %d): %w", turnID, t.ID, ErrStaleTurn)
	}
	if t.IsClosed() {
		return fmt.Errorf("turn %d: %w", t.ID, ErrTurnClosed)
	}
	if playerID != t.PlayerID {
		return fmt.Errorf("player %s during turn of %s: %w", playerID, t.PlayerID, ErrNotYourTurn)
	}
	return nil
}

// CanBegin reports whether a transient action phase p costing cost may start.
func (t *Turn) CanBegin(p Phase, cost int) error {
	switch {
	case t.IsClosed():
		return fmt.Errorf("turn %d: %w", t.ID, ErrTurnClosed)
	case t.HasPending():
		return fmt.Errorf("turn %d: %w", t.ID, ErrDecisionPending)
	case t.Phase != AwaitingAction:
		return fmt.Errorf("turn %d: %s to %s: %w", t.ID, t.Phase, p, ErrIllegalPhase)
	case p != Moving && p != Placing && p != UsingItem:
		return fmt.Errorf("turn %d: %s to %s: %w", t.ID, t.Phase, p, ErrIllegalPhase)
	case cost > t.Budget:
		return fmt.Errorf("turn %d: need %d, have %d: %w", t.ID, cost, t.Budget, ErrBudgetExhausted)
	}
	return nil
}

// Begin enters a transient action phase after checking the budget covers cost.
//
// Precondition: p is Moving, Placing or UsingItem.
// Postcondition: on success Phase == p; on error nothing changes.
func (t *Turn) Begin(p Phase, cost int) error {
	if err := t.CanBegin(p, cost); err != nil {
		return err
	}
	t.Phase = p
	return nil
}

// Spend records an action and deducts its cost.
//
// Precondition: cost <= Budget; Begin has already checked it.
// Postcondition: Budget >= 0.
func (t *Turn) Spend(kind string, cost int) {
	if cost > t.Budget {
		panic(fmt.Sprintf("turn %d: spending %d with budget %d", t.ID, cost, t.Budget))
	}
	t.Budget -= cost
	t.Spent += cost
	t.Actions = append(t.Actions, Action{Kind: kind, Cost: cost})
}

// Record logs a free action.
func (t *Turn) Record(kind string) {
	t.Actions = append(t.Actions, Action{Kind: kind})
}

// EnterBattle suspends the turn until battleID is finalized.
func (t *Turn) EnterBattle(battleID string) {
	t.Phase = Battling
	t.BattleID = battleID
}

// LeaveBattle returns from Battling to AwaitingAction.
func (t *Turn) LeaveBattle() {
	if t.Phase == Battling {
		t.Phase = AwaitingAction
	}
	t.BattleID = ""
}

// HoldPickup records an inventory-full decision.
func (t *Turn) HoldPickup(p Pickup) {
	t.Pickup = &p
}

// ClearPickup resolves the pending pickup.
func (t *Turn) ClearPickup() (Pickup, error) {
	if t.Pickup == nil {
		return Pickup{}, fmt.Errorf("turn %d: %w", t.ID, ErrNoPendingPickup)
	}
	p := *t.Pickup
	t.Pickup = nil
	return p, nil
}

// Close ends the turn. Any pending pickup is dropped; the found item stays on the field.
//
// Postcondition: IsClosed(); a second call returns ErrTurnClosed and changes nothing.
func (t *Turn) Close(reason CloseReason) error {
	if t.IsClosed() {
		return fmt.Errorf("turn %d: %w", t.ID, ErrTurnClosed)
	}
	t.Phase = Closed
	t.Pickup = nil
	t.BattleID = ""
	t.CloseReason = reason
	return nil
}

// Settle finishes a command: transient phases return to AwaitingAction and an
// empty budget closes the turn unless a decision is pending.
//
// Postcondition: Phase is AwaitingAction, Battling or Closed.
func (t *Turn) Settle() {
	switch t.Phase {
	case Moving, Placing, UsingItem:
		t.Phase = AwaitingAction
	}
	if t.Phase == AwaitingAction && t.Budget == 0 && t.Pickup == nil {
		t.Phase = Closed
		t.CloseReason = ReasonBudget
	}
}
