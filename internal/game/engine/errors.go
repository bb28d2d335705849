package engine

import (
	"errors"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
	"github.com/cory-johannsen/tiledungeon/internal/game/turn"
)

// Engine validation errors.
var (
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotInLobby      = errors.New("game is not accepting players")
	ErrGameFull        = errors.New("game is full")
	ErrNameTaken       = errors.New("player name already taken")
	ErrEmptyName       = errors.New("player name must not be empty")
	ErrNotReady        = errors.New("not every human player is ready")
	ErrNoHumans        = errors.New("a game needs at least one human player")
	ErrNoPlayers       = errors.New("a game needs at least one player")
	ErrGameNotActive   = errors.New("game is not in progress")
	ErrGameFinished    = errors.New("game already finished")
	ErrPlayerLeft      = errors.New("player has left the game")
	ErrDeckEmpty       = errors.New("no tiles left to place")
	ErrWrongShape      = errors.New("orientation is not a rotation of the held tile")
	ErrNotHere         = errors.New("player is not at that position")
	ErrNothingHere     = errors.New("nothing to pick up here")
	ErrGuarded         = errors.New("a guard blocks the pickup")
	ErrMissingKey      = errors.New("chest is locked and no key is held")
	ErrNotUsable       = errors.New("item cannot be used that way")
	ErrNotFountain     = errors.New("teleport target is not a fountain")
	ErrUnknownBattle   = errors.New("unknown battle")
	ErrNotYourBattle   = errors.New("battle belongs to another player")
	ErrBattleNotActive = errors.New("battle is not the current turn's battle")
)

// RejectionKind separates plain validation failures from replays of work
// that already happened.
type RejectionKind string

// Rejection kinds.
const (
	KindValidation RejectionKind = "validation"
	KindIdempotent RejectionKind = "idempotent"
)

// Rejection is the structured answer to a refused command. It carries enough
// of the current state for the caller to resynchronize.
type Rejection struct {
	Kind      RejectionKind `json:"kind"`
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	TurnOwner string        `json:"turn_owner,omitempty"`
	TurnID    int64         `json:"turn_id,omitempty"`
	Budget    int           `json:"budget"`
	BattleID  string        `json:"battle_id,omitempty"`
}

type rejectionCode struct {
	err  error
	code string
	kind RejectionKind
}

var rejectionCodes = []rejectionCode{
	{battle.ErrAlreadyFinalized, "battle_already_finalized", KindIdempotent},
	{turn.ErrTurnClosed, "turn_closed", KindIdempotent},
	{turn.ErrStaleTurn, "stale_turn", KindIdempotent},
	{ErrGameFinished, "game_finished", KindIdempotent},

	{battle.ErrUnknownConsumable, "unknown_consumable", KindValidation},
	{battle.ErrNoChoiceOffered, "no_choice_offered", KindValidation},
	{turn.ErrTurnIDRequired, "turn_id_required", KindValidation},
	{turn.ErrNotYourTurn, "not_your_turn", KindValidation},
	{turn.ErrBudgetExhausted, "budget_exhausted", KindValidation},
	{turn.ErrDecisionPending, "decision_pending", KindValidation},
	{turn.ErrIllegalPhase, "illegal_phase", KindValidation},
	{turn.ErrNoPendingPickup, "no_pending_pickup", KindValidation},
	{turn.ErrBattleInProgress, "battle_in_progress", KindValidation},
	{field.ErrOccupied, "tile_occupied", KindValidation},
	{field.ErrNotAdjacent, "not_adjacent", KindValidation},
	{field.ErrDoorMismatch, "door_mismatch", KindValidation},
	{field.ErrInvalidOrientation, "invalid_orientation", KindValidation},
	{field.ErrSeamClosed, "seam_closed", KindValidation},
	{field.ErrNoTile, "no_tile", KindValidation},
	{field.ErrBlocked, "blocked", KindValidation},
	{field.ErrUnknownPlayer, "unknown_player", KindValidation},
	{inventory.ErrItemNotFound, "item_not_found", KindValidation},
	{inventory.ErrCategoryNotFull, "category_not_full", KindValidation},
	{inventory.ErrCategoryMismatch, "category_mismatch", KindValidation},
	{ErrUnknownPlayer, "unknown_player", KindValidation},
	{ErrUnknownCommand, "unknown_command", KindValidation},
	{ErrNotInLobby, "not_in_lobby", KindValidation},
	{ErrGameFull, "game_full", KindValidation},
	{ErrNameTaken, "name_taken", KindValidation},
	{ErrEmptyName, "empty_name", KindValidation},
	{ErrNotReady, "not_ready", KindValidation},
	{ErrNoHumans, "no_humans", KindValidation},
	{ErrNoPlayers, "no_players", KindValidation},
	{ErrGameNotActive, "game_not_active", KindValidation},
	{ErrPlayerLeft, "player_left", KindValidation},
	{ErrDeckEmpty, "deck_empty", KindValidation},
	{ErrWrongShape, "wrong_shape", KindValidation},
	{ErrNotHere, "not_here", KindValidation},
	{ErrNothingHere, "nothing_here", KindValidation},
	{ErrGuarded, "guarded", KindValidation},
	{ErrMissingKey, "missing_key", KindValidation},
	{ErrNotUsable, "not_usable", KindValidation},
	{ErrNotFountain, "not_fountain", KindValidation},
	{ErrUnknownBattle, "unknown_battle", KindValidation},
	{ErrNotYourBattle, "not_your_battle", KindValidation},
	{ErrBattleNotActive, "battle_not_active", KindValidation},
}

// Reject converts a domain error into a Rejection annotated with g's current
// turn. It returns false for errors that are not domain rejections, which
// callers treat as internal failures.
func Reject(g *Game, err error) (*Rejection, bool) {
	for _, rc := range rejectionCodes {
		if errors.Is(err, rc.err) {
			r := &Rejection{Kind: rc.kind, Code: rc.code, Message: err.Error()}
			if g != nil && g.Turn != nil {
				r.TurnOwner = g.Turn.PlayerID
				r.TurnID = g.Turn.ID
				r.Budget = g.Turn.Budget
				r.BattleID = g.Turn.BattleID
			}
			return r, true
		}
	}
	return nil, false
}
