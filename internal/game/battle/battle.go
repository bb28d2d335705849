// Package battle resolves a player's encounter with a guard: dice plus passive
// weapon damage, the optional consumable choice, and exactly-once finalization.
//
// The package is pure; applying HP loss, rewards and inventory changes is the
// caller's job once Finalize succeeds.
package battle

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
)

// ErrAlreadyFinalized is returned when a finalized battle is finalized again.
var ErrAlreadyFinalized = errors.New("battle already finalized")

// ErrUnknownConsumable is returned when a selection names an item that was not offered.
var ErrUnknownConsumable = errors.New("consumable not available in this battle")

// ErrNoChoiceOffered is returned when consumables are selected for a battle that never prompted.
var ErrNoChoiceOffered = errors.New("battle does not accept consumables")

// State is the battle's position in its lifecycle.
type State string

// Battle states.
const (
	AwaitingResolution       State = "awaiting_resolution"
	AwaitingConsumableChoice State = "awaiting_consumable_choice"
	Finalized                State = "finalized"
)

// Outcome is the three-way result of comparing damage to monster HP.
type Outcome string

// Outcomes.
const (
	Win  Outcome = "win"
	Draw Outcome = "draw"
	Lose Outcome = "lose"
)

// Classify compares damage against hp.
//
// Postcondition: Win iff damage > hp, Draw iff damage == hp, Lose otherwise.
func Classify(damage, hp int) Outcome {
	switch {
	case damage > hp:
		return Win
	case damage == hp:
		return Draw
	default:
		return Lose
	}
}

// Battle is the record of one encounter.
type Battle struct {
	ID       string         `json:"id"`
	PlayerID string         `json:"player_id"`
	TurnID   int64          `json:"turn_id"`
	Pos      field.Position `json:"pos"`
	// From is where the player retreats to after a draw or a loss.
	From field.Position `json:"from"`

	Monster     string `json:"monster"`
	MonsterName string `json:"monster_name"`
	MonsterHP   int    `json:"monster_hp"`

	Roll         dice.RollResult `json:"roll"`
	DiceDamage   int             `json:"dice_damage"`
	WeaponDamage int             `json:"weapon_damage"`
	BaseDamage   int             `json:"base_damage"`
	Provisional  Outcome         `json:"provisional"`

	// Available lists the consumables that could be spent; empty unless a choice was offered.
	Available []item.Item `json:"available,omitempty"`
	Selected  []item.Item `json:"selected,omitempty"`

	ConsumableDamage int          `json:"consumable_damage"`
	FinalDamage      int          `json:"final_damage"`
	Outcome          Outcome      `json:"outcome,omitempty"`
	State            State        `json:"state"`
	Reward           field.Reward `json:"reward"`
}

// Encounter is everything Start needs to open a battle.
type Encounter struct {
	ID           string
	PlayerID     string
	TurnID       int64
	Pos          field.Position
	From         field.Position
	Guard        field.Guard
	Roll         dice.RollResult
	WeaponDamage int
	Consumables  []item.Item
}

// Start computes the provisional result of an encounter.
//
// When the provisional result is not a win and spending every consumable would
// classify differently, the battle waits in AwaitingConsumableChoice.
// Otherwise it is AwaitingResolution and the caller finalizes it at once with
// no selection.
//
// Postcondition: BaseDamage == DiceDamage + WeaponDamage.
func Start(e Encounter) *Battle {
	b := &Battle{
		ID:           e.ID,
		PlayerID:     e.PlayerID,
		TurnID:       e.TurnID,
		Pos:          e.Pos,
		From:         e.From,
		Monster:      e.Guard.Monster,
		MonsterName:  e.Guard.Name,
		MonsterHP:    e.Guard.HP,
		Roll:         e.Roll,
		DiceDamage:   e.Roll.Total(),
		WeaponDamage: e.WeaponDamage,
		Reward:       e.Guard.Reward,
		State:        AwaitingResolution,
	}
	b.BaseDamage = b.DiceDamage + b.WeaponDamage
	b.Provisional = Classify(b.BaseDamage, b.MonsterHP)
	b.FinalDamage = b.BaseDamage

	if b.Provisional == Win {
		return b
	}
	maxExtra := 0
	for _, c := range e.Consumables {
		maxExtra += c.Damage
	}
	if Classify(b.BaseDamage+maxExtra, b.MonsterHP) != b.Provisional {
		b.Available = append([]item.Item(nil), e.Consumables...)
		b.State = AwaitingConsumableChoice
	}
	return b
}

// NeedsChoice reports whether the player must pick consumables before finalization.
func (b *Battle) NeedsChoice() bool {
	return b.State == AwaitingConsumableChoice
}

// Finalize commits the outcome using the selected consumable ids.
//
// Precondition: selected ids must be distinct members of Available; selected
// must be empty unless the battle awaits a consumable choice.
// Postcondition: on success State == Finalized and Outcome ==
// Classify(BaseDamage + sum(selected damage), MonsterHP). A finalized battle is
// never changed again; a second call returns ErrAlreadyFinalized.
func (b *Battle) Finalize(selected []string) error {
	if b.State == Finalized {
		return fmt.Errorf("battle %s: %w", b.ID, ErrAlreadyFinalized)
	}
	if len(selected) > 0 && b.State != AwaitingConsumableChoice {
		return fmt.Errorf("battle %s: %w", b.ID, ErrNoChoiceOffered)
	}

	chosen := make([]item.Item, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	extra := 0
	for _, id := range selected {
		if seen[id] {
			return fmt.Errorf("battle %s: consumable %q selected twice: %w", b.ID, id, ErrUnknownConsumable)
		}
		seen[id] = true
		it, ok := b.available(id)
		if !ok {
			return fmt.Errorf("battle %s: consumable %q: %w", b.ID, id, ErrUnknownConsumable)
		}
		chosen = append(chosen, it)
		extra += it.Damage
	}

	b.Selected = chosen
	b.ConsumableDamage = extra
	b.FinalDamage = b.BaseDamage + extra
	b.Outcome = Classify(b.FinalDamage, b.MonsterHP)
	b.State = Finalized
	return nil
}

func (b *Battle) available(id string) (item.Item, bool) {
	for _, it := range b.Available {
		if it.ID == id {
			return it, true
		}
	}
	return item.Item{}, false
}
