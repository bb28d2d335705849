package field

import "github.com/cory-johannsen/tiledungeon/internal/game/item"

// Feature is a fixed property of a tile.
type Feature string

// Tile features.
const (
	FeatureNone     Feature = ""
	FeatureFountain Feature = "fountain"
	FeatureChest    Feature = "chest"
)

// RewardKind controls how a defeated guard's reward is delivered.
type RewardKind string

// Reward kinds.
const (
	// RewardItem drops the item on the tile for pickup.
	RewardItem RewardKind = "item"
	// RewardChest is collected automatically on victory.
	RewardChest RewardKind = "chest"
	// RewardFinal is collected automatically and ends the game.
	RewardFinal RewardKind = "final"
)

// Reward is what a guard protects.
type Reward struct {
	Kind RewardKind `json:"kind"`
	Item item.Item  `json:"item"`
}

// Guard is a monster occupying a tile.
type Guard struct {
	Monster  string `json:"monster"`
	Name     string `json:"name"`
	HP       int    `json:"hp"`
	Reward   Reward `json:"reward"`
	Defeated bool   `json:"defeated"`
}

// Tile is one placed cell.
type Tile struct {
	Pos      Position `json:"pos"`
	Name     string   `json:"name,omitempty"`
	Openings Sides    `json:"openings"`
	Room     bool     `json:"room,omitempty"`
	Feature  Feature  `json:"feature,omitempty"`
	// ChestValue is the treasure inside a chest feature.
	ChestValue  int        `json:"chest_value,omitempty"`
	ChestOpened bool       `json:"chest_opened,omitempty"`
	Guard       *Guard     `json:"guard,omitempty"`
	Loot        *item.Item `json:"loot,omitempty"`
}

// OpenSides returns the directions in which the tile has a door.
func (t *Tile) OpenSides() []Direction {
	return t.Openings.OpenSides()
}

// HasLiveGuard reports whether an undefeated monster occupies the tile.
func (t *Tile) HasLiveGuard() bool {
	return t.Guard != nil && !t.Guard.Defeated
}

// HasLockedChest reports whether the tile holds an unopened chest.
func (t *Tile) HasLockedChest() bool {
	return t.Feature == FeatureChest && !t.ChestOpened
}

// IsFountain reports whether entering the tile heals.
func (t *Tile) IsFountain() bool {
	return t.Feature == FeatureFountain
}
