// Package item defines the closed set of item variants a player can carry.
// Damage and point values travel with the item as data.
package item

import (
	"fmt"

	"github.com/google/uuid"
)

// Category groups kinds that share an inventory capacity.
type Category string

// Inventory categories.
const (
	CategoryKey      Category = "key"
	CategoryWeapon   Category = "weapon"
	CategorySpell    Category = "spell"
	CategoryTreasure Category = "treasure"
)

// Kind is the concrete item variant.
type Kind string

// Item kinds.
const (
	KindKey       Kind = "key"
	KindDagger    Kind = "dagger"
	KindSword     Kind = "sword"
	KindAxe       Kind = "axe"
	KindFireball  Kind = "fireball"
	KindLightning Kind = "lightning"
	KindTeleport  Kind = "teleport"
	KindTreasure  Kind = "treasure"
)

type kindDef struct {
	category Category
	damage   int
}

var kinds = map[Kind]kindDef{
	KindKey:       {category: CategoryKey},
	KindDagger:    {category: CategoryWeapon, damage: 1},
	KindSword:     {category: CategoryWeapon, damage: 2},
	KindAxe:       {category: CategoryWeapon, damage: 3},
	KindFireball:  {category: CategorySpell, damage: 2},
	KindLightning: {category: CategorySpell, damage: 1},
	KindTeleport:  {category: CategorySpell},
	KindTreasure:  {category: CategoryTreasure},
}

// Item is a single carried or lootable object.
type Item struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Category Category `json:"category"`
	// Damage is the battle bonus for weapons and damage spells.
	Damage int `json:"damage,omitempty"`
	// Value is the point value of a treasure.
	Value int `json:"value,omitempty"`
}

// ParseKind validates s as an item kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("unknown item kind %q", s)
	}
	return k, nil
}

// New creates an item of kind k with a fresh id. value is only meaningful for treasure.
//
// Precondition: k must be a known kind.
// Postcondition: Category and Damage are filled from the kind table.
func New(k Kind, value int) Item {
	def, ok := kinds[k]
	if !ok {
		panic(fmt.Sprintf("item: unknown kind %q", k))
	}
	it := Item{
		ID:       uuid.NewString(),
		Kind:     k,
		Category: def.category,
		Damage:   def.damage,
	}
	if def.category == CategoryTreasure {
		it.Value = value
	}
	return it
}

// IsBattleConsumable reports whether the item can be spent to add damage in a battle.
func (i Item) IsBattleConsumable() bool {
	return i.Category == CategorySpell && i.Damage > 0
}

// IsWeapon reports whether the item adds passive battle damage.
func (i Item) IsWeapon() bool {
	return i.Category == CategoryWeapon
}
