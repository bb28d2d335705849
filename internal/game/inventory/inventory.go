// Package inventory enforces per-category carrying limits and implements the
// replace-or-leave protocol used when a found item does not fit.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/tiledungeon/internal/game/item"
)

// ErrItemNotFound is returned when an item id is not in the inventory.
var ErrItemNotFound = errors.New("item not in inventory")

// ErrCategoryNotFull is returned by Replace when the item would fit without eviction.
var ErrCategoryNotFull = errors.New("category has free capacity")

// ErrCategoryMismatch is returned when the evicted item belongs to another category.
var ErrCategoryMismatch = errors.New("evicted item is from a different category")

// Caps holds the slot limit per category.
var Caps = map[item.Category]int{
	item.CategoryKey:      1,
	item.CategoryWeapon:   2,
	item.CategorySpell:    3,
	item.CategoryTreasure: Unbounded,
}

var categoryOrder = []item.Category{
	item.CategoryKey,
	item.CategoryWeapon,
	item.CategorySpell,
	item.CategoryTreasure,
}

// CapacityExceeded is the first-class signal returned when an item does not
// fit. The caller resolves it with Replace or by leaving the item where it lies.
type CapacityExceeded struct {
	Category item.Category `json:"category"`
	Cap      int           `json:"cap"`
	Contents []item.Item   `json:"contents"`
	Offered  item.Item     `json:"offered"`
}

// Inventory is a player's carried items, one Backpack per category.
type Inventory struct {
	bags map[item.Category]*Backpack
}

// New returns an empty Inventory with the standard category caps.
func New() *Inventory {
	inv := &Inventory{bags: make(map[item.Category]*Backpack, len(Caps))}
	for _, c := range categoryOrder {
		inv.bags[c] = NewBackpack(c, Caps[c])
	}
	return inv
}

func (inv *Inventory) bag(c item.Category) *Backpack {
	b, ok := inv.bags[c]
	if !ok {
		panic(fmt.Sprintf("inventory: unknown category %q", c))
	}
	return b
}

// Add attempts to store it.
//
// A key always fits: an already-held key is swapped out and returned as
// replaced. When any other category is full, Add leaves the inventory
// unchanged and returns a CapacityExceeded describing the category.
//
// Postcondition: exactly one of (stored, full != nil) holds.
func (inv *Inventory) Add(it item.Item) (replaced *item.Item, full *CapacityExceeded) {
	b := inv.bag(it.Category)
	if b.Full() && it.Category == item.CategoryKey {
		old := b.items[0]
		b.items[0] = it
		return &old, nil
	}
	if b.Full() {
		return nil, &CapacityExceeded{
			Category: it.Category,
			Cap:      b.MaxSlots,
			Contents: b.Items(),
			Offered:  it,
		}
	}
	// cannot fail: category matches and the bag has room
	_ = b.Add(it)
	return nil, nil
}

// Replace atomically evicts evictedID and inserts it in its place.
//
// Precondition: it's category is full and evictedID is held in that category.
// Postcondition: on success the category count is unchanged; on error nothing changes.
func (inv *Inventory) Replace(it item.Item, evictedID string) (item.Item, error) {
	b := inv.bag(it.Category)
	if !b.Full() {
		return item.Item{}, fmt.Errorf("replacing %s: %w", it.Category, ErrCategoryNotFull)
	}
	for i := range b.items {
		if b.items[i].ID == evictedID {
			old := b.items[i]
			b.items[i] = it
			return old, nil
		}
	}
	if _, found := inv.Find(evictedID); found {
		return item.Item{}, fmt.Errorf("replacing %q with %s: %w", evictedID, it.Category, ErrCategoryMismatch)
	}
	return item.Item{}, fmt.Errorf("replacing %q: %w", evictedID, ErrItemNotFound)
}

// Remove deletes the item with id from whichever category holds it.
func (inv *Inventory) Remove(id string) (item.Item, error) {
	for _, c := range categoryOrder {
		if it, ok := inv.bags[c].Remove(id); ok {
			return it, nil
		}
	}
	return item.Item{}, fmt.Errorf("removing %q: %w", id, ErrItemNotFound)
}

// Find looks up an item by id in every category.
func (inv *Inventory) Find(id string) (item.Item, bool) {
	for _, c := range categoryOrder {
		if it, ok := inv.bags[c].Find(id); ok {
			return it, true
		}
	}
	return item.Item{}, false
}

// Items returns a copy of the items in category c.
func (inv *Inventory) Items(c item.Category) []item.Item {
	return inv.bag(c).Items()
}

// Count returns the number of items held in category c.
func (inv *Inventory) Count(c item.Category) int {
	return inv.bag(c).UsedSlots()
}

// HasKey reports whether a key is held.
func (inv *Inventory) HasKey() bool {
	return inv.bag(item.CategoryKey).UsedSlots() > 0
}

// WeaponDamage is the passive battle bonus of every carried weapon.
func (inv *Inventory) WeaponDamage() int {
	total := 0
	for _, it := range inv.bag(item.CategoryWeapon).items {
		total += it.Damage
	}
	return total
}

// BattleConsumables returns the spells that add damage in a battle.
func (inv *Inventory) BattleConsumables() []item.Item {
	var out []item.Item
	for _, it := range inv.bag(item.CategorySpell).items {
		if it.IsBattleConsumable() {
			out = append(out, it)
		}
	}
	return out
}

// TreasureTotal sums the value of all treasures.
func (inv *Inventory) TreasureTotal() int {
	total := 0
	for _, it := range inv.bag(item.CategoryTreasure).items {
		total += it.Value
	}
	return total
}

// MarshalJSON encodes the inventory as category → items.
func (inv *Inventory) MarshalJSON() ([]byte, error) {
	out := make(map[item.Category][]item.Item, len(inv.bags))
	for c, b := range inv.bags {
		out[c] = b.Items()
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the inventory, rejecting data that violates a cap.
func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var raw map[item.Category][]item.Item
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fresh := New()
	for c, items := range raw {
		b, ok := fresh.bags[c]
		if !ok {
			return fmt.Errorf("inventory: unknown category %q", c)
		}
		for _, it := range items {
			if err := b.Add(it); err != nil {
				return fmt.Errorf("inventory: %w", err)
			}
		}
	}
	*inv = *fresh
	return nil
}
