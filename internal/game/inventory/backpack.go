package inventory

import (
	"fmt"

	"github.com/cory-johannsen/tiledungeon/internal/game/item"
)

// Unbounded marks a Backpack without a slot limit.
const Unbounded = -1

// Backpack is the container for one item category with a slot limit.
type Backpack struct {
	Category item.Category
	MaxSlots int
	items    []item.Item
}

// NewBackpack creates an empty Backpack for category with maxSlots capacity.
//
// Precondition: maxSlots >= 0 or maxSlots == Unbounded.
func NewBackpack(category item.Category, maxSlots int) *Backpack {
	return &Backpack{Category: category, MaxSlots: maxSlots}
}

// Full reports whether another item would exceed the slot limit.
func (b *Backpack) Full() bool {
	return b.MaxSlots != Unbounded && len(b.items) >= b.MaxSlots
}

// Add places it into the backpack. It is atomic: if the limit would be
// exceeded, no state is modified.
//
// Precondition: it.Category == b.Category.
// Postcondition: on success len(Items()) increases by one and never exceeds MaxSlots.
func (b *Backpack) Add(it item.Item) error {
	if it.Category != b.Category {
		return fmt.Errorf("backpack: %s item %q does not belong in %s backpack", it.Category, it.ID, b.Category)
	}
	if b.Full() {
		return fmt.Errorf("backpack: %s backpack full (%d slots)", b.Category, b.MaxSlots)
	}
	b.items = append(b.items, it)
	return nil
}

// Remove removes the item with the given id.
//
// Postcondition: Returns the removed item, or false when id is not present.
func (b *Backpack) Remove(id string) (item.Item, bool) {
	for i := range b.items {
		if b.items[i].ID == id {
			out := b.items[i]
			b.items = append(b.items[:i], b.items[i+1:]...)
			return out, true
		}
	}
	return item.Item{}, false
}

// Find returns the item with the given id.
func (b *Backpack) Find(id string) (item.Item, bool) {
	for _, it := range b.items {
		if it.ID == id {
			return it, true
		}
	}
	return item.Item{}, false
}

// Items returns a snapshot copy of all items in the backpack.
//
// Postcondition: returned slice is a copy; mutations do not affect the backpack.
func (b *Backpack) Items() []item.Item {
	out := make([]item.Item, len(b.items))
	copy(out, b.items)
	return out
}

// UsedSlots returns the number of occupied slots.
func (b *Backpack) UsedSlots() int {
	return len(b.items)
}
