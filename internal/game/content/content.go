// Package content loads the tile deck and monster catalog from YAML and
// instantiates a shuffled deck for a new game.
package content

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/game/item"
)

// Monster is a guard archetype.
type Monster struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	HP   int    `yaml:"hp"`
	// Final marks the boss whose defeat ends the game.
	Final bool `yaml:"final"`
}

// Validate checks a monster definition.
func (m *Monster) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("monster: id must not be empty")
	}
	if m.Name == "" {
		return fmt.Errorf("monster %q: name must not be empty", m.ID)
	}
	if m.HP < 1 {
		return fmt.Errorf("monster %q: hp must be >= 1", m.ID)
	}
	return nil
}

// ItemSpec names an item kind and, for treasure, its value.
type ItemSpec struct {
	Kind  string `yaml:"kind"`
	Value int    `yaml:"value"`
}

func (s ItemSpec) validate() error {
	k, err := item.ParseKind(s.Kind)
	if err != nil {
		return err
	}
	if k == item.KindTreasure && s.Value < 1 {
		return fmt.Errorf("treasure value must be >= 1")
	}
	return nil
}

func (s ItemSpec) build() item.Item {
	return item.New(item.Kind(s.Kind), s.Value)
}

// RewardSpec is what a tile's guard protects.
type RewardSpec struct {
	Kind field.RewardKind `yaml:"kind"`
	Item ItemSpec         `yaml:"item"`
}

// TileSpec is one deck entry. Count copies are shuffled into every new deck.
type TileSpec struct {
	Name       string        `yaml:"name"`
	Openings   string        `yaml:"openings"`
	Room       bool          `yaml:"room"`
	Count      int           `yaml:"count"`
	Feature    field.Feature `yaml:"feature"`
	ChestValue int           `yaml:"chest_value"`
	Monster    string        `yaml:"monster"`
	Reward     *RewardSpec   `yaml:"reward"`
	Loot       *ItemSpec     `yaml:"loot"`
}

// Validate checks a tile entry against the monster catalog.
//
// Postcondition: returns nil iff the entry can be instantiated by Catalog.NewDeck.
func (t *TileSpec) Validate(monsters map[string]*Monster) error {
	if t.Name == "" {
		return fmt.Errorf("tile: name must not be empty")
	}
	sides, err := field.ParseSides(t.Openings)
	if err != nil {
		return fmt.Errorf("tile %q: %w", t.Name, err)
	}
	if sides == 0 {
		return fmt.Errorf("tile %q: at least one side must be open", t.Name)
	}
	if t.Count < 1 {
		return fmt.Errorf("tile %q: count must be >= 1", t.Name)
	}
	switch t.Feature {
	case field.FeatureNone, field.FeatureFountain:
	case field.FeatureChest:
		if t.ChestValue < 1 {
			return fmt.Errorf("tile %q: chest_value must be >= 1", t.Name)
		}
	default:
		return fmt.Errorf("tile %q: unknown feature %q", t.Name, t.Feature)
	}
	if t.Loot != nil {
		if err := t.Loot.validate(); err != nil {
			return fmt.Errorf("tile %q loot: %w", t.Name, err)
		}
	}
	if t.Monster == "" {
		if t.Reward != nil {
			return fmt.Errorf("tile %q: reward requires a monster", t.Name)
		}
		return nil
	}
	m, ok := monsters[t.Monster]
	if !ok {
		return fmt.Errorf("tile %q: unknown monster %q", t.Name, t.Monster)
	}
	if t.Reward == nil {
		return fmt.Errorf("tile %q: guarded tile needs a reward", t.Name)
	}
	if t.Loot != nil || t.Feature != field.FeatureNone {
		return fmt.Errorf("tile %q: guarded tile cannot also hold loot or a feature", t.Name)
	}
	if err := t.Reward.Item.validate(); err != nil {
		return fmt.Errorf("tile %q reward: %w", t.Name, err)
	}
	switch t.Reward.Kind {
	case field.RewardItem:
	case field.RewardChest, field.RewardFinal:
		if item.Kind(t.Reward.Item.Kind) != item.KindTreasure {
			return fmt.Errorf("tile %q: %s reward must be treasure", t.Name, t.Reward.Kind)
		}
	default:
		return fmt.Errorf("tile %q: unknown reward kind %q", t.Name, t.Reward.Kind)
	}
	if (t.Reward.Kind == field.RewardFinal) != m.Final {
		return fmt.Errorf("tile %q: final reward and final monster must go together", t.Name)
	}
	return nil
}

// Catalog is the loaded, validated content.
type Catalog struct {
	Tiles    []*TileSpec
	Monsters map[string]*Monster
}

type tilesFile struct {
	Tiles []*TileSpec `yaml:"tiles"`
}

type monstersFile struct {
	Monsters []*Monster `yaml:"monsters"`
}

// LoadFromBytes parses and validates tile and monster YAML documents.
//
// Postcondition: Returns a validated *Catalog, or an error on the first violation.
func LoadFromBytes(tilesYAML, monstersYAML []byte) (*Catalog, error) {
	var mf monstersFile
	if err := yaml.Unmarshal(monstersYAML, &mf); err != nil {
		return nil, fmt.Errorf("parsing monsters YAML: %w", err)
	}
	var tf tilesFile
	if err := yaml.Unmarshal(tilesYAML, &tf); err != nil {
		return nil, fmt.Errorf("parsing tiles YAML: %w", err)
	}

	cat := &Catalog{Tiles: tf.Tiles, Monsters: make(map[string]*Monster, len(mf.Monsters))}
	for _, m := range mf.Monsters {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := cat.Monsters[m.ID]; dup {
			return nil, fmt.Errorf("monster %q defined twice", m.ID)
		}
		cat.Monsters[m.ID] = m
	}
	if len(cat.Tiles) == 0 {
		return nil, fmt.Errorf("content: deck has no tiles")
	}
	for _, t := range cat.Tiles {
		if err := t.Validate(cat.Monsters); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// LoadDir reads tiles.yaml and monsters.yaml from dir.
//
// Precondition: dir must be a readable directory.
func LoadDir(dir string) (*Catalog, error) {
	tiles, err := os.ReadFile(filepath.Join(dir, "tiles.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading tiles: %w", err)
	}
	monsters, err := os.ReadFile(filepath.Join(dir, "monsters.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading monsters: %w", err)
	}
	cat, err := LoadFromBytes(tiles, monsters)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", dir, err)
	}
	return cat, nil
}

// DeckSize returns the number of tiles in a fresh deck.
func (c *Catalog) DeckSize() int {
	n := 0
	for _, t := range c.Tiles {
		n += t.Count
	}
	return n
}

// NewDeck instantiates every tile entry Count times with fresh item ids and
// shuffles the result with src. Deck tiles carry no position yet.
//
// Postcondition: len(result) == DeckSize().
func (c *Catalog) NewDeck(src dice.Source) []field.Tile {
	deck := make([]field.Tile, 0, c.DeckSize())
	for _, spec := range c.Tiles {
		for i := 0; i < spec.Count; i++ {
			deck = append(deck, c.instantiate(spec))
		}
	}
	dice.Shuffle(src, len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

func (c *Catalog) instantiate(spec *TileSpec) field.Tile {
	// validated by LoadFromBytes
	sides, _ := field.ParseSides(spec.Openings)
	t := field.Tile{
		Name:       spec.Name,
		Openings:   sides,
		Room:       spec.Room,
		Feature:    spec.Feature,
		ChestValue: spec.ChestValue,
	}
	if spec.Loot != nil {
		loot := spec.Loot.build()
		t.Loot = &loot
	}
	if spec.Monster != "" {
		m := c.Monsters[spec.Monster]
		t.Guard = &field.Guard{
			Monster: m.ID,
			Name:    m.Name,
			HP:      m.HP,
			Reward:  field.Reward{Kind: spec.Reward.Kind, Item: spec.Reward.Item.build()},
		}
	}
	return t
}
