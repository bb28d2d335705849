// Package field models the expanding grid of placed tiles, the players
// standing on it, and the door-continuity rules that govern placement and
// movement.
package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Placement and movement errors.
var (
	ErrOccupied           = errors.New("position already has a tile")
	ErrNotAdjacent        = errors.New("position is not adjacent to a placed tile")
	ErrDoorMismatch       = errors.New("tile doors do not match neighbor")
	ErrInvalidOrientation = errors.New("orientation uses unknown side bits")
	ErrSeamClosed         = errors.New("no door between entry tile and new tile")
	ErrNoTile             = errors.New("no tile at position")
	ErrBlocked            = errors.New("no open door between positions")
	ErrUnknownPlayer      = errors.New("player not on field")
)

// Bounds is the smallest rectangle enclosing every placed tile.
type Bounds struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

func (b Bounds) extend(p Position) Bounds {
	b.MinX = min(b.MinX, p.X)
	b.MinY = min(b.MinY, p.Y)
	b.MaxX = max(b.MaxX, p.X)
	b.MaxY = max(b.MaxY, p.Y)
	return b
}

// Field holds placed tiles and player positions.
//
// The adjacency index maps every position that touches a placed tile (placed
// or not) to its placed neighbors, so legality checks and frontier queries never
// scan the whole field. Field is not safe for concurrent use; callers hold the
// game lock.
type Field struct {
	tiles     map[Position]*Tile
	order     []Position
	adjacency map[Position]*[4]*Tile
	bounds    Bounds
	players   map[string]Position
}

// New returns a field holding only the fully open origin room.
//
// Postcondition: Len() == 1 and the origin tile has AllOpen.
func New() *Field {
	f := &Field{
		tiles:     make(map[Position]*Tile),
		adjacency: make(map[Position]*[4]*Tile),
		players:   make(map[string]Position),
	}
	f.insert(&Tile{Pos: Origin, Name: "entrance", Openings: AllOpen, Room: true})
	return f
}

func (f *Field) insert(t *Tile) {
	if len(f.order) == 0 {
		f.bounds = Bounds{MinX: t.Pos.X, MinY: t.Pos.Y, MaxX: t.Pos.X, MaxY: t.Pos.Y}
	} else {
		f.bounds = f.bounds.extend(t.Pos)
	}
	f.tiles[t.Pos] = t
	f.order = append(f.order, t.Pos)
	for _, d := range Directions {
		q := t.Pos.Step(d)
		adj, ok := f.adjacency[q]
		if !ok {
			adj = &[4]*Tile{}
			f.adjacency[q] = adj
		}
		adj[d.Opposite()] = t
	}
}

// Len returns the number of placed tiles.
func (f *Field) Len() int {
	return len(f.order)
}

// Bounds returns the bounding rectangle of placed tiles.
func (f *Field) Bounds() Bounds {
	return f.bounds
}

// Tile returns the tile at p.
func (f *Field) Tile(p Position) (*Tile, bool) {
	t, ok := f.tiles[p]
	return t, ok
}

// Tiles returns every tile in placement order.
func (f *Field) Tiles() []*Tile {
	out := make([]*Tile, 0, len(f.order))
	for _, p := range f.order {
		out = append(out, f.tiles[p])
	}
	return out
}

// Neighbors returns the placed tiles around p indexed by Direction; nil where empty.
func (f *Field) Neighbors(p Position) [4]*Tile {
	if adj, ok := f.adjacency[p]; ok {
		return *adj
	}
	return [4]*Tile{}
}

// Frontier returns the empty positions adjacent to at least one placed tile, sorted by (Y, X).
func (f *Field) Frontier() []Position {
	var out []Position
	for p := range f.adjacency {
		if _, placed := f.tiles[p]; !placed {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// CheckPlacement validates putting t on the field. entry, when non-nil, is the
// placed tile the player enters from; the seam with it must be an open door on
// both sides.
//
// Every tile, room or corridor, must match each placed neighbor: a side is open
// iff the neighbor's facing side is open. Sides facing empty cells are
// unconstrained; that is all the room flag relaxes, since a room's doors need
// not lead anywhere yet.
//
// Postcondition: returns nil iff Place(t, entry) would succeed. The field is not modified.
func (f *Field) CheckPlacement(t *Tile, entry *Position) error {
	if !t.Openings.Valid() {
		return fmt.Errorf("placing at %s: %w", t.Pos, ErrInvalidOrientation)
	}
	if _, ok := f.tiles[t.Pos]; ok {
		return fmt.Errorf("placing at %s: %w", t.Pos, ErrOccupied)
	}
	adj, ok := f.adjacency[t.Pos]
	if !ok {
		return fmt.Errorf("placing at %s: %w", t.Pos, ErrNotAdjacent)
	}

	if entry != nil {
		d, ok := DirectionBetween(t.Pos, *entry)
		if !ok || adj[d] == nil {
			return fmt.Errorf("placing at %s from %s: %w", t.Pos, *entry, ErrNotAdjacent)
		}
		if !t.Openings.Open(d) || !adj[d].Openings.Open(d.Opposite()) {
			return fmt.Errorf("placing at %s from %s: %w", t.Pos, *entry, ErrSeamClosed)
		}
	}

	for _, d := range Directions {
		n := adj[d]
		if n == nil {
			continue
		}
		if t.Openings.Open(d) != n.Openings.Open(d.Opposite()) {
			return fmt.Errorf("placing %s at %s against %s side %s: %w",
				t.Openings, t.Pos, n.Pos, d.Opposite(), ErrDoorMismatch)
		}
	}
	return nil
}

// IsLegalOrientation reports whether a tile with the given openings could be
// placed at p under strict door matching with every neighbor.
func (f *Field) IsLegalOrientation(p Position, openings Sides) bool {
	return f.CheckPlacement(&Tile{Pos: p, Openings: openings}, nil) == nil
}

// LegalOrientations returns the rotations of t's openings that CheckPlacement accepts at t.Pos.
func (f *Field) LegalOrientations(t Tile, entry *Position) []Sides {
	var out []Sides
	for _, r := range t.Openings.Rotations() {
		cand := t
		cand.Openings = r
		if f.CheckPlacement(&cand, entry) == nil {
			out = append(out, r)
		}
	}
	return out
}

// Place validates and appends t. Tiles are never moved or removed once placed.
//
// Postcondition: on success Tile(t.Pos) returns t and Bounds() includes t.Pos.
func (f *Field) Place(t *Tile, entry *Position) error {
	if err := f.CheckPlacement(t, entry); err != nil {
		return err
	}
	f.insert(t)
	return nil
}

// CanStep reports whether a player can walk from a to the orthogonally adjacent b.
func (f *Field) CanStep(a, b Position) error {
	d, ok := DirectionBetween(a, b)
	if !ok {
		return fmt.Errorf("stepping %s to %s: %w", a, b, ErrNotAdjacent)
	}
	from, ok := f.tiles[a]
	if !ok {
		return fmt.Errorf("stepping from %s: %w", a, ErrNoTile)
	}
	to, ok := f.tiles[b]
	if !ok {
		return fmt.Errorf("stepping to %s: %w", b, ErrNoTile)
	}
	if !from.Openings.Open(d) || !to.Openings.Open(d.Opposite()) {
		return fmt.Errorf("stepping %s to %s: %w", a, b, ErrBlocked)
	}
	return nil
}

// Fountains returns the positions of every placed fountain in placement order.
func (f *Field) Fountains() []Position {
	var out []Position
	for _, p := range f.order {
		if f.tiles[p].IsFountain() {
			out = append(out, p)
		}
	}
	return out
}

// PutPlayer sets the position of a player. Several players may share a position.
//
// Precondition: p must hold a tile.
func (f *Field) PutPlayer(playerID string, p Position) error {
	if _, ok := f.tiles[p]; !ok {
		return fmt.Errorf("putting %s at %s: %w", playerID, p, ErrNoTile)
	}
	f.players[playerID] = p
	return nil
}

// PlayerPosition returns where a player stands.
func (f *Field) PlayerPosition(playerID string) (Position, error) {
	p, ok := f.players[playerID]
	if !ok {
		return Position{}, fmt.Errorf("locating %s: %w", playerID, ErrUnknownPlayer)
	}
	return p, nil
}

// RemovePlayer takes a player off the board.
func (f *Field) RemovePlayer(playerID string) {
	delete(f.players, playerID)
}

// PlayersAt returns the ids of players standing on p, sorted.
func (f *Field) PlayersAt(p Position) []string {
	var out []string
	for id, at := range f.players {
		if at == p {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Players returns a copy of the player → position map.
func (f *Field) Players() map[string]Position {
	out := make(map[string]Position, len(f.players))
	for id, p := range f.players {
		out[id] = p
	}
	return out
}

type fieldJSON struct {
	Tiles   []*Tile             `json:"tiles"`
	Bounds  Bounds              `json:"bounds"`
	Players map[string]Position `json:"players"`
}

// MarshalJSON encodes the tiles in placement order with player positions.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{Tiles: f.Tiles(), Bounds: f.bounds, Players: f.players})
}

// UnmarshalJSON replays the stored placement order, rebuilding the indexes.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw fieldJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fresh := &Field{
		tiles:     make(map[Position]*Tile, len(raw.Tiles)),
		adjacency: make(map[Position]*[4]*Tile),
		players:   make(map[string]Position, len(raw.Players)),
	}
	for _, t := range raw.Tiles {
		if _, dup := fresh.tiles[t.Pos]; dup {
			return fmt.Errorf("field: duplicate tile at %s", t.Pos)
		}
		fresh.insert(t)
	}
	for id, p := range raw.Players {
		if err := fresh.PutPlayer(id, p); err != nil {
			return fmt.Errorf("field: %w", err)
		}
	}
	*f = *fresh
	return nil
}
