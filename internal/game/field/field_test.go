package field_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tiledungeon/internal/game/field"
)

func mustSides(t *testing.T, s string) field.Sides {
	t.Helper()
	sides, err := field.ParseSides(s)
	require.NoError(t, err)
	return sides
}

func TestNew_OriginFullyOpen(t *testing.T) {
	f := field.New()
	origin, ok := f.Tile(field.Origin)
	require.True(t, ok)
	assert.Equal(t, field.AllOpen, origin.Openings)
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, field.Bounds{}, f.Bounds())
	assert.Len(t, f.Frontier(), 4)
}

func TestSides_RotateAndParse(t *testing.T) {
	ns := mustSides(t, "NS")
	assert.Equal(t, mustSides(t, "EW"), ns.Rotate())
	assert.Equal(t, ns, ns.Rotate().Rotate())
	assert.Len(t, ns.Rotations(), 2)
	assert.Len(t, field.AllOpen.Rotations(), 1)
	assert.Len(t, mustSides(t, "N").Rotations(), 4)
	assert.True(t, mustSides(t, "ES").IsRotationOf(mustSides(t, "NE")))
	assert.False(t, mustSides(t, "NS").IsRotationOf(mustSides(t, "NE")))
	assert.Equal(t, "NESW", field.AllOpen.String())
	assert.Equal(t, "-", field.Sides(0).String())

	_, err := field.ParseSides("NX")
	assert.Error(t, err)
}

func TestAdjacentPositions(t *testing.T) {
	adj := field.AdjacentPositions(field.Position{X: 2, Y: 3})
	assert.Equal(t, field.Position{X: 2, Y: 2}, adj[field.North])
	assert.Equal(t, field.Position{X: 3, Y: 3}, adj[field.East])
	assert.Equal(t, field.Position{X: 2, Y: 4}, adj[field.South])
	assert.Equal(t, field.Position{X: 1, Y: 3}, adj[field.West])
}

func TestPlace_RejectsOccupied(t *testing.T) {
	f := field.New()
	err := f.Place(&field.Tile{Pos: field.Origin, Openings: field.AllOpen}, nil)
	assert.ErrorIs(t, err, field.ErrOccupied)
}

func TestPlace_RejectsDetached(t *testing.T) {
	f := field.New()
	err := f.Place(&field.Tile{Pos: field.Position{X: 5, Y: 5}, Openings: field.AllOpen}, nil)
	assert.ErrorIs(t, err, field.ErrNotAdjacent)
}

func TestPlace_StrictDoorMatching(t *testing.T) {
	f := field.New()
	east := field.Position{X: 1}

	// origin's east side is open, so the new tile's west side must be open
	err := f.Place(&field.Tile{Pos: east, Openings: mustSides(t, "NS")}, nil)
	assert.ErrorIs(t, err, field.ErrDoorMismatch)
	assert.Equal(t, 1, f.Len(), "rejected placement must not mutate")

	require.NoError(t, f.Place(&field.Tile{Pos: east, Openings: mustSides(t, "EW")}, nil))
	assert.Equal(t, field.Bounds{MaxX: 1}, f.Bounds())
}

func TestPlace_OpenAgainstClosedRejected(t *testing.T) {
	f := field.New()
	require.NoError(t, f.Place(&field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "W")}, nil))
	// (1,-1) borders (1,0) whose north side is closed
	north := field.Position{X: 1, Y: -1}
	assert.False(t, f.IsLegalOrientation(north, mustSides(t, "S")))
	assert.True(t, f.IsLegalOrientation(north, mustSides(t, "N")))
}

func TestPlace_SeamMustBeOpen(t *testing.T) {
	f := field.New()
	from := field.Origin
	err := f.Place(&field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "N"), Room: true}, &from)
	assert.ErrorIs(t, err, field.ErrSeamClosed)
}

func TestPlace_RoomMatchesEveryPlacedNeighbor(t *testing.T) {
	f := field.New()
	require.NoError(t, f.Place(&field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "WS")}, nil))
	require.NoError(t, f.Place(&field.Tile{Pos: field.Position{X: 1, Y: 1}, Openings: mustSides(t, "NW")}, nil))

	// (0,1) touches the origin to the north and (1,1), whose west door is open, to the east
	from := field.Origin
	target := field.Position{Y: 1}
	walled := &field.Tile{Pos: target, Openings: mustSides(t, "N"), Room: true}
	assert.ErrorIs(t, f.CheckPlacement(walled, &from), field.ErrDoorMismatch)
	_, placed := f.Tile(target)
	assert.False(t, placed)

	// open sides facing empty cells stay unconstrained
	room := &field.Tile{Pos: target, Openings: mustSides(t, "NES"), Room: true}
	require.NoError(t, f.Place(room, &from))
	assert.NoError(t, f.CanStep(target, field.Position{X: 1, Y: 1}))
	assert.NoError(t, f.CanStep(target, field.Origin))
}

func TestLegalOrientations(t *testing.T) {
	f := field.New()
	from := field.Origin
	legal := f.LegalOrientations(field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "N")}, &from)
	assert.Equal(t, []field.Sides{mustSides(t, "W")}, legal)
}

func TestCanStep(t *testing.T) {
	f := field.New()
	require.NoError(t, f.Place(&field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "W")}, nil))
	assert.NoError(t, f.CanStep(field.Origin, field.Position{X: 1}))
	assert.ErrorIs(t, f.CanStep(field.Origin, field.Position{Y: 1}), field.ErrNoTile)
	assert.ErrorIs(t, f.CanStep(field.Origin, field.Position{X: 2}), field.ErrNotAdjacent)
}

func TestPlayers(t *testing.T) {
	f := field.New()
	require.NoError(t, f.PutPlayer("b", field.Origin))
	require.NoError(t, f.PutPlayer("a", field.Origin))
	assert.Equal(t, []string{"a", "b"}, f.PlayersAt(field.Origin))
	assert.ErrorIs(t, f.PutPlayer("a", field.Position{X: 9}), field.ErrNoTile)

	f.RemovePlayer("a")
	_, err := f.PlayerPosition("a")
	assert.ErrorIs(t, err, field.ErrUnknownPlayer)
}

func TestJSONRoundTripRebuildsIndexes(t *testing.T) {
	f := field.New()
	require.NoError(t, f.Place(&field.Tile{Pos: field.Position{X: 1}, Openings: mustSides(t, "EW")}, nil))
	require.NoError(t, f.Place(&field.Tile{Pos: field.Position{X: 2}, Openings: mustSides(t, "W"), Feature: field.FeatureFountain}, nil))
	require.NoError(t, f.PutPlayer("p1", field.Position{X: 2}))

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var back field.Field
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, f.Len(), back.Len())
	assert.Equal(t, f.Bounds(), back.Bounds())
	assert.Equal(t, f.Frontier(), back.Frontier())
	assert.Equal(t, []field.Position{{X: 2}}, back.Fountains())
	pos, err := back.PlayerPosition("p1")
	require.NoError(t, err)
	assert.Equal(t, field.Position{X: 2}, pos)
	assert.False(t, back.IsLegalOrientation(field.Position{X: 3}, mustSides(t, "W")))
}

// TestPropertyPlacementsMatchEveryNeighbor grows random fields of rooms and corridors and
// checks that every accepted placement agrees with each placed neighbor at the
// shared edge, and that every mismatch is refused.
func TestPropertyPlacementsMatchEveryNeighbor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := field.New()
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			frontier := f.Frontier()
			p := rapid.SampledFrom(frontier).Draw(t, "pos")
			s := field.Sides(rapid.IntRange(0, 15).Draw(t, "sides"))
			room := rapid.Bool().Draw(t, "room")

			matches := true
			for _, d := range field.Directions {
				n, ok := f.Tile(p.Step(d))
				if ok && s.Open(d) != n.Openings.Open(d.Opposite()) {
					matches = false
				}
			}

			// rooms are entered from a placed neighbor, whose seam must be open
			var entry *field.Position
			if room {
				for _, d := range field.Directions {
					if _, ok := f.Tile(p.Step(d)); ok {
						e := p.Step(d)
						entry = &e
						matches = matches && s.Open(d)
						break
					}
				}
			}

			err := f.Place(&field.Tile{Pos: p, Openings: s, Room: room}, entry)
			if matches {
				if err != nil {
					t.Fatalf("matching placement %s at %s rejected: %v", s, p, err)
				}
			} else if err == nil {
				t.Fatalf("mismatched placement %s at %s accepted", s, p)
			}
		}

		b := f.Bounds()
		for _, tile := range f.Tiles() {
			if tile.Pos.X < b.MinX || tile.Pos.X > b.MaxX || tile.Pos.Y < b.MinY || tile.Pos.Y > b.MaxY {
				t.Fatalf("tile %s outside bounds %+v", tile.Pos, b)
			}
		}
	})
}
