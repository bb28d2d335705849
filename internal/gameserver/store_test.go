package gameserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
)

const (
	time2s = 2 * time.Second
	tick   = 5 * time.Millisecond
)

func newStoredGame(id string) *engine.Game {
	return &engine.Game{
		ID:         id,
		Status:     engine.StatusLobby,
		Field:      field.New(),
		NextTurnID: 1,
		History:    []engine.ActionRecord{{Seq: 1, Kind: "create"}},
	}
}

func TestMemoryStore_RoundTripAndVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newStoredGame("g")))
	assert.ErrorIs(t, s.Create(ctx, newStoredGame("g")), ErrGameExists)

	g, version, err := s.Load(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, 1, g.Field.Len())

	g.Status = engine.StatusActive
	rec := engine.ActionRecord{Seq: 2, Kind: "start"}
	g.History = append(g.History, rec)
	require.NoError(t, s.Save(ctx, g, version, []engine.ActionRecord{rec}))

	err = s.Save(ctx, g, version, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)

	reloaded, version, err := s.Load(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, engine.StatusActive, reloaded.Status)
	assert.Len(t, s.Actions("g"), 2)
}

func TestMemoryStore_LoadReturnsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newStoredGame("g")))

	g, _, err := s.Load(ctx, "g")
	require.NoError(t, err)
	g.Status = engine.StatusFinished

	again, _, err := s.Load(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusLobby, again.Status)
}

func TestMemoryStore_Missing(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, s.Save(context.Background(), newStoredGame("nope"), 1, nil), ErrGameNotFound)
}
