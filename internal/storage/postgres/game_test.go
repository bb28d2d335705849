package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/content"
	"github.com/cory-johannsen/tiledungeon/internal/game/dice"
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/field"
	"github.com/cory-johannsen/tiledungeon/internal/gameserver"
	"github.com/cory-johannsen/tiledungeon/internal/storage/postgres"
	"github.com/cory-johannsen/tiledungeon/internal/testutil"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cat, err := content.LoadFromBytes([]byte(`
tiles:
  - name: cross
    openings: NESW
    count: 4
`), []byte(`
monsters:
  - id: rat
    name: Rat
    hp: 5
`))
	require.NoError(t, err)
	return engine.New(cat, dice.NewLoggedRoller(dice.NewFixedSource(), dice.MustParse("2d6"), zap.NewNop()),
		dice.NewFixedSource(), engine.Rules{ActionBudget: 4, MaxHP: 5}, zap.NewNop())
}

func TestPostgres_Repositories(t *testing.T) {
	pool := testutil.NewPostgres(t)
	eng := newEngine(t)
	ctx := context.Background()

	t.Run("game round trip with optimistic version", func(t *testing.T) {
		repo := pool.Games()
		g := eng.NewGame("")
		require.NoError(t, repo.Create(ctx, g))
		assert.ErrorIs(t, repo.Create(ctx, g), gameserver.ErrGameExists)

		loaded, version, err := repo.Load(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), version)
		assert.Equal(t, len(g.Deck), len(loaded.Deck))

		before := len(loaded.History)
		p, err := eng.Join(loaded, engine.JoinRequest{Name: "alice"})
		require.NoError(t, err)
		require.NoError(t, eng.MarkReady(loaded, p.ID))
		require.NoError(t, eng.Start(loaded, p.ID))
		_, err = eng.Apply(loaded, engine.Command{
			Kind: engine.CmdPlaceTile, PlayerID: p.ID, TurnID: loaded.Turn.ID, Pos: field.Position{X: 1}, Openings: field.AllOpen,
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, loaded, version, loaded.History[before:]))

		err = repo.Save(ctx, loaded, version, nil)
		assert.ErrorIs(t, err, gameserver.ErrVersionConflict)

		again, version, err := repo.Load(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)
		assert.Equal(t, engine.StatusActive, again.Status)
		assert.Equal(t, 2, again.Field.Len())

		actions, err := repo.Actions(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, actions, len(again.History))
		for i, a := range actions {
			assert.Equal(t, again.History[i], a)
		}
	})

	t.Run("missing game", func(t *testing.T) {
		repo := pool.Games()
		_, _, err := repo.Load(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, gameserver.ErrGameNotFound)
		_, _, err = repo.Load(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, gameserver.ErrGameNotFound)
	})

	t.Run("results are recorded once", func(t *testing.T) {
		repo := pool.Results()
		g := eng.NewGame("")
		require.NoError(t, pool.Games().Create(ctx, g))
		info := engine.EndInfo{GameID: g.ID, Reason: engine.EndAbandoned, Totals: []engine.PlayerTotal{{PlayerID: "p1", Treasure: 3}}}
		require.NoError(t, repo.GameEnded(ctx, info))

		dup := info
		dup.Reason = engine.EndBossDefeated
		require.NoError(t, repo.GameEnded(ctx, dup))

		got, err := repo.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, info, got)

		_, err = repo.Get(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, postgres.ErrResultNotFound)
	})

	t.Run("advisory lock admits one holder", func(t *testing.T) {
		testAdvisoryLock(t, pool)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, pool.Health(ctx))
	})
}

func testAdvisoryLock(t *testing.T, pool *postgres.Pool) {
	locker := pool.Locker()
	ctx := context.Background()

	release, err := locker.TryAcquire(ctx, "game-a")
	require.NoError(t, err)

	_, err = locker.TryAcquire(ctx, "game-a")
	assert.ErrorIs(t, err, gameserver.ErrBusy)

	other, err := locker.TryAcquire(ctx, "game-b")
	require.NoError(t, err)
	other()

	release()
	again, err := locker.TryAcquire(ctx, "game-a")
	require.NoError(t, err)
	again()
}
