package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/gameserver"
)

const uniqueViolation = "23505"

// GameRepository stores each game as a JSONB snapshot guarded by an
// optimistic version, and mirrors its history into game_actions.
type GameRepository struct {
	db *pgxpool.Pool
}

// NewGameRepository creates a GameRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

// Create implements gameserver.Store.
//
// Postcondition: returns gameserver.ErrGameExists if the id is taken.
func (r *GameRepository) Create(ctx context.Context, g *engine.Game) error {
	state, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding game %s: %w", g.ID, err)
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO games (id, status, version, state) VALUES ($1, $2, 1, $3)`,
			g.ID, string(g.Status), state,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("creating %s: %w", g.ID, gameserver.ErrGameExists)
			}
			return fmt.Errorf("inserting game %s: %w", g.ID, err)
		}
		return insertActions(ctx, tx, g.ID, g.History)
	})
}

// Load implements gameserver.Store.
func (r *GameRepository) Load(ctx context.Context, id string) (*engine.Game, int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, 0, fmt.Errorf("loading %q: %w", id, gameserver.ErrGameNotFound)
	}
	var (
		state   []byte
		version int64
	)
	err := r.db.QueryRow(ctx,
		`SELECT state, version FROM games WHERE id = $1`, id,
	).Scan(&state, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("loading %s: %w", id, gameserver.ErrGameNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading game %s: %w", id, err)
	}
	var g engine.Game
	if err := json.Unmarshal(state, &g); err != nil {
		return nil, 0, fmt.Errorf("decoding game %s: %w", id, err)
	}
	return &g, version, nil
}

// Save implements gameserver.Store. The snapshot update and the history
// inserts commit together.
func (r *GameRepository) Save(ctx context.Context, g *engine.Game, version int64, appended []engine.ActionRecord) error {
	state, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding game %s: %w", g.ID, err)
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE games
			    SET state = $3, status = $4, version = version + 1, updated_at = NOW()
			  WHERE id = $1 AND version = $2`,
			g.ID, version, state, string(g.Status),
		)
		if err != nil {
			return fmt.Errorf("updating game %s: %w", g.ID, err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, g.ID).Scan(&exists); err != nil {
				return fmt.Errorf("checking game %s: %w", g.ID, err)
			}
			if !exists {
				return fmt.Errorf("saving %s: %w", g.ID, gameserver.ErrGameNotFound)
			}
			return fmt.Errorf("saving %s at version %d: %w", g.ID, version, gameserver.ErrVersionConflict)
		}
		return insertActions(ctx, tx, g.ID, appended)
	})
}

// Actions returns the stored history of a game in sequence order.
func (r *GameRepository) Actions(ctx context.Context, id string) ([]engine.ActionRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT seq, turn_id, player_id, kind, detail #>> '{}'
		   FROM game_actions
		  WHERE game_id = $1
		  ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying actions of %s: %w", id, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (engine.ActionRecord, error) {
		var a engine.ActionRecord
		err := row.Scan(&a.Seq, &a.TurnID, &a.PlayerID, &a.Kind, &a.Detail)
		return a, err
	})
}

func insertActions(ctx context.Context, tx pgx.Tx, gameID string, actions []engine.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range actions {
		batch.Queue(
			`INSERT INTO game_actions (game_id, seq, turn_id, player_id, kind, detail)
			 VALUES ($1, $2, $3, $4, $5, to_jsonb($6::text))`,
			gameID, a.Seq, a.TurnID, a.PlayerID, a.Kind, a.Detail,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting actions of %s: %w", gameID, err)
	}
	return nil
}
