package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
)

// ErrResultNotFound is returned when a game has no recorded result.
var ErrResultNotFound = errors.New("game result not found")

// ResultRepository is the outbox for game-ended events. It implements
// gameserver.Notifier; recording the same game twice keeps the first row.
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a ResultRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// GameEnded records info in game_results.
func (r *ResultRepository) GameEnded(ctx context.Context, info engine.EndInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding result of %s: %w", info.GameID, err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO game_results (game_id, reason, payload)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (game_id) DO NOTHING`,
		info.GameID, string(info.Reason), payload,
	)
	if err != nil {
		return fmt.Errorf("recording result of %s: %w", info.GameID, err)
	}
	return nil
}

// Get returns the recorded result of a game.
func (r *ResultRepository) Get(ctx context.Context, gameID string) (engine.EndInfo, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT payload FROM game_results WHERE game_id = $1`, gameID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.EndInfo{}, fmt.Errorf("result of %s: %w", gameID, ErrResultNotFound)
	}
	if err != nil {
		return engine.EndInfo{}, fmt.Errorf("querying result of %s: %w", gameID, err)
	}
	var info engine.EndInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return engine.EndInfo{}, fmt.Errorf("decoding result of %s: %w", gameID, err)
	}
	return info, nil
}
