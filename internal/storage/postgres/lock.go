package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/gameserver"
)

const unlockTimeout = 5 * time.Second

// AdvisoryLocker serializes commands per game across server processes with
// session-level advisory locks. Each held lock pins one pool connection.
type AdvisoryLocker struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAdvisoryLocker creates an AdvisoryLocker.
//
// Precondition: db and logger must be non-nil.
func NewAdvisoryLocker(db *pgxpool.Pool, logger *zap.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, logger: logger}
}

// TryAcquire implements gameserver.Serializer.
func (l *AdvisoryLocker) TryAcquire(ctx context.Context, gameID string) (func(), error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for %s: %w", gameID, err)
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, gameID).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("locking %s: %w", gameID, err)
	}
	if !locked {
		conn.Release()
		return nil, fmt.Errorf("game %s: %w", gameID, gameserver.ErrBusy)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()
			if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, gameID); err != nil {
				// never return a connection that may still hold the lock
				l.logger.Error("advisory unlock failed; closing connection",
					zap.String("game_id", gameID),
					zap.Error(err),
				)
				_ = conn.Conn().Close(ctx)
			}
			conn.Release()
		})
	}, nil
}
