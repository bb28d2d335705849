// Package postgres persists games, their action history and end results in
// PostgreSQL via pgx v5, and provides a cross-process game lock.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/config"
)

const healthTimeout = 5 * time.Second

// Pool owns the connection pool shared by every repository in this package.
type Pool struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPool connects to the database described by cfg and verifies it answers.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a reachable Pool or a non-nil error; no pool is leaked on error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	p := &Pool{db: db, logger: logger}
	if err := p.Health(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return p, nil
}

// Health pings the database, giving up after a few seconds.
func (p *Pool) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return p.db.Ping(ctx)
}

// Watch pings the database every interval until stop is closed, logging failures.
// It blocks, so callers run it as a lifecycle service.
func (p *Pool) Watch(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.Health(context.Background()); err != nil {
				p.logger.Warn("database health check failed", zap.Error(err))
			}
		}
	}
}

// Games returns the game repository backed by this pool.
func (p *Pool) Games() *GameRepository { return NewGameRepository(p.db) }

// Results returns the game-ended outbox backed by this pool.
func (p *Pool) Results() *ResultRepository { return NewResultRepository(p.db) }

// Locker returns an advisory-lock serializer backed by this pool.
func (p *Pool) Locker() *AdvisoryLocker { return NewAdvisoryLocker(p.db, p.logger) }

// DB exposes the raw pool for tests and migrations.
func (p *Pool) DB() *pgxpool.Pool { return p.db }

// Close releases all pool resources.
//
// Postcondition: The pool and every repository derived from it are unusable.
func (p *Pool) Close() {
	p.db.Close()
}
