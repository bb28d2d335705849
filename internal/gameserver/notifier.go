package gameserver

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
)

// Notifier receives the game-ended event. Delivery is at least once; a
// notifier must tolerate the same game id arriving twice.
type Notifier interface {
	GameEnded(ctx context.Context, info engine.EndInfo) error
}

// Publisher receives every committed snapshot.
type Publisher interface {
	Publish(gameID string, snapshot any)
}

// LogNotifier writes the game-ended event to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
//
// Precondition: logger must be non-nil.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// GameEnded implements Notifier.
func (n *LogNotifier) GameEnded(_ context.Context, info engine.EndInfo) error {
	fields := []zap.Field{
		zap.String("game_id", info.GameID),
		zap.String("reason", string(info.Reason)),
	}
	for _, t := range info.Totals {
		fields = append(fields, zap.Dict("player_"+t.PlayerID,
			zap.String("name", t.Name),
			zap.String("external_id", t.ExternalID),
			zap.String("wallet", t.Wallet),
			zap.Bool("automated", t.Automated),
			zap.Int("treasure", t.Treasure),
			zap.Bool("winner", t.Winner),
		))
	}
	n.logger.Info("game ended", fields...)
	return nil
}

// MultiNotifier fans the event out to every notifier and joins their errors.
type MultiNotifier []Notifier

// GameEnded implements Notifier.
func (m MultiNotifier) GameEnded(ctx context.Context, info engine.EndInfo) error {
	var errs []error
	for _, n := range m {
		if err := n.GameEnded(ctx, info); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
