// Package gameserver exposes games to clients: it serializes commands per
// game, loads and saves state through a Store, runs automated turns inline
// and serves the whole thing over gRPC.
package gameserver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/game/battle"
	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
	"github.com/cory-johannsen/tiledungeon/internal/game/inventory"
	"github.com/cory-johannsen/tiledungeon/internal/observability"
)

// Response is the answer to every mutating request. Exactly one of
// Rejection or the committed Snapshot fields describes the outcome; a
// rejected command carries the unchanged snapshot.
type Response struct {
	// PlayerID is the seat created by JoinGame.
	PlayerID      string                      `json:"player_id,omitempty"`
	Snapshot      *Snapshot                   `json:"snapshot"`
	Battle        *battle.Battle              `json:"battle,omitempty"`
	InventoryFull *inventory.CapacityExceeded `json:"inventory_full,omitempty"`
	Rejection     *engine.Rejection           `json:"rejection,omitempty"`
	Automated     []AutomatedAction           `json:"automated,omitempty"`
	Ended         *engine.EndInfo             `json:"ended,omitempty"`
}

// Service applies client requests to stored games.
type Service struct {
	engine     *engine.Engine
	store      Store
	serializer Serializer
	scheduler  *Scheduler
	notifier   Notifier
	publisher  Publisher
	logger     *zap.Logger
}

// NewService creates a Service.
//
// Precondition: every argument must be non-nil.
func NewService(eng *engine.Engine, store Store, serializer Serializer, scheduler *Scheduler, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		engine:     eng,
		store:      store,
		serializer: serializer,
		scheduler:  scheduler,
		notifier:   notifier,
		logger:     logger,
	}
}

// SetPublisher registers a receiver for committed snapshots.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// CreateGame opens a new lobby.
func (s *Service) CreateGame(ctx context.Context) (*Response, error) {
	g := s.engine.NewGame("")
	if err := s.store.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}
	observability.ForGame(s.logger, g.ID).Info("game created", zap.Int("deck", len(g.Deck)))
	return &Response{Snapshot: NewSnapshot(g)}, nil
}

// JoinGame seats a player in a lobby.
func (s *Service) JoinGame(ctx context.Context, gameID string, req engine.JoinRequest) (*Response, error) {
	return s.mutate(ctx, gameID, "", "join", func(g *engine.Game, resp *Response) (engine.Result, error) {
		p, err := s.engine.Join(g, req)
		if err != nil {
			return engine.Result{}, err
		}
		resp.PlayerID = p.ID
		return engine.Result{}, nil
	})
}

// MarkReady flags a seated player as ready.
func (s *Service) MarkReady(ctx context.Context, gameID, playerID string) (*Response, error) {
	return s.mutate(ctx, gameID, playerID, "ready", func(g *engine.Game, _ *Response) (engine.Result, error) {
		return engine.Result{}, s.engine.MarkReady(g, playerID)
	})
}

// StartGame moves a lobby into play. If an automated player moves first its
// turn is played before the response.
func (s *Service) StartGame(ctx context.Context, gameID, playerID string) (*Response, error) {
	return s.mutate(ctx, gameID, playerID, "start", func(g *engine.Game, _ *Response) (engine.Result, error) {
		return engine.Result{}, s.engine.Start(g, playerID)
	})
}

// Command applies one in-play command.
func (s *Service) Command(ctx context.Context, gameID string, cmd engine.Command) (*Response, error) {
	return s.mutate(ctx, gameID, cmd.PlayerID, string(cmd.Kind), func(g *engine.Game, _ *Response) (engine.Result, error) {
		return s.engine.Apply(g, cmd)
	})
}

// LeaveGame removes a player from the lobby or forfeits their seat in play.
func (s *Service) LeaveGame(ctx context.Context, gameID, playerID string) (*Response, error) {
	return s.mutate(ctx, gameID, playerID, "leave", func(g *engine.Game, _ *Response) (engine.Result, error) {
		return s.engine.Leave(g, playerID)
	})
}

// GetState returns the last committed snapshot. It does not take the game's
// serializer lock.
func (s *Service) GetState(ctx context.Context, gameID string) (*Snapshot, error) {
	g, _, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(g), nil
}

// mutate runs fn under the game's lock against a freshly loaded copy and
// commits the copy only when fn and any automated turns succeed.
func (s *Service) mutate(ctx context.Context, gameID, playerID, op string, fn func(*engine.Game, *Response) (engine.Result, error)) (*Response, error) {
	release, err := s.serializer.TryAcquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	log := observability.ForCommand(observability.ForGame(s.logger, gameID), playerID, op)
	g, version, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	before := len(g.History)
	wasEnded := g.Ended != nil

	resp := &Response{}
	res, err := fn(g, resp)
	if err != nil {
		rej, ok := engine.Reject(g, err)
		if !ok {
			return nil, fmt.Errorf("%s in %s: %w", op, gameID, err)
		}
		log.Debug("command rejected",
			zap.String("code", rej.Code),
			zap.String("kind", string(rej.Kind)),
		)
		resp.Snapshot = NewSnapshot(g)
		resp.Rejection = rej
		return resp, nil
	}
	resp.Battle = res.Battle
	resp.InventoryFull = res.InventoryFull

	automated, err := s.scheduler.Run(g)
	if err != nil {
		return nil, err
	}
	resp.Automated = automated

	if err := s.store.Save(ctx, g, version, g.History[before:]); err != nil {
		return nil, fmt.Errorf("%s in %s: %w", op, gameID, err)
	}
	resp.Snapshot = NewSnapshot(g)
	log.Debug("command committed",
		zap.Int64("version", version+1),
		zap.Int("actions", len(g.History)-before),
		zap.Int("automated", len(automated)),
	)

	if g.Ended != nil && !wasEnded {
		resp.Ended = g.Ended
		if err := s.notifier.GameEnded(ctx, *g.Ended); err != nil {
			log.Error("game-ended notification failed", zap.Error(err))
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(gameID, resp.Snapshot)
	}
	return resp, nil
}
