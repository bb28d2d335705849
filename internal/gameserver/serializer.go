package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when another command for the same game is in flight.
// Callers may retry.
var ErrBusy = errors.New("game is busy with another command")

// Serializer admits at most one mutating command per game at a time. A
// command that finds the game held is refused with ErrBusy, never queued.
type Serializer interface {
	// TryAcquire claims gameID. The returned release must be called exactly
	// once on every exit path.
	TryAcquire(ctx context.Context, gameID string) (release func(), err error)
}

// LocalSerializer guards games within one process.
type LocalSerializer struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalSerializer creates an empty LocalSerializer.
func NewLocalSerializer() *LocalSerializer {
	return &LocalSerializer{held: make(map[string]struct{})}
}

// TryAcquire implements Serializer.
func (s *LocalSerializer) TryAcquire(_ context.Context, gameID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[gameID]; ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrBusy)
	}
	s.held[gameID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, gameID)
			s.mu.Unlock()
		})
	}, nil
}

// Held reports whether gameID is currently claimed.
func (s *LocalSerializer) Held(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[gameID]
	return ok
}

// ChainSerializer acquires each serializer in order and releases them in
// reverse. It lets a process-local lock front a cross-process one.
type ChainSerializer []Serializer

// TryAcquire implements Serializer.
func (c ChainSerializer) TryAcquire(ctx context.Context, gameID string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, s := range c {
		release, err := s.TryAcquire(ctx, gameID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
