package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cory-johannsen/tiledungeon/internal/game/engine"
)

// Store errors.
var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameExists      = errors.New("game already exists")
	ErrVersionConflict = errors.New("game was modified concurrently")
)

// Store persists authoritative game state.
//
// Every Save carries the version returned by the matching Load; a mismatch
// means another writer committed in between and the save is refused.
type Store interface {
	// Create stores a new game at version 1.
	Create(ctx context.Context, g *engine.Game) error
	// Load returns a private copy of the game and its version.
	Load(ctx context.Context, id string) (*engine.Game, int64, error)
	// Save replaces the game if it is still at version and appends the
	// given history records.
	//
	// Postcondition: on success the stored version is version+1.
	Save(ctx context.Context, g *engine.Game, version int64, appended []engine.ActionRecord) error
}

type memoryRecord struct {
	state   []byte
	version int64
	actions []engine.ActionRecord
}

// MemoryStore keeps encoded games in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*memoryRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]*memoryRecord)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, g *engine.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding game %s: %w", g.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return fmt.Errorf("creating %s: %w", g.ID, ErrGameExists)
	}
	s.games[g.ID] = &memoryRecord{
		state:   data,
		version: 1,
		actions: append([]engine.ActionRecord(nil), g.History...),
	}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) (*engine.Game, int64, error) {
	s.mu.RLock()
	rec, ok := s.games[id]
	var data []byte
	var version int64
	if ok {
		data, version = rec.state, rec.version
	}
	s.mu.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("loading %s: %w", id, ErrGameNotFound)
	}
	var g engine.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, 0, fmt.Errorf("decoding game %s: %w", id, err)
	}
	return &g, version, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, g *engine.Game, version int64, appended []engine.ActionRecord) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding game %s: %w", g.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[g.ID]
	if !ok {
		return fmt.Errorf("saving %s: %w", g.ID, ErrGameNotFound)
	}
	if rec.version != version {
		return fmt.Errorf("saving %s at version %d (stored %d): %w", g.ID, version, rec.version, ErrVersionConflict)
	}
	rec.state = data
	rec.version++
	rec.actions = append(rec.actions, appended...)
	return nil
}

// Actions returns the stored action log of a game.
func (s *MemoryStore) Actions(id string) []engine.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.games[id]
	if !ok {
		return nil
	}
	return append([]engine.ActionRecord(nil), rec.actions...)
}
