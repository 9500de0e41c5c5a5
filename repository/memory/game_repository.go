// Package memory holds an in-process GameRepository used by tests and local runs
// without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moneywave/models"
)

// GameRepository stores game snapshots in memory. Every read returns a fresh aggregate
// so callers never share state with the store.
type GameRepository struct {
	mu    sync.RWMutex
	games map[string]models.GameSnapshot
}

// NewGameRepository creates an empty repository
func NewGameRepository() *GameRepository {
	return &GameRepository{games: make(map[string]models.GameSnapshot)}
}

// Save stores a deep copy of the game
func (r *GameRepository) Save(_ context.Context, game *models.Game) error {
	snap := game.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[snap.ID] = snap
	return nil
}

// FindByID returns nil, nil when the game does not exist
func (r *GameRepository) FindByID(_ context.Context, id string) (*models.Game, error) {
	r.mu.RLock()
	snap, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	// Reconstitute copies every slice and map it keeps
	return models.Reconstitute(snap), nil
}

// MarkEventsDispatched drops the given events from the stored outbox
func (r *GameRepository) MarkEventsDispatched(_ context.Context, gameID string, eventIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.games[gameID]
	if !ok {
		return nil
	}
	game := models.Reconstitute(snap)
	game.MarkEventsDispatched(eventIDs)
	r.games[gameID] = game.Snapshot()
	return nil
}

// ListExpiredActive returns ids of active games with EndTime <= now
func (r *GameRepository) ListExpiredActive(_ context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, snap := range r.games {
		if snap.Status == models.GameStatusActive && !now.Before(snap.Configuration.EndTime) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListWithPendingEvents returns up to limit ids of games with undispatched events
func (r *GameRepository) ListWithPendingEvents(_ context.Context, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, snap := range r.games {
		if len(snap.PendingEvents) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
