package repository

import (
	"context"
	"time"

	"moneywave/models"
	"moneywave/service"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedGameRepository keeps recently used game snapshots in an expiring LRU in front
// of another GameRepository. It assumes it is the only writer to the underlying store.
type CachedGameRepository struct {
	inner service.GameRepository
	lru   *expirable.LRU[string, models.GameSnapshot]
}

// NewCachedGameRepository wraps inner with a cache of at most size games kept for ttl
func NewCachedGameRepository(inner service.GameRepository, size int, ttl time.Duration) *CachedGameRepository {
	return &CachedGameRepository{
		inner: inner,
		lru:   expirable.NewLRU[string, models.GameSnapshot](size, nil, ttl),
	}
}

// Save writes through and refreshes the cached copy
func (r *CachedGameRepository) Save(ctx context.Context, game *models.Game) error {
	if err := r.inner.Save(ctx, game); err != nil {
		r.lru.Remove(game.ID())
		return err
	}
	r.lru.Add(game.ID(), game.Snapshot())
	return nil
}

// FindByID serves from the cache when possible. Misses are not cached.
func (r *CachedGameRepository) FindByID(ctx context.Context, id string) (*models.Game, error) {
	if snap, ok := r.lru.Get(id); ok {
		return models.Reconstitute(snap), nil
	}

	game, err := r.inner.FindByID(ctx, id)
	if err != nil || game == nil {
		return game, err
	}
	r.lru.Add(id, game.Snapshot())
	return game, nil
}

func (r *CachedGameRepository) MarkEventsDispatched(ctx context.Context, gameID string, eventIDs []string) error {
	// Drop the entry so the next read reflects the trimmed outbox
	defer r.lru.Remove(gameID)
	return r.inner.MarkEventsDispatched(ctx, gameID, eventIDs)
}

func (r *CachedGameRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	return r.inner.ListExpiredActive(ctx, now)
}

func (r *CachedGameRepository) ListWithPendingEvents(ctx context.Context, limit int) ([]string, error) {
	return r.inner.ListWithPendingEvents(ctx, limit)
}

// Len reports the number of cached games
func (r *CachedGameRepository) Len() int {
	return r.lru.Len()
}
