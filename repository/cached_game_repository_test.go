package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneywave/models"
	"moneywave/repository/memory"
	"moneywave/repository/testutil"
	"moneywave/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCachedGameRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("reads after save are served from cache", func(t *testing.T) {
		inner := new(service.MockGameRepository)
		repo := NewCachedGameRepository(inner, 16, time.Minute)
		game := testutil.CreateTestGame(t, "game-1", repoTestStart)
		inner.On("Save", ctx, game).Return(nil)

		require.NoError(t, repo.Save(ctx, game))
		loaded, err := repo.FindByID(ctx, "game-1")

		require.NoError(t, err)
		assert.Equal(t, game.Snapshot(), loaded.Snapshot())
		inner.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("cached copies are independent", func(t *testing.T) {
		repo := NewCachedGameRepository(memory.NewGameRepository(), 16, time.Minute)
		game := testutil.CreateTestGame(t, "game-2", repoTestStart)
		require.NoError(t, repo.Save(ctx, game))

		first, err := repo.FindByID(ctx, "game-2")
		require.NoError(t, err)
		require.NoError(t, first.Activate(repoTestStart))

		second, err := repo.FindByID(ctx, "game-2")
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusCreated, second.Status())
	})

	t.Run("miss falls through and populates", func(t *testing.T) {
		backing := memory.NewGameRepository()
		game := testutil.CreateTestGame(t, "game-3", repoTestStart)
		require.NoError(t, backing.Save(ctx, game))
		repo := NewCachedGameRepository(backing, 16, time.Minute)

		loaded, err := repo.FindByID(ctx, "game-3")

		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("not found is not cached", func(t *testing.T) {
		repo := NewCachedGameRepository(memory.NewGameRepository(), 16, time.Minute)

		loaded, err := repo.FindByID(ctx, "nope")

		require.NoError(t, err)
		assert.Nil(t, loaded)
		assert.Zero(t, repo.Len())
	})

	t.Run("failed save evicts", func(t *testing.T) {
		inner := new(service.MockGameRepository)
		repo := NewCachedGameRepository(inner, 16, time.Minute)
		game := testutil.CreateTestGame(t, "game-4", repoTestStart)
		inner.On("Save", ctx, game).Return(nil).Once()
		inner.On("Save", ctx, game).Return(errors.New("connection reset")).Once()

		require.NoError(t, repo.Save(ctx, game))
		assert.Error(t, repo.Save(ctx, game))
		assert.Zero(t, repo.Len())
	})

	t.Run("dispatch marks evict", func(t *testing.T) {
		backing := memory.NewGameRepository()
		repo := NewCachedGameRepository(backing, 16, time.Minute)
		game := testutil.CreateActiveTestGame(t, "game-5", repoTestStart, "alice")
		require.NoError(t, repo.Save(ctx, game))
		ids := eventIDs(game.PendingEvents())

		require.NoError(t, repo.MarkEventsDispatched(ctx, "game-5", ids))
		loaded, err := repo.FindByID(ctx, "game-5")

		require.NoError(t, err)
		assert.Empty(t, loaded.PendingEvents())
	})

	t.Run("expired entries reload", func(t *testing.T) {
		backing := memory.NewGameRepository()
		repo := NewCachedGameRepository(backing, 16, 10*time.Millisecond)
		game := testutil.CreateTestGame(t, "game-6", repoTestStart)
		require.NoError(t, repo.Save(ctx, game))

		require.Eventually(t, func() bool { return repo.Len() == 0 }, time.Second, 5*time.Millisecond)
		loaded, err := repo.FindByID(ctx, "game-6")
		require.NoError(t, err)
		assert.NotNil(t, loaded)
	})
}
