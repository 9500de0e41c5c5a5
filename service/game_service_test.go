package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"moneywave/models"
	"moneywave/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeLedger records emitted events and can be told to fail
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	emitted  []models.GameEvent
	failures int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[string]int64)}
}

func (l *fakeLedger) GetBalance(_ context.Context, userID string, _ models.Currency) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if balance, ok := l.balances[userID]; ok {
		return balance, nil
	}
	return 1_000_000, nil
}

func (l *fakeLedger) EmitEvent(_ context.Context, event models.GameEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures > 0 {
		l.failures--
		return errors.New("ledger unavailable")
	}
	l.emitted = append(l.emitted, event)
	return nil
}

func (l *fakeLedger) failNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = n
}

func (l *fakeLedger) count(eventType models.GameEventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, event := range l.emitted {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func createTestGameService(t *testing.T) (*gameService, *memory.GameRepository, *fakeLedger, *MockPrizePoolService, *testClock) {
	t.Helper()
	repo := memory.NewGameRepository()
	ledger := newFakeLedger()
	prizePool := new(MockPrizePoolService)
	prizePool.On("ComputeDailyPool", mock.Anything).Return(models.PrizePoolSnapshot{TotalDailyPool: 100_000}, nil)
	prizePool.On("AllocateToGame", int64(100_000), mock.Anything, mock.Anything).Return(int64(5_000))

	clock := &testClock{now: testNow}
	svc := NewGameService(repo, ledger, prizePool, NewSettlementEngine(DefaultPayoutMultiplier), nil).(*gameService)
	svc.now = clock.Now
	return svc, repo, ledger, prizePool, clock
}

func createActiveServiceGame(t *testing.T, svc *gameService, config models.GameConfiguration) string {
	t.Helper()
	ctx := context.Background()
	gameID, err := svc.CreateGame(ctx, config, "creator-1")
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, gameID))
	return gameID
}

func TestGameService_CreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("commits allocation from the daily pool", func(t *testing.T) {
		svc, repo, _, prizePool, _ := createTestGameService(t)
		config := createTestConfig()
		config.ImportanceLevel = models.ImportanceCritical
		config.DifficultyLevel = models.DifficultyExpert

		gameID, err := svc.CreateGame(ctx, config, "creator-1")

		require.NoError(t, err)
		assert.NotEmpty(t, gameID)
		game, err := repo.FindByID(ctx, gameID)
		require.NoError(t, err)
		require.NotNil(t, game)
		assert.Equal(t, models.GameStatusCreated, game.Status())
		assert.Equal(t, int64(5_000), game.AllocatedPrizePool())
		prizePool.AssertCalled(t, "AllocateToGame", int64(100_000), mock.MatchedBy(func(score float64) bool {
			return math.Abs(score-4.25) < 1e-9
		}), config.EndTime)
	})

	t.Run("validation error skips pool computation", func(t *testing.T) {
		svc, _, _, prizePool, _ := createTestGameService(t)
		config := createTestConfig()
		config.Title = "Hm"

		gameID, err := svc.CreateGame(ctx, config, "creator-1")

		assert.Empty(t, gameID)
		assert.Equal(t, models.KindValidation, models.KindOf(err))
		prizePool.AssertNotCalled(t, "ComputeDailyPool", mock.Anything)
	})

	t.Run("pool failure", func(t *testing.T) {
		repo := new(MockGameRepository)
		prizePool := new(MockPrizePoolService)
		prizePool.On("ComputeDailyPool", mock.Anything).Return(models.PrizePoolSnapshot{}, errors.New("ledger timeout"))
		svc := NewGameService(repo, newFakeLedger(), prizePool, NewSettlementEngine(DefaultPayoutMultiplier), nil)

		_, err := svc.CreateGame(ctx, createTestConfig(), "creator-1")

		assert.ErrorContains(t, err, "failed to compute daily prize pool")
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockGameRepository)
		repo.On("Save", mock.Anything, mock.Anything).Return(models.NewRepositoryError("insert game", errors.New("connection reset")))
		prizePool := new(MockPrizePoolService)
		prizePool.On("ComputeDailyPool", mock.Anything).Return(models.PrizePoolSnapshot{TotalDailyPool: 10}, nil)
		prizePool.On("AllocateToGame", mock.Anything, mock.Anything, mock.Anything).Return(int64(1))
		svc := NewGameService(repo, newFakeLedger(), prizePool, NewSettlementEngine(DefaultPayoutMultiplier), nil)

		_, err := svc.CreateGame(ctx, createTestConfig(), "creator-1")

		assert.Equal(t, models.KindRepository, models.KindOf(err))
	})
}

func TestGameService_AdmitStake(t *testing.T) {
	ctx := context.Background()

	t.Run("success emits admission and debit", func(t *testing.T) {
		svc, repo, ledger, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())

		stake, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100, Confidence: 0.8})

		require.NoError(t, err)
		require.NotNil(t, stake)
		assert.NotEmpty(t, stake.ID)
		assert.Equal(t, gameID, stake.GameID)
		assert.Equal(t, 1, ledger.count(models.EventTypeStakeAdmitted))
		assert.Equal(t, 1, ledger.count(models.EventTypeStakeDebited))

		game, err := repo.FindByID(ctx, gameID)
		require.NoError(t, err)
		assert.Empty(t, game.PendingEvents())
		assert.Equal(t, 1, game.ParticipantCount())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		svc, repo, ledger, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())
		ledger.balances["user1"] = 99

		_, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})

		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		assert.Equal(t, models.KindInsufficientBalance, models.KindOf(err))
		game, _ := repo.FindByID(ctx, gameID)
		assert.Zero(t, game.ParticipantCount())
	})

	t.Run("balance lookup failure", func(t *testing.T) {
		repo := new(MockGameRepository)
		ledger := new(MockStakeLedgerGateway)
		ledger.On("GetBalance", ctx, "user1", models.CurrencyPMP).Return(int64(0), errors.New("timeout"))
		svc := NewGameService(repo, ledger, new(MockPrizePoolService), NewSettlementEngine(DefaultPayoutMultiplier), nil)

		_, err := svc.AdmitStake(ctx, "game-1", models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})

		assert.ErrorContains(t, err, "failed to get balance")
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("non-finite confidence rejected", func(t *testing.T) {
		svc, repo, ledger, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())

		for _, confidence := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100, Confidence: confidence})
			assert.Equal(t, models.KindValidation, models.KindOf(err), "confidence %v", confidence)
		}

		game, err := repo.FindByID(ctx, gameID)
		require.NoError(t, err)
		assert.Zero(t, game.ParticipantCount())
		assert.Zero(t, ledger.count(models.EventTypeStakeDebited))
	})

	t.Run("game not found", func(t *testing.T) {
		svc, _, _, _, _ := createTestGameService(t)

		_, err := svc.AdmitStake(ctx, "missing", models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})

		assert.ErrorIs(t, err, models.ErrGameNotFound)
		assert.Equal(t, models.KindNotFound, models.KindOf(err))
	})

	t.Run("duplicate stake rejected and first unchanged", func(t *testing.T) {
		svc, repo, _, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())
		first, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})
		require.NoError(t, err)

		_, err = svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "no", Amount: 500})

		assert.ErrorIs(t, err, models.ErrDuplicateParticipation)
		game, _ := repo.FindByID(ctx, gameID)
		stored, ok := game.StakeByUser("user1")
		require.True(t, ok)
		assert.Equal(t, *first, stored)
	})

	t.Run("concurrent admissions never duplicate", func(t *testing.T) {
		svc, repo, _, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())

		var wg sync.WaitGroup
		var mu sync.Mutex
		rejected := 0
		for attempt := 0; attempt < 5; attempt++ {
			for user := 0; user < 10; user++ {
				wg.Add(1)
				go func(user int) {
					defer wg.Done()
					_, err := svc.AdmitStake(ctx, gameID, models.Stake{
						UserID:           fmt.Sprintf("user%d", user),
						SelectedOptionID: "yes",
						Amount:           100,
					})
					if err != nil {
						assert.ErrorIs(t, err, models.ErrDuplicateParticipation)
						mu.Lock()
						rejected++
						mu.Unlock()
					}
				}(user)
			}
		}
		wg.Wait()

		game, err := repo.FindByID(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, 10, game.ParticipantCount())
		assert.Equal(t, 40, rejected)
		seen := make(map[string]bool)
		for _, stake := range game.Stakes() {
			assert.False(t, seen[stake.UserID], "duplicate stake for %s", stake.UserID)
			seen[stake.UserID] = true
		}
	})

	t.Run("concurrent admissions respect participant cap", func(t *testing.T) {
		svc, repo, _, _, _ := createTestGameService(t)
		config := createTestConfig()
		limit := 5
		config.MaxParticipants = &limit
		gameID := createActiveServiceGame(t, svc, config)

		var wg sync.WaitGroup
		for user := 0; user < 20; user++ {
			wg.Add(1)
			go func(user int) {
				defer wg.Done()
				_, _ = svc.AdmitStake(ctx, gameID, models.Stake{
					UserID:           fmt.Sprintf("user%d", user),
					SelectedOptionID: "no",
					Amount:           50,
				})
			}(user)
		}
		wg.Wait()

		game, err := repo.FindByID(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, 5, game.ParticipantCount())
	})
}

func TestGameService_Settle(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*gameService, *memory.GameRepository, *fakeLedger, string) {
		svc, repo, ledger, _, clock := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())
		_, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})
		require.NoError(t, err)
		_, err = svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user2", SelectedOptionID: "no", Amount: 200})
		require.NoError(t, err)
		clock.Set(testNow.Add(2 * time.Hour))
		require.NoError(t, svc.Close(ctx, gameID))
		return svc, repo, ledger, gameID
	}

	t.Run("happy path", func(t *testing.T) {
		svc, repo, ledger, gameID := setup(t)

		receipt, err := svc.Settle(ctx, gameID, "yes")

		require.NoError(t, err)
		assert.Equal(t, int64(540), receipt.TotalDistributed)
		assert.Equal(t, int64(300), receipt.TotalStakePool)
		assert.Equal(t, 1, ledger.count(models.EventTypeRewardCredited))
		assert.Equal(t, 1, ledger.count(models.EventTypeGameSettled))

		snap, err := svc.GetGame(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusSettled, snap.Status)
		assert.Equal(t, receipt, snap.Receipt)

		game, _ := repo.FindByID(ctx, gameID)
		assert.Empty(t, game.PendingEvents())
	})

	t.Run("second settle returns first receipt", func(t *testing.T) {
		svc, _, ledger, gameID := setup(t)
		first, err := svc.Settle(ctx, gameID, "yes")
		require.NoError(t, err)

		second, err := svc.Settle(ctx, gameID, "no")

		assert.ErrorIs(t, err, models.ErrAlreadySettled)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, ledger.count(models.EventTypeRewardCredited))
	})

	t.Run("settle while active is rejected", func(t *testing.T) {
		svc, repo, _, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())

		receipt, err := svc.Settle(ctx, gameID, "yes")

		assert.Nil(t, receipt)
		assert.ErrorIs(t, err, models.ErrInvalidStateForSettlement)
		game, _ := repo.FindByID(ctx, gameID)
		assert.Equal(t, models.GameStatusActive, game.Status())
	})

	t.Run("failed publish is retried without recomputing", func(t *testing.T) {
		svc, repo, ledger, gameID := setup(t)
		ledger.failNext(1)

		receipt, err := svc.Settle(ctx, gameID, "yes")

		require.NoError(t, err)
		game, _ := repo.FindByID(ctx, gameID)
		assert.Equal(t, models.GameStatusSettled, game.Status())
		assert.Len(t, game.PendingEvents(), 2)
		assert.Zero(t, ledger.count(models.EventTypeRewardCredited))

		retried, err := svc.Settle(ctx, gameID, "yes")

		assert.ErrorIs(t, err, models.ErrAlreadySettled)
		assert.Equal(t, receipt, retried)
		assert.Equal(t, 1, ledger.count(models.EventTypeRewardCredited))
		assert.Equal(t, 1, ledger.count(models.EventTypeGameSettled))
		game, _ = repo.FindByID(ctx, gameID)
		assert.Empty(t, game.PendingEvents())
	})

	t.Run("outbox worker flushes pending events", func(t *testing.T) {
		svc, _, ledger, gameID := setup(t)
		ledger.failNext(1)
		_, err := svc.Settle(ctx, gameID, "yes")
		require.NoError(t, err)

		flushed, err := svc.DispatchAllPending(ctx, 10)

		require.NoError(t, err)
		assert.Equal(t, 1, flushed)
		assert.Equal(t, 1, ledger.count(models.EventTypeRewardCredited))
	})

	t.Run("concurrent settles pay once", func(t *testing.T) {
		svc, _, ledger, gameID := setup(t)

		var wg sync.WaitGroup
		var mu sync.Mutex
		successes := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.Settle(ctx, gameID, "yes"); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, ledger.count(models.EventTypeRewardCredited))
	})
}

func TestGameService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel and delete", func(t *testing.T) {
		svc, repo, ledger, _, _ := createTestGameService(t)
		gameID, err := svc.CreateGame(ctx, createTestConfig(), "creator-1")
		require.NoError(t, err)

		require.NoError(t, svc.Cancel(ctx, gameID, "duplicate market"))
		require.NoError(t, svc.DeleteGame(ctx, gameID))

		game, err := repo.FindByID(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusCancelled, game.Status())
		assert.True(t, game.IsDeleted())
		assert.Equal(t, 1, ledger.count(models.EventTypeGameStateChanged))
	})

	t.Run("cancel active game with stakes is rejected", func(t *testing.T) {
		svc, _, _, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())
		_, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})
		require.NoError(t, err)

		err = svc.Cancel(ctx, gameID, "oops")

		assert.ErrorIs(t, err, models.ErrIllegalStateTransition)
	})

	t.Run("update while created", func(t *testing.T) {
		svc, repo, _, _, _ := createTestGameService(t)
		gameID, err := svc.CreateGame(ctx, createTestConfig(), "creator-1")
		require.NoError(t, err)
		title := "Will it snow tomorrow?"
		end := testNow.Add(5 * time.Hour)
		settlement := testNow.Add(6 * time.Hour)

		err = svc.UpdateGame(ctx, gameID, GameUpdate{Title: &title, EndTime: &end, SettlementTime: &settlement})

		require.NoError(t, err)
		game, _ := repo.FindByID(ctx, gameID)
		config := game.Configuration()
		assert.Equal(t, title, config.Title)
		assert.Equal(t, end, config.EndTime)
		assert.Equal(t, settlement, config.SettlementTime)
	})

	t.Run("invalid update leaves game unchanged", func(t *testing.T) {
		svc, repo, _, _, _ := createTestGameService(t)
		gameID, err := svc.CreateGame(ctx, createTestConfig(), "creator-1")
		require.NoError(t, err)
		title := "Will it snow tomorrow?"
		minimum := int64(0)

		err = svc.UpdateGame(ctx, gameID, GameUpdate{Title: &title, MinimumStake: &minimum})

		assert.Equal(t, models.KindValidation, models.KindOf(err))
		game, _ := repo.FindByID(ctx, gameID)
		assert.Equal(t, createTestConfig().Title, game.Configuration().Title)
	})

	t.Run("update after activation is rejected", func(t *testing.T) {
		svc, _, _, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())
		title := "Will it snow tomorrow?"

		err := svc.UpdateGame(ctx, gameID, GameUpdate{Title: &title})

		assert.ErrorIs(t, err, models.ErrIllegalStateTransition)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		svc, _, _, _, _ := createTestGameService(t)

		assert.NoError(t, svc.UpdateGame(ctx, "missing", GameUpdate{}))
	})

	t.Run("get missing game", func(t *testing.T) {
		svc, _, _, _, _ := createTestGameService(t)

		_, err := svc.GetGame(ctx, "missing")

		assert.ErrorIs(t, err, models.ErrGameNotFound)
	})

	t.Run("per-game locks are released after each call", func(t *testing.T) {
		svc, _, _, _, _ := createTestGameService(t)
		gameID := createActiveServiceGame(t, svc, createTestConfig())

		for i := 0; i < 20; i++ {
			missing := fmt.Sprintf("missing-%d", i)
			_, err := svc.AdmitStake(ctx, missing, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})
			assert.ErrorIs(t, err, models.ErrGameNotFound)
			assert.ErrorIs(t, svc.DispatchPendingEvents(ctx, missing), models.ErrGameNotFound)
			assert.ErrorIs(t, svc.Cancel(ctx, missing, "typo"), models.ErrGameNotFound)
		}
		_, err := svc.AdmitStake(ctx, gameID, models.Stake{UserID: "user1", SelectedOptionID: "yes", Amount: 100})
		require.NoError(t, err)

		assert.Equal(t, 0, svc.locks.Len())
	})
}

func TestGameService_CloseExpiredGames(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _, clock := createTestGameService(t)

	expired := createActiveServiceGame(t, svc, createTestConfig())
	later := createTestConfig()
	later.EndTime = testNow.Add(5 * time.Hour)
	later.SettlementTime = testNow.Add(6 * time.Hour)
	notYet := createActiveServiceGame(t, svc, later)

	clock.Set(testNow.Add(2 * time.Hour))
	closed, err := svc.CloseExpiredGames(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	game, _ := repo.FindByID(ctx, expired)
	assert.Equal(t, models.GameStatusEnded, game.Status())
	game, _ = repo.FindByID(ctx, notYet)
	assert.Equal(t, models.GameStatusActive, game.Status())

	t.Run("nothing left to close", func(t *testing.T) {
		closed, err := svc.CloseExpiredGames(ctx)

		require.NoError(t, err)
		assert.Zero(t, closed)
	})

	t.Run("listing failure", func(t *testing.T) {
		repo := new(MockGameRepository)
		repo.On("ListExpiredActive", ctx, mock.Anything).Return(nil, errors.New("db down"))
		svc := NewGameService(repo, newFakeLedger(), new(MockPrizePoolService), NewSettlementEngine(DefaultPayoutMultiplier), nil)

		_, err := svc.CloseExpiredGames(ctx)

		assert.ErrorContains(t, err, "failed to list expired games")
	})
}
