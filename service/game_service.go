package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneywave/concurrency"
	"moneywave/events"
	"moneywave/models"
	"moneywave/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// errSkip aborts a mutation without saving and without reporting an error
var errSkip = errors.New("skip")

// GameUpdate carries the terms to change on a game that has not been activated.
// Nil fields are left unchanged.
type GameUpdate struct {
	Title           *string
	Description     *string
	StartTime       *time.Time
	EndTime         *time.Time
	SettlementTime  *time.Time
	MinimumStake    *int64
	MaximumStake    *int64
	MaxParticipants *int
	Options         []models.GameOption
}

func (u GameUpdate) isEmpty() bool {
	return u.Title == nil && u.Description == nil && u.StartTime == nil && u.EndTime == nil &&
		u.SettlementTime == nil && u.MinimumStake == nil && u.MaximumStake == nil &&
		u.MaxParticipants == nil && u.Options == nil
}

func (u GameUpdate) apply(c *models.GameConfiguration) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.StartTime != nil {
		c.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		c.EndTime = *u.EndTime
	}
	if u.SettlementTime != nil {
		c.SettlementTime = *u.SettlementTime
	}
	if u.MinimumStake != nil {
		c.MinimumStake = *u.MinimumStake
	}
	if u.MaximumStake != nil {
		c.MaximumStake = *u.MaximumStake
	}
	if u.MaxParticipants != nil {
		limit := *u.MaxParticipants
		c.MaxParticipants = &limit
	}
	if u.Options != nil {
		c.Options = append([]models.GameOption(nil), u.Options...)
	}
}

type gameService struct {
	repo       GameRepository
	ledger     StakeLedgerGateway
	prizePool  PrizePoolService
	engine     *SettlementEngine
	dispatcher *events.Dispatcher
	locks      *concurrency.LockManager
	now        func() time.Time
}

// NewGameService creates a new game service. Outbox events are emitted through ledger and
// then forwarded to bus, which may be nil.
func NewGameService(repo GameRepository, ledger StakeLedgerGateway, prizePool PrizePoolService, engine *SettlementEngine, bus *events.Bus) GameService {
	return &gameService{
		repo:       repo,
		ledger:     ledger,
		prizePool:  prizePool,
		engine:     engine,
		dispatcher: events.NewDispatcher(ledger, bus),
		locks:      concurrency.NewLockManager(),
		now:        time.Now,
	}
}

// CreateGame validates the configuration, commits a prize budget from today's pool and stores the game
func (s *gameService) CreateGame(ctx context.Context, config models.GameConfiguration, creatorID string) (string, error) {
	if err := models.ValidateConfiguration(config); err != nil {
		return "", err
	}
	if creatorID == "" {
		return "", models.NewValidationError("creator_id", "must not be empty")
	}

	pool, err := s.prizePool.ComputeDailyPool(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to compute daily prize pool: %w", err)
	}
	score := ImportanceScore(config.ImportanceLevel, config.DifficultyLevel)
	allocation := s.prizePool.AllocateToGame(pool.TotalDailyPool, score, config.EndTime)

	game, err := models.CreateGame(uuid.NewString(), config, creatorID, allocation, s.now())
	if err != nil {
		return "", err
	}
	if err := s.repo.Save(ctx, game); err != nil {
		return "", fmt.Errorf("failed to save game: %w", err)
	}

	observability.GamesCreated.Inc()
	observability.PrizePoolAllocated.Add(float64(allocation))
	log.WithFields(log.Fields{
		"gameID":             game.ID(),
		"creatorID":          creatorID,
		"importanceScore":    score,
		"allocatedPrizePool": allocation,
		"totalDailyPool":     pool.TotalDailyPool,
	}).Info("Created game")

	return game.ID(), nil
}

// GetGame returns a copy of the stored game state
func (s *gameService) GetGame(ctx context.Context, gameID string) (*models.GameSnapshot, error) {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, gameID)
	}
	snap := game.Snapshot()
	return &snap, nil
}

// Activate opens a created game for stakes
func (s *gameService) Activate(ctx context.Context, gameID string) error {
	_, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		return game.Activate(s.now())
	})
	return err
}

// AdmitStake checks the user's PMP balance and admits the stake into an active game
func (s *gameService) AdmitStake(ctx context.Context, gameID string, stake models.Stake) (*models.Stake, error) {
	if stake.UserID == "" {
		return nil, models.NewValidationError("user_id", "must not be empty")
	}
	if stake.ID == "" {
		stake.ID = uuid.NewString()
	}

	balance, err := s.ledger.GetBalance(ctx, stake.UserID, models.CurrencyPMP)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance < stake.Amount {
		observability.StakesRejected.WithLabelValues(string(models.KindInsufficientBalance)).Inc()
		return nil, fmt.Errorf("%w: user %s has %d PMP, stake needs %d",
			models.ErrInsufficientBalance, stake.UserID, balance, stake.Amount)
	}

	game, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		return game.AdmitStake(stake, s.now())
	})
	if err != nil {
		observability.StakesRejected.WithLabelValues(string(models.KindOf(err))).Inc()
		return nil, err
	}

	admitted, _ := game.StakeByUser(stake.UserID)
	log.WithFields(log.Fields{
		"gameID":   gameID,
		"stakeID":  admitted.ID,
		"userID":   admitted.UserID,
		"optionID": admitted.SelectedOptionID,
		"amount":   admitted.Amount,
	}).Info("Admitted stake")
	return &admitted, nil
}

// Close ends the betting window of an active game
func (s *gameService) Close(ctx context.Context, gameID string) error {
	_, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		return game.Close(s.now())
	})
	return err
}

// Cancel voids a created game, or an active game with no stakes
func (s *gameService) Cancel(ctx context.Context, gameID string, reason string) error {
	_, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		return game.Cancel(reason, s.now())
	})
	if err == nil {
		log.WithFields(log.Fields{"gameID": gameID, "reason": reason}).Info("Cancelled game")
	}
	return err
}

// UpdateGame changes terms of a game still in the created state. All fields are applied
// together and validated once, so related fields such as end and settlement time can move as a pair.
func (s *gameService) UpdateGame(ctx context.Context, gameID string, update GameUpdate) error {
	if update.isEmpty() {
		return nil
	}
	_, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		return game.Amend(s.now(), update.apply)
	})
	return err
}

// DeleteGame soft-deletes a settled or cancelled game
func (s *gameService) DeleteGame(ctx context.Context, gameID string) error {
	_, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		return game.MarkDeleted(s.now())
	})
	return err
}

// Settle computes and records payouts for an ended game exactly once. A repeated call
// returns the stored receipt together with ErrAlreadySettled and retries any undelivered events.
func (s *gameService) Settle(ctx context.Context, gameID string, winningOptionID string) (*models.SettlementReceipt, error) {
	var receipt *models.SettlementReceipt
	game, err := s.mutate(ctx, gameID, func(game *models.Game) error {
		start := time.Now()
		r, err := s.engine.Settle(game, winningOptionID, s.now())
		if err != nil {
			return err
		}
		observability.SettlementDuration.Observe(time.Since(start).Seconds())
		receipt = r
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadySettled) && game != nil {
			return game.Receipt(), err
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"gameID":           gameID,
		"winningOptionID":  receipt.WinningOptionID,
		"totalStakePool":   receipt.TotalStakePool,
		"totalDistributed": receipt.TotalDistributed,
		"winnerCount":      receipt.WinnerCount,
		"loserCount":       receipt.LoserCount,
	}).Info("Settled game")
	return receipt, nil
}

// CloseExpiredGames closes every active game whose end time has passed. Failures on one
// game do not stop the others; they are joined into the returned error.
func (s *gameService) CloseExpiredGames(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired games: %w", err)
	}

	closed := 0
	var errs []error
	for _, id := range ids {
		_, err := s.mutate(ctx, id, func(game *models.Game) error {
			// Re-check under the lock; the listing may be stale
			if game.Status() != models.GameStatusActive || now.Before(game.Configuration().EndTime) {
				return errSkip
			}
			return game.Close(now)
		})
		switch {
		case err == nil:
			closed++
		case errors.Is(err, errSkip), errors.Is(err, models.ErrGameNotFound):
		default:
			errs = append(errs, fmt.Errorf("failed to close game %s: %w", id, err))
		}
	}

	if closed > 0 {
		log.WithFields(log.Fields{"closed": closed, "expired": len(ids)}).Info("Closed expired games")
	}
	return closed, errors.Join(errs...)
}

// DispatchPendingEvents retries delivery of a game's outbox
func (s *gameService) DispatchPendingEvents(ctx context.Context, gameID string) error {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return fmt.Errorf("%w: %s", models.ErrGameNotFound, gameID)
	}
	return s.dispatch(ctx, game)
}

// DispatchAllPending retries delivery for up to limit games with pending events and
// returns how many games were fully flushed
func (s *gameService) DispatchAllPending(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.ListWithPendingEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list games with pending events: %w", err)
	}

	flushed := 0
	var errs []error
	for _, id := range ids {
		if err := s.DispatchPendingEvents(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("game %s: %w", id, err))
			continue
		}
		flushed++
	}
	return flushed, errors.Join(errs...)
}

// mutate loads a game under its lock, applies fn, saves, and flushes the outbox.
// Events left over from an earlier call are flushed before fn runs so a retried call
// delivers them even when fn itself is rejected. The loaded game is returned alongside
// any error fn produces; errSkip from fn is passed through untouched.
func (s *gameService) mutate(ctx context.Context, gameID string, fn func(*models.Game) error) (*models.Game, error) {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, gameID)
	}

	if len(game.PendingEvents()) > 0 {
		s.dispatchLogged(ctx, game)
	}

	if err := fn(game); err != nil {
		return game, err
	}

	if err := s.repo.Save(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to save game: %w", err)
	}

	s.dispatchLogged(ctx, game)
	return game, nil
}

// dispatchLogged flushes the outbox after the state change is durable. A failure only
// delays delivery: the events stay pending and are retried later.
func (s *gameService) dispatchLogged(ctx context.Context, game *models.Game) {
	if err := s.dispatch(ctx, game); err != nil {
		log.WithFields(log.Fields{
			"gameID":  game.ID(),
			"pending": len(game.PendingEvents()),
			"error":   err,
		}).Warn("Game events left pending for retry")
	}
}

func (s *gameService) dispatch(ctx context.Context, game *models.Game) error {
	pending := game.PendingEvents()
	if len(pending) == 0 {
		return nil
	}

	dispatched, dispatchErr := s.dispatcher.Dispatch(ctx, pending)
	if len(dispatched) > 0 {
		if err := s.repo.MarkEventsDispatched(ctx, game.ID(), dispatched); err != nil {
			return fmt.Errorf("failed to mark events dispatched: %w", err)
		}
		game.MarkEventsDispatched(dispatched)
	}
	if dispatchErr != nil {
		observability.EventDispatchFailures.Inc()
		return dispatchErr
	}
	return nil
}
