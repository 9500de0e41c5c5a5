package service

import (
	"context"
	"time"

	"moneywave/models"
)

// GameRepository defines durable storage for game aggregates
type GameRepository interface {
	// Save persists the full aggregate, including its stakes, receipt and pending events
	Save(ctx context.Context, game *models.Game) error

	// FindByID loads a game, returning nil without error when it does not exist
	FindByID(ctx context.Context, id string) (*models.Game, error)

	// MarkEventsDispatched records that the given outbox events reached the ledger
	MarkEventsDispatched(ctx context.Context, gameID string, eventIDs []string) error

	// ListExpiredActive returns ids of active games whose betting window ended at or before now
	ListExpiredActive(ctx context.Context, now time.Time) ([]string, error)

	// ListWithPendingEvents returns ids of games holding undispatched outbox events
	ListWithPendingEvents(ctx context.Context, limit int) ([]string, error)
}

// SponsorContributionRepository defines storage for external sponsor funding
type SponsorContributionRepository interface {
	// Create records a new contribution
	Create(ctx context.Context, contribution *models.SponsorContribution) error

	// SponsorTotalForDay sums the contributions received on the calendar day containing day
	SponsorTotalForDay(ctx context.Context, day time.Time) (int64, error)
}

// StakeLedgerGateway is the boundary to the balance ledger
type StakeLedgerGateway interface {
	// GetBalance returns the current balance of userID in the given currency
	GetBalance(ctx context.Context, userID string, currency models.Currency) (int64, error)

	// EmitEvent appends an economic or domain event for the ledger to apply.
	// Delivery is at-least-once; the event id lets the ledger deduplicate.
	EmitEvent(ctx context.Context, event models.GameEvent) error
}

// InactiveBalanceReader reports balances that can be reclaimed into the daily pool
type InactiveBalanceReader interface {
	// InactiveBalanceTotal sums balances in currency untouched for at least inactiveFor
	InactiveBalanceTotal(ctx context.Context, currency models.Currency, inactiveFor time.Duration) (int64, error)
}

// GameService defines the lifecycle operations exposed to the API layer
type GameService interface {
	// CreateGame validates the configuration, commits a prize budget from today's pool and stores the game
	CreateGame(ctx context.Context, config models.GameConfiguration, creatorID string) (string, error)

	// GetGame returns a copy of the stored game state
	GetGame(ctx context.Context, gameID string) (*models.GameSnapshot, error)

	// Activate opens a created game for stakes
	Activate(ctx context.Context, gameID string) error

	// AdmitStake checks the user's PMP balance and admits the stake into an active game
	AdmitStake(ctx context.Context, gameID string, stake models.Stake) (*models.Stake, error)

	// Close ends the betting window of an active game
	Close(ctx context.Context, gameID string) error

	// Cancel voids a created game, or an active game with no stakes
	Cancel(ctx context.Context, gameID string, reason string) error

	// UpdateGame changes terms of a game still in the created state
	UpdateGame(ctx context.Context, gameID string, update GameUpdate) error

	// DeleteGame soft-deletes a settled or cancelled game
	DeleteGame(ctx context.Context, gameID string) error

	// Settle computes and records payouts for an ended game exactly once
	Settle(ctx context.Context, gameID string, winningOptionID string) (*models.SettlementReceipt, error)

	// CloseExpiredGames closes every active game whose end time has passed
	CloseExpiredGames(ctx context.Context) (int, error)

	// DispatchPendingEvents retries delivery of a game's outbox
	DispatchPendingEvents(ctx context.Context, gameID string) error

	// DispatchAllPending retries delivery for up to limit games with pending events
	DispatchAllPending(ctx context.Context, limit int) (int, error)
}

// PrizePoolService defines the MoneyWave pool operations
type PrizePoolService interface {
	// ComputeDailyPool gathers today's inputs and computes the shared daily pool
	ComputeDailyPool(ctx context.Context) (models.PrizePoolSnapshot, error)

	// AllocateToGame returns the share of totalDailyPool committed to a single game
	AllocateToGame(totalDailyPool int64, importanceScore float64, gameEndTime time.Time) int64

	// RecordSponsorContribution stores external funding that joins today's pool
	RecordSponsorContribution(ctx context.Context, sponsorID string, amount int64, note string) (*models.SponsorContribution, error)
}
