package models

import (
	"fmt"
	"time"
)

// GameStatus represents the lifecycle state of a game
type GameStatus string

const (
	GameStatusCreated   GameStatus = "created"
	GameStatusActive    GameStatus = "active"
	GameStatusEnded     GameStatus = "ended"
	GameStatusSettled   GameStatus = "settled"
	GameStatusCancelled GameStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible from the status
func (s GameStatus) IsTerminal() bool {
	return s == GameStatusSettled || s == GameStatusCancelled
}

// legalTransitions lists every allowed move of the lifecycle FSM
var legalTransitions = map[GameStatus][]GameStatus{
	GameStatusCreated: {GameStatusActive, GameStatusCancelled},
	GameStatusActive:  {GameStatusEnded, GameStatusCancelled},
	GameStatusEnded:   {GameStatusSettled},
}

// CanTransitionTo reports whether the FSM allows moving from s to next
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PredictionType tags the shape of the option set
type PredictionType string

const (
	PredictionTypeBinary      PredictionType = "binary"
	PredictionTypeWinDrawLose PredictionType = "win_draw_lose"
	PredictionTypeRanking     PredictionType = "ranking"
)

// ImportanceLevel is the business-assigned importance tier of a game
type ImportanceLevel string

const (
	ImportanceLow      ImportanceLevel = "low"
	ImportanceMedium   ImportanceLevel = "medium"
	ImportanceHigh     ImportanceLevel = "high"
	ImportanceCritical ImportanceLevel = "critical"
)

// DifficultyLevel is the business-assigned difficulty tier of a game
type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
	DifficultyExpert DifficultyLevel = "expert"
)

// GameOption is one selectable outcome of a game
type GameOption struct {
	ID          string `json:"id" validate:"nonblank,max=64"`
	Label       string `json:"label" validate:"nonblank,max=200"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

// Amount limits that keep stake pools and payouts inside int64.
// The maximum_stake validation tag mirrors MaxStakeAmount.
const (
	MaxStakeAmount int64 = 1_000_000_000_000
	MaxStakePool   int64 = 1_000_000_000_000_000
)

// GameConfiguration holds the terms of a game. It is frozen once the game leaves the created state.
type GameConfiguration struct {
	Title           string          `json:"title" validate:"nonblank,min=5,max=200"`
	Description     string          `json:"description" validate:"min=10,max=2000"`
	Options         []GameOption    `json:"options" validate:"min=2,max=20,unique=ID,dive"`
	StartTime       time.Time       `json:"start_time" validate:"nonzerotime"`
	EndTime         time.Time       `json:"end_time" validate:"gtfield=StartTime"`
	SettlementTime  time.Time       `json:"settlement_time" validate:"gtfield=EndTime"`
	MinimumStake    int64           `json:"minimum_stake" validate:"gte=1"`
	MaximumStake    int64           `json:"maximum_stake" validate:"gtfield=MinimumStake,lte=1000000000000"`
	MaxParticipants *int            `json:"max_participants,omitempty" validate:"omitempty,gte=1"`
	PredictionType  PredictionType  `json:"prediction_type" validate:"oneof=binary win_draw_lose ranking"`
	ImportanceLevel ImportanceLevel `json:"importance_level,omitempty" validate:"omitempty,oneof=low medium high critical"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level,omitempty" validate:"omitempty,oneof=easy medium hard expert"`
}

// HasOption checks if optionID is one of the configured options
func (c GameConfiguration) HasOption(optionID string) bool {
	for _, option := range c.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}

func (c GameConfiguration) clone() GameConfiguration {
	out := c
	out.Options = append([]GameOption(nil), c.Options...)
	if c.MaxParticipants != nil {
		limit := *c.MaxParticipants
		out.MaxParticipants = &limit
	}
	return out
}

// normalize strips monotonic readings and sub-microsecond precision so a stored copy compares equal
func (c *GameConfiguration) normalize() {
	c.StartTime = normalizeTime(c.StartTime)
	c.EndTime = normalizeTime(c.EndTime)
	c.SettlementTime = normalizeTime(c.SettlementTime)
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Microsecond)
}

// Game is the aggregate root for a prediction game. It is not safe for concurrent use;
// callers serialize mutations per game id.
type Game struct {
	id                 string
	creatorID          string
	config             GameConfiguration
	status             GameStatus
	allocatedPrizePool int64
	stakes             []*Stake
	stakeIndex         map[string]int
	userIndex          map[string]string
	receipt            *SettlementReceipt
	cancelReason       string
	createdAt          time.Time
	updatedAt          time.Time
	deletedAt          *time.Time
	pending            []GameEvent
}

// CreateGame validates the configuration and builds a new game in the created state.
// allocatedPrizePool is the prize budget committed from the daily pool.
func CreateGame(id string, config GameConfiguration, creatorID string, allocatedPrizePool int64, now time.Time) (*Game, error) {
	if id == "" {
		return nil, NewValidationError("id", "must not be empty")
	}
	if creatorID == "" {
		return nil, NewValidationError("creator_id", "must not be empty")
	}
	if allocatedPrizePool < 0 {
		return nil, NewValidationError("allocated_prize_pool", "must not be negative")
	}

	config = config.clone()
	config.normalize()
	if config.ImportanceLevel == "" {
		config.ImportanceLevel = ImportanceMedium
	}
	if config.DifficultyLevel == "" {
		config.DifficultyLevel = DifficultyMedium
	}
	if err := ValidateConfiguration(config); err != nil {
		return nil, err
	}

	now = normalizeTime(now)
	return &Game{
		id:                 id,
		creatorID:          creatorID,
		config:             config,
		status:             GameStatusCreated,
		allocatedPrizePool: allocatedPrizePool,
		stakeIndex:         make(map[string]int),
		userIndex:          make(map[string]string),
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// ID returns the game id
func (g *Game) ID() string { return g.id }

// CreatorID returns the id of the user who created the game
func (g *Game) CreatorID() string { return g.creatorID }

// Status returns the current lifecycle state
func (g *Game) Status() GameStatus { return g.status }

// Configuration returns a copy of the game terms
func (g *Game) Configuration() GameConfiguration { return g.config.clone() }

// AllocatedPrizePool returns the prize budget committed at creation
func (g *Game) AllocatedPrizePool() int64 { return g.allocatedPrizePool }

// CancelReason returns why the game was cancelled, if it was
func (g *Game) CancelReason() string { return g.cancelReason }

// IsDeleted reports whether the game has been soft-deleted
func (g *Game) IsDeleted() bool { return g.deletedAt != nil }

// ParticipantCount returns the number of admitted stakes
func (g *Game) ParticipantCount() int { return len(g.stakes) }

// Stakes returns copies of the admitted stakes in admission order
func (g *Game) Stakes() []Stake {
	out := make([]Stake, 0, len(g.stakes))
	for _, stake := range g.stakes {
		out = append(out, *stake)
	}
	return out
}

func (g *Game) stakePool() int64 {
	var pool int64
	for _, stake := range g.stakes {
		pool += stake.Amount
	}
	return pool
}

// StakeByUser returns the stake placed by userID, if any
func (g *Game) StakeByUser(userID string) (Stake, bool) {
	stakeID, ok := g.userIndex[userID]
	if !ok {
		return Stake{}, false
	}
	return *g.stakes[g.stakeIndex[stakeID]], true
}

// Receipt returns a copy of the settlement receipt, or nil before settlement
func (g *Game) Receipt() *SettlementReceipt {
	if g.receipt == nil {
		return nil
	}
	receipt := g.receipt.clone()
	return &receipt
}

// PendingEvents returns the queued events that have not been dispatched yet
func (g *Game) PendingEvents() []GameEvent {
	return append([]GameEvent(nil), g.pending...)
}

// MarkEventsDispatched drops the given events from the outbox
func (g *Game) MarkEventsDispatched(eventIDs []string) {
	if len(eventIDs) == 0 {
		return
	}
	done := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		done[id] = true
	}
	remaining := g.pending[:0]
	for _, event := range g.pending {
		if !done[event.ID] {
			remaining = append(remaining, event)
		}
	}
	g.pending = remaining
}

// Activate opens the game for stakes
func (g *Game) Activate(now time.Time) error {
	return g.transition(GameStatusActive, now)
}

// Close ends the betting window; the game then awaits its result
func (g *Game) Close(now time.Time) error {
	return g.transition(GameStatusEnded, now)
}

// Cancel voids the game. An active game with admitted stakes cannot be cancelled.
func (g *Game) Cancel(reason string, now time.Time) error {
	if !g.status.CanTransitionTo(GameStatusCancelled) {
		return g.illegalTransition(GameStatusCancelled)
	}
	if g.status == GameStatusActive && len(g.stakes) > 0 {
		return fmt.Errorf("%w: cannot cancel active game %s with %d admitted stakes",
			ErrIllegalStateTransition, g.id, len(g.stakes))
	}
	if err := g.transition(GameStatusCancelled, now); err != nil {
		return err
	}
	g.cancelReason = reason
	return nil
}

// MarkDeleted soft-deletes a finished game. The record and its status are retained.
func (g *Game) MarkDeleted(now time.Time) error {
	if !g.status.IsTerminal() {
		return fmt.Errorf("%w: game %s must be settled or cancelled before deletion (status: %s)",
			ErrIllegalStateTransition, g.id, g.status)
	}
	if g.deletedAt != nil {
		return nil
	}
	now = normalizeTime(now)
	g.deletedAt = &now
	g.updatedAt = now
	return nil
}

// AdmitStake validates and appends a stake. The stake's GameID is set to this game.
func (g *Game) AdmitStake(stake Stake, now time.Time) error {
	if g.status != GameStatusActive {
		return fmt.Errorf("%w: game %s is not accepting stakes (status: %s)",
			ErrIllegalStateTransition, g.id, g.status)
	}
	if !now.Before(g.config.EndTime) {
		return fmt.Errorf("%w: game %s stopped accepting stakes at %s",
			ErrBettingClosed, g.id, g.config.EndTime.Format(time.RFC3339))
	}
	if g.config.MaxParticipants != nil && len(g.stakes) >= *g.config.MaxParticipants {
		return fmt.Errorf("%w: %d of %d participants", ErrCapacityExceeded, len(g.stakes), *g.config.MaxParticipants)
	}
	if stake.Amount < g.config.MinimumStake || stake.Amount > g.config.MaximumStake {
		return NewValidationError("amount", "must be between %d and %d, got %d",
			g.config.MinimumStake, g.config.MaximumStake, stake.Amount)
	}
	if pool := g.stakePool(); pool > MaxStakePool-stake.Amount {
		return fmt.Errorf("%w: stake pool of game %s would exceed %d", ErrCapacityExceeded, g.id, MaxStakePool)
	}
	if !g.config.HasOption(stake.SelectedOptionID) {
		return fmt.Errorf("%w: %q is not an option of game %s", ErrUnknownOption, stake.SelectedOptionID, g.id)
	}
	if _, exists := g.userIndex[stake.UserID]; exists {
		return fmt.Errorf("%w: user %s in game %s", ErrDuplicateParticipation, stake.UserID, g.id)
	}
	if err := stake.validate(); err != nil {
		return err
	}
	if _, exists := g.stakeIndex[stake.ID]; exists {
		return NewValidationError("id", "stake %s already exists", stake.ID)
	}
	if stake.GameID != "" && stake.GameID != g.id {
		return NewValidationError("game_id", "stake targets game %s, not %s", stake.GameID, g.id)
	}

	now = normalizeTime(now)
	stake.GameID = g.id
	stake.Outcome = StakeOutcomeUnset
	stake.Payout = 0
	stake.CreatedAt = now

	g.stakeIndex[stake.ID] = len(g.stakes)
	g.userIndex[stake.UserID] = stake.ID
	g.stakes = append(g.stakes, &stake)
	g.updatedAt = now

	admitted := newGameEvent(EventTypeStakeAdmitted, g.id, now)
	admitted.StakeID = stake.ID
	admitted.UserID = stake.UserID
	admitted.OptionID = stake.SelectedOptionID
	admitted.Amount = stake.Amount
	admitted.Currency = CurrencyPMP

	debited := newGameEvent(EventTypeStakeDebited, g.id, now)
	debited.StakeID = stake.ID
	debited.UserID = stake.UserID
	debited.Amount = stake.Amount
	debited.Currency = CurrencyPMP

	g.pending = append(g.pending, admitted, debited)
	return nil
}

// RecordSettlement applies a computed receipt: marks every stake won or lost,
// attaches the receipt, and moves the game to settled.
func (g *Game) RecordSettlement(receipt SettlementReceipt, now time.Time) error {
	if g.receipt != nil || g.status == GameStatusSettled {
		return fmt.Errorf("%w: game %s", ErrAlreadySettled, g.id)
	}
	if g.status != GameStatusEnded {
		return fmt.Errorf("%w: game %s is %s", ErrInvalidStateForSettlement, g.id, g.status)
	}
	if !g.config.HasOption(receipt.WinningOptionID) {
		return fmt.Errorf("%w: %q is not an option of game %s", ErrUnknownOption, receipt.WinningOptionID, g.id)
	}
	if receipt.GameID != g.id {
		return NewValidationError("game_id", "receipt is for game %s, not %s", receipt.GameID, g.id)
	}
	for stakeID := range receipt.PerStakePayouts {
		if _, ok := g.stakeIndex[stakeID]; !ok {
			return NewValidationError("per_stake_payouts", "unknown stake %s", stakeID)
		}
	}

	now = normalizeTime(now)
	receipt = receipt.clone()
	receipt.SettledAt = now

	var rewards []GameEvent
	for _, stake := range g.stakes {
		if stake.SelectedOptionID != receipt.WinningOptionID {
			stake.Outcome = StakeOutcomeLost
			stake.Payout = 0
			continue
		}
		stake.Outcome = StakeOutcomeWon
		stake.Payout = receipt.PerStakePayouts[stake.ID]

		credited := newGameEvent(EventTypeRewardCredited, g.id, now)
		credited.StakeID = stake.ID
		credited.UserID = stake.UserID
		credited.Amount = stake.Payout
		credited.Currency = CurrencyPMC
		rewards = append(rewards, credited)
	}

	old := g.status
	g.status = GameStatusSettled
	g.receipt = &receipt
	g.updatedAt = now

	settled := newGameEvent(EventTypeGameSettled, g.id, now)
	settled.OptionID = receipt.WinningOptionID
	settled.Amount = receipt.TotalDistributed
	settled.Currency = CurrencyPMC
	settled.WinnerCount = receipt.WinnerCount
	settled.LoserCount = receipt.LoserCount
	settled.TotalStakePool = receipt.TotalStakePool
	settled.OldStatus = old
	settled.NewStatus = GameStatusSettled

	g.pending = append(g.pending, rewards...)
	g.pending = append(g.pending, settled)
	return nil
}

func (g *Game) transition(next GameStatus, now time.Time) error {
	if !g.status.CanTransitionTo(next) {
		return g.illegalTransition(next)
	}
	now = normalizeTime(now)
	old := g.status
	g.status = next
	g.updatedAt = now

	changed := newGameEvent(EventTypeGameStateChanged, g.id, now)
	changed.OldStatus = old
	changed.NewStatus = next
	g.pending = append(g.pending, changed)
	return nil
}

func (g *Game) illegalTransition(next GameStatus) error {
	return fmt.Errorf("%w: game %s cannot move from %s to %s", ErrIllegalStateTransition, g.id, g.status, next)
}
