package models

import (
	"time"

	"github.com/google/uuid"
)

// Currency identifies which token an amount is denominated in
type Currency string

const (
	CurrencyPMP Currency = "PMP" // stake currency
	CurrencyPMC Currency = "PMC" // reward currency
)

// GameEventType identifies an economic or domain event queued by a game
type GameEventType string

const (
	EventTypeStakeAdmitted    GameEventType = "stake_admitted"
	EventTypeStakeDebited     GameEventType = "stake_debited"
	EventTypeRewardCredited   GameEventType = "reward_credited"
	EventTypeGameSettled      GameEventType = "game_settled"
	EventTypeGameStateChanged GameEventType = "game_state_changed"
)

// GameEvent is an outbox entry waiting to be delivered to the ledger.
// ID is stable across redeliveries so consumers can deduplicate.
type GameEvent struct {
	ID             string        `json:"id"`
	Type           GameEventType `json:"type"`
	GameID         string        `json:"game_id"`
	StakeID        string        `json:"stake_id,omitempty"`
	UserID         string        `json:"user_id,omitempty"`
	Amount         int64         `json:"amount,omitempty"`
	Currency       Currency      `json:"currency,omitempty"`
	OptionID       string        `json:"option_id,omitempty"`
	OldStatus      GameStatus    `json:"old_status,omitempty"`
	NewStatus      GameStatus    `json:"new_status,omitempty"`
	WinnerCount    int           `json:"winner_count,omitempty"`
	LoserCount     int           `json:"loser_count,omitempty"`
	TotalStakePool int64         `json:"total_stake_pool,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

func newGameEvent(eventType GameEventType, gameID string, now time.Time) GameEvent {
	return GameEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		GameID:     gameID,
		OccurredAt: now,
	}
}
