package models

import (
	"time"
)

// StakeOutcome is the settlement result of a single stake
type StakeOutcome string

const (
	StakeOutcomeUnset StakeOutcome = ""
	StakeOutcomeWon   StakeOutcome = "won"
	StakeOutcomeLost  StakeOutcome = "lost"
)

// Stake is one user's committed PMP amount on a single option of a game
type Stake struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	GameID           string       `json:"game_id"`
	SelectedOptionID string       `json:"selected_option_id"`
	Amount           int64        `json:"amount"`
	Confidence       float64      `json:"confidence"`
	Reasoning        string       `json:"reasoning,omitempty"`
	Outcome          StakeOutcome `json:"outcome,omitempty"`
	Payout           int64        `json:"payout"`
	CreatedAt        time.Time    `json:"created_at"`
}

// IsSettled reports whether the stake has been marked won or lost
func (s Stake) IsSettled() bool {
	return s.Outcome != StakeOutcomeUnset
}

// validate checks the fields that do not depend on the owning game
func (s Stake) validate() error {
	if s.ID == "" {
		return NewValidationError("id", "must not be empty")
	}
	if s.UserID == "" {
		return NewValidationError("user_id", "must not be empty")
	}
	if !(s.Confidence >= 0 && s.Confidence <= 1) {
		return NewValidationError("confidence", "must be between 0 and 1, got %v", s.Confidence)
	}
	if len(s.Reasoning) > 2000 {
		return NewValidationError("reasoning", "must be at most 2000 characters")
	}
	return nil
}

// SettlementReceipt is the immutable record of a game's payout computation
type SettlementReceipt struct {
	GameID           string           `json:"game_id"`
	WinningOptionID  string           `json:"winning_option_id"`
	PerStakePayouts  map[string]int64 `json:"per_stake_payouts"`
	TotalStakePool   int64            `json:"total_stake_pool"`
	TotalDistributed int64            `json:"total_distributed"`
	WinnerCount      int              `json:"winner_count"`
	LoserCount       int              `json:"loser_count"`
	PayoutMultiplier string           `json:"payout_multiplier"`
	SettledAt        time.Time        `json:"settled_at"`
}

// PayoutFor returns the amount paid to stakeID, zero for losers
func (r SettlementReceipt) PayoutFor(stakeID string) int64 {
	return r.PerStakePayouts[stakeID]
}

func (r SettlementReceipt) clone() SettlementReceipt {
	out := r
	out.PerStakePayouts = make(map[string]int64, len(r.PerStakePayouts))
	for id, amount := range r.PerStakePayouts {
		out.PerStakePayouts[id] = amount
	}
	return out
}
