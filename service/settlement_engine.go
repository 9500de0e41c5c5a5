package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"moneywave/models"
	"moneywave/observability"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrPayoutOverflow reports a settlement whose amounts do not fit in int64
var ErrPayoutOverflow = errors.New("settlement amount exceeds int64 range")

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// DefaultPayoutMultiplier is the share of the stake pool winners collectively receive
var DefaultPayoutMultiplier = decimal.RequireFromString("1.8")

// SettlementEngine computes proportional payouts for an ended game and records them on the aggregate
type SettlementEngine struct {
	multiplier decimal.Decimal
}

// NewSettlementEngine creates an engine. A non-positive multiplier falls back to the default.
func NewSettlementEngine(multiplier decimal.Decimal) *SettlementEngine {
	if !multiplier.IsPositive() {
		multiplier = DefaultPayoutMultiplier
	}
	return &SettlementEngine{multiplier: multiplier}
}

// Settle validates the game, computes each winner's payout as
// floor(amount * totalStakePool * multiplier / totalWinningStake), and moves the game to settled.
// A game that already carries a receipt returns ErrAlreadySettled and is left untouched.
func (e *SettlementEngine) Settle(game *models.Game, winningOptionID string, now time.Time) (*models.SettlementReceipt, error) {
	if game.Receipt() != nil || game.Status() == models.GameStatusSettled {
		return nil, fmt.Errorf("%w: game %s", models.ErrAlreadySettled, game.ID())
	}
	if game.Status() != models.GameStatusEnded {
		return nil, fmt.Errorf("%w: game %s is %s", models.ErrInvalidStateForSettlement, game.ID(), game.Status())
	}
	config := game.Configuration()
	if !config.HasOption(winningOptionID) {
		return nil, fmt.Errorf("%w: %q is not an option of game %s", models.ErrUnknownOption, winningOptionID, game.ID())
	}

	receipt, err := e.computeReceipt(game.ID(), game.Stakes(), winningOptionID)
	if err != nil {
		return nil, err
	}
	e.checkAllocation(game, receipt)

	if err := game.RecordSettlement(receipt, now); err != nil {
		return nil, err
	}
	return game.Receipt(), nil
}

func (e *SettlementEngine) computeReceipt(gameID string, stakes []models.Stake, winningOptionID string) (models.SettlementReceipt, error) {
	var totalPool, totalWinning int64
	winners := make([]models.Stake, 0, len(stakes))
	for _, stake := range stakes {
		if stake.Amount > math.MaxInt64-totalPool {
			return models.SettlementReceipt{}, fmt.Errorf("%w: stake pool of game %s", ErrPayoutOverflow, gameID)
		}
		totalPool += stake.Amount
		if stake.SelectedOptionID == winningOptionID {
			totalWinning += stake.Amount
			winners = append(winners, stake)
		}
	}

	receipt := models.SettlementReceipt{
		GameID:           gameID,
		WinningOptionID:  winningOptionID,
		PerStakePayouts:  make(map[string]int64, len(winners)),
		TotalStakePool:   totalPool,
		WinnerCount:      len(winners),
		LoserCount:       len(stakes) - len(winners),
		PayoutMultiplier: e.multiplier.String(),
	}
	if totalWinning == 0 {
		return receipt, nil
	}

	// Rounding dust stays undistributed. Every payout and their sum are bounded by distributable.
	distributable := decimal.NewFromInt(totalPool).Mul(e.multiplier)
	if distributable.GreaterThan(maxAmount) {
		return models.SettlementReceipt{}, fmt.Errorf("%w: distributable pool %s of game %s",
			ErrPayoutOverflow, distributable.StringFixed(0), gameID)
	}
	denominator := decimal.NewFromInt(totalWinning)
	for _, winner := range winners {
		payout := floorDiv(decimal.NewFromInt(winner.Amount).Mul(distributable), denominator)
		receipt.PerStakePayouts[winner.ID] = payout
		receipt.TotalDistributed += payout
	}
	return receipt, nil
}

// checkAllocation reports settlements whose payout above the stake pool is larger than
// the prize budget committed at creation. Payouts are never capped here.
func (e *SettlementEngine) checkAllocation(game *models.Game, receipt models.SettlementReceipt) {
	subsidy := receipt.TotalDistributed - receipt.TotalStakePool
	if subsidy <= game.AllocatedPrizePool() {
		return
	}
	observability.AllocationOverruns.Inc()
	log.WithFields(log.Fields{
		"gameID":             game.ID(),
		"totalStakePool":     receipt.TotalStakePool,
		"totalDistributed":   receipt.TotalDistributed,
		"allocatedPrizePool": game.AllocatedPrizePool(),
		"overrun":            subsidy - game.AllocatedPrizePool(),
	}).Warn("Settlement payout exceeds allocated prize pool")
}
