package service

import (
	"time"

	"moneywave/models"

	"github.com/shopspring/decimal"
)

const (
	minImportanceScore = 1.0
	maxImportanceScore = 5.0
	daysPerYear        = 365
)

var (
	minAllocationRatio = decimal.RequireFromString("0.05")
	maxAllocationRatio = decimal.RequireFromString("0.25")

	// A game created at the very end of its day still gets this share of its base ratio
	timeFloorRatio = decimal.RequireFromString("0.3")
	timeSlopeRatio = decimal.RequireFromString("0.7")
)

// PrizePoolAllocator computes the MoneyWave daily pool and per-game budgets.
// All methods are pure; the caller supplies the clock.
type PrizePoolAllocator struct {
	taxRate      decimal.Decimal
	interestRate decimal.Decimal
	location     *time.Location
}

// NewPrizePoolAllocator creates an allocator. Day boundaries are evaluated in location,
// which defaults to UTC when nil.
func NewPrizePoolAllocator(taxRate, interestRate decimal.Decimal, location *time.Location) *PrizePoolAllocator {
	if location == nil {
		location = time.UTC
	}
	return &PrizePoolAllocator{
		taxRate:      taxRate,
		interestRate: interestRate,
		location:     location,
	}
}

// ComputeDailyPool derives today's pool from projected revenue plus reclaimed and sponsor funds.
// Equal inputs always give an equal pool.
func (a *PrizePoolAllocator) ComputeDailyPool(inputs models.PrizePoolInputs, now time.Time) models.PrizePoolSnapshot {
	netShare := decimal.NewFromInt(1).Sub(a.taxRate).Sub(a.interestRate)
	netRevenue := decimal.NewFromInt(inputs.ExpectedAnnualRevenue).Mul(netShare)
	ebit := floorDiv(netRevenue, decimal.NewFromInt(daysPerYear))
	if ebit < 0 {
		ebit = 0
	}

	redistributed := max(inputs.RedistributedPool, 0)
	sponsor := max(inputs.SponsorPool, 0)

	return models.PrizePoolSnapshot{
		EbitBasedPool:     ebit,
		RedistributedPool: redistributed,
		SponsorPool:       sponsor,
		TotalDailyPool:    ebit + redistributed + sponsor,
		ComputedAt:        now,
	}
}

// AllocateToGame returns floor(totalDailyPool * ratio) where ratio grows with importance
// and shrinks as less of the game's final day remains. The result is always within
// [0, totalDailyPool * 0.25].
func (a *PrizePoolAllocator) AllocateToGame(totalDailyPool int64, importanceScore float64, gameEndTime, now time.Time) int64 {
	if totalDailyPool <= 0 {
		return 0
	}

	score := decimal.NewFromFloat(clampFloat(importanceScore, minImportanceScore, maxImportanceScore))
	normalized := score.Sub(decimal.NewFromFloat(minImportanceScore)).
		Div(decimal.NewFromFloat(maxImportanceScore - minImportanceScore))
	baseRatio := minAllocationRatio.Add(maxAllocationRatio.Sub(minAllocationRatio).Mul(normalized))

	remaining := a.endOfDay(gameEndTime).Sub(now)
	timeRatio := decimal.NewFromInt(int64(remaining)).Div(decimal.NewFromInt(int64(24 * time.Hour)))
	timeRatio = decimal.Max(decimal.Zero, decimal.Min(decimal.NewFromInt(1), timeRatio))

	ratio := baseRatio.Mul(timeFloorRatio.Add(timeSlopeRatio.Mul(timeRatio)))
	ratio = decimal.Min(ratio, maxAllocationRatio)

	return floorDiv(decimal.NewFromInt(totalDailyPool).Mul(ratio), decimal.NewFromInt(1))
}

// endOfDay returns the midnight that closes the calendar day containing t
func (a *PrizePoolAllocator) endOfDay(t time.Time) time.Time {
	local := t.In(a.location)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, a.location)
}

// floorDiv returns floor(num / den) for non-negative operands whose quotient fits in int64
func floorDiv(num, den decimal.Decimal) int64 {
	quotient, _ := num.QuoRem(den, 0)
	return quotient.IntPart()
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	return min(max(v, lo), hi)
}
