package models

import (
	"time"
)

// PrizePoolInputs are the external figures the daily MoneyWave pool is computed from
type PrizePoolInputs struct {
	ExpectedAnnualRevenue int64 `json:"expected_annual_revenue"`
	RedistributedPool     int64 `json:"redistributed_pool"` // reclaimed from inactive balances
	SponsorPool           int64 `json:"sponsor_pool"`
}

// PrizePoolSnapshot is the daily pool computed for a single call. It is never stored as mutable state.
type PrizePoolSnapshot struct {
	EbitBasedPool     int64     `json:"ebit_based_pool"`
	RedistributedPool int64     `json:"redistributed_pool"`
	SponsorPool       int64     `json:"sponsor_pool"`
	TotalDailyPool    int64     `json:"total_daily_pool"`
	ComputedAt        time.Time `json:"computed_at"`
}

// SponsorContribution is an external sponsor's funding for a day's prize pool
type SponsorContribution struct {
	ID            string    `json:"id"`
	SponsorID     string    `json:"sponsor_id"`
	Amount        int64     `json:"amount"`
	Note          string    `json:"note,omitempty"`
	ContributedAt time.Time `json:"contributed_at"`
}
