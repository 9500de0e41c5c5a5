// Standalone payout analysis tool for the settlement engine.
// Runs randomized games through the real engine and reports how much of each
// payout is funded by the prize pool rather than by losing stakes.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"moneywave/models"
	"moneywave/service"

	"github.com/shopspring/decimal"
)

type scenario struct {
	Players        int
	WinProbability float64
	Allocated      int64
	Rounds         int
}

type result struct {
	Rounds           int
	TotalStaked      int64
	TotalDistributed int64
	Overruns         int
	NoWinnerRounds   int
}

// SubsidyRatio is the share of distributed PMC not covered by the stake pool
func (r result) SubsidyRatio() float64 {
	if r.TotalDistributed == 0 {
		return 0
	}
	return float64(r.TotalDistributed-r.TotalStaked) / float64(r.TotalDistributed)
}

func main() {
	rounds := flag.Int("rounds", 2000, "games simulated per scenario")
	multiplier := flag.String("multiplier", "1.8", "payout multiplier")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	engine := service.NewSettlementEngine(decimal.RequireFromString(*multiplier))
	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("=== Settlement payout analysis (multiplier %s, seed %d) ===\n\n", *multiplier, *seed)
	for _, players := range []int{2, 10, 50} {
		for _, p := range []float64{0.1, 0.3, 0.5, 0.7} {
			s := scenario{Players: players, WinProbability: p, Allocated: 50_000, Rounds: *rounds}
			r, err := simulate(engine, rng, s)
			if err != nil {
				fmt.Printf("players=%d p=%.2f: %v\n", players, p, err)
				continue
			}
			fmt.Printf("players=%3d | win share %.0f%% | staked %10d | paid %10d | subsidy %6.2f%% | overruns %4d | no winner %4d\n",
				players, p*100, r.TotalStaked, r.TotalDistributed, r.SubsidyRatio()*100, r.Overruns, r.NoWinnerRounds)
		}
	}
}

func simulate(engine *service.SettlementEngine, rng *rand.Rand, s scenario) (result, error) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	config := models.GameConfiguration{
		Title:       "Simulated binary game",
		Description: "Randomized game used for payout analysis.",
		Options: []models.GameOption{
			{ID: "yes", Label: "Yes"},
			{ID: "no", Label: "No"},
		},
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		SettlementTime: start.Add(2 * time.Hour),
		MinimumStake:   10,
		MaximumStake:   10_000,
		PredictionType: models.PredictionTypeBinary,
	}

	var out result
	for round := 0; round < s.Rounds; round++ {
		game, err := models.CreateGame(fmt.Sprintf("sim-%d", round), config, "simulator", s.Allocated, start)
		if err != nil {
			return out, err
		}
		if err := game.Activate(start); err != nil {
			return out, err
		}
		for i := 0; i < s.Players; i++ {
			option := "no"
			if rng.Float64() < s.WinProbability {
				option = "yes"
			}
			err := game.AdmitStake(models.Stake{
				ID:               fmt.Sprintf("sim-%d-%d", round, i),
				UserID:           fmt.Sprintf("player-%d", i),
				SelectedOptionID: option,
				Amount:           10 + rng.Int63n(9_990),
				Confidence:       rng.Float64(),
			}, start)
			if err != nil {
				return out, err
			}
		}
		if err := game.Close(start.Add(time.Hour)); err != nil {
			return out, err
		}

		receipt, err := engine.Settle(game, "yes", start.Add(2*time.Hour))
		if err != nil {
			return out, err
		}
		out.Rounds++
		out.TotalStaked += receipt.TotalStakePool
		out.TotalDistributed += receipt.TotalDistributed
		if receipt.WinnerCount == 0 {
			out.NoWinnerRounds++
		}
		if receipt.TotalDistributed-receipt.TotalStakePool > s.Allocated {
			out.Overruns++
		}
	}
	return out, nil
}
