package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"moneywave/models"
	"moneywave/observability"

	log "github.com/sirupsen/logrus"
)

type prizePoolService struct {
	allocator             *PrizePoolAllocator
	inactiveBalances      InactiveBalanceReader
	sponsors              SponsorContributionRepository
	expectedAnnualRevenue int64
	inactiveFor           time.Duration
	now                   func() time.Time
}

// NewPrizePoolService creates a PrizePoolService that reads reclaimable balances from the ledger
// and sponsor funds from storage
func NewPrizePoolService(
	allocator *PrizePoolAllocator,
	inactiveBalances InactiveBalanceReader,
	sponsors SponsorContributionRepository,
	expectedAnnualRevenue int64,
	inactiveFor time.Duration,
) PrizePoolService {
	return &prizePoolService{
		allocator:             allocator,
		inactiveBalances:      inactiveBalances,
		sponsors:              sponsors,
		expectedAnnualRevenue: expectedAnnualRevenue,
		inactiveFor:           inactiveFor,
		now:                   time.Now,
	}
}

// ComputeDailyPool gathers the external inputs for the current day and computes the pool
func (s *prizePoolService) ComputeDailyPool(ctx context.Context) (models.PrizePoolSnapshot, error) {
	now := s.now()

	redistributed, err := s.inactiveBalances.InactiveBalanceTotal(ctx, models.CurrencyPMC, s.inactiveFor)
	if err != nil {
		return models.PrizePoolSnapshot{}, fmt.Errorf("failed to read inactive balances: %w", err)
	}

	// Sponsor days follow the allocation timezone
	sponsor, err := s.sponsors.SponsorTotalForDay(ctx, now.In(s.allocator.location))
	if err != nil {
		return models.PrizePoolSnapshot{}, fmt.Errorf("failed to read sponsor contributions: %w", err)
	}

	snapshot := s.allocator.ComputeDailyPool(models.PrizePoolInputs{
		ExpectedAnnualRevenue: s.expectedAnnualRevenue,
		RedistributedPool:     redistributed,
		SponsorPool:           sponsor,
	}, now)

	observability.DailyPoolSize.Set(float64(snapshot.TotalDailyPool))
	log.WithFields(log.Fields{
		"ebitBasedPool":     snapshot.EbitBasedPool,
		"redistributedPool": snapshot.RedistributedPool,
		"sponsorPool":       snapshot.SponsorPool,
		"totalDailyPool":    snapshot.TotalDailyPool,
	}).Debug("Computed daily prize pool")

	return snapshot, nil
}

// AllocateToGame returns the share of totalDailyPool committed to a game ending at gameEndTime
func (s *prizePoolService) AllocateToGame(totalDailyPool int64, importanceScore float64, gameEndTime time.Time) int64 {
	return s.allocator.AllocateToGame(totalDailyPool, importanceScore, gameEndTime, s.now())
}

// RecordSponsorContribution validates and stores a sponsor's funding for the current day
func (s *prizePoolService) RecordSponsorContribution(ctx context.Context, sponsorID string, amount int64, note string) (*models.SponsorContribution, error) {
	sponsorID = strings.TrimSpace(sponsorID)
	if sponsorID == "" {
		return nil, models.NewValidationError("sponsor_id", "must not be empty")
	}
	if amount <= 0 || amount > models.MaxStakePool {
		return nil, models.NewValidationError("amount", "must be between 1 and %d, got %d", models.MaxStakePool, amount)
	}
	if len(note) > 500 {
		return nil, models.NewValidationError("note", "must be at most 500 characters")
	}

	contribution := &models.SponsorContribution{
		SponsorID:     sponsorID,
		Amount:        amount,
		Note:          note,
		ContributedAt: s.now().In(s.allocator.location),
	}
	if err := s.sponsors.Create(ctx, contribution); err != nil {
		return nil, fmt.Errorf("failed to record sponsor contribution: %w", err)
	}

	log.WithFields(log.Fields{
		"contributionID": contribution.ID,
		"sponsorID":      contribution.SponsorID,
		"amount":         contribution.Amount,
	}).Info("Recorded sponsor contribution")
	return contribution, nil
}
