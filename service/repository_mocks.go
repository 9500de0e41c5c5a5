package service

import (
	"context"
	"time"

	"moneywave/models"

	"github.com/stretchr/testify/mock"
)

// MockGameRepository is a mock implementation of GameRepository
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) Save(ctx context.Context, game *models.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockGameRepository) FindByID(ctx context.Context, id string) (*models.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) MarkEventsDispatched(ctx context.Context, gameID string, eventIDs []string) error {
	args := m.Called(ctx, gameID, eventIDs)
	return args.Error(0)
}

func (m *MockGameRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGameRepository) ListWithPendingEvents(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockStakeLedgerGateway is a mock implementation of StakeLedgerGateway
type MockStakeLedgerGateway struct {
	mock.Mock
}

func (m *MockStakeLedgerGateway) GetBalance(ctx context.Context, userID string, currency models.Currency) (int64, error) {
	args := m.Called(ctx, userID, currency)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStakeLedgerGateway) EmitEvent(ctx context.Context, event models.GameEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockInactiveBalanceReader is a mock implementation of InactiveBalanceReader
type MockInactiveBalanceReader struct {
	mock.Mock
}

func (m *MockInactiveBalanceReader) InactiveBalanceTotal(ctx context.Context, currency models.Currency, inactiveFor time.Duration) (int64, error) {
	args := m.Called(ctx, currency, inactiveFor)
	return args.Get(0).(int64), args.Error(1)
}

// MockSponsorContributionRepository is a mock implementation of SponsorContributionRepository
type MockSponsorContributionRepository struct {
	mock.Mock
}

func (m *MockSponsorContributionRepository) Create(ctx context.Context, contribution *models.SponsorContribution) error {
	args := m.Called(ctx, contribution)
	return args.Error(0)
}

func (m *MockSponsorContributionRepository) SponsorTotalForDay(ctx context.Context, day time.Time) (int64, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(int64), args.Error(1)
}

// MockPrizePoolService is a mock implementation of PrizePoolService
type MockPrizePoolService struct {
	mock.Mock
}

func (m *MockPrizePoolService) ComputeDailyPool(ctx context.Context) (models.PrizePoolSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.PrizePoolSnapshot), args.Error(1)
}

func (m *MockPrizePoolService) AllocateToGame(totalDailyPool int64, importanceScore float64, gameEndTime time.Time) int64 {
	args := m.Called(totalDailyPool, importanceScore, gameEndTime)
	return args.Get(0).(int64)
}

func (m *MockPrizePoolService) RecordSponsorContribution(ctx context.Context, sponsorID string, amount int64, note string) (*models.SponsorContribution, error) {
	args := m.Called(ctx, sponsorID, amount, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SponsorContribution), args.Error(1)
}
