package repository

import (
	"context"
	"fmt"
	"time"

	"moneywave/database"
	"moneywave/models"
	"moneywave/service"

	"github.com/google/uuid"
)

// SponsorContributionRepository stores external funding added to the daily pool
type SponsorContributionRepository struct {
	q queryable
}

// NewSponsorContributionRepository creates a new sponsor contribution repository
func NewSponsorContributionRepository(db *database.DB) service.SponsorContributionRepository {
	return &SponsorContributionRepository{q: db.Pool}
}

// Create records a contribution, assigning an id when none is set
func (r *SponsorContributionRepository) Create(ctx context.Context, contribution *models.SponsorContribution) error {
	if contribution.ID == "" {
		contribution.ID = uuid.NewString()
	}
	if contribution.ContributedAt.IsZero() {
		contribution.ContributedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sponsor_contributions (id, sponsor_id, amount, note, contributed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.Exec(ctx, query,
		contribution.ID,
		contribution.SponsorID,
		contribution.Amount,
		contribution.Note,
		contribution.ContributedAt,
	)
	if err != nil {
		return models.NewRepositoryError("create sponsor contribution", fmt.Errorf("failed to insert contribution: %w", err))
	}
	return nil
}

// SponsorTotalForDay sums contributions made on the calendar day of day, in day's location
func (r *SponsorContributionRepository) SponsorTotalForDay(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	query := `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM sponsor_contributions
		WHERE contributed_at >= $1 AND contributed_at < $2
	`
	var total int64
	if err := r.q.QueryRow(ctx, query, start, end).Scan(&total); err != nil {
		return 0, models.NewRepositoryError("sum sponsor contributions", err)
	}
	return total, nil
}
