package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moneywave/database"
	"moneywave/models"
	"moneywave/service"

	"github.com/jackc/pgx/v5"
)

// GameRepository persists game aggregates across the games, game_options, stakes,
// settlement_receipts and game_outbox tables
type GameRepository struct {
	db *database.DB
	q  queryable
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *database.DB) service.GameRepository {
	return &GameRepository{db: db, q: db.Pool}
}

// Save writes the whole aggregate in one transaction. Outbox rows are insert-only,
// so events already marked dispatched are never reset.
func (r *GameRepository) Save(ctx context.Context, game *models.Game) error {
	snap := game.Snapshot()

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := upsertGame(ctx, tx, snap); err != nil {
			return err
		}
		if err := replaceOptions(ctx, tx, snap); err != nil {
			return err
		}
		if err := upsertStakes(ctx, tx, snap); err != nil {
			return err
		}
		if err := insertReceipt(ctx, tx, snap); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, snap)
	})
	if err != nil {
		return models.NewRepositoryError("save game", err)
	}
	return nil
}

func upsertGame(ctx context.Context, q queryable, snap models.GameSnapshot) error {
	config := snap.Configuration
	query := `
		INSERT INTO games (
			id, creator_id, title, description, prediction_type, importance_level,
			difficulty_level, start_time, end_time, settlement_time, minimum_stake,
			maximum_stake, max_participants, status, allocated_prize_pool, cancel_reason,
			created_at, updated_at, deleted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			prediction_type = EXCLUDED.prediction_type,
			importance_level = EXCLUDED.importance_level,
			difficulty_level = EXCLUDED.difficulty_level,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			settlement_time = EXCLUDED.settlement_time,
			minimum_stake = EXCLUDED.minimum_stake,
			maximum_stake = EXCLUDED.maximum_stake,
			max_participants = EXCLUDED.max_participants,
			status = EXCLUDED.status,
			allocated_prize_pool = EXCLUDED.allocated_prize_pool,
			cancel_reason = EXCLUDED.cancel_reason,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err := q.Exec(ctx, query,
		snap.ID,
		snap.CreatorID,
		config.Title,
		config.Description,
		string(config.PredictionType),
		string(config.ImportanceLevel),
		string(config.DifficultyLevel),
		config.StartTime,
		config.EndTime,
		config.SettlementTime,
		config.MinimumStake,
		config.MaximumStake,
		config.MaxParticipants,
		string(snap.Status),
		snap.AllocatedPrizePool,
		snap.CancelReason,
		snap.CreatedAt,
		snap.UpdatedAt,
		snap.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

func replaceOptions(ctx context.Context, q queryable, snap models.GameSnapshot) error {
	if _, err := q.Exec(ctx, `DELETE FROM game_options WHERE game_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("failed to clear game options: %w", err)
	}

	batch := &pgx.Batch{}
	for i, option := range snap.Configuration.Options {
		batch.Queue(`
			INSERT INTO game_options (game_id, option_id, label, description, position)
			VALUES ($1, $2, $3, $4, $5)
		`, snap.ID, option.ID, option.Label, option.Description, i)
	}
	return sendBatch(ctx, q, batch, "insert game option", false)
}

func upsertStakes(ctx context.Context, q queryable, snap models.GameSnapshot) error {
	batch := &pgx.Batch{}
	for i, stake := range snap.Stakes {
		batch.Queue(`
			INSERT INTO stakes (
				id, game_id, position, user_id, selected_option_id, amount,
				confidence, reasoning, outcome, payout, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (game_id, id) DO UPDATE SET
				outcome = EXCLUDED.outcome,
				payout = EXCLUDED.payout
			WHERE stakes.game_id = EXCLUDED.game_id
		`,
			stake.ID,
			snap.ID,
			i,
			stake.UserID,
			stake.SelectedOptionID,
			stake.Amount,
			stake.Confidence,
			stake.Reasoning,
			string(stake.Outcome),
			stake.Payout,
			stake.CreatedAt,
		)
	}
	return sendBatch(ctx, q, batch, "upsert stake", true)
}

func insertReceipt(ctx context.Context, q queryable, snap models.GameSnapshot) error {
	receipt := snap.Receipt
	if receipt == nil {
		return nil
	}

	payouts, err := json.Marshal(receipt.PerStakePayouts)
	if err != nil {
		return fmt.Errorf("failed to encode payouts: %w", err)
	}

	query := `
		INSERT INTO settlement_receipts (
			game_id, winning_option_id, per_stake_payouts, total_stake_pool,
			total_distributed, winner_count, loser_count, payout_multiplier, settled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO NOTHING
	`
	_, err = q.Exec(ctx, query,
		snap.ID,
		receipt.WinningOptionID,
		payouts,
		receipt.TotalStakePool,
		receipt.TotalDistributed,
		receipt.WinnerCount,
		receipt.LoserCount,
		receipt.PayoutMultiplier,
		receipt.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement receipt: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, q queryable, snap models.GameSnapshot) error {
	batch := &pgx.Batch{}
	for _, event := range snap.PendingEvents {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
		}
		batch.Queue(`
			INSERT INTO game_outbox (event_id, game_id, event_type, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`, event.ID, snap.ID, string(event.Type), payload, event.OccurredAt)
	}
	return sendBatch(ctx, q, batch, "insert outbox event", false)
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// sendBatch executes every queued statement. With requireRow set, a statement that
// touches no row fails the batch.
func sendBatch(ctx context.Context, q queryable, batch *pgx.Batch, op string, requireRow bool) error {
	if batch.Len() == 0 {
		return nil
	}
	sender, ok := q.(batchSender)
	if !ok {
		return fmt.Errorf("failed to %s: connection does not support batches", op)
	}

	results := sender.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("failed to %s: %w", op, err)
		}
		if requireRow && tag.RowsAffected() == 0 {
			results.Close()
			return fmt.Errorf("failed to %s: statement %d affected no rows", op, i)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// FindByID loads a game with its options, stakes, receipt and undispatched events.
// Returns nil, nil when the game does not exist.
func (r *GameRepository) FindByID(ctx context.Context, id string) (*models.Game, error) {
	snap, err := r.loadGame(ctx, id)
	if err != nil {
		return nil, models.NewRepositoryError("find game", err)
	}
	if snap == nil {
		return nil, nil
	}

	loaders := []func(context.Context, *models.GameSnapshot) error{
		r.loadOptions,
		r.loadStakes,
		r.loadReceipt,
		r.loadPendingEvents,
	}
	for _, load := range loaders {
		if err := load(ctx, snap); err != nil {
			return nil, models.NewRepositoryError("find game", err)
		}
	}

	return models.Reconstitute(*snap), nil
}

func (r *GameRepository) loadGame(ctx context.Context, id string) (*models.GameSnapshot, error) {
	query := `
		SELECT
			id, creator_id, title, description, prediction_type, importance_level,
			difficulty_level, start_time, end_time, settlement_time, minimum_stake,
			maximum_stake, max_participants, status, allocated_prize_pool, cancel_reason,
			created_at, updated_at, deleted_at
		FROM games
		WHERE id = $1
	`

	var snap models.GameSnapshot
	var (
		predictionType, importance, difficulty, status string
		maxParticipants                                *int
	)
	config := &snap.Configuration
	err := r.q.QueryRow(ctx, query, id).Scan(
		&snap.ID,
		&snap.CreatorID,
		&config.Title,
		&config.Description,
		&predictionType,
		&importance,
		&difficulty,
		&config.StartTime,
		&config.EndTime,
		&config.SettlementTime,
		&config.MinimumStake,
		&config.MaximumStake,
		&maxParticipants,
		&status,
		&snap.AllocatedPrizePool,
		&snap.CancelReason,
		&snap.CreatedAt,
		&snap.UpdatedAt,
		&snap.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	config.PredictionType = models.PredictionType(predictionType)
	config.ImportanceLevel = models.ImportanceLevel(importance)
	config.DifficultyLevel = models.DifficultyLevel(difficulty)
	config.MaxParticipants = maxParticipants
	config.StartTime = config.StartTime.UTC()
	config.EndTime = config.EndTime.UTC()
	config.SettlementTime = config.SettlementTime.UTC()
	snap.Status = models.GameStatus(status)
	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.UpdatedAt = snap.UpdatedAt.UTC()
	if snap.DeletedAt != nil {
		deletedAt := snap.DeletedAt.UTC()
		snap.DeletedAt = &deletedAt
	}
	return &snap, nil
}

func (r *GameRepository) loadOptions(ctx context.Context, snap *models.GameSnapshot) error {
	rows, err := r.q.Query(ctx, `
		SELECT option_id, label, description
		FROM game_options
		WHERE game_id = $1
		ORDER BY position
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to query game options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var option models.GameOption
		if err := rows.Scan(&option.ID, &option.Label, &option.Description); err != nil {
			return fmt.Errorf("failed to scan game option: %w", err)
		}
		snap.Configuration.Options = append(snap.Configuration.Options, option)
	}
	return rows.Err()
}

func (r *GameRepository) loadStakes(ctx context.Context, snap *models.GameSnapshot) error {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, selected_option_id, amount, confidence, reasoning, outcome, payout, created_at
		FROM stakes
		WHERE game_id = $1
		ORDER BY position
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to query stakes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		stake := models.Stake{GameID: snap.ID}
		var outcome string
		err := rows.Scan(
			&stake.ID,
			&stake.UserID,
			&stake.SelectedOptionID,
			&stake.Amount,
			&stake.Confidence,
			&stake.Reasoning,
			&outcome,
			&stake.Payout,
			&stake.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan stake: %w", err)
		}
		stake.Outcome = models.StakeOutcome(outcome)
		stake.CreatedAt = stake.CreatedAt.UTC()
		snap.Stakes = append(snap.Stakes, stake)
	}
	return rows.Err()
}

func (r *GameRepository) loadReceipt(ctx context.Context, snap *models.GameSnapshot) error {
	query := `
		SELECT winning_option_id, per_stake_payouts, total_stake_pool, total_distributed,
			winner_count, loser_count, payout_multiplier, settled_at
		FROM settlement_receipts
		WHERE game_id = $1
	`

	receipt := models.SettlementReceipt{GameID: snap.ID}
	var payouts []byte
	err := r.q.QueryRow(ctx, query, snap.ID).Scan(
		&receipt.WinningOptionID,
		&payouts,
		&receipt.TotalStakePool,
		&receipt.TotalDistributed,
		&receipt.WinnerCount,
		&receipt.LoserCount,
		&receipt.PayoutMultiplier,
		&receipt.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get settlement receipt: %w", err)
	}
	if err := json.Unmarshal(payouts, &receipt.PerStakePayouts); err != nil {
		return fmt.Errorf("failed to decode payouts: %w", err)
	}
	receipt.SettledAt = receipt.SettledAt.UTC()
	snap.Receipt = &receipt
	return nil
}

func (r *GameRepository) loadPendingEvents(ctx context.Context, snap *models.GameSnapshot) error {
	rows, err := r.q.Query(ctx, `
		SELECT payload
		FROM game_outbox
		WHERE game_id = $1 AND dispatched_at IS NULL
		ORDER BY seq
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("failed to scan outbox event: %w", err)
		}
		var event models.GameEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to decode outbox event: %w", err)
		}
		event.OccurredAt = event.OccurredAt.UTC()
		snap.PendingEvents = append(snap.PendingEvents, event)
	}
	return rows.Err()
}

// MarkEventsDispatched stamps the given outbox rows as delivered
func (r *GameRepository) MarkEventsDispatched(ctx context.Context, gameID string, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}

	query := `
		UPDATE game_outbox
		SET dispatched_at = NOW()
		WHERE game_id = $1 AND event_id = ANY($2) AND dispatched_at IS NULL
	`
	if _, err := r.q.Exec(ctx, query, gameID, eventIDs); err != nil {
		return models.NewRepositoryError("mark events dispatched", err)
	}
	return nil
}

// ListExpiredActive returns active games whose end time is at or before now
func (r *GameRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT id
		FROM games
		WHERE status = 'active' AND deleted_at IS NULL AND end_time <= $1
		ORDER BY end_time, id
	`
	ids, err := r.collectIDs(ctx, query, now)
	if err != nil {
		return nil, models.NewRepositoryError("list expired games", err)
	}
	return ids, nil
}

// ListWithPendingEvents returns games with undispatched events, oldest first
func (r *GameRepository) ListWithPendingEvents(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT game_id
		FROM game_outbox
		WHERE dispatched_at IS NULL
		GROUP BY game_id
		ORDER BY MIN(seq)
		LIMIT $1
	`
	ids, err := r.collectIDs(ctx, query, limit)
	if err != nil {
		return nil, models.NewRepositoryError("list pending events", err)
	}
	return ids, nil
}

func (r *GameRepository) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}
