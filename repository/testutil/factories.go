package testutil

import (
	"fmt"
	"testing"
	"time"

	"moneywave/models"

	"github.com/stretchr/testify/require"
)

// CreateTestConfiguration returns a valid binary game starting at start
func CreateTestConfiguration(start time.Time) models.GameConfiguration {
	return models.GameConfiguration{
		Title:       "Who wins the derby?",
		Description: "Pick the winner of the weekend derby match.",
		Options: []models.GameOption{
			{ID: "home", Label: "Home", Description: "Home side wins"},
			{ID: "away", Label: "Away"},
		},
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		SettlementTime:  start.Add(3 * time.Hour),
		MinimumStake:    10,
		MaximumStake:    10_000,
		PredictionType:  models.PredictionTypeBinary,
		ImportanceLevel: models.ImportanceHigh,
		DifficultyLevel: models.DifficultyEasy,
	}
}

// CreateTestGame creates a game in the created state
func CreateTestGame(t *testing.T, id string, start time.Time) *models.Game {
	t.Helper()
	game, err := models.CreateGame(id, CreateTestConfiguration(start), "creator-1", 50_000, start)
	require.NoError(t, err)
	return game
}

// CreateActiveTestGame creates an active game holding one stake per user, alternating options
func CreateActiveTestGame(t *testing.T, id string, start time.Time, users ...string) *models.Game {
	t.Helper()
	game := CreateTestGame(t, id, start)
	require.NoError(t, game.Activate(start))
	options := []string{"home", "away"}
	for i, user := range users {
		require.NoError(t, game.AdmitStake(models.Stake{
			ID:               fmt.Sprintf("%s-stake-%d", id, i+1),
			UserID:           user,
			SelectedOptionID: options[i%len(options)],
			Amount:           int64(100 * (i + 1)),
			Confidence:       0.75,
			Reasoning:        "form guide",
		}, start.Add(time.Duration(i+1)*time.Minute)))
	}
	return game
}
