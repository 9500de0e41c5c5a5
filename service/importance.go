package service

import (
	"moneywave/models"
)

var importanceWeights = map[models.ImportanceLevel]float64{
	models.ImportanceLow:      1.0,
	models.ImportanceMedium:   2.0,
	models.ImportanceHigh:     3.5,
	models.ImportanceCritical: 5.0,
}

var difficultyWeights = map[models.DifficultyLevel]float64{
	models.DifficultyEasy:   1.0,
	models.DifficultyMedium: 1.5,
	models.DifficultyHard:   2.0,
	models.DifficultyExpert: 2.5,
}

// ImportanceScore combines the importance and difficulty tiers of a game.
// Unknown or empty tiers count as medium.
func ImportanceScore(importance models.ImportanceLevel, difficulty models.DifficultyLevel) float64 {
	iw, ok := importanceWeights[importance]
	if !ok {
		iw = importanceWeights[models.ImportanceMedium]
	}
	dw, ok := difficultyWeights[difficulty]
	if !ok {
		dw = difficultyWeights[models.DifficultyMedium]
	}
	return iw*0.7 + dw*0.3
}
