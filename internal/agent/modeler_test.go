package agent

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sharpline/cardline/internal/domain"
)

func TestEnforceLowDataCap(t *testing.T) {
	adjO, adjD := 115.2, 98.1
	insights := map[string]domain.GameInsight{
		"with_stats": {
			GameID: "with_stats",
			Adv:    domain.AdvancedBlock{Home: &domain.TeamAdvanced{AdjO: &adjO, AdjD: &adjD}},
		},
		"no_stats": {GameID: "no_stats"},
	}
	predictions := []domain.Prediction{
		{GameID: "with_stats", Predictions: domain.PredictionCore{Confidence: 0.8}, ModelNotes: "Kansas controls tempo."},
		{GameID: "no_stats", Predictions: domain.PredictionCore{Confidence: 0.8}, ModelNotes: "Thin slate."},
		{GameID: "unknown_game", Predictions: domain.PredictionCore{Confidence: 0.6}},
	}

	m := &Modeler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	m.enforceLowDataCap(predictions, insights)

	assert.Equal(t, 0.8, predictions[0].Predictions.Confidence, "stats on one side exempts the game")
	assert.NotContains(t, predictions[0].ModelNotes, lowDataNote)

	assert.Equal(t, domain.LowDataConfidenceCap, predictions[1].Predictions.Confidence)
	assert.Contains(t, predictions[1].ModelNotes, lowDataNote)
	assert.Contains(t, predictions[1].ModelNotes, "Thin slate.")

	// A game missing from the insight map is treated as no-stats.
	assert.Equal(t, domain.LowDataConfidenceCap, predictions[2].Predictions.Confidence)
}

func TestEnforceLowDataCapAlreadyHumble(t *testing.T) {
	predictions := []domain.Prediction{
		{GameID: "g", Predictions: domain.PredictionCore{Confidence: 0.2}, ModelNotes: "Guesswork."},
	}
	m := &Modeler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	m.enforceLowDataCap(predictions, map[string]domain.GameInsight{})

	assert.Equal(t, 0.2, predictions[0].Predictions.Confidence)
	assert.Equal(t, "Guesswork.", predictions[0].ModelNotes, "no cap note when nothing was lowered")
}
