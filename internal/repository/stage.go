package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sharpline/cardline/internal/domain"
)

// The researcher and modeler artifacts are stored whole as JSONB: their
// shape tracks the agent schemas, and no query filters on their interior.

type insightRepo struct{}

// NewInsightRepository returns a pgx-backed InsightRepository.
func NewInsightRepository() InsightRepository {
	return &insightRepo{}
}

func (r *insightRepo) Upsert(ctx context.Context, db DBTX, date string, insight *domain.GameInsight) error {
	payload, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO game_insights (game_id, insight_date, payload, data_unavailable)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, insight_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			data_unavailable = EXCLUDED.data_unavailable,
			updated_at = now()`,
		insight.GameID, date, payload, insight.DataUnavailable)
	if err != nil {
		return fmt.Errorf("upsert insight: %w", err)
	}
	return nil
}

func (r *insightRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.GameInsight, error) {
	rows, err := db.Query(ctx, `
		SELECT payload FROM game_insights WHERE insight_date = $1 ORDER BY game_id`, date)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var insights []domain.GameInsight
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		var in domain.GameInsight
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("decode insight: %w", err)
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

type predictionRepo struct{}

// NewPredictionRepository returns a pgx-backed PredictionRepository.
func NewPredictionRepository() PredictionRepository {
	return &predictionRepo{}
}

func (r *predictionRepo) Upsert(ctx context.Context, db DBTX, date string, prediction *domain.Prediction) error {
	payload, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO predictions (game_id, prediction_date, payload, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, prediction_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			confidence = EXCLUDED.confidence,
			updated_at = now()`,
		prediction.GameID, date, payload, prediction.Predictions.Confidence)
	if err != nil {
		return fmt.Errorf("upsert prediction: %w", err)
	}
	return nil
}

func (r *predictionRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.Prediction, error) {
	rows, err := db.Query(ctx, `
		SELECT payload FROM predictions WHERE prediction_date = $1 ORDER BY game_id`, date)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var predictions []domain.Prediction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		var p domain.Prediction
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
