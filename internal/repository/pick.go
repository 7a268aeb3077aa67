package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sharpline/cardline/internal/domain"
)

type pickRepo struct{}

// NewPickRepository returns a pgx-backed PickRepository.
func NewPickRepository() PickRepository {
	return &pickRepo{}
}

func (r *pickRepo) Insert(ctx context.Context, db DBTX, date string, pick *domain.ApprovedPick) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.Exec(ctx, `
		INSERT INTO picks (id, game_id, pick_date, bet_type, selection_text, line, odds, book,
			rationale, confidence, confidence_score, edge_estimate, red_flag,
			units, best_bet, final_reasoning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, pick.GameID, date, pick.BetType, pick.Selection, pick.Line, pick.Odds, pick.Book,
		pick.Rationale, pick.Confidence, pick.ConfidenceScore, pick.EdgeEstimate, pick.RedFlag,
		pick.Units, pick.BestBet, pick.FinalReasoning)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert pick: %w", err)
	}
	return id, nil
}

func (r *pickRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.ApprovedPick, error) {
	rows, err := db.Query(ctx, `
		SELECT game_id, bet_type, selection_text, line, odds, book,
			rationale, confidence, confidence_score, edge_estimate, red_flag,
			units, best_bet, final_reasoning
		FROM picks WHERE pick_date = $1 ORDER BY best_bet DESC, confidence_score DESC, game_id`, date)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	var picks []domain.ApprovedPick
	for rows.Next() {
		var p domain.ApprovedPick
		err := rows.Scan(&p.GameID, &p.BetType, &p.Selection, &p.Line, &p.Odds, &p.Book,
			&p.Rationale, &p.Confidence, &p.ConfidenceScore, &p.EdgeEstimate, &p.RedFlag,
			&p.Units, &p.BestBet, &p.FinalReasoning)
		if err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

func (r *pickRepo) ScoresByDate(ctx context.Context, db DBTX, date string) (map[string]int, error) {
	rows, err := db.Query(ctx, `
		SELECT id, confidence_score FROM picks WHERE pick_date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("pick scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id uuid.UUID
		var score int
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out[id.String()] = score
	}
	return out, rows.Err()
}

func (r *pickRepo) ReasoningByDate(ctx context.Context, db DBTX, date string) (map[string]string, error) {
	rows, err := db.Query(ctx, `
		SELECT id, rationale, final_reasoning FROM picks WHERE pick_date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("pick reasoning: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id uuid.UUID
		var rationale, final string
		if err := rows.Scan(&id, &rationale, &final); err != nil {
			return nil, fmt.Errorf("scan reasoning: %w", err)
		}
		if final != "" {
			rationale = rationale + " | " + final
		}
		out[id.String()] = rationale
	}
	return out, rows.Err()
}
