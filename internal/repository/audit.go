package repository

import (
	"context"
	"fmt"

	"github.com/sharpline/cardline/internal/domain"
)

type reviewRepo struct{}

// NewReviewRepository returns a pgx-backed ReviewRepository.
func NewReviewRepository() ReviewRepository {
	return &reviewRepo{}
}

func (r *reviewRepo) Insert(ctx context.Context, db DBTX, date string, pass int, decision, summary string, payload []byte) error {
	_, err := db.Exec(ctx, `
		INSERT INTO card_reviews (review_date, pass, decision, summary, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		date, pass, decision, summary, payload)
	if err != nil {
		return fmt.Errorf("insert card review: %w", err)
	}
	return nil
}

func (r *reviewRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.CardReviewRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT id, review_date, pass, decision, summary, payload, created_at
		FROM card_reviews WHERE review_date = $1 ORDER BY pass`, date)
	if err != nil {
		return nil, fmt.Errorf("list card reviews: %w", err)
	}
	defer rows.Close()

	var records []domain.CardReviewRecord
	for rows.Next() {
		var rec domain.CardReviewRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Pass, &rec.Decision, &rec.Summary, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card review: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type agentLogRepo struct{}

// NewAgentLogRepository returns a pgx-backed AgentLogRepository.
func NewAgentLogRepository() AgentLogRepository {
	return &agentLogRepo{}
}

func (r *agentLogRepo) Insert(ctx context.Context, db DBTX, entry *domain.AgentLog) error {
	_, err := db.Exec(ctx, `
		INSERT INTO agent_logs (log_date, agent, model, prompt_tokens, completion_tokens, duration_ms, success, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.Date, entry.Agent, entry.Model, entry.PromptTokens, entry.CompletionTokens,
		entry.DurationMS, entry.Success, entry.Error)
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}

func (r *agentLogRepo) UsageByDate(ctx context.Context, db DBTX, date string) (map[string]domain.AgentUsage, error) {
	rows, err := db.Query(ctx, `
		SELECT agent, count(*), coalesce(sum(prompt_tokens), 0), coalesce(sum(completion_tokens), 0),
			count(*) FILTER (WHERE NOT success)
		FROM agent_logs WHERE log_date = $1 GROUP BY agent`, date)
	if err != nil {
		return nil, fmt.Errorf("agent usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]domain.AgentUsage)
	for rows.Next() {
		var agent string
		var u domain.AgentUsage
		if err := rows.Scan(&agent, &u.Calls, &u.PromptTokens, &u.CompletionTokens, &u.Failures); err != nil {
			return nil, fmt.Errorf("scan agent usage: %w", err)
		}
		usage[agent] = u
	}
	return usage, rows.Err()
}
