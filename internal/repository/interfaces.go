// Package repository holds the pgx-backed persistence layer. Repositories
// are stateless; callers pass a pool or transaction through DBTX.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sharpline/cardline/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// GameRepository provides access to games.
type GameRepository interface {
	// Upsert inserts or refreshes a scheduled game keyed by its slug id.
	Upsert(ctx context.Context, db DBTX, game *domain.Game) error

	// ListByDate returns the games scheduled on one Eastern date.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.Game, error)

	// FindByID returns one game or nil.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Game, error)

	// RecordResult writes the final score and flips status to final.
	RecordResult(ctx context.Context, db DBTX, id string, result domain.GameResult) error
}

// LineRepository provides access to betting_lines.
type LineRepository interface {
	// ReplaceForDate swaps the stored snapshot for a date in one transaction.
	ReplaceForDate(ctx context.Context, tx pgx.Tx, date string, lines []domain.BettingLine) error

	// ListByDate returns the line snapshot for a date.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.BettingLine, error)
}

// InsightRepository provides access to game_insights.
type InsightRepository interface {
	// Upsert stores one researcher record per game per date.
	Upsert(ctx context.Context, db DBTX, date string, insight *domain.GameInsight) error

	// ListByDate returns the stored insights for a date.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.GameInsight, error)
}

// PredictionRepository provides access to predictions.
type PredictionRepository interface {
	// Upsert stores one modeler record per game per date.
	Upsert(ctx context.Context, db DBTX, date string, prediction *domain.Prediction) error

	// ListByDate returns the stored predictions for a date.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.Prediction, error)
}

// PickRepository provides access to picks.
type PickRepository interface {
	// Insert stores one approved pick and returns its generated id.
	Insert(ctx context.Context, db DBTX, date string, pick *domain.ApprovedPick) (uuid.UUID, error)

	// ListByDate returns the approved card for a date.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.ApprovedPick, error)

	// ReasoningByDate maps pick id to final reasoning for the auditor.
	ReasoningByDate(ctx context.Context, db DBTX, date string) (map[string]string, error)

	// ScoresByDate maps pick id to confidence score for calibration.
	ScoresByDate(ctx context.Context, db DBTX, date string) (map[string]int, error)
}

// BetRepository provides access to bets.
type BetRepository interface {
	// Insert records a placed bet.
	Insert(ctx context.Context, db DBTX, date string, bet *domain.Bet) error

	// ListPendingByDate returns unsettled bets placed for a card date.
	ListPendingByDate(ctx context.Context, db DBTX, date string) ([]domain.Bet, error)

	// ListByDate returns all bets for a card date.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.Bet, error)

	// ListSettled returns up to limit graded bets across all dates,
	// newest first.
	ListSettled(ctx context.Context, db DBTX, limit int) ([]domain.Bet, error)

	// Settle writes result and profit/loss exactly once; settled rows are
	// left untouched.
	Settle(ctx context.Context, tx pgx.Tx, id uuid.UUID, result domain.BetResult, profitLoss float64) error
}

// BankrollRepository provides access to the bankroll ledger.
type BankrollRepository interface {
	// Latest returns the newest snapshot, or nil before the first run.
	Latest(ctx context.Context, db DBTX) (*domain.Bankroll, error)

	// Append writes one daily snapshot.
	Append(ctx context.Context, db DBTX, snapshot *domain.Bankroll) error

	// History returns up to limit snapshots, newest first.
	History(ctx context.Context, db DBTX, limit int) ([]domain.Bankroll, error)
}

// ReviewRepository provides access to card_reviews.
type ReviewRepository interface {
	// Insert stores one president pass verdict.
	Insert(ctx context.Context, db DBTX, date string, pass int, decision, summary string, payload []byte) error

	// ListByDate returns the pass history for a date, oldest first.
	ListByDate(ctx context.Context, db DBTX, date string) ([]domain.CardReviewRecord, error)
}

// AgentLogRepository provides access to agent_logs.
type AgentLogRepository interface {
	// Insert records one agent call for the usage ledger.
	Insert(ctx context.Context, db DBTX, entry *domain.AgentLog) error

	// UsageByDate aggregates token usage per agent for one date.
	UsageByDate(ctx context.Context, db DBTX, date string) (map[string]domain.AgentUsage, error)
}
