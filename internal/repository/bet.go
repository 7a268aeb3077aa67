package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sharpline/cardline/internal/domain"
)

type betRepo struct{}

// NewBetRepository returns a pgx-backed BetRepository.
func NewBetRepository() BetRepository {
	return &betRepo{}
}

const betColumns = `id, pick_id, game_id, bet_type, selection, line, odds, stake, units, placed_at, result, profit_loss, settled_at`

func (r *betRepo) Insert(ctx context.Context, db DBTX, date string, bet *domain.Bet) error {
	_, err := db.Exec(ctx, `
		INSERT INTO bets (id, pick_id, game_id, bet_date, bet_type, selection, line, odds, stake, units, placed_at, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		bet.ID, bet.PickID, bet.GameID, date, bet.BetType, bet.Selection, bet.Line, bet.Odds,
		bet.Stake, bet.Units, bet.PlacedAt, bet.Result)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

func (r *betRepo) ListPendingByDate(ctx context.Context, db DBTX, date string) ([]domain.Bet, error) {
	return r.list(ctx, db, `
		SELECT `+betColumns+`
		FROM bets WHERE bet_date = $1 AND result = 'pending' ORDER BY game_id`, date)
}

func (r *betRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.Bet, error) {
	return r.list(ctx, db, `
		SELECT `+betColumns+`
		FROM bets WHERE bet_date = $1 ORDER BY game_id`, date)
}

func (r *betRepo) ListSettled(ctx context.Context, db DBTX, limit int) ([]domain.Bet, error) {
	return r.list(ctx, db, `
		SELECT `+betColumns+`
		FROM bets WHERE result <> 'pending' ORDER BY settled_at DESC LIMIT $1`, limit)
}

// Settle is write-once: the guard on result keeps a re-run of the auditor
// from grading the same bet twice.
func (r *betRepo) Settle(ctx context.Context, tx pgx.Tx, id uuid.UUID, result domain.BetResult, profitLoss float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bets
		SET result = $2, profit_loss = $3, settled_at = now()
		WHERE id = $1 AND result = 'pending'`,
		id, result, profitLoss)
	if err != nil {
		return fmt.Errorf("settle bet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrValidation(fmt.Sprintf("bet %s is not pending", id))
	}
	return nil
}

func (r *betRepo) list(ctx context.Context, db DBTX, query string, args ...interface{}) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		err := rows.Scan(&b.ID, &b.PickID, &b.GameID, &b.BetType, &b.Selection, &b.Line, &b.Odds,
			&b.Stake, &b.Units, &b.PlacedAt, &b.Result, &b.ProfitLoss, &b.SettledAt)
		if err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}
