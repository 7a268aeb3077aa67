package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sharpline/cardline/internal/domain"
)

type bankrollRepo struct{}

// NewBankrollRepository returns a pgx-backed BankrollRepository.
func NewBankrollRepository() BankrollRepository {
	return &bankrollRepo{}
}

func (r *bankrollRepo) Latest(ctx context.Context, db DBTX) (*domain.Bankroll, error) {
	row := db.QueryRow(ctx, `
		SELECT snapshot_date, balance, total_wagered, total_profit, active_bets
		FROM bankroll ORDER BY snapshot_date DESC, id DESC LIMIT 1`)
	var b domain.Bankroll
	err := row.Scan(&b.Date, &b.Balance, &b.TotalWagered, &b.TotalProfit, &b.ActiveBets)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest bankroll: %w", err)
	}
	return &b, nil
}

func (r *bankrollRepo) Append(ctx context.Context, db DBTX, snapshot *domain.Bankroll) error {
	_, err := db.Exec(ctx, `
		INSERT INTO bankroll (snapshot_date, balance, total_wagered, total_profit, active_bets)
		VALUES ($1, $2, $3, $4, $5)`,
		snapshot.Date, snapshot.Balance, snapshot.TotalWagered, snapshot.TotalProfit, snapshot.ActiveBets)
	if err != nil {
		return fmt.Errorf("append bankroll: %w", err)
	}
	return nil
}

func (r *bankrollRepo) History(ctx context.Context, db DBTX, limit int) ([]domain.Bankroll, error) {
	rows, err := db.Query(ctx, `
		SELECT snapshot_date, balance, total_wagered, total_profit, active_bets
		FROM bankroll ORDER BY snapshot_date DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("bankroll history: %w", err)
	}
	defer rows.Close()

	var history []domain.Bankroll
	for rows.Next() {
		var b domain.Bankroll
		if err := rows.Scan(&b.Date, &b.Balance, &b.TotalWagered, &b.TotalProfit, &b.ActiveBets); err != nil {
			return nil, fmt.Errorf("scan bankroll: %w", err)
		}
		history = append(history, b)
	}
	return history, rows.Err()
}
