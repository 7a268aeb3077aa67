package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sharpline/cardline/internal/domain"
)

type lineRepo struct{}

// NewLineRepository returns a pgx-backed LineRepository.
func NewLineRepository() LineRepository {
	return &lineRepo{}
}

// ReplaceForDate deletes and re-inserts the snapshot so a re-scrape never
// leaves stale quotes behind. Runs inside the caller's transaction.
func (r *lineRepo) ReplaceForDate(ctx context.Context, tx pgx.Tx, date string, lines []domain.BettingLine) error {
	if _, err := tx.Exec(ctx, `DELETE FROM betting_lines WHERE line_date = $1`, date); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}
	for _, l := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO betting_lines (game_id, line_date, book, bet_type, line, odds, team, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			l.GameID, date, l.Book, l.BetType, l.Line, l.Odds, l.Team, l.Timestamp)
		if err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return nil
}

func (r *lineRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.BettingLine, error) {
	rows, err := db.Query(ctx, `
		SELECT game_id, book, bet_type, line, odds, team, captured_at
		FROM betting_lines WHERE line_date = $1 ORDER BY game_id, book, bet_type, team`, date)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.BettingLine
	for rows.Next() {
		var l domain.BettingLine
		if err := rows.Scan(&l.GameID, &l.Book, &l.BetType, &l.Line, &l.Odds, &l.Team, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
