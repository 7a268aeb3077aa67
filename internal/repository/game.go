package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sharpline/cardline/internal/domain"
)

type gameRepo struct{}

// NewGameRepository returns a pgx-backed GameRepository.
func NewGameRepository() GameRepository {
	return &gameRepo{}
}

const gameColumns = `id, team_away, team_home, game_date, venue, start_time, status, away_score, home_score`

func (r *gameRepo) Upsert(ctx context.Context, db DBTX, game *domain.Game) error {
	_, err := db.Exec(ctx, `
		INSERT INTO games (id, team_away, team_home, game_date, venue, start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			venue = EXCLUDED.venue,
			start_time = EXCLUDED.start_time,
			status = EXCLUDED.status,
			updated_at = now()`,
		game.ID, game.AwayTeam, game.HomeTeam, game.Date, game.Venue, game.StartTime, game.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	return nil
}

func (r *gameRepo) ListByDate(ctx context.Context, db DBTX, date string) ([]domain.Game, error) {
	rows, err := db.Query(ctx, `
		SELECT `+gameColumns+`
		FROM games WHERE game_date = $1 ORDER BY start_time NULLS LAST, id`, date)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func (r *gameRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		SELECT `+gameColumns+`
		FROM games WHERE id = $1`, id)
	g, err := scanGame(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (r *gameRepo) RecordResult(ctx context.Context, db DBTX, id string, result domain.GameResult) error {
	tag, err := db.Exec(ctx, `
		UPDATE games
		SET status = $2, away_score = $3, home_score = $4, updated_at = now()
		WHERE id = $1`,
		id, domain.GameFinal, result.AwayScore, result.HomeScore)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("game", id)
	}
	return nil
}

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	var awayScore, homeScore *int
	err := row.Scan(&g.ID, &g.AwayTeam, &g.HomeTeam, &g.Date, &g.Venue, &g.StartTime, &g.Status, &awayScore, &homeScore)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan game: %w", err)
	}
	if awayScore != nil && homeScore != nil {
		g.Result = &domain.GameResult{AwayScore: *awayScore, HomeScore: *homeScore}
	}
	return &g, nil
}
