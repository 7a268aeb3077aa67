package domain

import (
	"fmt"
	"strings"
	"time"
)

// GameStatus tracks the lifecycle of a scheduled game.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameLive      GameStatus = "live"
	GameFinal     GameStatus = "final"
)

// GameResult holds the final score. Present iff status is final.
type GameResult struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// Game is an immutable snapshot of one scheduled matchup.
// Identified by (home, away, date).
type Game struct {
	ID        string      `json:"id"`
	HomeTeam  string      `json:"team_home"`
	AwayTeam  string      `json:"team_away"`
	Date      string      `json:"date"` // YYYY-MM-DD in the reference zone
	Venue     string      `json:"venue,omitempty"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	Status    GameStatus  `json:"status"`
	Result    *GameResult `json:"result,omitempty"`
}

// GameID builds the stable identifier used as the join key across every
// stage artifact: "away_at_home_date", lowercased with underscores.
func GameID(awayTeam, homeTeam, date string) string {
	slug := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.Join(strings.Fields(s), "_")
	}
	return fmt.Sprintf("%s_at_%s_%s", slug(awayTeam), slug(homeTeam), date)
}

// Final reports whether the game has finished with a recorded score.
func (g *Game) Final() bool {
	return g.Status == GameFinal && g.Result != nil
}
