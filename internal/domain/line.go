package domain

import "time"

// BetType is the closed set of supported markets.
type BetType string

const (
	BetSpread    BetType = "spread"
	BetTotal     BetType = "total"
	BetMoneyline BetType = "moneyline"
)

// Totals sides. Spread and moneyline selections carry a canonical team name
// instead.
const (
	SideOver  = "over"
	SideUnder = "under"
)

// BettingLine is one market quote for one game at one book.
//
// For spread and moneyline markets Team names one of the two game teams
// (canonical form). For totals it is "over" or "under". Line is the spread
// or total number; zero for moneyline. Odds are American.
type BettingLine struct {
	GameID    string    `json:"game_id"`
	Book      string    `json:"book"`
	BetType   BetType   `json:"bet_type"`
	Line      float64   `json:"line"`
	Odds      int       `json:"odds"`
	Team      string    `json:"team,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// AmericanPayout returns the profit multiplier on the stake for winning
// American odds: +150 pays 1.5x the stake, -110 pays 100/110.
func AmericanPayout(odds int) float64 {
	if odds > 0 {
		return float64(odds) / 100.0
	}
	if odds < 0 {
		return 100.0 / float64(-odds)
	}
	return 0
}

// ImpliedProbability converts American odds to the book's implied win
// probability (vig included).
func ImpliedProbability(odds int) float64 {
	if odds > 0 {
		return 100.0 / (float64(odds) + 100.0)
	}
	if odds < 0 {
		return float64(-odds) / (float64(-odds) + 100.0)
	}
	return 0
}
