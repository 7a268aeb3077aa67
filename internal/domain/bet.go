package domain

import (
	"time"

	"github.com/google/uuid"
)

// BetResult tracks the settlement outcome of a recorded wager.
type BetResult string

const (
	BetPending BetResult = "pending"
	BetWin     BetResult = "win"
	BetLoss    BetResult = "loss"
	BetPush    BetResult = "push"
)

// Bet is a simulated wager recorded against an approved pick. Result and
// ProfitLoss are written exactly once, by the auditor.
type Bet struct {
	ID         uuid.UUID  `json:"id"`
	PickID     uuid.UUID  `json:"pick_id"`
	GameID     string     `json:"game_id"`
	BetType    BetType    `json:"bet_type"`
	Selection  string     `json:"selection"`
	Line       float64    `json:"line"`
	Odds       int        `json:"odds"`
	Stake      float64    `json:"stake"`
	Units      float64    `json:"units"`
	PlacedAt   time.Time  `json:"placed_at"`
	Result     BetResult  `json:"result"`
	ProfitLoss float64    `json:"profit_loss"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}

// Bankroll is an append-only daily snapshot.
type Bankroll struct {
	Date         string  `json:"date"`
	Balance      float64 `json:"balance"`
	TotalWagered float64 `json:"total_wagered"`
	TotalProfit  float64 `json:"total_profit"`
	ActiveBets   int     `json:"active_bets"`
}

// Payout computes profit/loss for a settled bet: positive for a win,
// -stake for a loss, zero for a push.
func (b *Bet) Payout(result BetResult) float64 {
	switch result {
	case BetWin:
		return b.Stake * AmericanPayout(b.Odds)
	case BetLoss:
		return -b.Stake
	default:
		return 0
	}
}
