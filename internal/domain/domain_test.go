package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameID(t *testing.T) {
	tests := []struct {
		name string
		away string
		home string
		date string
		want string
	}{
		{"simple", "Duke", "Kansas", "2026-02-01", "duke_at_kansas_2026-02-01"},
		{"multi word", "Michigan State", "Ohio State", "2026-02-01", "michigan_state_at_ohio_state_2026-02-01"},
		{"extra spaces", "  Duke ", " Kansas  ", "2026-02-01", "duke_at_kansas_2026-02-01"},
		{"mixed case", "UNC Wilmington", "NC State", "2026-03-10", "unc_wilmington_at_nc_state_2026-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GameID(tt.away, tt.home, tt.date))
		})
	}
}

func TestAmericanPayout(t *testing.T) {
	assert.InDelta(t, 1.5, AmericanPayout(150), 1e-9)
	assert.InDelta(t, 100.0/110.0, AmericanPayout(-110), 1e-9)
	assert.InDelta(t, 1.0, AmericanPayout(100), 1e-9)
	assert.Equal(t, 0.0, AmericanPayout(0))
}

func TestImpliedProbability(t *testing.T) {
	assert.InDelta(t, 0.40, ImpliedProbability(150), 1e-9)
	assert.InDelta(t, 110.0/210.0, ImpliedProbability(-110), 1e-9)
	assert.InDelta(t, 0.5, ImpliedProbability(100), 1e-9)
}

func TestBetPayout(t *testing.T) {
	b := &Bet{Stake: 100, Odds: -110}
	assert.InDelta(t, 100*100.0/110.0, b.Payout(BetWin), 1e-9)
	assert.Equal(t, -100.0, b.Payout(BetLoss))
	assert.Equal(t, 0.0, b.Payout(BetPush))

	plus := &Bet{Stake: 50, Odds: 200}
	assert.InDelta(t, 100.0, plus.Payout(BetWin), 1e-9)
}

func TestCapConfidence(t *testing.T) {
	p := &Prediction{
		Predictions: PredictionCore{Confidence: 0.8},
		MarketEdges: []MarketEdge{
			{EdgeConfidence: 0.5},
			{EdgeConfidence: 0.2},
		},
	}
	assert.True(t, p.CapConfidence(LowDataConfidenceCap))
	assert.Equal(t, LowDataConfidenceCap, p.Predictions.Confidence)
	assert.Equal(t, LowDataConfidenceCap, p.MarketEdges[0].EdgeConfidence)
	assert.Equal(t, 0.2, p.MarketEdges[1].EdgeConfidence)

	// Second pass finds nothing above the cap.
	assert.False(t, p.CapConfidence(LowDataConfidenceCap))
}

func TestHasStats(t *testing.T) {
	adjO, adjD := 115.2, 98.1
	assert.True(t, (&TeamAdvanced{AdjO: &adjO, AdjD: &adjD}).HasStats())
	assert.False(t, (&TeamAdvanced{AdjO: &adjO}).HasStats())
	assert.False(t, (&TeamAdvanced{}).HasStats())
	var nilAdv *TeamAdvanced
	assert.False(t, nilAdv.HasStats())
}

func TestValidateBestBets(t *testing.T) {
	picks := make([]ApprovedPick, 8)
	for i := range picks {
		picks[i].BestBet = true
	}
	ValidateBestBets(picks)
	count := 0
	for _, p := range picks {
		if p.BestBet {
			count++
		}
	}
	assert.Equal(t, MaxBestBets, count)

	// Fewer picks than the cap: all can stay.
	three := make([]ApprovedPick, 3)
	for i := range three {
		three[i].BestBet = true
	}
	ValidateBestBets(three)
	for _, p := range three {
		assert.True(t, p.BestBet)
	}
}

func TestGameFinal(t *testing.T) {
	g := &Game{Status: GameFinal}
	assert.False(t, g.Final(), "final status without a result is not settled")
	g.Result = &GameResult{HomeScore: 70, AwayScore: 68}
	assert.True(t, g.Final())
	g.Status = GameLive
	assert.False(t, g.Final())
}
