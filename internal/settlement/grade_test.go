package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/domain"
)

func finalGame(away, home string, awayScore, homeScore int) *domain.Game {
	return &domain.Game{
		ID:       domain.GameID(away, home, "2026-02-01"),
		AwayTeam: away,
		HomeTeam: home,
		Date:     "2026-02-01",
		Status:   domain.GameFinal,
		Result:   &domain.GameResult{AwayScore: awayScore, HomeScore: homeScore},
	}
}

func TestGradeSpread(t *testing.T) {
	game := finalGame("Duke", "Kansas", 70, 75) // Kansas by 5

	tests := []struct {
		name      string
		selection string
		line      float64
		want      domain.BetResult
	}{
		{"favorite covers", "Kansas", -3.5, domain.BetWin},
		{"favorite fails to cover", "Kansas", -6.5, domain.BetLoss},
		{"spread push", "Kansas", -5, domain.BetPush},
		{"dog covers", "Duke", 6.5, domain.BetWin},
		{"dog loses outright and ats", "Duke", 3.5, domain.BetLoss},
		{"dog push", "Duke", 5, domain.BetPush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bet := &domain.Bet{BetType: domain.BetSpread, Selection: tt.selection, Line: tt.line}
			got, err := GradeBet(bet, game)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGradeTotal(t *testing.T) {
	game := finalGame("Duke", "Kansas", 70, 75) // combined 145

	tests := []struct {
		name      string
		selection string
		line      float64
		want      domain.BetResult
	}{
		{"over wins", "Over", 140.5, domain.BetWin},
		{"over loses", "Over", 150.5, domain.BetLoss},
		{"under wins", "Under", 150.5, domain.BetWin},
		{"under loses", "Under", 140.5, domain.BetLoss},
		{"push on the number", "Over", 145, domain.BetPush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bet := &domain.Bet{BetType: domain.BetTotal, Selection: tt.selection, Line: tt.line}
			got, err := GradeBet(bet, game)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGradeTotalUnlabeled(t *testing.T) {
	game := finalGame("Duke", "Kansas", 70, 75)
	bet := &domain.Bet{BetType: domain.BetTotal, Selection: "145.5", Line: 145.5}
	_, err := GradeBet(bet, game)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names neither side")
}

func TestGradeMoneyline(t *testing.T) {
	game := finalGame("Duke", "Kansas", 70, 75)

	win, err := GradeBet(&domain.Bet{BetType: domain.BetMoneyline, Selection: "Kansas ML"}, game)
	require.NoError(t, err)
	assert.Equal(t, domain.BetWin, win)

	loss, err := GradeBet(&domain.Bet{BetType: domain.BetMoneyline, Selection: "Duke ML"}, game)
	require.NoError(t, err)
	assert.Equal(t, domain.BetLoss, loss)
}

func TestGradeNotFinal(t *testing.T) {
	game := &domain.Game{ID: "x", Status: domain.GameLive, AwayTeam: "Duke", HomeTeam: "Kansas"}
	_, err := GradeBet(&domain.Bet{BetType: domain.BetMoneyline, Selection: "Duke"}, game)
	require.Error(t, err)
}

func TestGradeSelectionWithNoise(t *testing.T) {
	game := finalGame("Michigan State", "Ohio State", 80, 74)
	bet := &domain.Bet{BetType: domain.BetSpread, Selection: "Michigan State +2.5 (-110)", Line: 2.5}
	got, err := GradeBet(bet, game)
	require.NoError(t, err)
	assert.Equal(t, domain.BetWin, got)
}

func TestGradeUnknownTeam(t *testing.T) {
	game := finalGame("Duke", "Kansas", 70, 75)
	bet := &domain.Bet{BetType: domain.BetSpread, Selection: "Gonzaga -3.5", Line: -3.5}
	_, err := GradeBet(bet, game)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches neither team")
}

func TestSettleFillsProfitLoss(t *testing.T) {
	game := finalGame("Duke", "Kansas", 70, 75)
	bet := &domain.Bet{BetType: domain.BetMoneyline, Selection: "Kansas", Stake: 110, Odds: -110}

	result, pl, err := Settle(bet, game)
	require.NoError(t, err)
	assert.Equal(t, domain.BetWin, result)
	assert.InDelta(t, 100, pl, 1e-9)
}

func TestStripSelectionNoise(t *testing.T) {
	assert.Equal(t, "Kansas St", stripSelectionNoise("Kansas St -3.5 (-110)"))
	assert.Equal(t, "Duke", stripSelectionNoise("Duke ML"))
	assert.Equal(t, "Saint Mary's", stripSelectionNoise("Saint Mary's +7"))
}
