package report

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/settlement"
)

func testWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	return NewWriter(dir, slog.New(slog.NewTextHandler(io.Discard, nil))), dir
}

func TestWriteAuditReportPath(t *testing.T) {
	w, dir := testWriter(t)
	bets := []domain.Bet{
		{GameID: "duke_at_kansas_2026-02-01", BetType: domain.BetSpread,
			Selection: "Kansas -3.5", Odds: -110, Units: 1.5,
			Result: domain.BetWin, ProfitLoss: 20.45},
	}
	agg := settlement.Aggregates{Bets: 1, Wins: 1, HitRate: 1, TotalStaked: 22.5, ProfitLoss: 20.45}

	w.WriteAuditReport("2026-02-01", bets, agg, nil, nil)

	raw, err := os.ReadFile(filepath.Join(dir, "auditor", "auditor_2026-02-01.txt"))
	require.NoError(t, err, "auditor reports live at auditor/auditor_<date>.txt")
	assert.Contains(t, string(raw), "Kansas -3.5")
	assert.Contains(t, string(raw), "record 1-0-0")
}

func TestWriteBettingCard(t *testing.T) {
	w, dir := testWriter(t)
	picks := []domain.ApprovedPick{
		{Pick: domain.Pick{GameID: "duke_at_kansas_2026-02-01", BetType: domain.BetSpread,
			Selection: "Kansas -3.5", Line: -3.5, Odds: -110, ConfidenceScore: 7},
			Units: 1.5, BestBet: true},
	}

	w.WriteBettingCard("2026-02-01", picks, 1000)

	raw, err := os.ReadFile(filepath.Join(dir, "betting_card_2026-02-01.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Kansas -3.5")
	assert.Contains(t, string(raw), "* ", "best bets carry the marker")
}
