package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/domain"
)

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    float64
		wantErr bool
	}{
		{"fraction passes through", 0.72, 0.72, false},
		{"boundary one", 1.0, 1.0, false},
		{"ten point scale divided", 7.0, 0.7, false},
		{"boundary ten", 10.0, 1.0, false},
		{"zero", 0, 0, false},
		{"above ten rejected", 11, 0, true},
		{"percentage rejected", 85, 0, true},
		{"negative rejected", -0.2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeConfidence(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				var appErr *domain.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMinifyPick(t *testing.T) {
	pick := domain.Pick{
		GameID:          "duke_at_kansas_2026-02-01",
		BetType:         domain.BetSpread,
		Selection:       "Kansas -3.5",
		Line:            -3.5,
		Odds:            -110,
		Book:            "draftkings",
		Rationale:       strings.Repeat("edge analysis ", 50),
		Confidence:      0.71,
		ConfidenceScore: 7,
		EdgeEstimate:    0.04,
	}
	m := minifyPick(pick, "Duke @ Kansas")

	assert.Equal(t, "Duke @ Kansas", m.Teams)
	assert.Equal(t, "spread", m.BetType)
	assert.Equal(t, 7, m.ConfidenceScore)
	assert.LessOrEqual(t, len(m.Rationale), maxRationaleChars+len("…"))
}

func TestClampUnits(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"missing defaults to one unit", 0, 1},
		{"negative defaults to one unit", -2, 1},
		{"below floor raised", 0.3, 0.5},
		{"floor holds", 0.5, 0.5},
		{"in range passes through", 2, 2},
		{"ceiling holds", 3, 3},
		{"above ceiling lowered", 5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, clampUnits(tt.in), 1e-9)
		})
	}
}

func TestMinifyPickMultibyteRationale(t *testing.T) {
	pick := domain.Pick{
		GameID:    "duke_at_kansas_2026-02-01",
		BetType:   domain.BetSpread,
		Selection: "Kansas -3.5",
		Rationale: strings.Repeat("é", maxRationaleChars+50),
	}
	m := minifyPick(pick, "Duke @ Kansas")

	assert.True(t, utf8.ValidString(m.Rationale), "truncation never splits a rune")
	assert.Equal(t, maxRationaleChars+1, utf8.RuneCountInString(m.Rationale), "cap plus the ellipsis")
	assert.True(t, strings.HasSuffix(m.Rationale, "…"))
}

func TestStripStatsBoilerplate(t *testing.T) {
	in := "Advanced stats were provided for both sides. Kansas projects two points better on tempo-adjusted margin. Stats are available here."
	out := stripStatsBoilerplate(in)
	assert.NotContains(t, out, "provided")
	assert.Contains(t, out, "Kansas projects")

	assert.Equal(t, "", stripStatsBoilerplate(""))
	assert.Equal(t, "Keep me.", stripStatsBoilerplate("Keep me."))
}

func TestFallbackRecords(t *testing.T) {
	g := domain.Game{ID: "duke_at_kansas_2026-02-01", AwayTeam: "Duke", HomeTeam: "Kansas"}

	in := fallbackInsight(g)
	assert.Equal(t, g.ID, in.GameID)
	assert.True(t, in.DataUnavailable)
	assert.NotEmpty(t, in.DQ)

	p := fallbackPrediction(g)
	assert.Equal(t, g.ID, p.GameID)
	assert.True(t, p.DataUnavailable)
	assert.LessOrEqual(t, p.Predictions.Confidence, domain.LowDataConfidenceCap)
	assert.InDelta(t, p.Predictions.Scores.Home-p.Predictions.Scores.Away, p.Predictions.Margin, 1e-9)
	assert.InDelta(t, p.Predictions.Scores.Home+p.Predictions.Scores.Away, p.Predictions.Total, 1e-9)

	pk := fallbackPick(g)
	assert.Equal(t, g.ID, pk.GameID)
	assert.Equal(t, domain.RedFlagScore, pk.ConfidenceScore)
	assert.NotEmpty(t, pk.RedFlag)
}
