package provider

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/names"
)

func testOddsSource() *OddsSource {
	return &OddsSource{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func testGame() domain.Game {
	return domain.Game{
		ID:       domain.GameID("Duke", "Kansas", "2026-02-01"),
		AwayTeam: "Duke",
		HomeTeam: "Kansas",
		Date:     "2026-02-01",
	}
}

func fptr(v float64) *float64 { return &v }

func TestConvertSpreadBothMatched(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "spreads", Outcomes: []oddsOutcome{
		{Name: "Kansas Jayhawks", Price: -110, Point: fptr(-3.5)},
		{Name: "Duke Blue Devils", Price: -110, Point: fptr(3.5)},
	}}
	lines := o.convertSpread(testGame(), "draftkings", mkt, time.Now())

	require.Len(t, lines, 2)
	assert.Equal(t, names.Canonical("Kansas"), lines[0].Team)
	assert.Equal(t, -3.5, lines[0].Line)
	assert.Equal(t, names.Canonical("Duke"), lines[1].Team)
	assert.Equal(t, 3.5, lines[1].Line)
}

func TestConvertSpreadOneMatchedForcesOther(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "spreads", Outcomes: []oddsOutcome{
		{Name: "Kansas Jayhawks", Price: -105, Point: fptr(-3.5)},
		{Name: "XYZ Mystery Label", Price: -115, Point: fptr(3.5)},
	}}
	lines := o.convertSpread(testGame(), "draftkings", mkt, time.Now())

	require.Len(t, lines, 2)
	assert.Equal(t, names.Canonical("Kansas"), lines[0].Team)
	assert.Equal(t, names.Canonical("Duke"), lines[1].Team, "unmatched side forced to the other team")
}

func TestConvertSpreadNoneMatchedSignInference(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "spreads", Outcomes: []oddsOutcome{
		{Name: "???", Price: -110, Point: fptr(-6.5)},
		{Name: "!!!", Price: -110, Point: fptr(6.5)},
	}}
	lines := o.convertSpread(testGame(), "draftkings", mkt, time.Now())

	require.Len(t, lines, 2)
	// Negative spread marks the favorite, taken as home.
	assert.Equal(t, names.Canonical("Kansas"), lines[0].Team)
	assert.Equal(t, names.Canonical("Duke"), lines[1].Team)
}

func TestConvertSpreadMissingPointDropped(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "spreads", Outcomes: []oddsOutcome{
		{Name: "Kansas", Price: -110},
		{Name: "Duke", Price: -110, Point: fptr(3.5)},
	}}
	lines := o.convertSpread(testGame(), "draftkings", mkt, time.Now())
	require.Len(t, lines, 1)
	assert.Equal(t, names.Canonical("Duke"), lines[0].Team)
}

func TestConvertTotalLabels(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "totals", Outcomes: []oddsOutcome{
		{Name: "Over", Price: -110, Point: fptr(145.5)},
		{Name: "under", Price: -110, Point: fptr(145.5)},
	}}
	lines := o.convertTotal(testGame(), "fanduel", mkt, time.Now())

	require.Len(t, lines, 2)
	assert.Equal(t, domain.SideOver, lines[0].Team)
	assert.Equal(t, domain.SideUnder, lines[1].Team)
	assert.Equal(t, 145.5, lines[0].Line)
}

func TestConvertTotalUnlabeledNeverGuessed(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "totals", Outcomes: []oddsOutcome{
		{Name: "Kansas", Price: -110, Point: fptr(145.5)},
		{Name: "Under", Price: -110, Point: fptr(145.5)},
	}}
	lines := o.convertTotal(testGame(), "fanduel", mkt, time.Now())

	require.Len(t, lines, 1, "the mislabeled side is dropped, not guessed")
	assert.Equal(t, domain.SideUnder, lines[0].Team)
}

func TestConvertMoneylineSignInference(t *testing.T) {
	o := testOddsSource()
	mkt := oddsMarket{Key: "h2h", Outcomes: []oddsOutcome{
		{Name: "???", Price: -180},
		{Name: "!!!", Price: 155},
	}}
	lines := o.convertMoneyline(testGame(), "draftkings", mkt, time.Now())

	require.Len(t, lines, 2)
	assert.Equal(t, names.Canonical("Kansas"), lines[0].Team, "negative price is the home favorite")
	assert.Equal(t, names.Canonical("Duke"), lines[1].Team)
	assert.Equal(t, -180, lines[0].Odds)
	assert.Equal(t, 155, lines[1].Odds)
}

func TestMatchesGameEitherOrientation(t *testing.T) {
	ev := oddsEvent{HomeTeam: "Kansas Jayhawks", AwayTeam: "Duke Blue Devils"}
	assert.True(t, matchesGame(ev, "Kansas", "Duke"))
	assert.True(t, matchesGame(ev, "Duke", "Kansas"))
	assert.False(t, matchesGame(ev, "Kansas", "Gonzaga"))
}

func TestLinesForGameNoEvent(t *testing.T) {
	o := testOddsSource()
	events := []oddsEvent{{HomeTeam: "Gonzaga", AwayTeam: "Baylor"}}
	assert.Nil(t, o.linesForGame(testGame(), "draftkings", events))
}

func TestScrapeLinesEmptySlate(t *testing.T) {
	o := testOddsSource()
	lines, err := o.ScrapeLines(context.Background(), nil, "2026-02-01", false)
	require.NoError(t, err)
	assert.Nil(t, lines)
}
