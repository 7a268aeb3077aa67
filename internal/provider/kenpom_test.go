package provider

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/cache"
	"github.com/sharpline/cardline/internal/domain"
)

const rankingsPage = `<html><body><table>
<tr><th>2026 Ratings</th></tr>
<tr><th>Rk</th><th>Team</th><th>Conf</th><th>W-L</th><th>NetRtg</th><th>AdjO</th><th></th><th>AdjD</th><th></th><th>NetRtg</th><th></th><th>Luck</th><th></th><th>NetRtg</th></tr>
<tr><td>1</td><td>Duke 1</td><td>ACC</td><td>18-2</td><td>+32.10</td><td>124.3</td><td>2</td><td>92.2</td><td>5</td><td>68.1</td><td>30</td><td>+.021</td><td>14</td><td>+12.4</td></tr>
<tr><td>Rk</td><td>Team</td><td>Conf</td><td>W-L</td><td>NetRtg</td><td>AdjO</td><td></td><td>AdjD</td><td></td><td>NetRtg</td><td></td><td>Luck</td><td></td><td>NetRtg</td></tr>
<tr><td>2</td><td>Kansas</td><td>B12</td><td>17-3</td><td>+29.80</td><td>121.0</td><td>4</td><td>91.2</td><td>3</td><td>66.5</td><td>90</td><td>-.013</td><td>40</td><td>+10.1</td></tr>
<tr><td>999</td><td>Bad Rank</td><td>B12</td><td>0-0</td><td>+1.0</td><td>100.0</td><td>1</td><td>100.0</td><td>1</td><td>68.0</td><td>1</td><td>0.0</td><td>1</td><td>0.0</td></tr>
<tr><td>3</td><td>Gonzaga</td><td>WCC</td><td>16-4</td><td>garbage</td><td>119.5</td><td>6</td><td>93.0</td><td>9</td><td>64.2</td><td>200</td><td>+.002</td><td>77</td><td>+8.0</td></tr>
</table></body></html>`

func TestParseRankingsTable(t *testing.T) {
	rows, err := parseRankingsTable(rankingsPage, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, rows, 3, "repeated header and out-of-range rank dropped")

	duke := rows[0]
	assert.Equal(t, "Duke", duke.Team, "tournament seed stripped")
	assert.Equal(t, 1, duke.Rank)
	assert.Equal(t, "ACC", duke.Conference)
	assert.Equal(t, "18-2", duke.Record)
	assert.Equal(t, 124.3, duke.AdjO)
	assert.Equal(t, 92.2, duke.AdjD)
	assert.Equal(t, 68.1, duke.AdjT, "second NetRtg column is adjusted tempo")
	assert.Equal(t, 32.10, duke.NetRtg)
	assert.Equal(t, 0.021, duke.Luck)
	assert.Equal(t, 12.4, duke.SOS, "third NetRtg column is non-conference SOS")

	kansas := rows[1]
	assert.Equal(t, "Kansas", kansas.Team)
	assert.Equal(t, -0.013, kansas.Luck)

	// NetRtg cell unparseable falls back to AdjO - AdjD.
	zags := rows[2]
	assert.InDelta(t, 119.5-93.0, zags.NetRtg, 1e-9)
}

func TestParseRankingsTableNoHeader(t *testing.T) {
	_, err := parseRankingsTable("<html><body><table><tr><td>x</td></tr></table></body></html>",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestLocateColumnsFallbackOffsets(t *testing.T) {
	cols := locateColumns([]string{"Rk", "Team", "AdjO", "x", "y", "AdjT"})
	assert.Equal(t, 2, cols.adjO)
	assert.Equal(t, 4, cols.adjD, "AdjD sits two after AdjO when unlabeled")
	assert.Equal(t, 5, cols.adjT)
	assert.Equal(t, 7, cols.luck, "Luck sits two after AdjT when unlabeled")
}

const fourFactorsPage = `<html><body><table>
<tr><th>Rk</th><th>Team</th><th>Conf</th><th>eFG%</th><th></th><th>TO%</th><th></th><th>OR%</th><th></th><th>FTRate</th><th></th><th>eFG%</th><th></th><th>TO%</th><th></th><th>OR%</th><th></th><th>FTRate</th><th></th></tr>
<tr><td>1</td><td>Duke</td><td>ACC</td><td>57.1</td><td>2</td><td>14.8</td><td>11</td><td>33.2</td><td>40</td><td>31.0</td><td>88</td><td>44.9</td><td>6</td><td>19.3</td><td>50</td><td>25.1</td><td>30</td><td>26.7</td><td>61</td></tr>
<tr><td>2</td><td>Kansas</td><td>B12</td><td>55.0</td><td>9</td><td>16.1</td><td>70</td><td>30.8</td><td>99</td><td>33.4</td><td>41</td><td>46.2</td><td>14</td><td>18.0</td><td>90</td><td>27.0</td><td>70</td><td>29.9</td><td>120</td></tr>
<tr><td>3</td><td>Broken U</td><td>MWC</td><td>250.0</td><td>1</td><td>15.0</td><td>1</td><td>30.0</td><td>1</td><td>30.0</td><td>1</td><td>45.0</td><td>1</td><td>18.0</td><td>1</td><td>26.0</td><td>1</td><td>28.0</td><td>1</td></tr>
</table></body></html>`

func TestParseFourFactorsTable(t *testing.T) {
	rows, err := parseFourFactorsTable(fourFactorsPage, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, rows, 2, "out-of-range eFG row dropped")

	duke := rows[0]
	assert.Equal(t, "Duke", duke.Team)
	assert.Equal(t, 57.1, duke.OffEFG, "first eFG column is offense")
	assert.Equal(t, 14.8, duke.OffTOV)
	assert.Equal(t, 33.2, duke.OffORB)
	assert.Equal(t, 31.0, duke.OffFTR)
	assert.Equal(t, 44.9, duke.DefEFG, "second eFG column is defense")
	assert.Equal(t, 19.3, duke.DefTOV)
	assert.Equal(t, 25.1, duke.DefORB)
	assert.Equal(t, 26.7, duke.DefFTR)
}

func TestLocateFFColumnsDuplicateLabels(t *testing.T) {
	cols := locateFFColumns([]string{"Rk", "Team", "eFG%", "TO%", "eFG%", "TO%"})
	assert.Equal(t, 1, cols.team)
	assert.Equal(t, 2, cols.offEFG)
	assert.Equal(t, 3, cols.offTOV)
	assert.Equal(t, 4, cols.defEFG, "second occurrence of a label is the defensive side")
	assert.Equal(t, 5, cols.defTOV)
}

func testKenpomStore(t *testing.T) *cache.Store {
	t.Helper()
	return cache.NewStore(filepath.Join(t.TempDir(), "kenpom_cache.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// The nil fetch client makes any upstream touch a panic, so these tests
// double as proof the cached paths never reach the network.

func TestGetTeamStatsPerTeamCache(t *testing.T) {
	store := testKenpomStore(t)
	cached := domain.TeamAdvanced{AdjO: fptr(124.3), AdjD: fptr(92.2), Conference: "ACC"}
	require.NoError(t, store.Put("team_duke", "2026-02-01", cached))

	k := NewKenpomSource(nil, store, "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	adv, err := k.GetTeamStats(context.Background(), "Duke", "2026-02-01")
	require.NoError(t, err)
	require.NotNil(t, adv)
	assert.Equal(t, 124.3, *adv.AdjO)
	assert.Equal(t, "ACC", adv.Conference)
}

func TestGetTeamStatsMergesFourFactors(t *testing.T) {
	store := testKenpomStore(t)
	table := RankingsTable{Date: "2026-02-01", Rows: []RankingRow{
		{Team: "Duke", Conference: "ACC", Rank: 1, AdjO: 124.3, AdjD: 92.2, AdjT: 68.1, NetRtg: 32.1},
	}}
	require.NoError(t, store.Put("rankings", "2026-02-01", table))
	require.NoError(t, store.Put("four_factors", "2026-02-01", []fourFactorsRow{
		{Team: "Duke", OffEFG: 57.1, OffTOV: 14.8, DefEFG: 44.9, DefTOV: 19.3},
	}))

	k := NewKenpomSource(nil, store, "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	adv, err := k.GetTeamStats(context.Background(), "Duke", "2026-02-01")
	require.NoError(t, err)
	require.NotNil(t, adv)
	require.NotNil(t, adv.Offense)
	require.NotNil(t, adv.Defense)
	assert.Equal(t, 57.1, *adv.Offense.EFG)
	assert.Equal(t, 44.9, *adv.Defense.EFG)

	// The merged result lands in the per-team cache.
	var again domain.TeamAdvanced
	assert.True(t, store.Get("team_duke", &again, cache.SameDate("2026-02-01")))
}

func TestGetTeamStatsConcurrent(t *testing.T) {
	store := testKenpomStore(t)
	table := RankingsTable{Date: "2026-02-01", Rows: []RankingRow{
		{Team: "Duke", Conference: "ACC", Rank: 1, AdjO: 124.3, AdjD: 92.2, AdjT: 68.1, NetRtg: 32.1},
		{Team: "Kansas", Conference: "B12", Rank: 2, AdjO: 121.0, AdjD: 91.2, AdjT: 66.5, NetRtg: 29.8},
	}}
	require.NoError(t, store.Put("rankings", "2026-02-01", table))
	require.NoError(t, store.Put("four_factors", "2026-02-01", []fourFactorsRow{
		{Team: "Duke", OffEFG: 57.1, DefEFG: 44.9},
		{Team: "Kansas", OffEFG: 55.0, DefEFG: 46.2},
	}))

	k := NewKenpomSource(nil, store, "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	const lookups = 8
	results := make([]*domain.TeamAdvanced, lookups)
	errs := make([]error, lookups)
	var wg sync.WaitGroup
	for i := 0; i < lookups; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			team := "Duke"
			if i%2 == 1 {
				team = "Kansas"
			}
			results[i], errs[i] = k.GetTeamStats(context.Background(), team, "2026-02-01")
		}(i)
	}
	wg.Wait()

	for i := 0; i < lookups; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i], "lookup %d", i)
		want := 124.3
		if i%2 == 1 {
			want = 121.0
		}
		assert.Equal(t, want, *results[i].AdjO, "lookup %d", i)
	}
}

func TestCleanTeamCell(t *testing.T) {
	assert.Equal(t, "Duke", cleanTeamCell("Duke 1"))
	assert.Equal(t, "Michigan State", cleanTeamCell("Michigan State 11"))
	assert.Equal(t, "Duke", cleanTeamCell("Duke"))
	assert.Equal(t, "", cleanTeamCell("  "))
}
