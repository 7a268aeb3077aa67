package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/llm"
)

func testToolset() *Toolset {
	return NewToolset(nil, "2026-02-01", discardLogger())
}

func TestDedupKeyTeamTools(t *testing.T) {
	ts := testToolset()
	a := ts.DedupKey("search_injuries", map[string]any{"team": "Duke"})
	b := ts.DedupKey("search_injuries", map[string]any{"team": "  duke "})
	assert.Equal(t, a, b, "team casing and spacing collapse to one key")

	c := ts.DedupKey("search_team_stats", map[string]any{"team": "Duke"})
	assert.NotEqual(t, a, c, "different tools never share a key")
}

func TestDedupKeyGamePredictions(t *testing.T) {
	ts := testToolset()
	a := ts.DedupKey("search_game_predictions", map[string]any{"away_team": "Duke", "home_team": "Kansas"})
	b := ts.DedupKey("search_game_predictions", map[string]any{"away_team": "Kansas", "home_team": "Duke"})
	assert.Equal(t, a, b, "pair order is canonicalized")
	assert.Contains(t, a, "2026-02-01")
}

func TestDedupKeyQueries(t *testing.T) {
	ts := testToolset()
	a := ts.DedupKey("search_web", map[string]any{"query": "Duke Kansas preview"})
	b := ts.DedupKey("search_web", map[string]any{"query": "duke kansas preview"})
	assert.Equal(t, a, b)

	u := ts.DedupKey("fetch_url", map[string]any{"url": "https://example.com/a"})
	v := ts.DedupKey("fetch_url", map[string]any{"url": "https://example.com/b"})
	assert.NotEqual(t, u, v)
}

func TestToolsetDeclarations(t *testing.T) {
	decls := testToolset().Declarations()
	require.Len(t, decls, 6)
	names := make(map[string]bool)
	for _, d := range decls {
		names[d.Name] = true
		require.NotNil(t, d.Parameters, "%s needs a parameter schema", d.Name)
	}
	for _, want := range []string{"search_web", "fetch_url", "search_game_predictions",
		"search_team_stats", "search_injuries", "search_advanced_stats"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestRunCarriesToolNameOnResults(t *testing.T) {
	d := NewDispatcher(testToolset(), discardLogger())
	calls := []llm.ToolCall{
		{ID: "call_0_no_such_tool", Name: "no_such_tool", Arguments: `{"query":"a"}`},
		{ID: "toolu_xyz", Name: "also_missing", Arguments: `{"query":"b"}`},
	}
	msgs := d.Run(context.Background(), calls)
	require.Len(t, msgs, 2)
	for i, m := range msgs {
		assert.Equal(t, "tool", m.Role)
		assert.Equal(t, calls[i].ID, m.ToolCallID)
		assert.Equal(t, calls[i].Name, m.Name, "providers need the function name back, not just the id")
		assert.Contains(t, m.Content, "error")
	}
}

func TestTrimToolResultSmallPassesThrough(t *testing.T) {
	out := TrimToolResult(map[string]any{"hello": "world"})
	assert.JSONEq(t, `{"hello":"world"}`, out)
}

func TestTrimToolResultLargeIsShrunk(t *testing.T) {
	big := map[string]any{
		"content": strings.Repeat("x", 10_000),
		"items":   []any{"a", "b", "c", "d", "e", "f", "g", "h"},
	}
	out := TrimToolResult(big)
	assert.LessOrEqual(t, len(out), maxToolResultSize)
	assert.Contains(t, out, truncationNote)

	var decoded struct {
		Result struct {
			Content string   `json:"content"`
			Items   []string `json:"items"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.LessOrEqual(t, len(decoded.Result.Content), maxContentField+len(truncationNote))
	assert.Len(t, decoded.Result.Items, maxArrayItems)
}

func TestTrimValueKeepsAdvancedStats(t *testing.T) {
	long := strings.Repeat("y", maxStringField+500)
	flagged := map[string]any{
		"has_advanced_stats": true,
		"advanced":           map[string]any{"adj_o": 118.2, "adj_d": 95.4},
		"notes":              long,
	}
	out, ok := trimValue(flagged, true).(map[string]any)
	require.True(t, ok)
	// A flagged payload survives field trimming intact.
	assert.Equal(t, long, out["notes"])

	unflagged := map[string]any{"notes": long}
	trimmed, ok := trimValue(unflagged, true).(map[string]any)
	require.True(t, ok)
	assert.Less(t, len(trimmed["notes"].(string)), len(long))
}

func TestTrimToolResultUnserializable(t *testing.T) {
	out := TrimToolResult(make(chan int))
	assert.Contains(t, out, "unserializable")
}
