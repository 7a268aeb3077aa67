package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponseDirect(t *testing.T) {
	raw, err := ParseJSONResponse(`{"picks": [{"game_id": "a"}]}`, "picks")
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Contains(t, v, "picks")
}

func TestParseJSONResponseWithProse(t *testing.T) {
	content := `Here is my analysis of the slate.

{"insights": [{"game_id": "duke_at_kansas_2026-02-01"}]}

Let me know if you need anything else.`
	raw, err := ParseJSONResponse(content, "insights")
	require.NoError(t, err)
	var v struct {
		Insights []map[string]any `json:"insights"`
	}
	require.NoError(t, json.Unmarshal(raw, &v))
	require.Len(t, v.Insights, 1)
	assert.Equal(t, "duke_at_kansas_2026-02-01", v.Insights[0]["game_id"])
}

func TestParseJSONResponseFenced(t *testing.T) {
	content := "Sure.\n```json\n{\"predictions\": []}\n```"
	raw, err := ParseJSONResponse(content, "predictions")
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Contains(t, v, "predictions")
}

func TestParseJSONResponseTrailingComma(t *testing.T) {
	content := `{"picks": [{"game_id": "a",},],}`
	raw, err := ParseJSONResponse(content, "picks")
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(raw, &v))
}

func TestParseJSONResponseFencedWithTrailingComma(t *testing.T) {
	content := "```json\n{\"card\": {\"decision\": \"approve\",}}\n```"
	raw, err := ParseJSONResponse(content, "card")
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(raw, &v))
}

func TestParseJSONResponseEmpty(t *testing.T) {
	_, err := ParseJSONResponse("", "picks")
	require.Error(t, err)
	_, err = ParseJSONResponse("   \n  ", "picks")
	require.Error(t, err)
}

func TestParseJSONResponseUnrecoverable(t *testing.T) {
	_, err := ParseJSONResponse("I could not produce the analysis today.", "picks")
	require.Error(t, err)
}

func TestExtractObjectWithKey(t *testing.T) {
	content := `thinking... {"wrapper": {"picks": [1, 2]}} done`
	got := extractObjectWithKey(content, "picks")
	assert.Equal(t, `{"picks": [1, 2]}`, got)

	assert.Empty(t, extractObjectWithKey("no such key here", "picks"))
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `{"a": [1]}`, repairJSON("```json\n{\"a\": [1,]}\n```"))
	assert.Equal(t, `{"a": 1}`, repairJSON(`prose before {"a": 1} prose after`))
}
