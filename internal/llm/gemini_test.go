package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGMContentToolTurn(t *testing.T) {
	c := toGMContent(Message{
		Role:       "tool",
		ToolCallID: "call_abc123",
		Name:       "search_advanced_stats",
		Content:    `{"team":"Duke"}`,
	})
	require.Len(t, c.Parts, 1)
	require.NotNil(t, c.Parts[0].FunctionResponse)
	assert.Equal(t, "user", c.Role)
	assert.Equal(t, "search_advanced_stats", c.Parts[0].FunctionResponse.Name,
		"function name carried on the message, not derived from the id")
}

func TestToGMContentToolTurnIDFallback(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"minted id with underscored function", "call_0_search_advanced_stats", "search_advanced_stats"},
		{"minted id plain function", "call_2_fetch_url", "fetch_url"},
		{"vendor id passes through", "toolu_xyz", "toolu_xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := toGMContent(Message{Role: "tool", ToolCallID: tt.id, Content: "{}"})
			require.Len(t, c.Parts, 1)
			require.NotNil(t, c.Parts[0].FunctionResponse)
			assert.Equal(t, tt.want, c.Parts[0].FunctionResponse.Name)
		})
	}
}

func TestToGMContentAssistantTurn(t *testing.T) {
	c := toGMContent(Message{
		Role:    "assistant",
		Content: "checking the numbers",
		ToolCalls: []ToolCall{
			{ID: "call_0_search_web", Name: "search_web", Arguments: `{"query":"Duke Kansas preview"}`},
		},
	})
	assert.Equal(t, "model", c.Role)
	require.Len(t, c.Parts, 2)
	assert.Equal(t, "checking the numbers", c.Parts[0].Text)
	require.NotNil(t, c.Parts[1].FunctionCall)
	assert.Equal(t, "search_web", c.Parts[1].FunctionCall.Name)
	assert.Equal(t, "Duke Kansas preview", c.Parts[1].FunctionCall.Args["query"])
}

func TestConvertSchemaToGemini(t *testing.T) {
	in := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"team": map[string]any{"type": "string"},
			"rows": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "number"},
			},
		},
		"required": []string{"team"},
	}
	out := ConvertSchemaToGemini(in)
	assert.Equal(t, "OBJECT", out["type"])
	assert.NotContains(t, out, "additionalProperties")

	props := out["properties"].(map[string]any)
	assert.Equal(t, "STRING", props["team"].(map[string]any)["type"])
	rows := props["rows"].(map[string]any)
	assert.Equal(t, "ARRAY", rows["type"])
	assert.Equal(t, "NUMBER", rows["items"].(map[string]any)["type"])
}
