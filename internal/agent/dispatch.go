package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sharpline/cardline/internal/llm"
	"github.com/sharpline/cardline/internal/provider"
)

const (
	maxToolWorkers    = 10
	maxToolResultSize = 8 * 1024
	maxContentField   = 2 * 1024
	maxStringField    = 1 * 1024
	maxArrayItems     = 5
	truncationNote    = "…[trimmed to fit tool budget]"
)

// Toolset exposes the research helpers as LLM-callable functions for one
// target date.
type Toolset struct {
	web        *provider.WebSearch
	targetDate string
	logger     *slog.Logger
}

// NewToolset builds the per-run toolset.
func NewToolset(web *provider.WebSearch, targetDate string, logger *slog.Logger) *Toolset {
	return &Toolset{web: web, targetDate: targetDate, logger: logger}
}

// Declarations lists the functions offered to the researcher.
func (t *Toolset) Declarations() []llm.Tool {
	teamParam := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team": map[string]any{"type": "string", "description": "Team name"},
		},
		"required": []string{"team"},
	}
	return []llm.Tool{
		{
			Name:        "search_web",
			Description: "Keyword web search. Returns title, url, snippet per hit.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "fetch_url",
			Description: "Fetch a page and return its cleaned text content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string"},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        "search_game_predictions",
			Description: "Find expert predictions for one matchup.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"away_team": map[string]any{"type": "string"},
					"home_team": map[string]any{"type": "string"},
				},
				"required": []string{"away_team", "home_team"},
			},
		},
		{Name: "search_team_stats", Description: "Find season statistics for a team.", Parameters: teamParam},
		{Name: "search_injuries", Description: "Find the current injury report for a team.", Parameters: teamParam},
		{Name: "search_advanced_stats", Description: "Advanced efficiency metrics for a team, from the rankings table when available.", Parameters: teamParam},
	}
}

// Execute runs one tool call.
func (t *Toolset) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	str := func(key string) string {
		v, _ := args[key].(string)
		return strings.TrimSpace(v)
	}
	switch name {
	case "search_web":
		return t.web.SearchWeb(ctx, str("query"))
	case "fetch_url":
		return t.web.FetchURL(ctx, str("url"))
	case "search_game_predictions":
		return t.web.SearchGamePredictions(ctx, str("away_team"), str("home_team"))
	case "search_team_stats":
		return t.web.SearchTeamStats(ctx, str("team"))
	case "search_injuries":
		return t.web.SearchInjuries(ctx, str("team"))
	case "search_advanced_stats":
		return t.web.SearchAdvancedStats(ctx, str("team"), t.targetDate)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

// DedupKey canonicalizes a call so identical work executes once: team
// tools key on the lowercased team, game tools on the sorted pair plus
// date, searches on the query text.
func (t *Toolset) DedupKey(name string, args map[string]any) string {
	lower := func(key string) string {
		v, _ := args[key].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
	switch name {
	case "search_team_stats", "search_injuries", "search_advanced_stats":
		return name + "|" + lower("team")
	case "search_game_predictions":
		pair := []string{lower("away_team"), lower("home_team")}
		sort.Strings(pair)
		return name + "|" + strings.Join(pair, "|") + "|" + t.targetDate
	case "fetch_url":
		return name + "|" + lower("url")
	default:
		return name + "|" + lower("query")
	}
}

// Dispatcher executes a round of LLM tool calls concurrently with
// deduplication, then builds the follow-up conversation.
type Dispatcher struct {
	tools  *Toolset
	logger *slog.Logger
}

// NewDispatcher creates the dispatcher over a toolset.
func NewDispatcher(tools *Toolset, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{tools: tools, logger: logger}
}

// Run executes the calls and returns one result message per original call
// id, in the original order.
func (d *Dispatcher) Run(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	type execution struct {
		once   sync.Once
		result string
	}

	// K distinct keys → exactly K executions, shared across call ids.
	executions := make(map[string]*execution)
	argsByKey := make(map[string]map[string]any)
	nameByKey := make(map[string]string)
	keyByCall := make([]string, len(calls))

	for i, call := range calls {
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = map[string]any{}
		}
		key := d.tools.DedupKey(call.Name, args)
		keyByCall[i] = key
		if _, seen := executions[key]; !seen {
			executions[key] = &execution{}
			argsByKey[key] = args
			nameByKey[key] = call.Name
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxToolWorkers)
	for key, exec := range executions {
		key, exec := key, exec
		g.Go(func() error {
			exec.once.Do(func() {
				result, err := d.tools.Execute(gctx, nameByKey[key], argsByKey[key])
				if err != nil {
					d.logger.Warn("tool call failed", "tool", nameByKey[key], "error", err)
					exec.result = fmt.Sprintf(`{"error":%q}`, err.Error())
					return
				}
				exec.result = TrimToolResult(result)
			})
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug("tool round dispatched", "calls", len(calls), "executions", len(executions))

	messages := make([]llm.Message, 0, len(calls))
	for i, call := range calls {
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    executions[keyByCall[i]].result,
		})
	}
	return messages
}

// TrimToolResult serializes a tool result, shrinking anything above the
// per-tool cap: advanced-stats payloads are kept whole when flagged,
// string fields are truncated (content gets the larger budget), arrays
// keep their head, and a sentinel notes the cut.
func TrimToolResult(result any) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error":"unserializable tool result: %s"}`, err.Error())
	}
	if len(raw) <= maxToolResultSize {
		return string(raw)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw[:maxToolResultSize]) + truncationNote
	}
	trimmed := trimValue(decoded, true)
	out, err := json.Marshal(map[string]any{"result": trimmed, "note": truncationNote})
	if err != nil || len(out) > maxToolResultSize {
		return string(raw[:maxToolResultSize]) + truncationNote
	}
	return string(out)
}

func trimValue(v any, topLevel bool) any {
	switch val := v.(type) {
	case map[string]any:
		// Advanced-stats payloads survive trimming intact.
		if flagged, ok := val["has_advanced_stats"].(bool); ok && flagged && topLevel {
			return val
		}
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = trimField(k, sub)
		}
		return out
	case []any:
		if len(val) > maxArrayItems {
			val = val[:maxArrayItems]
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = trimValue(item, false)
		}
		return out
	case string:
		return truncateString(val, maxStringField)
	default:
		return v
	}
}

func trimField(key string, v any) any {
	if s, ok := v.(string); ok {
		if key == "content" || key == "snippet" || key == "text" {
			return truncateString(s, maxContentField)
		}
		return truncateString(s, maxStringField)
	}
	return trimValue(v, false)
}

func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + truncationNote
}
