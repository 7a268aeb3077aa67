package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharpline/cardline/internal/cache"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/llm"
)

const researcherSystem = `You are a college basketball research analyst preparing betting research.
For EVERY game in the input you produce exactly one insight record in the token-efficient schema.
Use the tools to gather advanced stats, injuries, recent form and expert predictions. Prefer the
search_advanced_stats tool for efficiency metrics; it reads the rankings table directly.
Keep every field terse. Put data-quality caveats (missing stats, stale injury news, neutral-court
uncertainty) in dq. Never invent numbers: when a metric is unavailable leave it out and note it in dq.
Respond with {"insights": [...]} covering every game_id you were given.`

var researcherSchema = &llm.Schema{
	Name: "game_insights",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"insights": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"game_id":    map[string]any{"type": "string"},
						"league":     map[string]any{"type": "string"},
						"teams":      map[string]any{"type": "string"},
						"start_time": map[string]any{"type": "string"},
						"market": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"spread":    map[string]any{"type": "string"},
								"total":     map[string]any{"type": "string"},
								"moneyline": map[string]any{"type": "string"},
								"book":      map[string]any{"type": "string"},
							},
						},
						"adv": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"away":    teamAdvancedSchema,
								"home":    teamAdvancedSchema,
								"matchup": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							},
						},
						"injuries":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"recent": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"away": map[string]any{"type": "string"},
								"home": map[string]any{"type": "string"},
							},
						},
						"experts":    map[string]any{"type": "string"},
						"common_opp": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"context":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"dq":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"game_id"},
				},
			},
		},
		"required": []string{"insights"},
	},
}

var fourFactorsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"efg": map[string]any{"type": "number"},
		"tov": map[string]any{"type": "number"},
		"orb": map[string]any{"type": "number"},
		"ftr": map[string]any{"type": "number"},
	},
}

var teamAdvancedSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"adj_o":   map[string]any{"type": "number"},
		"adj_d":   map[string]any{"type": "number"},
		"adj_t":   map[string]any{"type": "number"},
		"net_rtg": map[string]any{"type": "number"},
		"rank":    map[string]any{"type": "integer"},
		"conf":    map[string]any{"type": "string"},
		"record":  map[string]any{"type": "string"},
		"luck":    map[string]any{"type": "number"},
		"sos":     map[string]any{"type": "number"},
		"offense": fourFactorsSchema,
		"defense": fourFactorsSchema,
	},
}

const researchCacheTTL = 24 * time.Hour

// Researcher is the tool-augmented research stage.
type Researcher struct {
	runtime *Runtime
	toolset *Toolset
	cache   *cache.Store
	model   string
	logger  *slog.Logger
}

// NewResearcher creates the research agent.
func NewResearcher(runtime *Runtime, toolset *Toolset, store *cache.Store, model string, logger *slog.Logger) *Researcher {
	return &Researcher{runtime: runtime, toolset: toolset, cache: store, model: model, logger: logger}
}

func (r *Researcher) definition() Definition {
	return Definition{
		Name:        "researcher",
		System:      researcherSystem,
		Temperature: 0.3,
		ResponseKey: "insights",
		Schema:      researcherSchema,
		Tools:       r.toolset.Declarations(),
	}
}

// researchInput is the per-batch payload.
type researchInput struct {
	TargetDate string               `json:"target_date"`
	Games      []researchInputGame  `json:"games"`
}

type researchInputGame struct {
	GameID    string               `json:"game_id"`
	AwayTeam  string               `json:"away_team"`
	HomeTeam  string               `json:"home_team"`
	Venue     string               `json:"venue,omitempty"`
	StartTime string               `json:"start_time,omitempty"`
	Lines     []domain.BettingLine `json:"lines"`
}

// Run produces one GameInsight per game, batched with retry and fallback.
// The whole game-set result is cached per date.
func (r *Researcher) Run(ctx context.Context, games []domain.Game, lines []domain.BettingLine, targetDate string, forceRefresh bool) []domain.GameInsight {
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	key := cache.GameSetKey(ids, targetDate)

	var insights []domain.GameInsight
	if !forceRefresh && r.cache.Get(key, &insights, cache.SameDateWithinTTL(targetDate, researchCacheTTL)) {
		r.logger.Info("research cache hit", "date", targetDate, "games", len(insights))
		return insights
	}

	linesByGame := make(map[string][]domain.BettingLine)
	for _, l := range lines {
		linesByGame[l.GameID] = append(linesByGame[l.GameID], l)
	}

	call := func(ctx context.Context, batch []domain.Game) ([]domain.GameInsight, error) {
		input := researchInput{TargetDate: targetDate}
		for _, g := range batch {
			ig := researchInputGame{
				GameID:   g.ID,
				AwayTeam: g.AwayTeam,
				HomeTeam: g.HomeTeam,
				Venue:    g.Venue,
				Lines:    linesByGame[g.ID],
			}
			if g.StartTime != nil {
				ig.StartTime = g.StartTime.Format(time.RFC3339)
			}
			input.Games = append(input.Games, ig)
		}

		result, err := r.runtime.Call(ctx, r.definition(), r.model, input)
		if err != nil {
			return nil, err
		}
		if result.Raw == nil {
			return nil, fmt.Errorf("researcher output unparseable")
		}
		var payload struct {
			Insights []domain.GameInsight `json:"insights"`
		}
		if err := json.Unmarshal(result.Raw, &payload); err != nil {
			return nil, fmt.Errorf("decode insights: %w", err)
		}
		return payload.Insights, nil
	}

	insights = RunBatched(ctx, r.logger, DefaultBatchConfig(), "research", games, call,
		func(in domain.GameInsight) string { return in.GameID },
		fallbackInsight)

	// Cache even when some batches fell back; a later force-refresh can
	// recover, and successful batches are not re-billed meanwhile.
	if err := r.cache.Put(key, targetDate, insights); err != nil {
		r.logger.Warn("research cache write failed", "error", err)
	}
	return insights
}

func fallbackInsight(g domain.Game) domain.GameInsight {
	return domain.GameInsight{
		GameID:          g.ID,
		Teams:           fmt.Sprintf("%s @ %s", g.AwayTeam, g.HomeTeam),
		Injuries:        []string{},
		CommonOpponents: []string{},
		Context:         []string{},
		DQ:              []string{"research agent failed for this game; data unavailable"},
		DataUnavailable: true,
	}
}
