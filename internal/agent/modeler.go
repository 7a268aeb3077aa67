package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sharpline/cardline/internal/cache"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/llm"
)

const modelerSystem = `You are a quantitative college basketball modeler. For EVERY game you receive
you produce one prediction record: projected scores, margin (home minus away), total, outright win
probabilities summing to 1, and a confidence between 0 and 1.
Then compare the model against each posted market: model probability, implied probability from the
American odds, the edge between them, and your confidence in that edge.
Ground the projection in the advanced efficiency metrics when present. When a game's insight record
says data is unavailable, produce a low-confidence market-anchored projection and say so in model_notes.
Respond with {"predictions": [...]} covering every game_id.`

var modelerSchema = &llm.Schema{
	Name: "predictions",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"predictions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"game_id": map[string]any{"type": "string"},
						"predictions": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"scores": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"away": map[string]any{"type": "number"},
										"home": map[string]any{"type": "number"},
									},
									"required": []string{"away", "home"},
								},
								"margin": map[string]any{"type": "number"},
								"total":  map[string]any{"type": "number"},
								"win_probs": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"away": map[string]any{"type": "number"},
										"home": map[string]any{"type": "number"},
									},
									"required": []string{"away", "home"},
								},
								"confidence": map[string]any{"type": "number"},
							},
							"required": []string{"scores", "margin", "total", "win_probs", "confidence"},
						},
						"market_edges": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"market_type":     map[string]any{"type": "string", "enum": []string{"spread", "total", "moneyline"}},
									"market_line":     map[string]any{"type": "number"},
									"model_prob":      map[string]any{"type": "number"},
									"implied_prob":    map[string]any{"type": "number"},
									"edge":            map[string]any{"type": "number"},
									"edge_confidence": map[string]any{"type": "number"},
								},
								"required": []string{"market_type", "model_prob", "implied_prob", "edge"},
							},
						},
						"ev_estimate": map[string]any{"type": "number"},
						"model_notes": map[string]any{"type": "string"},
					},
					"required": []string{"game_id", "predictions", "market_edges"},
				},
			},
		},
		"required": []string{"predictions"},
	},
}

const modelCacheTTL = 24 * time.Hour

// lowDataNote is appended to model_notes when the confidence cap fires.
const lowDataNote = "confidence capped: no advanced stats for either team"

// Modeler is the prediction stage.
type Modeler struct {
	runtime *Runtime
	cache   *cache.Store
	model   string
	logger  *slog.Logger
}

// NewModeler creates the model agent.
func NewModeler(runtime *Runtime, store *cache.Store, model string, logger *slog.Logger) *Modeler {
	return &Modeler{runtime: runtime, cache: store, model: model, logger: logger}
}

func (m *Modeler) definition() Definition {
	return Definition{
		Name:        "modeler",
		System:      modelerSystem,
		Temperature: 0.2,
		ResponseKey: "predictions",
		Schema:      modelerSchema,
	}
}

type modelInput struct {
	TargetDate string               `json:"target_date"`
	Games      []modelInputGame     `json:"games"`
}

type modelInputGame struct {
	Game    gameHeader           `json:"game"`
	Insight domain.GameInsight   `json:"insight"`
	Lines   []domain.BettingLine `json:"lines"`
}

type gameHeader struct {
	GameID   string `json:"game_id"`
	AwayTeam string `json:"away_team"`
	HomeTeam string `json:"home_team"`
}

// Run produces one Prediction per game. After parsing, every prediction
// for a game where neither side has advanced stats is clamped to the
// low-data confidence ceiling.
func (m *Modeler) Run(ctx context.Context, games []domain.Game, insights []domain.GameInsight, lines []domain.BettingLine, targetDate string, forceRefresh bool) []domain.Prediction {
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	key := cache.GameSetKey(ids, targetDate)

	insightByGame := make(map[string]domain.GameInsight, len(insights))
	for _, in := range insights {
		insightByGame[in.GameID] = in
	}

	var predictions []domain.Prediction
	if !forceRefresh && m.cache.Get(key, &predictions, cache.SameDateWithinTTL(targetDate, modelCacheTTL)) {
		m.logger.Info("model cache hit", "date", targetDate, "games", len(predictions))
		m.enforceLowDataCap(predictions, insightByGame)
		return predictions
	}

	linesByGame := make(map[string][]domain.BettingLine)
	for _, l := range lines {
		linesByGame[l.GameID] = append(linesByGame[l.GameID], l)
	}

	call := func(ctx context.Context, batch []domain.Game) ([]domain.Prediction, error) {
		input := modelInput{TargetDate: targetDate}
		for _, g := range batch {
			input.Games = append(input.Games, modelInputGame{
				Game:    gameHeader{GameID: g.ID, AwayTeam: g.AwayTeam, HomeTeam: g.HomeTeam},
				Insight: insightByGame[g.ID],
				Lines:   linesByGame[g.ID],
			})
		}

		result, err := m.runtime.Call(ctx, m.definition(), m.model, input)
		if err != nil {
			return nil, err
		}
		if result.Raw == nil {
			return nil, fmt.Errorf("modeler output unparseable")
		}
		var payload struct {
			Predictions []domain.Prediction `json:"predictions"`
		}
		if err := json.Unmarshal(result.Raw, &payload); err != nil {
			return nil, fmt.Errorf("decode predictions: %w", err)
		}
		return payload.Predictions, nil
	}

	predictions = RunBatched(ctx, m.logger, DefaultBatchConfig(), "model", games, call,
		func(p domain.Prediction) string { return p.GameID },
		fallbackPrediction)

	m.enforceLowDataCap(predictions, insightByGame)

	if err := m.cache.Put(key, targetDate, predictions); err != nil {
		m.logger.Warn("model cache write failed", "error", err)
	}
	return predictions
}

// enforceLowDataCap clamps confidence post-hoc: the model is asked to be
// humble about thin data, but the cap is enforced here, not trusted to
// the prompt.
func (m *Modeler) enforceLowDataCap(predictions []domain.Prediction, insightByGame map[string]domain.GameInsight) {
	for i := range predictions {
		p := &predictions[i]
		p.ModelNotes = stripStatsBoilerplate(p.ModelNotes)

		in, ok := insightByGame[p.GameID]
		if ok && (in.Adv.Home.HasStats() || in.Adv.Away.HasStats()) {
			continue
		}
		if p.CapConfidence(domain.LowDataConfidenceCap) {
			if p.ModelNotes != "" {
				p.ModelNotes += "; "
			}
			p.ModelNotes += lowDataNote
			m.logger.Debug("low-data confidence cap applied", "game_id", p.GameID)
		}
	}
}

// stripStatsBoilerplate removes the filler sentences models emit about
// stats being present; the metrics themselves already say that.
func stripStatsBoilerplate(notes string) string {
	if notes == "" {
		return ""
	}
	parts := strings.Split(notes, ". ")
	kept := parts[:0]
	for _, p := range parts {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "stats are available") ||
			strings.Contains(lower, "stats available for both") ||
			strings.Contains(lower, "advanced stats were provided") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.TrimSpace(strings.Join(kept, ". "))
}

func fallbackPrediction(g domain.Game) domain.Prediction {
	return domain.Prediction{
		GameID: g.ID,
		Predictions: domain.PredictionCore{
			Scores:     domain.PredictedScores{Away: 70, Home: 72},
			Margin:     2,
			Total:      142,
			WinProbs:   domain.WinProbs{Away: 0.45, Home: 0.55},
			Confidence: 0.1,
		},
		MarketEdges:     []domain.MarketEdge{},
		ModelNotes:      "model agent failed for this game; generic home-edge placeholder",
		DataUnavailable: true,
	}
}
