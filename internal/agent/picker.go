package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/llm"
)

const pickerSystem = `You are a betting analyst selecting one play per game from the model output.
For EVERY game choose the single market (spread, total or moneyline) where the model edge is
strongest, quote the exact line and American odds from the posted markets, and explain the pick in
two or three sentences. Confidence is 0 to 1; confidence_score is an integer 1 to 10.
If the data quality notes or the model notes undermine the pick, set red_flag to a short reason
instead of omitting the game; a red-flagged pick is still one record.
Respond with {"picks": [...]} covering every game_id.`

var pickerSchema = &llm.Schema{
	Name: "picks",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"picks": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"game_id":          map[string]any{"type": "string"},
						"bet_type":         map[string]any{"type": "string", "enum": []string{"spread", "total", "moneyline"}},
						"selection_text":   map[string]any{"type": "string"},
						"line":             map[string]any{"type": "number"},
						"odds":             map[string]any{"type": "integer"},
						"rationale":        map[string]any{"type": "string"},
						"confidence":       map[string]any{"type": "number"},
						"confidence_score": map[string]any{"type": "integer"},
						"edge_estimate":    map[string]any{"type": "number"},
						"book":             map[string]any{"type": "string"},
						"red_flag":         map[string]any{"type": "string"},
					},
					"required": []string{"game_id", "bet_type", "selection_text", "odds", "rationale", "confidence", "confidence_score"},
				},
			},
		},
		"required": []string{"picks"},
	},
}

// Picker is the selection stage.
type Picker struct {
	runtime *Runtime
	model   string
	logger  *slog.Logger
}

// NewPicker creates the pick agent.
func NewPicker(runtime *Runtime, model string, logger *slog.Logger) *Picker {
	return &Picker{runtime: runtime, model: model, logger: logger}
}

func (p *Picker) definition() Definition {
	return Definition{
		Name:        "picker",
		System:      pickerSystem,
		Temperature: 0.4,
		ResponseKey: "picks",
		Schema:      pickerSchema,
	}
}

type pickInput struct {
	TargetDate   string          `json:"target_date"`
	RevisionNote string          `json:"revision_note,omitempty"`
	Games        []pickInputGame `json:"games"`
}

type pickInputGame struct {
	Game       gameHeader           `json:"game"`
	Insight    domain.GameInsight   `json:"insight"`
	Prediction domain.Prediction    `json:"prediction"`
	Lines      []domain.BettingLine `json:"lines"`
}

// Run produces exactly one Pick per game. Red-flagged picks keep their
// record but are forced to the floor confidence score so the sizing stage
// treats them as pass candidates.
func (p *Picker) Run(ctx context.Context, games []domain.Game, insights []domain.GameInsight, predictions []domain.Prediction, lines []domain.BettingLine, targetDate, revisionNote string) []domain.Pick {
	insightByGame := make(map[string]domain.GameInsight, len(insights))
	for _, in := range insights {
		insightByGame[in.GameID] = in
	}
	predByGame := make(map[string]domain.Prediction, len(predictions))
	for _, pr := range predictions {
		predByGame[pr.GameID] = pr
	}
	linesByGame := make(map[string][]domain.BettingLine)
	for _, l := range lines {
		linesByGame[l.GameID] = append(linesByGame[l.GameID], l)
	}

	call := func(ctx context.Context, batch []domain.Game) ([]domain.Pick, error) {
		input := pickInput{TargetDate: targetDate, RevisionNote: revisionNote}
		for _, g := range batch {
			input.Games = append(input.Games, pickInputGame{
				Game:       gameHeader{GameID: g.ID, AwayTeam: g.AwayTeam, HomeTeam: g.HomeTeam},
				Insight:    insightByGame[g.ID],
				Prediction: predByGame[g.ID],
				Lines:      linesByGame[g.ID],
			})
		}

		result, err := p.runtime.Call(ctx, p.definition(), p.model, input)
		if err != nil {
			return nil, err
		}
		if result.Raw == nil {
			return nil, fmt.Errorf("picker output unparseable")
		}
		var payload struct {
			Picks []domain.Pick `json:"picks"`
		}
		if err := json.Unmarshal(result.Raw, &payload); err != nil {
			return nil, fmt.Errorf("decode picks: %w", err)
		}
		return payload.Picks, nil
	}

	picks := RunBatched(ctx, p.logger, DefaultBatchConfig(), "picks", games, call,
		func(pk domain.Pick) string { return pk.GameID },
		fallbackPick)

	for i := range picks {
		pk := &picks[i]
		if pk.ConfidenceScore < 1 {
			pk.ConfidenceScore = 1
		}
		if pk.ConfidenceScore > 10 {
			pk.ConfidenceScore = 10
		}
		if pk.RedFlag != "" && pk.ConfidenceScore != domain.RedFlagScore {
			p.logger.Debug("red-flagged pick demoted", "game_id", pk.GameID, "red_flag", pk.RedFlag)
			pk.ConfidenceScore = domain.RedFlagScore
		}
	}
	return picks
}

func fallbackPick(g domain.Game) domain.Pick {
	return domain.Pick{
		GameID:          g.ID,
		BetType:         domain.BetMoneyline,
		Selection:       g.HomeTeam + " ML",
		Odds:            -110,
		Rationale:       "pick agent failed for this game",
		Confidence:      0.05,
		ConfidenceScore: domain.RedFlagScore,
		RedFlag:         "agent failure; do not bet",
		DataUnavailable: true,
	}
}
