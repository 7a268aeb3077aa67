package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/llm"
)

const presidentSystem = `You are the president of a sports betting operation giving final sign-off on
today's card. You receive the candidate picks, the current bankroll, and the operation's historical
performance. For each pick decide: approve with a unit size, or reject with a reason.
Sizing discipline: units are fractions of one standard unit, between 0.5 and 3.0. Respect the Kelly
fraction and never size the whole card above 15 percent of bankroll. Red-flagged or score-1 picks are
rejected unless the rationale overwhelmingly justifies them. Mark at most five approved picks as
best_bet. If the candidate set is unworkable as a whole, set decision to "revise" and list the
game_ids to redo with instructions; otherwise decision is "approve".
Respond with {"card": {...}}.`

var presidentSchema = &llm.Schema{
	Name: "card_review",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"card": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"decision": map[string]any{"type": "string", "enum": []string{"approve", "revise"}},
					"approved_picks": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"game_id":                  map[string]any{"type": "string"},
								"units":                    map[string]any{"type": "number"},
								"best_bet":                 map[string]any{"type": "boolean"},
								"confidence":               map[string]any{"type": "number"},
								"final_decision_reasoning": map[string]any{"type": "string"},
							},
							"required": []string{"game_id", "units"},
						},
					},
					"rejected": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"game_id": map[string]any{"type": "string"},
								"reason":  map[string]any{"type": "string"},
							},
							"required": []string{"game_id", "reason"},
						},
					},
					"revision": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"game_ids":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"instructions": map[string]any{"type": "string"},
						},
					},
					"summary": map[string]any{"type": "string"},
				},
				"required": []string{"decision", "approved_picks", "rejected", "summary"},
			},
		},
		"required": []string{"card"},
	},
}

// RejectedPick records a pick the president declined, with the reason.
type RejectedPick struct {
	GameID string `json:"game_id"`
	Reason string `json:"reason"`
}

// RevisionRequest asks the picker stage to redo specific games.
type RevisionRequest struct {
	GameIDs      []string `json:"game_ids"`
	Instructions string   `json:"instructions"`
}

// CardReview is the president's verdict on one candidate card.
type CardReview struct {
	Decision string                `json:"decision"`
	Approved []domain.ApprovedPick `json:"approved_picks"`
	Rejected []RejectedPick        `json:"rejected"`
	Revision *RevisionRequest      `json:"revision,omitempty"`
	Summary  string                `json:"summary"`
}

// minifiedPick is the compressed pick form sent to the president; the
// full rationale stays out of the prompt to hold the token count down.
type minifiedPick struct {
	GameID          string  `json:"game_id"`
	Teams           string  `json:"teams"`
	BetType         string  `json:"bet_type"`
	Selection       string  `json:"selection"`
	Line            float64 `json:"line,omitempty"`
	Odds            int     `json:"odds"`
	Book            string  `json:"book,omitempty"`
	ConfidenceScore int     `json:"score"`
	EdgeEstimate    float64 `json:"edge,omitempty"`
	Rationale       string  `json:"rationale"`
	RedFlag         string  `json:"red_flag,omitempty"`
}

const maxRationaleChars = 200

// President is the sizing and approval stage.
type President struct {
	runtime *Runtime
	model   string
	logger  *slog.Logger
}

// NewPresident creates the president agent.
func NewPresident(runtime *Runtime, model string, logger *slog.Logger) *President {
	return &President{runtime: runtime, model: model, logger: logger}
}

func (p *President) definition() Definition {
	return Definition{
		Name:        "president",
		System:      presidentSystem,
		Temperature: 0.3,
		ResponseKey: "card",
		Schema:      presidentSchema,
	}
}

type presidentInput struct {
	TargetDate    string         `json:"target_date"`
	Bankroll      float64        `json:"bankroll"`
	KellyFraction float64        `json:"kelly_fraction"`
	Performance   string         `json:"historical_performance,omitempty"`
	Picks         []minifiedPick `json:"picks"`
	RevisionNote  string         `json:"revision_note,omitempty"`
}

// Review runs one president pass over the candidate picks. revisionNote
// is empty on the first pass and carries the previous pass's revision
// instructions on a redo.
func (p *President) Review(ctx context.Context, picks []domain.Pick, teamsByGame map[string]string, bankroll, kellyFraction float64, performance, targetDate, revisionNote string) (*CardReview, error) {
	input := presidentInput{
		TargetDate:    targetDate,
		Bankroll:      bankroll,
		KellyFraction: kellyFraction,
		Performance:   performance,
		RevisionNote:  revisionNote,
	}
	for _, pk := range picks {
		input.Picks = append(input.Picks, minifyPick(pk, teamsByGame[pk.GameID]))
	}

	result, err := p.runtime.Call(ctx, p.definition(), p.model, input)
	if err != nil {
		return nil, err
	}
	if result.Raw == nil {
		return nil, domain.ErrInternal("president output unparseable", nil)
	}

	var payload struct {
		Card CardReview `json:"card"`
	}
	if err := json.Unmarshal(result.Raw, &payload); err != nil {
		return nil, domain.ErrInternal("decode card review", err)
	}
	review := payload.Card

	pickByGame := make(map[string]domain.Pick, len(picks))
	for _, pk := range picks {
		pickByGame[pk.GameID] = pk
	}

	// Rehydrate approved picks from the originals; the president only
	// returns sizing and reasoning.
	kept := review.Approved[:0]
	for _, ap := range review.Approved {
		orig, ok := pickByGame[ap.GameID]
		if !ok {
			p.logger.Warn("president approved unknown game", "game_id", ap.GameID)
			continue
		}
		units, reasoning, bestBet := ap.Units, ap.FinalReasoning, ap.BestBet
		conf, err := normalizeConfidence(ap.Confidence)
		if err != nil {
			return nil, err
		}
		ap.Pick = orig
		ap.Units, ap.FinalReasoning, ap.BestBet = units, reasoning, bestBet
		if conf > 0 {
			ap.Confidence = conf
		}
		ap.Units = clampUnits(ap.Units)
		kept = append(kept, ap)
	}
	review.Approved = kept
	domain.ValidateBestBets(review.Approved)

	if review.Decision != "revise" {
		review.Decision = "approve"
		review.Revision = nil
	}
	return &review, nil
}

// normalizeConfidence accepts the two scales models answer on: 0..1
// passes through, 1..10 is divided down, above 10 is invalid.
func normalizeConfidence(v float64) (float64, error) {
	switch {
	case v < 0:
		return 0, domain.ErrValidation(fmt.Sprintf("negative confidence %.2f", v))
	case v <= 1:
		return v, nil
	case v <= 10:
		return v / 10, nil
	default:
		return 0, domain.ErrValidation(fmt.Sprintf("confidence %.2f exceeds the 10-point scale", v))
	}
}

// clampUnits normalizes the president's sizing: a missing or zero unit
// count defaults to 1.0, anything else is held to the 0.5-3.0 range.
func clampUnits(v float64) float64 {
	switch {
	case v <= 0:
		return 1
	case v < 0.5:
		return 0.5
	case v > 3:
		return 3
	}
	return v
}

func minifyPick(pk domain.Pick, teams string) minifiedPick {
	rationale := pk.Rationale
	if r := []rune(rationale); len(r) > maxRationaleChars {
		rationale = string(r[:maxRationaleChars]) + "…"
	}
	return minifiedPick{
		GameID:          pk.GameID,
		Teams:           teams,
		BetType:         string(pk.BetType),
		Selection:       pk.Selection,
		Line:            pk.Line,
		Odds:            pk.Odds,
		Book:            pk.Book,
		ConfidenceScore: pk.ConfidenceScore,
		EdgeEstimate:    pk.EdgeEstimate,
		Rationale:       rationale,
		RedFlag:         pk.RedFlag,
	}
}
