package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/llm"
)

const auditorSystem = `You are the auditor reviewing yesterday's settled betting card. You receive the
graded bets with their original reasoning and the aggregate performance numbers. Write an honest
post-mortem: what the card got right, what it got wrong, and whether the losses trace to bad data,
bad modeling, bad sizing or variance. Lessons must be specific and actionable, not platitudes.
Respond with {"audit": {...}}.`

var auditorSchema = &llm.Schema{
	Name: "audit_report",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"audit": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{"type": "string"},
					"lessons": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"process_adjustments": map[string]any{"type": "string"},
				},
				"required": []string{"summary", "lessons"},
			},
		},
		"required": []string{"audit"},
	},
}

// AuditReport is the auditor's narrative over one settled card.
type AuditReport struct {
	Summary            string   `json:"summary"`
	Lessons            []string `json:"lessons"`
	ProcessAdjustments string   `json:"process_adjustments,omitempty"`
}

// settledBetView pairs a graded bet with the reasoning that placed it.
type settledBetView struct {
	GameID     string  `json:"game_id"`
	Selection  string  `json:"selection"`
	BetType    string  `json:"bet_type"`
	Line       float64 `json:"line,omitempty"`
	Odds       int     `json:"odds"`
	Units      float64 `json:"units"`
	Result     string  `json:"result"`
	ProfitLoss float64 `json:"profit_loss"`
	FinalScore string  `json:"final_score,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Auditor is the post-settlement review agent.
type Auditor struct {
	runtime *Runtime
	model   string
	logger  *slog.Logger
}

// NewAuditor creates the audit agent.
func NewAuditor(runtime *Runtime, model string, logger *slog.Logger) *Auditor {
	return &Auditor{runtime: runtime, model: model, logger: logger}
}

func (a *Auditor) definition() Definition {
	return Definition{
		Name:        "auditor",
		System:      auditorSystem,
		Temperature: 0.5,
		ResponseKey: "audit",
		Schema:      auditorSchema,
	}
}

type auditInput struct {
	CardDate    string           `json:"card_date"`
	Bets        []settledBetView `json:"bets"`
	Aggregates  any              `json:"aggregates"`
	Performance string           `json:"historical_performance,omitempty"`
}

// Review writes the narrative post-mortem. A failure here degrades to a
// mechanical report, never blocks settlement: grading already happened.
func (a *Auditor) Review(ctx context.Context, cardDate string, bets []domain.Bet, finalScores map[string]string, reasoningByPick map[string]string, aggregates any, performance string) *AuditReport {
	input := auditInput{CardDate: cardDate, Aggregates: aggregates, Performance: performance}
	for _, b := range bets {
		input.Bets = append(input.Bets, settledBetView{
			GameID:     b.GameID,
			Selection:  b.Selection,
			BetType:    string(b.BetType),
			Line:       b.Line,
			Odds:       b.Odds,
			Units:      b.Units,
			Result:     string(b.Result),
			ProfitLoss: b.ProfitLoss,
			FinalScore: finalScores[b.GameID],
			Reasoning:  reasoningByPick[b.PickID.String()],
		})
	}

	result, err := a.runtime.Call(ctx, a.definition(), a.model, input)
	if err != nil || result.Raw == nil {
		a.logger.Warn("audit narrative unavailable", "date", cardDate, "error", err)
		return &AuditReport{Summary: "audit narrative unavailable; see the graded results above", Lessons: []string{}}
	}

	var payload struct {
		Audit AuditReport `json:"audit"`
	}
	if err := json.Unmarshal(result.Raw, &payload); err != nil {
		a.logger.Warn("audit narrative undecodable", "date", cardDate, "error", err)
		return &AuditReport{Summary: "audit narrative unavailable; see the graded results above", Lessons: []string{}}
	}
	if payload.Audit.Lessons == nil {
		payload.Audit.Lessons = []string{}
	}
	return &payload.Audit
}
