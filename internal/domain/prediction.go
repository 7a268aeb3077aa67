package domain

// PredictedScores holds the modeled final score per side.
type PredictedScores struct {
	Away float64 `json:"away"`
	Home float64 `json:"home"`
}

// WinProbs holds modeled outright win probabilities; they sum to 1.
type WinProbs struct {
	Away float64 `json:"away"`
	Home float64 `json:"home"`
}

// PredictionCore is the modeled game outcome.
// Invariants: Margin = Home - Away, Total = Home + Away.
type PredictionCore struct {
	Scores     PredictedScores `json:"scores"`
	Margin     float64         `json:"margin"`
	Total      float64         `json:"total"`
	WinProbs   WinProbs        `json:"win_probs"`
	Confidence float64         `json:"confidence"`
}

// MarketEdge compares the model's probability against one posted market.
type MarketEdge struct {
	MarketType     BetType `json:"market_type"`
	MarketLine     float64 `json:"market_line"`
	ModelProb      float64 `json:"model_prob"`
	ImpliedProb    float64 `json:"implied_prob"`
	Edge           float64 `json:"edge"`
	EdgeConfidence float64 `json:"edge_confidence"`
}

// Prediction is the modeler stage output, one per game.
type Prediction struct {
	GameID          string         `json:"game_id"`
	Predictions     PredictionCore `json:"predictions"`
	MarketEdges     []MarketEdge   `json:"market_edges"`
	EVEstimate      float64        `json:"ev_estimate"`
	ModelNotes      string         `json:"model_notes,omitempty"`
	DataUnavailable bool           `json:"data_unavailable,omitempty"`
}

// LowDataConfidenceCap is applied to predictions for games where neither
// team has advanced stats.
const LowDataConfidenceCap = 0.3

// CapConfidence clamps the prediction and every market edge to the
// low-data ceiling. Returns true if anything was lowered.
func (p *Prediction) CapConfidence(cap float64) bool {
	capped := false
	if p.Predictions.Confidence > cap {
		p.Predictions.Confidence = cap
		capped = true
	}
	for i := range p.MarketEdges {
		if p.MarketEdges[i].EdgeConfidence > cap {
			p.MarketEdges[i].EdgeConfidence = cap
			capped = true
		}
	}
	return capped
}
