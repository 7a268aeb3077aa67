package domain

// Pick is the picker stage output: exactly one per game, on the side the
// model gives positive expected value.
type Pick struct {
	GameID          string  `json:"game_id"`
	BetType         BetType `json:"bet_type"`
	Selection       string  `json:"selection_text"`
	Line            float64 `json:"line"`
	Odds            int     `json:"odds"`
	Rationale       string  `json:"rationale"`
	Confidence      float64 `json:"confidence"`       // 0..1
	ConfidenceScore int     `json:"confidence_score"` // 1..10
	EdgeEstimate    float64 `json:"edge_estimate"`
	Book            string  `json:"book"`
	RedFlag         string  `json:"red_flag,omitempty"`
	DataUnavailable bool    `json:"data_unavailable,omitempty"`
}

// ApprovedPick is a pick the president has sized and cleared for the card.
type ApprovedPick struct {
	Pick
	Units          float64 `json:"units"`
	BestBet        bool    `json:"best_bet"`
	FinalReasoning string  `json:"final_decision_reasoning,omitempty"`
}

// MaxBestBets caps the number of president-designated best bets per card.
const MaxBestBets = 5

// RedFlagScore is the forced confidence score for red-flagged picks.
const RedFlagScore = 1

// ValidateBestBets enforces count(best_bet) <= min(MaxBestBets, len(picks)),
// demoting extras in slice order.
func ValidateBestBets(picks []ApprovedPick) {
	limit := MaxBestBets
	if len(picks) < limit {
		limit = len(picks)
	}
	n := 0
	for i := range picks {
		if picks[i].BestBet {
			n++
			if n > limit {
				picks[i].BestBet = false
			}
		}
	}
}
