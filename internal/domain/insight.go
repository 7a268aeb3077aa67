package domain

// FourFactors are the shooting, turnover, rebounding and foul-rate
// components of one side of the ball.
type FourFactors struct {
	EFG *float64 `json:"efg,omitempty"`
	TOV *float64 `json:"tov,omitempty"`
	ORB *float64 `json:"orb,omitempty"`
	FTR *float64 `json:"ftr,omitempty"`
}

// TeamAdvanced carries the rankings-source advanced metrics for one side.
// Nil pointers mean the rankings source had no row for the team; the model
// stage widens its uncertainty accordingly.
type TeamAdvanced struct {
	AdjO       *float64     `json:"adj_o,omitempty"`
	AdjD       *float64     `json:"adj_d,omitempty"`
	AdjT       *float64     `json:"adj_t,omitempty"`
	NetRtg     *float64     `json:"net_rtg,omitempty"`
	Rank       *int         `json:"rank,omitempty"`
	Conference string       `json:"conf,omitempty"`
	Record     string       `json:"record,omitempty"`
	Luck       *float64     `json:"luck,omitempty"`
	SOS        *float64     `json:"sos,omitempty"`
	Offense    *FourFactors `json:"offense,omitempty"`
	Defense    *FourFactors `json:"defense,omitempty"`
}

// HasStats reports whether the side carries usable advanced metrics.
func (t *TeamAdvanced) HasStats() bool {
	return t != nil && t.AdjO != nil && t.AdjD != nil
}

// AdvancedBlock groups both sides' metrics plus matchup notes.
type AdvancedBlock struct {
	Away    *TeamAdvanced `json:"away,omitempty"`
	Home    *TeamAdvanced `json:"home,omitempty"`
	Matchup []string      `json:"matchup,omitempty"`
}

// RecentForm is a one-line form summary per side.
type RecentForm struct {
	Away string `json:"away,omitempty"`
	Home string `json:"home,omitempty"`
}

// MarketSummary is the researcher's compressed view of the current lines.
type MarketSummary struct {
	Spread    string `json:"spread,omitempty"`
	Total     string `json:"total,omitempty"`
	Moneyline string `json:"moneyline,omitempty"`
	Book      string `json:"book,omitempty"`
}

// GameInsight is the researcher stage output: one token-efficient record
// per game. DQ lists data-quality caveats; DataUnavailable marks a
// synthesized fallback record for a game the agent failed on.
type GameInsight struct {
	GameID          string        `json:"game_id"`
	League          string        `json:"league,omitempty"`
	Teams           string        `json:"teams,omitempty"`
	StartTime       string        `json:"start_time,omitempty"`
	Market          MarketSummary `json:"market,omitempty"`
	Adv             AdvancedBlock `json:"adv,omitempty"`
	Injuries        []string      `json:"injuries"`
	Recent          RecentForm    `json:"recent,omitempty"`
	Experts         string        `json:"experts,omitempty"`
	CommonOpponents []string      `json:"common_opp"`
	Context         []string      `json:"context"`
	DQ              []string      `json:"dq"`
	DataUnavailable bool          `json:"data_unavailable,omitempty"`
}
