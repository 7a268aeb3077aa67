package domain

import "time"

// AgentLog is one recorded agent call: which agent, which model, token
// spend and outcome. The table doubles as the cost ledger.
type AgentLog struct {
	ID               int64     `json:"id"`
	Date             string    `json:"date"`
	Agent            string    `json:"agent"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	DurationMS       int64     `json:"duration_ms"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AgentUsage is the per-agent aggregate for one date.
type AgentUsage struct {
	Calls            int `json:"calls"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	Failures         int `json:"failures"`
}

// CardReviewRecord is one persisted president pass over a card.
type CardReviewRecord struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Pass      int       `json:"pass"`
	Decision  string    `json:"decision"`
	Summary   string    `json:"summary"`
	Payload   []byte    `json:"payload"` // full CardReview JSON
	CreatedAt time.Time `json:"created_at"`
}
