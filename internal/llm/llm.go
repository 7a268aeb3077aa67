// Package llm is the call layer for the reasoning providers. Two wire
// formats are supported, OpenAI-style chat and Gemini-style
// generateContent, selected per call from the model name. The client owns
// the run's token counters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Message is one chat turn. Role is system/user/assistant/tool. Name
// carries the function name on tool turns; the Gemini wire format echoes
// it back in the function response.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object text
}

// Tool declares one callable function to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schema is a named JSON schema attached as a structured-output constraint.
type Schema struct {
	Name   string
	Schema map[string]any
}

// Request is a provider-neutral call description. When Messages is set it
// is the full conversation after the system turn (tool-call follow-ups);
// otherwise the conversation is system + user.
type Request struct {
	Model       string
	System      string
	User        string
	Messages    []Message
	Schema      *Schema
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// Usage counts tokens for one call or one run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	Calls            int `json:"calls"`
}

// Response is the provider-neutral result.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is the wire-format capability.
type Provider interface {
	Name() string
	Call(ctx context.Context, req Request) (*Response, error)
}

// errSchemaRejected marks a provider refusing the structured-output
// constraint at call time; the client retries once without it.
type errSchemaRejected struct{ cause error }

func (e *errSchemaRejected) Error() string { return fmt.Sprintf("schema rejected: %v", e.cause) }
func (e *errSchemaRejected) Unwrap() error { return e.cause }

// EstimateTokens approximates the token count of a text at four bytes per
// token, good enough for ceiling selection.
func EstimateTokens(s string) int { return len(s) / 4 }

// CompletionCeiling picks the completion-token budget from the tiered
// table: small prompts get 8k out, mid 12k, large 16k.
func CompletionCeiling(promptTokens int) int {
	switch {
	case promptTokens <= 10_000:
		return 8_192
	case promptTokens <= 20_000:
		return 12_288
	default:
		return 16_384
	}
}

// Client routes calls to the right provider and tracks cumulative usage.
// Counters are reset at pipeline start and summarized at end.
type Client struct {
	openai Provider
	gemini Provider
	logger *slog.Logger

	mu    sync.Mutex
	usage Usage
}

// NewClient builds the routing client. Either provider may be nil when its
// key is absent.
func NewClient(openai, gemini Provider, logger *slog.Logger) *Client {
	return &Client{openai: openai, gemini: gemini, logger: logger}
}

// providerFor auto-detects the provider from the model prefix.
func (c *Client) providerFor(model string) (Provider, error) {
	switch {
	case strings.HasPrefix(model, "gemini"):
		if c.gemini == nil {
			return nil, fmt.Errorf("model %s requires GEMINI_API_KEY", model)
		}
		return c.gemini, nil
	default:
		if c.openai == nil {
			return nil, fmt.Errorf("model %s requires OPENAI_API_KEY", model)
		}
		return c.openai, nil
	}
}

// Call submits the request, filling the completion ceiling from the prompt
// estimate when unset, and retrying once without the schema if the
// provider refuses it.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	provider, err := c.providerFor(req.Model)
	if err != nil {
		return nil, err
	}

	if req.MaxTokens == 0 {
		prompt := req.System + req.User
		for _, m := range req.Messages {
			prompt += m.Content
		}
		req.MaxTokens = CompletionCeiling(EstimateTokens(prompt))
	}

	resp, err := provider.Call(ctx, req)
	if err != nil {
		var rejected *errSchemaRejected
		if req.Schema != nil && errors.As(err, &rejected) {
			c.logger.Warn("provider rejected response schema, retrying without",
				"provider", provider.Name(), "model", req.Model)
			req.Schema = nil
			resp, err = provider.Call(ctx, req)
		}
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.usage.PromptTokens += resp.Usage.PromptTokens
	c.usage.CompletionTokens += resp.Usage.CompletionTokens
	c.usage.Calls++
	c.mu.Unlock()

	return resp, nil
}

// ResetCounters zeroes the run's token counters.
func (c *Client) ResetCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage = Usage{}
}

// UsageSummary returns the cumulative usage since the last reset.
func (c *Client) UsageSummary() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
