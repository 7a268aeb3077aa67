package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sharpline/cardline/internal/fetch"
)

// OpenAIProvider speaks the OpenAI-style chat completions wire format with
// function-calling tools and json_schema response_format.
type OpenAIProvider struct {
	client  *fetch.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewOpenAIProvider creates the OpenAI-style connector.
func NewOpenAIProvider(client *fetch.Client, apiKey string, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		client:  client,
		baseURL: "https://api.openai.com",
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// ── wire types ──

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type oaRequest struct {
	Model               string      `json:"model"`
	Messages            []oaMessage `json:"messages"`
	Temperature         float64     `json:"temperature"`
	MaxCompletionTokens int         `json:"max_completion_tokens,omitempty"`
	Tools               []oaTool    `json:"tools,omitempty"`
	ResponseFormat      any         `json:"response_format,omitempty"`
}

type oaResponse struct {
	Choices []struct {
		Message oaMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
	} `json:"error"`
}

// Call submits one chat completion.
func (p *OpenAIProvider) Call(ctx context.Context, req Request) (*Response, error) {
	payload := oaRequest{
		Model:               req.Model,
		Temperature:         req.Temperature,
		MaxCompletionTokens: req.MaxTokens,
	}

	payload.Messages = append(payload.Messages, oaMessage{Role: "system", Content: req.System})
	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			payload.Messages = append(payload.Messages, toOAMessage(m))
		}
	} else {
		payload.Messages = append(payload.Messages, oaMessage{Role: "user", Content: req.User})
	}

	for _, t := range req.Tools {
		tool := oaTool{Type: "function"}
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		payload.Tools = append(payload.Tools, tool)
	}

	if req.Schema != nil {
		payload.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.Schema.Name,
				"schema": req.Schema.Schema,
				"strict": false,
			},
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + p.apiKey,
		"Content-Type":  "application/json",
	}
	body, err := p.client.PostJSON(ctx, p.baseURL+"/v1/chat/completions", raw, headers)
	if err != nil {
		if req.Schema != nil && strings.Contains(err.Error(), "response_format") {
			return nil, &errSchemaRejected{cause: err}
		}
		return nil, fmt.Errorf("openai call: %w", err)
	}

	var resp oaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if resp.Error != nil {
		if req.Schema != nil && (resp.Error.Param == "response_format" ||
			strings.Contains(resp.Error.Message, "response_format")) {
			return nil, &errSchemaRejected{cause: fmt.Errorf("%s", resp.Error.Message)}
		}
		return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}

	msg := resp.Choices[0].Message
	out := &Response{
		Content: msg.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toOAMessage(m Message) oaMessage {
	out := oaMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
	for _, tc := range m.ToolCalls {
		otc := oaToolCall{ID: tc.ID, Type: "function"}
		otc.Function.Name = tc.Name
		otc.Function.Arguments = tc.Arguments
		out.ToolCalls = append(out.ToolCalls, otc)
	}
	return out
}
