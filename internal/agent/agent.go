// Package agent holds the LLM agent runtime: the call protocol, the
// parallel tool dispatcher, the batch-with-retry discipline and the five
// pipeline agents.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sharpline/cardline/internal/llm"
)

// Definition is the static contract of one agent: system prompt,
// temperature, response schema and tool declarations.
type Definition struct {
	Name        string
	System      string
	Temperature float64
	ResponseKey string // expected top-level key of the JSON reply
	Schema      *llm.Schema
	Tools       []llm.Tool
}

// Result is one completed agent call.
type Result struct {
	Raw        json.RawMessage // nil on total parse failure
	RawContent string          // verbatim model text, for debugging
	Usage      llm.Usage
}

// Runtime executes agent calls against the LLM client, running tool-call
// rounds through the dispatcher and recovering JSON from the reply.
type Runtime struct {
	client     *llm.Client
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewRuntime creates the agent runtime. dispatcher may be nil for agents
// without tools.
func NewRuntime(client *llm.Client, dispatcher *Dispatcher, logger *slog.Logger) *Runtime {
	return &Runtime{client: client, dispatcher: dispatcher, logger: logger}
}

// Call serializes input to canonical JSON, submits the request, runs at
// most one tool round, and parses the response. A parse failure returns
// an empty Result with the raw content preserved, never an error: the
// batch layer decides whether to retry.
func (r *Runtime) Call(ctx context.Context, def Definition, model string, input any) (*Result, error) {
	user, err := json.MarshalIndent(input, "", " ")
	if err != nil {
		return nil, fmt.Errorf("serialize %s input: %w", def.Name, err)
	}

	req := llm.Request{
		Model:       model,
		System:      def.System,
		User:        string(user),
		Schema:      def.Schema,
		Tools:       def.Tools,
		Temperature: def.Temperature,
	}

	resp, err := r.client.Call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s call: %w", def.Name, err)
	}
	usage := resp.Usage

	if len(resp.ToolCalls) > 0 && r.dispatcher != nil {
		toolMessages := r.dispatcher.Run(ctx, resp.ToolCalls)

		// Follow-up: original user turn, the assistant turn carrying the
		// tool calls, one tool message per call id. Tools are disabled
		// and the JSON response re-requested.
		messages := []llm.Message{{Role: "user", Content: string(user)}}
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, toolMessages...)
		messages = append(messages, llm.Message{
			Role:    "user",
			Content: "Tool results are above. Tools are now disabled; respond with the required JSON document only.",
		})

		followUp := llm.Request{
			Model:       model,
			System:      def.System,
			Messages:    messages,
			Schema:      def.Schema,
			Temperature: def.Temperature,
		}
		resp, err = r.client.Call(ctx, followUp)
		if err != nil {
			return nil, fmt.Errorf("%s tool follow-up: %w", def.Name, err)
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
	}

	result := &Result{RawContent: resp.Content, Usage: usage}
	raw, parseErr := ParseJSONResponse(resp.Content, def.ResponseKey)
	if parseErr != nil {
		r.logger.Error("agent response unparseable", "agent", def.Name,
			"error", parseErr, "content_bytes", len(resp.Content))
		return result, nil
	}
	result.Raw = raw
	return result, nil
}
