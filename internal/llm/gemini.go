package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sharpline/cardline/internal/fetch"
)

// GeminiProvider speaks the Gemini generateContent wire format. Tools are
// function declarations, the response schema lives in generationConfig,
// and safety filters are fully disabled for this use case.
type GeminiProvider struct {
	client  *fetch.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewGeminiProvider creates the Gemini-style connector.
func NewGeminiProvider(client *fetch.Client, apiKey string, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{
		client:  client,
		baseURL: "https://generativelanguage.googleapis.com",
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// ── wire types ──

type gmPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *gmFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *gmFunctionResp `json:"functionResponse,omitempty"`
}

type gmFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type gmFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type gmContent struct {
	Role  string   `json:"role,omitempty"` // user or model
	Parts []gmPart `json:"parts"`
}

type gmRequest struct {
	SystemInstruction *gmContent     `json:"system_instruction,omitempty"`
	Contents          []gmContent    `json:"contents"`
	Tools             []gmTools      `json:"tools,omitempty"`
	GenerationConfig  map[string]any `json:"generationConfig"`
	SafetySettings    []gmSafety     `json:"safetySettings"`
}

type gmTools struct {
	FunctionDeclarations []map[string]any `json:"function_declarations"`
}

type gmSafety struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type gmResponse struct {
	Candidates []struct {
		Content gmContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var geminiSafetyOff = []gmSafety{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// Call submits one generateContent request.
func (p *GeminiProvider) Call(ctx context.Context, req Request) (*Response, error) {
	payload := gmRequest{
		GenerationConfig: map[string]any{
			"temperature":     req.Temperature,
			"maxOutputTokens": req.MaxTokens,
		},
		SafetySettings: geminiSafetyOff,
	}
	if req.System != "" {
		payload.SystemInstruction = &gmContent{Parts: []gmPart{{Text: req.System}}}
	}

	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			payload.Contents = append(payload.Contents, toGMContent(m))
		}
	} else {
		payload.Contents = []gmContent{{Role: "user", Parts: []gmPart{{Text: req.User}}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  ConvertSchemaToGemini(t.Parameters),
			})
		}
		payload.Tools = []gmTools{{FunctionDeclarations: decls}}
	} else if req.Schema != nil {
		// Gemini cannot combine tools with a response schema.
		payload.GenerationConfig["responseMimeType"] = "application/json"
		payload.GenerationConfig["responseSchema"] = ConvertSchemaToGemini(req.Schema.Schema)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)
	body, err := p.client.PostJSON(ctx, url, raw, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		if req.Schema != nil && strings.Contains(err.Error(), "response_schema") {
			return nil, &errSchemaRejected{cause: err}
		}
		return nil, fmt.Errorf("gemini call: %w", err)
	}

	var resp gmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if resp.Error != nil {
		if req.Schema != nil && strings.Contains(resp.Error.Message, "schema") {
			return nil, &errSchemaRejected{cause: fmt.Errorf("%s", resp.Error.Message)}
		}
		return nil, fmt.Errorf("gemini error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}

	out := &Response{
		Usage: Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}
	for i, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d_%s", i, part.FunctionCall.Name),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	return out, nil
}

func toGMContent(m Message) gmContent {
	switch m.Role {
	case "assistant":
		c := gmContent{Role: "model"}
		if m.Content != "" {
			c.Parts = append(c.Parts, gmPart{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			c.Parts = append(c.Parts, gmPart{FunctionCall: &gmFunctionCall{Name: tc.Name, Args: args}})
		}
		return c
	case "tool":
		name := m.Name
		if name == "" {
			// Fallback: our own ids are minted call_<i>_<fn>, and tool
			// names themselves contain underscores.
			if parts := strings.SplitN(m.ToolCallID, "_", 3); len(parts) == 3 {
				name = parts[2]
			} else {
				name = m.ToolCallID
			}
		}
		return gmContent{Role: "user", Parts: []gmPart{{
			FunctionResponse: &gmFunctionResp{
				Name:     name,
				Response: map[string]any{"content": m.Content},
			},
		}}}
	default:
		return gmContent{Role: "user", Parts: []gmPart{{Text: m.Content}}}
	}
}

// ConvertSchemaToGemini normalizes a JSON schema into Gemini's schema
// dialect: type names uppercased, enums stringified uppercase where they
// are types, unsupported keywords dropped.
func ConvertSchemaToGemini(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch k {
		case "additionalProperties", "$schema", "strict":
			continue
		case "type":
			if s, ok := v.(string); ok {
				out["type"] = strings.ToUpper(s)
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				conv := make(map[string]any, len(props))
				for name, sub := range props {
					if subMap, ok := sub.(map[string]any); ok {
						conv[name] = ConvertSchemaToGemini(subMap)
					}
				}
				out["properties"] = conv
			}
		case "items":
			if subMap, ok := v.(map[string]any); ok {
				out["items"] = ConvertSchemaToGemini(subMap)
			}
		default:
			out[k] = v
		}
	}
	return out
}
