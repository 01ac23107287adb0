package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verisage/oracle/pkg/oracle/types"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicProvider calls the Anthropic messages API with the web
// search tool enabled for real-time grounding.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: "https://api.anthropic.com/v1",
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (p *AnthropicProvider) Name() string  { return "claude" }
func (p *AnthropicProvider) Model() string { return p.model }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Evaluate(ctx context.Context, input string, kind types.JobKind) (*Evaluation, error) {
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: 1024,
		System:    SystemPrompt(kind),
		Messages:  []anthropicMessage{{Role: "user", Content: TaskPrompt(input, kind)}},
		Tools:     []anthropicTool{{Type: "web_search_20250305", Name: "web_search"}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(msg))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", parsed.Error.Message)
	}

	// Tool-use turns interleave non-text blocks; keep only the text.
	var raw string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("anthropic: no text content in response")
	}
	return ParseEvaluation(raw, kind), nil
}
