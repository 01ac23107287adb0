package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/verisage/oracle/pkg/oracle/types"
)

const defaultPerplexityModel = "sonar-pro"

// PerplexityProvider calls the Perplexity API. Sonar models carry
// built-in real-time web search.
type PerplexityProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewPerplexityProvider(cfg Config) *PerplexityProvider {
	model := cfg.Model
	if model == "" {
		model = defaultPerplexityModel
	}
	return &PerplexityProvider{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: "https://api.perplexity.ai",
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (p *PerplexityProvider) Name() string  { return "perplexity" }
func (p *PerplexityProvider) Model() string { return p.model }

func (p *PerplexityProvider) Evaluate(ctx context.Context, input string, kind types.JobKind) (*Evaluation, error) {
	raw, err := postChatCompletion(ctx, p.client, p.baseURL, p.apiKey, chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(kind)},
			{Role: "user", Content: TaskPrompt(input, kind)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	return ParseEvaluation(raw, kind), nil
}
