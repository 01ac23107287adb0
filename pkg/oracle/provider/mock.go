package provider

import (
	"context"
	"time"

	"github.com/verisage/oracle/pkg/oracle/types"
)

// MockProvider returns a fixed answer after a configurable delay. Used
// in mock mode to exercise the full pipeline without live APIs.
type MockProvider struct {
	name       string
	Decision   types.Decision
	Confidence float64
	Delay      time.Duration
	Err        error
}

func NewMockProvider(name string, delay time.Duration) *MockProvider {
	return &MockProvider{
		name:       name,
		Decision:   types.DecisionYes,
		Confidence: 0.85,
		Delay:      delay,
	}
}

func (p *MockProvider) Name() string  { return p.name }
func (p *MockProvider) Model() string { return "mock" }

func (p *MockProvider) Evaluate(ctx context.Context, input string, kind types.JobKind) (*Evaluation, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}
	decision := p.Decision
	if !types.ValidDecision(kind, decision) {
		decision = types.UncertainValue(kind)
	}
	return &Evaluation{
		Decision:   decision,
		Confidence: p.Confidence,
		Reasoning:  "Mock evaluation for development and testing.",
		Raw:        "mock",
	}, nil
}
