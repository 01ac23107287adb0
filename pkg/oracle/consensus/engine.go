package consensus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verisage/oracle/pkg/oracle/provider"
	"github.com/verisage/oracle/pkg/oracle/types"
)

// ErrInsufficientResponses is returned when no provider produced a
// usable vote; the job fails rather than completing with a degenerate
// result.
var ErrInsufficientResponses = errors.New("all providers failed to respond")

const DefaultProviderTimeout = 60 * time.Second

// Config configures the consensus engine.
type Config struct {
	// Providers are the adapters to fan out to.
	Providers []provider.Provider
	// Weights maps provider name to its fixed voting weight (> 0).
	// Providers without an entry default to weight 1.
	Weights map[string]float64
	// ProviderTimeout is the per-provider call budget, independent of
	// the overall job budget.
	ProviderTimeout time.Duration
}

// Engine fans a query out to all configured providers concurrently and
// aggregates their votes into a single weighted decision.
type Engine struct {
	providers []provider.Provider
	weights   map[string]float64
	timeout   time.Duration
}

// NewEngine creates a consensus engine. At least two providers are
// required: a single voice is not a consensus.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("[Consensus] config is nil")
	}
	if len(cfg.Providers) < 2 {
		return nil, fmt.Errorf("[Consensus] at least 2 providers are required, got %d", len(cfg.Providers))
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	weights := make(map[string]float64, len(cfg.Providers))
	for _, p := range cfg.Providers {
		w := cfg.Weights[p.Name()]
		if w <= 0 {
			w = 1.0
		}
		weights[p.Name()] = w
	}
	return &Engine{
		providers: cfg.Providers,
		weights:   weights,
		timeout:   timeout,
	}, nil
}

// Weight returns the configured voting weight for a provider name.
func (e *Engine) Weight(name string) float64 {
	return e.weights[name]
}

// Resolve queries all providers in parallel and aggregates the votes.
// Individual provider failures are recorded as zero-weight error
// responses; only total failure is fatal.
func (e *Engine) Resolve(ctx context.Context, input string, kind types.JobKind) (*types.ConsensusResult, error) {
	responses := make([]types.ProviderResponse, len(e.providers))

	var wg sync.WaitGroup
	for i, p := range e.providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			ev, err := p.Evaluate(callCtx, input, kind)
			if err != nil {
				log.Warn().Err(err).Str("provider", p.Name()).Msg("provider evaluation failed")
				responses[i] = types.ProviderResponse{
					Provider:   p.Name(),
					Model:      p.Model(),
					Decision:   types.UncertainValue(kind),
					Confidence: 0,
					Reasoning:  fmt.Sprintf("Error querying %s: %v", p.Name(), err),
					Error:      err.Error(),
				}
				return
			}
			responses[i] = types.ProviderResponse{
				Provider:    p.Name(),
				Model:       p.Model(),
				Decision:    ev.Decision,
				Confidence:  ev.Confidence,
				Reasoning:   ev.Reasoning,
				RawResponse: ev.Raw,
			}
		}(i, p)
	}
	wg.Wait()

	// Deterministic ordering so the signed canonical form does not
	// depend on goroutine completion order.
	sort.Slice(responses, func(i, j int) bool {
		return responses[i].Provider < responses[j].Provider
	})

	return e.aggregate(input, kind, responses)
}

// aggregate applies weighted voting over the collected responses.
// score(d) = sum of weight*confidence over non-error providers voting
// d; the winner is the argmax, normalized by the total participating
// weight.
func (e *Engine) aggregate(input string, kind types.JobKind, responses []types.ProviderResponse) (*types.ConsensusResult, error) {
	scores := make(map[types.Decision]float64)
	totalWeight := 0.0
	for _, r := range responses {
		if r.Error != "" {
			continue
		}
		w := e.weights[r.Provider]
		totalWeight += w
		scores[r.Decision] += w * r.Confidence
	}

	if totalWeight == 0 {
		return nil, ErrInsufficientResponses
	}

	// Iterate kind vocabulary order so equal scores are detected
	// deterministically.
	var winner types.Decision
	maxScore := -1.0
	tied := 0
	for _, d := range types.DecisionsFor(kind) {
		score := scores[d]
		if score > maxScore {
			winner = d
			maxScore = score
			tied = 1
		} else if score == maxScore {
			tied++
		}
	}

	finalConfidence := maxScore / totalWeight
	if tied > 1 {
		// Equal maximal scores do not identify a winner.
		winner = types.UncertainValue(kind)
	}

	result := &types.ConsensusResult{
		Query:           input,
		Kind:            kind,
		FinalDecision:   winner,
		FinalConfidence: finalConfidence,
		Explanation:     e.explain(kind, responses, winner, finalConfidence, totalWeight),
		LLMResponses:    responses,
		TotalWeight:     totalWeight,
		Timestamp:       time.Now().UTC(),
	}

	log.Info().
		Str("decision", string(winner)).
		Float64("confidence", finalConfidence).
		Float64("total_weight", totalWeight).
		Msg("consensus reached")
	return result, nil
}
