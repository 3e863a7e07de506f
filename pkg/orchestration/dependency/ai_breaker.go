package dependency

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ai-ops-core/core/pkg/ai/llm"
)

// AIBreakerConfig tunes the gobreaker.CircuitBreaker wrapping an AI
// provider client.
type AIBreakerConfig struct {
	// MaxFailures is how many consecutive failures trip the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays Open before letting a
	// HalfOpen probe through.
	OpenTimeout time.Duration
}

// DefaultAIBreakerConfig trips after 5 consecutive failures and stays
// Open for 30s (short trip, short recovery — an LLM call failing fast
// beats one hanging the whole workflow).
func DefaultAIBreakerConfig() AIBreakerConfig {
	return AIBreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

// AIProviderBreaker wraps an llm.Client with a gobreaker.CircuitBreaker,
// so a provider outage trips once and rejects subsequent calls
// immediately instead of letting every caller hang on the provider's
// own timeout. Where CircuitBreaker in this package is the hand-rolled
// cumulative-failure-rate breaker grounded on circuit_breaker_test.go,
// this one is grounded on gobreaker's own consecutive-failure state
// machine, wired specifically to the AI-provider client path.
type AIProviderBreaker struct {
	client llm.Client
	cb     *gobreaker.CircuitBreaker
	logger *logrus.Logger
}

// NewAIProviderBreaker wraps client with a gobreaker.CircuitBreaker
// configured per cfg.
func NewAIProviderBreaker(client llm.Client, cfg AIBreakerConfig, logger *logrus.Logger) *AIProviderBreaker {
	settings := gobreaker.Settings{
		Name:        "ai-provider:" + client.Name(),
		Timeout:     cfg.OpenTimeout,
		MaxRequests: 1, // single HalfOpen probe
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("AI provider circuit breaker state change")
		},
	}

	return &AIProviderBreaker{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Name reports the wrapped client's provider name.
func (b *AIProviderBreaker) Name() string { return b.client.Name() }

// IsAvailable reports whether the wrapped client is reachable. It does
// not itself go through the breaker: availability checks are meant to
// probe the dependency, not be rejected by it.
func (b *AIProviderBreaker) IsAvailable(ctx context.Context) bool {
	return b.client.IsAvailable(ctx)
}

// Complete runs the wrapped client's Complete through the circuit
// breaker.
func (b *AIProviderBreaker) Complete(ctx context.Context, input llm.Input) (llm.Output, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.client.Complete(ctx, input)
	})
	if err != nil {
		return llm.Output{}, err
	}
	return result.(llm.Output), nil
}

// Embed runs the wrapped client's Embed through the circuit breaker.
func (b *AIProviderBreaker) Embed(ctx context.Context, texts []string) ([]llm.Embedding, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.client.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([]llm.Embedding), nil
}

// State reports the underlying gobreaker's current state.
func (b *AIProviderBreaker) State() gobreaker.State {
	return b.cb.State()
}

var _ llm.Client = (*AIProviderBreaker)(nil)
