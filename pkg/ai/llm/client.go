package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// Config selects and parametrizes a provider (mirrors the shape
// jordigilh-kubernaut's config.LLMConfig is exercised with in
// client_test.go: Provider/Endpoint/Model/Timeout/MaxContextSize).
type Config struct {
	Provider       string
	Endpoint       string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxContextSize int
	AWSRegion      string
}

// Client is the capability every AI provider backend exposes
// (original_source's ai/mod.rs AIProvider trait, generalized from
// per-agent direct dependency into one shared interface foundation
// agents hold by value).
type Client interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Complete(ctx context.Context, input Input) (Output, error)
	Embed(ctx context.Context, texts []string) ([]Embedding, error)
}

// NewClient builds a Client for cfg.Provider, or an error naming the
// unsupported provider (client_test.go's "unsupported provider: %s"
// table case).
func NewClient(cfg Config, logger *logrus.Logger) (Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg, timeout, logger)
	case "openai", "localai", "local":
		return newLangchainClient(cfg, timeout, logger)
	case "bedrock":
		return newBedrockClient(cfg, timeout, logger)
	default:
		return nil, aerrors.WithKind(
			aerrors.FailedToWithDetails("create AI client", "llm",
				fmt.Sprintf("unsupported provider: %s", cfg.Provider), nil),
			aerrors.KindConfiguration,
		)
	}
}
