package llm

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// anthropicClient wraps anthropic-sdk-go's Messages API, grounded on
// original_source's ai/anthropic.rs (AnthropicProvider: complete via
// the Messages endpoint; no native embeddings, so Embed returns an
// error).
type anthropicClient struct {
	sdk     anthropic.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

func newAnthropicClient(cfg Config, timeout time.Duration, logger *logrus.Logger) (Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	return &anthropicClient{
		sdk:     anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *anthropicClient) Name() string { return "anthropic" }

func (c *anthropicClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err == nil
}

func (c *anthropicClient) Complete(ctx context.Context, input Input) (Output, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokensOr(input.MaxTokens, 1024)),
	}
	for _, m := range input.Messages {
		switch m.Role {
		case RoleSystem:
			params.System = []anthropic.TextBlockParam{{Text: m.Content}}
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return Output{}, aerrors.WithKind(aerrors.FailedToWithDetails("complete", "anthropic", c.model, err), aerrors.KindAIProvider)
	}

	var content string
	for _, block := range resp.Content {
		content += block.Text
	}

	c.logger.WithFields(logging.NewFields().
		Component("llm").Operation("complete").Resource("provider", "anthropic").
		Duration(time.Since(started)).Logrus()).Debug("anthropic completion")

	return Output{
		Content: content,
		Model:   c.model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Duration: time.Since(started),
	}, nil
}

// Embed is unsupported: Anthropic exposes no embeddings endpoint
// (ai/anthropic.rs never implements one either — callers needing
// embeddings wire a dedicated embedding provider, per ai/embedding.rs).
func (c *anthropicClient) Embed(ctx context.Context, texts []string) ([]Embedding, error) {
	return nil, aerrors.WithKind(aerrors.FailedToWithDetails("embed", "anthropic", "embeddings", nil), aerrors.KindAIProvider)
}

func maxTokensOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
