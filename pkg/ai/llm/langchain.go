package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// langchainClient backs both the "openai" and "local"/"localai"
// providers through langchaingo's OpenAI-compatible client — an
// OpenAI-protocol endpoint is exactly what a local inference server
// (llama.cpp, LocalAI, vLLM) speaks, so one implementation covers both
// (original_source's ai/{openai,local}.rs are themselves nearly
// identical HTTP-client wrappers for this reason).
type langchainClient struct {
	llm     *openai.LLM
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

func newLangchainClient(cfg Config, timeout time.Duration, logger *logrus.Logger) (Client, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("create client", "llm", cfg.Provider, err), aerrors.KindConfiguration)
	}

	return &langchainClient{llm: llm, model: cfg.Model, timeout: timeout, logger: logger}, nil
}

func (c *langchainClient) Name() string { return "openai" }

func (c *langchainClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.llm.Call(ctx, "ping", llms.WithMaxTokens(1))
	return err == nil
}

func (c *langchainClient) Complete(ctx context.Context, input Input) (Output, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]llms.MessageContent, 0, len(input.Messages))
	for _, m := range input.Messages {
		messages = append(messages, llms.TextParts(messageType(m.Role), m.Content))
	}

	callOpts := []llms.CallOption{}
	if input.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(input.Temperature)))
	}
	if input.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(input.MaxTokens))
	}
	if len(input.StopSequences) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(input.StopSequences))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return Output{}, aerrors.WithKind(aerrors.FailedToWithDetails("complete", "llm", c.model, err), aerrors.KindAIProvider)
	}
	if len(resp.Choices) == 0 {
		return Output{}, aerrors.WithKind(aerrors.FailedToWithDetails("complete", "llm", c.model, nil), aerrors.KindAIProvider)
	}

	c.logger.WithFields(logging.NewFields().
		Component("llm").Operation("complete").Resource("provider", "openai").
		Duration(time.Since(started)).Logrus()).Debug("openai completion")

	choice := resp.Choices[0]
	prompt, _ := choice.GenerationInfo["PromptTokens"].(int)
	completion, _ := choice.GenerationInfo["CompletionTokens"].(int)
	return Output{
		Content: choice.Content,
		Model:   c.model,
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
		Duration: time.Since(started),
	}, nil
}

func (c *langchainClient) Embed(ctx context.Context, texts []string) ([]Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("embed", "llm", c.model, err), aerrors.KindAIProvider)
	}

	embeddings := make([]Embedding, len(vectors))
	for i, v := range vectors {
		embeddings[i] = NewEmbedding(v)
	}
	return embeddings, nil
}

func messageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
