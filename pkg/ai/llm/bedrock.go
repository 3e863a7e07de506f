package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sirupsen/logrus"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// bedrockClient speaks the Anthropic Messages wire format over AWS
// Bedrock's InvokeModel API, so a deployment that standardizes on AWS
// connectivity for compliance reasons can still run Claude models
// (a provider original_source's ai/mod.rs never had, added here
// because the domain stack wires in aws-sdk-go-v2/bedrockruntime).
type bedrockClient struct {
	sdk     *bedrockruntime.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float32          `json:"temperature,omitempty"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func newBedrockClient(cfg Config, timeout time.Duration, logger *logrus.Logger) (Client, error) {
	awsOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AWSRegion != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsOpts...)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("load AWS config", "bedrock", cfg.AWSRegion, err), aerrors.KindConfiguration)
	}

	model := cfg.Model
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}

	return &bedrockClient{
		sdk:     bedrockruntime.NewFromConfig(awsCfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *bedrockClient) Name() string { return "bedrock" }

func (c *bedrockClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.invoke(ctx, bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1,
		Messages:         []bedrockMessage{{Role: "user", Content: "ping"}},
	})
	return err == nil
}

func (c *bedrockClient) Complete(ctx context.Context, input Input) (Output, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokensOr(input.MaxTokens, 1024),
		Temperature:      input.Temperature,
	}
	for _, m := range input.Messages {
		if m.Role == RoleSystem {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, bedrockMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := c.invoke(ctx, req)
	if err != nil {
		return Output{}, err
	}

	var content string
	for _, block := range resp.Content {
		content += block.Text
	}

	c.logger.WithFields(logging.NewFields().
		Component("llm").Operation("complete").Resource("provider", "bedrock").
		Duration(time.Since(started)).Logrus()).Debug("bedrock completion")

	return Output{
		Content: content,
		Model:   c.model,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Duration: time.Since(started),
	}, nil
}

func (c *bedrockClient) invoke(ctx context.Context, req bedrockRequest) (bedrockResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return bedrockResponse{}, aerrors.WithKind(aerrors.FailedTo("encode bedrock request", err), aerrors.KindSerialization)
	}

	out, err := c.sdk.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return bedrockResponse{}, aerrors.WithKind(aerrors.FailedToWithDetails("invoke model", "bedrock", c.model, err), aerrors.KindAIProvider)
	}

	var resp bedrockResponse
	if err := json.NewDecoder(bytes.NewReader(out.Body)).Decode(&resp); err != nil {
		return bedrockResponse{}, aerrors.WithKind(aerrors.FailedTo("decode bedrock response", err), aerrors.KindSerialization)
	}
	return resp, nil
}

// Embed is unsupported: Bedrock's text-embedding models (Titan Embed)
// use a different request shape than the Anthropic Messages format
// this client speaks; a deployment needing Bedrock embeddings wires a
// dedicated embedder the way pkg/storage/vector does for pgvector.
func (c *bedrockClient) Embed(ctx context.Context, texts []string) ([]Embedding, error) {
	return nil, aerrors.WithKind(aerrors.FailedToWithDetails("embed", "bedrock", "embeddings", nil), aerrors.KindAIProvider)
}
