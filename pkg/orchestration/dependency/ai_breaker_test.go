package dependency_test

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ai-ops-core/core/pkg/ai/llm"
	"github.com/ai-ops-core/core/pkg/orchestration/dependency"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubClient struct {
	name string
	err  error
}

func (s *stubClient) Name() string                           { return s.name }
func (s *stubClient) IsAvailable(ctx context.Context) bool    { return s.err == nil }
func (s *stubClient) Complete(ctx context.Context, in llm.Input) (llm.Output, error) {
	if s.err != nil {
		return llm.Output{}, s.err
	}
	return llm.Output{Content: "ok"}, nil
}
func (s *stubClient) Embed(ctx context.Context, texts []string) ([]llm.Embedding, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []llm.Embedding{llm.NewEmbedding([]float32{1, 0})}, nil
}

var _ = Describe("AIProviderBreaker", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
	})

	It("passes calls through while the wrapped client succeeds", func() {
		client := &stubClient{name: "stub"}
		breaker := dependency.NewAIProviderBreaker(client, dependency.DefaultAIBreakerConfig(), logger)

		out, err := breaker.Complete(context.Background(), llm.FromPrompt("hi"))
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Content).To(Equal("ok"))
		Expect(breaker.State()).To(Equal(gobreaker.StateClosed))
	})

	It("trips open after consecutive failures and rejects further calls", func() {
		client := &stubClient{name: "stub", err: fmt.Errorf("provider unavailable")}
		cfg := dependency.AIBreakerConfig{MaxFailures: 3, OpenTimeout: 50 * time.Millisecond}
		breaker := dependency.NewAIProviderBreaker(client, cfg, logger)

		for i := 0; i < 3; i++ {
			_, err := breaker.Complete(context.Background(), llm.FromPrompt("hi"))
			Expect(err).To(HaveOccurred())
		}

		Expect(breaker.State()).To(Equal(gobreaker.StateOpen))

		_, err := breaker.Complete(context.Background(), llm.FromPrompt("hi"))
		Expect(err).To(HaveOccurred())
	})

	It("recovers to closed after the open timeout once calls succeed again", func() {
		client := &stubClient{name: "stub", err: fmt.Errorf("provider unavailable")}
		cfg := dependency.AIBreakerConfig{MaxFailures: 2, OpenTimeout: 10 * time.Millisecond}
		breaker := dependency.NewAIProviderBreaker(client, cfg, logger)

		for i := 0; i < 2; i++ {
			_, _ = breaker.Complete(context.Background(), llm.FromPrompt("hi"))
		}
		Expect(breaker.State()).To(Equal(gobreaker.StateOpen))

		client.err = nil
		time.Sleep(15 * time.Millisecond)

		out, err := breaker.Complete(context.Background(), llm.FromPrompt("hi"))
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Content).To(Equal("ok"))
		Expect(breaker.State()).To(Equal(gobreaker.StateClosed))
	})
})
