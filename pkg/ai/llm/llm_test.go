package llm_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/ai/llm"
)

func TestLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AI Provider Client Suite")
}

var _ = Describe("NewClient", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
	})

	DescribeTable("constructing a client per provider",
		func(cfg llm.Config, expectErr bool, errSubstring string) {
			client, err := llm.NewClient(cfg, logger)
			if expectErr {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(errSubstring))
				Expect(client).To(BeNil())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(client).NotTo(BeNil())
			Expect(client.Name()).NotTo(BeEmpty())
		},
		Entry("anthropic", llm.Config{
			Provider: "anthropic",
			Model:    "claude-3-5-sonnet-latest",
			Timeout:  30 * time.Second,
		}, false, ""),
		Entry("openai", llm.Config{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		}, false, ""),
		Entry("local (OpenAI-compatible endpoint)", llm.Config{
			Provider: "local",
			Endpoint: "http://localhost:8080/v1",
			Model:    "llama3",
			Timeout:  30 * time.Second,
		}, false, ""),
		Entry("unsupported provider", llm.Config{
			Provider: "watson",
		}, true, "unsupported provider: watson"),
	)
})

var _ = Describe("Embedding", func() {
	It("computes cosine similarity of 1 for identical vectors", func() {
		a := llm.NewEmbedding([]float32{1, 0, 0})
		b := llm.NewEmbedding([]float32{1, 0, 0})
		Expect(a.CosineSimilarity(b)).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("computes cosine similarity of 0 for orthogonal vectors", func() {
		a := llm.NewEmbedding([]float32{1, 0})
		b := llm.NewEmbedding([]float32{0, 1})
		Expect(a.CosineSimilarity(b)).To(BeNumerically("~", 0.0, 1e-6))
	})

	It("returns 0 for mismatched dimensions", func() {
		a := llm.NewEmbedding([]float32{1, 0})
		b := llm.NewEmbedding([]float32{1, 0, 0})
		Expect(a.CosineSimilarity(b)).To(Equal(float32(0)))
	})
})

var _ = Describe("Input builder", func() {
	It("prepends a system message", func() {
		input := llm.FromPrompt("diagnose this error").WithSystem("you are an SRE assistant")
		Expect(input.Messages).To(HaveLen(2))
		Expect(input.Messages[0].Role).To(Equal(llm.RoleSystem))
		Expect(input.Messages[1].Role).To(Equal(llm.RoleUser))
	})
})
