package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
database_url: "postgres://localhost/aiops"
redis_url: "redis://localhost:6379"

ai_provider:
  provider_type: "anthropic"
  model: "claude-opus"
  max_tokens: 4096
  temperature: 0.2
  timeout: "30s"

event_retention_days: 60

knowledge_graph_settings:
  max_embedding_dimensions: 768
  similarity_threshold: 0.8
  pattern_confidence_threshold: 0.6

queue:
  max_attempts: 5
  retry_backoff: 20

event_mesh:
  ring_capacity: 5000
  consumer_group_prefix: "ai-ops-test-"
  block_duration: "2s"
  batch_size: 25

logging:
  level: "debug"
  format: "text"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.DatabaseURL).To(Equal("postgres://localhost/aiops"))
				Expect(cfg.RedisURL).To(Equal("redis://localhost:6379"))

				Expect(cfg.AIProvider.ProviderType).To(Equal("anthropic"))
				Expect(cfg.AIProvider.Model).To(Equal("claude-opus"))
				Expect(cfg.AIProvider.MaxTokens).To(Equal(4096))
				Expect(cfg.AIProvider.Temperature).To(Equal(float32(0.2)))
				Expect(cfg.AIProvider.Timeout.Duration).To(Equal(30 * time.Second))

				Expect(cfg.EventRetentionDays).To(Equal(60))

				Expect(cfg.KnowledgeGraph.MaxEmbeddingDimensions).To(Equal(768))
				Expect(cfg.KnowledgeGraph.SimilarityThreshold).To(Equal(0.8))
				Expect(cfg.KnowledgeGraph.PatternConfidenceThresh).To(Equal(0.6))

				Expect(cfg.Queue.MaxAttempts).To(Equal(5))
				Expect(cfg.Queue.RetryBackoff).To(Equal(20))

				Expect(cfg.EventMesh.RingCapacity).To(Equal(5000))
				Expect(cfg.EventMesh.ConsumerPrefix).To(Equal("ai-ops-test-"))
				Expect(cfg.EventMesh.BlockDuration.Duration).To(Equal(2 * time.Second))
				Expect(cfg.EventMesh.BatchSize).To(Equal(25))

				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Logging.Format).To(Equal("text"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
ai_provider:
  provider_type: "localai"
  model: "test-model"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.AIProvider.Model).To(Equal("test-model"))
				Expect(cfg.EventRetentionDays).To(Equal(30))
				Expect(cfg.KnowledgeGraph.SimilarityThreshold).To(Equal(0.7))
				Expect(cfg.Queue.MaxAttempts).To(Equal(3))
				Expect(cfg.Queue.RetryBackoff).To(Equal(10))
				Expect(cfg.EventMesh.RingCapacity).To(Equal(10000))
				Expect(cfg.EventMesh.BatchSize).To(Equal(10))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
database_url: "postgres://localhost/aiops
ai_provider:
  provider_type: [
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config has invalid duration formats", func() {
			BeforeEach(func() {
				invalidDurationConfig := `
ai_provider:
  provider_type: "localai"
  timeout: "not-a-duration"
`
				err := os.WriteFile(configFile, []byte(invalidDurationConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when similarity threshold is out of range", func() {
			BeforeEach(func() {
				invalid := `
ai_provider:
  provider_type: "localai"
knowledge_graph_settings:
  similarity_threshold: 1.5
`
				err := os.WriteFile(configFile, []byte(invalid), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return a validation error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid config"))
			})
		})
	})
})
