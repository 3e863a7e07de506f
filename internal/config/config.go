// Package config loads CoreConfig from a YAML file with duration-string
// parsing and default application, the way kubernaut's internal/config
// loads its own webhook-service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals YAML duration strings ("30s", "5m") into
// time.Duration, matching the teacher's own SLM.Timeout/CooldownPeriod
// convention.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// AIProviderConfig configures the AI completion/embedding capability
// consumed by the foundation agents (spec.md §6 CoreConfig.ai_provider).
type AIProviderConfig struct {
	ProviderType string  `yaml:"provider_type"`
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
	Endpoint     string  `yaml:"endpoint"`
	Timeout      Duration `yaml:"timeout"`
}

// KnowledgeGraphSettings bounds the Knowledge Graph's similarity search
// and dedup behaviour (spec.md §6 CoreConfig.knowledge_graph_settings).
type KnowledgeGraphSettings struct {
	MaxEmbeddingDimensions    int     `yaml:"max_embedding_dimensions"`
	SimilarityThreshold       float64 `yaml:"similarity_threshold"`
	PatternConfidenceThresh   float64 `yaml:"pattern_confidence_threshold"`
}

// QueueConfig holds the retry settings for the Durable Queue's
// Redis-backed priority queues. pkg/queue does not read these values:
// it uses its own MaxAttempts and RetryBackoff constants.
type QueueConfig struct {
	MaxAttempts  int `yaml:"max_attempts"`
	RetryBackoff int `yaml:"retry_backoff"` // priority points subtracted per retry
}

// EventMeshConfig configures the Event Store ring capacity and the
// consumer group naming prefix used by the Event Mesh.
type EventMeshConfig struct {
	RingCapacity     int      `yaml:"ring_capacity"`
	ConsumerPrefix   string   `yaml:"consumer_group_prefix"`
	BlockDuration    Duration `yaml:"block_duration"`
	BatchSize        int      `yaml:"batch_size"`
}

// CoreConfig is the top-level configuration for the ai-ops-core
// platform (spec.md §6 CoreConfig).
type CoreConfig struct {
	DatabaseURL          string                 `yaml:"database_url"`
	RedisURL             string                 `yaml:"redis_url"`
	AIProvider           AIProviderConfig       `yaml:"ai_provider"`
	EventRetentionDays   int                    `yaml:"event_retention_days"`
	KnowledgeGraph       KnowledgeGraphSettings `yaml:"knowledge_graph_settings"`
	Queue                QueueConfig            `yaml:"queue"`
	EventMesh            EventMeshConfig        `yaml:"event_mesh"`
	Logging              LoggingConfig          `yaml:"logging"`
}

// LoggingConfig configures the ambient logrus logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a CoreConfig from path, applying defaults for
// any field left unset.
func Load(path string) (*CoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg CoreConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *CoreConfig) {
	if cfg.EventRetentionDays == 0 {
		cfg.EventRetentionDays = 30
	}
	if cfg.KnowledgeGraph.MaxEmbeddingDimensions == 0 {
		cfg.KnowledgeGraph.MaxEmbeddingDimensions = 1536
	}
	if cfg.KnowledgeGraph.SimilarityThreshold == 0 {
		cfg.KnowledgeGraph.SimilarityThreshold = 0.7
	}
	if cfg.KnowledgeGraph.PatternConfidenceThresh == 0 {
		cfg.KnowledgeGraph.PatternConfidenceThresh = 0.5
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.RetryBackoff == 0 {
		cfg.Queue.RetryBackoff = 10
	}
	if cfg.EventMesh.RingCapacity == 0 {
		cfg.EventMesh.RingCapacity = 10000
	}
	if cfg.EventMesh.ConsumerPrefix == "" {
		cfg.EventMesh.ConsumerPrefix = "ai-ops-"
	}
	if cfg.EventMesh.BlockDuration.Duration == 0 {
		cfg.EventMesh.BlockDuration = Duration{time.Second}
	}
	if cfg.EventMesh.BatchSize == 0 {
		cfg.EventMesh.BatchSize = 10
	}
	if cfg.AIProvider.ProviderType == "" {
		cfg.AIProvider.ProviderType = "localai"
	}
	if cfg.AIProvider.MaxTokens == 0 {
		cfg.AIProvider.MaxTokens = 500
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func (c *CoreConfig) validate() error {
	if c.AIProvider.ProviderType == "" {
		return fmt.Errorf("ai_provider.provider_type is required")
	}
	if c.KnowledgeGraph.SimilarityThreshold < 0 || c.KnowledgeGraph.SimilarityThreshold > 1 {
		return fmt.Errorf("knowledge_graph_settings.similarity_threshold must be in [0,1]")
	}
	return nil
}
