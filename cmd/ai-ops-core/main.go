// Command ai-ops-core boots the platform: it loads CoreConfig, wires the
// Durable Queue, Event Mesh, Knowledge Graph, Service Registry, Agent
// Coordinator and Task Manager against their backing stores, registers
// the four foundation agents as Event Mesh subscribers, and then blocks
// until an interrupt or terminate signal asks it to wind down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/internal/config"
	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/agents/fixexecutor"
	"github.com/ai-ops-core/core/pkg/agents/learning"
	"github.com/ai-ops-core/core/pkg/agents/logmonitor"
	"github.com/ai-ops-core/core/pkg/agents/rootcause"
	"github.com/ai-ops-core/core/pkg/ai/llm"
	"github.com/ai-ops-core/core/pkg/construction"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/intelligence/patterns"
	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/notification"
	"github.com/ai-ops-core/core/pkg/orchestration/dependency"
	"github.com/ai-ops-core/core/pkg/queue"
	"github.com/ai-ops-core/core/pkg/registry"
	"github.com/ai-ops-core/core/pkg/storage/vector"
	"github.com/ai-ops-core/core/pkg/task"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to CoreConfig YAML file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ai-ops-core: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("ai-ops-core exited with error")
	}
}

// newLogger builds the ambient logrus logger from LoggingConfig,
// defaulting to JSON output the way the platform's own services expect
// to be scraped by a log shipper.
func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// platform holds the components no caller drives directly from this
// entry point yet (no HTTP/gRPC surface is wired here) but that the
// rest of the process keeps alive for whichever future caller reaches
// for agent-to-agent coordination or on-demand tool construction.
type platform struct {
	coordinator  *agent.AgentCoordinator
	toolBuilder  *construction.Builder
	toolDeployer *construction.Deployer
}

// run wires every platform component in dependency order and blocks
// until ctx is cancelled.
func run(ctx context.Context, cfg *config.CoreConfig, logger *logrus.Logger) error {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	defer redisClient.Close()

	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect vector store database: %w", err)
	}
	defer pgPool.Close()

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect knowledge graph database: %w", err)
	}
	defer db.Close()

	metricsRegistry := prometheus.NewRegistry()

	// Event Mesh: a bounded in-memory Store feeding a Router, with a
	// metrics Processor and a Redis Streams backend behind it.
	eventStore := events.NewStore(cfg.EventMesh.RingCapacity)
	router := events.NewRouter()
	pipeline := events.NewProcessorPipeline(events.NewMetricsProcessor(metricsRegistry))
	mesh := events.NewMesh(eventStore, router, redisClient, pipeline, cfg.EventMesh.ConsumerPrefix, logger)
	defer mesh.Shutdown()

	// Dependency resilience: in-memory fallbacks for the vector store and
	// pattern reads, registered so the resilient decorators below can
	// look them up once the primary backend's circuit breaker trips
	// (spec.md §7: knowledge-graph query failure degrades to "no
	// candidates" rather than aborting the caller).
	dependencies := dependency.NewDependencyManager(&dependency.DependencyConfig{EnableFallbacks: true}, logger)
	if err := dependencies.RegisterFallback("vector-store", dependency.NewInMemoryVectorFallback(logger)); err != nil {
		return fmt.Errorf("failed to register vector store fallback: %w", err)
	}
	if err := dependencies.RegisterFallback("pattern-store", dependency.NewInMemoryPatternFallback(logger)); err != nil {
		return fmt.Errorf("failed to register pattern store fallback: %w", err)
	}
	logger.WithField("fallbacks", dependencies.GetHealthReport().FallbacksAvailable).Info("dependency fallbacks registered")

	// Knowledge Graph: Postgres-backed node storage, pgvector-backed
	// similarity search (both wrapped in a circuit breaker with a
	// fallback to the in-memory stores above), and the Pattern Library
	// as its registrar so every persisted Pattern node is indexed for
	// event-routing use.
	patternLibrary := patterns.NewLibrary(metricsRegistry)
	nodeStore := dependency.NewResilientNodeStore(knowledge.NewPostgresNodeStore(db), dependencies, "pattern-store", logger)
	vectorStore := dependency.NewResilientVectorStore(vector.NewPostgresStore(pgPool), dependencies, "vector-store", logger)
	embedder := vector.NewHashEmbedder(cfg.KnowledgeGraph.MaxEmbeddingDimensions)
	graph := knowledge.NewGraph(nodeStore, vectorStore, embedder, patternLibrary, logger)

	// Durable Queue and the Task Manager's explicit A2A workflow
	// dispatch sitting on top of it.
	queueService := queue.NewService(redisClient, logger)
	taskManager := task.NewManager(queueService, logger)

	// Service Registry and the consensus/delegation/parallel Agent
	// Coordinator that queries it to find suitable collaborators.
	serviceRegistry := registry.New()
	_ = &platform{
		coordinator:  agent.NewAgentCoordinator(serviceRegistry),
		toolBuilder:  construction.NewBuilder(logger),
		toolDeployer: construction.NewDeployer(),
	}

	taskManager.StartProcessor(ctx)

	rawAIClient, err := llm.NewClient(llm.Config{
		Provider:       cfg.AIProvider.ProviderType,
		Endpoint:       cfg.AIProvider.Endpoint,
		APIKey:         cfg.AIProvider.APIKey,
		Model:          cfg.AIProvider.Model,
		Timeout:        cfg.AIProvider.Timeout.Duration,
		MaxContextSize: cfg.AIProvider.MaxTokens,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build AI provider client: %w", err)
	}
	// Every agent talks to the AI provider through a gobreaker-backed
	// breaker so a provider outage trips once and fails fast instead of
	// letting every caller hang on the provider's own timeout.
	aiClient := dependency.NewAIProviderBreaker(rawAIClient, dependency.DefaultAIBreakerConfig(), logger)

	notifier := buildNotifier(logger)

	if err := subscribePatternLibrary(ctx, mesh, patternLibrary, logger); err != nil {
		return fmt.Errorf("failed to subscribe pattern library: %w", err)
	}

	foundationAgents := []agent.UniversalAgent{
		rootcause.New(aiClient, graph, logger),
		fixexecutor.New(graph, notifier, logger),
		learning.New(graph, aiClient, notifier, logger),
		logmonitor.New(logger),
	}

	for _, a := range foundationAgents {
		if err := registerAgent(ctx, serviceRegistry, a); err != nil {
			return fmt.Errorf("failed to register agent %s: %w", a.Name(), err)
		}
		if err := subscribeAgent(ctx, mesh, a, logger); err != nil {
			return fmt.Errorf("failed to subscribe agent %s: %w", a.Name(), err)
		}
	}

	logger.WithField("agents", len(foundationAgents)).Info("ai-ops-core started")

	<-ctx.Done()

	logger.Info("shutting down ai-ops-core")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, a := range foundationAgents {
		if err := a.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).WithField("agent", a.Name()).Warn("agent shutdown returned an error")
		}
	}

	return nil
}

// buildNotifier wires a SlackNotifier when SLACK_TOKEN/SLACK_CHANNEL
// are set in the environment, falling back to a NoopNotifier so
// fixexecutor and learning never need a nil check.
func buildNotifier(logger *logrus.Logger) notification.Notifier {
	token := os.Getenv("SLACK_TOKEN")
	channel := os.Getenv("SLACK_CHANNEL")
	if token == "" || channel == "" {
		logger.Info("no SLACK_TOKEN/SLACK_CHANNEL set, operator notifications will be discarded")
		return notification.NoopNotifier{}
	}
	return notification.NewSlackNotifier(token, channel, logger)
}

// registerAgent advertises a as a discoverable service so the Agent
// Coordinator's find_suitable_agents can route collaboration requests
// to it.
func registerAgent(ctx context.Context, reg *registry.Registry, a agent.UniversalAgent) error {
	capabilities := make([]registry.Capability, 0, len(a.Capabilities()))
	for _, c := range a.Capabilities() {
		capabilities = append(capabilities, registry.Capability(c))
	}

	_, err := reg.Register(ctx, registry.ServiceDefinition{
		ID:           uuidForAgent(a),
		Name:         a.Name(),
		ServiceType:  registry.ServiceTypeAgent,
		AgentType:    string(a.AgentType()),
		Capabilities: capabilities,
		RegisteredAt: time.Now().UTC(),
	})
	return err
}

// subscribeAgent binds a's declared Subscriptions to the Event Mesh:
// every accepted event is handed to Process, and any events it returns
// are republished so a downstream agent's own subscriptions can pick
// them up in turn.
func subscribeAgent(ctx context.Context, mesh *events.Mesh, a agent.UniversalAgent, logger *logrus.Logger) error {
	for i, subscription := range a.Subscriptions() {
		name := fmt.Sprintf("%s-%d", a.Name(), i)
		err := mesh.Subscribe(ctx, name, subscription, func(ctx context.Context, event *events.Event) error {
			produced, err := a.Process(ctx, event)
			if err != nil {
				logger.WithError(err).WithField("agent", a.Name()).Warn("agent failed to process event")
				return err
			}
			for _, out := range produced {
				if pubErr := mesh.Publish(ctx, out); pubErr != nil {
					logger.WithError(pubErr).WithField("agent", a.Name()).Warn("agent failed to publish produced event")
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// subscribePatternLibrary binds the Pattern Library's detect/apply/
// evolve loop onto the mesh (spec.md §2: "Pattern Library observes
// events, proposes actions, applies them"): an anomaly signal from
// logmonitor or rootcause runs detection and applies any high-priority
// match, and a completed learning cycle runs evolution over the whole
// library.
func subscribePatternLibrary(ctx context.Context, mesh *events.Mesh, library *patterns.Library, logger *logrus.Logger) error {
	detect := events.Subscription{EventTypes: []string{"LogPatternDetected", "RootCauseDetermined"}}
	err := mesh.Subscribe(ctx, "pattern-library-detect", detect, func(ctx context.Context, event *events.Event) error {
		detections, err := library.DetectPatterns(ctx, patterns.DetectionContext{
			Errors:      []string{event.EventType},
			Environment: map[string]string{"source": event.Source},
		})
		if err != nil {
			logger.WithError(err).Warn("pattern library detection failed")
			return nil
		}

		for _, detection := range detections {
			if detection.SuggestedPriority != patterns.PriorityHigh && detection.SuggestedPriority != patterns.PriorityCritical {
				continue
			}
			result, err := library.ApplyPattern(ctx, detection.PatternID, patterns.ApplicationContext{})
			if err != nil {
				logger.WithError(err).WithField("pattern", detection.PatternID).Warn("pattern library apply failed")
				continue
			}
			applied := events.NewEvent("PatternApplied", "pattern-library", map[string]interface{}{
				"pattern_id": detection.PatternID.String(),
				"success":    result.Success,
				"confidence": detection.Confidence,
			})
			if pubErr := mesh.Publish(ctx, applied); pubErr != nil {
				logger.WithError(pubErr).Warn("pattern library failed to publish PatternApplied")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	evolve := events.Subscription{EventTypes: []string{"LearningCompleted"}}
	return mesh.Subscribe(ctx, "pattern-library-evolve", evolve, func(ctx context.Context, event *events.Event) error {
		if _, err := library.EvolvePatterns(ctx, event.Timestamp); err != nil {
			logger.WithError(err).Warn("pattern library evolution failed")
		}
		return nil
	})
}

// uuidForAgent derives a stable registry ServiceID from an agent's own
// AgentID, since AgentID and ServiceID are both uuid.UUID under the
// hood.
func uuidForAgent(a agent.UniversalAgent) registry.ServiceID {
	return registry.ServiceID(a.ID())
}
