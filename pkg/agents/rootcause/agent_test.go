package rootcause_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/agents/rootcause"
	"github.com/ai-ops-core/core/pkg/ai/llm"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/storage/vector"
)

func TestRootCause(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Root Cause Analysis Agent Suite")
}

// stubAI returns canned JSON for each Complete call in sequence.
type stubAI struct {
	responses []string
	calls     int
}

func (s *stubAI) Name() string                        { return "stub" }
func (s *stubAI) IsAvailable(ctx context.Context) bool { return true }
func (s *stubAI) Complete(ctx context.Context, in llm.Input) (llm.Output, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return llm.Output{Content: s.responses[i]}, nil
}
func (s *stubAI) Embed(ctx context.Context, texts []string) ([]llm.Embedding, error) {
	embeddings := make([]llm.Embedding, len(texts))
	for i := range texts {
		embeddings[i] = llm.NewEmbedding([]float32{1, 0, 0})
	}
	return embeddings, nil
}

func newTestGraph(logger *logrus.Logger) *knowledge.Graph {
	return knowledge.NewGraph(
		knowledge.NewMemoryNodeStore(),
		vector.NewMemoryStore(),
		vector.NewHashEmbedder(8),
		nil,
		logger,
	)
}

var _ = Describe("RootCauseAnalysisAgent", func() {
	var (
		logger *logrus.Logger
		ai     *stubAI
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
		ai = &stubAI{}
	})

	It("advertises diagnostic capabilities", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)
		Expect(a.AgentType()).To(Equal(agent.AgentTypeDiagnostic))
		Expect(a.Capabilities()).To(ContainElement(agent.CapabilityRootCauseAnalysis))
		Expect(a.Subscriptions()).To(HaveLen(1))
		Expect(a.Subscriptions()[0].EventTypes).To(ContainElement("ServiceFailure"))
	})

	It("waits for at least minEventsToAnalyze before running the AI pipeline", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)
		correlationID := uuid.New()

		event := events.NewEvent("ServiceFailure", "svc-a", map[string]interface{}{}).WithCorrelation(correlationID)
		out, err := a.Process(context.Background(), event)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
		Expect(ai.calls).To(Equal(0))
	})

	It("runs the full pipeline once three correlated events arrive, emitting both events", func() {
		ai.responses = []string{
			"database connection pool exhausted",
			`{"description":"connection pool too small","category":"Resource","confidence":0.8,"evidence":["pool_size=10"]}`,
			`[{"description":"increase pool size","steps":["bump pool_size to 50","redeploy"],"risk_level":"Low","confidence":0.7,"estimated_fix_time":"10m"}]`,
		}
		a := rootcause.New(ai, newTestGraph(logger), logger)
		correlationID := uuid.New()

		var out []*events.Event
		for i := 0; i < 3; i++ {
			event := events.NewEvent("DatabaseError", "svc-a", map[string]interface{}{
				"error_message": "pool exhausted",
			}).WithCorrelation(correlationID)
			batch, err := a.Process(context.Background(), event)
			Expect(err).ToNot(HaveOccurred())
			out = append(out, batch...)
		}

		Expect(out).To(HaveLen(2))
		Expect(out[0].EventType).To(Equal("RootCauseDetermined"))
		Expect(out[1].EventType).To(Equal("SolutionsProposed"))
		Expect(ai.calls).To(Equal(3))
	})

	It("accepts joint-analysis collaboration requests", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)
		resp, err := a.Collaborate(context.Background(), agent.CollaborationRequest{
			RequestID:         uuid.New(),
			CollaborationType: agent.CollaborationAnalysis,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.ResponseType).To(Equal(agent.ResponseAccepted))
	})

	It("rejects unsupported collaboration types", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)
		resp, err := a.Collaborate(context.Background(), agent.CollaborationRequest{
			RequestID:         uuid.New(),
			CollaborationType: agent.CollaborationDelegation,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.ResponseType).To(Equal(agent.ResponseRejected))
	})

	It("produces Knowledge on Learn and returns higher confidence for successful outcomes", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)

		experience := agent.Experience{
			Event:       events.NewEvent("ServiceFailure", "svc-a", map[string]interface{}{}),
			ActionTaken: agent.Action{ActionType: agent.ActionNoAction},
			Outcome:     agent.Outcome{Success: true},
			Duration:    time.Second,
		}
		k, err := a.Learn(context.Background(), experience)
		Expect(err).ToNot(HaveOccurred())
		Expect(k.Confidence).To(BeNumerically(">", 0.8))
	})

	It("reports starting status before any event, one active task once an investigation opens", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)
		Expect(a.Status(context.Background()).State).To(Equal(agent.StateStarting))

		event := events.NewEvent("ServiceFailure", "svc-a", map[string]interface{}{}).WithCorrelation(uuid.New())
		_, err := a.Process(context.Background(), event)
		Expect(err).ToNot(HaveOccurred())
		Expect(a.Status(context.Background()).ActiveTasks).To(Equal(1))
	})

	It("shuts down clearing in-flight investigations", func() {
		a := rootcause.New(ai, newTestGraph(logger), logger)
		event := events.NewEvent("ServiceFailure", "svc-a", map[string]interface{}{}).WithCorrelation(uuid.New())
		_, _ = a.Process(context.Background(), event)
		Expect(a.Shutdown(context.Background())).ToNot(HaveOccurred())
	})
})
