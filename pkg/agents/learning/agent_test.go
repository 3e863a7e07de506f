package learning_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/agents/learning"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/notification"
	"github.com/ai-ops-core/core/pkg/storage/vector"
)

func TestLearning(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Learning Agent Suite")
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

var _ = Describe("LearningAgent", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
	})

	It("advertises learning capabilities", func() {
		a := learning.New(newTestGraph(logger), nil, notification.NoopNotifier{}, logger)
		Expect(a.AgentType()).To(Equal(agent.AgentTypeLearning))
		Expect(a.Capabilities()).To(ContainElement(agent.CapabilityPatternExtraction))
		Expect(a.Subscriptions()[0].EventTypes).To(ContainElement("RootCauseDetermined"))
	})

	It("opens a session on RootCauseDetermined and closes it with a LearningCompleted event on FixExecuted", func() {
		a := learning.New(newTestGraph(logger), nil, notification.NoopNotifier{}, logger)
		correlationID := uuid.New()

		rc := events.NewEvent("RootCauseDetermined", "rootcause-agent", map[string]interface{}{
			"description": "pool exhausted",
			"category":    "Resource",
			"confidence":  0.8,
		}).WithCorrelation(correlationID)
		out, err := a.Process(context.Background(), rc)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
		Expect(a.Status(context.Background()).ActiveTasks).To(Equal(1))

		fixed := events.NewEvent("FixExecuted", "fixexecutor-agent", map[string]interface{}{
			"solution": map[string]interface{}{"description": "bump pool size", "risk_level": "Low"},
		}).WithCorrelation(correlationID)
		out, err = a.Process(context.Background(), fixed)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].EventType).To(Equal("LearningCompleted"))
		Expect(out[0].Payload["success"]).To(Equal(true))
		Expect(a.Status(context.Background()).ActiveTasks).To(Equal(0))
	})

	It("ignores FixExecuted events with no matching session", func() {
		a := learning.New(newTestGraph(logger), nil, notification.NoopNotifier{}, logger)
		out, err := a.Process(context.Background(), events.NewEvent("FixExecuted", "fixexecutor-agent", map[string]interface{}{}).WithCorrelation(uuid.New()))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("produces meta-learning Knowledge on Learn", func() {
		a := learning.New(newTestGraph(logger), nil, notification.NoopNotifier{}, logger)
		k, err := a.Learn(context.Background(), agent.Experience{
			Event: events.NewEvent("LearningCompleted", "learning-agent", map[string]interface{}{}),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(k.KnowledgeType).To(Equal(agent.KnowledgeOptimized))
		Expect(k.Confidence).To(Equal(0.7))
	})

	It("accepts knowledge-sharing collaboration and rejects everything else", func() {
		a := learning.New(newTestGraph(logger), nil, notification.NoopNotifier{}, logger)

		resp, err := a.Collaborate(context.Background(), agent.CollaborationRequest{
			RequestID:         uuid.New(),
			CollaborationType: agent.CollaborationKnowledge,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.ResponseType).To(Equal(agent.ResponseAccepted))

		resp, err = a.Collaborate(context.Background(), agent.CollaborationRequest{
			RequestID:         uuid.New(),
			CollaborationType: agent.CollaborationDelegation,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.ResponseType).To(Equal(agent.ResponseRejected))
	})

	It("shuts down cleanly with no sessions", func() {
		a := learning.New(newTestGraph(logger), nil, notification.NoopNotifier{}, logger)
		Expect(a.Shutdown(context.Background())).ToNot(HaveOccurred())
	})
})
