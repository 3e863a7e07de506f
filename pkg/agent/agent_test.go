package agent_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/registry"
)

func TestAgent(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Agent Runtime Suite")
}

var _ = Describe("BaseAgent", func() {
	var base *agent.BaseAgent

	BeforeEach(func() {
		base = agent.NewBaseAgent(uuid.New(), "log-monitor-1", agent.AgentTypeLogAnalyzer).
			WithCapabilities([]agent.Capability{agent.CapabilityLogAnalysis})
	})

	It("starts in StateStarting with unknown health", func() {
		status := base.Status(context.Background())
		Expect(status.State).To(Equal(agent.StateStarting))
		Expect(status.Health).To(Equal(agent.HealthUnknown))
	})

	It("tracks active tasks and load, returning to idle once drained", func() {
		base.TaskStarted()
		base.TaskStarted()
		status := base.Status(context.Background())
		Expect(status.ActiveTasks).To(Equal(2))
		Expect(status.State).To(Equal(agent.StateProcessing))
		Expect(status.CurrentLoad).To(BeNumerically("~", 0.2, 1e-9))

		base.TaskCompleted()
		base.TaskCompleted()
		status = base.Status(context.Background())
		Expect(status.ActiveTasks).To(Equal(0))
		Expect(status.State).To(Equal(agent.StateIdle))
	})

	It("keeps only knowledge whose context is a superset of the query", func() {
		base.StoreKnowledge(agent.Knowledge{
			KnowledgeType: agent.KnowledgePattern,
			Confidence:    0.7,
			ApplicableContexts: []agent.KnowledgeContext{
				{Environment: map[string]string{"service": "checkout", "region": "us-east"}},
			},
		})
		base.StoreKnowledge(agent.Knowledge{
			KnowledgeType: agent.KnowledgePattern,
			Confidence:    0.9,
			ApplicableContexts: []agent.KnowledgeContext{
				{Environment: map[string]string{"service": "billing"}},
			},
		})

		found := base.RetrieveKnowledge(agent.KnowledgeContext{Environment: map[string]string{"service": "checkout"}})
		Expect(found).To(HaveLen(1))
		Expect(found[0].Confidence).To(Equal(0.7))
	})

	It("drops the oldest knowledge once the cache exceeds 1000 items", func() {
		for i := 0; i < 1005; i++ {
			base.StoreKnowledge(agent.Knowledge{
				KnowledgeType:      agent.KnowledgePattern,
				ApplicableContexts: []agent.KnowledgeContext{{Environment: map[string]string{"seq": "any"}}},
			})
		}
		found := base.RetrieveKnowledge(agent.KnowledgeContext{})
		Expect(found).To(HaveLen(1000))
	})
})

var _ = Describe("AgentCoordinator", func() {
	var (
		reg         *registry.Registry
		coordinator *agent.AgentCoordinator
		ctx         context.Context
	)

	BeforeEach(func() {
		reg = registry.New()
		coordinator = agent.NewAgentCoordinator(reg)
		ctx = context.Background()

		for _, name := range []string{"analyzer-1", "analyzer-2", "analyzer-3"} {
			_, err := reg.Register(ctx, registry.ServiceDefinition{
				Name:         name,
				ServiceType:  registry.ServiceTypeAgent,
				Capabilities: []registry.Capability{"log_analysis"},
			})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("runs a consensus session end to end over the registered participants", func() {
		sessionID, err := coordinator.StartSession(ctx, agent.CoordinationRequest{
			TaskType:             "diagnose",
			Strategy:             "consensus",
			RequiredCapabilities: []agent.Capability{agent.CapabilityLogAnalysis},
			MinParticipants:      2,
		})
		Expect(err).NotTo(HaveOccurred())

		status, err := coordinator.GetSessionStatus(ctx, sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Status).To(Equal(agent.SessionCompleted))
		Expect(status.Participants).To(Equal(3))

		result, err := coordinator.GetSessionResults(ctx, sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Success).To(BeTrue())
		Expect(result.IndividualResults).To(HaveLen(3))
	})

	It("delegates to the first participant as leader", func() {
		sessionID, err := coordinator.StartSession(ctx, agent.CoordinationRequest{
			Strategy:             "delegation",
			RequiredCapabilities: []agent.Capability{agent.CapabilityLogAnalysis},
		})
		Expect(err).NotTo(HaveOccurred())

		result, err := coordinator.GetSessionResults(ctx, sessionID)
		Expect(err).NotTo(HaveOccurred())

		leaders := 0
		for _, r := range result.IndividualResults {
			if r.(map[string]interface{})["role"] == "leader" {
				leaders++
			}
		}
		Expect(leaders).To(Equal(1))
	})

	It("errors when fewer participants are eligible than MinParticipants requires", func() {
		_, err := coordinator.StartSession(ctx, agent.CoordinationRequest{
			Strategy:             "parallel",
			RequiredCapabilities: []agent.Capability{agent.CapabilityLogAnalysis},
			MinParticipants:      10,
		})
		Expect(err).To(HaveOccurred())
	})

	It("only selects participants advertising every required capability", func() {
		_, err := reg.Register(ctx, registry.ServiceDefinition{
			Name:         "scaler-1",
			Capabilities: []registry.Capability{"log_analysis", "resource_scaling"},
		})
		Expect(err).NotTo(HaveOccurred())

		sessionID, err := coordinator.StartSession(ctx, agent.CoordinationRequest{
			Strategy:             "parallel",
			RequiredCapabilities: []agent.Capability{agent.CapabilityLogAnalysis, agent.CapabilityResourceScaling},
		})
		Expect(err).NotTo(HaveOccurred())

		status, err := coordinator.GetSessionStatus(ctx, sessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Participants).To(Equal(1))
	})
})

var _ = Describe("CardBuilder", func() {
	It("builds a discovery card with the status taskId placeholder", func() {
		card := agent.NewCardBuilder("root-cause-analyzer", "investigates correlated failures").
			WithInput("correlation_id", "string", true).
			WithOutput("report", "object").
			Build("https://agents.internal/root-cause")

		Expect(card.Name).To(Equal("root-cause-analyzer"))
		Expect(card.Endpoints.Status).To(Equal("https://agents.internal/root-cause/status/{taskId}"))
		Expect(card.Capabilities.Inputs).To(HaveKey("correlation_id"))
		Expect(card.Capabilities.Outputs).To(HaveKey("report"))
		Expect(card.Protocols).To(ContainElement("a2a"))
	})
})
