package fixexecutor_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/agents/fixexecutor"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/notification"
	"github.com/ai-ops-core/core/pkg/storage/vector"
)

func TestFixExecutor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fix Executor Agent Suite")
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

func solutionsEvent(solutions interface{}) *events.Event {
	raw, _ := json.Marshal(solutions)
	var decoded interface{}
	_ = json.Unmarshal(raw, &decoded)
	return events.NewEvent("SolutionsProposed", "rootcause-agent", map[string]interface{}{
		"solutions": decoded,
	}).WithCorrelation(uuid.New())
}

var _ = Describe("FixExecutorAgent", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
	})

	It("advertises healing capabilities", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)
		Expect(a.AgentType()).To(Equal(agent.AgentTypeHealing))
		Expect(a.Capabilities()).To(ContainElement(agent.CapabilityServiceRestart))
		Expect(a.Subscriptions()[0].EventTypes).To(ContainElement("SolutionsProposed"))
	})

	It("ignores events that are not SolutionsProposed", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)
		out, err := a.Process(context.Background(), events.NewEvent("ServiceFailure", "svc", map[string]interface{}{}))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("executes the first low-risk solution and emits FixExecuted", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)

		event := solutionsEvent([]map[string]interface{}{
			{
				"description": "restart cache warmer",
				"risk_level":  "Low",
				"steps": []map[string]interface{}{
					{"description": "touch marker", "command": "true", "timeout_seconds": 5},
				},
			},
		})

		out, err := a.Process(context.Background(), event)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].EventType).To(Equal("FixExecuted"))
	})

	It("emits FixFailed when a step's command fails", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)

		event := solutionsEvent([]map[string]interface{}{
			{
				"description": "broken fix",
				"risk_level":  "Low",
				"steps": []map[string]interface{}{
					{"description": "boom", "command": "false", "timeout_seconds": 5},
				},
			},
		})

		out, err := a.Process(context.Background(), event)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].EventType).To(Equal("FixFailed"))
	})

	It("skips medium/high risk solutions entirely", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)

		event := solutionsEvent([]map[string]interface{}{
			{"description": "risky change", "risk_level": "High", "steps": []map[string]interface{}{}},
		})

		out, err := a.Process(context.Background(), event)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("applies a config change step", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "config.json")
		Expect(os.WriteFile(path, []byte(`{"pool_size": 10}`), 0o644)).To(Succeed())

		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)
		event := solutionsEvent([]map[string]interface{}{
			{
				"description": "bump pool size",
				"risk_level":  "Low",
				"steps": []map[string]interface{}{
					{
						"description": "update pool_size",
						"config_change": map[string]interface{}{
							"file_path": path,
							"key":       "pool_size",
							"new_value": 50,
						},
						"timeout_seconds": 5,
					},
				},
			},
		})

		out, err := a.Process(context.Background(), event)
		Expect(err).ToNot(HaveOccurred())
		Expect(out[0].EventType).To(Equal("FixExecuted"))

		updated, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		var doc map[string]interface{}
		Expect(json.Unmarshal(updated, &doc)).To(Succeed())
		Expect(doc["pool_size"]).To(Equal(float64(50)))
	})

	It("produces Knowledge with higher confidence on success", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)
		k, err := a.Learn(context.Background(), agent.Experience{
			Event:       events.NewEvent("FixExecuted", "fixexecutor", map[string]interface{}{}),
			ActionTaken: agent.Action{ActionType: agent.ActionServiceRestart},
			Outcome:     agent.Outcome{Success: true},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(k.Confidence).To(BeNumerically(">", 0.8))
	})

	It("accepts collaboration requests", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)
		resp, err := a.Collaborate(context.Background(), agent.CollaborationRequest{RequestID: uuid.New()})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.ResponseType).To(Equal(agent.ResponseAccepted))
	})

	It("shuts down without error when no fixes are active", func() {
		a := fixexecutor.New(newTestGraph(logger), notification.NoopNotifier{}, logger)
		Expect(a.Shutdown(context.Background())).ToNot(HaveOccurred())
	})
})
