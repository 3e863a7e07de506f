package logmonitor_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/agents/logmonitor"
	"github.com/ai-ops-core/core/pkg/events"
)

func TestLogMonitor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Log Monitor Agent Suite")
}

func logRecordEvent(level, service, message string, durationMS float64) *events.Event {
	return events.NewEvent("LogRecordIngested", "log-shipper", map[string]interface{}{
		"level":       level,
		"service":     service,
		"message":     message,
		"duration_ms": durationMS,
	})
}

var _ = Describe("LogMonitorAgent", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
	})

	It("advertises log-analysis capabilities", func() {
		a := logmonitor.New(logger)
		Expect(a.AgentType()).To(Equal(agent.AgentTypeLogAnalyzer))
		Expect(a.Capabilities()).To(ContainElement(agent.CapabilityLogAnalysis))
		Expect(a.Subscriptions()[0].EventTypes).To(ContainElement("LogRecordIngested"))
	})

	It("ignores non-LogRecordIngested events", func() {
		a := logmonitor.New(logger)
		out, err := a.Process(context.Background(), events.NewEvent("ServiceFailure", "svc", map[string]interface{}{}))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("drops Info and Debug records without converting them", func() {
		a := logmonitor.New(logger)
		out, err := a.Process(context.Background(), logRecordEvent("INFO", "checkout", "order placed", 12))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("classifies an Error record mentioning database as DatabaseError with critical severity", func() {
		a := logmonitor.New(logger)
		out, err := a.Process(context.Background(), logRecordEvent("ERROR", "orders-api", "database connection pool exhausted", 0))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].EventType).To(Equal("DatabaseError"))
		Expect(out[0].Payload["severity"]).To(Equal("critical"))
		Expect(out[0].Payload["category"]).To(Equal("database"))
	})

	It("classifies a Warn record mentioning auth as SecurityIncident with high severity", func() {
		a := logmonitor.New(logger)
		out, err := a.Process(context.Background(), logRecordEvent("WARN", "auth-api", "unauthorized token presented", 0))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].EventType).To(Equal("SecurityIncident"))
		Expect(out[0].Payload["severity"]).To(Equal("high"))
	})

	It("classifies a slow Error record with no keyword match as PerformanceDegradation", func() {
		a := logmonitor.New(logger)
		out, err := a.Process(context.Background(), logRecordEvent("ERROR", "search-api", "request handling failed", 4200))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].EventType).To(Equal("PerformanceDegradation"))
	})

	It("emits LogPatternDetected once the same service/category fingerprint recurs enough", func() {
		a := logmonitor.New(logger)
		var last []*events.Event
		for i := 0; i < 5; i++ {
			out, err := a.Process(context.Background(), logRecordEvent("ERROR", "orders-api", "database timeout", 0))
			Expect(err).ToNot(HaveOccurred())
			last = out
		}
		Expect(last).To(HaveLen(2))
		Expect(last[0].EventType).To(Equal("DatabaseError"))
		Expect(last[1].EventType).To(Equal("LogPatternDetected"))
		Expect(last[1].Payload["occurrences"]).To(Equal(5))
		Expect(last[1].CorrelationID).ToNot(BeNil())
	})

	It("mints the same correlation id for repeated detections of the same fingerprint", func() {
		a := logmonitor.New(logger)
		var firstCorrelation, secondCorrelation interface{}
		for i := 0; i < 5; i++ {
			out, _ := a.Process(context.Background(), logRecordEvent("ERROR", "billing-api", "database write failed", 0))
			if len(out) == 2 {
				firstCorrelation = *out[1].CorrelationID
			}
		}
		for i := 0; i < 5; i++ {
			out, _ := a.Process(context.Background(), logRecordEvent("ERROR", "billing-api", "database write failed", 0))
			if len(out) == 2 {
				secondCorrelation = *out[1].CorrelationID
			}
		}
		Expect(firstCorrelation).To(Equal(secondCorrelation))
	})

	It("produces Knowledge with higher confidence on a successful experience", func() {
		a := logmonitor.New(logger)
		k, err := a.Learn(context.Background(), agent.Experience{
			Event:   events.NewEvent("LogPatternDetected", "logmonitor", map[string]interface{}{}),
			Outcome: agent.Outcome{Success: true},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(k.Confidence).To(Equal(0.8))
	})

	It("always accepts collaboration requests", func() {
		a := logmonitor.New(logger)
		resp, err := a.Collaborate(context.Background(), agent.CollaborationRequest{CollaborationType: agent.CollaborationDelegation})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.ResponseType).To(Equal(agent.ResponseAccepted))
	})

	It("shuts down cleanly", func() {
		a := logmonitor.New(logger)
		Expect(a.Shutdown(context.Background())).ToNot(HaveOccurred())
	})
})
