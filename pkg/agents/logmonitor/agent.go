package logmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/events"
	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// fingerprintNamespace roots the deterministic correlation ids this
// agent mints for recurring fingerprints, so repeated detections of
// the same service/category pair always land in the same downstream
// investigation rather than starting a new one each time.
var fingerprintNamespace = uuid.MustParse("6f1b1b2e-8f4a-4e9a-9c3d-6a2c9d9b7a01")

// Agent converts LogRecordIngested events into classified events the
// rest of the pack understands (ServiceFailure, DatabaseError,
// SecurityIncident, ConfigurationChange, PerformanceDegradation) and
// tracks how often each service/category fingerprint recurs, emitting
// a LogPatternDetected event once it crosses recurringThreshold
// (logging_integration.rs's LogEventAdapter + LogMonitoringAgent).
type Agent struct {
	*agent.BaseAgent

	logger *logrus.Logger

	mu         sync.Mutex
	occurrence map[string][]time.Time
}

// New builds a Log Monitoring agent.
func New(logger *logrus.Logger) *Agent {
	base := agent.NewBaseAgent(uuid.New(), "Log Monitoring Agent", agent.AgentTypeLogAnalyzer).
		WithCapabilities([]agent.Capability{
			agent.CapabilityLogAnalysis,
			agent.CapabilityAnomalyDetection,
		}).
		WithSubscriptions([]agent.EventPattern{
			{EventTypes: []string{"LogRecordIngested"}},
		})

	return &Agent{
		BaseAgent:  base,
		logger:     logger,
		occurrence: map[string][]time.Time{},
	}
}

// Process classifies a single ingested log record and folds it into
// the recurrence tracker for its fingerprint, matching
// logging_integration.rs's choice to only convert Error/Warn records
// into events at all (`matches!(log.level, LogLevel::Error | LogLevel::Warn)`).
func (a *Agent) Process(ctx context.Context, event *events.Event) ([]*events.Event, error) {
	if event.EventType != "LogRecordIngested" {
		return nil, nil
	}

	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("marshal log record", "logmonitor_agent", event.ID.String(), err), aerrors.KindSerialization)
	}
	var record logRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("decode log record", "logmonitor_agent", event.ID.String(), err), aerrors.KindSerialization)
	}

	level := parseLevel(record.Level)
	if level != levelError && level != levelWarn {
		return nil, nil
	}

	a.TaskStarted()
	defer a.TaskCompleted()

	cat := classify(level, record.Message, record.DurationMS)
	severity := severityFromLevel(level)

	classified := events.NewEvent(eventTypeFor(cat), a.ID().String(), map[string]interface{}{
		"service":  record.Service,
		"message":  record.Message,
		"severity": severity,
		"category": string(cat),
	})
	if event.CorrelationID != nil {
		classified = classified.WithCorrelation(*event.CorrelationID)
	}
	out := []*events.Event{classified}

	fingerprint := fmt.Sprintf("%s:%s", record.Service, cat)
	occurrences := a.recordOccurrence(fingerprint)

	if occurrences >= recurringThreshold {
		correlationID := uuid.NewSHA1(fingerprintNamespace, []byte(fingerprint))
		pattern := events.NewEvent("LogPatternDetected", a.ID().String(), map[string]interface{}{
			"service":           record.Service,
			"category":          string(cat),
			"occurrences":       occurrences,
			"time_span_minutes": recurringWindow.Minutes(),
			"sample_message":    record.Message,
		}).WithCorrelation(correlationID)
		out = append(out, pattern)

		a.logger.WithFields(logging.NewFields().
			Component("logmonitor_agent").Operation("recurring_pattern_detected").
			Resource(fingerprint).Count(occurrences).Logrus()).Warn("recurring log pattern detected")
	}

	return out, nil
}

// recordOccurrence appends now to fingerprint's history, prunes
// entries older than recurringWindow, and returns the surviving count
// (logging_integration.rs's get_error_patterns, adapted from a SQL
// window aggregate to an in-memory one since this agent has no
// database of its own to query).
func (a *Agent) recordOccurrence(fingerprint string) int {
	now := time.Now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	times := append(a.occurrence[fingerprint], now)
	cutoff := now.Add(-recurringWindow)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	a.occurrence[fingerprint] = kept
	return len(kept)
}

// Learn records a Pattern knowledge item, confidence following
// logging_integration.rs's learn exactly: 0.8 on a successful
// experience outcome, 0.3 otherwise.
func (a *Agent) Learn(_ context.Context, experience agent.Experience) (agent.Knowledge, error) {
	confidence := 0.3
	if experience.Outcome.Success {
		confidence = 0.8
	}

	return agent.Knowledge{
		KnowledgeType: agent.KnowledgePattern,
		Content: map[string]interface{}{
			"event_type": experience.Event.EventType,
			"learned_at": time.Now().UTC(),
		},
		Confidence: confidence,
		ApplicableContexts: []agent.KnowledgeContext{{
			Environment:  map[string]string{},
			Constraints:  []string{},
			Requirements: []string{},
		}},
	}, nil
}

// Collaborate always accepts, matching logging_integration.rs's
// collaborate which unconditionally returns Accepted regardless of
// CollaborationType.
func (a *Agent) Collaborate(_ context.Context, request agent.CollaborationRequest) (agent.CollaborationResponse, error) {
	return agent.CollaborationResponse{
		RequestID:    request.RequestID,
		Responder:    a.ID(),
		ResponseType: agent.ResponseAccepted,
		Content:      map[string]interface{}{"message": "ready to collaborate on log analysis"},
	}, nil
}

// Shutdown drops the recurrence tracker.
func (a *Agent) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.WithFields(logging.NewFields().
		Component("logmonitor_agent").Operation("shutdown").
		Count(len(a.occurrence)).Logrus()).Info("log monitoring agent shutting down")
	a.occurrence = map[string][]time.Time{}
	return nil
}

var _ agent.UniversalAgent = (*Agent)(nil)
