// Package logmonitor implements the Log-monitor foundation agent
// (spec.md §4.J): it converts raw log records into events (severity
// mapped from level, event type inferred by heuristic: database /
// auth / perf / deploy) and emits a LogPatternDetected event once a
// fingerprint recurs often enough to look like a real incident.
// Grounded on original_source's logging_integration.rs
// (LogEventAdapter.log_to_event / determine_event_type and
// LogMonitoringAgent.analyze_patterns).
package logmonitor

import "time"

// logLevel mirrors logging_integration.rs's LogLevel.
type logLevel string

const (
	levelError logLevel = "ERROR"
	levelWarn  logLevel = "WARN"
	levelInfo  logLevel = "INFO"
	levelDebug logLevel = "DEBUG"
	levelTrace logLevel = "TRACE"
)

// parseLevel normalizes an arbitrary level string the way
// logging_integration.rs's `From<LogEventRecord>` does, defaulting
// unrecognized values to Info rather than rejecting the record.
func parseLevel(s string) logLevel {
	switch logLevel(s) {
	case levelError, levelWarn, levelInfo, levelDebug, levelTrace:
		return logLevel(s)
	default:
		return levelInfo
	}
}

// logRecord is the subset of a LogRecordIngested event's payload the
// agent needs, mirroring logging_integration.rs's LogEvent.
type logRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Level         string    `json:"level"`
	Service       string    `json:"service"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id"`
	DurationMS    float64   `json:"duration_ms"`
}

// recurringWindow bounds how far back occurrences of the same
// fingerprint still count toward a recurring-error pattern.
const recurringWindow = 10 * time.Minute

// recurringThreshold is the occurrence count within recurringWindow
// at or above which a fingerprint is promoted to a LogPatternDetected
// event: the fifth occurrence emits the first one
// (logging_integration.rs's analyze_patterns).
const recurringThreshold = 5
