package logmonitor

import "strings"

// severityFromLevel maps a log level to an event severity, exactly as
// logging_integration.rs's log_to_event does: Error is Critical, Warn
// is High, Info is Medium, Debug and Trace are both Low.
func severityFromLevel(level logLevel) string {
	switch level {
	case levelError:
		return "critical"
	case levelWarn:
		return "high"
	case levelInfo:
		return "medium"
	default:
		return "low"
	}
}

// category is the heuristic bucket a log record's event type is
// inferred from (spec.md §4.J: "event type inferred by heuristic:
// database / auth / perf / deploy").
type category string

const (
	categoryDatabase category = "database"
	categoryAuth     category = "auth"
	categoryPerf     category = "perf"
	categoryDeploy   category = "deploy"
	categoryGeneral  category = "general"
)

// slowRequestMS is the duration above which a record is treated as a
// performance problem even without a keyword match
// (logging_integration.rs's determine_event_type: `duration_ms > 1000.0`).
const slowRequestMS = 1000.0

// classify infers category from a log record's message and its
// reported duration, mirroring logging_integration.rs's
// determine_event_type. For every level the database/auth keywords are
// checked first since those are the original's highest-priority
// branches; a record matching neither falls back to duration or the
// deploy keyword before landing on "general".
func classify(level logLevel, message string, durationMS float64) category {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "database") || strings.Contains(lower, "connection"):
		return categoryDatabase
	case strings.Contains(lower, "auth") || strings.Contains(lower, "permission") || strings.Contains(lower, "unauthorized"):
		return categoryAuth
	case durationMS > slowRequestMS:
		return categoryPerf
	case strings.Contains(lower, "deploy") || strings.Contains(lower, "rollout") || strings.Contains(lower, "migration"):
		return categoryDeploy
	case level == levelError:
		return categoryGeneral
	default:
		return categoryGeneral
	}
}

// eventTypeFor maps a category to the event type name the rest of the
// pack already knows how to consume: rootcause.Agent subscribes to
// ServiceFailure and DatabaseError directly, so those two categories
// keep the original's names; auth and deploy get their own descriptive
// types since nothing downstream special-cases them yet.
func eventTypeFor(c category) string {
	switch c {
	case categoryDatabase:
		return "DatabaseError"
	case categoryAuth:
		return "SecurityIncident"
	case categoryPerf:
		return "PerformanceDegradation"
	case categoryDeploy:
		return "ConfigurationChange"
	default:
		return "ServiceFailure"
	}
}
