// Package fixexecutor implements the Fix Executor foundation agent
// (spec.md §4.J): it executes low-risk proposed solutions
// autonomously, validates the result, and rolls back high-risk fixes
// that fail partway through. Grounded on original_source's
// agent/fix_executor.rs.
package fixexecutor

import (
	"time"
)

// riskLevel classifies a proposedSolution's blast radius.
type riskLevel string

const (
	riskLow    riskLevel = "Low"
	riskMedium riskLevel = "Medium"
	riskHigh   riskLevel = "High"
)

// fixStatus tracks an activeFix through its lifecycle.
type fixStatus string

const (
	fixPending    fixStatus = "pending"
	fixInProgress fixStatus = "in_progress"
	fixValidating fixStatus = "validating"
	fixCompleted  fixStatus = "completed"
	fixFailed     fixStatus = "failed"
	fixRolledBack fixStatus = "rolled_back"
)

// stepStatus tracks one executionStep's outcome.
type stepStatus string

const (
	stepRunning stepStatus = "running"
	stepSuccess stepStatus = "success"
	stepFailed  stepStatus = "failed"
)

// checkType classifies a validationCheck (fix_executor.rs's CheckType;
// only ServiceHealth and LogAbsence are implemented, matching the
// original's stubbed behavior for the rest).
type checkType string

const (
	checkServiceHealth checkType = "service_health"
	checkLogAbsence    checkType = "log_absence"
	checkMetricThreshold checkType = "metric_threshold"
	checkHTTPEndpoint  checkType = "http_endpoint"
	checkDatabaseQuery checkType = "database_query"
)

// configChange describes a single JSON key to overwrite in a config
// file on disk.
type configChange struct {
	FilePath string      `json:"file_path"`
	Key      string      `json:"key"`
	NewValue interface{} `json:"new_value"`
}

// fixStep is one unit of work toward applying a solution: exactly one
// of Command/Script/ConfigChange is set.
type fixStep struct {
	Description    string        `json:"description"`
	Command        string        `json:"command,omitempty"`
	Script         string        `json:"script,omitempty"`
	ConfigChange   *configChange `json:"config_change,omitempty"`
	TimeoutSeconds int           `json:"timeout_seconds"`
}

// validationCheck confirms a fix had the intended effect.
type validationCheck struct {
	Name           string    `json:"name"`
	CheckType      checkType `json:"check_type"`
	TimeoutSeconds int       `json:"timeout_seconds"`
}

// proposedSolution mirrors rootcause's proposedSolution plus the
// rollback/validation detail the fix executor needs that the
// root-cause agent's narrower shape doesn't carry. SolutionID, when
// set, names the knowledge-graph Solution node this candidate was
// persisted as and is carried unchanged into FixExecuted/FixFailed's
// "solution" payload for the Learning agent to report back against.
type proposedSolution struct {
	Description      string            `json:"description"`
	Steps            []fixStep         `json:"steps"`
	RiskLevel        riskLevel         `json:"risk_level"`
	RollbackSteps    []fixStep         `json:"rollback_steps"`
	ValidationChecks []validationCheck `json:"validation_checks"`
	SolutionID       string            `json:"solution_id,omitempty"`
}

// executionStep records one fixStep's execution.
type executionStep struct {
	StepIndex   int
	StartedAt   time.Time
	CompletedAt time.Time
	Status      stepStatus
	Output      string
	Error       string
}

// checkResult records one validationCheck's outcome.
type checkResult struct {
	CheckName string
	Passed    bool
	Message   string
}

// validationResult aggregates every checkResult for an activeFix.
type validationResult struct {
	AllPassed   bool
	Checks      []checkResult
	ValidatedAt time.Time
}

// activeFix tracks a solution currently being applied.
type activeFix struct {
	ID          string
	Solution    proposedSolution
	StartedAt   time.Time
	CurrentStep int
	Status      fixStatus
	Log         []executionStep
	Validation  *validationResult
}

// executionRecord is kept after a fix leaves the active set, feeding
// Learn.
type executionRecord struct {
	FixID      string
	Solution   proposedSolution
	Succeeded  bool
	Duration   time.Duration
	ExecutedAt time.Time
}

// maxConcurrentFixes is the divisor fix_executor.rs's status uses
// (`active_fixes.len() as f64 / 5.0`). Nothing here reads it: the
// reported load comes from agent.BaseAgent, which divides ActiveTasks
// by 10.
const maxConcurrentFixes = 5.0
