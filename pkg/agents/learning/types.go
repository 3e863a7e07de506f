// Package learning implements the Learning foundation agent (spec.md
// §4.J): it observes RootCauseDetermined/FixExecuted/FixFailed events,
// extracts lessons from each investigation's outcome, keeps running
// pattern/solution-effectiveness statistics, and periodically surfaces
// improvement recommendations. Grounded on original_source's
// agent/learning.rs.
package learning

import "time"

// lessonType classifies what a lesson teaches.
type lessonType string

const (
	lessonSuccessfulPattern        lessonType = "successful_pattern"
	lessonFailurePattern           lessonType = "failure_pattern"
	lessonOptimizationOpportunity  lessonType = "optimization_opportunity"
	lessonRiskIdentification       lessonType = "risk_identification"
	lessonContextualCondition      lessonType = "contextual_condition"
)

// lesson is one conclusion drawn from a learningSession's outcome.
type lesson struct {
	LessonType          lessonType `json:"lesson_type"`
	Description         string     `json:"description"`
	Confidence          float64    `json:"confidence"`
	ApplicablePatterns  []string   `json:"applicable_patterns"`
}

// rootCauseSummary is the subset of rootcause's RootCauseDetermined
// payload a learning session needs.
type rootCauseSummary struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

// appliedSolution is the subset of fixexecutor's FixExecuted/FixFailed
// payload a learning session needs. SolutionID, when set, is the
// knowledge-graph Solution node id this fix was applied from, and is
// how closeSession reports the outcome back via
// Graph.UpdateSolutionOutcome.
type appliedSolution struct {
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
	SolutionID  string `json:"solution_id,omitempty"`
}

// validationOutcome records one named check's pass/fail state, carried
// through from a future ValidationCompleted event (not yet emitted by
// any agent, mirroring learning.rs's outcome.validation_results being
// populated by an event this pack's agents don't produce either).
type validationOutcome struct {
	CheckName string `json:"check_name"`
	Passed    bool   `json:"passed"`
	Details   string `json:"details"`
}

// outcomeAnalysis is what happened when a solution was applied.
type outcomeAnalysis struct {
	Success           bool
	FixDuration       time.Duration
	ValidationResults []validationOutcome
}

// learningSession tracks one investigation from RootCauseDetermined
// through to its FixExecuted/FixFailed outcome.
type learningSession struct {
	ID              string
	StartedAt       time.Time
	ProblemType     string
	RootCause       *rootCauseSummary
	SolutionApplied *appliedSolution
	Outcome         *outcomeAnalysis
	LessonsLearned  []lesson
}

// patternStats accumulates how often a problem type occurs and how
// often it resolves successfully.
type patternStats struct {
	Occurrences            uint64
	SuccessfulApplications uint64
	FailedApplications     uint64
	AverageResolutionTime  time.Duration
	LastSeen               time.Time
}

// solutionStats accumulates a solution's track record, overall and
// broken down by the problem type (context) it was applied to.
type solutionStats struct {
	Applications            uint64
	Successes               uint64
	Failures                uint64
	AverageExecutionTime    time.Duration
	EffectivenessByContext  map[string]float64
}

// improvementType classifies a suggested system improvement.
type improvementType string

const (
	improvementSolutionOptimization improvementType = "solution_optimization"
	improvementContextualAdjustment improvementType = "contextual_adjustment"
	improvementPatternReview        improvementType = "pattern_review"
)

// priority classifies an improvement's urgency.
type priority string

const (
	priorityMedium priority = "medium"
	priorityHigh   priority = "high"
)

// improvement is one actionable recommendation surfaced periodically
// by suggestImprovements.
type improvement struct {
	ImprovementType improvementType `json:"improvement_type"`
	Target          string          `json:"target"`
	Description     string          `json:"description"`
	Priority        priority        `json:"priority"`
}

// maxConcurrentSessions is the divisor learning.rs's status uses
// (`learning_sessions.len() as f64 / 50.0`). Nothing here reads it: the
// reported load comes from agent.BaseAgent, which divides ActiveTasks
// by 10.
const maxConcurrentSessions = 50.0

// improvementSuggestionInterval makes Process re-evaluate and surface
// improvement suggestions whenever the number of currently open
// sessions is a nonzero multiple of it; closed sessions are removed
// and do not count (learning.rs's process: `learning_sessions.len() % 10 == 0`).
const improvementSuggestionInterval = 10
