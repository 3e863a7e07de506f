// Package patterns implements the Pattern Library (spec.md §4.F): a
// detect / apply / evolve loop over a shared map of universal patterns,
// grounded on original_source's patterns/{mod,detection,application,
// evolution,log_patterns}.rs.
package patterns

import (
	"time"

	"github.com/google/uuid"
)

// PatternID identifies a UniversalPattern.
type PatternID = uuid.UUID

// PatternCategory classifies what a pattern is about.
type PatternCategory string

const (
	CategoryPerformance    PatternCategory = "performance"
	CategoryReliability    PatternCategory = "reliability"
	CategorySecurity       PatternCategory = "security"
	CategoryResourceUsage  PatternCategory = "resource_usage"
	CategoryConfiguration  PatternCategory = "configuration"
	CategoryDataIntegrity  PatternCategory = "data_integrity"
)

// IndicatorType names which field of a DetectionContext an Indicator
// reads from.
type IndicatorType struct {
	Kind string // "metric", "log", "error"
	Name string // metric name / log substring / error substring
}

// ComparisonOperator is the set of operators a metric Indicator can use.
type ComparisonOperator string

const (
	OpGreaterThan ComparisonOperator = "greater_than"
	OpLessThan    ComparisonOperator = "less_than"
	OpEqual       ComparisonOperator = "equal"
	OpNotEqual    ComparisonOperator = "not_equal"
	OpContains    ComparisonOperator = "contains"
	OpMatches     ComparisonOperator = "matches"
)

// Indicator is one signal a pattern's context watches for.
type Indicator struct {
	IndicatorType IndicatorType
	Operator      ComparisonOperator
	Threshold     interface{}
	Description   string
}

// Condition constrains when a pattern is applicable (e.g. environment
// tag equality); evaluated against ApplicationContext.Environment.
type Condition struct {
	Key      string
	Operator ComparisonOperator
	Value    interface{}
}

// Constraint bounds how a pattern may be applied (e.g. "max once per
// hour"); carried for the benefit of callers, not enforced here.
type Constraint struct {
	Name  string
	Value interface{}
}

// PatternContext describes the circumstances a pattern matches against.
type PatternContext struct {
	ProblemIndicators []Indicator
	Conditions        []Condition
	Constraints       []Constraint
}

// ActionType names the kind of action a SolutionStep performs; the
// Applicator dispatches on this string to pick an ActionExecutor.
type ActionType string

const (
	ActionExecute   ActionType = "execute"
	ActionConfigure ActionType = "configure"
	ActionScale     ActionType = "scale"
)

// Action is a single unit of work a SolutionStep performs.
type Action struct {
	ActionType ActionType
	Target     string
	Parameters map[string]interface{}
}

// FailureStrategy controls what happens when a SolutionStep fails.
type FailureStrategy string

const (
	FailureRetry    FailureStrategy = "retry"
	FailureSkip     FailureStrategy = "skip"
	FailureAbort    FailureStrategy = "abort"
	FailureRollback FailureStrategy = "rollback"
)

// Validation checks whether a step's effect actually took hold; left
// as a description + expected value pair, interpreted by the caller's
// validation subsystem (spec.md §4.J fix-executor's per-check types).
type Validation struct {
	Description string
	Expected    interface{}
}

// SolutionStep is one ordered step of a PatternSolution.
type SolutionStep struct {
	Order      uint32
	Action     Action
	OnFailure  FailureStrategy
	Validation *Validation
}

// PatternSolution is the ordered remediation a pattern proposes.
type PatternSolution struct {
	Steps         []SolutionStep
	RollbackSteps []SolutionStep
}

// PatternMetrics accumulates outcome statistics for a pattern.
type PatternMetrics struct {
	ApplicationCount    uint32
	SuccessCount        uint32
	FailureCount        uint32
	ConfidenceScore     float64
	AverageResolution   time.Duration
	EvolutionCount      uint32
}

// UniversalPattern is a single entry in the Pattern Library, distinct
// from knowledge.Pattern (the lightweight node stored in the Knowledge
// Graph's node/edge table); this is the full detect/apply/evolve unit.
type UniversalPattern struct {
	ID          PatternID
	Name        string
	Category    PatternCategory
	Description string
	Context     PatternContext
	Solution    PatternSolution
	Metrics     PatternMetrics
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUniversalPattern constructs a pattern with zeroed metrics and a
// starting confidence_score of 0.5 (grounded on mod.rs's
// UniversalPattern::new, which seeds confidence_score at 0.5 before any
// applications have occurred).
func NewUniversalPattern(name string, category PatternCategory, description string, context PatternContext, solution PatternSolution) UniversalPattern {
	now := time.Now().UTC()
	return UniversalPattern{
		ID:          uuid.New(),
		Name:        name,
		Category:    category,
		Description: description,
		Context:     context,
		Solution:    solution,
		Metrics:     PatternMetrics{ConfidenceScore: 0.5},
		Metadata:    map[string]interface{}{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DetectionContext is the evidence a PatternDetector matches against.
type DetectionContext struct {
	Metrics     map[string]float64
	Logs        []string
	Errors      []string
	Environment map[string]string
}

// ApplicationContext carries the parameters an apply() call needs.
type ApplicationContext struct {
	Environment map[string]string
	DryRun      bool
}

// Priority is a detection result's suggested handling urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)
