// Package rootcause implements the Root Cause Analysis foundation
// agent (spec.md §4.J): it correlates related events into an
// investigation, asks an AI provider to identify the error pattern and
// most likely root cause, and proposes remediation. Grounded on
// original_source's agent/root_cause.rs.
package rootcause

import (
	"time"

	"github.com/ai-ops-core/core/pkg/events"
)

// riskLevel classifies a proposedSolution's blast radius.
type riskLevel string

const (
	riskLow    riskLevel = "low"
	riskMedium riskLevel = "medium"
	riskHigh   riskLevel = "high"
)

func parseRiskLevel(s string) riskLevel {
	switch s {
	case "Low", "low":
		return riskLow
	case "High", "high":
		return riskHigh
	default:
		return riskMedium
	}
}

// hypothesis is a candidate explanation considered during an
// investigation, carried for future use once process() grows an
// intermediate hypothesis-generation step; determineRootCause
// currently goes straight from error pattern to root cause.
type hypothesis struct {
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence"`
}

// rootCause is the AI's determination of why the investigated events
// occurred.
type rootCause struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence"`
}

// proposedSolution is one candidate remediation for a rootCause.
// SolutionID names the knowledge-graph Solution node this candidate
// was persisted as (empty if persistence failed), carried through
// FixExecuted/FixFailed so the Learning agent can call
// Graph.UpdateSolutionOutcome against the same node.
type proposedSolution struct {
	Description      string    `json:"description"`
	Steps            []string  `json:"steps"`
	RiskLevel        riskLevel `json:"risk_level"`
	Confidence       float64   `json:"confidence"`
	EstimatedFixTime string    `json:"estimated_fix_time"`
	SolutionID       string    `json:"solution_id,omitempty"`
}

// investigation accumulates the events, error pattern, root cause, and
// proposed solutions for one correlated incident (root_cause.rs's
// Investigation).
type investigation struct {
	ID                string
	StartedAt         time.Time
	ErrorPattern      string
	RelatedEvents     []*events.Event
	Hypotheses        []hypothesis
	RootCause         *rootCause
	ProposedSolutions []proposedSolution
}

// minEventsToAnalyze is how many correlated events an investigation
// needs before the agent starts its AI analysis pipeline, unless
// investigationMaxWait has already elapsed (root_cause.rs's process:
// `related_events.len() >= 3 || elapsed > 5 minutes`).
const minEventsToAnalyze = 3

// investigationMaxWait is the longest an investigation waits for more
// correlated events before analyzing with whatever it has.
const investigationMaxWait = 5 * time.Minute

// investigationRetention is how long a completed investigation (one
// with proposed solutions) is kept around before being evicted from
// the active set.
const investigationRetention = 5 * time.Minute
