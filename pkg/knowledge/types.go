// Package knowledge implements the Knowledge Graph (spec.md §4.E): a
// typed property graph of problems, solutions, and patterns with
// vector-embedding similarity search, grounded on the original
// knowledge/{mod,graph,embeddings,queries}.rs.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies a Problem's operational impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Problem is a recurring failure mode, deduplicated by fingerprint
// (spec.md §4.E; Invariant: at most one node per fingerprint).
type Problem struct {
	ID              uuid.UUID              `json:"id"`
	Fingerprint     string                 `json:"fingerprint"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description"`
	ErrorPatterns   []string               `json:"error_patterns"`
	Context         map[string]interface{} `json:"context,omitempty"`
	Severity        Severity               `json:"severity"`
	OccurrenceCount uint32                 `json:"occurrence_count"`
	FirstSeen       time.Time              `json:"first_seen"`
	LastSeen        time.Time              `json:"last_seen"`
}

// Action is one ordered step of a Solution.
type Action struct {
	ActionType string                 `json:"action_type"`
	Target     string                 `json:"target,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Order      uint32                 `json:"order"`
}

// Solution is a remediation attached to a Problem via a `solves` edge.
// SuccessRate is maintained solely by UpdateSolutionOutcome (spec.md
// §4.E, Invariant 3).
type Solution struct {
	ID                uuid.UUID      `json:"id"`
	Description       string         `json:"description"`
	Actions           []Action       `json:"actions"`
	Prerequisites     []string       `json:"prerequisites,omitempty"`
	SideEffects       []string       `json:"side_effects,omitempty"`
	SuccessRate       float64        `json:"success_rate"`
	AttemptCount      uint32         `json:"attempt_count"`
	SuccessCount      uint32         `json:"success_count"`
	AvgResolutionTime *time.Duration `json:"avg_resolution_time,omitempty"`
}

// RecomputeSuccessRate applies Invariant 3: success_rate =
// success_count / attempt_count when attempt_count > 0, else 0.
func (s *Solution) RecomputeSuccessRate() {
	if s.AttemptCount == 0 {
		s.SuccessRate = 0
		return
	}
	s.SuccessRate = float64(s.SuccessCount) / float64(s.AttemptCount)
}

// Pattern is a knowledge-graph node summarising a recognised condition;
// distinct from the Pattern Library's UniversalPattern (pkg/intelligence/
// patterns), which this node type feeds via PatternRegistrar.
type Pattern struct {
	ID          uuid.UUID `json:"id"`
	PatternType string    `json:"pattern_type"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Occurrences uint32    `json:"occurrences"`
	LastUpdated time.Time `json:"last_updated"`
}

// Relationship enumerates the directed edge kinds between knowledge
// nodes (spec.md §4.E). Custom relationships are represented as
// "custom:<name>".
type Relationship string

const (
	RelationshipSolves      Relationship = "solves"
	RelationshipUses        Relationship = "uses"
	RelationshipRequires    Relationship = "requires"
	RelationshipCauses      Relationship = "causes"
	RelationshipLeadsTo     Relationship = "leads_to"
	RelationshipRelatedTo   Relationship = "related_to"
	RelationshipPartOf      Relationship = "part_of"
	RelationshipDependsOn   Relationship = "depends_on"
	RelationshipConflicts   Relationship = "conflicts"
	RelationshipImproves    Relationship = "improves"
	RelationshipValidates   Relationship = "validates"
	RelationshipGenerates   Relationship = "generates"
)

// KnowledgeEdge is a directed, weighted relationship between two nodes
// (spec.md §4.E; Invariant: both endpoints must refer to existing
// nodes).
type KnowledgeEdge struct {
	ID           uuid.UUID              `json:"id"`
	From         uuid.UUID              `json:"from"`
	To           uuid.UUID              `json:"to"`
	Relationship Relationship           `json:"relationship"`
	Weight       float64                `json:"weight"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// SolutionCandidate is a ranked result of FindSolutions.
type SolutionCandidate struct {
	Solution         Solution  `json:"solution"`
	Confidence       float64   `json:"confidence"`
	SimilarProblemID uuid.UUID `json:"similar_problem_id"`
}
