package patterns

import "time"

// ChangeType discriminates the kinds of mutation an EvolutionChange
// can make to a UniversalPattern (evolution.rs's ChangeType enum).
type ChangeType string

const (
	ChangeModifyStep      ChangeType = "modify_step"
	ChangeAddStep         ChangeType = "add_step"
	ChangeRemoveStep      ChangeType = "remove_step"
	ChangeModifyThreshold ChangeType = "modify_threshold"
	ChangeUpdateMetadata  ChangeType = "update_metadata"
)

// EvolutionChange is one proposed mutation, carrying only the fields
// relevant to its ChangeType.
type EvolutionChange struct {
	ChangeType          ChangeType
	Reason              string
	ExpectedImprovement float64

	StepIndex      int
	NewStep        *SolutionStep
	Position       int
	IndicatorIndex int
	NewThreshold   interface{}
	MetadataKey    string
	MetadataValue  interface{}
}

// EvolutionResult is the outcome of evolving one pattern.
type EvolutionResult struct {
	PatternID        PatternID
	OriginalPattern  UniversalPattern
	EvolvedPattern   UniversalPattern
	Changes          []EvolutionChange
	ShouldUpdate     bool
	ConfidenceDelta  float64
}

// evolutionStrategy proposes at most one EvolutionChange for a pattern
// (evolution.rs's EvolutionStrategy trait).
type evolutionStrategy interface {
	evolve(pattern UniversalPattern) *EvolutionChange
}

// Evolver mutates patterns based on their accumulated outcome metrics
// (spec.md §4.F Evolution).
type Evolver struct {
	strategies []evolutionStrategy
}

// NewEvolver builds an Evolver with the default success-rate,
// performance and simplification strategies (evolution.rs's
// PatternEvolver::new).
func NewEvolver() *Evolver {
	return &Evolver{
		strategies: []evolutionStrategy{
			successRateStrategy{},
			performanceStrategy{},
			simplificationStrategy{},
		},
	}
}

// ShouldEvolve reports whether pattern is eligible for evolution:
// applied at least 10 times, confidence below 0.9, and not evolved (or
// updated) in the last 7 days (spec.md §4.F Evolution, Open Question
// resolved by "now" being supplied by the caller so the decision stays
// deterministic and testable).
func (e *Evolver) ShouldEvolve(pattern UniversalPattern, now time.Time) bool {
	return pattern.Metrics.ApplicationCount >= 10 &&
		pattern.Metrics.ConfidenceScore < 0.9 &&
		now.Sub(pattern.UpdatedAt) > 7*24*time.Hour
}

// EvolveAll evolves every eligible pattern in patterns.
func (e *Evolver) EvolveAll(patterns map[PatternID]UniversalPattern, now time.Time) []EvolutionResult {
	var results []EvolutionResult
	for id, pattern := range patterns {
		if e.ShouldEvolve(pattern, now) {
			results = append(results, e.EvolvePattern(id, pattern, now))
		}
	}
	return results
}

// EvolvePattern applies each strategy's proposed change in turn,
// advancing evolution_count and updated_at, and reports a confidence
// delta of 0.05 per change applied.
func (e *Evolver) EvolvePattern(id PatternID, pattern UniversalPattern, now time.Time) EvolutionResult {
	original := pattern
	evolved := pattern
	var changes []EvolutionChange

	for _, strategy := range e.strategies {
		change := strategy.evolve(evolved)
		if change == nil {
			continue
		}
		changes = append(changes, *change)
		evolved = applyChange(evolved, *change)
	}

	evolved.Metrics.EvolutionCount++
	evolved.UpdatedAt = now

	return EvolutionResult{
		PatternID:       id,
		OriginalPattern: original,
		EvolvedPattern:  evolved,
		Changes:         changes,
		ShouldUpdate:    len(changes) > 0,
		ConfidenceDelta: float64(len(changes)) * 0.05,
	}
}

func applyChange(pattern UniversalPattern, change EvolutionChange) UniversalPattern {
	switch change.ChangeType {
	case ChangeModifyStep:
		if change.NewStep != nil && change.StepIndex >= 0 && change.StepIndex < len(pattern.Solution.Steps) {
			pattern.Solution.Steps[change.StepIndex] = *change.NewStep
		}
	case ChangeAddStep:
		if change.NewStep != nil && change.Position >= 0 && change.Position <= len(pattern.Solution.Steps) {
			steps := make([]SolutionStep, 0, len(pattern.Solution.Steps)+1)
			steps = append(steps, pattern.Solution.Steps[:change.Position]...)
			steps = append(steps, *change.NewStep)
			steps = append(steps, pattern.Solution.Steps[change.Position:]...)
			pattern.Solution.Steps = steps
		}
	case ChangeRemoveStep:
		if change.StepIndex >= 0 && change.StepIndex < len(pattern.Solution.Steps) {
			pattern.Solution.Steps = append(pattern.Solution.Steps[:change.StepIndex], pattern.Solution.Steps[change.StepIndex+1:]...)
		}
	case ChangeModifyThreshold:
		if change.IndicatorIndex >= 0 && change.IndicatorIndex < len(pattern.Context.ProblemIndicators) {
			pattern.Context.ProblemIndicators[change.IndicatorIndex].Threshold = change.NewThreshold
		}
	case ChangeUpdateMetadata:
		if pattern.Metadata == nil {
			pattern.Metadata = map[string]interface{}{}
		}
		pattern.Metadata[change.MetadataKey] = change.MetadataValue
	}
	return pattern
}

// successRateStrategy flags low-confidence patterns for review
// (evolution.rs's SuccessRateStrategy).
type successRateStrategy struct{}

func (successRateStrategy) evolve(pattern UniversalPattern) *EvolutionChange {
	if pattern.Metrics.ConfidenceScore >= 0.5 {
		return nil
	}
	return &EvolutionChange{
		ChangeType:          ChangeUpdateMetadata,
		Reason:              "low success rate detected",
		ExpectedImprovement: 0.1,
		MetadataKey:         "needs_review",
		MetadataValue:       true,
	}
}

// performanceStrategy is a placeholder for slow-step optimisation,
// matching evolution.rs's PerformanceStrategy (which is itself a stub
// that always returns None).
type performanceStrategy struct{}

func (performanceStrategy) evolve(_ UniversalPattern) *EvolutionChange {
	return nil
}

// simplificationStrategy is a placeholder for redundant-step removal,
// matching evolution.rs's SimplificationStrategy (also a stub).
type simplificationStrategy struct{}

func (simplificationStrategy) evolve(_ UniversalPattern) *EvolutionChange {
	return nil
}
