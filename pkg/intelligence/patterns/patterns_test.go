package patterns_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai-ops-core/core/pkg/intelligence/patterns"
	"github.com/ai-ops-core/core/pkg/knowledge"
)

func TestPatterns(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pattern Library Suite")
}

func highCPUPattern() patterns.UniversalPattern {
	return patterns.NewUniversalPattern(
		"high-cpu-restart",
		patterns.CategoryPerformance,
		"restart service when CPU usage stays high",
		patterns.PatternContext{
			ProblemIndicators: []patterns.Indicator{
				{
					IndicatorType: patterns.IndicatorType{Kind: "metric", Name: "cpu_usage"},
					Operator:      patterns.OpGreaterThan,
					Threshold:     0.9,
				},
			},
		},
		patterns.PatternSolution{
			Steps: []patterns.SolutionStep{
				{Order: 1, Action: patterns.Action{ActionType: patterns.ActionScale, Target: "worker"}, OnFailure: patterns.FailureAbort},
			},
			RollbackSteps: []patterns.SolutionStep{
				{Order: 1, Action: patterns.Action{ActionType: patterns.ActionConfigure, Target: "worker"}, OnFailure: patterns.FailureSkip},
			},
		},
	)
}

var _ = Describe("Detector", func() {
	It("only reports patterns whose confidence exceeds 0.5", func() {
		detector := patterns.NewDetector()
		pattern := highCPUPattern()
		pattern.Metrics.ConfidenceScore = 1.0
		store := map[patterns.PatternID]patterns.UniversalPattern{pattern.ID: pattern}

		below := detector.Detect(patterns.DetectionContext{Metrics: map[string]float64{"cpu_usage": 0.5}}, store)
		Expect(below).To(BeEmpty())

		above := detector.Detect(patterns.DetectionContext{Metrics: map[string]float64{"cpu_usage": 0.95}}, store)
		Expect(above).To(HaveLen(1))
		Expect(above[0].PatternID).To(Equal(pattern.ID))
		Expect(above[0].SuggestedPriority).To(Equal(patterns.PriorityHigh))
	})
})

var _ = Describe("Applicator", func() {
	It("reports dry-run success without running the real executors", func() {
		applicator := patterns.NewApplicator()
		pattern := highCPUPattern()

		result := applicator.Apply(context.Background(), pattern, patterns.ApplicationContext{DryRun: true})
		Expect(result.Success).To(BeTrue())
		Expect(result.DryRun).To(BeTrue())
		Expect(result.StepsExecuted).To(HaveLen(1))
		Expect(result.StepsExecuted[0].Output).To(ContainSubstring("dry run"))
	})

	It("rolls back in reverse order when a step aborts", func() {
		applicator := patterns.NewApplicator()
		pattern := highCPUPattern()
		pattern.Solution.Steps[0].OnFailure = patterns.FailureAbort
		pattern.Solution.Steps[0].Action.ActionType = "unregistered_action_type"

		var rolledBack []string
		applicator.RegisterExecutor(patterns.ActionConfigure, recordingExecutor{log: &rolledBack})

		result := applicator.Apply(context.Background(), pattern, patterns.ApplicationContext{})
		Expect(result.Success).To(BeFalse())
		Expect(rolledBack).To(Equal([]string{"worker"}))
	})
})

type recordingExecutor struct {
	log *[]string
}

func (r recordingExecutor) Execute(_ context.Context, action patterns.Action) (string, error) {
	*r.log = append(*r.log, action.Target)
	return "rolled back", nil
}

var _ = Describe("Evolver", func() {
	It("is eligible only once applied 10+ times, below 0.9 confidence, and stale for 7+ days", func() {
		evolver := patterns.NewEvolver()
		pattern := highCPUPattern()
		pattern.Metrics.ApplicationCount = 10
		pattern.Metrics.ConfidenceScore = 0.4
		pattern.UpdatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)

		now := time.Now().UTC()
		Expect(evolver.ShouldEvolve(pattern, now)).To(BeTrue())

		fresh := pattern
		fresh.UpdatedAt = now
		Expect(evolver.ShouldEvolve(fresh, now)).To(BeFalse())
	})

	It("flags low-confidence patterns needing review and reports a confidence delta", func() {
		evolver := patterns.NewEvolver()
		pattern := highCPUPattern()
		pattern.Metrics.ConfidenceScore = 0.3

		result := evolver.EvolvePattern(pattern.ID, pattern, time.Now().UTC())
		Expect(result.ShouldUpdate).To(BeTrue())
		Expect(result.ConfidenceDelta).To(BeNumerically("~", 0.05, 1e-9))
		Expect(result.EvolvedPattern.Metadata["needs_review"]).To(Equal(true))
		Expect(result.EvolvedPattern.Metrics.EvolutionCount).To(Equal(uint32(1)))
	})
})

var _ = Describe("Library", func() {
	It("indexes patterns by category and applies the detect/apply/evolve loop", func() {
		library := patterns.NewLibrary(nil)
		ctx := context.Background()

		id, err := library.AddPattern(ctx, highCPUPattern())
		Expect(err).NotTo(HaveOccurred())

		byCategory, err := library.FindByCategory(ctx, patterns.CategoryPerformance)
		Expect(err).NotTo(HaveOccurred())
		Expect(byCategory).To(HaveLen(1))

		detections, err := library.DetectPatterns(ctx, patterns.DetectionContext{Metrics: map[string]float64{"cpu_usage": 0.99}})
		Expect(err).NotTo(HaveOccurred())
		Expect(detections).To(HaveLen(1))

		result, err := library.ApplyPattern(ctx, id, patterns.ApplicationContext{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Success).To(BeTrue())

		stored, err := library.GetPattern(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Metrics.ApplicationCount).To(Equal(uint32(1)))
		Expect(stored.Metrics.SuccessCount).To(Equal(uint32(1)))
		Expect(stored.Metrics.ConfidenceScore).To(Equal(1.0))
	})

	It("implements knowledge.PatternRegistrar so the Knowledge Graph can register learned patterns", func() {
		library := patterns.NewLibrary(nil)
		var registrar knowledge.PatternRegistrar = library

		err := registrar.RegisterPattern(context.Background(), knowledge.Pattern{
			PatternType: "recurring-timeout",
			Description: "connection pool exhaustion recurs under load",
			Confidence:  0.6,
			Occurrences: 4,
		})
		Expect(err).NotTo(HaveOccurred())

		found, err := library.FindByCategory(context.Background(), patterns.CategoryReliability)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found[0].Name).To(Equal("recurring-timeout"))
	})
})
