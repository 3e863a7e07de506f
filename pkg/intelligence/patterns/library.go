package patterns

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ai-ops-core/core/pkg/knowledge"
	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// Library stores and retrieves UniversalPatterns and drives the
// detect/apply/evolve loop over them (spec.md §4.F, mod.rs's
// PatternLibrary). It also implements knowledge.PatternRegistrar so
// Graph.AddPattern can hand it newly-learned knowledge.Pattern nodes
// without pkg/knowledge importing this package.
type Library struct {
	mu            sync.RWMutex
	patterns      map[PatternID]UniversalPattern
	categoryIndex map[PatternCategory][]PatternID

	detector   *Detector
	applicator *Applicator
	evolver    *Evolver

	applications *prometheus.CounterVec
	evolutions   *prometheus.CounterVec
}

// NewLibrary builds an empty Library with the default detector,
// applicator and evolver, registering its metrics on reg (pass nil to
// skip registration, e.g. in tests).
func NewLibrary(reg prometheus.Registerer) *Library {
	l := &Library{
		patterns:      map[PatternID]UniversalPattern{},
		categoryIndex: map[PatternCategory][]PatternID{},
		detector:      NewDetector(),
		applicator:    NewApplicator(),
		evolver:       NewEvolver(),
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_ops_pattern_applications_total",
			Help: "Pattern Library applications by outcome.",
		}, []string{"outcome"}),
		evolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_ops_pattern_evolutions_total",
			Help: "Pattern Library evolutions applied.",
		}, []string{"category"}),
	}
	if reg != nil {
		reg.MustRegister(l.applications, l.evolutions)
	}
	return l
}

// AddPattern stores a new pattern, assigning it a fresh ID and
// timestamps, and indexes it by category (mod.rs's add_pattern).
func (l *Library) AddPattern(_ context.Context, pattern UniversalPattern) (PatternID, error) {
	now := time.Now().UTC()
	pattern.ID = uuid.New()
	pattern.CreatedAt = now
	pattern.UpdatedAt = now

	l.mu.Lock()
	defer l.mu.Unlock()
	l.patterns[pattern.ID] = pattern
	l.categoryIndex[pattern.Category] = append(l.categoryIndex[pattern.Category], pattern.ID)
	return pattern.ID, nil
}

// GetPattern retrieves a pattern by id.
func (l *Library) GetPattern(_ context.Context, id PatternID) (UniversalPattern, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pattern, ok := l.patterns[id]
	if !ok {
		return UniversalPattern{}, aerrors.WithKind(aerrors.NotFound("pattern", id.String()), aerrors.KindPatternMatching)
	}
	return pattern, nil
}

// FindByCategory returns every pattern indexed under category.
func (l *Library) FindByCategory(_ context.Context, category PatternCategory) ([]UniversalPattern, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.categoryIndex[category]
	results := make([]UniversalPattern, 0, len(ids))
	for _, id := range ids {
		if pattern, ok := l.patterns[id]; ok {
			results = append(results, pattern)
		}
	}
	return results, nil
}

// DetectPatterns runs the detector over every stored pattern.
func (l *Library) DetectPatterns(_ context.Context, detectionCtx DetectionContext) ([]DetectionResult, error) {
	l.mu.RLock()
	snapshot := make(map[PatternID]UniversalPattern, len(l.patterns))
	for id, pattern := range l.patterns {
		snapshot[id] = pattern
	}
	l.mu.RUnlock()
	return l.detector.Detect(detectionCtx, snapshot), nil
}

// ApplyPattern applies the named pattern and records the outcome into
// its metrics (mod.rs's apply_pattern + update_pattern_metrics).
func (l *Library) ApplyPattern(ctx context.Context, id PatternID, appCtx ApplicationContext) (ApplicationResult, error) {
	pattern, err := l.GetPattern(ctx, id)
	if err != nil {
		return ApplicationResult{}, err
	}

	result := l.applicator.Apply(ctx, pattern, appCtx)

	if err := l.updatePatternMetrics(id, result); err != nil {
		return result, err
	}

	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	if l.applications != nil {
		l.applications.WithLabelValues(outcome).Inc()
	}

	return result, nil
}

// updatePatternMetrics implements mod.rs's update_pattern_metrics: the
// running-average resolution time is recomputed from the pre-increment
// total, then divided by the post-increment count.
func (l *Library) updatePatternMetrics(id PatternID, result ApplicationResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pattern, ok := l.patterns[id]
	if !ok {
		return aerrors.WithKind(aerrors.NotFound("pattern", id.String()), aerrors.KindPatternMatching)
	}

	metrics := pattern.Metrics
	priorCount := metrics.ApplicationCount
	metrics.ApplicationCount++

	if result.Success {
		metrics.SuccessCount++
	} else {
		metrics.FailureCount++
	}
	metrics.ConfidenceScore = float64(metrics.SuccessCount) / float64(metrics.ApplicationCount)

	totalResolution := metrics.AverageResolution * time.Duration(priorCount)
	metrics.AverageResolution = (totalResolution + result.Duration) / time.Duration(metrics.ApplicationCount)

	pattern.Metrics = metrics
	pattern.UpdatedAt = time.Now().UTC()
	l.patterns[id] = pattern
	return nil
}

// EvolvePatterns runs the evolver over every eligible stored pattern
// and commits any resulting changes back into the library.
func (l *Library) EvolvePatterns(_ context.Context, now time.Time) ([]EvolutionResult, error) {
	l.mu.RLock()
	snapshot := make(map[PatternID]UniversalPattern, len(l.patterns))
	for id, pattern := range l.patterns {
		snapshot[id] = pattern
	}
	l.mu.RUnlock()

	results := l.evolver.EvolveAll(snapshot, now)

	l.mu.Lock()
	for _, result := range results {
		if result.ShouldUpdate {
			l.patterns[result.PatternID] = result.EvolvedPattern
			if l.evolutions != nil {
				l.evolutions.WithLabelValues(string(result.EvolvedPattern.Category)).Inc()
			}
		}
	}
	l.mu.Unlock()

	return results, nil
}

// RegisterPattern implements knowledge.PatternRegistrar: a
// knowledge.Pattern learned by the Knowledge Graph is indexed here
// under a minimal UniversalPattern shell (no solution/context yet —
// those are filled in separately when an operator promotes it to a
// full remediation pattern).
func (l *Library) RegisterPattern(ctx context.Context, pattern knowledge.Pattern) error {
	_, err := l.AddPattern(ctx, UniversalPattern{
		Name:        pattern.PatternType,
		Category:    CategoryReliability,
		Description: pattern.Description,
		Metrics: PatternMetrics{
			ConfidenceScore:  pattern.Confidence,
			ApplicationCount: uint32(pattern.Occurrences),
		},
		Metadata: map[string]interface{}{"source_pattern_id": pattern.ID.String()},
	})
	return err
}

var _ knowledge.PatternRegistrar = (*Library)(nil)
