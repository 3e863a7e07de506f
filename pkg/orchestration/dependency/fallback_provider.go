package dependency

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// FallbackMetrics counts how a FallbackProvider has been used.
type FallbackMetrics struct {
	FallbacksProvided    int64
	TotalOperations      int64
	SuccessfulOperations int64
	FailedOperations     int64
}

// FallbackProvider stands in for an external dependency (a vector
// store, a pattern store) when the real backend is unreachable. The
// operation/params shape mirrors the real client's RPC surface closely
// enough that callers can switch to a fallback without a different
// code path.
type FallbackProvider interface {
	ProvideFallback(ctx context.Context, operation string, params map[string]interface{}) (interface{}, error)
	GetMetrics() FallbackMetrics
}

// VectorSearchResult is one hit from a vector similarity search.
type VectorSearchResult struct {
	ID         string
	Similarity float64
	Metadata   map[string]interface{}
}

type storedVector struct {
	id       string
	vector   []float64
	metadata map[string]interface{}
}

// InMemoryVectorFallback answers vector store/search calls from an
// in-process map when the real vector backend (pkg/storage/vector's
// pgvector-backed store) is down. It has no persistence and no
// indexing beyond a linear scan — adequate for the reduced traffic a
// degraded mode is expected to see, not a replacement for the real
// store.
type InMemoryVectorFallback struct {
	logger *logrus.Logger

	mu      sync.Mutex
	vectors map[string]storedVector
	metrics FallbackMetrics
}

// NewInMemoryVectorFallback builds an empty in-memory vector fallback.
func NewInMemoryVectorFallback(logger *logrus.Logger) *InMemoryVectorFallback {
	return &InMemoryVectorFallback{
		logger:  logger,
		vectors: make(map[string]storedVector),
	}
}

// ProvideFallback handles "store" and "search" operations.
func (f *InMemoryVectorFallback) ProvideFallback(_ context.Context, operation string, params map[string]interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.metrics.TotalOperations++

	var result interface{}
	var err error
	switch operation {
	case "store":
		result, err = f.storeLocked(params)
	case "search":
		result, err = f.searchLocked(params)
	default:
		err = fmt.Errorf("in-memory vector fallback: unsupported operation %q", operation)
	}

	if err != nil {
		f.metrics.FailedOperations++
		return nil, err
	}
	f.metrics.SuccessfulOperations++
	f.metrics.FallbacksProvided++
	return result, nil
}

func (f *InMemoryVectorFallback) storeLocked(params map[string]interface{}) (interface{}, error) {
	id, _ := params["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("in-memory vector fallback: store requires an id")
	}
	vector, ok := params["vector"].([]float64)
	if !ok {
		return nil, fmt.Errorf("in-memory vector fallback: store requires a []float64 vector")
	}
	metadata, _ := params["metadata"].(map[string]interface{})

	f.vectors[id] = storedVector{id: id, vector: vector, metadata: metadata}
	f.logger.WithField("id", id).Debug("stored vector in fallback store")
	return id, nil
}

func (f *InMemoryVectorFallback) searchLocked(params map[string]interface{}) (interface{}, error) {
	query, ok := params["vector"].([]float64)
	if !ok {
		return nil, fmt.Errorf("in-memory vector fallback: search requires a []float64 vector")
	}
	limit, _ := params["limit"].(int)
	if limit <= 0 {
		limit = len(f.vectors)
	}

	results := make([]VectorSearchResult, 0, len(f.vectors))
	for _, sv := range f.vectors {
		results = append(results, VectorSearchResult{
			ID:         sv.id,
			Similarity: f.CalculateSimilarity(query, sv.vector),
			Metadata:   sv.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CalculateSimilarity returns the cosine similarity of two vectors, or
// 0 if either is a zero vector or their dimensions differ.
func (f *InMemoryVectorFallback) CalculateSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// GetMetrics returns the fallback's usage counters.
func (f *InMemoryVectorFallback) GetMetrics() FallbackMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// InMemoryPatternFallback answers pattern store/retrieve calls from an
// in-process map when the real knowledge graph store (pkg/knowledge)
// is down.
type InMemoryPatternFallback struct {
	logger *logrus.Logger

	mu       sync.Mutex
	patterns map[string]map[string]interface{}
	metrics  FallbackMetrics
}

// NewInMemoryPatternFallback builds an empty in-memory pattern fallback.
func NewInMemoryPatternFallback(logger *logrus.Logger) *InMemoryPatternFallback {
	return &InMemoryPatternFallback{
		logger:   logger,
		patterns: make(map[string]map[string]interface{}),
	}
}

// ProvideFallback handles "store_pattern" and "get_patterns_by_type" operations.
func (f *InMemoryPatternFallback) ProvideFallback(_ context.Context, operation string, params map[string]interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.metrics.TotalOperations++

	var result interface{}
	var err error
	switch operation {
	case "store_pattern":
		result, err = f.storePatternLocked(params)
	case "get_patterns_by_type":
		result, err = f.patternsByTypeLocked(params)
	default:
		err = fmt.Errorf("in-memory pattern fallback: unsupported operation %q", operation)
	}

	if err != nil {
		f.metrics.FailedOperations++
		return nil, err
	}
	f.metrics.SuccessfulOperations++
	f.metrics.FallbacksProvided++
	return result, nil
}

func (f *InMemoryPatternFallback) storePatternLocked(params map[string]interface{}) (interface{}, error) {
	pattern, ok := params["pattern"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("in-memory pattern fallback: store_pattern requires a pattern map")
	}
	id, _ := pattern["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("in-memory pattern fallback: pattern requires an id")
	}
	f.patterns[id] = pattern
	f.logger.WithField("id", id).Debug("stored pattern in fallback store")
	return id, nil
}

func (f *InMemoryPatternFallback) patternsByTypeLocked(params map[string]interface{}) (interface{}, error) {
	patternType, _ := params["type"].(string)

	matches := make([]map[string]interface{}, 0)
	for _, p := range f.patterns {
		if t, _ := p["type"].(string); t == patternType {
			matches = append(matches, p)
		}
	}

	if orderBy, _ := params["order_by"].(string); orderBy == "success_rate" {
		sort.Slice(matches, func(i, j int) bool {
			ri, _ := matches[i]["success_rate"].(float64)
			rj, _ := matches[j]["success_rate"].(float64)
			return ri > rj
		})
	}
	return matches, nil
}

// GetMetrics returns the fallback's usage counters.
func (f *InMemoryPatternFallback) GetMetrics() FallbackMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// DependencyConfig configures a DependencyManager.
type DependencyConfig struct {
	EnableFallbacks bool
}

// HealthReport summarizes a DependencyManager's registered fallbacks.
type HealthReport struct {
	FallbacksAvailable []string
}

// DependencyManager tracks the fallback providers standing in for
// external dependencies, so callers can ask "is a fallback available
// for X" without wiring each dependency's circuit breaker directly to
// its fallback.
type DependencyManager struct {
	config *DependencyConfig
	logger *logrus.Logger

	mu        sync.Mutex
	fallbacks map[string]FallbackProvider
}

// NewDependencyManager builds a DependencyManager from config.
func NewDependencyManager(config *DependencyConfig, logger *logrus.Logger) *DependencyManager {
	return &DependencyManager{
		config:    config,
		logger:    logger,
		fallbacks: make(map[string]FallbackProvider),
	}
}

// RegisterFallback associates a name with a FallbackProvider. It
// returns an error if fallbacks are disabled in config.
func (dm *DependencyManager) RegisterFallback(name string, provider FallbackProvider) error {
	if !dm.config.EnableFallbacks {
		return fmt.Errorf("dependency manager: fallbacks are disabled")
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.fallbacks[name] = provider
	dm.logger.WithField("fallback", name).Info("registered fallback provider")
	return nil
}

// GetFallback returns the fallback registered under name, if any.
func (dm *DependencyManager) GetFallback(name string) (FallbackProvider, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	fp, ok := dm.fallbacks[name]
	return fp, ok
}

// GetHealthReport lists the currently registered fallback names.
func (dm *DependencyManager) GetHealthReport() HealthReport {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	names := make([]string, 0, len(dm.fallbacks))
	for name := range dm.fallbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return HealthReport{FallbacksAvailable: names}
}
