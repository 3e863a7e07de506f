package dependency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/storage/vector"
)

// ResilientVectorStore wraps a vector.Store with the hand-rolled
// CircuitBreaker above and, once it trips (or a call errors outright),
// falls back to a DependencyManager-registered InMemoryVectorFallback.
// If the fallback itself has nothing to offer, FindNearest degrades to
// a nil, nil result rather than propagate the underlying error (spec.md
// §7: "Knowledge-graph query failure ... callers typically degrade to
// 'no candidates' behaviour rather than abort").
type ResilientVectorStore struct {
	primary      vector.Store
	breaker      *CircuitBreaker
	dependencies *DependencyManager
	fallbackName string
	logger       *logrus.Logger
}

// NewResilientVectorStore wraps primary. fallbackName must already be
// registered in dependencies with an *InMemoryVectorFallback via
// RegisterFallback.
func NewResilientVectorStore(primary vector.Store, dependencies *DependencyManager, fallbackName string, logger *logrus.Logger) *ResilientVectorStore {
	return &ResilientVectorStore{
		primary:      primary,
		breaker:      NewCircuitBreaker(fallbackName, 0.5, 30*time.Second),
		dependencies: dependencies,
		fallbackName: fallbackName,
		logger:       logger,
	}
}

func (s *ResilientVectorStore) fallback() *InMemoryVectorFallback {
	fp, ok := s.dependencies.GetFallback(s.fallbackName)
	if !ok {
		return nil
	}
	fb, _ := fp.(*InMemoryVectorFallback)
	return fb
}

// Upsert writes through the breaker, falling back to the in-memory
// store on failure so a later FindNearest still has something to
// scan.
func (s *ResilientVectorStore) Upsert(ctx context.Context, record vector.Record) error {
	err := s.breaker.Call(func() error { return s.primary.Upsert(ctx, record) })
	if err == nil {
		return nil
	}

	fb := s.fallback()
	if fb == nil {
		return err
	}
	s.logger.WithError(err).WithField("id", record.ID).Warn("vector store upsert failed, writing to in-memory fallback")
	_, fbErr := fb.ProvideFallback(ctx, "store", map[string]interface{}{
		"id":       record.ID.String(),
		"vector":   toFloat64(record.Embedding),
		"metadata": map[string]interface{}{"node_type": record.NodeType},
	})
	if fbErr != nil {
		return err
	}
	return nil
}

// Delete and Get have no fallback-store equivalent worth degrading to;
// they pass straight through to primary.
func (s *ResilientVectorStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.primary.Delete(ctx, id)
}

func (s *ResilientVectorStore) Get(ctx context.Context, id uuid.UUID) (vector.Record, error) {
	return s.primary.Get(ctx, id)
}

// FindNearest tries primary through the circuit breaker first, falls
// back to the in-memory fallback's linear scan on failure, and
// degrades to a nil, nil "no candidates" result if the fallback also
// comes up empty-handed — Graph.FindSolutions never sees an error from
// this path.
func (s *ResilientVectorStore) FindNearest(ctx context.Context, query vector.Embedding, nodeType string, limit int, threshold float64) ([]vector.ScoredRecord, error) {
	var result []vector.ScoredRecord
	err := s.breaker.Call(func() error {
		var callErr error
		result, callErr = s.primary.FindNearest(ctx, query, nodeType, limit, threshold)
		return callErr
	})
	if err == nil {
		return result, nil
	}

	fb := s.fallback()
	if fb == nil {
		s.logger.WithError(err).Warn("vector store unavailable and no fallback registered, degrading to no candidates")
		return nil, nil
	}

	raw, fbErr := fb.ProvideFallback(ctx, "search", map[string]interface{}{
		"vector": toFloat64(query),
		"limit":  limit,
	})
	if fbErr != nil {
		s.logger.WithError(fbErr).Warn("vector store fallback search failed, degrading to no candidates")
		return nil, nil
	}

	hits, _ := raw.([]VectorSearchResult)
	scored := make([]vector.ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity <= threshold {
			continue
		}
		id, parseErr := uuid.Parse(hit.ID)
		if parseErr != nil {
			continue
		}
		nt, _ := hit.Metadata["node_type"].(string)
		if nodeType != "" && nt != nodeType {
			continue
		}
		scored = append(scored, vector.ScoredRecord{
			Record:     vector.Record{ID: id, NodeType: nt},
			Similarity: hit.Similarity,
		})
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

func (s *ResilientVectorStore) Count() int {
	return s.primary.Count()
}

func toFloat64(e vector.Embedding) []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

var _ vector.Store = (*ResilientVectorStore)(nil)
