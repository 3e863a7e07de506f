package dependency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/knowledge"
)

// ResilientNodeStore wraps a knowledge.NodeStore with the CircuitBreaker
// above, falling back to a DependencyManager-registered
// InMemoryPatternFallback for Pattern-node reads and writes only — the
// fallback's store_pattern/get_patterns_by_type operation shape doesn't
// generalize to Problem/Solution/Edge rows, so every other NodeStore
// call goes straight to primary.
type ResilientNodeStore struct {
	primary      knowledge.NodeStore
	breaker      *CircuitBreaker
	dependencies *DependencyManager
	fallbackName string
	logger       *logrus.Logger
}

// NewResilientNodeStore wraps primary. fallbackName must already be
// registered in dependencies with an *InMemoryPatternFallback via
// RegisterFallback.
func NewResilientNodeStore(primary knowledge.NodeStore, dependencies *DependencyManager, fallbackName string, logger *logrus.Logger) *ResilientNodeStore {
	return &ResilientNodeStore{
		primary:      primary,
		breaker:      NewCircuitBreaker(fallbackName, 0.5, 30*time.Second),
		dependencies: dependencies,
		fallbackName: fallbackName,
		logger:       logger,
	}
}

func (s *ResilientNodeStore) fallback() *InMemoryPatternFallback {
	fp, ok := s.dependencies.GetFallback(s.fallbackName)
	if !ok {
		return nil
	}
	fb, _ := fp.(*InMemoryPatternFallback)
	return fb
}

// InsertNode writes through the breaker. On failure for a Pattern
// node it degrades to the in-memory pattern fallback; every other
// node type has no fallback equivalent and just surfaces the error.
func (s *ResilientNodeStore) InsertNode(ctx context.Context, record knowledge.NodeRecord) error {
	err := s.breaker.Call(func() error { return s.primary.InsertNode(ctx, record) })
	if err == nil || record.NodeType != knowledge.NodeTypePattern {
		return err
	}

	fb := s.fallback()
	if fb == nil {
		return err
	}
	var data map[string]interface{}
	if jsonErr := json.Unmarshal(record.Data, &data); jsonErr != nil {
		return err
	}
	data["id"] = record.ID.String()

	s.logger.WithError(err).WithField("id", record.ID).Warn("pattern node insert failed, writing to in-memory fallback")
	if _, fbErr := fb.ProvideFallback(ctx, "store_pattern", map[string]interface{}{"pattern": data}); fbErr != nil {
		return err
	}
	return nil
}

func (s *ResilientNodeStore) GetNode(ctx context.Context, id uuid.UUID) (knowledge.NodeRecord, error) {
	return s.primary.GetNode(ctx, id)
}

func (s *ResilientNodeStore) UpdateNodeData(ctx context.Context, id uuid.UUID, data json.RawMessage) error {
	return s.primary.UpdateNodeData(ctx, id, data)
}

func (s *ResilientNodeStore) FindProblemByFingerprint(ctx context.Context, fingerprint string) (*knowledge.NodeRecord, error) {
	return s.primary.FindProblemByFingerprint(ctx, fingerprint)
}

// ListNodesByType falls back to the in-memory pattern store for
// NodeTypePattern lookups only, re-marshalling each fallback entry
// back into a NodeRecord so Graph.FindSimilarPatterns sees the same
// shape regardless of which path served it. A failed fallback
// degrades to no patterns rather than an error.
func (s *ResilientNodeStore) ListNodesByType(ctx context.Context, nodeType knowledge.NodeType) ([]knowledge.NodeRecord, error) {
	var result []knowledge.NodeRecord
	err := s.breaker.Call(func() error {
		var callErr error
		result, callErr = s.primary.ListNodesByType(ctx, nodeType)
		return callErr
	})
	if err == nil || nodeType != knowledge.NodeTypePattern {
		return result, err
	}

	fb := s.fallback()
	if fb == nil {
		s.logger.WithError(err).Warn("pattern store unavailable and no fallback registered, degrading to no patterns")
		return nil, nil
	}

	raw, fbErr := fb.ProvideFallback(ctx, "get_patterns_by_type", map[string]interface{}{"type": string(knowledge.NodeTypePattern)})
	if fbErr != nil {
		s.logger.WithError(fbErr).Warn("pattern store fallback lookup failed, degrading to no patterns")
		return nil, nil
	}

	matches, _ := raw.([]map[string]interface{})
	records := make([]knowledge.NodeRecord, 0, len(matches))
	for _, m := range matches {
		idStr, _ := m["id"].(string)
		id, parseErr := uuid.Parse(idStr)
		if parseErr != nil {
			continue
		}
		data, marshalErr := json.Marshal(m)
		if marshalErr != nil {
			continue
		}
		records = append(records, knowledge.NodeRecord{ID: id, NodeType: knowledge.NodeTypePattern, Data: data})
	}
	return records, nil
}

func (s *ResilientNodeStore) InsertEdge(ctx context.Context, edge knowledge.KnowledgeEdge) error {
	return s.primary.InsertEdge(ctx, edge)
}

func (s *ResilientNodeStore) EdgesInto(ctx context.Context, to uuid.UUID, relationship knowledge.Relationship) ([]knowledge.KnowledgeEdge, error) {
	return s.primary.EdgesInto(ctx, to, relationship)
}

var _ knowledge.NodeStore = (*ResilientNodeStore)(nil)
