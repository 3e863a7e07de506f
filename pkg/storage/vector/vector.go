// Package vector implements a vector-similarity index abstraction used
// by the Knowledge Graph for nearest-neighbour problem/pattern lookup
// (spec.md §4.E), grounded on the teacher's pkg/storage/vector package
// and on the original embeddings.rs pgvector-backed EmbeddingStore.
package vector

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// Embedding is a dense vector produced by an Embedder.
type Embedding []float32

// CosineSimilarity returns the cosine similarity between a and b in
// [-1, 1]. Both vectors must share the same dimensionality.
func CosineSimilarity(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, aerrors.WithKind(aerrors.InvalidState("vector_store", "embedding dimension mismatch"), aerrors.KindInvalidState)
	}
	if len(a) == 0 {
		return 0, aerrors.WithKind(aerrors.InvalidState("vector_store", "embedding is empty"), aerrors.KindInvalidState)
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Record is one indexed embedding, identified by the knowledge-graph
// node id it belongs to.
type Record struct {
	ID        uuid.UUID
	NodeType  string
	Embedding Embedding
	StoredAt  time.Time
}

// ScoredRecord pairs a Record with its similarity to a query vector.
type ScoredRecord struct {
	Record
	Similarity float64
	Rank       int
}

// Store indexes embeddings for nearest-neighbour search. Production
// deployments back it with a pgvector-enabled Postgres table; tests and
// single-process deployments use MemoryStore.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	// FindNearest returns up to limit records of the given node type
	// (all types when nodeType is ""), most-similar-first, excluding
	// any record whose similarity to query falls at or below threshold.
	FindNearest(ctx context.Context, query Embedding, nodeType string, limit int, threshold float64) ([]ScoredRecord, error)
	Count() int
}

// MemoryStore is an in-memory, mutex-protected Store implementation
// (spec.md Non-goals exclude a production vector database integration
// test, but the interface is built to be backed by one).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[uuid.UUID]Record{}}
}

func (m *MemoryStore) Upsert(_ context.Context, record Record) error {
	if record.ID == uuid.Nil {
		return aerrors.WithKind(aerrors.InvalidState("vector_store", "record id cannot be empty"), aerrors.KindInvalidState)
	}
	if len(record.Embedding) == 0 {
		return aerrors.WithKind(aerrors.InvalidState("vector_store", "record embedding cannot be empty"), aerrors.KindInvalidState)
	}
	if record.StoredAt.IsZero() {
		record.StoredAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, aerrors.WithKind(aerrors.NotFound("vector_store", id.String()), aerrors.KindNotFound)
	}
	return r, nil
}

func (m *MemoryStore) FindNearest(_ context.Context, query Embedding, nodeType string, limit int, threshold float64) ([]ScoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scored []ScoredRecord
	for _, r := range m.records {
		if nodeType != "" && r.NodeType != nodeType {
			continue
		}
		sim, err := CosineSimilarity(query, r.Embedding)
		if err != nil {
			continue
		}
		if sim <= threshold {
			continue
		}
		scored = append(scored, ScoredRecord{Record: r, Similarity: sim})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
