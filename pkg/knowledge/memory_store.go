package knowledge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// MemoryNodeStore is an in-process NodeStore used by tests and by
// single-node deployments that do not need durability, mirroring the
// structure of pkg/events.Store.
type MemoryNodeStore struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]NodeRecord
	edges []KnowledgeEdge
}

// NewMemoryNodeStore constructs an empty MemoryNodeStore.
func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{nodes: map[uuid.UUID]NodeRecord{}}
}

func (m *MemoryNodeStore) InsertNode(_ context.Context, record NodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[record.ID] = record
	return nil
}

func (m *MemoryNodeStore) GetNode(_ context.Context, id uuid.UUID) (NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.nodes[id]
	if !ok {
		return NodeRecord{}, aerrors.WithKind(aerrors.NotFound("knowledge_nodes", id.String()), aerrors.KindNotFound)
	}
	return record, nil
}

func (m *MemoryNodeStore) UpdateNodeData(_ context.Context, id uuid.UUID, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.nodes[id]
	if !ok {
		return aerrors.WithKind(aerrors.NotFound("knowledge_nodes", id.String()), aerrors.KindNotFound)
	}
	record.Data = data
	record.UpdatedAt = time.Now().UTC()
	m.nodes[id] = record
	return nil
}

func (m *MemoryNodeStore) FindProblemByFingerprint(_ context.Context, fingerprint string) (*NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, record := range m.nodes {
		if record.NodeType != NodeTypeProblem {
			continue
		}
		var p Problem
		if err := json.Unmarshal(record.Data, &p); err != nil {
			continue
		}
		if p.Fingerprint == fingerprint {
			found := record
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryNodeStore) ListNodesByType(_ context.Context, nodeType NodeType) ([]NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []NodeRecord
	for _, record := range m.nodes {
		if record.NodeType == nodeType {
			records = append(records, record)
		}
	}
	return records, nil
}

func (m *MemoryNodeStore) InsertEdge(_ context.Context, edge KnowledgeEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

func (m *MemoryNodeStore) EdgesInto(_ context.Context, to uuid.UUID, relationship Relationship) ([]KnowledgeEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []KnowledgeEdge
	for _, edge := range m.edges {
		if edge.To == to && edge.Relationship == relationship {
			out = append(out, edge)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Weight < out[j].Weight; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}
