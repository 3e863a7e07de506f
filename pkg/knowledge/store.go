package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// NodeType discriminates the rows of the knowledge_nodes table.
type NodeType string

const (
	NodeTypeProblem  NodeType = "problem"
	NodeTypeSolution NodeType = "solution"
	NodeTypePattern  NodeType = "pattern"
	NodeTypeTool     NodeType = "tool"
	NodeTypeAgent    NodeType = "agent"
	NodeTypeInsight  NodeType = "insight"
)

// NodeRecord is the raw row shape backing every KnowledgeNode variant
// (spec.md §6 knowledge_nodes schema).
type NodeRecord struct {
	ID        uuid.UUID       `db:"id"`
	NodeType  NodeType        `db:"node_type"`
	Data      json.RawMessage `db:"data"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type edgeRow struct {
	ID           uuid.UUID       `db:"id"`
	From         uuid.UUID       `db:"from_node"`
	To           uuid.UUID       `db:"to_node"`
	Relationship string          `db:"relationship"`
	Weight       float64         `db:"weight"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// NodeStore persists knowledge nodes and edges relationally (spec.md
// §4.E: "a typed property graph stored in a relational backend").
// Fingerprint lookups and occurrence increments happen inside a single
// call at the caller (Graph.AddProblem) to preserve Invariant 4
// (fingerprint uniqueness); concurrent callers racing on the same
// fingerprint rely on the database's row-level locking, not this
// interface.
type NodeStore interface {
	InsertNode(ctx context.Context, record NodeRecord) error
	GetNode(ctx context.Context, id uuid.UUID) (NodeRecord, error)
	UpdateNodeData(ctx context.Context, id uuid.UUID, data json.RawMessage) error
	FindProblemByFingerprint(ctx context.Context, fingerprint string) (*NodeRecord, error)
	ListNodesByType(ctx context.Context, nodeType NodeType) ([]NodeRecord, error)

	InsertEdge(ctx context.Context, edge KnowledgeEdge) error
	EdgesInto(ctx context.Context, to uuid.UUID, relationship Relationship) ([]KnowledgeEdge, error)
}

// PostgresNodeStore implements NodeStore over an *sqlx.DB (driven by
// lib/pq against a Postgres instance with the pgvector extension
// enabled for the companion vector.Store), matching the original
// knowledge/mod.rs's PgPool-backed queries one-for-one.
type PostgresNodeStore struct {
	db *sqlx.DB
}

// NewPostgresNodeStore wraps an existing sqlx handle.
func NewPostgresNodeStore(db *sqlx.DB) *PostgresNodeStore {
	return &PostgresNodeStore{db: db}
}

func (s *PostgresNodeStore) InsertNode(ctx context.Context, record NodeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_nodes (id, node_type, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID, string(record.NodeType), record.Data, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("insert knowledge node", "postgres", record.ID.String(), err), aerrors.KindDatabase)
	}
	return nil
}

func (s *PostgresNodeStore) GetNode(ctx context.Context, id uuid.UUID) (NodeRecord, error) {
	var record NodeRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT id, node_type, data, created_at, updated_at FROM knowledge_nodes WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return NodeRecord{}, aerrors.WithKind(aerrors.NotFound("knowledge_nodes", id.String()), aerrors.KindNotFound)
	}
	if err != nil {
		return NodeRecord{}, aerrors.WithKind(aerrors.FailedToWithDetails("get knowledge node", "postgres", id.String(), err), aerrors.KindDatabase)
	}
	return record, nil
}

func (s *PostgresNodeStore) UpdateNodeData(ctx context.Context, id uuid.UUID, data json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_nodes SET data = $1, updated_at = now() WHERE id = $2
	`, []byte(data), id)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("update knowledge node", "postgres", id.String(), err), aerrors.KindDatabase)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return aerrors.WithKind(aerrors.FailedTo("read rows affected", err), aerrors.KindDatabase)
	}
	if affected == 0 {
		return aerrors.WithKind(aerrors.NotFound("knowledge_nodes", id.String()), aerrors.KindNotFound)
	}
	return nil
}

func (s *PostgresNodeStore) FindProblemByFingerprint(ctx context.Context, fingerprint string) (*NodeRecord, error) {
	var record NodeRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT id, node_type, data, created_at, updated_at
		FROM knowledge_nodes
		WHERE node_type = 'problem' AND data->>'fingerprint' = $1
		LIMIT 1
	`, fingerprint)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("find problem by fingerprint", "postgres", fingerprint, err), aerrors.KindDatabase)
	}
	return &record, nil
}

func (s *PostgresNodeStore) ListNodesByType(ctx context.Context, nodeType NodeType) ([]NodeRecord, error) {
	var records []NodeRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, node_type, data, created_at, updated_at FROM knowledge_nodes WHERE node_type = $1
	`, string(nodeType))
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("list knowledge nodes", "postgres", string(nodeType), err), aerrors.KindDatabase)
	}
	return records, nil
}

func (s *PostgresNodeStore) InsertEdge(ctx context.Context, edge KnowledgeEdge) error {
	metadata, err := json.Marshal(edge.Metadata)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedTo("serialize edge metadata", err), aerrors.KindSerialization)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_edges (id, from_node, to_node, relationship, weight, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, edge.ID, edge.From, edge.To, string(edge.Relationship), edge.Weight, metadata, edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("insert knowledge edge", "postgres", edge.ID.String(), err), aerrors.KindDatabase)
	}
	return nil
}

func (s *PostgresNodeStore) EdgesInto(ctx context.Context, to uuid.UUID, relationship Relationship) ([]KnowledgeEdge, error) {
	var rows []edgeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, from_node, to_node, relationship, weight, metadata, created_at, updated_at
		FROM knowledge_edges
		WHERE to_node = $1 AND relationship = $2
		ORDER BY weight DESC
	`, to, string(relationship))
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("query knowledge edges", "postgres", to.String(), err), aerrors.KindDatabase)
	}

	edges := make([]KnowledgeEdge, 0, len(rows))
	for _, r := range rows {
		edge := KnowledgeEdge{
			ID:           r.ID,
			From:         r.From,
			To:           r.To,
			Relationship: Relationship(r.Relationship),
			Weight:       r.Weight,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		}
		if len(r.Metadata) > 0 {
			_ = json.Unmarshal(r.Metadata, &edge.Metadata)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
