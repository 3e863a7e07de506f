package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// PostgresStore indexes embeddings in a pgvector-enabled column,
// grounded on the original embeddings.rs EmbeddingStore (which issued
// the equivalent `embedding <=> $1` cosine-distance queries through
// sqlx::PgPool). Embeddings are encoded as the pgvector text literal
// "[v1,v2,...]" so no pgvector client-side type is required beyond
// plain pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx pool. The target table is
// expected to be `knowledge_nodes(id uuid, node_type text, embedding
// vector, stored_at timestamptz)` with the pgvector extension enabled.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func encodeEmbedding(e Embedding) string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (s *PostgresStore) Upsert(ctx context.Context, record Record) error {
	if record.StoredAt.IsZero() {
		record.StoredAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO knowledge_nodes (id, node_type, embedding, stored_at)
		VALUES ($1, $2, $3::vector, $4)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, node_type = EXCLUDED.node_type
	`, record.ID, record.NodeType, encodeEmbedding(record.Embedding), record.StoredAt)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("upsert embedding", "postgres", record.ID.String(), err), aerrors.KindDatabase)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE knowledge_nodes SET embedding = NULL WHERE id = $1`, id)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("delete embedding", "postgres", id.String(), err), aerrors.KindDatabase)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	var (
		record       Record
		embeddingStr string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, node_type, embedding::text, stored_at FROM knowledge_nodes WHERE id = $1 AND embedding IS NOT NULL
	`, id).Scan(&record.ID, &record.NodeType, &embeddingStr, &record.StoredAt)
	if err == pgx.ErrNoRows {
		return Record{}, aerrors.WithKind(aerrors.NotFound("vector_store", id.String()), aerrors.KindNotFound)
	}
	if err != nil {
		return Record{}, aerrors.WithKind(aerrors.FailedToWithDetails("get embedding", "postgres", id.String(), err), aerrors.KindDatabase)
	}
	record.Embedding = decodeEmbedding(embeddingStr)
	return record, nil
}

func decodeEmbedding(s string) Embedding {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(Embedding, len(parts))
	for i, p := range parts {
		v, _ := strconv.ParseFloat(strings.TrimSpace(p), 32)
		out[i] = float32(v)
	}
	return out
}

func (s *PostgresStore) FindNearest(ctx context.Context, query Embedding, nodeType string, limit int, threshold float64) ([]ScoredRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	literal := encodeEmbedding(query)

	sqlQuery := `
		SELECT id, node_type, embedding::text, stored_at, 1 - (embedding <=> $1::vector) AS similarity
		FROM knowledge_nodes
		WHERE embedding IS NOT NULL
	`
	args := []interface{}{literal}
	if nodeType != "" {
		sqlQuery += fmt.Sprintf(" AND node_type = $%d", len(args)+1)
		args = append(args, nodeType)
	}
	sqlQuery += fmt.Sprintf(" AND 1 - (embedding <=> $1::vector) > $%d", len(args)+1)
	args = append(args, threshold)
	sqlQuery += " ORDER BY embedding <=> $1::vector LIMIT " + strconv.Itoa(limit)

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedTo("find nearest embeddings", err), aerrors.KindDatabase)
	}
	defer rows.Close()

	var results []ScoredRecord
	rank := 0
	for rows.Next() {
		var (
			rec          Record
			embeddingStr string
			similarity   float64
		)
		if err := rows.Scan(&rec.ID, &rec.NodeType, &embeddingStr, &rec.StoredAt, &similarity); err != nil {
			return nil, aerrors.WithKind(aerrors.FailedTo("scan embedding row", err), aerrors.KindDatabase)
		}
		rec.Embedding = decodeEmbedding(embeddingStr)
		rank++
		results = append(results, ScoredRecord{Record: rec, Similarity: similarity, Rank: rank})
	}
	return results, rows.Err()
}

func (s *PostgresStore) Count() int {
	var count int
	if err := s.pool.QueryRow(context.Background(), `
		SELECT count(*) FROM knowledge_nodes WHERE embedding IS NOT NULL
	`).Scan(&count); err != nil {
		return 0
	}
	return count
}
