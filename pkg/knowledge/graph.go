package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/shared/logging"
	"github.com/ai-ops-core/core/pkg/storage/vector"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// PatternRegistrar indexes a newly added Pattern node for event-routing
// use (spec.md §4.E add_pattern: "register with the in-memory
// PatternMatcher that indexes matching rules for event routing use").
// Implemented by pkg/intelligence/patterns; injected here to avoid a
// dependency cycle.
type PatternRegistrar interface {
	RegisterPattern(ctx context.Context, pattern Pattern) error
}

// Graph is the Knowledge Graph: a relational NodeStore for canonical
// node/edge data plus a vector.Store for nearest-neighbour similarity
// search over problem and solution embeddings (spec.md §4.E).
type Graph struct {
	nodes     NodeStore
	vectors   vector.Store
	embedder  vector.Embedder
	registrar PatternRegistrar
	logger    *logrus.Logger
}

// NewGraph constructs a Graph. registrar may be nil if no pattern
// library is wired yet.
func NewGraph(nodes NodeStore, vectors vector.Store, embedder vector.Embedder, registrar PatternRegistrar, logger *logrus.Logger) *Graph {
	return &Graph{nodes: nodes, vectors: vectors, embedder: embedder, registrar: registrar, logger: logger}
}

// fingerprint computes a stable content hash over a Problem's category
// and error patterns, the dedup key for Invariant 4.
func fingerprint(category string, errorPatterns []string) string {
	h := sha256.New()
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(errorPatterns, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// AddProblem inserts p, or, if a problem with the same fingerprint
// already exists, increments its occurrence count and refreshes
// last_seen (spec.md §4.E, Invariant 4, scenario S4).
func (g *Graph) AddProblem(ctx context.Context, p Problem) (uuid.UUID, error) {
	fp := fingerprint(p.Category, p.ErrorPatterns)
	p.Fingerprint = fp

	existing, err := g.nodes.FindProblemByFingerprint(ctx, fp)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		var stored Problem
		if err := json.Unmarshal(existing.Data, &stored); err != nil {
			return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("decode existing problem", err), aerrors.KindSerialization)
		}
		stored.OccurrenceCount++
		stored.LastSeen = time.Now().UTC()

		data, err := json.Marshal(stored)
		if err != nil {
			return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("encode problem", err), aerrors.KindSerialization)
		}
		if err := g.nodes.UpdateNodeData(ctx, existing.ID, data); err != nil {
			return uuid.Nil, err
		}
		return existing.ID, nil
	}

	id := uuid.New()
	now := time.Now().UTC()
	p.ID = id
	if p.FirstSeen.IsZero() {
		p.FirstSeen = now
	}
	p.LastSeen = now
	if p.OccurrenceCount == 0 {
		p.OccurrenceCount = 1
	}

	data, err := json.Marshal(p)
	if err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("encode problem", err), aerrors.KindSerialization)
	}
	if err := g.nodes.InsertNode(ctx, NodeRecord{ID: id, NodeType: NodeTypeProblem, Data: data, CreatedAt: now, UpdatedAt: now}); err != nil {
		return uuid.Nil, err
	}

	embedding, err := g.embedder.Embed(ctx, p.Description)
	if err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("embed problem description", err), aerrors.KindKnowledgeGraph)
	}
	if err := g.vectors.Upsert(ctx, vector.Record{ID: id, NodeType: string(NodeTypeProblem), Embedding: embedding, StoredAt: now}); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// AddSolution inserts s, embeds its description, and links it to
// problemID via a `solves` edge of weight 1.0 (spec.md §4.E).
func (g *Graph) AddSolution(ctx context.Context, s Solution, problemID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()
	s.ID = id
	s.RecomputeSuccessRate()

	data, err := json.Marshal(s)
	if err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("encode solution", err), aerrors.KindSerialization)
	}
	if err := g.nodes.InsertNode(ctx, NodeRecord{ID: id, NodeType: NodeTypeSolution, Data: data, CreatedAt: now, UpdatedAt: now}); err != nil {
		return uuid.Nil, err
	}

	embedding, err := g.embedder.Embed(ctx, s.Description)
	if err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("embed solution description", err), aerrors.KindKnowledgeGraph)
	}
	if err := g.vectors.Upsert(ctx, vector.Record{ID: id, NodeType: string(NodeTypeSolution), Embedding: embedding, StoredAt: now}); err != nil {
		return uuid.Nil, err
	}

	if _, err := g.AddEdge(ctx, id, problemID, RelationshipSolves, 1.0); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// AddPattern inserts p and registers it with the pattern registrar
// (spec.md §4.E).
func (g *Graph) AddPattern(ctx context.Context, p Pattern) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()
	p.ID = id
	if p.LastUpdated.IsZero() {
		p.LastUpdated = now
	}

	data, err := json.Marshal(p)
	if err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.FailedTo("encode pattern", err), aerrors.KindSerialization)
	}
	if err := g.nodes.InsertNode(ctx, NodeRecord{ID: id, NodeType: NodeTypePattern, Data: data, CreatedAt: now, UpdatedAt: now}); err != nil {
		return uuid.Nil, err
	}

	if g.registrar != nil {
		if err := g.registrar.RegisterPattern(ctx, p); err != nil && g.logger != nil {
			g.logger.WithFields(logging.NewFields().Component("knowledge_graph").Operation("add_pattern").Error(err).Logrus()).
				Warn("pattern registrar rejected pattern")
		}
	}

	return id, nil
}

// AddEdge inserts a directed edge between two existing nodes (spec.md
// §4.E; Invariant: edge endpoints must refer to existing nodes).
func (g *Graph) AddEdge(ctx context.Context, from, to uuid.UUID, relationship Relationship, weight float64) (uuid.UUID, error) {
	if _, err := g.nodes.GetNode(ctx, from); err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.InvalidState("knowledge_graph", "edge source node does not exist"), aerrors.KindInvalidState)
	}
	if _, err := g.nodes.GetNode(ctx, to); err != nil {
		return uuid.Nil, aerrors.WithKind(aerrors.InvalidState("knowledge_graph", "edge target node does not exist"), aerrors.KindInvalidState)
	}

	id := uuid.New()
	now := time.Now().UTC()
	edge := KnowledgeEdge{
		ID:           id,
		From:         from,
		To:           to,
		Relationship: relationship,
		Weight:       weight,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.nodes.InsertEdge(ctx, edge); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// FindSolutions embeds problemDescription, retrieves the 10 nearest
// problems by cosine similarity, fetches their solving solutions, and
// ranks candidates by problem_similarity × edge_weight descending
// (spec.md §4.E, scenario S5).
func (g *Graph) FindSolutions(ctx context.Context, problemDescription string) ([]SolutionCandidate, error) {
	queryEmbedding, err := g.embedder.Embed(ctx, problemDescription)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedTo("embed problem query", err), aerrors.KindKnowledgeGraph)
	}

	similarProblems, err := g.vectors.FindNearest(ctx, queryEmbedding, string(NodeTypeProblem), 10, 0.0)
	if err != nil {
		return nil, err
	}

	var candidates []SolutionCandidate
	for _, sp := range similarProblems {
		edges, err := g.nodes.EdgesInto(ctx, sp.ID, RelationshipSolves)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			solutionRecord, err := g.nodes.GetNode(ctx, edge.From)
			if err != nil {
				continue
			}
			var solution Solution
			if err := json.Unmarshal(solutionRecord.Data, &solution); err != nil {
				continue
			}
			candidates = append(candidates, SolutionCandidate{
				Solution:         solution,
				Confidence:       sp.Similarity * edge.Weight,
				SimilarProblemID: sp.ID,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Confidence > candidates[j].Confidence })
	return candidates, nil
}

// FindSimilarPatterns embeds text, re-embeds every stored pattern's
// description at query time (pattern embeddings are not persisted;
// the node set is expected to stay small relative to problems/
// solutions), and returns the k most similar (spec.md §4.E).
func (g *Graph) FindSimilarPatterns(ctx context.Context, text string, k int) ([]Pattern, error) {
	queryEmbedding, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedTo("embed pattern query", err), aerrors.KindKnowledgeGraph)
	}

	records, err := g.nodes.ListNodesByType(ctx, NodeTypePattern)
	if err != nil {
		return nil, err
	}

	type scored struct {
		pattern    Pattern
		similarity float64
	}
	var results []scored
	for _, record := range records {
		var p Pattern
		if err := json.Unmarshal(record.Data, &p); err != nil {
			continue
		}
		embedding, err := g.embedder.Embed(ctx, p.Description)
		if err != nil {
			continue
		}
		sim, err := vector.CosineSimilarity(queryEmbedding, embedding)
		if err != nil {
			continue
		}
		results = append(results, scored{pattern: p, similarity: sim})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].similarity > results[j].similarity })
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	patterns := make([]Pattern, len(results))
	for i, r := range results {
		patterns[i] = r.pattern
	}
	return patterns, nil
}

// FindSuccessfulSolutions returns solutions attached to problems of the
// given category, ordered by success_rate descending (spec.md §4.E).
func (g *Graph) FindSuccessfulSolutions(ctx context.Context, category string) ([]Solution, error) {
	problems, err := g.nodes.ListNodesByType(ctx, NodeTypeProblem)
	if err != nil {
		return nil, err
	}

	var solutions []Solution
	for _, record := range problems {
		var p Problem
		if err := json.Unmarshal(record.Data, &p); err != nil {
			continue
		}
		if p.Category != category {
			continue
		}

		edges, err := g.nodes.EdgesInto(ctx, p.ID, RelationshipSolves)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			solutionRecord, err := g.nodes.GetNode(ctx, edge.From)
			if err != nil {
				continue
			}
			var s Solution
			if err := json.Unmarshal(solutionRecord.Data, &s); err != nil {
				continue
			}
			solutions = append(solutions, s)
		}
	}

	sort.SliceStable(solutions, func(i, j int) bool { return solutions[i].SuccessRate > solutions[j].SuccessRate })
	return solutions, nil
}

// UpdateSolutionOutcome is the sole path through which a Solution's
// success_rate changes (spec.md §4.E, Invariant 3).
func (g *Graph) UpdateSolutionOutcome(ctx context.Context, solutionID uuid.UUID, success bool) error {
	record, err := g.nodes.GetNode(ctx, solutionID)
	if err != nil {
		return err
	}

	var solution Solution
	if err := json.Unmarshal(record.Data, &solution); err != nil {
		return aerrors.WithKind(aerrors.FailedTo("decode solution", err), aerrors.KindSerialization)
	}

	solution.AttemptCount++
	if success {
		solution.SuccessCount++
	}
	solution.RecomputeSuccessRate()

	data, err := json.Marshal(solution)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedTo("encode solution", err), aerrors.KindSerialization)
	}
	return g.nodes.UpdateNodeData(ctx, solutionID, data)
}
