package knowledge_test

import (
	"context"
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/storage/vector"
)

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func TestKnowledgeGraph(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Knowledge Graph Suite")
}

// fixedEmbedder maps specific description strings to pre-set vectors,
// so tests can control similarity without depending on hash collisions.
type fixedEmbedder struct {
	byText map[string]vector.Embedding
	dflt   vector.Embedding
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) (vector.Embedding, error) {
	if e, ok := f.byText[text]; ok {
		return e, nil
	}
	return f.dflt, nil
}

var _ = Describe("Knowledge Graph", func() {
	var (
		nodes *knowledge.MemoryNodeStore
		vecs  *vector.MemoryStore
		graph *knowledge.Graph
		ctx   context.Context
	)

	BeforeEach(func() {
		nodes = knowledge.NewMemoryNodeStore()
		vecs = vector.NewMemoryStore()
		ctx = context.Background()
	})

	Describe("AddProblem", func() {
		BeforeEach(func() {
			graph = knowledge.NewGraph(nodes, vecs, vector.NewHashEmbedder(32), nil, nil)
		})

		It("dedups identical category/error_patterns into one node with occurrence_count 2 (S4)", func() {
			first := knowledge.Problem{
				Category:      "database",
				Description:   "connection pool exhausted",
				ErrorPatterns: []string{"too many connections"},
				Severity:      knowledge.SeverityHigh,
			}
			second := first
			second.Description = "a different description entirely"

			id1, err := graph.AddProblem(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			id2, err := graph.AddProblem(ctx, second)
			Expect(err).NotTo(HaveOccurred())

			Expect(id2).To(Equal(id1))

			record, err := nodes.GetNode(ctx, id1)
			Expect(err).NotTo(HaveOccurred())

			var stored knowledge.Problem
			Expect(jsonUnmarshal(record.Data, &stored)).To(Succeed())
			Expect(stored.OccurrenceCount).To(Equal(uint32(2)))
		})

		It("assigns distinct fingerprints to distinct category/error_patterns", func() {
			a := knowledge.Problem{Category: "database", ErrorPatterns: []string{"timeout"}, Description: "db timeout"}
			b := knowledge.Problem{Category: "network", ErrorPatterns: []string{"timeout"}, Description: "net timeout"}

			idA, err := graph.AddProblem(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			idB, err := graph.AddProblem(ctx, b)
			Expect(err).NotTo(HaveOccurred())

			Expect(idA).NotTo(Equal(idB))
		})
	})

	Describe("AddSolution", func() {
		BeforeEach(func() {
			graph = knowledge.NewGraph(nodes, vecs, vector.NewHashEmbedder(32), nil, nil)
		})

		It("links the solution to its problem via a solves edge", func() {
			problemID, err := graph.AddProblem(ctx, knowledge.Problem{
				Category: "database", ErrorPatterns: []string{"timeout"}, Description: "db timeout",
			})
			Expect(err).NotTo(HaveOccurred())

			solutionID, err := graph.AddSolution(ctx, knowledge.Solution{Description: "increase pool size"}, problemID)
			Expect(err).NotTo(HaveOccurred())

			edges, err := nodes.EdgesInto(ctx, problemID, knowledge.RelationshipSolves)
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(1))
			Expect(edges[0].From).To(Equal(solutionID))
			Expect(edges[0].Weight).To(Equal(1.0))
		})
	})

	Describe("AddEdge", func() {
		BeforeEach(func() {
			graph = knowledge.NewGraph(nodes, vecs, vector.NewHashEmbedder(32), nil, nil)
		})

		It("rejects an edge whose endpoints do not exist", func() {
			_, err := graph.AddEdge(ctx, uuid.New(), uuid.New(), knowledge.RelationshipRelatedTo, 1.0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FindSolutions", func() {
		It("ranks candidates by problem_similarity × edge_weight (S5)", func() {
			embedder := &fixedEmbedder{byText: map[string]vector.Embedding{
				"query":             {1.0, 0.0},
				"problem one":       {0.9, 0.436}, // cosine(query, p1) ~= 0.9
				"problem two":       {0.5, 0.866}, // cosine(query, p2) ~= 0.5
				"solution for one":  {1, 0},
				"solution for two":  {1, 0},
			}}
			graph = knowledge.NewGraph(nodes, vecs, embedder, nil, nil)

			p1, err := graph.AddProblem(ctx, knowledge.Problem{Category: "c1", ErrorPatterns: []string{"e1"}, Description: "problem one"})
			Expect(err).NotTo(HaveOccurred())
			p2, err := graph.AddProblem(ctx, knowledge.Problem{Category: "c2", ErrorPatterns: []string{"e2"}, Description: "problem two"})
			Expect(err).NotTo(HaveOccurred())

			_, err = graph.AddSolution(ctx, knowledge.Solution{Description: "solution for one"}, p1)
			Expect(err).NotTo(HaveOccurred())
			_, err = graph.AddSolution(ctx, knowledge.Solution{Description: "solution for two"}, p2)
			Expect(err).NotTo(HaveOccurred())

			candidates, err := graph.FindSolutions(ctx, "query")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].SimilarProblemID).To(Equal(p1))
			Expect(candidates[0].Confidence).To(BeNumerically(">", candidates[1].Confidence))
			Expect(candidates[1].SimilarProblemID).To(Equal(p2))
		})
	})

	Describe("UpdateSolutionOutcome", func() {
		BeforeEach(func() {
			graph = knowledge.NewGraph(nodes, vecs, vector.NewHashEmbedder(32), nil, nil)
		})

		It("recomputes success_rate as success_count / attempt_count", func() {
			problemID, err := graph.AddProblem(ctx, knowledge.Problem{
				Category: "database", ErrorPatterns: []string{"timeout"}, Description: "db timeout",
			})
			Expect(err).NotTo(HaveOccurred())
			solutionID, err := graph.AddSolution(ctx, knowledge.Solution{Description: "retry with backoff"}, problemID)
			Expect(err).NotTo(HaveOccurred())

			Expect(graph.UpdateSolutionOutcome(ctx, solutionID, true)).To(Succeed())
			Expect(graph.UpdateSolutionOutcome(ctx, solutionID, false)).To(Succeed())
			Expect(graph.UpdateSolutionOutcome(ctx, solutionID, true)).To(Succeed())

			record, err := nodes.GetNode(ctx, solutionID)
			Expect(err).NotTo(HaveOccurred())
			var s knowledge.Solution
			Expect(jsonUnmarshal(record.Data, &s)).To(Succeed())

			Expect(s.AttemptCount).To(Equal(uint32(3)))
			Expect(s.SuccessCount).To(Equal(uint32(2)))
			Expect(s.SuccessRate).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})
	})
})
