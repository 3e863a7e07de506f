package vector

import (
	"context"
	"hash/fnv"
)

// Embedder turns free text into an Embedding. Production deployments
// wire this to the AI provider capability client's embedding endpoint
// (pkg/ai/llm); HashEmbedder is the deterministic stand-in used by
// tests and by any component that only needs cosine-comparable
// vectors, grounded on the original embeddings.rs MockEmbeddingGenerator.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

// HashEmbedder derives a fixed-dimension embedding from the FNV-1a
// hash of the input text, scaled into [0, 1). Semantically meaningless
// but deterministic and dimension-stable: identical strings get
// identical vectors, while near-duplicate strings hash to unrelated
// ones. That is enough for tests and offline development.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder constructs a HashEmbedder with the given dimension
// count; dimensions <= 0 defaults to 1536 (the OpenAI-standard width
// the original mock generator used).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &HashEmbedder{Dimensions: dimensions}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) (Embedding, error) {
	base := fnv.New64a()
	_, _ = base.Write([]byte(text))
	seed := base.Sum64()

	embedding := make(Embedding, h.Dimensions)
	for i := 0; i < h.Dimensions; i++ {
		mixed := seed*uint64(i+1) + uint64(i)
		embedding[i] = float32(mixed%1000) / 1000.0
	}
	return embedding, nil
}
