package search

import (
	"context"

	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

// Embedder vectorizes query text into a vector of the deployment's dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns nearest-neighbour candidates in descending score order.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]result.Candidate, error)
}
