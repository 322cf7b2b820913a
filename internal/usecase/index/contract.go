package index

import (
	"context"

	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

// Backend is a nearest-neighbour store. Errors should be classified *domain.UpstreamError;
// candidates may come back in any order.
type Backend interface {
	Name() string
	Query(ctx context.Context, vector []float32, topK int) ([]result.Candidate, error)
}

// Pinger is implemented by backends that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DimensionReporter is implemented by backends that can report the index dimension.
type DimensionReporter interface {
	Dimension(ctx context.Context) (int, error)
}
