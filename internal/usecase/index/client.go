// Package index queries the vector store for nearest-neighbour candidates.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
	"github.com/kailas-cloud/faqsearch/internal/resilience"
)

const opQuery = "query"

// Client guards a Backend with input checks, retry and deterministic ordering.
type Client struct {
	backend    Backend
	exec       *resilience.Executor
	dimensions int
	logger     *zap.Logger
}

// NewClient creates an index client. dimensions is the deployment-wide D; 0 disables the check.
func NewClient(backend Backend, exec *resilience.Executor, dimensions int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: backend, exec: exec, dimensions: dimensions, logger: logger}
}

// Query returns at most topK candidates sorted by descending score.
// Ties keep the backend's native order.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]result.Candidate, error) {
	if topK < 1 {
		// Callers validate top_k first; reaching here is a wiring bug, not bad input.
		return nil, fmt.Errorf("vector query: top_k must be >= 1, got %d", topK)
	}
	if c.dimensions > 0 && len(vector) != c.dimensions {
		err := domain.NewUpstreamError(c.backend.Name(), opQuery, domain.ErrVectorDimMismatch,
			fmt.Errorf("query vector has %d dimensions, index expects %d", len(vector), c.dimensions))
		c.logger.Error("Upstream misconfiguration", zap.Error(err))
		return nil, err
	}

	candidates, err := resilience.Do(ctx, c.exec, opQuery, func(ctx context.Context) ([]result.Candidate, error) {
		return c.backend.Query(ctx, vector, topK)
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	if candidates == nil {
		return []result.Candidate{}, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// HealthCheck pings the backend once, without retry.
func (c *Client) HealthCheck(ctx context.Context) error {
	p, ok := c.backend.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("vector store health: %w", err)
	}
	return nil
}

// ErrDimensionUnknown is returned by CheckDimension when the backend cannot report its dimension.
var ErrDimensionUnknown = errors.New("index dimension unknown")

// CheckDimension compares the index's configured dimension with D.
func (c *Client) CheckDimension(ctx context.Context) error {
	r, ok := c.backend.(DimensionReporter)
	if !ok || c.dimensions == 0 {
		return ErrDimensionUnknown
	}

	dim, err := resilience.Do(ctx, c.exec, "dimension", r.Dimension)
	if err != nil {
		return fmt.Errorf("read index dimension: %w", err)
	}
	if dim == 0 {
		return ErrDimensionUnknown
	}
	if dim != c.dimensions {
		return domain.NewUpstreamError(c.backend.Name(), "dimension", domain.ErrVectorDimMismatch,
			fmt.Errorf("index has %d dimensions, embedding.dimensions is %d", dim, c.dimensions))
	}
	return nil
}
