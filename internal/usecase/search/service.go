// Package search orchestrates one retrieval: validate, embed, query the index, assemble.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/query"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
	"github.com/kailas-cloud/faqsearch/internal/logger"
	"github.com/kailas-cloud/faqsearch/internal/metrics"
	"github.com/kailas-cloud/faqsearch/internal/resilience"
)

// Service runs the retrieval pipeline. It holds no per-request state.
type Service struct {
	embed        Embedder
	index        VectorIndex
	limits       query.Limits
	presentation Presentation
}

// New creates a search service.
func New(embed Embedder, index VectorIndex, limits query.Limits, presentation Presentation) *Service {
	return &Service{embed: embed, index: index, limits: limits, presentation: presentation}
}

// Search validates text and topK (nil means default), then retrieves.
func (s *Service) Search(ctx context.Context, text string, topK *int) ([]result.Result, error) {
	q, err := s.limits.New(text, topK)
	if err != nil {
		metrics.SearchOutcomesTotal.WithLabelValues(resilience.Outcome(err)).Inc()
		return nil, fmt.Errorf("validate: %w", err)
	}
	return s.Run(ctx, q)
}

// Run retrieves results for an already validated query.
// Either every step succeeds and the full list is returned, or nothing is.
func (s *Service) Run(ctx context.Context, q query.Query) ([]result.Result, error) {
	ctx = logger.WithFields(ctx, zap.Int("top_k", q.TopK()))
	log := logger.FromContext(ctx)
	start := time.Now()

	results, err := s.retrieve(ctx, q)
	if err != nil {
		metrics.SearchOutcomesTotal.WithLabelValues(resilience.Outcome(err)).Inc()
		if ue, ok := domain.AsUpstream(err); ok && !ue.Transient() {
			log.Error("Search failed on upstream misconfiguration",
				zap.String("provider", ue.Provider),
				zap.String("op", ue.Op),
				zap.Error(err),
			)
		}
		return nil, err
	}

	metrics.SearchOutcomesTotal.WithLabelValues("success").Inc()
	metrics.SearchResultsCount.Observe(float64(len(results)))
	log.Debug("Search completed",
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

func (s *Service) retrieve(ctx context.Context, q query.Query) ([]result.Result, error) {
	vector, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	candidates, err := s.index.Query(ctx, vector, q.TopK())
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	return s.presentation.Assemble(candidates, q.TopK()), nil
}
