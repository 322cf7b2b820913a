// Package embedding turns query text into a fixed-dimension vector through a guarded provider call.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/metrics"
	"github.com/kailas-cloud/faqsearch/internal/resilience"
)

const opEmbed = "embed"

// Client wraps a provider Embedder with retry, a dimension check and usage metrics.
// It keeps no state between calls.
type Client struct {
	inner      domain.Embedder
	exec       *resilience.Executor
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewClient creates an embedding client. dimensions is the deployment-wide D; 0 disables the check.
func NewClient(
	inner domain.Embedder, exec *resilience.Executor, model string,
	dimensions int, logger *zap.Logger,
) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		inner:      inner,
		exec:       exec,
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Dimensions returns the expected vector length.
func (c *Client) Dimensions() int { return c.dimensions }

// Embed returns the query vector. A vector of the wrong length fails fatally after one provider call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	provider := c.exec.Provider()

	result, err := resilience.Do(ctx, c.exec, opEmbed, func(ctx context.Context) (domain.EmbeddingResult, error) {
		res, err := c.inner.Embed(ctx, text)
		if err != nil {
			return domain.EmbeddingResult{}, err //nolint:wrapcheck // classified by the executor
		}
		if c.dimensions > 0 && len(res.Embedding) != c.dimensions {
			return domain.EmbeddingResult{}, domain.NewUpstreamError(provider, opEmbed, domain.ErrVectorDimMismatch,
				fmt.Errorf("provider returned %d dimensions, index expects %d", len(res.Embedding), c.dimensions))
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)
	if result.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(result.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, c.model, "total").Add(float64(result.TotalTokens))
	}

	c.logger.Debug("Embedding request completed",
		zap.String("provider", provider),
		zap.String("model", c.model),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result.Embedding, nil
}

// HealthCheck probes the provider once, without retry.
func (c *Client) HealthCheck(ctx context.Context) error {
	hc, ok := c.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health: %w", err)
	}
	return nil
}
