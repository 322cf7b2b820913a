package faqsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/app"
	"github.com/kailas-cloud/faqsearch/internal/config"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

const customProvider = "custom"

// searchUseCase is the internal interface for the search pipeline.
type searchUseCase interface {
	Search(ctx context.Context, text string, topK *int) ([]result.Result, error)
}

// SearchResult is a single search hit.
type SearchResult struct {
	Score   float64
	Source  string
	Content string
}

// Client is the faqsearch SDK entry point. Safe for concurrent use.
type Client struct {
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
	closeFn   func()
}

// New creates a Client, connects to the vector store and checks that the
// index dimension matches WithDimensions.
// The provided context bounds the connection and readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}
	if err := cc.prepare(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	var appOpts []app.Option
	if cc.embedder != nil {
		appOpts = append(appOpts, app.WithEmbedder(&embedderAdapter{inner: cc.embedder}, customProvider))
	}
	if cc.backend != nil {
		appOpts = append(appOpts, app.WithBackend(cc.backend))
	}

	a, err := app.Build(ctx, &cc.cfg, zap.NewNop(), appOpts...)
	if err != nil {
		return nil, fmt.Errorf("faqsearch: %w", err)
	}

	return &Client{
		searchSvc: a.Search,
		healthSvc: a.Health,
		obs:       obs,
		closeFn:   a.Close,
	}, nil
}

// prepare applies defaults and checks the options that have no usable default.
func (cc *clientConfig) prepare() error {
	if cc.cfg.VectorStore.Driver == "" && cc.backend == nil {
		return errors.New("faqsearch: vector store required (use WithValkey, WithRedis or WithPinecone)")
	}
	if cc.embedder != nil {
		cc.cfg.Embedding.Provider = customProvider
	} else if cc.cfg.Embedding.Provider == "" {
		return errors.New("faqsearch: embedder required (use WithOpenAI, WithBedrock or WithEmbedder)")
	}
	if cc.cfg.Embedding.Dimensions <= 0 {
		return errors.New("faqsearch: vector dimension required (use WithDimensions)")
	}
	if cc.cfg.Search.ScorePrecision == 0 {
		cc.cfg.Search.ScorePrecision = 4
	}
	cc.cfg.ApplyDefaults()

	if cc.backend != nil {
		return nil
	}
	switch cc.cfg.VectorStore.Driver {
	case config.DriverRedis, config.DriverValkey:
		if cc.cfg.VectorStore.Index == "" {
			return errors.New("faqsearch: index name required (use WithIndex)")
		}
	case config.DriverPinecone:
		if cc.cfg.VectorStore.Host == "" || cc.cfg.VectorStore.APIKey == "" {
			return errors.New("faqsearch: pinecone host and api key required")
		}
	}
	if cc.cfg.Embedding.Provider == config.ProviderOpenAI && cc.cfg.Embedding.APIKey == "" {
		return errors.New("faqsearch: openai api key required")
	}
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Search returns up to topK hits for query, best first. Omitting topK uses
// the default (3). An invalid query or topK returns an error matching ErrValidation.
func (c *Client) Search(ctx context.Context, query string, topK ...int) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var k *int
	if len(topK) > 0 {
		k = &topK[0]
	}

	hits, err := c.searchSvc.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results = make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{Score: h.Score, Source: h.Source, Content: h.Content}
	}
	c.obs.observeResults(len(results))
	return results, nil
}
