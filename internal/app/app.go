// Package app is the composition root: it turns a config.Config into a ready search pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/config"
	dbRedis "github.com/kailas-cloud/faqsearch/internal/db/redis"
	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/query"
	searchrepo "github.com/kailas-cloud/faqsearch/internal/repository/search"
	"github.com/kailas-cloud/faqsearch/internal/resilience"
	"github.com/kailas-cloud/faqsearch/internal/transport/bedrock"
	openaiEmb "github.com/kailas-cloud/faqsearch/internal/transport/openai"
	"github.com/kailas-cloud/faqsearch/internal/transport/pinecone"
	embeddinguc "github.com/kailas-cloud/faqsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/faqsearch/internal/usecase/health"
	indexuc "github.com/kailas-cloud/faqsearch/internal/usecase/index"
	searchuc "github.com/kailas-cloud/faqsearch/internal/usecase/search"
)

// App holds the wired pipeline. Safe for concurrent use; Close once on shutdown.
type App struct {
	Search    *searchuc.Service
	Health    *healthuc.Service
	Embedding *embeddinguc.Client
	Index     *indexuc.Client

	closers []func()
}

// Option overrides a collaborator, mainly for embedding the pipeline in tests or the SDK.
type Option func(*overrides)

type overrides struct {
	embedder      domain.Embedder
	embedderModel string
	backend       indexuc.Backend
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e domain.Embedder, model string) Option {
	return func(o *overrides) {
		o.embedder = e
		o.embedderModel = model
	}
}

// WithBackend replaces the configured vector store.
func WithBackend(b indexuc.Backend) Option {
	return func(o *overrides) { o.backend = b }
}

// Build connects to the vector store, creates the embedding provider and wires the services.
// A vector store whose dimension differs from embedding.dimensions aborts the build.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{}

	backend := o.backend
	if backend == nil {
		b, closeFn, err := newBackend(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		backend = b
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}

	embedder, model := o.embedder, o.embedderModel
	if embedder == nil {
		e, m, err := newEmbedder(ctx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		embedder, model = e, m
	}
	if cfg.Embedding.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}

	policy := retryPolicy(cfg)
	breaker := resilience.BreakerConfig{
		Enabled:          cfg.Breaker.Enabled,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      time.Duration(cfg.Breaker.OpenTimeoutSec) * time.Second,
	}

	embPolicy := policy
	embPolicy.AttemptTimeout = cfg.EmbeddingTimeout()
	embExec := resilience.NewExecutor(cfg.Embedding.Provider, embPolicy, breaker, logger)

	idxPolicy := policy
	idxPolicy.AttemptTimeout = cfg.VectorStoreTimeout()
	idxExec := resilience.NewExecutor(backend.Name(), idxPolicy, breaker, logger)

	a.Embedding = embeddinguc.NewClient(embedder, embExec, model, cfg.Embedding.Dimensions, logger)
	a.Index = indexuc.NewClient(backend, idxExec, cfg.Embedding.Dimensions, logger)

	if err := a.Index.CheckDimension(ctx); err != nil {
		if !errors.Is(err, indexuc.ErrDimensionUnknown) {
			a.Close()
			return nil, fmt.Errorf("startup dimension check: %w", err)
		}
		logger.Warn("Vector store did not report its dimension, skipping startup check",
			zap.String("backend", backend.Name()),
			zap.Error(err),
		)
	}

	limits := query.Limits{
		DefaultTopK:    cfg.Search.DefaultTopK,
		MaxTopK:        cfg.Search.MaxTopK,
		MaxQueryLength: cfg.Search.MaxQueryLength,
	}
	presentation := searchuc.Presentation{
		ScorePrecision:  cfg.Search.ScorePrecision,
		MaxContentChars: cfg.Search.MaxContentChars,
		DefaultSource:   cfg.Search.DefaultSource,
	}
	a.Search = searchuc.New(a.Embedding, a.Index, limits, presentation)
	a.Health = healthuc.New(indexPinger{a.Index}, a.Embedding)

	logger.Info("Search pipeline ready",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("model", model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("vector_store", backend.Name()),
	)
	return a, nil
}

// Close releases connections held by the pipeline.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// indexPinger adapts the index client to health.StorePinger.
type indexPinger struct {
	index *indexuc.Client
}

func (p indexPinger) Ping(ctx context.Context) error { return p.index.HealthCheck(ctx) }

func retryPolicy(cfg *config.Config) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMs) * time.Millisecond,
		Multiplier:      cfg.Retry.Multiplier,
	}
}

func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (indexuc.Backend, func(), error) {
	vs := cfg.VectorStore
	switch vs.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:       vs.Addrs,
			Username:    vs.Username,
			Password:    vs.Password,
			DialTimeout: cfg.VectorStoreTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create %s store: %w", vs.Driver, err)
		}
		if err := store.WaitForReady(ctx, time.Duration(vs.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("%s not ready: %w", vs.Driver, err)
		}
		logger.Info("Connected to vector store",
			zap.String("driver", vs.Driver),
			zap.Strings("addrs", vs.Addrs),
			zap.String("index", vs.Index),
		)
		repo := searchrepo.New(store, searchrepo.Config{
			Provider:             vs.Driver,
			Index:                vs.Index,
			VectorField:          vs.VectorField,
			SourceField:          vs.SourceField,
			ContentField:         vs.ContentField,
			FallbackContentField: vs.FallbackContentField,
			Metric:               vs.Metric,
		})
		return repo, store.Close, nil

	case config.DriverPinecone:
		client, err := pinecone.New(pinecone.Config{
			Host:                 vs.Host,
			APIKey:               vs.APIKey,
			Namespace:            vs.Namespace,
			SourceField:          vs.SourceField,
			ContentField:         vs.ContentField,
			FallbackContentField: vs.FallbackContentField,
			Timeout:              cfg.VectorStoreTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create pinecone client: %w", err)
		}
		return client, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown vector store driver %q", vs.Driver)
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Embedder, string, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case config.ProviderOpenAI:
		// Only the text-embedding-3 family accepts a requested output dimension.
		dims := 0
		if strings.HasPrefix(ec.Model, "text-embedding-3") {
			dims = ec.Dimensions
		}
		e := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: dims,
			Timeout:    cfg.EmbeddingTimeout(),
			Logger:     logger,
		})
		return e, e.Model(), nil

	case config.ProviderBedrock:
		e, err := bedrock.NewEmbedder(ctx, &bedrock.Config{
			Region:          ec.Region,
			AccessKeyID:     ec.AccessKeyID,
			SecretAccessKey: ec.SecretAccessKey,
			Model:           ec.Model,
			InputType:       ec.InputType,
			Timeout:         cfg.EmbeddingTimeout(),
		})
		if err != nil {
			return nil, "", fmt.Errorf("create bedrock embedder: %w", err)
		}
		return e, e.Model(), nil

	default:
		return nil, "", fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}
