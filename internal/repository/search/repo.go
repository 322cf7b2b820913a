// Package search adapts an FT.SEARCH vector index (Redis Stack, Valkey Search) to the
// nearest-neighbour backend consumed by the index use case.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/faqsearch/internal/db"
	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

const opQuery = "query"

// Distance metrics supported by FT vector fields.
const (
	MetricCosine = "COSINE"
	MetricIP     = "IP"
	MetricL2     = "L2"
)

// Default hash field names written by the FAQ ingestion job.
const (
	DefaultVectorField          = "vector"
	DefaultSourceField          = "source"
	DefaultContentField         = "content"
	DefaultFallbackContentField = "content_preview"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	IndexInfo(ctx context.Context, index, vectorField string) (*db.IndexInfo, error)
	Ping(ctx context.Context) error
}

// Config names the index and the hash fields holding each candidate attribute.
type Config struct {
	// Provider labels errors and metrics ("redis", "valkey").
	Provider     string
	Index        string
	VectorField  string
	SourceField  string
	ContentField string
	// FallbackContentField is read when ContentField is absent.
	FallbackContentField string
	// Metric selects the distance-to-similarity conversion.
	Metric string
}

// Repo implements usecase/index.Backend over FT.SEARCH KNN.
type Repo struct {
	store store
	cfg   Config
}

// New creates a search repository.
func New(s store, cfg Config) *Repo {
	if cfg.Provider == "" {
		cfg.Provider = "redis"
	}
	if cfg.VectorField == "" {
		cfg.VectorField = DefaultVectorField
	}
	if cfg.SourceField == "" {
		cfg.SourceField = DefaultSourceField
	}
	if cfg.ContentField == "" {
		cfg.ContentField = DefaultContentField
	}
	if cfg.FallbackContentField == "" {
		cfg.FallbackContentField = DefaultFallbackContentField
	}
	cfg.Metric = strings.ToUpper(cfg.Metric)
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	return &Repo{store: s, cfg: cfg}
}

// Name returns the provider label.
func (r *Repo) Name() string { return r.cfg.Provider }

// Query returns up to topK candidates in the engine's order, scored as similarity.
func (r *Repo) Query(ctx context.Context, vector []float32, topK int) ([]result.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:   r.cfg.Index,
		VectorField: r.cfg.VectorField,
		Vector:      vector,
		K:           topK,
		ReturnFields: []string{
			r.cfg.SourceField, r.cfg.ContentField, r.cfg.FallbackContentField,
		},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, r.classify(opQuery, err)
	}

	return r.toCandidates(sr), nil
}

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return r.classify("ping", err)
	}
	return nil
}

// Dimension reports the configured dimension of the index's vector field.
func (r *Repo) Dimension(ctx context.Context) (int, error) {
	info, err := r.store.IndexInfo(ctx, r.cfg.Index, r.cfg.VectorField)
	if err != nil {
		return 0, r.classify("index_info", err)
	}
	return info.Dimension, nil
}

func (r *Repo) toCandidates(sr *db.SearchResult) []result.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return []result.Candidate{}
	}

	out := make([]result.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		content, ok := entry.Fields[r.cfg.ContentField]
		if !ok {
			content = entry.Fields[r.cfg.FallbackContentField]
		}
		out = append(out, result.Candidate{
			ID:      entry.Key,
			Score:   r.similarity(entry.Distance),
			Source:  entry.Fields[r.cfg.SourceField],
			Content: content,
		})
	}
	return out
}

// similarity converts an engine distance to a higher-is-better score.
// COSINE and IP distances are 1-sim; L2 has no upper bound so it is negated.
func (r *Repo) similarity(distance float64) float64 {
	if r.cfg.Metric == MetricL2 {
		return -distance
	}
	return 1 - distance
}

// classify maps store failures onto the upstream taxonomy.
func (r *Repo) classify(op string, err error) error {
	var kind error
	switch {
	case errors.Is(err, db.ErrDimensionMismatch):
		kind = domain.ErrVectorDimMismatch
	case errors.Is(err, db.ErrAuth):
		kind = domain.ErrUpstreamAuth
	case errors.Is(err, db.ErrIndexNotFound):
		kind = domain.ErrUpstreamMisconfigured
	case errors.Is(err, db.ErrMalformedReply):
		kind = domain.ErrUpstreamMalformed
	case errors.Is(err, db.ErrBusy):
		kind = domain.ErrUpstreamUnavailable
	case errors.Is(err, db.ErrServerReply):
		// Rejected command: unknown field, bad syntax, wrong key type.
		kind = domain.ErrUpstreamMisconfigured
	case isDBError(err):
		// Connection-level failure; the executor separates timeouts from outages.
		return fmt.Errorf("%s %s: %w", r.cfg.Provider, op, err)
	default:
		kind = domain.ErrUpstreamMisconfigured
	}
	return domain.NewUpstreamError(r.cfg.Provider, op, kind, err)
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
