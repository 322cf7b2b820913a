package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/faqsearch/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	indexInfoFn func(ctx context.Context, index, field string) (*db.IndexInfo, error)
	pingErr     error
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) IndexInfo(ctx context.Context, index, field string) (*db.IndexInfo, error) {
	if m.indexInfoFn != nil {
		return m.indexInfoFn(ctx, index, field)
	}
	return &db.IndexInfo{Name: index}, nil
}

func (m *mockStore) Ping(_ context.Context) error { return m.pingErr }

func newTestRepo(t *testing.T, cfg Config) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	if cfg.Index == "" {
		cfg.Index = "faq:idx"
	}
	return New(ms, cfg), ms
}

func testVector() []float32 {
	vec := make([]float32, 4)
	for i := range vec {
		vec[i] = 0.1
	}
	return vec
}
