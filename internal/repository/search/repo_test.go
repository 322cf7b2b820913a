package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/kailas-cloud/faqsearch/internal/db"
	"github.com/kailas-cloud/faqsearch/internal/domain"
)

// --- Query ---

func TestQuery_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t, Config{})
	ctx := context.Background()

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "faq:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		if q.K != 3 {
			t.Errorf("unexpected K: %d", q.K)
		}
		if q.VectorField != "vector" {
			t.Errorf("unexpected vector field: %s", q.VectorField)
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{
					Key:      "faq:doc-1",
					Distance: 0.123,
					Fields: map[string]string{
						"source":  "policy.md",
						"content": "Refunds are issued within 30 days...",
					},
				},
				{
					Key:      "faq:doc-2",
					Distance: 0.456,
					Fields: map[string]string{
						"content_preview": "Shipping takes 3-5 days",
					},
				},
			},
		}, nil
	}

	got, err := repo.Query(ctx, testVector(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "faq:doc-1" || got[0].Source != "policy.md" {
		t.Errorf("unexpected first candidate: %+v", got[0])
	}
	if math.Abs(got[0].Score-0.877) > 1e-9 {
		t.Errorf("expected cosine similarity 0.877, got %f", got[0].Score)
	}
	if got[1].Content != "Shipping takes 3-5 days" {
		t.Errorf("expected fallback content, got %q", got[1].Content)
	}
	if got[1].Source != "" {
		t.Errorf("missing source should stay empty here, got %q", got[1].Source)
	}
}

func TestQuery_L2IsNegatedDistance(t *testing.T) {
	repo, ms := newTestRepo(t, Config{Metric: "l2"})

	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "a", Distance: 0.5},
			{Key: "b", Distance: 2.5},
		}}, nil
	}

	got, err := repo.Query(context.Background(), testVector(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Score != -0.5 || got[1].Score != -2.5 {
		t.Errorf("unexpected scores: %f, %f", got[0].Score, got[1].Score)
	}
	if got[0].Score <= got[1].Score {
		t.Error("closer match must score higher")
	}
}

func TestQuery_CustomFields(t *testing.T) {
	repo, ms := newTestRepo(t, Config{
		VectorField:  "embedding",
		SourceField:  "file",
		ContentField: "text",
	})

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.VectorField != "embedding" {
			t.Errorf("unexpected vector field: %s", q.VectorField)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: "k", Fields: map[string]string{"file": "faq.md", "text": "body"}},
		}}, nil
	}

	got, err := repo.Query(context.Background(), testVector(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Source != "faq.md" || got[0].Content != "body" {
		t.Errorf("unexpected candidate: %+v", got[0])
	}
}

func TestQuery_EmptyResults(t *testing.T) {
	repo, ms := newTestRepo(t, Config{})

	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 0}, nil
	}

	got, err := repo.Query(context.Background(), testVector(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestQuery_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      error
		transient bool
	}{
		{"dimension", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: blob size", db.ErrDimensionMismatch)}, domain.ErrVectorDimMismatch, false},
		{"auth", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: NOAUTH", db.ErrAuth)}, domain.ErrUpstreamAuth, false},
		{"missing index", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: no such index", db.ErrIndexNotFound)}, domain.ErrUpstreamMisconfigured, false},
		{"malformed", fmt.Errorf("%w: parse total", db.ErrMalformedReply), domain.ErrUpstreamMalformed, false},
		{"loading", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: LOADING", db.ErrBusy)}, domain.ErrUpstreamUnavailable, true},
		{"unknown field", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: Unknown field at offset 10 near vector", db.ErrServerReply)}, domain.ErrUpstreamMisconfigured, false},
		{"syntax error", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: Syntax error at offset 3", db.ErrServerReply)}, domain.ErrUpstreamMisconfigured, false},
		{"wrongtype", &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: WRONGTYPE Operation against a key", db.ErrServerReply)}, domain.ErrUpstreamMisconfigured, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, ms := newTestRepo(t, Config{Provider: "valkey"})
			ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
				return nil, tc.err
			}

			_, err := repo.Query(context.Background(), testVector(), 3)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if domain.IsTransient(err) != tc.transient {
				t.Errorf("transient = %v, want %v", domain.IsTransient(err), tc.transient)
			}
			ue, _ := domain.AsUpstream(err)
			if ue.Provider != "valkey" {
				t.Errorf("expected provider valkey, got %s", ue.Provider)
			}
		})
	}
}

func TestQuery_ConnectionErrorLeftForExecutor(t *testing.T) {
	repo, ms := newTestRepo(t, Config{})
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: context.DeadlineExceeded}
	}

	_, err := repo.Query(context.Background(), testVector(), 3)
	if _, ok := domain.AsUpstream(err); ok {
		t.Fatal("connection errors should be classified by the executor")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
}

// --- Dimension / Ping ---

func TestDimension(t *testing.T) {
	repo, ms := newTestRepo(t, Config{VectorField: "embedding"})
	ms.indexInfoFn = func(_ context.Context, index, field string) (*db.IndexInfo, error) {
		if index != "faq:idx" || field != "embedding" {
			t.Errorf("unexpected args: %s %s", index, field)
		}
		return &db.IndexInfo{Dimension: 1024}, nil
	}

	dim, err := repo.Dimension(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim != 1024 {
		t.Errorf("expected 1024, got %d", dim)
	}
}

func TestPing(t *testing.T) {
	repo, ms := newTestRepo(t, Config{})
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ms.pingErr = &db.Error{Op: db.OpPing, Err: fmt.Errorf("%w: NOAUTH", db.ErrAuth)}
	if err := repo.Ping(context.Background()); !errors.Is(err, domain.ErrUpstreamAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
