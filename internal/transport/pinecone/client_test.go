package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/faqsearch/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{Host: srv.URL, APIKey: "pc-key", Namespace: "faq"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := New(Config{Host: "h"}); err == nil {
		t.Error("expected error for missing api key")
	}

	c, err := New(Config{Host: "topnotch-abc.svc.pinecone.io/", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.baseURL != "https://topnotch-abc.svc.pinecone.io" {
		t.Errorf("unexpected base URL: %s", c.baseURL)
	}
}

func TestQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "pc-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("Api-Key"))
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.TopK != 2 || !req.IncludeMetadata || req.Namespace != "faq" || len(req.Vector) != 3 {
			t.Errorf("unexpected request body: %+v", req)
		}

		_, _ = w.Write([]byte(`{"matches":[
			{"id":"a","score":0.91,"metadata":{"source":"policy.md","content_preview":"Refunds are issued within 30 days..."}},
			{"id":"b","score":0.55,"metadata":{"content":"Shipping","page":3}}
		],"namespace":"faq"}`))
	})

	got, err := c.Query(context.Background(), []float32{1, 2, 3}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "a" || got[0].Score != 0.91 || got[0].Source != "policy.md" {
		t.Errorf("unexpected first candidate: %+v", got[0])
	}
	if got[0].Content != "Refunds are issued within 30 days..." {
		t.Errorf("expected content_preview fallback, got %q", got[0].Content)
	}
	if got[1].Source != "" || got[1].Content != "Shipping" {
		t.Errorf("unexpected second candidate: %+v", got[1])
	}
}

func TestQuery_NoMatches(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"matches":[],"namespace":"faq"}`))
	})

	got, err := c.Query(context.Background(), []float32{1}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestQuery_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing score", `{"matches":[{"id":"a"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Query(context.Background(), []float32{1}, 1)
			if !errors.Is(err, domain.ErrUpstreamMalformed) {
				t.Fatalf("expected malformed, got %v", err)
			}
		})
	}
}

func TestQuery_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, domain.ErrUpstreamAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.ErrUpstreamRateLimited},
		{"timeout", http.StatusGatewayTimeout, ``, domain.ErrUpstreamTimeout},
		{"outage", http.StatusServiceUnavailable, ``, domain.ErrUpstreamUnavailable},
		{"dimension", http.StatusBadRequest, `{"code":3,"message":"Vector dimension 3 does not match the dimension of the index 1024"}`, domain.ErrVectorDimMismatch},
		{"bad request", http.StatusBadRequest, `{"message":"bad namespace"}`, domain.ErrUpstreamMisconfigured},
		{"no index", http.StatusNotFound, ``, domain.ErrUpstreamMisconfigured},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Query(context.Background(), []float32{1, 2, 3}, 1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestQuery_RetryAfterHint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Query(context.Background(), []float32{1}, 1)
	ue, ok := domain.AsUpstream(err)
	if !ok {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if ue.RetryAfter != 7*time.Second {
		t.Errorf("expected 7s retry-after, got %s", ue.RetryAfter)
	}
}

func TestDimensionAndPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe_index_stats" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"dimension":1024,"indexFullness":0,"totalVectorCount":120,"namespaces":{}}`))
	})

	dim, err := c.Dimension(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim != 1024 {
		t.Errorf("expected 1024, got %d", dim)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("empty: got %s", got)
	}
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("seconds: got %s", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("garbage: got %s", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("date: got %s", got)
	}
}
