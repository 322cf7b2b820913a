// Package chi exposes the search pipeline over HTTP with a chi router.
package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/faqsearch/internal/usecase/health"
	"github.com/kailas-cloud/faqsearch/internal/version"
)

const defaultMaxBodyBytes = 64 << 10

// Searcher runs one validated retrieval. A nil topK means "not supplied".
type Searcher interface {
	Search(ctx context.Context, text string, topK *int) ([]result.Result, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// SearchRequest is the POST /search body. Fields are kept raw so that type errors
// surface as validation failures rather than decode failures.
type SearchRequest struct {
	Query json.RawMessage `json:"query"`
	TopK  json.RawMessage `json:"top_k"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RootResponse is the GET / banner.
type RootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Server serves the HTTP API.
type Server struct {
	search         Searcher
	health         HealthReporter
	logger         *zap.Logger
	maxBodyBytes   int64
	requestTimeout time.Duration
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxBodyBytes <= 0 uses 64 KiB.
func NewServer(search Searcher, health HealthReporter, maxBodyBytes int64, logger *zap.Logger) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		search:        search,
		health:        health,
		logger:        logger,
		maxBodyBytes:  maxBodyBytes,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithRequestTimeout caps how long one search may run, retries included.
// Keep it below the http.Server WriteTimeout or a late 504 never reaches the client.
func (s *Server) WithRequestTimeout(d time.Duration) *Server {
	s.requestTimeout = d
	return s
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message: "FAQ Search API",
		Version: version.Version,
		Endpoints: map[string]string{
			"/search":  "POST - Search policy documents",
			"/health":  "GET - Component health",
			"/metrics": "GET - Prometheus metrics",
		},
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeRequestTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	text, topK, err := parseSearchRequest(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	ctx, usage := domain.NewContextWithUsage(ctx)
	results, err := s.search.Search(ctx, text, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, results)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// parseSearchRequest extracts query text and top_k. Absent or null top_k yields nil.
// An integral float such as 2.0 is accepted; 2.5, strings and booleans are not.
func parseSearchRequest(req SearchRequest) (string, *int, error) {
	if isNull(req.Query) {
		return "", nil, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	var text string
	if err := json.Unmarshal(req.Query, &text); err != nil {
		return "", nil, fmt.Errorf("%w: query must be a string", domain.ErrValidation)
	}

	if isNull(req.TopK) {
		return text, nil, nil
	}
	var num float64
	if err := json.Unmarshal(req.TopK, &num); err != nil {
		return "", nil, fmt.Errorf("%w: top_k must be an integer", domain.ErrValidation)
	}
	if num != math.Trunc(num) || math.Abs(num) > math.MaxInt32 {
		return "", nil, fmt.Errorf("%w: top_k must be an integer", domain.ErrValidation)
	}
	k := int(num)
	return text, &k, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}
