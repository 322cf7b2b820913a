package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/metrics"
)

// RouterConfig holds the middleware settings of the HTTP API.
type RouterConfig struct {
	APIKeys     []string
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// NewRouter mounts the server's handlers behind the middleware chain.
func NewRouter(s *Server, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(rateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	r.Use(metrics.Middleware())

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/", s.Root)
	r.Post("/search", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	return r
}
