package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
)

const providerName = "openai"

// Embedder is an embedding provider using the OpenAI-compatible API (OpenAI, Nebius, Ollama, ...).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is sent as the "dimensions" request field when > 0.
	Dimensions int
	User       string
	// HTTPClient is shared across requests; nil uses a pooled client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	clientCfg.HTTPClient = httpClient

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		logger:     logger,
	}
}

// Name returns the provider label used in errors and metrics.
func (e *Embedder) Name() string { return providerName }

// Model returns the configured embedding model.
func (e *Embedder) Model() string { return string(e.model) }

// Embed implements domain.Embedder. Failures are returned as classified *domain.UpstreamError.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return domain.EmbeddingResult{}, classifyError("embed", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.EmbeddingResult{}, domain.NewUpstreamError(providerName, "embed",
			domain.ErrUpstreamMalformed, errors.New("empty embedding response"))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", classifyError("list_models", err))
	}
	return nil
}

// classifyError maps go-openai errors onto the upstream taxonomy.
func classifyError(op string, err error) error {
	var (
		status int
		detail string
	)

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		detail = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
	case errors.As(err, &syntaxErr) || errors.As(err, &typeErr):
		return domain.NewUpstreamError(providerName, op, domain.ErrUpstreamMalformed, err)
	default:
		// Transport-level failure: timeouts are reclassified by the executor.
		return domain.NewUpstreamError(providerName, op, domain.ErrUpstreamUnavailable, err)
	}

	cause := fmt.Errorf("embedding API error %d: %s", status, detail)
	return domain.NewUpstreamError(providerName, op, kindForStatus(status), cause)
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrUpstreamAuth
	case status == http.StatusTooManyRequests:
		return domain.ErrUpstreamRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.ErrUpstreamTimeout
	case status >= 500:
		return domain.ErrUpstreamUnavailable
	case status >= 400:
		return domain.ErrUpstreamMisconfigured
	default:
		return domain.ErrUpstreamMalformed
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
