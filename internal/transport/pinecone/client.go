// Package pinecone queries a Pinecone serverless or pod index over its data-plane REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

const (
	providerName = "pinecone"
	apiVersion   = "2024-07"

	// maxErrorBody caps how much of an error response is kept for diagnostics.
	maxErrorBody = 4 << 10
)

// Config holds the data-plane settings of one index.
type Config struct {
	// Host is the index host, e.g. "topnotch-abc123.svc.us-east-1.pinecone.io". A scheme is optional.
	Host      string
	APIKey    string
	Namespace string
	// SourceField and ContentField name the metadata keys; FallbackContentField is read when ContentField is absent.
	SourceField          string
	ContentField         string
	FallbackContentField string
	Timeout              time.Duration
	// HTTPClient overrides the pooled client (tests).
	HTTPClient *http.Client
}

// Client implements usecase/index.Backend for Pinecone.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	ID       string         `json:"id"`
	Score    *float64       `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// New creates a Pinecone client with a pooled HTTP transport.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("pinecone host is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone api key is required")
	}
	if cfg.SourceField == "" {
		cfg.SourceField = "source"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.FallbackContentField == "" {
		cfg.FallbackContentField = "content_preview"
	}

	baseURL := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		}
	}

	return &Client{baseURL: baseURL, cfg: cfg, http: httpClient}, nil
}

// Name returns the provider label.
func (c *Client) Name() string { return providerName }

// Query returns the nearest matches with their metadata.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]result.Candidate, error) {
	var resp queryResponse
	err := c.post(ctx, "query", "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       c.cfg.Namespace,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]result.Candidate, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Score == nil {
			return nil, domain.NewUpstreamError(providerName, "query", domain.ErrUpstreamMalformed,
				fmt.Errorf("match %q has no score", m.ID))
		}
		content, ok := metaString(m.Metadata, c.cfg.ContentField)
		if !ok {
			content, _ = metaString(m.Metadata, c.cfg.FallbackContentField)
		}
		source, _ := metaString(m.Metadata, c.cfg.SourceField)
		out = append(out, result.Candidate{
			ID:      m.ID,
			Score:   *m.Score,
			Source:  source,
			Content: content,
		})
	}
	return out, nil
}

// Dimension reports the index dimension from describe_index_stats.
func (c *Client) Dimension(ctx context.Context) (int, error) {
	stats, err := c.stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Dimension, nil
}

// Ping checks that the index answers describe_index_stats with the held key.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.stats(ctx)
	return err
}

func (c *Client) stats(ctx context.Context) (*statsResponse, error) {
	var resp statsResponse
	if err := c.post(ctx, "describe_index_stats", "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.NewUpstreamError(providerName, op, domain.ErrUpstreamMisconfigured, err)
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure; the executor separates timeouts from outages.
		return fmt.Errorf("%s %s: %w", providerName, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewUpstreamError(providerName, op, domain.ErrUpstreamMalformed,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := fmt.Errorf("pinecone API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	var kind error
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = domain.ErrUpstreamAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = domain.ErrUpstreamRateLimited
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		kind = domain.ErrUpstreamTimeout
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = domain.ErrUpstreamUnavailable
	case strings.Contains(strings.ToLower(string(body)), "dimension"):
		kind = domain.ErrVectorDimMismatch
	default:
		kind = domain.ErrUpstreamMisconfigured
	}

	ue := domain.NewUpstreamError(providerName, op, kind, cause)
	ue.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return ue
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func metaString(meta map[string]any, key string) (string, bool) {
	v, ok := meta[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []any:
		parts := make([]string, 0, len(s))
		for _, p := range s {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", "), true
	default:
		return fmt.Sprint(s), true
	}
}
