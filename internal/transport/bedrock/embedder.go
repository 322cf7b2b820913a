// Package bedrock embeds query text with Cohere embedding models hosted on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/kailas-cloud/faqsearch/internal/domain"
)

const (
	providerName = "bedrock"

	// DefaultModel is Cohere's English v3 embedding model.
	DefaultModel = "cohere.embed-english-v3"
	// DefaultInputType marks the text as a search query rather than an indexed document.
	DefaultInputType = "search_query"
	// DefaultHealthTTL bounds how often HealthCheck issues a billed InvokeModel call.
	DefaultHealthTTL = 30 * time.Second
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds the Bedrock provider settings. Empty keys fall back to the default AWS credential chain.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Model           string
	InputType       string
	Timeout         time.Duration
}

type cohereEmbeddingRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate,omitempty"`
}

type cohereEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	ID         string      `json:"id"`
	Meta       struct {
		BilledUnits struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Embedder implements domain.Embedder over Bedrock InvokeModel.
type Embedder struct {
	client    InvokeModelAPI
	model     string
	inputType string

	healthMu  sync.Mutex
	healthTTL time.Duration
	healthAt  time.Time
	healthErr error
	now       func() time.Time
}

// NewEmbedder loads AWS configuration and creates a Bedrock runtime client with a pooled transport.
// SDK-level retries are disabled; retry policy belongs to the caller.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
		awsconfig.WithHTTPClient(&http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		}),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return NewEmbedderWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg.Model, cfg.InputType), nil
}

// NewEmbedderWithClient wraps an existing runtime client.
func NewEmbedderWithClient(client InvokeModelAPI, model, inputType string) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	if inputType == "" {
		inputType = DefaultInputType
	}
	return &Embedder{
		client:    client,
		model:     model,
		inputType: inputType,
		healthTTL: DefaultHealthTTL,
		now:       time.Now,
	}
}

// Name returns the provider label used in errors and metrics.
func (e *Embedder) Name() string { return providerName }

// Model returns the Bedrock model ID.
func (e *Embedder) Model() string { return e.model }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	body, err := json.Marshal(cohereEmbeddingRequest{
		Texts:     []string{text},
		InputType: e.inputType,
		Truncate:  "END",
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return domain.EmbeddingResult{}, classifyError("embed", err)
	}

	var parsed cohereEmbeddingResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return domain.EmbeddingResult{}, domain.NewUpstreamError(providerName, "embed",
			domain.ErrUpstreamMalformed, fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return domain.EmbeddingResult{}, domain.NewUpstreamError(providerName, "embed",
			domain.ErrUpstreamMalformed, errors.New("no embeddings in response"))
	}

	tokens := parsed.Meta.BilledUnits.InputTokens
	return domain.EmbeddingResult{
		Embedding:    parsed.Embeddings[0],
		PromptTokens: tokens,
		TotalTokens:  tokens,
	}, nil
}

// HealthCheck embeds a short text. Bedrock has no free endpoint, so the outcome
// is cached for healthTTL and concurrent callers share one in-flight call.
// A wrong model ID or input type is reported as unhealthy.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()

	if !e.healthAt.IsZero() && e.now().Sub(e.healthAt) < e.healthTTL {
		return e.healthErr
	}

	_, err := e.Embed(ctx, "health")
	if err != nil {
		err = fmt.Errorf("bedrock health embed: %w", err)
	}
	if ctx.Err() != nil {
		// Caller gave up; the result says nothing about Bedrock.
		return err
	}
	e.healthAt = e.now()
	e.healthErr = err
	return err
}

// classifyError maps Bedrock service exceptions onto the upstream taxonomy.
func classifyError(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return domain.NewUpstreamError(providerName, op, domain.ErrUpstreamUnavailable, err)
	}

	var kind error
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		kind = domain.ErrUpstreamRateLimited
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException",
		"InvalidSignatureException", "UnauthorizedException":
		kind = domain.ErrUpstreamAuth
	case "ModelTimeoutException", "RequestTimeout", "RequestTimeoutException":
		kind = domain.ErrUpstreamTimeout
	case "ServiceUnavailableException", "InternalServerException", "ModelNotReadyException":
		kind = domain.ErrUpstreamUnavailable
	case "ValidationException", "ResourceNotFoundException", "ModelErrorException":
		kind = domain.ErrUpstreamMisconfigured
	default:
		if apiErr.ErrorFault() == smithy.FaultServer {
			kind = domain.ErrUpstreamUnavailable
		} else {
			kind = domain.ErrUpstreamMisconfigured
		}
	}
	return domain.NewUpstreamError(providerName, op, kind, err)
}
