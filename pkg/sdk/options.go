package faqsearch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/faqsearch/internal/config"
	indexuc "github.com/kailas-cloud/faqsearch/internal/usecase/index"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	embedder Embedder
	backend  indexuc.Backend // tests only

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey connects to a Valkey instance with the search module loaded.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Driver = config.DriverValkey
		c.cfg.VectorStore.Addrs = []string{addr}
		c.cfg.VectorStore.Password = password
	})
}

// WithRedis connects to a Redis Stack instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Driver = config.DriverRedis
		c.cfg.VectorStore.Addrs = []string{addr}
		c.cfg.VectorStore.Password = password
	})
}

// WithIndex names the FT index to query. Required for Valkey and Redis.
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Index = name
	})
}

// WithPinecone queries a Pinecone index through its data-plane host.
// namespace may be empty.
func WithPinecone(host, apiKey, namespace string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Driver = config.DriverPinecone
		c.cfg.VectorStore.Host = host
		c.cfg.VectorStore.APIKey = apiKey
		c.cfg.VectorStore.Namespace = namespace
	})
}

// WithFields overrides the stored field names for source and content.
// Empty values keep the defaults ("source", "content").
func WithFields(source, content string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.SourceField = source
		c.cfg.VectorStore.ContentField = content
	})
}

// WithMetric sets the index distance metric: COSINE (default), IP or L2.
func WithMetric(metric string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Metric = metric
	})
}

// WithOpenAI embeds queries with an OpenAI embedding model.
// An empty model selects text-embedding-3-small.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Provider = config.ProviderOpenAI
		c.cfg.Embedding.APIKey = apiKey
		c.cfg.Embedding.Model = model
	})
}

// WithBedrock embeds queries with a Cohere model on AWS Bedrock using the
// default AWS credential chain. An empty model selects cohere.embed-english-v3.
func WithBedrock(region, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Provider = config.ProviderBedrock
		c.cfg.Embedding.Region = region
		c.cfg.Embedding.Model = model
	})
}

// WithEmbedder plugs in a custom embedding provider, replacing WithOpenAI/WithBedrock.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithDimensions sets the vector dimension shared by the embedder and the index. Required.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Dimensions = dim
	})
}

// WithQueryInstruction prefixes every query before embedding.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.QueryInstruction = instruction
	})
}

// WithTopK sets the default and maximum number of results.
// Zero keeps the defaults (3 and 100).
func WithTopK(defaultTopK, maxTopK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.DefaultTopK = defaultTopK
		c.cfg.Search.MaxTopK = maxTopK
	})
}

// WithRetry sets the maximum number of attempts per upstream call.
// Default: 3.
func WithRetry(maxAttempts int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Retry.MaxAttempts = maxAttempts
	})
}

// WithCircuitBreaker opens the circuit for a provider after failureThreshold
// consecutive transient failures.
func WithCircuitBreaker(failureThreshold uint32) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Breaker.Enabled = true
		c.cfg.Breaker.FailureThreshold = failureThreshold
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations and
// result sizes) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

func withBackend(b indexuc.Backend) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = b
	})
}
