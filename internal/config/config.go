package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Vector store drivers.
const (
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverPinecone = "pinecone"
)

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// Config holds the faqsearch configuration. Loaded once at startup and never mutated.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retry       RetryConfig       `yaml:"retry"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Search      SearchConfig      `yaml:"search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys means open access.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	CORSOrigins     []string `yaml:"cors_origins"`

	// RequestTimeoutMs bounds one /search call, retries included. It must stay
	// below the write timeout so the error response still reaches the client.
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
}

// EmbeddingConfig selects and configures the query embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // openai (default), bedrock
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	// Dimensions is the deployment-wide vector length D.
	Dimensions int `yaml:"dimensions"`
	// QueryInstruction is prepended to every query before embedding.
	QueryInstruction string `yaml:"query_instruction"`

	// Bedrock only.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	InputType       string `yaml:"input_type"`

	TimeoutMs int `yaml:"timeout_ms"`
}

// VectorStoreConfig selects and configures the nearest-neighbour backend.
type VectorStoreConfig struct {
	Driver string `yaml:"driver"` // redis, valkey (default), pinecone

	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	Index            string   `yaml:"index"`
	VectorField      string   `yaml:"vector_field"`
	Metric           string   `yaml:"metric"` // COSINE (default), IP, L2

	SourceField          string `yaml:"source_field"`
	ContentField         string `yaml:"content_field"`
	FallbackContentField string `yaml:"fallback_content_field"`

	// Pinecone only.
	Host      string `yaml:"host"`
	APIKey    string `yaml:"api_key"`
	Namespace string `yaml:"namespace"`

	TimeoutMs int `yaml:"timeout_ms"`
}

// RetryConfig bounds retries of transient upstream failures.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialIntervalMs int     `yaml:"initial_interval_ms"`
	MaxIntervalMs     int     `yaml:"max_interval_ms"`
	Multiplier        float64 `yaml:"multiplier"`
}

// BreakerConfig configures the per-upstream circuit breaker.
type BreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failure_threshold"`
	OpenTimeoutSec   int    `yaml:"open_timeout_sec"`
}

// RateLimitConfig configures inbound request throttling. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SearchConfig holds request limits and result presentation.
type SearchConfig struct {
	DefaultTopK     int    `yaml:"default_top_k"`
	MaxTopK         int    `yaml:"max_top_k"`
	MaxQueryLength  int    `yaml:"max_query_length"`
	ScorePrecision  int    `yaml:"score_precision"`
	MaxContentChars int    `yaml:"max_content_chars"`
	DefaultSource   string `yaml:"default_source"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if any, is loaded into the environment first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates a single config file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.RequestTimeoutMs <= 0 {
		c.HTTP.RequestTimeoutMs = c.HTTP.WriteTimeoutSec * 1000 * 9 / 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 64 << 10
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}

	c.applyEmbeddingDefaults()
	c.applyVectorStoreDefaults()

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialIntervalMs <= 0 {
		c.Retry.InitialIntervalMs = 200
	}
	if c.Retry.MaxIntervalMs <= 0 {
		c.Retry.MaxIntervalMs = 2000
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.OpenTimeoutSec <= 0 {
		c.Breaker.OpenTimeoutSec = 30
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}

	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 3
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 100
	}
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = 4096
	}
	if c.Search.DefaultSource == "" {
		c.Search.DefaultSource = "Unknown"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = ProviderOpenAI
	}
	if e.Model == "" {
		switch e.Provider {
		case ProviderBedrock:
			e.Model = "cohere.embed-english-v3"
		default:
			e.Model = "text-embedding-3-small"
		}
	}
	if e.Provider == ProviderBedrock {
		if e.Region == "" {
			e.Region = "us-east-1"
		}
		if e.InputType == "" {
			e.InputType = "search_query"
		}
	}
	if e.TimeoutMs <= 0 {
		e.TimeoutMs = 10000
	}
}

func (c *Config) applyVectorStoreDefaults() {
	v := &c.VectorStore
	if v.Driver == "" {
		v.Driver = DriverValkey
	}
	if v.ReadinessTimeout <= 0 {
		v.ReadinessTimeout = 10
	}
	if v.VectorField == "" {
		v.VectorField = "vector"
	}
	if v.Metric == "" {
		v.Metric = "COSINE"
	}
	if v.SourceField == "" {
		v.SourceField = "source"
	}
	if v.ContentField == "" {
		v.ContentField = "content"
	}
	if v.FallbackContentField == "" {
		v.FallbackContentField = "content_preview"
	}
	if v.TimeoutMs <= 0 {
		v.TimeoutMs = 5000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.RequestTimeoutMs <= 0 || c.HTTP.RequestTimeoutMs >= c.HTTP.WriteTimeoutSec*1000 {
		return fmt.Errorf("http.request_timeout_ms must be positive and below http.write_timeout_sec (%dms), got %d",
			c.HTTP.WriteTimeoutSec*1000, c.HTTP.RequestTimeoutMs)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return errors.New("embedding.api_key is required for provider openai")
		}
	case ProviderBedrock:
		if (c.Embedding.AccessKeyID == "") != (c.Embedding.SecretAccessKey == "") {
			return errors.New("embedding.access_key_id and embedding.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderBedrock, c.Embedding.Provider)
	}

	switch c.VectorStore.Driver {
	case DriverRedis, DriverValkey:
		if len(c.VectorStore.Addrs) == 0 {
			return errors.New("vector_store.addrs is required")
		}
		if c.VectorStore.Index == "" {
			return errors.New("vector_store.index is required")
		}
	case DriverPinecone:
		if c.VectorStore.Host == "" {
			return errors.New("vector_store.host is required for driver pinecone")
		}
		if c.VectorStore.APIKey == "" {
			return errors.New("vector_store.api_key is required for driver pinecone")
		}
	default:
		return fmt.Errorf("vector_store.driver must be one of redis, valkey, pinecone, got %q", c.VectorStore.Driver)
	}

	switch strings.ToUpper(c.VectorStore.Metric) {
	case "COSINE", "IP", "L2":
	default:
		return fmt.Errorf("vector_store.metric must be COSINE, IP or L2, got %q", c.VectorStore.Metric)
	}

	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k (%d) exceeds search.max_top_k (%d)",
			c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	if c.Search.ScorePrecision < 0 || c.Search.ScorePrecision > 10 {
		return fmt.Errorf("search.score_precision must be between 0 and 10, got %d", c.Search.ScorePrecision)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative, got %v", c.RateLimit.RPS)
	}
	return nil
}

// RequestTimeout returns the deadline for a whole search request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutMs) * time.Millisecond
}

// EmbeddingTimeout returns the per-attempt embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutMs) * time.Millisecond
}

// VectorStoreTimeout returns the per-attempt vector store timeout.
func (c *Config) VectorStoreTimeout() time.Duration {
	return time.Duration(c.VectorStore.TimeoutMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
