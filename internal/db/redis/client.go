package redis

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/faqsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis or Valkey store.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Store implements db.Store via rueidis for Redis 8+ and Valkey with the search module.
// A single client multiplexes all requests over pooled connections.
type Store struct {
	client rueidis.Client
}

// NewStore creates a store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
		Dialer:       net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return wrapErr(db.OpPing, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with exponential backoff until the store answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = s.Ping(ctx)
		return lastErr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		if lastErr != nil {
			return fmt.Errorf("timeout waiting for database: %w", lastErr)
		}
		return fmt.Errorf("timeout waiting for database: %w", err)
	}
	return nil
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// wrapErr attaches the command name and maps well-known server replies to db sentinels.
func wrapErr(op string, err error) error {
	switch {
	case isRedisErr(err, "no such index"), isRedisErr(err, "unknown index name"), isRedisErr(err, "unknown index"):
		err = fmt.Errorf("%w: %s", db.ErrIndexNotFound, err.Error())
	case isRedisErr(err, "blob size"), isRedisErr(err, "dimension"), isRedisErr(err, "vector size"):
		err = fmt.Errorf("%w: %s", db.ErrDimensionMismatch, err.Error())
	case isRedisErr(err, "noauth"), isRedisErr(err, "wrongpass"), isRedisErr(err, "noperm"):
		err = fmt.Errorf("%w: %s", db.ErrAuth, err.Error())
	case isRedisErr(err, "loading"), isRedisErr(err, "busy"), isRedisErr(err, "tryagain"):
		err = fmt.Errorf("%w: %s", db.ErrBusy, err.Error())
	case isServerReply(err):
		err = fmt.Errorf("%w: %s", db.ErrServerReply, err.Error())
	}
	return &db.Error{Op: op, Err: err}
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

// isServerReply reports whether err is an error reply sent by the server, as
// opposed to a connection or IO failure.
func isServerReply(err error) bool {
	_, ok := rueidis.IsRedisErr(err)
	return ok
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
