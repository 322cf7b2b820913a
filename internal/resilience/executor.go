// Package resilience runs outbound calls with per-attempt timeouts, bounded
// exponential-backoff retry of transient failures and an optional circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/metrics"
)

// Policy bounds retries and attempt duration for one upstream.
type Policy struct {
	// MaxAttempts counts the first call; 1 disables retry.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// AttemptTimeout bounds each individual call; zero leaves only the caller's deadline.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns three attempts with 200ms..2s backoff and a 10s attempt timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		AttemptTimeout:  10 * time.Second,
	}
}

// BreakerConfig configures the per-upstream circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// FailureThreshold is the number of consecutive transient failures that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a half-open probe.
	OpenTimeout time.Duration
}

// Executor guards calls to a single upstream provider.
type Executor struct {
	provider string
	policy   Policy
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewExecutor creates an executor for the named provider.
func NewExecutor(provider string, policy Policy, breaker BreakerConfig, logger *zap.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{provider: provider, policy: policy, logger: logger}
	if breaker.Enabled {
		e.breaker = newBreaker(provider, breaker, logger)
	}
	return e
}

// Provider returns the upstream name used in errors, logs and metrics.
func (e *Executor) Provider() string { return e.provider }

// Do runs fn until it succeeds, fails fatally, or the attempt budget is spent.
// Errors returned by fn should be *domain.UpstreamError; anything else is classified here.
func Do[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out      T
		attempts int
		lastErr  error
	)

	operation := func() error {
		attempts++
		res, err := attempt(ctx, e, op, fn)
		if err == nil {
			out = res
			return nil
		}
		lastErr = err
		if !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.UpstreamRetriesTotal.WithLabelValues(e.provider, op).Inc()
		e.logger.Debug("Retrying upstream call",
			zap.String("provider", e.provider),
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, e.newBackOff(ctx), notify)
	if err == nil {
		return out, nil
	}

	var zero T
	return zero, e.finalize(ctx, op, attempts, err, lastErr)
}

func attempt[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attemptCtx := ctx
	if e.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.policy.AttemptTimeout)
		defer cancel()
	}

	var res T
	call := func() (interface{}, error) {
		r, err := fn(attemptCtx)
		if err != nil {
			// Classified before the breaker sees it so only transient failures trip the circuit.
			return nil, e.classify(ctx, attemptCtx, op, err)
		}
		res = r
		return nil, nil
	}

	start := time.Now()
	var err error
	if e.breaker != nil {
		_, err = e.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Not retried: the circuit will not close within the backoff window.
			err = backoff.Permanent(domain.NewUpstreamError(e.provider, op, domain.ErrUpstreamUnavailable, err))
		}
	} else {
		_, err = call()
	}
	metrics.UpstreamRequestDuration.WithLabelValues(e.provider, op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(e.provider, op, Outcome(err)).Inc()
		return res, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(e.provider, op, "success").Inc()
	return res, nil
}

// classify turns any attempt error into a *domain.UpstreamError.
func (e *Executor) classify(ctx, attemptCtx context.Context, op string, err error) error {
	// The attempt deadline fired while the caller is still waiting: always a timeout,
	// whatever shape the provider gave the error.
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if ue, ok := domain.AsUpstream(err); ok && ue.Kind == domain.ErrUpstreamTimeout {
			return err
		}
		return domain.NewUpstreamError(e.provider, op, domain.ErrUpstreamTimeout, err)
	}

	if _, ok := domain.AsUpstream(err); ok {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewUpstreamError(e.provider, op, domain.ErrUpstreamTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewUpstreamError(e.provider, op, domain.ErrUpstreamTimeout, err)
	default:
		return domain.NewUpstreamError(e.provider, op, domain.ErrUpstreamUnavailable, err)
	}
}

// finalize stamps the attempt count and logs the terminal failure.
func (e *Executor) finalize(ctx context.Context, op string, attempts int, err, lastErr error) error {
	// backoff returns ctx.Err() when the caller gave up between attempts.
	if ctx.Err() != nil && !isUpstream(err) {
		cause := lastErr
		if cause == nil {
			cause = ctx.Err()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = domain.NewUpstreamError(e.provider, op, domain.ErrUpstreamTimeout, cause)
		} else {
			return fmt.Errorf("%s %s: %w", e.provider, op, ctx.Err())
		}
	}

	ue, ok := domain.AsUpstream(err)
	if !ok {
		return err
	}
	ue.Attempts = attempts

	fields := []zap.Field{
		zap.String("provider", e.provider),
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Error(ue),
	}
	if ue.Transient() {
		e.logger.Warn("Upstream retries exhausted", fields...)
	} else {
		e.logger.Error("Upstream misconfiguration", fields...)
	}
	return ue
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if e.policy.InitialInterval > 0 {
		b.InitialInterval = e.policy.InitialInterval
	}
	if e.policy.MaxInterval > 0 {
		b.MaxInterval = e.policy.MaxInterval
	}
	if e.policy.Multiplier > 0 {
		b.Multiplier = e.policy.Multiplier
	}
	b.MaxElapsedTime = 0 // bounded by attempts, not wall time
	b.Reset()

	// #nosec G115 -- MaxAttempts is clamped to >= 1 in NewExecutor
	retries := uint64(e.policy.MaxAttempts - 1)
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

func isUpstream(err error) bool {
	_, ok := domain.AsUpstream(err)
	return ok
}

// Outcome maps a classified error to a low-cardinality metrics label.
func Outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrUpstreamAuth):
		return "auth"
	case errors.Is(err, domain.ErrUpstreamMalformed):
		return "malformed"
	case errors.Is(err, domain.ErrUpstreamMisconfigured):
		return "misconfigured"
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
