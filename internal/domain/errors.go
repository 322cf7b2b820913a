package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation signals a malformed client request. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrUpstreamTransient is the class of upstream failures that may resolve on retry.
	ErrUpstreamTransient = errors.New("upstream temporarily unavailable")
	// ErrUpstreamFatal is the class of upstream failures that indicate misconfiguration.
	ErrUpstreamFatal = errors.New("upstream misconfigured")

	// ErrUpstreamRateLimited signals a provider rate limit (transient).
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamTimeout signals a provider call that exceeded its deadline (transient).
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamUnavailable signals a provider outage, 5xx, or an open circuit (transient).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamAuth signals rejected provider credentials (fatal).
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrUpstreamMalformed signals a response with an unexpected shape (fatal).
	ErrUpstreamMalformed = errors.New("upstream returned malformed response")
	// ErrUpstreamMisconfigured signals a request the provider rejects as invalid,
	// e.g. an unknown model or a missing index (fatal).
	ErrUpstreamMisconfigured = errors.New("upstream rejected request")
	// ErrVectorDimMismatch signals an embedding whose length differs from the index dimension (fatal).
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// IsTransientKind reports whether kind belongs to the transient class.
func IsTransientKind(kind error) bool {
	switch kind {
	case ErrUpstreamRateLimited, ErrUpstreamTimeout, ErrUpstreamUnavailable:
		return true
	}
	return false
}

// UpstreamError is a classified failure of an outbound call to the embedding
// provider or the vector store.
type UpstreamError struct {
	Provider string
	Op       string
	// Kind is one of the ErrUpstream* kind sentinels or ErrVectorDimMismatch.
	Kind error
	// RetryAfter is the provider's back-off hint, zero when none was given.
	RetryAfter time.Duration
	// Attempts is the number of calls made before giving up.
	Attempts int
	Err      error
}

// NewUpstreamError classifies cause under kind.
func NewUpstreamError(provider, op string, kind, cause error) *UpstreamError {
	return &UpstreamError{Provider: provider, Op: op, Kind: kind, Err: cause}
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind.Error())
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is matches the kind sentinel and its transient/fatal class.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case e.Kind:
		return true
	case ErrUpstreamTransient:
		return IsTransientKind(e.Kind)
	case ErrUpstreamFatal:
		return !IsTransientKind(e.Kind)
	}
	return false
}

// Transient reports whether the failure may resolve on retry.
func (e *UpstreamError) Transient() bool { return IsTransientKind(e.Kind) }

// IsTransient reports whether err carries a transient upstream classification.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamTransient)
}

// AsUpstream extracts the UpstreamError from err's chain.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
