package faqsearch

import "github.com/kailas-cloud/faqsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation            = domain.ErrValidation
	ErrUpstreamTransient     = domain.ErrUpstreamTransient
	ErrUpstreamFatal         = domain.ErrUpstreamFatal
	ErrUpstreamRateLimited   = domain.ErrUpstreamRateLimited
	ErrUpstreamTimeout       = domain.ErrUpstreamTimeout
	ErrUpstreamUnavailable   = domain.ErrUpstreamUnavailable
	ErrUpstreamAuth          = domain.ErrUpstreamAuth
	ErrUpstreamMalformed     = domain.ErrUpstreamMalformed
	ErrUpstreamMisconfigured = domain.ErrUpstreamMisconfigured
	ErrVectorDimMismatch     = domain.ErrVectorDimMismatch
)

// IsRetryable reports whether err is a transient upstream failure worth retrying later.
func IsRetryable(err error) bool {
	return domain.IsTransient(err)
}
