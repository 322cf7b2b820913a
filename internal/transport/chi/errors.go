package chi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/logger"
)

// ErrorCode is the machine-readable error code returned to clients.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeValidationFailed    ErrorCode = "validation_failed"
	ErrorCodeRequestTooLarge     ErrorCode = "request_too_large"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	ErrorCodeRateLimited         ErrorCode = "rate_limited"
	ErrorCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrorCodeUpstreamTimeout     ErrorCode = "upstream_timeout"
	ErrorCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrorCodeUpstreamError       ErrorCode = "upstream_error"
	ErrorCodeRequestCanceled     ErrorCode = "request_canceled"
	ErrorCodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		upstreamHandler(domain.ErrUpstreamRateLimited, http.StatusTooManyRequests, ErrorCodeUpstreamRateLimited),
		upstreamHandler(domain.ErrUpstreamTimeout, http.StatusGatewayTimeout, ErrorCodeUpstreamTimeout),
		upstreamHandler(domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable, ErrorCodeUpstreamUnavailable),
		sentinelHandler(domain.ErrUpstreamFatal, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(context.Canceled, http.StatusServiceUnavailable, ErrorCodeRequestCanceled),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeUpstreamTimeout),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Upstream errors name the provider and the kind, never the provider's own message.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return validationMessage(err)
	}
	if ue, ok := domain.AsUpstream(err); ok {
		return ue.Provider + ": " + ue.Kind.Error()
	}
	sentinels := []error{
		context.Canceled,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// validationMessage drops the layer prefixes added while the error was wrapped.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrValidation.Error()); i >= 0 {
		return msg[i:]
	}
	return domain.ErrValidation.Error()
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// upstreamHandler matches a transient kind and forwards the provider's back-off hint as Retry-After.
func upstreamHandler(kind error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, kind) {
			return false
		}
		if ue, ok := domain.AsUpstream(err); ok && ue.RetryAfter > 0 {
			secs := int(math.Ceil(ue.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeError(w, status, code, msg)
		return true
	}
}

func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	if errors.Is(err, domain.ErrValidation) {
		log.Debug("validation error", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err))
	}

	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
