package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/faqsearch/internal/domain"
)

// Search parameter limits.
const (
	// DefaultTopK is applied when the caller omits top_k.
	DefaultTopK = 3
	// DefaultMaxTopK caps top_k; larger values are clamped.
	DefaultMaxTopK        = 100
	DefaultMaxQueryLength = 4096
)

// Limits bounds what a caller may ask for.
type Limits struct {
	// DefaultTopK replaces an omitted top_k; 0 means the package DefaultTopK.
	DefaultTopK    int
	MaxTopK        int
	MaxQueryLength int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{DefaultTopK: DefaultTopK, MaxTopK: DefaultMaxTopK, MaxQueryLength: DefaultMaxQueryLength}
}

// Query is a validated search request. Immutable once built.
type Query struct {
	text string
	topK int
}

// New validates with DefaultLimits.
func New(text string, topK *int) (Query, error) {
	return DefaultLimits().New(text, topK)
}

// New validates and normalizes search parameters.
// A nil topK means "not supplied" and yields the default; an explicit value must be >= 1
// and is clamped to MaxTopK.
func (l Limits) New(text string, topK *int) (Query, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Query{}, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	if l.MaxQueryLength > 0 && utf8.RuneCountInString(trimmed) > l.MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrValidation, l.MaxQueryLength)
	}

	k := l.DefaultTopK
	if k <= 0 {
		k = DefaultTopK
	}
	if topK != nil {
		if *topK < 1 {
			return Query{}, fmt.Errorf("%w: top_k must be >= 1, got %d", domain.ErrValidation, *topK)
		}
		k = *topK
	}
	if l.MaxTopK > 0 && k > l.MaxTopK {
		k = l.MaxTopK
	}

	return Query{text: trimmed, topK: k}, nil
}

// Text returns the trimmed query text.
func (q Query) Text() string { return q.text }

// TopK returns the effective result bound.
func (q Query) TopK() int { return q.topK }
