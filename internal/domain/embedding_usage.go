package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates provider token usage for one search request.
// The HTTP handler attaches it before running the pipeline and reads it back
// for the X-Embedding-Tokens response header. Not safe for concurrent writers;
// a request embeds its query once.
type EmbeddingUsage struct {
	TotalTokens int
	Calls       int
	Used        bool // set once the provider answered, even with 0 billed tokens
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the request's collector, or nil outside a request.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one successful provider call. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.TotalTokens += n
	u.Calls++
	u.Used = true
}
