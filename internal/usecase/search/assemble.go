package search

import (
	"math"

	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

// Presentation controls how candidates are shaped for callers.
type Presentation struct {
	// ScorePrecision rounds scores to this many decimals; 0 leaves them as-is.
	ScorePrecision int
	// MaxContentChars truncates content to this many runes; 0 means unlimited.
	MaxContentChars int
	// DefaultSource replaces an empty source.
	DefaultSource string
}

// Assemble projects candidates into results without any presentation rules.
func Assemble(candidates []result.Candidate, topK int) []result.Result {
	return Presentation{}.Assemble(candidates, topK)
}

// Assemble truncates to topK and projects each candidate, keeping input order.
// The returned slice is never nil.
func (p Presentation) Assemble(candidates []result.Candidate, topK int) []result.Result {
	n := len(candidates)
	if topK < n {
		n = max(topK, 0)
	}

	out := make([]result.Result, n)
	for i := range n {
		c := candidates[i]
		source := c.Source
		if source == "" {
			source = p.DefaultSource
		}
		out[i] = result.Result{
			Score:   p.round(c.Score),
			Source:  source,
			Content: p.truncate(c.Content),
		}
	}
	return out
}

// round is monotone, so descending order survives it (equal values may become ties).
func (p Presentation) round(score float64) float64 {
	if p.ScorePrecision <= 0 {
		return score
	}
	scale := math.Pow(10, float64(p.ScorePrecision))
	return math.Round(score*scale) / scale
}

func (p Presentation) truncate(s string) string {
	if p.MaxContentChars <= 0 || len(s) <= p.MaxContentChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= p.MaxContentChars {
		return s
	}
	return string(runes[:p.MaxContentChars])
}
