package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/faqsearch/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNew_DefaultTopK(t *testing.T) {
	q, err := New("refund policy", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TopK() != DefaultTopK {
		t.Errorf("expected default top_k %d, got %d", DefaultTopK, q.TopK())
	}

	explicit, err := New("refund policy", intPtr(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explicit != q {
		t.Errorf("omitted top_k should equal top_k=3: %+v vs %+v", q, explicit)
	}
}

func TestNew_TrimsText(t *testing.T) {
	q, err := New("  shipping times \n", intPtr(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "shipping times" {
		t.Errorf("expected trimmed text, got %q", q.Text())
	}
	if q.TopK() != 2 {
		t.Errorf("expected top_k 2, got %d", q.TopK())
	}
}

func TestNew_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
		topK *int
	}{
		{"empty query", "", nil},
		{"whitespace query", " \t\n ", nil},
		{"zero top_k", "refunds", intPtr(0)},
		{"negative top_k", "refunds", intPtr(-4)},
		{"too long", strings.Repeat("a", DefaultMaxQueryLength+1), nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.text, tc.topK)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestLimits_ClampsTopK(t *testing.T) {
	l := Limits{MaxTopK: 10}
	q, err := l.New("warranty", intPtr(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TopK() != 10 {
		t.Errorf("expected clamp to 10, got %d", q.TopK())
	}
}

func TestLimits_ZeroMeansUnbounded(t *testing.T) {
	q, err := Limits{}.New(strings.Repeat("b", 10000), intPtr(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TopK() != 1000 {
		t.Errorf("expected top_k 1000, got %d", q.TopK())
	}
}

func TestLimits_ConfiguredDefaultTopK(t *testing.T) {
	q, err := Limits{DefaultTopK: 5}.New("returns", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TopK() != 5 {
		t.Errorf("expected top_k 5, got %d", q.TopK())
	}

	q, err = Limits{}.New("returns", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TopK() != DefaultTopK {
		t.Errorf("expected fallback top_k %d, got %d", DefaultTopK, q.TopK())
	}
}
