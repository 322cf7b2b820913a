package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/faqsearch/internal/domain"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

type stubSearcher struct {
	results  []result.Result
	err      error
	lastTopK *int
}

func (s *stubSearcher) Search(_ context.Context, _ string, topK *int) ([]result.Result, error) {
	s.lastTopK = topK
	return s.results, s.err
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "faqsearch dev") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestQueryCmd_RequiresQueryFlag(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"query"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing --query")
	}
}

func TestQueryCmd_MissingConfigFile(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"query", "-q", "refund", "--config", "/nonexistent/faqsearch.yaml"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRunQuery_PrintsJSON(t *testing.T) {
	s := &stubSearcher{results: []result.Result{{Score: 0.9, Source: "policy.md", Content: "Refunds..."}}}
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	k := 2
	if err := runQuery(context.Background(), cmd, s, &queryOptions{text: "refund", compact: true}, &k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []result.Result
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out.String())
	}
	if len(got) != 1 || got[0].Source != "policy.md" {
		t.Errorf("unexpected output %v", got)
	}
	if s.lastTopK == nil || *s.lastTopK != 2 {
		t.Errorf("expected top_k 2 forwarded, got %v", s.lastTopK)
	}
}

func TestRunQuery_EmptyPrintsArray(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runQuery(context.Background(), cmd, &stubSearcher{results: []result.Result{}}, &queryOptions{compact: true}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("expected [], got %q", out.String())
	}
}

func TestRunQuery_Error(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	s := &stubSearcher{err: domain.NewUpstreamError("openai", "embed", domain.ErrUpstreamAuth, errors.New("401"))}

	err := runQuery(context.Background(), cmd, s, &queryOptions{text: "q"}, nil)
	if !errors.Is(err, domain.ErrUpstreamAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestLoggerEnv(t *testing.T) {
	for in, want := range map[string]string{"prod": "prod", "local": "local", "staging": "dev", "": "dev"} {
		if got := loggerEnv(in); got != want {
			t.Errorf("loggerEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
