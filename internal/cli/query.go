package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/faqsearch/internal/app"
	"github.com/kailas-cloud/faqsearch/internal/domain/search/result"
)

type searcher interface {
	Search(ctx context.Context, text string, topK *int) ([]result.Result, error)
}

type queryOptions struct {
	text    string
	topK    int
	timeout time.Duration
	compact bool
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one search in-process and print the results as JSON",
		Long: `Embed the question, query the vector index and print the ranked results.

Examples:
  faqsearch query -q "refund policy"
  faqsearch query -q "how long does shipping take" -k 5 --compact`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := root.load(); err != nil {
				return err
			}
			defer func() { _ = root.logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, err := app.Build(ctx, &root.cfg, root.logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			defer a.Close()

			var topK *int
			if cmd.Flags().Changed("top-k") {
				topK = &opts.topK
			}
			return runQuery(ctx, cmd, a.Search, opts, topK)
		},
	}

	cmd.Flags().StringVarP(&opts.text, "query", "q", "", "search query (required)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print JSON on a single line")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, s searcher, opts *queryOptions, topK *int) error {
	results, err := s.Search(ctx, opts.text, topK)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}
