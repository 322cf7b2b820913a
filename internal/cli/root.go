// Package cli implements the faqsearch command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqsearch/internal/config"
	logpkg "github.com/kailas-cloud/faqsearch/internal/logger"
)

type rootOptions struct {
	env        string
	configFile string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
}

// NewRootCmd builds the faqsearch command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "faqsearch",
		Short: "Semantic search over policy and FAQ documents",
		Long: `faqsearch embeds a natural-language question, queries a vector index and
returns the most relevant passages as a small JSON list.

Example usage:
  faqsearch serve                          # Run the HTTP API
  faqsearch query -q "refund policy" -k 2  # Run one search and print JSON
  faqsearch version                        # Print build metadata`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.env, "env", "e", config.GetEnv(), "environment (selects config/<env>.yaml)")
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (overrides --env lookup)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newQueryCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// load reads configuration and builds the logger. Called by commands that need both.
func (o *rootOptions) load() error {
	var err error
	if o.configFile != "" {
		o.cfg, err = config.LoadFile(o.configFile)
	} else {
		o.cfg, err = config.Load(o.env)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := o.cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	o.logger, err = logpkg.NewLogger(loggerEnv(o.env), level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

// loggerEnv maps unknown environments onto the development encoder.
func loggerEnv(env string) string {
	switch env {
	case "prod", "local", "dev", "docker":
		return env
	default:
		return "dev"
	}
}

func writeLine(w io.Writer, s string) {
	_, _ = fmt.Fprintln(w, s)
}
