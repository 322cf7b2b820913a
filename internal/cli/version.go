package cli

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/faqsearch/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			writeLine(cmd.OutOrStdout(), "faqsearch "+version.String())
		},
	}
}
