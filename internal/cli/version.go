package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version information for soar",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "soar version %s\n", Version)
			_, _ = fmt.Fprintf(out, "Build date: %s\n", BuildDate)
			_, _ = fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
		},
	}
}
