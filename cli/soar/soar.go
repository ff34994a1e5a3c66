package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/cli"
)

var (
	configPath   string
	verbose      bool
	outputFormat string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if err != cli.ErrOperationFailed {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soar",
		Short: "A portable package manager for static binaries and AppImages",
		Long: `soar installs prebuilt static binaries, AppImages and archives from
package repositories without root:
- sync, search and query repository metadata
- install, update and remove packages per profile
- manage repositories and configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: $SOAR_CONFIG or ~/.config/soar/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "log output format (text, json)")

	// Set up CLI package variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose
	cli.OutputFormat = &outputFormat

	cmd.AddCommand(
		cli.NewSyncCmd(),
		cli.NewInstallCmd(),
		cli.NewRemoveCmd(),
		cli.NewUpdateCmd(),
		cli.NewSearchCmd(),
		cli.NewQueryCmd(),
		cli.NewListCmd(),
		cli.NewPinCmd(),
		cli.NewUnpinCmd(),
		cli.NewUseCmd(),
		cli.NewCleanCmd(),
		cli.NewCacheCmd(),
		cli.NewConfigCmd(),
		cli.NewRepoCmd(),
		cli.NewJSON2DBCmd(),
		cli.NewHookCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
