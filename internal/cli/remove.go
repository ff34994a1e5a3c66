package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/pkg/lifecycle"
)

// NewRemoveCmd creates the remove command.
func NewRemoveCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:     "remove PACKAGE...",
		Aliases: []string{"r", "uninstall", "del"},
		Short:   "Remove installed packages",
		Long: `Remove installed packages: their links, desktop entries, install directory
and installed record. Files that are already missing do not fail the removal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := a.Engine.Remove(ctx, args, lifecycle.RemoveOptions{Profile: profile})
				return printReport(cmd.OutOrStdout(), "removed", report)
			})
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Only remove from this profile")

	return cmd
}
