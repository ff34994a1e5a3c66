package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/lifecycle"
)

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	var (
		all     bool
		check   bool
		profile string
	)

	cmd := &cobra.Command{
		Use:     "update [PACKAGE...]",
		Aliases: []string{"u", "upgrade"},
		Short:   "Update installed packages",
		Long: `Update the named packages, or every unpinned package with --all.
Pinned packages are only updated when named explicitly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all && !check {
				return errors.ErrNoPackagesSpecified
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				opts := lifecycle.UpdateOptions{Profile: profile, All: all}
				if check {
					return runUpdateCheck(ctx, cmd, a, opts)
				}
				return printReport(cmd.OutOrStdout(), "updated", a.Engine.Update(ctx, args, opts))
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Update all installed packages")
	cmd.Flags().BoolVar(&check, "check", false, "Only list available updates")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Only consider packages of this profile")

	return cmd
}

func runUpdateCheck(ctx context.Context, cmd *cobra.Command, a *app.App, opts lifecycle.UpdateOptions) error {
	available, err := a.Engine.Check(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	if len(available) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "All packages are up to date")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(w, "PACKAGE\tINSTALLED\tAVAILABLE\tPROFILE")
	for _, u := range available {
		_, _ = fmt.Fprintf(w, "%s#%s:%s\t%s\t%s\t%s\n",
			u.Installed.PkgName, u.Installed.PkgID, u.Installed.RepoName,
			u.Installed.Version, u.Latest.Version, u.Installed.Profile)
	}
	return w.Flush()
}
