package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
)

// NewUseCmd creates the use command.
func NewUseCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "use NAME [PKG_ID]",
		Short: "Switch the linked variant of a package",
		Long: `Several variants (pkg_id) of one package name can be installed in a profile,
but only one of them is linked into the bin directory at a time.

Without PKG_ID the installed variants are listed. With PKG_ID that variant is
linked and the others are unlinked.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					return runListVariants(ctx, cmd, a, args[0], profile)
				}
				report := a.Engine.Switch(ctx, args[0], args[1], profile)
				return printReport(cmd.OutOrStdout(), "switched", report)
			})
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile to switch the variant in")

	return cmd
}

func runListVariants(ctx context.Context, cmd *cobra.Command, a *app.App, name, profile string) error {
	recs, err := a.Engine.Variants(ctx, name, profile)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tPKG_ID\tREPOSITORY\tVERSION")
	for _, r := range recs {
		mark := ""
		if !r.Unlinked {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, r.PkgID, r.RepoName, r.Version)
	}
	return w.Flush()
}
