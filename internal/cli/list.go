package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var (
		nameFilter string
		profile    string
		pending    bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "info"},
		Short:   "List installed packages",
		Long: `List installed packages from the installed-state database.

Use --name to filter packages by name and --pending to include installs that
were interrupted before they completed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				pred := query.New().OrderBy(query.FieldPkgName, false)
				if nameFilter != "" {
					pred = pred.Where(query.Contains(query.FieldPkgName, nameFilter))
				}
				if profile != "" {
					pred = pred.Where(query.Eq(query.FieldProfile, profile))
				}
				if !pending {
					pred = pred.Where(query.Eq(query.FieldIsInstalled, true))
				}
				recs, err := a.Installed.Find(ctx, pred)
				if err != nil {
					return fmt.Errorf("failed to list installed packages: %w", err)
				}
				return printInstalled(cmd, recs)
			})
		},
	}

	cmd.Flags().StringVar(&nameFilter, "name", "", "Filter packages by name (partial match)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Only list packages of this profile")
	cmd.Flags().BoolVar(&pending, "pending", false, "Include interrupted installs")

	return cmd
}

func printInstalled(cmd *cobra.Command, recs []model.InstalledPackage) error {
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(out, "No packages installed")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(w, "PACKAGE\tVERSION\tPROFILE\tSIZE\tSTATUS")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s#%s:%s\t%s\t%s\t%s\t%s\n",
			r.PkgName, r.PkgID, r.RepoName, r.Version, r.Profile, formatSize(r.Size), status(&r))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\n%d package(s)\n", len(recs))
	return nil
}

func status(r *model.InstalledPackage) string {
	var flags []string
	if !r.IsInstalled {
		flags = append(flags, "pending")
	}
	if r.Pinned {
		flags = append(flags, "pinned")
	}
	if r.Unlinked {
		flags = append(flags, "unlinked")
	}
	if r.Detached {
		flags = append(flags, "detached")
	}
	if !r.Portable.IsZero() {
		flags = append(flags, "portable")
	}
	if len(flags) == 0 {
		return "installed"
	}
	return strings.Join(flags, ",")
}
