package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/pkg/cache"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
	"github.com/pkgforge/soar/pkg/resolve"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var (
		limit int
		repo  string
	)

	cmd := &cobra.Command{
		Use:     "search TERM",
		Aliases: []string{"s", "find"},
		Short:   "Search available packages",
		Long: `Search the synced repository metadata for packages whose name, description
or provided executables contain TERM.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if limit <= 0 {
					limit = a.Config.Settings.SearchLimit
				}
				term := args[0]
				pred := query.New(query.Or(
					query.Contains(query.FieldPkgName, term),
					query.Contains(query.FieldDescription, term),
					query.Contains(query.FieldProvides, term),
				)).WithLimit(limit)
				if repo != "" {
					pred = pred.Where(query.Eq(query.FieldRepo, repo))
				}
				pkgs, err := a.Catalog.Query(ctx, pred)
				if err != nil {
					return fmt.Errorf("failed to search packages: %w", err)
				}
				if len(pkgs) > limit {
					pkgs = pkgs[:limit]
				}
				return printPackages(cmd, pkgs)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of results (default from settings)")
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "Only search this repository")

	return cmd
}

func printPackages(cmd *cobra.Command, pkgs []model.Package) error {
	out := cmd.OutOrStdout()
	if len(pkgs) == 0 {
		_, _ = fmt.Fprintln(out, "No packages found")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(w, "PACKAGE\tVERSION\tTYPE\tDESCRIPTION")
	for _, p := range pkgs {
		_, _ = fmt.Fprintf(w, "%s#%s:%s\t%s\t%s\t%s\n",
			p.PkgName, p.PkgID, p.RepoName, p.Version, p.PkgType, truncate(p.Description, MaxDescriptionLength))
	}
	return w.Flush()
}

// NewQueryCmd creates the query command.
func NewQueryCmd() *cobra.Command {
	var exact bool

	cmd := &cobra.Command{
		Use:     "query PACKAGE",
		Aliases: []string{"Q"},
		Short:   "Show details of available packages",
		Long: `Resolve a package reference against the synced repositories and print every
matching candidate in resolution order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cands, err := a.Resolver.Resolve(ctx, args[0], resolve.Options{ExactName: exact})
				if err != nil {
					return err
				}
				for i, c := range cands {
					if i > 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout())
					}
					printDetails(cmd, &c.Package)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&exact, "exact", false, "Match the package name only, not provided executables")

	return cmd
}

func printDetails(cmd *cobra.Command, p *model.Package) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	row := func(key, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", key, value)
		}
	}
	row("Name", p.PkgName)
	row("Package ID", p.PkgID)
	row("Repository", p.RepoName)
	row("Version", p.Version)
	row("Type", p.PkgType)
	row("Family", p.Family)
	row("Description", p.Description)
	if p.Size > 0 {
		row("Size", formatSize(p.Size))
	}
	row("Checksum", p.Checksum)
	row("Download URL", p.DownloadURL)
	row("Homepage", strings.Join(p.Homepages, ", "))
	row("License", strings.Join(p.Licenses, ", "))
	row("Tags", strings.Join(p.Tags, ", "))
	var provides []string
	for _, pr := range p.Provides {
		provides = append(provides, pr.String())
	}
	row("Provides", strings.Join(provides, ", "))
	var maintainers []string
	for _, m := range p.Maintainers {
		maintainers = append(maintainers, m.String())
	}
	row("Maintainers", strings.Join(maintainers, ", "))
	row("Build date", p.BuildDate)
	_ = w.Flush()
}

func formatSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return cache.FormatBytes(n)
}
