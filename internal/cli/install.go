package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/integrate"
	"github.com/pkgforge/soar/pkg/lifecycle"
)

type installFlags struct {
	profile   string
	force     bool
	yes       bool
	noDesktop bool
	url       string
	name      string
	pkgID     string
	version   string
	portable  map[string]*string
}

// portableFlagNames maps command line flags to portable directory kinds.
var portableFlagNames = []string{"portable", "portable-home", "portable-config", "portable-share", "portable-cache"}

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	f := &installFlags{portable: make(map[string]*string)}

	cmd := &cobra.Command{
		Use:     "install [PACKAGE...]",
		Aliases: []string{"i", "add"},
		Short:   "Install packages",
		Long: `Install one or more packages from the configured repositories.

A package is referenced as name, name#pkg_id, name:repo, name@version or any
combination, e.g. ripgrep#github.com.burntsushi.ripgrep:bincache.
Use --url to install a file or URL that is not part of any repository.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && f.url == "" {
				return errors.ErrNoPackagesSpecified
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := a.Engine.Install(ctx, args, f.options(cmd))
				return printReport(cmd.OutOrStdout(), "installed", report)
			})
		},
	}

	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "Profile to install into")
	cmd.Flags().BoolVar(&f.force, "force", false, "Reinstall packages that are already installed")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Pick the first candidate when a reference is ambiguous")
	cmd.Flags().BoolVar(&f.noDesktop, "no-desktop", false, "Skip desktop entries and icons")
	cmd.Flags().StringVar(&f.url, "url", "", "Install a file or URL without repository metadata")
	cmd.Flags().StringVar(&f.name, "name", "", "Package name for --url (defaults to the file name)")
	cmd.Flags().StringVar(&f.pkgID, "pkg-id", "", "Package id for --url")
	cmd.Flags().StringVar(&f.version, "version", "", "Version recorded for --url")
	for _, name := range portableFlagNames {
		f.portable[name] = new(string)
		cmd.Flags().StringVar(f.portable[name], name, "", "Portable directory (empty value uses the default location)")
		cmd.Flags().Lookup(name).NoOptDefVal = " "
	}

	return cmd
}

func (f *installFlags) options(cmd *cobra.Command) lifecycle.InstallOptions {
	opts := lifecycle.InstallOptions{
		Profile:   f.profile,
		Force:     f.force,
		Yes:       f.yes,
		NoDesktop: f.noDesktop,
		Portable:  f.portableFlags(cmd),
	}
	if f.url != "" {
		opts.Detached = &lifecycle.DetachedSource{URL: f.url, Name: f.name, PkgID: f.pkgID, Version: f.version}
	}
	return opts
}

// portableFlags keeps only the flags given on the command line. A flag given
// without a value selects the default location.
func (f *installFlags) portableFlags(cmd *cobra.Command) integrate.PortableFlags {
	get := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v := *f.portable[name]
		if v == " " {
			v = ""
		}
		return &v
	}
	return integrate.PortableFlags{
		Path:   get("portable"),
		Home:   get("portable-home"),
		Config: get("portable-config"),
		Share:  get("portable-share"),
		Cache:  get("portable-cache"),
	}
}
