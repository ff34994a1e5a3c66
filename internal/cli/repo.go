package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/errors"
)

// NewRepoCmd creates the repo command with subcommands.
func NewRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repositories",
		Long:  "Add, remove, list, enable and disable package repositories",
	}

	cmd.AddCommand(
		newRepoAddCmd(),
		newRepoRemoveCmd(),
		newRepoListCmd(),
		newRepoToggleCmd("enable", true),
		newRepoToggleCmd("disable", false),
	)

	return cmd
}

func newRepoAddCmd() *cobra.Command {
	var (
		priority     int
		pubKey       string
		syncInterval string
	)

	cmd := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Add a repository",
		Long:  "Add a repository. The URL may contain {platform}, e.g. https://example.com/{platform}/metadata.db",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			repo := &config.RepositoryConfig{
				Name:         args[0],
				URL:          args[1],
				Priority:     priority,
				PubKey:       pubKey,
				SyncInterval: syncInterval,
			}
			return updateConfig(func(cfg *config.Config) error {
				if err := cfg.AddRepository(repo); err != nil {
					return err
				}
				logger.Success("Repository added", logger.Fields{"name": repo.Name, "url": repo.URL})
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Repository priority (higher numbers win)")
	cmd.Flags().StringVar(&pubKey, "pubkey", "", "URL of the repository's minisign public key")
	cmd.Flags().StringVar(&syncInterval, "sync-interval", "", "Sync interval (always, never, 3h, 1d)")

	return cmd
}

func newRepoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return updateConfig(func(cfg *config.Config) error {
				if !cfg.RemoveRepository(args[0]) {
					return errors.ErrRepoNotConfiguredWithName(args[0])
				}
				logger.Success("Repository removed", logger.Fields{"name": args[0]})
				return nil
			})
		},
	}
}

func newRepoToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME",
		Short: use + " a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return updateConfig(func(cfg *config.Config) error {
				if !cfg.EnableRepository(args[0], enabled) {
					return errors.ErrRepoNotConfiguredWithName(args[0])
				}
				logger.Success("Repository updated", logger.Fields{"name": args[0], "enabled": enabled})
				return nil
			})
		},
	}
}

func newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured repositories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
				_, _ = fmt.Fprintln(w, "NAME\tPRIORITY\tENABLED\tSIGNED\tSYNC\tPACKAGES\tURL")
				for _, r := range a.Config.Repositories {
					count := "-"
					if r.IsEnabled() {
						n, err := a.Catalog.Count(ctx, r.Name)
						if err != nil {
							logger.Debug("Could not count packages", logger.Fields{"repo": r.Name, "error": err.Error()})
						} else {
							count = strconv.Itoa(n)
						}
					}
					_, _ = fmt.Fprintf(w, "%s\t%d\t%t\t%t\t%s\t%s\t%s\n",
						r.Name, r.Priority, r.IsEnabled(), a.Config.SignatureVerification(r.Name), a.Config.SyncInterval(r), count, r.URL)
				}
				return w.Flush()
			})
		},
	}
}

// updateConfig loads the configuration, applies fn and saves the result.
func updateConfig(fn func(cfg *config.Config) error) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrapf(errors.ErrConfigValidation, "%s", err.Error())
	}
	return cfg.SaveConfig(path)
}
