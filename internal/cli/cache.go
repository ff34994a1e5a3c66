package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/cache"
	"github.com/pkgforge/soar/pkg/lifecycle"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	var (
		partials  bool
		downloads bool
		broken    bool
		profile   string
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the download cache and broken installs",
		Long: `Remove cached downloads and partial transfers. With --broken, also remove
records of interrupted installs and of packages whose files have disappeared.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !broken {
				return runCacheClean(cmd, !partials && !downloads, partials, downloads)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := a.Engine.CleanBroken(ctx, lifecycle.RemoveOptions{Profile: profile})
				if err := printReport(cmd.OutOrStdout(), "cleaned", report); err != nil {
					return err
				}
				if partials || downloads {
					return runCacheClean(cmd, false, partials, downloads)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&partials, "partials", false, "Only remove partial downloads")
	cmd.Flags().BoolVar(&downloads, "downloads", false, "Only remove completed downloads")
	cmd.Flags().BoolVar(&broken, "broken", false, "Remove broken and interrupted installs")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Only clean broken installs of this profile")

	return cmd
}

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the download cache",
		Long:  "Show information about the download cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show cache information",
			RunE: func(cmd *cobra.Command, _ []string) error {
				op, err := cacheOperation()
				if err != nil {
					return err
				}
				info, err := op.GetInfo()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), info)
				return nil
			},
		},
		&cobra.Command{
			Use:   "dir",
			Short: "Show cache directory path",
			RunE: func(cmd *cobra.Command, _ []string) error {
				op, err := cacheOperation()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), op.GetDirectory())
				return nil
			},
		},
	)

	return cmd
}

func cacheOperation() (*cache.Operation, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.NewOperation(cache.NewManager(cfg.CacheDir())), nil
}

func runCacheClean(cmd *cobra.Command, all, partials, downloads bool) error {
	op, err := cacheOperation()
	if err != nil {
		return err
	}
	msg, err := op.Clean(all, partials, downloads)
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
	logger.Debug("Cache cleaned", logger.Fields{"dir": op.GetDirectory()})
	return nil
}
