package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/reposync"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync [REPO...]",
		Short: "Synchronize repository metadata",
		Long: `Refresh the metadata snapshot of every enabled repository, or of the named ones.
Repositories synced within their sync interval are skipped unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runSync(ctx, cmd, a, force, args)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Sync even when the snapshot is still fresh")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, a *app.App, force bool, names []string) error {
	logger.Debug("Synchronizing repositories", logger.Fields{"force": force})

	results := a.Sync.SyncAll(ctx, force, names...)
	if len(results) == 0 {
		logger.Warn("No enabled repositories to sync")
		return nil
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(out, "✗ %s: %v\n", r.Repo, r.Err)
			continue
		}
		_, _ = fmt.Fprintf(out, "✓ %s: %s\n", r.Repo, r.Outcome)
	}
	if reposync.Failed(results) {
		return ErrOperationFailed
	}
	logger.Success("Repository metadata synchronized")
	return nil
}
