package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/resolve"
)

// NewPinCmd creates the pin command.
func NewPinCmd() *cobra.Command {
	return newPinCmd("pin", true, "Exclude packages from update --all")
}

// NewUnpinCmd creates the unpin command.
func NewUnpinCmd() *cobra.Command {
	return newPinCmd("unpin", false, "Include packages in update --all again")
}

func newPinCmd(use string, pinned bool, short string) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   use + " PACKAGE...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runPin(ctx, cmd, a, args, profile, pinned)
			})
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Only consider packages of this profile")

	return cmd
}

func runPin(ctx context.Context, cmd *cobra.Command, a *app.App, refs []string, profile string, pinned bool) error {
	var failed bool
	for _, raw := range refs {
		recs, err := a.Resolver.ResolveInstalled(ctx, raw, resolve.InstalledOptions{Profile: profile})
		if err != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", raw, err)
			failed = true
			continue
		}
		for _, rec := range recs {
			if err := a.Installed.SetPinned(ctx, rec.ID, pinned); err != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", rec.String(), err)
				failed = true
				continue
			}
			logger.Debug("Pinned state changed", logger.Fields{"package": rec.String(), "pinned": pinned})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", cmd.Name()+"ned", rec.String())
		}
	}
	if failed {
		return ErrOperationFailed
	}
	return nil
}
