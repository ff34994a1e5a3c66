package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/app"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/lifecycle"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
)

// ErrOperationFailed is returned when at least one package of a batch failed.
// The per-package errors have already been printed.
var ErrOperationFailed = fmt.Errorf("one or more packages failed")

func options() app.Options {
	var opts app.Options
	if ConfigPath != nil {
		opts.ConfigPath = *ConfigPath
	}
	if Verbose != nil {
		opts.Verbose = *Verbose
	}
	if OutputFormat != nil {
		opts.OutputFormat = *OutputFormat
	}
	return opts
}

// loadConfig reads the configuration without opening any store.
func loadConfig() (*config.Config, string, error) {
	return app.LoadConfig(options())
}

// withApp opens the application context for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	opts := options()
	opts.Events = lifecycle.Events{OnEvent: newEventPrinter(cmd.ErrOrStderr(), opts.Verbose)}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

// printReport writes one line per package and returns ErrOperationFailed
// when any of them failed.
func printReport(w io.Writer, verb string, report *lifecycle.Report) error {
	for _, o := range report.Outcomes {
		name := o.Package
		if name == "" {
			name = o.Ref
		}
		switch {
		case o.Failed():
			_, _ = fmt.Fprintf(w, "✗ %s: %v\n", name, o.Err)
		case o.Skipped:
			_, _ = fmt.Fprintf(w, "- %s (%s): %s\n", name, o.Version, o.Message)
		default:
			_, _ = fmt.Fprintf(w, "✓ %s %s (%s)\n", verb, name, o.Version)
			if o.Message != "" {
				_, _ = fmt.Fprintf(w, "  warning: %s\n", o.Message)
			}
		}
	}
	ok, skipped, failed := report.Counts()
	_, _ = fmt.Fprintf(w, "%d %s, %d skipped, %d failed\n", ok, verb, skipped, failed)
	if report.Failed() {
		return ErrOperationFailed
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
