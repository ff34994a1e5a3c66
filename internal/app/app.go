// Package app wires the soar components for one command invocation.
package app

import (
	"context"
	stderrors "errors"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/archive"
	"github.com/pkgforge/soar/pkg/cache"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/hooks"
	"github.com/pkgforge/soar/pkg/installed"
	"github.com/pkgforge/soar/pkg/integrate"
	"github.com/pkgforge/soar/pkg/lifecycle"
	"github.com/pkgforge/soar/pkg/metadata"
	"github.com/pkgforge/soar/pkg/platform"
	"github.com/pkgforge/soar/pkg/reposync"
	"github.com/pkgforge/soar/pkg/resolve"
)

// Options are the global command line settings.
type Options struct {
	ConfigPath   string
	Verbose      bool
	OutputFormat string
	Events       lifecycle.Events
}

// App holds the components of one invocation.
type App struct {
	Config     *config.Config
	ConfigPath string
	Platform   platform.Platform

	Installed  *installed.Store
	Catalog    *metadata.Set
	Resolver   *resolve.Resolver
	Downloader *download.ManagerImpl
	Integrator *integrate.Integrator
	Hooks      *hooks.Manager
	Engine     *lifecycle.Engine
	Sync       *reposync.Engine
	Cache      *cache.Operation
}

// LoadConfig reads the configuration at path, or the default location when
// path is empty, and applies the logging settings.
func LoadConfig(opts Options) (*config.Config, string, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, errors.Wrap(err, "failed to load config")
	}
	if opts.OutputFormat != "" {
		cfg.Settings.OutputFormat = opts.OutputFormat
	}
	level := cfg.Settings.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger.InitLogger(level, logger.OutputFormat(cfg.Settings.OutputFormat))
	return cfg, path, nil
}

// New loads the configuration and opens every store. Close releases them.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, path, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	return Wire(ctx, cfg, path, opts.Events)
}

// Wire builds the components for an already loaded configuration.
func Wire(ctx context.Context, cfg *config.Config, path string, events lifecycle.Events) (*App, error) {
	a := &App{Config: cfg, ConfigPath: path, Platform: platform.CurrentPlatform()}

	store, err := installed.Open(ctx, cfg.InstalledDBPath())
	if err != nil {
		return nil, err
	}
	a.Installed = store

	a.Catalog = metadata.NewSet(reposync.Sources(cfg)...)
	a.Resolver = resolve.New(a.Catalog, a.Installed)

	retry := download.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Settings.MaxRetries
	if cfg.Settings.RetryBaseDelay > 0 {
		retry.BaseDelay = cfg.Settings.RetryBaseDelay
	}
	a.Downloader = download.NewManager(cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent,
		download.WithAuth(cfg.AuthRegistry(a.Platform)),
		download.WithRetry(retry),
	)

	a.Integrator = &integrate.Integrator{
		BinDir:     cfg.BinDir(),
		DesktopDir: cfg.DesktopDir(),
		IconsDir:   cfg.IconsDir(),
		Managed:    managedRoots(cfg),
	}

	a.Hooks, err = hooks.LoadFromConfig(cfg.Hooks)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Engine = lifecycle.New(lifecycle.Deps{
		Config:     cfg,
		Resolver:   a.Resolver,
		Store:      a.Installed,
		Downloader: a.Downloader,
		Linker:     a.Integrator,
		Keyring:    lifecycle.NewConfigKeyring(cfg),
		Hooks:      a.Hooks,
		Archives:   archive.NewManager(),
		Events:     events,
	})

	syncer := metadata.NewSyncer(a.Downloader.Client(), a.Downloader.UserAgent(), a.Downloader.Retry())
	a.Sync = reposync.New(cfg, syncer, a.Catalog, a.Platform)
	a.Cache = cache.NewOperation(cache.NewManager(cfg.CacheDir()))
	return a, nil
}

// managedRoots are the directories soar owns links into.
func managedRoots(cfg *config.Config) []string {
	roots := []string{cfg.PortableDirsBase()}
	for name := range cfg.Profiles {
		if dir, err := cfg.PackagesDir(name); err == nil {
			roots = append(roots, dir)
		}
	}
	return roots
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	if a.Catalog != nil {
		errs = append(errs, a.Catalog.Close())
	}
	if a.Installed != nil {
		errs = append(errs, a.Installed.Close())
	}
	return stderrors.Join(errs...)
}
