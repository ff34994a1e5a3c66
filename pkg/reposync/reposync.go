// Package reposync refreshes the metadata snapshots of every enabled
// repository with bounded parallelism.
package reposync

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/metadata"
	"github.com/pkgforge/soar/pkg/platform"
)

// Syncer syncs one repository. *metadata.Syncer implements it.
type Syncer interface {
	Sync(ctx context.Context, t metadata.Target, force bool) (metadata.SyncOutcome, error)
}

// Invalidator drops cached handles of a repository whose snapshot was replaced.
type Invalidator interface {
	Invalidate(name string)
}

// Result is the outcome of syncing one repository.
type Result struct {
	Repo     string
	Outcome  metadata.SyncOutcome
	Err      error
	Duration time.Duration
}

// Engine syncs the repositories of a configuration.
type Engine struct {
	cfg      *config.Config
	syncer   Syncer
	set      Invalidator
	platform platform.Platform
}

// New creates an engine. set may be nil.
func New(cfg *config.Config, syncer Syncer, set Invalidator, p platform.Platform) *Engine {
	return &Engine{cfg: cfg, syncer: syncer, set: set, platform: p}
}

// Target builds the sync target of repo.
func Target(cfg *config.Config, repo *config.RepositoryConfig, p platform.Platform) metadata.Target {
	return metadata.Target{
		Name:     repo.Name,
		URL:      repo.ResolvedURL(p),
		PubKey:   repo.PubKey,
		Dir:      cfg.RepositoryDir(repo.Name),
		Interval: cfg.SyncInterval(repo),
	}
}

// Sources lists the snapshot of every enabled repository in declaration order.
func Sources(cfg *config.Config) []metadata.Source {
	var out []metadata.Source
	for i, repo := range cfg.Repositories {
		if !repo.IsEnabled() {
			continue
		}
		out = append(out, metadata.Source{
			Name:     repo.Name,
			Path:     filepath.Join(cfg.RepositoryDir(repo.Name), metadata.SnapshotFile),
			Priority: repo.Priority,
			Index:    i,
		})
	}
	return out
}

// SyncAll syncs every enabled repository, or only the named ones when names
// is non-empty. A failing repository never stops the others; results keep
// configuration order.
func (e *Engine) SyncAll(ctx context.Context, force bool, names ...string) []Result {
	repos := e.selected(names)
	results := make([]Result, len(repos))

	limit := e.cfg.Settings.ParallelLimit
	if limit <= 0 {
		limit = config.DefaultParallelLimit
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, repo := range repos {
		g.Go(func() error {
			results[i] = e.syncOne(ctx, repo, force)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) selected(names []string) []*config.RepositoryConfig {
	enabled := e.cfg.EnabledRepositories()
	if len(names) == 0 {
		return enabled
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []*config.RepositoryConfig
	for _, r := range enabled {
		if want[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) syncOne(ctx context.Context, repo *config.RepositoryConfig, force bool) Result {
	start := time.Now()
	outcome, err := e.syncer.Sync(ctx, Target(e.cfg, repo, e.platform), force)
	res := Result{Repo: repo.Name, Outcome: outcome, Err: err, Duration: time.Since(start)}
	if err != nil {
		logger.Warn("Repository sync failed", logger.Fields{"repo": repo.Name, "error": err.Error()})
		return res
	}
	if outcome != metadata.Updated {
		logger.Debug("Repository synced", logger.Fields{"repo": repo.Name, "outcome": outcome.String()})
		return res
	}
	if e.set != nil {
		e.set.Invalidate(repo.Name)
	}
	logger.Info("Repository metadata updated", logger.Fields{"repo": repo.Name, "duration": res.Duration.String()})
	return res
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
