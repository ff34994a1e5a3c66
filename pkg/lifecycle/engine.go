// Package lifecycle installs, updates and removes packages.
//
// Every install walks RESOLVED, DOWNLOADING, VERIFYING, STAGING, INTEGRATING
// and COMMITTED in order. The installed-state row is promoted last, so a
// failure at any earlier phase leaves the previous install usable.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pkgforge/soar/pkg/archive"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/hooks"
	"github.com/pkgforge/soar/pkg/lock"
)

// MarkerFile is written into an install directory while its record is pending.
const MarkerFile = ".soar-install"

// Deps are the collaborators of an Engine.
type Deps struct {
	Config     *config.Config
	Resolver   Resolver
	Store      Store
	Downloader download.Manager
	Linker     Linker
	Keyring    Keyring
	Hooks      hooks.Runner
	Archives   *archive.Manager
	Events     Events
}

// Engine sequences downloads, filesystem changes and store commits.
type Engine struct {
	cfg      *config.Config
	resolver Resolver
	store    Store
	dl       download.Manager
	linker   Linker
	keys     Keyring
	hooks    hooks.Runner
	archives *archive.Manager
	events   Events
}

// New constructs an Engine. Hooks and Keyring may be nil.
func New(d Deps) *Engine {
	e := &Engine{
		cfg:      d.Config,
		resolver: d.Resolver,
		store:    d.Store,
		dl:       d.Downloader,
		linker:   d.Linker,
		keys:     d.Keyring,
		hooks:    d.Hooks,
		archives: d.Archives,
		events:   d.Events,
	}
	if e.archives == nil {
		e.archives = archive.NewManager()
	}
	return e
}

func (e *Engine) parallel() int {
	if n := e.cfg.Settings.Parallel; n > 0 {
		return n
	}
	return config.DefaultParallel
}

// forEach runs fn for every index with bounded parallelism. fn reports
// its own outcome, so one failure never stops the others.
func (e *Engine) forEach(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(e.parallel())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// profileLocks holds the advisory locks of one batch operation.
type profileLocks struct {
	dir  string
	held map[string]*lock.Lock
}

func (e *Engine) newLocks() *profileLocks {
	return &profileLocks{dir: e.cfg.LockDir(), held: make(map[string]*lock.Lock)}
}

func (l *profileLocks) acquire(profile string) error {
	if _, ok := l.held[profile]; ok {
		return nil
	}
	lk, err := lock.Acquire(l.dir, profile)
	if err != nil {
		return err
	}
	l.held[profile] = lk
	return nil
}

func (l *profileLocks) release() {
	for _, lk := range l.held {
		_ = lk.Release()
	}
}

// installDirName derives a directory name unique per package build so
// several versions and profiles can coexist.
func installDirName(pkgName, pkgID, checksum, version string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", "\\", "_")
	suffix := strings.ToLower(checksum)
	if len(suffix) > 12 {
		suffix = suffix[:12]
	}
	if suffix == "" {
		suffix = safe.Replace(version)
	}
	return fmt.Sprintf("%s-%s-%s", safe.Replace(pkgName), safe.Replace(pkgID), suffix)
}

// marker identifies the build a pending install directory belongs to.
type marker struct {
	PkgID    string `json:"pkg_id"`
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
}

func readMarker(dir string) (*marker, bool) {
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		return nil, false
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func writeMarker(dir string, m marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filepath.Join(dir, MarkerFile), data, fsutil.FileModeSecure)
}

// prepareInstallDir makes dir ready for staging m. A directory left behind by
// an interrupted install of the same build is reused; anything else is wiped.
func prepareInstallDir(dir string, m marker) (resumed bool, err error) {
	if prev, ok := readMarker(dir); ok && *prev == m {
		return true, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, errors.Filesystem(err, "could not clean install dir %s", dir)
	}
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return false, errors.Filesystem(err, "could not create install dir %s", dir)
	}
	if err := writeMarker(dir, m); err != nil {
		return false, errors.Filesystem(err, "could not write install marker")
	}
	return false, nil
}

func label(name, id, repo string) string {
	return name + "#" + id + ":" + repo
}

func (e *Engine) runHook(ctx context.Context, t hooks.HookType, hc hooks.HookContext) error {
	if e.hooks == nil {
		return nil
	}
	return e.hooks.Run(ctx, t, hc)
}
