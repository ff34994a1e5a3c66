package lifecycle

import (
	"context"
	stderrors "errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/archive"
	"github.com/pkgforge/soar/pkg/cache"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/hooks"
	"github.com/pkgforge/soar/pkg/integrate"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
	"github.com/pkgforge/soar/pkg/resolve"
	"github.com/pkgforge/soar/pkg/verify"
)

// plan is one package to take through the install pipeline.
type plan struct {
	ref       string
	cand      model.Candidate
	profile   string
	old       *model.InstalledPackage
	portable  integrate.PortableFlags
	desktop   bool
	detached  bool
	withPkgID bool
}

// Install resolves refs and installs every selected package into opts.Profile.
// Each package gets its own outcome; a failure never aborts the others.
func (e *Engine) Install(ctx context.Context, refs []string, opts InstallOptions) *Report {
	report := &Report{}
	profile := e.cfg.ProfileName(opts.Profile)
	if len(refs) == 0 && opts.Detached == nil {
		report.fail("", PhaseResolved, errors.ErrNoPackagesSpecified)
		return report
	}

	locks := e.newLocks()
	defer locks.release()
	err := e.checkProfile(profile)
	if err == nil {
		err = locks.acquire(profile)
	}
	if err != nil {
		for _, raw := range refs {
			report.fail(raw, PhaseResolved, err)
		}
		if opts.Detached != nil {
			report.fail(opts.Detached.URL, PhaseResolved, err)
		}
		return report
	}

	var plans []plan
	if d := opts.Detached; d != nil {
		cand, err := detachedCandidate(d)
		if err != nil {
			report.fail(d.URL, PhaseResolved, err)
		} else {
			plans = append(plans, plan{ref: d.URL, cand: cand, detached: true, withPkgID: d.PkgID != ""})
		}
	}

	mode := resolve.ModeStrict
	if opts.Yes {
		mode = resolve.ModeFirst
	}
	for _, raw := range refs {
		cands, err := e.resolver.Select(ctx, raw, mode)
		if err != nil {
			report.fail(raw, PhaseResolved, err)
			continue
		}
		ref, _ := model.ParseRef(raw)
		for _, c := range cands {
			plans = append(plans, plan{ref: raw, cand: c, withPkgID: ref.PkgID != ""})
		}
	}

	e.forEach(len(plans), func(i int) {
		p := plans[i]
		p.profile = profile
		p.portable = opts.Portable
		p.desktop = !opts.NoDesktop && e.desktopEnabled(&p.cand.Package)

		pkg := &p.cand.Package
		old, err := e.existing(ctx, pkg, profile)
		if err != nil {
			report.fail(p.ref, PhaseResolved, err)
			return
		}
		if old != nil && !opts.Force {
			report.skip(p.ref, label(pkg.PkgName, pkg.PkgID, pkg.RepoName), old.Version, "already installed")
			return
		}
		p.old = old
		report.add(e.installOne(ctx, p))
	})
	return report
}

// checkProfile rejects profiles the configuration does not define.
func (e *Engine) checkProfile(profile string) error {
	_, err := e.cfg.PackagesDir(profile)
	return err
}

func (e *Engine) desktopEnabled(pkg *model.Package) bool {
	if pkg.DesktopIntegration != nil && !*pkg.DesktopIntegration {
		return false
	}
	return e.cfg.DesktopIntegration(pkg.RepoName)
}

// existing returns the installed record of exactly this package in profile.
func (e *Engine) existing(ctx context.Context, pkg *model.Package, profile string) (*model.InstalledPackage, error) {
	recs, err := e.store.Find(ctx, query.New(
		query.EqFold(query.FieldPkgName, pkg.PkgName),
		query.Eq(query.FieldPkgID, pkg.PkgID),
		query.Eq(query.FieldRepo, pkg.RepoName),
		query.Eq(query.FieldProfile, profile),
		query.Eq(query.FieldIsInstalled, true),
	))
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func detachedCandidate(d *DetachedSource) (model.Candidate, error) {
	if strings.TrimSpace(d.URL) == "" {
		return model.Candidate{}, errors.Wrap(errors.ErrInvalidReference, "detached install needs a URL or file")
	}
	name := d.Name
	if name == "" {
		name = download.FilenameFromURL(d.URL)
	}
	if name == "" {
		return model.Candidate{}, errors.Wrapf(errors.ErrInvalidReference, "cannot derive a package name from %s", d.URL)
	}
	name = strings.ToLower(name)
	id := d.PkgID
	if id == "" {
		id = name
	}
	ver := d.Version
	if ver == "" {
		ver = "unknown"
	}
	return model.Candidate{Package: model.Package{
		RepoName:    config.LocalRepositoryName,
		Pkg:         name,
		PkgName:     name,
		PkgID:       id,
		Version:     ver,
		DownloadURL: d.URL,
	}}, nil
}

// installOne walks p through every phase. It never panics the batch: the
// outcome carries the phase reached and the error, if any.
func (e *Engine) installOne(ctx context.Context, p plan) Outcome {
	pkg := p.cand.Package
	id := label(pkg.PkgName, pkg.PkgID, pkg.RepoName)
	out := Outcome{Ref: p.ref, Package: id, Version: pkg.Version, Phase: PhaseResolved}
	fail := func(phase Phase, err error) Outcome {
		out.Phase = phase
		out.Err = err
		e.events.emit(Event{Phase: phase, ID: id, Msg: err.Error()})
		return out
	}
	e.events.emit(Event{Phase: PhaseResolved, ID: id, Msg: pkg.Version})

	verifier, err := e.verifier(pkg.RepoName)
	if err != nil {
		return fail(PhaseResolved, err)
	}

	e.events.emit(Event{Phase: PhaseDownloading, ID: id})
	payload, sig, err := e.download(ctx, &pkg, id, verifier != nil)
	if err != nil {
		return fail(PhaseDownloading, err)
	}

	e.events.emit(Event{Phase: PhaseVerifying, ID: id})
	if err := verifyPayload(&pkg, payload, sig, verifier); err != nil {
		_ = fsutil.RemoveIfExists(payload)
		_ = fsutil.RemoveIfExists(sig)
		return fail(PhaseVerifying, err)
	}

	packagesDir, err := e.cfg.PackagesDir(p.profile)
	if err != nil {
		return fail(PhaseStaging, err)
	}
	installDir := filepath.Join(packagesDir, installDirName(pkg.PkgName, pkg.PkgID, pkg.Checksum, pkg.Version))
	if p.old != nil && filepath.Clean(p.old.InstalledPath) == installDir {
		// a forced reinstall of the same build must not touch the live directory
		installDir += "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	hc := hooks.HookContext{
		InstallDir: installDir,
		BinDir:     e.cfg.BinDir(),
		PkgName:    pkg.PkgName,
		PkgID:      pkg.PkgID,
		PkgVersion: pkg.Version,
		Profile:    p.profile,
	}
	if err := e.runHook(ctx, hooks.PostDownload, hc); err != nil {
		_ = fsutil.RemoveIfExists(payload)
		return fail(PhaseVerifying, err)
	}

	e.events.emit(Event{Phase: PhaseStaging, ID: id})
	rec, kind, err := e.stage(ctx, p, &pkg, payload, installDir)
	_ = fsutil.RemoveIfExists(sig)
	if err != nil {
		if rec != nil {
			e.discard(ctx, installDir, rec.ID, err)
		}
		_ = fsutil.RemoveIfExists(payload)
		return fail(PhaseStaging, err)
	}
	if err := e.runHook(ctx, hooks.PostExtract, hc); err != nil {
		e.discard(ctx, installDir, rec.ID, err)
		return fail(PhaseStaging, err)
	}

	e.events.emit(Event{Phase: PhaseIntegrating, ID: id})
	err = kind.Integrate(ctx, formats.IntegrateRequest{
		InstallDir: installDir,
		BinPath:    formats.BinPath(installDir, pkg.PkgName),
		PkgName:    pkg.PkgName,
		Provides:   pkg.Provides,
		Desktop:    p.desktop,
		Portable:   rec.Portable,
		Integrator: e.linker,
	})
	if err != nil {
		e.rollbackLinks(installDir, p.old)
		e.discard(ctx, installDir, rec.ID, err)
		return fail(PhaseIntegrating, err)
	}

	if err := e.commit(ctx, p, rec); err != nil {
		e.rollbackLinks(installDir, p.old)
		e.discard(ctx, installDir, rec.ID, err)
		return fail(PhaseCommitted, err)
	}
	out.Phase = PhaseCommitted
	e.events.emit(Event{Phase: PhaseCommitted, ID: id, Msg: pkg.Version})

	e.unlinkAlternates(ctx, rec)
	if err := e.runHook(ctx, hooks.PostInstall, hc); err != nil {
		logger.Warn("Post-install hook failed", logger.Fields{"package": id, "error": err.Error()})
		out.Message = err.Error()
	}
	return out
}

func (e *Engine) verifier(repo string) (*verify.Verifier, error) {
	if e.keys == nil {
		return nil, nil
	}
	return e.keys.Verifier(repo)
}

// download fetches the payload, and its detached signature when signed, into
// the download cache. Both transfers run concurrently.
func (e *Engine) download(ctx context.Context, pkg *model.Package, id string, signed bool) (payload, sig string, err error) {
	dir := cache.DownloadsPath(e.cfg.CacheDir())
	if src, ok := localPath(pkg.DownloadURL); ok {
		dest := filepath.Join(dir, "local-"+filepath.Base(src))
		if err := fsutil.EnsureDir(dir); err != nil {
			return "", "", errors.Filesystem(err, "could not create download dir")
		}
		if err := fsutil.Copy(src, dest); err != nil {
			return "", "", errors.Filesystem(err, "could not copy %s", src)
		}
		return dest, "", nil
	}

	u, err := url.Parse(pkg.DownloadURL)
	if err != nil || u.Host == "" {
		return "", "", errors.Wrapf(errors.ErrInvalidReference, "invalid download URL %q for %s", pkg.DownloadURL, id)
	}
	name := strings.ToLower(pkg.Checksum)
	items := []download.Item{{ID: "payload", URL: u, Filename: name}}
	if signed {
		su := *u
		su.Path += verify.SignatureSuffix
		sigName := ""
		if name != "" {
			sigName = name + verify.SignatureSuffix
		}
		items = append(items, download.Item{ID: "signature", URL: &su, Filename: sigName})
	}

	paths, err := e.dl.FetchAll(ctx, items, download.Options{
		Dir:         dir,
		Concurrency: len(items),
		Progress: func(pr download.Progress) {
			if pr.ID == "payload" {
				e.events.emit(Event{Phase: PhaseDownloading, ID: id, Progress: &pr})
			}
		},
	})
	if err != nil {
		return "", "", err
	}
	return paths["payload"], paths["signature"], nil
}

// localPath reports whether raw names a local file rather than a remote URL.
func localPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch {
	case u.Scheme == "file":
		return u.Path, true
	case u.Scheme == "":
		abs, err := filepath.Abs(fsutil.ExpandHome(raw))
		return abs, err == nil
	}
	return "", false
}

// verifyPayload checks the signature before trusting the checksum. Packages
// without a declared checksum get the computed digest recorded.
func verifyPayload(pkg *model.Package, payload, sig string, v *verify.Verifier) error {
	if v != nil {
		if err := v.VerifyFile(payload, sig); err != nil {
			return err
		}
	}
	got, err := verify.Checksum(payload, pkg.Checksum)
	if err != nil {
		return err
	}
	if pkg.Checksum == "" {
		pkg.Checksum = got
	}
	return nil
}

// stage prepares the install directory, records the pending row and places
// the payload. The returned record is non-nil once a pending row exists.
func (e *Engine) stage(ctx context.Context, p plan, pkg *model.Package, payload, installDir string) (*model.InstalledPackage, formats.Kind, error) {
	portable, err := e.portableFor(p, pkg)
	if err != nil {
		return nil, nil, err
	}

	kindName, err := formats.Detect(ctx, payload, e.archives)
	if err != nil {
		return nil, nil, err
	}

	m := marker{PkgID: pkg.PkgID, Version: pkg.Version, Checksum: strings.ToLower(pkg.Checksum)}
	resumed, err := prepareInstallDir(installDir, m)
	if err != nil {
		return nil, nil, err
	}
	if resumed {
		logger.Debug("Resuming interrupted install", logger.Fields{"dir": installDir})
	}
	rec := &model.InstalledPackage{
		RepoName:        pkg.RepoName,
		Pkg:             pkg.Pkg,
		PkgID:           pkg.PkgID,
		PkgName:         pkg.PkgName,
		PkgType:         pkg.PkgType,
		Version:         pkg.Version,
		Size:            pkg.Size,
		Checksum:        strings.ToLower(pkg.Checksum),
		InstalledPath:   installDir,
		Profile:         p.profile,
		WithPkgID:       p.withPkgID,
		Detached:        p.detached,
		Provides:        pkg.Provides,
		InstallPatterns: e.cfg.Settings.InstallPatterns,
		Portable:        portable,
	}
	if rec.PkgType == "" {
		rec.PkgType = string(kindName)
	}
	if p.old != nil {
		rec.Pinned = p.old.Pinned
		if rec.Portable.IsZero() {
			rec.Portable = p.old.Portable
		}
	}
	if rec.ID, err = e.pendingRow(ctx, rec, resumed); err != nil {
		return nil, nil, err
	}

	filter, err := archive.NewFilter(e.cfg.Settings.InstallPatterns)
	if err != nil {
		return rec, nil, err
	}
	kind := formats.For(kindName, e.archives)
	if err := kind.Stage(ctx, formats.StageRequest{
		Payload:    payload,
		InstallDir: installDir,
		PkgName:    pkg.PkgName,
		Filter:     filter,
	}); err != nil {
		return rec, nil, err
	}
	if p.desktop {
		e.fetchAssets(ctx, pkg, installDir)
	}
	return rec, kind, nil
}

func (e *Engine) portableFor(p plan, pkg *model.Package) (*model.PortableDirs, error) {
	dirs, err := integrate.ResolvePortable(p.portable, e.cfg.PortableDirsBase(), pkg.PkgName, pkg.PkgID)
	if err != nil {
		return nil, errors.Filesystem(err, "invalid portable directory")
	}
	return dirs, nil
}

// pendingRow reuses the pending row of an interrupted install of the same
// directory, or inserts a new one.
func (e *Engine) pendingRow(ctx context.Context, rec *model.InstalledPackage, resumed bool) (int64, error) {
	if resumed {
		recs, err := e.store.Find(ctx, query.New(
			query.Eq(query.FieldPkgID, rec.PkgID),
			query.Eq(query.FieldRepo, rec.RepoName),
			query.Eq(query.FieldProfile, rec.Profile),
			query.Eq(query.FieldVersion, rec.Version),
			query.Eq(query.FieldIsInstalled, false),
		))
		if err != nil {
			return 0, err
		}
		for _, r := range recs {
			if r.InstalledPath == rec.InstalledPath {
				return r.ID, nil
			}
		}
	}
	return e.store.InsertPending(ctx, rec)
}

// fetchAssets downloads the icon and desktop entry declared by the metadata.
// Failures only cost the desktop integration.
func (e *Engine) fetchAssets(ctx context.Context, pkg *model.Package, installDir string) {
	var items []download.Item
	for _, a := range []struct{ id, raw string }{{"icon", pkg.Icon}, {"desktop", pkg.Desktop}} {
		u, err := url.Parse(a.raw)
		if a.raw == "" || err != nil || u.Host == "" {
			continue
		}
		ext := path.Ext(u.Path)
		if a.id == "desktop" {
			ext = ".desktop"
		}
		items = append(items, download.Item{ID: a.id, URL: u, Filename: pkg.PkgName + ext})
	}
	if len(items) == 0 {
		return
	}
	if _, err := e.dl.FetchAll(ctx, items, download.Options{Dir: installDir, Concurrency: len(items)}); err != nil {
		logger.Warn("Could not fetch desktop assets", logger.Fields{"package": pkg.PkgName, "error": err.Error()})
	}
}

// commit makes the staged package durable. An update replaces the old row in
// the same transaction that promotes the new one.
func (e *Engine) commit(ctx context.Context, p plan, rec *model.InstalledPackage) error {
	if p.old == nil {
		if err := e.store.Promote(ctx, rec.ID); err != nil {
			return err
		}
	} else {
		id, err := e.store.Replace(ctx, p.old.ID, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		if p.old.InstalledPath != rec.InstalledPath {
			if err := e.removeFiles(p.old); err != nil {
				logger.Warn("Could not remove previous install", logger.Fields{"package": p.old.String(), "error": err.Error()})
			}
		}
	}
	_ = fsutil.RemoveIfExists(filepath.Join(rec.InstalledPath, MarkerFile))
	return nil
}

// discard drops a failed staging attempt. A cancelled attempt keeps its
// directory and pending row so the next run resumes from them.
func (e *Engine) discard(ctx context.Context, installDir string, pendingID int64, cause error) {
	if stderrors.Is(cause, context.Canceled) {
		return
	}
	if err := os.RemoveAll(installDir); err != nil {
		logger.Warn("Could not remove staged files", logger.Fields{"dir": installDir, "error": err.Error()})
	}
	if pendingID != 0 {
		if err := e.store.Delete(context.WithoutCancel(ctx), pendingID); err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			logger.Warn("Could not remove pending record", logger.Fields{"id": pendingID, "error": err.Error()})
		}
	}
}

// rollbackLinks removes links into a failed install and points the previous
// install's binaries back at it.
func (e *Engine) rollbackLinks(installDir string, old *model.InstalledPackage) {
	if _, err := e.linker.RemoveLinksInto(installDir); err != nil {
		logger.Warn("Could not remove links", logger.Fields{"dir": installDir, "error": err.Error()})
	}
	if old == nil || old.Unlinked {
		return
	}
	if _, err := e.linker.LinkBinaries(old.InstalledPath, old.PkgName, old.Provides); err != nil {
		logger.Warn("Could not restore links", logger.Fields{"package": old.String(), "error": err.Error()})
	}
}

// unlinkAlternates hides other variants of the same pkg_name in the profile
// once rec is the active one.
func (e *Engine) unlinkAlternates(ctx context.Context, rec *model.InstalledPackage) {
	others, err := e.store.Find(ctx, query.New(
		query.EqFold(query.FieldPkgName, rec.PkgName),
		query.Eq(query.FieldProfile, rec.Profile),
		query.Eq(query.FieldIsInstalled, true),
		query.Eq(query.FieldUnlinked, false),
		query.Ne(query.FieldID, rec.ID),
	))
	if err != nil {
		logger.Warn("Could not look up alternate variants", logger.Fields{"package": rec.PkgName, "error": err.Error()})
		return
	}
	if len(others) == 0 {
		return
	}
	for _, o := range others {
		if _, err := e.linker.RemoveLinksInto(o.InstalledPath); err != nil {
			logger.Warn("Could not unlink alternate", logger.Fields{"package": o.String(), "error": err.Error()})
		}
	}
	n, err := e.store.UnlinkOthers(ctx, rec.ID, rec.PkgName, rec.Profile)
	if err != nil {
		logger.Warn("Could not mark alternates unlinked", logger.Fields{"package": rec.PkgName, "error": err.Error()})
		return
	}
	logger.DebugfWithFields(logger.Fields{"package": rec.PkgName}, "Unlinked %d alternate variant(s)", n)
}
