package lifecycle

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/hooks"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
	"github.com/pkgforge/soar/pkg/resolve"
)

// Remove deletes the files of every referenced package, then its record.
// Files that are already gone do not fail the removal.
func (e *Engine) Remove(ctx context.Context, refs []string, opts RemoveOptions) *Report {
	report := &Report{}
	if len(refs) == 0 {
		report.fail("", PhaseResolved, errors.ErrNoPackagesSpecified)
		return report
	}

	locks := e.newLocks()
	defer locks.release()

	type job struct {
		ref string
		rec model.InstalledPackage
	}
	var jobs []job
	for _, raw := range refs {
		recs, err := e.resolver.ResolveInstalled(ctx, raw, resolve.InstalledOptions{Profile: opts.Profile})
		if err != nil {
			report.fail(raw, PhaseResolved, err)
			continue
		}
		for _, rec := range recs {
			if err := locks.acquire(rec.Profile); err != nil {
				report.fail(raw, PhaseResolved, err)
				continue
			}
			jobs = append(jobs, job{ref: raw, rec: rec})
		}
	}

	e.forEach(len(jobs), func(i int) {
		report.add(e.removeOne(ctx, jobs[i].ref, &jobs[i].rec))
	})
	return report
}

func (e *Engine) removeOne(ctx context.Context, ref string, rec *model.InstalledPackage) Outcome {
	id := label(rec.PkgName, rec.PkgID, rec.RepoName)
	out := Outcome{Ref: ref, Package: id, Version: rec.Version, Phase: PhaseResolved}

	hc := hooks.HookContext{
		InstallDir: rec.InstalledPath,
		BinDir:     e.cfg.BinDir(),
		PkgName:    rec.PkgName,
		PkgID:      rec.PkgID,
		PkgVersion: rec.Version,
		Profile:    rec.Profile,
	}
	if err := e.runHook(ctx, hooks.PreRemove, hc); err != nil {
		out.Err = err
		return out
	}

	if err := e.removeFiles(rec); err != nil {
		out.Err = err
		return out
	}
	if err := e.store.Delete(ctx, rec.ID); err != nil {
		out.Err = err
		return out
	}
	out.Phase = PhaseRemoved
	e.events.emit(Event{Phase: PhaseRemoved, ID: id, Msg: rec.Version})
	return out
}

// removeFiles deletes the links into an install and the install directory.
// Missing files are logged; only the managed packages directory is ever deleted from.
func (e *Engine) removeFiles(rec *model.InstalledPackage) error {
	dir := rec.InstalledPath
	if dir == "" {
		return nil
	}
	removed, err := e.linker.RemoveLinksInto(dir)
	if err != nil {
		logger.Warn("Could not remove some links", logger.Fields{"package": rec.PkgName, "error": err.Error()})
	}
	logger.Debug("Removed links", logger.Fields{"package": rec.PkgName, "count": len(removed)})

	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		logger.Warn("Installed files are already missing", logger.Fields{"package": rec.PkgName, "path": dir})
		return nil
	}
	packagesDir, err := e.cfg.PackagesDir(rec.Profile)
	if err != nil || filepath.Clean(dir) == filepath.Clean(packagesDir) || !fsutil.IsWithin(dir, packagesDir) {
		logger.Warn("Not deleting files outside the packages directory", logger.Fields{"package": rec.PkgName, "path": dir})
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Filesystem(err, "could not remove %s", dir)
	}
	return nil
}

// CleanBroken removes records left behind by interrupted installs and
// installed records whose directory no longer exists, then drops managed
// links whose target is gone.
func (e *Engine) CleanBroken(ctx context.Context, opts RemoveOptions) *Report {
	report := &Report{}
	conds := []query.Cond{}
	if opts.Profile != "" {
		conds = append(conds, query.Eq(query.FieldProfile, opts.Profile))
	}
	recs, err := e.store.Find(ctx, query.New(conds...))
	if err != nil {
		report.fail("", PhaseResolved, err)
		return report
	}

	locks := e.newLocks()
	defer locks.release()

	var broken []model.InstalledPackage
	for _, rec := range recs {
		if rec.IsInstalled && dirExists(rec.InstalledPath) {
			continue
		}
		if err := locks.acquire(rec.Profile); err != nil {
			report.fail(rec.String(), PhaseResolved, err)
			continue
		}
		broken = append(broken, rec)
	}

	e.forEach(len(broken), func(i int) {
		rec := &broken[i]
		id := label(rec.PkgName, rec.PkgID, rec.RepoName)
		out := Outcome{Ref: rec.String(), Package: id, Version: rec.Version, Phase: PhaseResolved}
		if err := e.removeFiles(rec); err != nil {
			out.Err = err
		} else if err := e.store.Delete(ctx, rec.ID); err != nil {
			out.Err = err
		} else {
			out.Phase = PhaseRemoved
			e.events.emit(Event{Phase: PhaseRemoved, ID: id, Msg: rec.Version})
		}
		report.add(out)
	})

	links, err := e.linker.RemoveBrokenLinks()
	for _, l := range links {
		report.add(Outcome{Ref: l, Package: l, Version: "dangling link", Phase: PhaseRemoved})
	}
	if err != nil {
		report.fail("", PhaseRemoved, err)
	}
	return report
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
