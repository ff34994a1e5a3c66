package lifecycle

import (
	"context"
	"strings"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

// Variants returns every installed variant of name in profile.
func (e *Engine) Variants(ctx context.Context, name, profile string) ([]model.InstalledPackage, error) {
	recs, err := e.store.Find(ctx, query.New(
		query.EqFold(query.FieldPkgName, name),
		query.Eq(query.FieldProfile, e.cfg.ProfileName(profile)),
		query.Eq(query.FieldIsInstalled, true),
	))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.ErrNotFoundWithName(name)
	}
	return recs, nil
}

// Switch makes the pkgID variant of name the linked one in profile. The
// links of the other variants are removed first and restored if linking the
// chosen variant fails.
func (e *Engine) Switch(ctx context.Context, name, pkgID, profile string) *Report {
	report := &Report{}
	profile = e.cfg.ProfileName(profile)
	ref := name + "#" + pkgID

	locks := e.newLocks()
	defer locks.release()
	err := e.checkProfile(profile)
	if err == nil {
		err = locks.acquire(profile)
	}
	if err != nil {
		report.fail(ref, PhaseResolved, err)
		return report
	}

	recs, err := e.Variants(ctx, name, profile)
	if err != nil {
		report.fail(ref, PhaseResolved, err)
		return report
	}
	var (
		target *model.InstalledPackage
		active []model.InstalledPackage
	)
	for i := range recs {
		switch {
		case target == nil && strings.EqualFold(recs[i].PkgID, pkgID):
			target = &recs[i]
		case !recs[i].Unlinked:
			active = append(active, recs[i])
		}
	}
	if target == nil {
		report.fail(ref, PhaseResolved, errors.ErrNotFoundWithName(ref))
		return report
	}
	if !target.Unlinked && len(active) == 0 {
		report.skip(ref, label(target.PkgName, target.PkgID, target.RepoName), target.Version, "already active")
		return report
	}
	report.add(e.switchTo(ctx, ref, target, active))
	return report
}

func (e *Engine) switchTo(ctx context.Context, ref string, target *model.InstalledPackage, active []model.InstalledPackage) Outcome {
	id := label(target.PkgName, target.PkgID, target.RepoName)
	out := Outcome{Ref: ref, Package: id, Version: target.Version, Phase: PhaseIntegrating}
	e.events.emit(Event{Phase: PhaseIntegrating, ID: id})

	for _, o := range active {
		if _, err := e.linker.RemoveLinksInto(o.InstalledPath); err != nil {
			e.restoreVariants(target.InstalledPath, active)
			out.Err = err
			return out
		}
	}
	if err := e.linkVariant(target); err != nil {
		e.restoreVariants(target.InstalledPath, active)
		out.Err = err
		return out
	}
	if err := e.store.Activate(ctx, target.ID, target.PkgName, target.Profile); err != nil {
		e.restoreVariants(target.InstalledPath, active)
		out.Phase = PhaseCommitted
		out.Err = err
		return out
	}
	out.Phase = PhaseCommitted
	e.events.emit(Event{Phase: PhaseCommitted, ID: id, Msg: target.Version})
	return out
}

func (e *Engine) linkVariant(rec *model.InstalledPackage) error {
	if _, err := e.linker.LinkBinaries(rec.InstalledPath, rec.PkgName, rec.Provides); err != nil {
		return err
	}
	if e.cfg.DesktopIntegration(rec.RepoName) {
		return e.linker.LinkDesktopAssets(rec.InstalledPath, rec.PkgName)
	}
	return nil
}

// restoreVariants drops links into failedDir and relinks the variants that
// were active before the switch.
func (e *Engine) restoreVariants(failedDir string, active []model.InstalledPackage) {
	if _, err := e.linker.RemoveLinksInto(failedDir); err != nil {
		logger.Warn("Could not remove links", logger.Fields{"dir": failedDir, "error": err.Error()})
	}
	for i := range active {
		if err := e.linkVariant(&active[i]); err != nil {
			logger.Warn("Could not restore links", logger.Fields{"package": active[i].String(), "error": err.Error()})
		}
	}
}
