package lifecycle

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
)

// Update installs the newest remote version of each target over its current
// install. Profile, pinned state and portable directories carry over. The old
// install stays active until the new one is committed.
func (e *Engine) Update(ctx context.Context, refs []string, opts UpdateOptions) *Report {
	report := &Report{}
	targets, err := e.resolver.UpdateTargets(ctx, opts.All, refs, opts.Profile)
	if err != nil {
		report.fail(strings.Join(refs, " "), PhaseResolved, err)
		return report
	}

	locks := e.newLocks()
	defer locks.release()

	var plans []plan
	for _, t := range targets {
		if t.Err != nil {
			report.fail(t.Ref, PhaseResolved, t.Err)
			continue
		}
		rec := t.Installed
		id := label(rec.PkgName, rec.PkgID, rec.RepoName)
		if err := locks.acquire(rec.Profile); err != nil {
			report.fail(t.Ref, PhaseResolved, err)
			continue
		}

		cand, newer, err := e.resolver.Latest(ctx, rec)
		switch {
		case err != nil && opts.All && stderrors.Is(err, errors.ErrNotFound):
			report.skip(t.Ref, id, rec.Version, "no longer available")
			continue
		case err != nil:
			report.fail(t.Ref, PhaseResolved, err)
			continue
		case !newer:
			report.skip(t.Ref, id, rec.Version, "already up to date")
			continue
		}
		plans = append(plans, plan{
			ref:       t.Ref,
			cand:      cand,
			profile:   rec.Profile,
			old:       rec,
			desktop:   e.desktopEnabled(&cand.Package),
			withPkgID: rec.WithPkgID,
		})
	}

	e.forEach(len(plans), func(i int) {
		report.add(e.installOne(ctx, plans[i]))
	})
	return report
}

// Check lists installed records with a newer remote version without changing anything.
func (e *Engine) Check(ctx context.Context, opts UpdateOptions) ([]Available, error) {
	targets, err := e.resolver.UpdateTargets(ctx, true, nil, opts.Profile)
	if err != nil {
		return nil, err
	}
	var out []Available
	for _, t := range targets {
		cand, newer, err := e.resolver.Latest(ctx, t.Installed)
		if err != nil || !newer {
			continue
		}
		out = append(out, Available{Installed: *t.Installed, Latest: cand})
	}
	return out, nil
}

// Available pairs an installed record with its newer remote candidate.
type Available struct {
	Installed model.InstalledPackage
	Latest    model.Candidate
}
