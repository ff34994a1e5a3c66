package resolve

import (
	"context"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

// InstalledOptions scopes installed-record resolution.
type InstalledOptions struct {
	// Profile limits the search to one profile; empty searches all of them.
	Profile string
	// ForUpdate prefers unpinned records when a profile holds several matches.
	ForUpdate bool
}

// UpdateTarget is one package an update should consider. Err is set when the
// reference could not be resolved; other targets are unaffected.
type UpdateTarget struct {
	Ref       string
	Installed *model.InstalledPackage
	Err       error
}

// FindInstalled returns every installed record matching raw.
func (r *Resolver) FindInstalled(ctx context.Context, raw string, profile string) ([]model.InstalledPackage, error) {
	ref, err := model.ParseRef(raw)
	if err != nil {
		return nil, err
	}
	pred := query.New(query.Eq(query.FieldIsInstalled, true))
	if ref.Name != "" {
		pred = pred.Where(query.EqFold(query.FieldPkgName, ref.Name))
	}
	if ref.PkgID != "" && !ref.AllVariants() {
		pred = pred.Where(query.EqFold(query.FieldPkgID, ref.PkgID))
	}
	if ref.Repo != "" {
		pred = pred.Where(query.EqFold(query.FieldRepo, ref.Repo))
	}
	if ref.Version != "" {
		pred = pred.Where(query.EqFold(query.FieldVersion, ref.Version))
	}
	if profile != "" {
		pred = pred.Where(query.Eq(query.FieldProfile, profile))
	}
	recs, err := r.installed.Find(ctx, pred)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.ErrNotFoundWithName(raw)
	}
	return recs, nil
}

// ResolveInstalled picks the installed records an update or remove of raw
// acts on: one per profile. A profile with several matching records is
// ambiguous unless the reference used #all.
func (r *Resolver) ResolveInstalled(ctx context.Context, raw string, opts InstalledOptions) ([]model.InstalledPackage, error) {
	recs, err := r.FindInstalled(ctx, raw, opts.Profile)
	if err != nil {
		return nil, err
	}
	ref, _ := model.ParseRef(raw)
	if ref.AllVariants() {
		return recs, nil
	}

	var (
		order     []string
		byProfile = make(map[string][]model.InstalledPackage)
	)
	for _, rec := range recs {
		if _, ok := byProfile[rec.Profile]; !ok {
			order = append(order, rec.Profile)
		}
		byProfile[rec.Profile] = append(byProfile[rec.Profile], rec)
	}

	out := make([]model.InstalledPackage, 0, len(order))
	for _, profile := range order {
		group := byProfile[profile]
		if len(group) > 1 && opts.ForUpdate {
			if unpinned := withoutPinned(group); len(unpinned) > 0 {
				group = unpinned
			}
		}
		if len(group) > 1 {
			return nil, &AmbiguousError{Query: raw, Installed: group}
		}
		out = append(out, group[0])
	}
	return out, nil
}

// UpdateTargets lists what an update should look at. With all set, every
// installed, unpinned, repository-tracked record is a target; otherwise each
// ref is resolved on its own and pinned records are allowed.
func (r *Resolver) UpdateTargets(ctx context.Context, all bool, refs []string, profile string) ([]UpdateTarget, error) {
	if all {
		pred := query.New(
			query.Eq(query.FieldIsInstalled, true),
			query.Eq(query.FieldPinned, false),
			query.Eq(query.FieldDetached, false),
		)
		if profile != "" {
			pred = pred.Where(query.Eq(query.FieldProfile, profile))
		}
		recs, err := r.installed.Find(ctx, pred)
		if err != nil {
			return nil, err
		}
		out := make([]UpdateTarget, 0, len(recs))
		for i := range recs {
			rec := recs[i]
			out = append(out, UpdateTarget{Ref: rec.PkgName + "#" + rec.PkgID, Installed: &rec})
		}
		return out, nil
	}
	if len(refs) == 0 {
		return nil, errors.ErrNoPackagesSpecified
	}

	var out []UpdateTarget
	for _, raw := range refs {
		recs, err := r.ResolveInstalled(ctx, raw, InstalledOptions{Profile: profile, ForUpdate: true})
		if err != nil {
			out = append(out, UpdateTarget{Ref: raw, Err: err})
			continue
		}
		for i := range recs {
			rec := recs[i]
			out = append(out, UpdateTarget{Ref: raw, Installed: &rec})
		}
	}
	return out, nil
}

// Latest returns the newest remote candidate for an installed record and
// whether it is newer than what is installed. The candidate must come from the
// same repository with the same pkg_id and pkg_name.
func (r *Resolver) Latest(ctx context.Context, rec *model.InstalledPackage) (model.Candidate, bool, error) {
	if rec.Detached {
		return model.Candidate{}, false, errors.Wrapf(errors.ErrNotFound, "%s was installed without repository metadata", rec.PkgName)
	}
	ref := model.Ref{Raw: rec.PkgName + "#" + rec.PkgID + ":" + rec.RepoName, Name: rec.PkgName, PkgID: rec.PkgID, Repo: rec.RepoName}
	cands, err := r.ResolveRef(ctx, ref, Options{ExactName: true})
	if err != nil {
		return model.Candidate{}, false, err
	}
	best := cands[0]
	return best, model.CompareVersions(best.Version, rec.Version) > 0, nil
}

func withoutPinned(recs []model.InstalledPackage) []model.InstalledPackage {
	var out []model.InstalledPackage
	for _, rec := range recs {
		if !rec.Pinned {
			out = append(out, rec)
		}
	}
	return out
}
