// Package resolve turns user supplied package references into concrete
// repository candidates or installed records.
package resolve

import (
	"context"
	"strings"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/metadata"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

// Catalog is the remote package metadata the resolver searches.
// *metadata.Set implements it.
type Catalog interface {
	Query(ctx context.Context, pred query.Predicate) ([]model.Package, error)
	Sources() []metadata.Source
}

// InstalledFinder looks up installed records. *installed.Store implements it.
type InstalledFinder interface {
	Find(ctx context.Context, pred query.Predicate) ([]model.InstalledPackage, error)
}

// Mode selects how Select handles more than one candidate.
type Mode int

const (
	// ModeStrict returns an *AmbiguousError when more than one candidate remains.
	ModeStrict Mode = iota
	// ModeFirst picks the first candidate of the deterministic order.
	ModeFirst
)

// Options narrows remote resolution.
type Options struct {
	// ExactName disables lookup through provides.
	ExactName bool
}

// Resolver resolves references against a catalog and the installed store.
type Resolver struct {
	catalog   Catalog
	installed InstalledFinder
}

// New creates a resolver.
func New(catalog Catalog, installed InstalledFinder) *Resolver {
	return &Resolver{catalog: catalog, installed: installed}
}

// Resolve returns every candidate for raw, deduplicated and ranked.
func (r *Resolver) Resolve(ctx context.Context, raw string, opts Options) ([]model.Candidate, error) {
	ref, err := model.ParseRef(raw)
	if err != nil {
		return nil, err
	}
	return r.ResolveRef(ctx, ref, opts)
}

// ResolveRef is Resolve for an already parsed reference.
func (r *Resolver) ResolveRef(ctx context.Context, ref model.Ref, opts Options) ([]model.Candidate, error) {
	sources := r.catalog.Sources()
	rank := make(map[string]metadata.Source, len(sources))
	for _, s := range sources {
		rank[s.Name] = s
	}
	if ref.Repo != "" {
		src, ok := sourceNamed(sources, ref.Repo)
		if !ok {
			return nil, errors.ErrRepoNotConfiguredWithName(ref.Repo)
		}
		ref.Repo = src.Name
	}

	pkgs, err := r.catalog.Query(ctx, predicateFor(ref, opts))
	if err != nil {
		return nil, err
	}
	if ref.Name != "" {
		pkgs = preferNameMatches(pkgs, ref.Name)
	}

	var cands []model.Candidate
	for _, p := range pkgs {
		if ref.PkgID != "" && !ref.AllVariants() && !strings.EqualFold(p.PkgID, ref.PkgID) {
			continue
		}
		if ref.Version != "" && !strings.EqualFold(p.Version, ref.Version) {
			continue
		}
		src := rank[p.RepoName]
		cands = append(cands, model.Candidate{Package: p, RepoPriority: src.Priority, RepoIndex: src.Index})
	}
	if len(cands) == 0 {
		return nil, errors.ErrNotFoundWithName(ref.Raw)
	}
	return dedupe(Rank(cands)), nil
}

// Select resolves raw to the candidates to act on. A #all reference returns
// the best candidate of every pkg_id; otherwise exactly one is returned, or an
// *AmbiguousError in ModeStrict.
func (r *Resolver) Select(ctx context.Context, raw string, mode Mode) ([]model.Candidate, error) {
	ref, err := model.ParseRef(raw)
	if err != nil {
		return nil, err
	}
	cands, err := r.ResolveRef(ctx, ref, Options{})
	if err != nil {
		return nil, err
	}
	if ref.AllVariants() {
		return bestPerPkgID(cands), nil
	}
	if len(cands) > 1 && mode == ModeStrict {
		return nil, &AmbiguousError{Query: raw, Candidates: cands}
	}
	return cands[:1], nil
}

func sourceNamed(sources []metadata.Source, name string) (metadata.Source, bool) {
	for _, s := range sources {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return metadata.Source{}, false
}

func predicateFor(ref model.Ref, opts Options) query.Predicate {
	pred := query.New()
	switch {
	case ref.Name != "" && opts.ExactName:
		pred = pred.Where(query.EqFold(query.FieldPkgName, ref.Name))
	case ref.Name != "":
		pred = pred.Where(query.Or(
			query.EqFold(query.FieldPkgName, ref.Name),
			query.EqFold(query.FieldProvides, ref.Name),
		))
	default:
		pred = pred.Where(query.EqFold(query.FieldPkgID, ref.PkgID))
	}
	if ref.Repo != "" {
		pred = pred.Where(query.Eq(query.FieldRepo, ref.Repo))
	}
	return pred
}

// preferNameMatches drops packages found only through provides when at least
// one package is named name.
func preferNameMatches(pkgs []model.Package, name string) []model.Package {
	var named []model.Package
	for _, p := range pkgs {
		if strings.EqualFold(p.PkgName, name) {
			named = append(named, p)
		}
	}
	if len(named) == 0 {
		return pkgs
	}
	return named
}

func bestPerPkgID(cands []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{})
	var out []model.Candidate
	for _, c := range cands {
		id := strings.ToLower(c.PkgID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, c)
	}
	return out
}
