package resolve

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/installed"
	"github.com/pkgforge/soar/pkg/metadata"
	"github.com/pkgforge/soar/pkg/model"
)

type repoFixture struct {
	name     string
	priority int
	pkgs     []model.Package
}

func newCatalog(t *testing.T, repos ...repoFixture) *metadata.Set {
	t.Helper()
	dir := t.TempDir()
	sources := make([]metadata.Source, 0, len(repos))
	for i, r := range repos {
		path := filepath.Join(dir, r.name, metadata.SnapshotFile)
		_, err := metadata.WriteSnapshot(context.Background(), path, r.name, `"e"`, r.pkgs)
		require.NoError(t, err)
		sources = append(sources, metadata.Source{Name: r.name, Path: path, Priority: r.priority, Index: i})
	}
	set := metadata.NewSet(sources...)
	t.Cleanup(func() { _ = set.Close() })
	return set
}

func pkg(name, id, version string, provides ...string) model.Package {
	return model.Package{
		PkgName: name, PkgID: id, Version: version,
		DownloadURL: "https://example.invalid/" + id,
		Provides:    model.ParseProvides(provides),
	}
}

func newResolver(t *testing.T, repos ...repoFixture) (*Resolver, *installed.Store) {
	t.Helper()
	store, err := installed.Open(context.Background(), filepath.Join(t.TempDir(), "installed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(newCatalog(t, repos...), store), store
}

func TestResolve_OrdersAcrossRepositories(t *testing.T) {
	r, _ := newResolver(t,
		repoFixture{name: "community", priority: 10, pkgs: []model.Package{pkg("foo", "foo.community", "1.0.0")}},
		repoFixture{name: "bincache", priority: 50, pkgs: []model.Package{
			pkg("foo", "foo.static", "2.0.0"),
			pkg("foo", "foo.static", "1.5.0"),
		}},
	)
	ctx := context.Background()

	cands, err := r.Resolve(ctx, "foo", Options{})
	require.NoError(t, err)
	require.Len(t, cands, 2, "same key in one repo is deduplicated")
	assert.Equal(t, "bincache", cands[0].RepoName)
	assert.Equal(t, "2.0.0", cands[0].Version, "newest version survives deduplication")
	assert.Equal(t, "community", cands[1].RepoName)

	_, err = r.Select(ctx, "foo", ModeStrict)
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.ErrorIs(t, err, errors.ErrAmbiguous)
	require.Len(t, amb.Candidates, 2)
	assert.Equal(t, "bincache", amb.Candidates[0].RepoName)

	picked, err := r.Select(ctx, "foo", ModeFirst)
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "foo.static", picked[0].PkgID)

	picked, err = r.Select(ctx, "foo:community", ModeStrict)
	require.NoError(t, err)
	assert.Equal(t, "community", picked[0].RepoName)
}

func TestResolve_PkgIDMustMatch(t *testing.T) {
	r, _ := newResolver(t, repoFixture{name: "bincache", pkgs: []model.Package{
		pkg("foo", "foo.static", "1.0"),
		pkg("foo", "foo.glibc", "1.0"),
	}})
	ctx := context.Background()

	cands, err := r.Resolve(ctx, "foo#foo.glibc", Options{})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "foo.glibc", cands[0].PkgID)

	_, err = r.Resolve(ctx, "foo#foo.musl", Options{})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	all, err := r.Select(ctx, "foo#all", ModeStrict)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = r.Resolve(ctx, "foo@9.9", Options{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestResolve_Provides(t *testing.T) {
	r, _ := newResolver(t, repoFixture{name: "bincache", pkgs: []model.Package{
		pkg("ripgrep", "rg.static", "14.0", "rg"),
		pkg("neovim", "nvim.appimage", "0.10", "nvim==vim"),
		pkg("vim", "vim.static", "9.1"),
	}})
	ctx := context.Background()

	cands, err := r.Resolve(ctx, "rg", Options{})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "ripgrep", cands[0].PkgName)

	_, err = r.Resolve(ctx, "rg", Options{ExactName: true})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	cands, err = r.Resolve(ctx, "vim", Options{})
	require.NoError(t, err)
	require.Len(t, cands, 1, "a package named vim wins over one that only provides it")
	assert.Equal(t, "vim.static", cands[0].PkgID)
}

func TestResolve_Errors(t *testing.T) {
	r, _ := newResolver(t, repoFixture{name: "bincache", pkgs: []model.Package{pkg("foo", "foo", "1")}})
	ctx := context.Background()

	_, err := r.Resolve(ctx, "foo:nope", Options{})
	assert.ErrorIs(t, err, errors.ErrRepoNotConfigured)

	_, err = r.Resolve(ctx, "bar", Options{})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = r.Resolve(ctx, "", Options{})
	assert.ErrorIs(t, err, errors.ErrInvalidReference)
}

func TestResolve_RepoAndVersionIgnoreCase(t *testing.T) {
	r, store := newResolver(t, repoFixture{name: "MyRepo", pkgs: []model.Package{pkg("foo", "foo.static", "1.0-RC1")}})
	ctx := context.Background()

	for _, raw := range []string{"foo:MyRepo", "foo:myrepo", "foo@1.0-rc1:MYREPO"} {
		cands, err := r.Resolve(ctx, raw, Options{})
		require.NoError(t, err, raw)
		require.Len(t, cands, 1, raw)
		assert.Equal(t, "MyRepo", cands[0].RepoName)
	}

	rec := &model.InstalledPackage{
		RepoName: "MyRepo", PkgName: "foo", PkgID: "foo.static", Version: "1.0-RC1",
		InstalledPath: "/p/foo", Profile: "default",
	}
	id, err := store.InsertPending(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, store.Promote(ctx, id))

	for _, raw := range []string{"foo@1.0-RC1", "foo@1.0-rc1:myrepo"} {
		recs, err := r.FindInstalled(ctx, raw, "")
		require.NoError(t, err, raw)
		require.Len(t, recs, 1, raw)
		assert.Equal(t, id, recs[0].ID)
	}
}

func TestLess(t *testing.T) {
	c := func(prio, idx int, name, version, id string) model.Candidate {
		return model.Candidate{Package: model.Package{PkgName: name, Version: version, PkgID: id}, RepoPriority: prio, RepoIndex: idx}
	}
	ranked := Rank([]model.Candidate{
		c(0, 1, "a", "1", "x"),
		c(0, 0, "B", "1", "x"),
		c(0, 0, "a", "1.2", "y"),
		c(0, 0, "a", "1.10", "x"),
		c(5, 3, "z", "0.1", "x"),
		c(0, 0, "a", "1.10", "w"),
	})
	var got []string
	for _, x := range ranked {
		got = append(got, x.PkgName+"@"+x.Version+"#"+x.PkgID)
	}
	assert.Equal(t, []string{"z@0.1#x", "a@1.10#w", "a@1.10#x", "a@1.2#y", "B@1#x", "a@1#x"}, got)
}

func installRecord(t *testing.T, store *installed.Store, name, id, profile string, pinned bool) int64 {
	t.Helper()
	ctx := context.Background()
	rec := &model.InstalledPackage{
		RepoName: "bincache", PkgName: name, PkgID: id, Version: "1.0.0",
		InstalledPath: "/p/" + id, Profile: profile, Pinned: pinned,
	}
	id64, err := store.InsertPending(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, store.Promote(ctx, id64))
	return id64
}

func TestResolveInstalled(t *testing.T) {
	r, store := newResolver(t, repoFixture{name: "bincache", pkgs: []model.Package{pkg("foo", "foo.static", "2.0.0")}})
	ctx := context.Background()

	installRecord(t, store, "foo", "foo.static", "default", false)
	installRecord(t, store, "foo", "foo.static", "work", false)
	pinnedID := installRecord(t, store, "bar", "bar.a", "default", true)
	installRecord(t, store, "bar", "bar.b", "default", false)

	recs, err := r.ResolveInstalled(ctx, "foo", InstalledOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 2, "one target per profile")

	recs, err = r.ResolveInstalled(ctx, "foo", InstalledOptions{Profile: "work"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "work", recs[0].Profile)

	_, err = r.ResolveInstalled(ctx, "bar", InstalledOptions{})
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Len(t, amb.Installed, 2)

	recs, err = r.ResolveInstalled(ctx, "bar", InstalledOptions{ForUpdate: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "bar.b", recs[0].PkgID)

	recs, err = r.ResolveInstalled(ctx, "bar#bar.a", InstalledOptions{ForUpdate: true})
	require.NoError(t, err, "pinned records stay reachable by explicit reference")
	assert.Equal(t, pinnedID, recs[0].ID)

	recs, err = r.ResolveInstalled(ctx, "bar#all", InstalledOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = r.ResolveInstalled(ctx, "nothing", InstalledOptions{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestUpdateTargets(t *testing.T) {
	r, store := newResolver(t, repoFixture{name: "bincache", pkgs: []model.Package{pkg("foo", "foo.static", "2.0.0")}})
	ctx := context.Background()

	installRecord(t, store, "foo", "foo.static", "default", false)
	installRecord(t, store, "pinned", "pinned", "default", true)

	targets, err := r.UpdateTargets(ctx, true, nil, "")
	require.NoError(t, err)
	require.Len(t, targets, 1, "pinned records are skipped by bulk updates")
	assert.Equal(t, "foo", targets[0].Installed.PkgName)

	targets, err = r.UpdateTargets(ctx, false, []string{"pinned", "missing"}, "")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.NoError(t, targets[0].Err)
	assert.Equal(t, "pinned", targets[0].Installed.PkgName)
	assert.True(t, stderrors.Is(targets[1].Err, errors.ErrNotFound))

	_, err = r.UpdateTargets(ctx, false, nil, "")
	assert.ErrorIs(t, err, errors.ErrNoPackagesSpecified)

	_, _, err = r.Latest(ctx, targets[0].Installed)
	assert.ErrorIs(t, err, errors.ErrNotFound, "pinned is not in the catalog")

	foo, err := r.FindInstalled(ctx, "foo", "")
	require.NoError(t, err)
	cand, newer, err := r.Latest(ctx, &foo[0])
	require.NoError(t, err)
	assert.True(t, newer)
	assert.Equal(t, "2.0.0", cand.Version)
}
