package lifecycle_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/download"
	dlmocks "github.com/pkgforge/soar/pkg/download/mocks"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/lifecycle"
	"github.com/pkgforge/soar/pkg/lifecycle/mocks"
	"github.com/pkgforge/soar/pkg/lock"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/resolve"
	"github.com/pkgforge/soar/pkg/verify"
)

var payload = []byte("#!/bin/sh\necho hello\n")

type testEnv struct {
	cfg      *config.Config
	resolver *mocks.MockResolver
	store    *mocks.MockStore
	linker   *mocks.MockLinker
	keys     *mocks.MockKeyring
	dl       *dlmocks.MockManager
	engine   *lifecycle.Engine

	mu     sync.Mutex
	events []lifecycle.Event
}

func newTestEnv(t *testing.T, withKeyring bool) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Repositories = []*config.RepositoryConfig{{Name: "bincache", URL: "https://example.com/bincache.db"}}
	cfg.Profiles = map[string]*config.Profile{config.DefaultProfileName: {RootDir: root}}
	cfg.Settings.LockDir = filepath.Join(root, "lock")
	cfg.Settings.DesktopDir = filepath.Join(root, "applications")
	cfg.Settings.IconsDir = filepath.Join(root, "icons")
	cfg.Settings.Parallel = 2

	env := &testEnv{
		cfg:      cfg,
		resolver: mocks.NewMockResolver(ctrl),
		store:    mocks.NewMockStore(ctrl),
		linker:   mocks.NewMockLinker(ctrl),
		keys:     mocks.NewMockKeyring(ctrl),
		dl:       dlmocks.NewMockManager(ctrl),
	}
	deps := lifecycle.Deps{
		Config:     cfg,
		Resolver:   env.resolver,
		Store:      env.store,
		Downloader: env.dl,
		Linker:     env.linker,
		Events: lifecycle.Events{OnEvent: func(e lifecycle.Event) {
			env.mu.Lock()
			env.events = append(env.events, e)
			env.mu.Unlock()
		}},
	}
	if withKeyring {
		deps.Keyring = env.keys
	}
	env.engine = lifecycle.New(deps)
	return env
}

func (env *testEnv) packagesDir(t *testing.T) string {
	dir, err := env.cfg.PackagesDir("")
	require.NoError(t, err)
	return dir
}

func checksum(t *testing.T, data []byte) string {
	sum, err := verify.HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	return sum
}

func candidate(t *testing.T, ver string) model.Candidate {
	return model.Candidate{Package: model.Package{
		RepoName:    "bincache",
		PkgName:     "hello",
		PkgID:       "hello",
		Version:     ver,
		DownloadURL: "https://example.com/hello",
		Checksum:    strings.ToUpper(checksum(t, payload)),
	}}
}

// servePayload writes data for every requested item as the mocked download.
func (env *testEnv) servePayload(data map[string][]byte) *gomock.Call {
	return env.dl.EXPECT().FetchAll(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []download.Item, opts download.Options) (map[string]string, error) {
			out := make(map[string]string, len(items))
			for _, it := range items {
				name := it.Filename
				if name == "" {
					name = it.ID
				}
				p := filepath.Join(opts.Dir, name)
				if err := fsutil.WriteFileAtomic(p, data[it.ID], fsutil.FileModeSecure); err != nil {
					return nil, err
				}
				out[it.ID] = p
			}
			return out, nil
		})
}

func phases(events []lifecycle.Event) []lifecycle.Phase {
	var out []lifecycle.Phase
	for _, e := range events {
		if e.Progress == nil && (len(out) == 0 || out[len(out)-1] != e.Phase) {
			out = append(out, e.Phase)
		}
	}
	return out
}

func TestInstall_Success(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	cand := candidate(t, "1.0.0")

	env.resolver.EXPECT().Select(gomock.Any(), "hello", resolve.ModeStrict).Return([]model.Candidate{cand}, nil)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	env.servePayload(map[string][]byte{"payload": payload})

	var pending *model.InstalledPackage
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *model.InstalledPackage) (int64, error) {
			pending = rec
			_, err := os.Stat(filepath.Join(rec.InstalledPath, lifecycle.MarkerFile))
			assert.NoError(t, err, "marker exists while the row is pending")
			return 7, nil
		})
	env.linker.EXPECT().LinkBinaries(gomock.Any(), "hello", gomock.Nil()).Return([]string{"hello"}, nil)
	env.store.EXPECT().Promote(gomock.Any(), int64(7)).Return(nil)

	report := env.engine.Install(ctx, []string{"hello"}, lifecycle.InstallOptions{})

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	require.NoError(t, out.Err)
	assert.False(t, report.Failed())
	assert.Equal(t, lifecycle.PhaseCommitted, out.Phase)
	assert.Equal(t, "hello#hello:bincache", out.Package)

	require.NotNil(t, pending)
	assert.Equal(t, strings.ToLower(cand.Checksum), pending.Checksum)
	assert.Equal(t, config.DefaultProfileName, pending.Profile)
	assert.Equal(t, string(formats.KindStatic), pending.PkgType)
	assert.True(t, fsutil.IsWithin(pending.InstalledPath, env.packagesDir(t)))
	assert.True(t, strings.HasPrefix(filepath.Base(pending.InstalledPath), "hello-hello-"+strings.ToLower(cand.Checksum)[:12]))

	bin := filepath.Join(pending.InstalledPath, "hello")
	assert.True(t, fsutil.IsExecutable(bin))
	_, err := verify.Checksum(bin, cand.Checksum)
	assert.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(pending.InstalledPath, lifecycle.MarkerFile))

	assert.Equal(t, []lifecycle.Phase{
		lifecycle.PhaseResolved,
		lifecycle.PhaseDownloading,
		lifecycle.PhaseVerifying,
		lifecycle.PhaseStaging,
		lifecycle.PhaseIntegrating,
		lifecycle.PhaseCommitted,
	}, phases(env.events))
}

func TestInstall_AlreadyInstalledIsSkipped(t *testing.T) {
	env := newTestEnv(t, false)
	cand := candidate(t, "1.0.0")

	env.resolver.EXPECT().Select(gomock.Any(), "hello", resolve.ModeFirst).Return([]model.Candidate{cand}, nil)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]model.InstalledPackage{{ID: 3, PkgName: "hello", Version: "1.0.0"}}, nil)

	report := env.engine.Install(context.Background(), []string{"hello"}, lifecycle.InstallOptions{Yes: true})

	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Skipped)
	assert.False(t, report.Failed())
	_, skipped, _ := report.Counts()
	assert.Equal(t, 1, skipped)
}

func TestInstall_BatchContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t, false)
	cand := candidate(t, "1.0.0")

	env.resolver.EXPECT().Select(gomock.Any(), "missing", resolve.ModeStrict).Return(nil, errors.ErrNotFoundWithName("missing"))
	env.resolver.EXPECT().Select(gomock.Any(), "hello", resolve.ModeStrict).Return([]model.Candidate{cand}, nil)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	env.servePayload(map[string][]byte{"payload": payload})
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).Return(int64(1), nil)
	env.linker.EXPECT().LinkBinaries(gomock.Any(), "hello", gomock.Any()).Return(nil, nil)
	env.store.EXPECT().Promote(gomock.Any(), int64(1)).Return(nil)

	report := env.engine.Install(context.Background(), []string{"missing", "hello"}, lifecycle.InstallOptions{})

	assert.True(t, report.Failed())
	ok, skipped, failed := report.Counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 1, failed)
	for _, o := range report.Outcomes {
		if o.Ref == "missing" {
			assert.ErrorIs(t, o.Err, errors.ErrNotFound)
			assert.Equal(t, lifecycle.PhaseResolved, o.Phase)
		}
	}
}

func TestInstall_ProfileLocked(t *testing.T) {
	env := newTestEnv(t, false)

	held, err := lock.Acquire(env.cfg.LockDir(), config.DefaultProfileName)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	report := env.engine.Install(context.Background(), []string{"hello"}, lifecycle.InstallOptions{})

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, errors.ErrConcurrentOperationLocked)
}

func TestInstall_NoPackages(t *testing.T) {
	env := newTestEnv(t, false)

	report := env.engine.Install(context.Background(), nil, lifecycle.InstallOptions{})

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, errors.ErrNoPackagesSpecified)
}

func TestInstall_StagingFailureDiscardsPendingRow(t *testing.T) {
	env := newTestEnv(t, false)
	cand := candidate(t, "1.0.0")

	env.resolver.EXPECT().Select(gomock.Any(), "hello", resolve.ModeStrict).Return([]model.Candidate{cand}, nil)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil)
	env.servePayload(map[string][]byte{"payload": payload})

	var installDir string
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *model.InstalledPackage) (int64, error) {
			installDir = rec.InstalledPath
			return 5, nil
		})
	env.linker.EXPECT().LinkBinaries(gomock.Any(), "hello", gomock.Any()).Return(nil, errors.Filesystem(os.ErrPermission, "link"))
	env.linker.EXPECT().RemoveLinksInto(gomock.Any()).Return(nil, nil)
	env.store.EXPECT().Delete(gomock.Any(), int64(5)).Return(nil)

	report := env.engine.Install(context.Background(), []string{"hello"}, lifecycle.InstallOptions{})

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.ErrorIs(t, out.Err, errors.ErrFilesystem)
	assert.Equal(t, lifecycle.PhaseIntegrating, out.Phase)
	assert.NoDirExists(t, installDir)
}

func TestInstall_DetachedFromLocalFile(t *testing.T) {
	env := newTestEnv(t, false)
	src := filepath.Join(t.TempDir(), "mytool")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	var pending *model.InstalledPackage
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *model.InstalledPackage) (int64, error) {
			pending = rec
			return 2, nil
		})
	env.linker.EXPECT().LinkBinaries(gomock.Any(), "mytool", gomock.Any()).Return(nil, nil)
	env.store.EXPECT().Promote(gomock.Any(), int64(2)).Return(nil)

	report := env.engine.Install(context.Background(), nil, lifecycle.InstallOptions{
		Detached: &lifecycle.DetachedSource{URL: src},
	})

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)
	require.NotNil(t, pending)
	assert.True(t, pending.Detached)
	assert.Equal(t, config.LocalRepositoryName, pending.RepoName)
	assert.Equal(t, checksum(t, payload), pending.Checksum)
	assert.FileExists(t, src, "the source file is copied, not moved")
}

func TestInstall_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, true)
	cand := candidate(t, "1.0.0")

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	raw := append([]byte("Ed"), []byte("keyid123")...)
	v, err := verify.ParsePublicKey(base64.StdEncoding.EncodeToString(append(raw, pub...)))
	require.NoError(t, err)

	env.resolver.EXPECT().Select(gomock.Any(), "hello", resolve.ModeStrict).Return([]model.Candidate{cand}, nil)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil)
	env.keys.EXPECT().Verifier("bincache").Return(v, nil)
	env.dl.EXPECT().FetchAll(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []download.Item, opts download.Options) (map[string]string, error) {
			if assert.Len(t, items, 2) {
				assert.Equal(t, "/hello.sig", items[1].URL.Path)
			}
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return nil, err
			}
			out := map[string]string{}
			for _, it := range items {
				p := filepath.Join(opts.Dir, it.Filename)
				content := payload
				if it.ID == "signature" {
					content = []byte("not a signature")
				}
				if err := os.WriteFile(p, content, 0o600); err != nil {
					return nil, err
				}
				out[it.ID] = p
			}
			return out, nil
		})

	report := env.engine.Install(context.Background(), []string{"hello"}, lifecycle.InstallOptions{})

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.ErrorIs(t, out.Err, errors.ErrSignatureInvalid)
	assert.Equal(t, lifecycle.PhaseVerifying, out.Phase)
	entries, err := os.ReadDir(filepath.Join(env.cfg.CacheDir(), "downloads"))
	require.NoError(t, err)
	assert.Empty(t, entries, "payload and signature are deleted")
}

func installedRecord(t *testing.T, env *testEnv, ver string) (model.InstalledPackage, string) {
	t.Helper()
	dir := filepath.Join(env.packagesDir(t), "hello-hello-old")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello"), []byte("old"), 0o755))
	return model.InstalledPackage{
		ID:            11,
		RepoName:      "bincache",
		PkgName:       "hello",
		PkgID:         "hello",
		Version:       ver,
		InstalledPath: dir,
		Profile:       config.DefaultProfileName,
		IsInstalled:   true,
		Pinned:        true,
		Portable:      &model.PortableDirs{Home: "/data/hello-home"},
	}, dir
}

func TestUpdate_ChecksumMismatchKeepsPreviousInstall(t *testing.T) {
	env := newTestEnv(t, false)
	old, oldDir := installedRecord(t, env, "1.0.0")
	cand := candidate(t, "2.0.0")
	cand.Checksum = strings.Repeat("ab", 32)

	env.resolver.EXPECT().UpdateTargets(gomock.Any(), false, []string{"hello"}, "").
		Return([]resolve.UpdateTarget{{Ref: "hello", Installed: &old}}, nil)
	env.resolver.EXPECT().Latest(gomock.Any(), &old).Return(cand, true, nil)
	env.servePayload(map[string][]byte{"payload": payload})

	report := env.engine.Update(context.Background(), []string{"hello"}, lifecycle.UpdateOptions{})

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.ErrorIs(t, out.Err, errors.ErrChecksumMismatch)
	assert.False(t, errors.IsRetryable(out.Err))
	assert.Equal(t, lifecycle.PhaseVerifying, out.Phase)
	assert.NoFileExists(t, filepath.Join(env.cfg.CacheDir(), "downloads", cand.Checksum))
	assert.FileExists(t, filepath.Join(oldDir, "hello"))
}

func TestUpdate_PinnedExplicitTargetCarriesState(t *testing.T) {
	env := newTestEnv(t, false)
	old, oldDir := installedRecord(t, env, "1.0.0")
	cand := candidate(t, "2.0.0")

	env.resolver.EXPECT().UpdateTargets(gomock.Any(), false, []string{"hello"}, "").
		Return([]resolve.UpdateTarget{{Ref: "hello", Installed: &old}}, nil)
	env.resolver.EXPECT().Latest(gomock.Any(), &old).Return(cand, true, nil)
	env.servePayload(map[string][]byte{"payload": payload})
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).Return(int64(12), nil)
	env.linker.EXPECT().LinkBinaries(gomock.Any(), "hello", gomock.Any()).Return([]string{"hello"}, nil)
	env.store.EXPECT().Replace(gomock.Any(), int64(11), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, rec *model.InstalledPackage) (int64, error) {
			assert.True(t, rec.Pinned)
			assert.Equal(t, old.Profile, rec.Profile)
			assert.Equal(t, old.Portable, rec.Portable)
			assert.Equal(t, "2.0.0", rec.Version)
			assert.DirExists(t, oldDir, "old files survive until commit")
			return 13, nil
		})
	env.linker.EXPECT().RemoveLinksInto(oldDir).Return(nil, nil)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil)

	report := env.engine.Update(context.Background(), []string{"hello"}, lifecycle.UpdateOptions{})

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)
	assert.Equal(t, lifecycle.PhaseCommitted, report.Outcomes[0].Phase)
	assert.NoDirExists(t, oldDir)
}

func TestUpdate_UpToDateIsSkipped(t *testing.T) {
	env := newTestEnv(t, false)
	old, _ := installedRecord(t, env, "2.0.0")

	env.resolver.EXPECT().UpdateTargets(gomock.Any(), true, gomock.Nil(), "").
		Return([]resolve.UpdateTarget{{Ref: "hello#hello", Installed: &old}}, nil)
	env.resolver.EXPECT().Latest(gomock.Any(), &old).Return(candidate(t, "2.0.0"), false, nil)

	report := env.engine.Update(context.Background(), nil, lifecycle.UpdateOptions{All: true})

	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Skipped)
	assert.Equal(t, "already up to date", report.Outcomes[0].Message)
}

func TestRemove_MissingFilesStillRemovesRecord(t *testing.T) {
	env := newTestEnv(t, false)
	rec := model.InstalledPackage{
		ID:            4,
		PkgName:       "hello",
		PkgID:         "hello",
		RepoName:      "bincache",
		InstalledPath: filepath.Join(env.packagesDir(t), "hello-hello-gone"),
		Profile:       config.DefaultProfileName,
	}

	env.resolver.EXPECT().ResolveInstalled(gomock.Any(), "hello", resolve.InstalledOptions{}).Return([]model.InstalledPackage{rec}, nil)
	env.linker.EXPECT().RemoveLinksInto(rec.InstalledPath).Return(nil, nil)
	env.store.EXPECT().Delete(gomock.Any(), int64(4)).Return(nil)

	report := env.engine.Remove(context.Background(), []string{"hello"}, lifecycle.RemoveOptions{})

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)
	assert.Equal(t, lifecycle.PhaseRemoved, report.Outcomes[0].Phase)
}

func TestRemove_FilesBeforeRecord(t *testing.T) {
	env := newTestEnv(t, false)
	rec, dir := installedRecord(t, env, "1.0.0")

	env.resolver.EXPECT().ResolveInstalled(gomock.Any(), "hello", resolve.InstalledOptions{}).Return([]model.InstalledPackage{rec}, nil)
	gomock.InOrder(
		env.linker.EXPECT().RemoveLinksInto(dir).Return([]string{"/bin/hello"}, nil),
		env.store.EXPECT().Delete(gomock.Any(), rec.ID).DoAndReturn(func(context.Context, int64) error {
			assert.NoDirExists(t, dir)
			return nil
		}),
	)

	report := env.engine.Remove(context.Background(), []string{"hello"}, lifecycle.RemoveOptions{})

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)
}

func TestRemove_NeverDeletesOutsidePackagesDir(t *testing.T) {
	env := newTestEnv(t, false)
	outside := t.TempDir()
	rec := model.InstalledPackage{ID: 8, PkgName: "hello", InstalledPath: outside, Profile: config.DefaultProfileName}

	env.resolver.EXPECT().ResolveInstalled(gomock.Any(), "hello", gomock.Any()).Return([]model.InstalledPackage{rec}, nil)
	env.linker.EXPECT().RemoveLinksInto(outside).Return(nil, nil)
	env.store.EXPECT().Delete(gomock.Any(), int64(8)).Return(nil)

	report := env.engine.Remove(context.Background(), []string{"hello"}, lifecycle.RemoveOptions{})

	require.NoError(t, report.Outcomes[0].Err)
	assert.DirExists(t, outside)
}

func TestConfigKeyring(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Settings.RepositoriesDir = root
	cfg.Repositories = []*config.RepositoryConfig{
		{Name: "signed", URL: "https://example.com/a.db", PubKey: "https://example.com/minisign.pub"},
		{Name: "plain", URL: "https://example.com/b.db"},
	}
	keys := lifecycle.NewConfigKeyring(cfg)

	v, err := keys.Verifier("plain")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = keys.Verifier(config.LocalRepositoryName)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = keys.Verifier("signed")
	assert.ErrorIs(t, err, errors.ErrSignatureInvalid)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	raw := append(append([]byte("Ed"), []byte("keyid123")...), pub...)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "signed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "signed", "minisign.pub"),
		[]byte("untrusted comment: test\n"+base64.StdEncoding.EncodeToString(raw)+"\n"), 0o644))

	v, err = keys.Verifier("signed")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestCleanBroken(t *testing.T) {
	env := newTestEnv(t, false)
	healthy, healthyDir := installedRecord(t, env, "1.0.0")
	pendingDir := filepath.Join(env.packagesDir(t), "hello-hello-pending")
	require.NoError(t, os.MkdirAll(pendingDir, 0o755))
	pending := model.InstalledPackage{ID: 21, PkgName: "hello", InstalledPath: pendingDir, Profile: config.DefaultProfileName}
	gone := model.InstalledPackage{
		ID: 22, PkgName: "gone", IsInstalled: true, Profile: config.DefaultProfileName,
		InstalledPath: filepath.Join(env.packagesDir(t), "gone-gone-x"),
	}

	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]model.InstalledPackage{healthy, pending, gone}, nil)
	env.linker.EXPECT().RemoveLinksInto(pendingDir).Return(nil, nil)
	env.linker.EXPECT().RemoveLinksInto(gone.InstalledPath).Return(nil, nil)
	env.store.EXPECT().Delete(gomock.Any(), int64(21)).Return(nil)
	env.store.EXPECT().Delete(gomock.Any(), int64(22)).Return(nil)
	env.linker.EXPECT().RemoveBrokenLinks().Return([]string{"/bin/dangling"}, nil)

	report := env.engine.CleanBroken(context.Background(), lifecycle.RemoveOptions{})

	ok, _, failed := report.Counts()
	assert.Equal(t, 3, ok)
	assert.Equal(t, "/bin/dangling", report.Outcomes[2].Package)
	assert.Equal(t, 0, failed)
	assert.NoDirExists(t, pendingDir)
	assert.DirExists(t, healthyDir)
}

func variant(id int64, pkgID, dir string, unlinked bool) model.InstalledPackage {
	return model.InstalledPackage{
		ID: id, RepoName: "bincache", PkgName: "hello", PkgID: pkgID, Version: "1.0.0",
		InstalledPath: dir, Profile: config.DefaultProfileName, IsInstalled: true, Unlinked: unlinked,
	}
}

func TestInstall_UnlinksAlternateVariants(t *testing.T) {
	env := newTestEnv(t, false)
	cand := candidate(t, "1.0.0")
	cand.PkgID = "hello.b"
	alt := variant(3, "hello.a", filepath.Join(env.packagesDir(t), "hello-hello.a-x"), false)

	env.resolver.EXPECT().Select(gomock.Any(), "hello#hello.b", resolve.ModeStrict).Return([]model.Candidate{cand}, nil)
	env.servePayload(map[string][]byte{"payload": payload})
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).Return(int64(7), nil)
	env.linker.EXPECT().LinkBinaries(gomock.Any(), "hello", gomock.Any()).Return([]string{"hello"}, nil)
	env.store.EXPECT().Promote(gomock.Any(), int64(7)).Return(nil)
	gomock.InOrder(
		env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil),
		env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]model.InstalledPackage{alt}, nil),
		env.linker.EXPECT().RemoveLinksInto(alt.InstalledPath).Return([]string{"/bin/hello"}, nil),
		env.store.EXPECT().UnlinkOthers(gomock.Any(), int64(7), "hello", config.DefaultProfileName).Return(int64(1), nil),
	)

	report := env.engine.Install(context.Background(), []string{"hello#hello.b"}, lifecycle.InstallOptions{})

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)
	assert.Equal(t, "hello#hello.b:bincache", report.Outcomes[0].Package)
}

func TestUpdate_IntegratingFailureRestoresPreviousLinks(t *testing.T) {
	env := newTestEnv(t, false)
	old, oldDir := installedRecord(t, env, "1.0.0")
	cand := candidate(t, "2.0.0")

	env.resolver.EXPECT().UpdateTargets(gomock.Any(), false, []string{"hello"}, "").
		Return([]resolve.UpdateTarget{{Ref: "hello", Installed: &old}}, nil)
	env.resolver.EXPECT().Latest(gomock.Any(), &old).Return(cand, true, nil)
	env.servePayload(map[string][]byte{"payload": payload})

	var newDir string
	env.store.EXPECT().InsertPending(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *model.InstalledPackage) (int64, error) {
			newDir = rec.InstalledPath
			return 12, nil
		})
	gomock.InOrder(
		env.linker.EXPECT().LinkBinaries(gomock.Not(oldDir), "hello", gomock.Any()).Return(nil, errors.Filesystem(os.ErrPermission, "link")),
		env.linker.EXPECT().RemoveLinksInto(gomock.Not(oldDir)).DoAndReturn(func(dir string) ([]string, error) {
			assert.Equal(t, newDir, dir)
			return nil, nil
		}),
		env.linker.EXPECT().LinkBinaries(oldDir, "hello", old.Provides).Return([]string{"hello"}, nil),
		env.store.EXPECT().Delete(gomock.Any(), int64(12)).Return(nil),
	)

	report := env.engine.Update(context.Background(), []string{"hello"}, lifecycle.UpdateOptions{})

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.ErrorIs(t, out.Err, errors.ErrFilesystem)
	assert.Equal(t, lifecycle.PhaseIntegrating, out.Phase)
	assert.DirExists(t, oldDir)
	assert.NoDirExists(t, newDir)
}

func TestInstall_UnknownProfileTakesNoLock(t *testing.T) {
	env := newTestEnv(t, false)

	report := env.engine.Install(context.Background(), []string{"hello"}, lifecycle.InstallOptions{Profile: "../../escape"})

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, errors.ErrUnknownProfile)
	entries, err := os.ReadDir(env.cfg.LockDir())
	if err == nil {
		assert.Empty(t, entries)
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(filepath.Dir(env.cfg.LockDir())), "escape.lock"))
}

func TestSwitch_RelinksChosenVariant(t *testing.T) {
	env := newTestEnv(t, false)
	a := variant(1, "hello.a", "/pkgs/hello-a", false)
	b := variant(2, "hello.b", "/pkgs/hello-b", true)

	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]model.InstalledPackage{a, b}, nil)
	gomock.InOrder(
		env.linker.EXPECT().RemoveLinksInto(a.InstalledPath).Return([]string{"/bin/hello"}, nil),
		env.linker.EXPECT().LinkBinaries(b.InstalledPath, "hello", b.Provides).Return([]string{"/bin/hello"}, nil),
		env.store.EXPECT().Activate(gomock.Any(), int64(2), "hello", config.DefaultProfileName).Return(nil),
	)

	report := env.engine.Switch(context.Background(), "hello", "HELLO.B", "")

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	require.NoError(t, out.Err)
	assert.Equal(t, lifecycle.PhaseCommitted, out.Phase)
	assert.Equal(t, "hello#hello.b:bincache", out.Package)
}

func TestSwitch_LinkFailureRestoresActiveVariant(t *testing.T) {
	env := newTestEnv(t, false)
	a := variant(1, "hello.a", "/pkgs/hello-a", false)
	b := variant(2, "hello.b", "/pkgs/hello-b", true)

	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]model.InstalledPackage{a, b}, nil)
	gomock.InOrder(
		env.linker.EXPECT().RemoveLinksInto(a.InstalledPath).Return(nil, nil),
		env.linker.EXPECT().LinkBinaries(b.InstalledPath, "hello", gomock.Any()).Return(nil, errors.Filesystem(os.ErrPermission, "link")),
		env.linker.EXPECT().RemoveLinksInto(b.InstalledPath).Return(nil, nil),
		env.linker.EXPECT().LinkBinaries(a.InstalledPath, "hello", gomock.Any()).Return([]string{"/bin/hello"}, nil),
	)

	report := env.engine.Switch(context.Background(), "hello", "hello.b", "")

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, errors.ErrFilesystem)
	assert.Equal(t, lifecycle.PhaseIntegrating, report.Outcomes[0].Phase)
}

func TestSwitch_NothingToDo(t *testing.T) {
	env := newTestEnv(t, false)
	a := variant(1, "hello.a", "/pkgs/hello-a", false)
	b := variant(2, "hello.b", "/pkgs/hello-b", true)
	env.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]model.InstalledPackage{a, b}, nil).Times(2)

	report := env.engine.Switch(context.Background(), "hello", "hello.a", "")
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Skipped)
	assert.Equal(t, "already active", report.Outcomes[0].Message)

	report = env.engine.Switch(context.Background(), "hello", "hello.c", "")
	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, errors.ErrNotFound)
}
