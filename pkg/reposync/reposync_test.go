package reposync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/metadata"
	"github.com/pkgforge/soar/pkg/platform"
	"github.com/pkgforge/soar/pkg/reposync"
)

const payload = `[{"pkg_id":"a.tool","pkg_name":"tool","version":"1.0","download_url":"https://x/tool"}]`

type invalidations struct {
	mu    sync.Mutex
	names []string
}

func (i *invalidations) Invalidate(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.names = append(i.names, name)
}

func boolPtr(b bool) *bool { return &b }

func testConfig(t *testing.T, urls map[string]string, order ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Settings.RepositoriesDir = t.TempDir()
	cfg.Settings.ParallelLimit = 2
	cfg.Repositories = nil
	for _, name := range order {
		cfg.Repositories = append(cfg.Repositories, &config.RepositoryConfig{
			Name:         name,
			URL:          urls[name],
			SyncInterval: "always",
		})
	}
	return cfg
}

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/good/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(payload))
	})
	mux.HandleFunc("/bad/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"x"`)
		_, _ = w.Write([]byte("not a database"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newEngine(cfg *config.Config, set reposync.Invalidator) *reposync.Engine {
	syncer := metadata.NewSyncer(http.DefaultClient, "test", download.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond})
	return reposync.New(cfg, syncer, set, platform.Platform{OS: "Linux", Arch: "x86_64"})
}

func TestSyncAll_IsolatesFailures(t *testing.T) {
	server := newServer(t)
	cfg := testConfig(t, map[string]string{
		"one": server.URL + "/good/one.json",
		"bad": server.URL + "/bad/x.json",
		"two": server.URL + "/good/two.json",
	}, "one", "bad", "two")
	set := &invalidations{}

	results := newEngine(cfg, set).SyncAll(context.Background(), false)

	require.Len(t, results, 3)
	assert.Equal(t, "one", results[0].Repo)
	assert.Equal(t, metadata.Updated, results[0].Outcome)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "bad", results[1].Repo)
	assert.Error(t, results[1].Err)
	assert.NoFileExists(t, filepath.Join(cfg.RepositoryDir("bad"), metadata.SnapshotFile))
	assert.Equal(t, metadata.Updated, results[2].Outcome)
	assert.True(t, reposync.Failed(results))
	assert.ElementsMatch(t, []string{"one", "two"}, set.names)
}

func TestSyncAll_UnchangedDoesNotInvalidate(t *testing.T) {
	server := newServer(t)
	cfg := testConfig(t, map[string]string{"one": server.URL + "/good/one.json"}, "one")
	set := &invalidations{}
	engine := newEngine(cfg, set)

	first := engine.SyncAll(context.Background(), false)
	require.NoError(t, first[0].Err)
	second := engine.SyncAll(context.Background(), false)

	require.Len(t, second, 1)
	assert.Equal(t, metadata.Unchanged, second[0].Outcome)
	assert.Equal(t, []string{"one"}, set.names)
	assert.False(t, reposync.Failed(second))
}

func TestSyncAll_SkipsDisabledAndUnnamed(t *testing.T) {
	server := newServer(t)
	cfg := testConfig(t, map[string]string{
		"one": server.URL + "/good/one.json",
		"two": server.URL + "/good/two.json",
		"off": server.URL + "/good/off.json",
	}, "one", "two", "off")
	cfg.Repositories[2].Enabled = boolPtr(false)

	results := newEngine(cfg, nil).SyncAll(context.Background(), true, "two", "off")

	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].Repo)
	assert.NoError(t, results[0].Err)
}

func TestTargetAndSources(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a": "https://example.com/{platform}/a.db",
		"b": "https://example.com/b.db",
	}, "a", "b")
	cfg.Repositories[0].PubKey = "https://example.com/minisign.pub"
	cfg.Repositories[1].Enabled = boolPtr(false)
	cfg.Repositories[1].Priority = 5

	target := reposync.Target(cfg, cfg.Repositories[0], platform.Platform{OS: "Linux", Arch: "aarch64"})
	assert.Equal(t, "https://example.com/aarch64-Linux/a.db", target.URL)
	assert.Equal(t, cfg.RepositoryDir("a"), target.Dir)
	assert.Equal(t, config.SyncAlways, target.Interval)
	assert.Equal(t, "https://example.com/minisign.pub", target.PubKey)

	sources := reposync.Sources(cfg)
	require.Len(t, sources, 1)
	assert.Equal(t, "a", sources[0].Name)
	assert.Equal(t, filepath.Join(cfg.RepositoryDir("a"), metadata.SnapshotFile), sources[0].Path)
}
