//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkgforge/soar/pkg/verify"
)

// testPackage is one entry served by the test repository.
type testPackage struct {
	Name        string
	ID          string
	Version     string
	Description string
	Payload     []byte
	// BadChecksum publishes a digest that does not match Payload.
	BadChecksum bool
}

// startRepoServer serves a repository with metadata at /metadata.json and
// every payload at /files/<id>. It returns the server and the metadata URL.
func startRepoServer(t *testing.T, pkgs ...testPackage) (*httptest.Server, string) {
	t.Helper()

	files := make(map[string][]byte, len(pkgs))
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	entries := make([]map[string]any, 0, len(pkgs))
	for _, p := range pkgs {
		sum, err := verify.HashReader(bytes.NewReader(p.Payload))
		require.NoError(t, err)
		if p.BadChecksum {
			sum = strings.Repeat("0", len(sum))
		}
		files[p.ID] = p.Payload
		entries = append(entries, map[string]any{
			"pkg_id":       p.ID,
			"pkg_name":     p.Name,
			"pkg_type":     "static",
			"version":      p.Version,
			"description":  p.Description,
			"download_url": srv.URL + "/files/" + p.ID,
			"size_raw":     len(p.Payload),
			"bsum":         sum,
			"provides":     []string{p.Name},
		})
	}
	metadata, err := json.Marshal(entries)
	require.NoError(t, err)

	mux.HandleFunc("/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(metadata)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[strings.TrimPrefix(r.URL.Path, "/files/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})

	return srv, srv.URL + "/metadata.json"
}

// writeTempConfig writes a config rooted at root with a single repository.
// If repoURL is empty, writes an empty repositories list.
func writeTempConfig(t *testing.T, root, repoName, repoURL string) string {
	t.Helper()
	path := filepath.Join(root, "config.yaml")

	yamlContent := "profiles:\n" +
		"  default:\n" +
		"    root_dir: " + root + "\n" +
		"settings:\n" +
		"  default_profile: default\n" +
		"  lock_dir: " + filepath.Join(root, "locks") + "\n" +
		"  desktop_dir: " + filepath.Join(root, "applications") + "\n" +
		"  icons_dir: " + filepath.Join(root, "icons") + "\n" +
		"  http_timeout: 5s\n" +
		"  max_retries: 1\n" +
		"  retry_base_delay: 1ms\n" +
		"  log_level: error\n"
	if repoURL != "" {
		yamlContent += "repositories:\n" +
			"  - name: " + repoName + "\n" +
			"    url: " + repoURL + "\n" +
			"    sync_interval: always\n"
	} else {
		yamlContent += "repositories: []\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))
	return path
}

// runCLI executes the root command with args and returns everything it printed.
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func helloPackage() testPackage {
	return testPackage{
		Name:        "hello",
		ID:          "example.hello",
		Version:     "1.0.0",
		Description: "prints a friendly greeting",
		Payload:     []byte("#!/bin/sh\necho hello\n"),
	}
}
