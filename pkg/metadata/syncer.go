package metadata

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/verify"
)

// SyncOutcome is the result of syncing one repository.
type SyncOutcome int

const (
	// Skipped means the snapshot is younger than the sync interval.
	Skipped SyncOutcome = iota
	// Unchanged means the remote reported the same ETag.
	Unchanged
	// Updated means a new snapshot replaced the old one.
	Updated
)

func (o SyncOutcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Target is a repository as the syncer sees it.
type Target struct {
	Name     string
	URL      string // platform placeholders already expanded
	PubKey   string // URL of the minisign key, or the key itself
	Dir      string // per-repository directory holding the snapshot
	Interval config.SyncInterval
}

// SnapshotPath is the snapshot file of t.
func (t Target) SnapshotPath() string { return filepath.Join(t.Dir, SnapshotFile) }

var (
	sqliteMagic = []byte("SQLite format 3\x00")
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Syncer refreshes repository snapshots with conditional requests.
type Syncer struct {
	client    *http.Client
	userAgent string
	retry     download.RetryPolicy
	now       func() time.Time
}

// NewSyncer creates a syncer issuing requests through client.
func NewSyncer(client *http.Client, userAgent string, retry download.RetryPolicy) *Syncer {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = download.DefaultUserAgent
	}
	return &Syncer{client: client, userAgent: userAgent, retry: retry, now: time.Now}
}

// Sync brings t's snapshot up to date. Without force a snapshot younger than
// the interval is left alone. The file on disk is only ever replaced by rename.
func (s *Syncer) Sync(ctx context.Context, t Target, force bool) (SyncOutcome, error) {
	if err := fsutil.EnsureDir(t.Dir); err != nil {
		return Skipped, errors.Filesystem(err, "create repository dir for %s", t.Name)
	}
	path := t.SnapshotPath()

	var etag string
	if info, err := os.Stat(path); err == nil {
		if !force && !t.Interval.Due(info.ModTime(), s.now()) {
			return Skipped, nil
		}
		if st, err := Open(path, t.Name); err == nil {
			etag, _ = st.ETag(ctx)
			_ = st.Close()
		}
	}

	outcome := Unchanged
	err := s.retry.Do(ctx, t.URL, func(ctx context.Context) error {
		var err error
		outcome, err = s.fetch(ctx, t, etag)
		return err
	})
	if err != nil {
		return Skipped, err
	}
	if outcome == Unchanged {
		now := s.now()
		_ = os.Chtimes(path, now, now)
	}

	if err := s.syncPubKey(ctx, t, force); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (s *Syncer) fetch(ctx context.Context, t Target, etag string) (SyncOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, http.NoBody)
	if err != nil {
		return Skipped, errors.Wrapf(err, "build request for %s", t.Name)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Skipped, ctx.Err()
		}
		return Skipped, errors.Network(err, "fetch metadata for %s", t.Name)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return Unchanged, nil
	}
	if err := download.CheckStatus(resp); err != nil {
		return Skipped, err
	}
	remoteETag := resp.Header.Get("ETag")
	if remoteETag == "" {
		return Skipped, fmt.Errorf("%w: %s", errors.ErrMissingETag, t.URL)
	}
	if remoteETag == etag {
		return Unchanged, nil
	}

	if err := s.install(ctx, t, remoteETag, resp.Body); err != nil {
		return Skipped, err
	}
	logger.Debug("metadata updated", logger.Fields{"repo": t.Name, "etag": remoteETag})
	return Updated, nil
}

// install stages the payload next to the snapshot, validates it and renames it into place.
func (s *Syncer) install(ctx context.Context, t Target, etag string, body io.Reader) error {
	tmp, err := os.CreateTemp(t.Dir, "."+SnapshotFile+".*.tmp")
	if err != nil {
		return errors.Filesystem(err, "create temp snapshot")
	}
	tmpPath := tmp.Name()
	defer func() { _ = fsutil.RemoveIfExists(tmpPath) }()

	br := bufio.NewReader(body)
	head, _ := br.Peek(len(sqliteMagic))
	var src io.Reader = br
	if bytes.HasPrefix(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("%w: zstd: %w", errors.ErrInvalidSnapshot, err)
		}
		defer dec.Close()
		src = dec
	}

	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Network(copyErr, "read metadata for %s", t.Name)
	}
	if closeErr != nil {
		return errors.Filesystem(closeErr, "write temp snapshot")
	}

	payload, err := os.Open(tmpPath)
	if err != nil {
		return errors.Filesystem(err, "reopen temp snapshot")
	}
	magic := make([]byte, len(sqliteMagic))
	n, _ := io.ReadFull(payload, magic)
	_ = payload.Close()

	switch {
	case bytes.Equal(magic[:n], sqliteMagic):
		if err := finalizeSnapshot(ctx, tmpPath, t.Name, etag); err != nil {
			return err
		}
	case looksLikeJSON(magic[:n]):
		data, err := os.ReadFile(tmpPath)
		if err != nil {
			return errors.Filesystem(err, "read JSON metadata")
		}
		if _, err := ImportJSON(ctx, data, tmpPath, t.Name, etag); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s: unrecognized payload", errors.ErrInvalidSnapshot, t.Name)
	}

	if err := os.Rename(tmpPath, t.SnapshotPath()); err != nil {
		return errors.Filesystem(err, "install snapshot for %s", t.Name)
	}
	return nil
}

func looksLikeJSON(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// finalizeSnapshot checks a downloaded sqlite snapshot and records its ETag.
func finalizeSnapshot(ctx context.Context, path, name, etag string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidSnapshot, err)
	}
	defer func() { _ = db.Close() }()

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrInvalidSnapshot, name, err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("%w: %s: schema version %d, want %d", errors.ErrInvalidSnapshot, name, version, SchemaVersion)
	}
	n, err := countPackages(ctx, db)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrInvalidSnapshot, name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s: snapshot holds no packages", errors.ErrInvalidSnapshot, name)
	}
	if err := setRepository(ctx, db, name, etag); err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrInvalidSnapshot, name, err)
	}
	return nil
}

// syncPubKey stores the repository key as minisign.pub. It is fetched once
// and again only when forced.
func (s *Syncer) syncPubKey(ctx context.Context, t Target, force bool) error {
	if t.PubKey == "" {
		return nil
	}
	dest := filepath.Join(t.Dir, PubKeyFile)
	if _, err := os.Stat(dest); err == nil && !force {
		return nil
	}

	content := t.PubKey
	if strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://") {
		var body []byte
		err := s.retry.Do(ctx, content, func(ctx context.Context) error {
			var err error
			body, err = s.get(ctx, content)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "fetch public key for %s", t.Name)
		}
		content = string(body)
	}
	if _, err := verify.ParsePublicKey(content); err != nil {
		return errors.Wrapf(err, "public key for %s", t.Name)
	}
	if err := fsutil.WriteFileAtomic(dest, []byte(content), fsutil.FileModeDefault); err != nil {
		return errors.Filesystem(err, "write public key for %s", t.Name)
	}
	return nil
}

const maxKeySize = 64 * 1024

func (s *Syncer) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Network(err, "GET %s", target)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := download.CheckStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySize))
	if err != nil {
		return nil, errors.Network(err, "read %s", target)
	}
	return body, nil
}
