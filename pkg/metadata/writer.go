package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/model"
)

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, "create metadata schema")
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return errors.Wrap(err, "set schema version")
	}
	return nil
}

func setRepository(ctx context.Context, db *sql.DB, name, etag string) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO repository (id, name, etag) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, etag = excluded.etag`, name, etag)
	return err
}

// WriteSnapshot creates a new snapshot database at path holding pkgs and
// returns how many rows were stored. Duplicate (pkg_id, pkg_name) pairs keep
// the first occurrence. An existing file at path is replaced.
func WriteSnapshot(ctx context.Context, path, repoName, etag string, pkgs []model.Package) (int, error) {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return 0, errors.Filesystem(err, "create snapshot directory")
	}
	if err := fsutil.RemoveIfExists(path); err != nil {
		return 0, errors.Filesystem(err, "remove stale snapshot %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, errors.Wrap(err, "create snapshot")
	}
	defer func() { _ = db.Close() }()

	if err := initSchema(ctx, db); err != nil {
		return 0, err
	}
	if err := setRepository(ctx, db, repoName, etag); err != nil {
		return 0, errors.Wrap(err, "record repository")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := insertPackages(ctx, tx, pkgs)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

// ImportJSON converts a JSON package array into a snapshot at path. The file
// is built next to path and renamed into place.
func ImportJSON(ctx context.Context, data []byte, path, repoName, etag string) (int, error) {
	pkgs, err := DecodeJSON(data)
	if err != nil {
		return 0, err
	}
	if len(pkgs) == 0 {
		return 0, fmt.Errorf("%w: no packages in JSON payload", errors.ErrInvalidSnapshot)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.json2db")
	if err != nil {
		return 0, errors.Filesystem(err, "create temp snapshot")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = fsutil.RemoveIfExists(tmpPath) }()

	n, err := WriteSnapshot(ctx, tmpPath, repoName, etag, pkgs)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, errors.Filesystem(err, "install snapshot %s", path)
	}
	return n, nil
}

type snapshotWriter struct {
	tx          *sql.Tx
	families    map[string]int64
	maintainers map[model.Maintainer]int64
}

func insertPackages(ctx context.Context, tx *sql.Tx, pkgs []model.Package) (int, error) {
	w := &snapshotWriter{tx: tx, families: map[string]int64{}, maintainers: map[model.Maintainer]int64{}}
	stored := 0
	for i := range pkgs {
		ok, err := w.insert(ctx, &pkgs[i])
		if err != nil {
			return 0, errors.Wrapf(err, "insert %s", pkgs[i].PkgID)
		}
		if ok {
			stored++
		}
	}
	return stored, nil
}

func (w *snapshotWriter) insert(ctx context.Context, p *model.Package) (bool, error) {
	var familyID sql.NullInt64
	if p.Family != "" {
		id, err := w.family(ctx, p.Family)
		if err != nil {
			return false, err
		}
		familyID = sql.NullInt64{Int64: id, Valid: true}
	}
	lists := make([]string, 0, 5)
	for _, l := range [][]string{p.Homepages, p.Tags, p.Notes, p.SourceURLs, p.Licenses} {
		lists = append(lists, encodeList(l))
	}

	res, err := w.tx.ExecContext(ctx, `
INSERT INTO packages (pkg, pkg_id, pkg_name, pkg_type, family_id, description, version,
	download_url, size, checksum, icon, desktop, app_id, pkg_webpage, build_date,
	homepages, tags, notes, src_urls, licenses, soar_syms, desktop_integration, portable, rank)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (pkg_id, pkg_name) DO NOTHING`,
		p.Pkg, p.PkgID, p.PkgName, p.PkgType, familyID, p.Description, p.Version,
		p.DownloadURL, p.Size, p.Checksum, p.Icon, p.Desktop, p.AppID, p.Webpage, p.BuildDate,
		lists[0], lists[1], lists[2], lists[3], lists[4],
		p.SoarSyms, nullBool(p.DesktopIntegration), nullBool(p.Portable), p.Rank)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	p.ID = id

	for _, pr := range p.Provides {
		if _, err := w.tx.ExecContext(ctx,
			"INSERT INTO provides (package_id, name, target, strategy) VALUES (?, ?, ?, ?)",
			id, pr.Name, pr.Target, string(pr.Strategy)); err != nil {
			return false, err
		}
	}
	for _, m := range p.Maintainers {
		mid, err := w.maintainer(ctx, m)
		if err != nil {
			return false, err
		}
		if _, err := w.tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO package_maintainers (maintainer_id, package_id) VALUES (?, ?)", mid, id); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (w *snapshotWriter) family(ctx context.Context, name string) (int64, error) {
	if id, ok := w.families[name]; ok {
		return id, nil
	}
	var id int64
	err := w.tx.QueryRowContext(ctx, `
INSERT INTO families (name) VALUES (?)
ON CONFLICT (name) DO UPDATE SET name = excluded.name
RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, err
	}
	w.families[name] = id
	return id, nil
}

func (w *snapshotWriter) maintainer(ctx context.Context, m model.Maintainer) (int64, error) {
	if id, ok := w.maintainers[m]; ok {
		return id, nil
	}
	var id int64
	err := w.tx.QueryRowContext(ctx, `
INSERT INTO maintainers (name, contact) VALUES (?, ?)
ON CONFLICT (name, contact) DO UPDATE SET name = excluded.name
RETURNING id`, m.Name, m.Contact).Scan(&id)
	if err != nil {
		return 0, err
	}
	w.maintainers[m] = id
	return id, nil
}

func encodeList(l []string) string {
	if len(l) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(l)
	return string(b)
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
