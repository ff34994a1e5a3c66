// Package installed is the installed-state store: the record of what soar
// placed on disk, per profile, backed by sqlite.
package installed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// sqlite driver
	_ "modernc.org/sqlite"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/model"
)

const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Store is the installed-state database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return nil, errors.Filesystem(err, "create database directory")
	}
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, errors.Wrap(err, "open installed database")
	}
	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate brings the schema to the latest version.
func (s *Store) Migrate(ctx context.Context) error {
	migrations, err := builtinMigrations()
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSchemaMigration, err)
	}
	return Migrate(ctx, s.db, migrations)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec *model.InstalledPackage, installedDate *time.Time) (int64, error) {
	provides, err := encodeJSON(rec.Provides)
	if err != nil {
		return 0, err
	}
	patterns, err := encodeJSON(rec.InstallPatterns)
	if err != nil {
		return 0, err
	}
	var date sql.NullString
	if installedDate != nil {
		date = sql.NullString{String: installedDate.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO packages (repo_name, pkg, pkg_id, pkg_name, pkg_type, version, size, checksum,
	installed_path, installed_date, profile, pinned, is_installed, with_pkg_id, detached, unlinked,
	provides, install_patterns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RepoName, rec.Pkg, rec.PkgID, rec.PkgName, rec.PkgType, rec.Version, rec.Size, rec.Checksum,
		rec.InstalledPath, date, rec.Profile, rec.Pinned, installedDate != nil, rec.WithPkgID, rec.Detached, rec.Unlinked,
		provides, patterns)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if !rec.Portable.IsZero() {
		if err := upsertPortable(ctx, tx, id, rec.Portable); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// InsertPending records an install that has started but not finished.
// The row has is_installed = false until Promote.
func (s *Store) InsertPending(ctx context.Context, rec *model.InstalledPackage) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRecord(ctx, tx, rec, nil)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "insert pending %s", rec.PkgName)
	}
	return id, nil
}

// Promote marks a pending record installed and stamps the install date.
func (s *Store) Promote(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE packages SET is_installed = 1, installed_date = ? WHERE id = ?",
		s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return errors.Wrapf(err, "promote %d", id)
	}
	return expectRow(res, id)
}

// Replace deletes oldID and inserts rec as an installed record in one
// transaction. A pending row for rec (rec.ID != 0) is dropped as well. When
// rec carries no portable dirs the old record's are kept.
func (s *Store) Replace(ctx context.Context, oldID int64, rec *model.InstalledPackage) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if rec.Portable.IsZero() {
			old, err := portableFor(ctx, tx, oldID)
			if err != nil {
				return err
			}
			if !old.IsZero() {
				copied := *old
				rec.Portable = &copied
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM packages WHERE id = ?", oldID)
		if err != nil {
			return err
		}
		if err := expectRow(res, oldID); err != nil {
			return err
		}
		if rec.ID != 0 && rec.ID != oldID {
			if _, err := tx.ExecContext(ctx, "DELETE FROM packages WHERE id = ?", rec.ID); err != nil {
				return err
			}
		}
		now := s.now()
		id, err = insertRecord(ctx, tx, rec, &now)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "replace %d", oldID)
	}
	rec.ID = id
	return id, nil
}

// Delete removes a record; its portable row goes with it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM packages WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "delete %d", id)
	}
	return expectRow(res, id)
}

// SetPinned toggles whether bulk updates skip the record.
func (s *Store) SetPinned(ctx context.Context, id int64, pinned bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE packages SET pinned = ? WHERE id = ?", pinned, id)
	if err != nil {
		return errors.Wrapf(err, "pin %d", id)
	}
	return expectRow(res, id)
}

// UnlinkOthers marks every installed variant of pkgName in profile other than keepID as unlinked.
func (s *Store) UnlinkOthers(ctx context.Context, keepID int64, pkgName, profile string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE packages SET unlinked = 1
WHERE id <> ? AND pkg_name = ? COLLATE NOCASE AND profile = ? AND is_installed = 1`,
		keepID, pkgName, profile)
	if err != nil {
		return 0, errors.Wrapf(err, "unlink alternates of %s", pkgName)
	}
	return res.RowsAffected()
}

// Activate clears the unlinked flag of id and sets it on every other installed
// variant of pkgName in profile.
func (s *Store) Activate(ctx context.Context, id int64, pkgName, profile string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE packages SET unlinked = 0 WHERE id = ? AND is_installed = 1", id)
		if err != nil {
			return err
		}
		if err := expectRow(res, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE packages SET unlinked = 1
WHERE id <> ? AND pkg_name = ? COLLATE NOCASE AND profile = ? AND is_installed = 1`,
			id, pkgName, profile)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "activate %d", id)
	}
	return nil
}

func upsertPortable(ctx context.Context, tx *sql.Tx, id int64, d *model.PortableDirs) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO portable_package (package_id, portable_path, portable_home, portable_config, portable_share, portable_cache)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (package_id) DO UPDATE SET
	portable_path = excluded.portable_path,
	portable_home = excluded.portable_home,
	portable_config = excluded.portable_config,
	portable_share = excluded.portable_share,
	portable_cache = excluded.portable_cache`,
		id, nullString(d.Path), nullString(d.Home), nullString(d.Config), nullString(d.Share), nullString(d.Cache))
	return err
}

func portableFor(ctx context.Context, tx *sql.Tx, id int64) (*model.PortableDirs, error) {
	var p, h, c, sh, ca sql.NullString
	err := tx.QueryRowContext(ctx, `
SELECT portable_path, portable_home, portable_config, portable_share, portable_cache
FROM portable_package WHERE package_id = ?`, id).Scan(&p, &h, &c, &sh, &ca)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.PortableDirs{Path: p.String, Home: h.String, Config: c.String, Share: sh.String, Cache: ca.String}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: installed record %d", errors.ErrNotFound, id)
	}
	return nil
}
