package installed

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one schema step. Files are named V<version>_<name>.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// LoadMigrations reads V<n>_<name>.sql files from fsys in version order.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []Migration
	seen := map[int]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" || !strings.HasPrefix(name, "V") {
			continue
		}
		stem := strings.TrimSuffix(strings.TrimPrefix(name, "V"), ".sql")
		num, label, ok := strings.Cut(stem, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(num)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid migration version in %s", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: version, Name: label, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func builtinMigrations() ([]Migration, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return LoadMigrations(sub)
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// Migrate applies every migration newer than the database's user_version,
// each in its own transaction. Running it again is a no-op. A database
// written by a newer schema is refused.
func Migrate(ctx context.Context, db *sql.DB, migrations []Migration) error {
	current, err := userVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("%w: read schema version: %w", errors.ErrSchemaMigration, err)
	}
	if n := len(migrations); n > 0 && current > migrations[n-1].Version {
		return fmt.Errorf("%w: database schema version %d is newer than supported %d",
			errors.ErrSchemaMigration, current, migrations[n-1].Version)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return errors.ErrMigrationWithVersion(m.Version, err)
		}
		logger.Debug("applied migration", logger.Fields{"version": m.Version, "name": m.Name})
		current = m.Version
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
