// Package metadata holds the per-repository package snapshots: a read-only
// sqlite store per repository, a set that fans queries out across them, and
// the syncer that keeps each snapshot current.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	// sqlite driver
	_ "modernc.org/sqlite"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

// Store is one repository snapshot opened for reading.
type Store struct {
	db   *sql.DB
	name string
	path string
}

// Open opens an existing snapshot at path. name is the repository the rows belong to.
func Open(path, name string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrInvalidSnapshot, name, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "open metadata for %s", name)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrInvalidSnapshot, path, err)
	}
	if version != SchemaVersion {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s has schema version %d, want %d", errors.ErrInvalidSnapshot, path, version, SchemaVersion)
	}
	return &Store{db: db, name: name, path: path}, nil
}

// Name is the repository this snapshot belongs to.
func (s *Store) Name() string { return s.name }

// Path is the snapshot file.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// ETag returns the entity tag recorded when the snapshot was fetched.
func (s *Store) ETag(ctx context.Context) (string, error) {
	return readETag(ctx, s.db)
}

func readETag(ctx context.Context, db *sql.DB) (string, error) {
	var etag string
	err := db.QueryRowContext(ctx, "SELECT etag FROM repository WHERE id = 1").Scan(&etag)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return etag, err
}

// Count returns the number of packages in the snapshot.
func (s *Store) Count(ctx context.Context) (int, error) {
	return countPackages(ctx, s.db)
}

func countPackages(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM packages").Scan(&n)
	return n, err
}

var packageSchema = query.Schema{
	Columns: map[query.Field]string{
		query.FieldID:          "p.id",
		query.FieldPkg:         "p.pkg",
		query.FieldPkgID:       "p.pkg_id",
		query.FieldPkgName:     "p.pkg_name",
		query.FieldPkgType:     "p.pkg_type",
		query.FieldFamily:      "f.name",
		query.FieldVersion:     "p.version",
		query.FieldDescription: "p.description",
		query.FieldChecksum:    "p.checksum",
		query.FieldRank:        "p.rank",
	},
	Custom: map[query.Field]query.Renderer{
		query.FieldProvides: existsMatch(
			"EXISTS (SELECT 1 FROM provides pr WHERE pr.package_id = p.id AND (pr.name %[1]s OR pr.target %[1]s))", 2),
		query.FieldTag: existsMatch(
			"EXISTS (SELECT 1 FROM json_each(p.tags) WHERE value %[1]s)", 1),
		query.FieldMaintainer: existsMatch(
			"EXISTS (SELECT 1 FROM package_maintainers pm JOIN maintainers m ON m.id = pm.maintainer_id "+
				"WHERE pm.package_id = p.id AND (m.name %[1]s OR m.contact %[1]s))", 2),
	},
}

// existsMatch renders a subquery comparison. tmpl holds %[1]s wherever the
// comparison goes and n placeholders in total.
func existsMatch(tmpl string, n int) query.Renderer {
	var render query.Renderer
	render = func(op query.Op, value any) (string, []any, error) {
		var (
			cmp string
			arg any
		)
		switch op {
		case query.OpEq, query.OpEqFold:
			cmp, arg = "= ? COLLATE NOCASE", value
		case query.OpContains:
			cmp, arg = `LIKE ? ESCAPE '\'`, query.LikePattern(fmt.Sprint(value))
		case query.OpNe:
			frag, args, err := render(query.OpEq, value)
			return "NOT " + frag, args, err
		default:
			return "", nil, errors.Wrapf(errors.ErrInvalidQuery, "operator %s is not supported here", op)
		}
		args := make([]any, n)
		for i := range args {
			args[i] = arg
		}
		return fmt.Sprintf(tmpl, cmp), args, nil
	}
	return render
}

const selectPackages = `
SELECT p.id, p.pkg, p.pkg_id, p.pkg_name, p.pkg_type, COALESCE(f.name, ''),
	p.description, p.version, p.download_url, p.size, p.checksum,
	p.icon, p.desktop, p.app_id, p.pkg_webpage, p.build_date,
	p.homepages, p.tags, p.notes, p.src_urls, p.licenses,
	p.soar_syms, p.desktop_integration, p.portable, p.rank,
	(SELECT json_group_array(json_object('name', pr.name, 'target', pr.target, 'strategy', pr.strategy))
		FROM provides pr WHERE pr.package_id = p.id),
	(SELECT json_group_array(json_object('name', m.name, 'contact', m.contact))
		FROM package_maintainers pm JOIN maintainers m ON m.id = pm.maintainer_id WHERE pm.package_id = p.id)
FROM packages p
LEFT JOIN families f ON f.id = p.family_id
`

// Query returns the packages matching pred. Rows are tagged with the store's repository name.
func (s *Store) Query(ctx context.Context, pred query.Predicate) ([]model.Package, error) {
	compiled, err := packageSchema.Compile(pred)
	if err != nil {
		return nil, err
	}
	stmt := selectPackages + "WHERE " + compiled.Where
	if compiled.Tail != "" {
		stmt += " " + compiled.Tail
	} else {
		stmt += " ORDER BY p.id"
	}
	rows, err := s.db.QueryContext(ctx, stmt, compiled.Args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", s.name)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", s.name)
		}
		p.RepoName = s.name
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPackage(rows *sql.Rows) (model.Package, error) {
	var (
		p                                         model.Package
		homepages, tags, notes, srcURLs, licenses string
		desktopIntegration, portable              sql.NullBool
		providesJSON, maintainersJSON             sql.NullString
	)
	err := rows.Scan(&p.ID, &p.Pkg, &p.PkgID, &p.PkgName, &p.PkgType, &p.Family,
		&p.Description, &p.Version, &p.DownloadURL, &p.Size, &p.Checksum,
		&p.Icon, &p.Desktop, &p.AppID, &p.Webpage, &p.BuildDate,
		&homepages, &tags, &notes, &srcURLs, &licenses,
		&p.SoarSyms, &desktopIntegration, &portable, &p.Rank,
		&providesJSON, &maintainersJSON)
	if err != nil {
		return p, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{homepages, &p.Homepages}, {tags, &p.Tags}, {notes, &p.Notes},
		{srcURLs, &p.SourceURLs}, {licenses, &p.Licenses},
	} {
		if err := decodeList(f.raw, f.dst); err != nil {
			return p, err
		}
	}
	if desktopIntegration.Valid {
		v := desktopIntegration.Bool
		p.DesktopIntegration = &v
	}
	if portable.Valid {
		v := portable.Bool
		p.Portable = &v
	}
	if err := decodeList(providesJSON.String, &p.Provides); err != nil {
		return p, err
	}
	if err := decodeList(maintainersJSON.String, &p.Maintainers); err != nil {
		return p, err
	}
	return p, nil
}

func decodeList[T any](raw string, dst *[]T) error {
	if raw == "" || raw == "[]" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
