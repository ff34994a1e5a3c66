package installed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

var recordSchema = query.Schema{
	Columns: map[query.Field]string{
		query.FieldID:          "p.id",
		query.FieldRepo:        "p.repo_name",
		query.FieldPkg:         "p.pkg",
		query.FieldPkgID:       "p.pkg_id",
		query.FieldPkgName:     "p.pkg_name",
		query.FieldPkgType:     "p.pkg_type",
		query.FieldVersion:     "p.version",
		query.FieldChecksum:    "p.checksum",
		query.FieldProfile:     "p.profile",
		query.FieldPinned:      "p.pinned",
		query.FieldIsInstalled: "p.is_installed",
		query.FieldDetached:    "p.detached",
		query.FieldUnlinked:    "p.unlinked",
	},
	Custom: map[query.Field]query.Renderer{
		query.FieldProvides: providesRenderer,
	},
}

// providesRenderer matches the provides JSON column on either the provided
// name or its link target.
func providesRenderer(op query.Op, value any) (string, []any, error) {
	const tmpl = "EXISTS (SELECT 1 FROM json_each(p.provides) j WHERE json_extract(j.value, '$.name') %[1]s OR json_extract(j.value, '$.target') %[1]s)"
	switch op {
	case query.OpEq, query.OpEqFold:
		return fmt.Sprintf(tmpl, "= ? COLLATE NOCASE"), []any{value, value}, nil
	case query.OpContains:
		pattern := query.LikePattern(fmt.Sprint(value))
		return fmt.Sprintf(tmpl, `LIKE ? ESCAPE '\'`), []any{pattern, pattern}, nil
	}
	return "", nil, errors.Wrapf(errors.ErrInvalidQuery, "operator %s is not supported on provides", op)
}

const selectRecords = `
SELECT p.id, p.repo_name, p.pkg, p.pkg_id, p.pkg_name, p.pkg_type, p.version, p.size, p.checksum,
	p.installed_path, p.installed_date, p.profile, p.pinned, p.is_installed, p.with_pkg_id,
	p.detached, p.unlinked, p.provides, p.install_patterns,
	pp.package_id, pp.portable_path, pp.portable_home, pp.portable_config, pp.portable_share, pp.portable_cache
FROM packages p
LEFT JOIN portable_package pp ON pp.package_id = p.id
`

// Find returns the records matching pred, ordered by id unless pred orders them.
func (s *Store) Find(ctx context.Context, pred query.Predicate) ([]model.InstalledPackage, error) {
	compiled, err := recordSchema.Compile(pred)
	if err != nil {
		return nil, err
	}
	stmt := selectRecords + "WHERE " + compiled.Where
	if compiled.Tail != "" {
		stmt += " " + compiled.Tail
	} else {
		stmt += " ORDER BY p.id"
	}
	rows, err := s.db.QueryContext(ctx, stmt, compiled.Args...)
	if err != nil {
		return nil, errors.Wrap(err, "query installed packages")
	}
	defer func() { _ = rows.Close() }()

	var out []model.InstalledPackage
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan installed package")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id int64) (*model.InstalledPackage, error) {
	recs, err := s.Find(ctx, query.New(query.Eq(query.FieldID, id)))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: installed record %d", errors.ErrNotFound, id)
	}
	return &recs[0], nil
}

func scanRecord(rows *sql.Rows) (model.InstalledPackage, error) {
	var (
		rec                   model.InstalledPackage
		date                  sql.NullString
		provides, patterns    string
		portableID            sql.NullInt64
		pPath, pHome, pConfig sql.NullString
		pShare, pCache        sql.NullString
	)
	err := rows.Scan(&rec.ID, &rec.RepoName, &rec.Pkg, &rec.PkgID, &rec.PkgName, &rec.PkgType,
		&rec.Version, &rec.Size, &rec.Checksum, &rec.InstalledPath, &date, &rec.Profile,
		&rec.Pinned, &rec.IsInstalled, &rec.WithPkgID, &rec.Detached, &rec.Unlinked,
		&provides, &patterns,
		&portableID, &pPath, &pHome, &pConfig, &pShare, &pCache)
	if err != nil {
		return rec, err
	}
	if date.Valid && date.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, date.String); err == nil {
			rec.InstalledDate = t
		}
	}
	if provides != "" {
		if err := json.Unmarshal([]byte(provides), &rec.Provides); err != nil {
			return rec, err
		}
	}
	if patterns != "" {
		if err := json.Unmarshal([]byte(patterns), &rec.InstallPatterns); err != nil {
			return rec, err
		}
	}
	if portableID.Valid {
		rec.Portable = &model.PortableDirs{
			Path: pPath.String, Home: pHome.String, Config: pConfig.String,
			Share: pShare.String, Cache: pCache.String,
		}
	}
	return rec, nil
}
