package metadata

// SchemaVersion is the PRAGMA user_version every usable snapshot carries.
const SchemaVersion = 1

// SnapshotFile is the per-repository snapshot name below the repository directory.
const SnapshotFile = "metadata.db"

// PubKeyFile is where a repository's minisign public key is stored.
const PubKeyFile = "minisign.pub"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS repository (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	name TEXT NOT NULL,
	etag TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS families (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS packages (
	id                  INTEGER PRIMARY KEY,
	pkg                 TEXT NOT NULL DEFAULT '',
	pkg_id              TEXT NOT NULL,
	pkg_name            TEXT NOT NULL,
	pkg_type            TEXT NOT NULL DEFAULT '',
	family_id           INTEGER REFERENCES families(id),
	description         TEXT NOT NULL DEFAULT '',
	version             TEXT NOT NULL,
	download_url        TEXT NOT NULL,
	size                INTEGER NOT NULL DEFAULT 0,
	checksum            TEXT NOT NULL DEFAULT '',
	icon                TEXT NOT NULL DEFAULT '',
	desktop             TEXT NOT NULL DEFAULT '',
	app_id              TEXT NOT NULL DEFAULT '',
	pkg_webpage         TEXT NOT NULL DEFAULT '',
	build_date          TEXT NOT NULL DEFAULT '',
	homepages           TEXT NOT NULL DEFAULT '[]',
	tags                TEXT NOT NULL DEFAULT '[]',
	notes               TEXT NOT NULL DEFAULT '[]',
	src_urls            TEXT NOT NULL DEFAULT '[]',
	licenses            TEXT NOT NULL DEFAULT '[]',
	soar_syms           INTEGER NOT NULL DEFAULT 0,
	desktop_integration INTEGER,
	portable            INTEGER,
	rank                INTEGER NOT NULL DEFAULT 0,
	UNIQUE (pkg_id, pkg_name)
);

CREATE INDEX IF NOT EXISTS idx_packages_pkg_name ON packages (pkg_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_packages_pkg_id ON packages (pkg_id);

CREATE TABLE IF NOT EXISTS provides (
	id         INTEGER PRIMARY KEY,
	package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	strategy   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_provides_name ON provides (name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_provides_package ON provides (package_id);

CREATE TABLE IF NOT EXISTS maintainers (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	contact TEXT NOT NULL DEFAULT '',
	UNIQUE (name, contact)
);

CREATE TABLE IF NOT EXISTS package_maintainers (
	maintainer_id INTEGER NOT NULL REFERENCES maintainers(id),
	package_id    INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	PRIMARY KEY (maintainer_id, package_id)
);
`
