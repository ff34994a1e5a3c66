package model

import "time"

// InstalledPackage is one row of the installed-state store.
type InstalledPackage struct {
	ID            int64
	RepoName      string
	Pkg           string
	PkgID         string
	PkgName       string
	PkgType       string
	Version       string
	Size          int64
	Checksum      string
	InstalledPath string
	InstalledDate time.Time
	Profile       string

	Pinned      bool
	IsInstalled bool
	WithPkgID   bool
	Detached    bool
	Unlinked    bool

	Provides        []Provide
	InstallPatterns []string

	Portable *PortableDirs
}

// PortableDirs records where portable user state for an installed package lives.
// Empty fields are not set.
type PortableDirs struct {
	Path   string `json:"portable_path,omitempty"`
	Home   string `json:"portable_home,omitempty"`
	Config string `json:"portable_config,omitempty"`
	Share  string `json:"portable_share,omitempty"`
	Cache  string `json:"portable_cache,omitempty"`
}

// IsZero reports whether no portable directory is configured.
func (p *PortableDirs) IsZero() bool {
	return p == nil || (p.Path == "" && p.Home == "" && p.Config == "" && p.Share == "" && p.Cache == "")
}

// Key returns the deduplication key of the installed record.
func (ip *InstalledPackage) Key() Key {
	return Key{RepoName: ip.RepoName, PkgID: ip.PkgID, PkgName: ip.PkgName}
}

// String renders the record as a fully qualified reference.
func (ip *InstalledPackage) String() string {
	return ip.PkgName + "#" + ip.PkgID + ":" + ip.RepoName + " (" + ip.Version + ")"
}
