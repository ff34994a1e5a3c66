// Package model provides the data structures shared by the metadata store,
// the installed-state store, the resolver and the lifecycle engine.
package model

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// Package is one row of a repository's metadata snapshot.
type Package struct {
	ID       int64  `json:"-"`
	RepoName string `json:"repo_name,omitempty"`

	Pkg     string `json:"pkg,omitempty"`
	PkgID   string `json:"pkg_id"`
	PkgName string `json:"pkg_name"`
	PkgType string `json:"pkg_type,omitempty"`
	Family  string `json:"pkg_family,omitempty"`

	Description string `json:"description"`
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	Size        int64  `json:"size_raw,omitempty"`
	Checksum    string `json:"bsum,omitempty"`

	Icon       string   `json:"icon,omitempty"`
	Desktop    string   `json:"desktop,omitempty"`
	AppID      string   `json:"app_id,omitempty"`
	Webpage    string   `json:"pkg_webpage,omitempty"`
	BuildDate  string   `json:"build_date,omitempty"`
	Homepages  []string `json:"homepages,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	SourceURLs []string `json:"src_urls,omitempty"`
	Licenses   []string `json:"licenses,omitempty"`

	Provides    []Provide    `json:"provides,omitempty"`
	Maintainers []Maintainer `json:"maintainers,omitempty"`

	SoarSyms           bool  `json:"soar_syms,omitempty"`
	DesktopIntegration *bool `json:"desktop_integration,omitempty"`
	Portable           *bool `json:"portable,omitempty"`
	Rank               int   `json:"rank,omitempty"`
}

// Maintainer of a package.
type Maintainer struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// String renders a maintainer the way metadata declares it: "Name (contact)".
func (m Maintainer) String() string {
	if m.Contact == "" {
		return m.Name
	}
	return fmt.Sprintf("%s (%s)", m.Name, m.Contact)
}

// ParseMaintainer parses "Name (contact)".
func ParseMaintainer(s string) Maintainer {
	s = strings.TrimSpace(s)
	open := strings.LastIndexByte(s, '(')
	if open > 0 && strings.HasSuffix(s, ")") {
		return Maintainer{
			Name:    strings.TrimSpace(s[:open]),
			Contact: strings.TrimSpace(s[open+1 : len(s)-1]),
		}
	}
	return Maintainer{Name: s}
}

// Key identifies a package within a repository.
type Key struct {
	RepoName string
	PkgID    string
	PkgName  string
}

// Key returns the deduplication key of p.
func (p *Package) Key() Key {
	return Key{RepoName: p.RepoName, PkgID: p.PkgID, PkgName: p.PkgName}
}

// String renders p as a fully qualified reference.
func (p *Package) String() string {
	return fmt.Sprintf("%s#%s:%s (%s)", p.PkgName, p.PkgID, p.RepoName, p.Version)
}

// ParsedVersion returns the semantic version of v, or nil if it is not semver-like.
func ParsedVersion(v string) *version.Version {
	parsed, err := version.NewVersion(strings.TrimPrefix(strings.TrimSpace(v), "v"))
	if err != nil {
		return nil
	}
	return parsed
}

// CompareVersions orders a and b. Semantic comparison is used when both parse;
// otherwise the raw strings are compared.
func CompareVersions(a, b string) int {
	va, vb := ParsedVersion(a), ParsedVersion(b)
	if va != nil && vb != nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}
