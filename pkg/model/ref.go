package model

import (
	"regexp"
	"strings"

	"github.com/pkgforge/soar/pkg/errors"
)

// AllVariants as pkg_id selects every pkg_id of a name.
const AllVariants = "all"

// Ref is a parsed package reference: name[#pkg_id][@version][:repo].
type Ref struct {
	Raw     string
	Name    string
	PkgID   string
	Version string
	Repo    string
}

var refPattern = regexp.MustCompile(`^(?P<name>[^/#@:]+)?(?:#(?P<id>[^@:]+))?(?:@(?P<version>[^:]+))?(?::(?P<repo>[^:]+))?$`)

// ParseRef parses a user supplied package reference. Name and pkg_id are
// lowercased; version and repository keep their case and are compared
// case-insensitively by the resolver.
func ParseRef(raw string) (Ref, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return Ref{}, errors.Wrap(errors.ErrInvalidReference, "package reference can't be empty")
	}
	m := refPattern.FindStringSubmatch(query)
	if m == nil {
		return Ref{}, errors.Wrapf(errors.ErrInvalidReference, "%q", raw)
	}
	ref := Ref{
		Raw:     raw,
		Name:    strings.ToLower(m[refPattern.SubexpIndex("name")]),
		PkgID:   strings.ToLower(m[refPattern.SubexpIndex("id")]),
		Version: m[refPattern.SubexpIndex("version")],
		Repo:    m[refPattern.SubexpIndex("repo")],
	}
	if ref.Name == "" && ref.PkgID == "" {
		return Ref{}, errors.Wrapf(errors.ErrInvalidReference, "%q: either a name or a pkg_id is required", raw)
	}
	if ref.PkgID == AllVariants && ref.Name == "" {
		return Ref{}, errors.Wrapf(errors.ErrInvalidReference, "%q: #all requires a package name", raw)
	}
	return ref, nil
}

// AllVariants reports whether the reference asks for every pkg_id of Name.
func (r Ref) AllVariants() bool {
	return r.PkgID == AllVariants
}

// String renders the reference in canonical form.
func (r Ref) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.PkgID != "" {
		b.WriteString("#" + r.PkgID)
	}
	if r.Version != "" {
		b.WriteString("@" + r.Version)
	}
	if r.Repo != "" {
		b.WriteString(":" + r.Repo)
	}
	return b.String()
}
