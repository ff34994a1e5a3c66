package resolve

import (
	"sort"
	"strings"

	"github.com/pkgforge/soar/pkg/model"
)

// Less is the deterministic candidate order: repository priority (higher
// first), repository declaration order, case-insensitive pkg_name, version
// (newest first), then pkg_id.
func Less(a, b model.Candidate) bool {
	if a.RepoPriority != b.RepoPriority {
		return a.RepoPriority > b.RepoPriority
	}
	if a.RepoIndex != b.RepoIndex {
		return a.RepoIndex < b.RepoIndex
	}
	if an, bn := strings.ToLower(a.PkgName), strings.ToLower(b.PkgName); an != bn {
		return an < bn
	}
	if c := model.CompareVersions(a.Version, b.Version); c != 0 {
		return c > 0
	}
	return a.PkgID < b.PkgID
}

// Rank sorts candidates in place and returns them.
func Rank(cands []model.Candidate) []model.Candidate {
	sort.SliceStable(cands, func(i, j int) bool { return Less(cands[i], cands[j]) })
	return cands
}

// dedupe keeps the first candidate for every (repo_name, pkg_id, pkg_name).
// Callers rank first so the survivor is the best version.
func dedupe(cands []model.Candidate) []model.Candidate {
	seen := make(map[model.Key]struct{}, len(cands))
	out := cands[:0]
	for _, c := range cands {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
