package archive

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Filter selects archive entries by glob. Patterns prefixed with "!" exclude.
// An entry is kept when it matches at least one include pattern (or there
// are none) and no exclude pattern. Patterns are tried against both the
// slash separated relative path and the base name.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter compiles install patterns such as "*.AppImage" or "!*.log".
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		negated := strings.HasPrefix(p, "!")
		glob := strings.TrimPrefix(p, "!")
		if _, err := path.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("invalid install pattern %q: %w", p, err)
		}
		if negated {
			f.exclude = append(f.exclude, glob)
		} else {
			f.include = append(f.include, glob)
		}
	}
	return f, nil
}

// Match reports whether the relative path rel is kept.
func (f *Filter) Match(rel string) bool {
	if f == nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	if len(f.include) > 0 && !matchAny(f.include, rel) {
		return false
	}
	return !matchAny(f.exclude, rel)
}

func matchAny(globs []string, rel string) bool {
	base := path.Base(rel)
	for _, g := range globs {
		if ok, _ := path.Match(g, rel); ok {
			return true
		}
		if ok, _ := path.Match(g, base); ok {
			return true
		}
	}
	return false
}
