package metadata

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
)

// Source locates one repository snapshot and its ordering inputs.
type Source struct {
	Name     string
	Path     string
	Priority int
	Index    int // declaration order in the configuration
}

// Set is the collection of enabled repository snapshots. Stores are opened
// on first use; a repository that was never synced is skipped with a warning.
type Set struct {
	mu      sync.Mutex
	sources []Source
	stores  map[string]*Store
}

// NewSet creates a set over sources, in the given order.
func NewSet(sources ...Source) *Set {
	return &Set{sources: sources, stores: make(map[string]*Store)}
}

// Sources returns the configured sources in declaration order.
func (s *Set) Sources() []Source {
	return append([]Source(nil), s.sources...)
}

// Source returns the source named name, ignoring case.
func (s *Set) Source(name string) (Source, bool) {
	for _, src := range s.sources {
		if strings.EqualFold(src.Name, name) {
			return src, true
		}
	}
	return Source{}, false
}

func (s *Set) store(src Source) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[src.Name]; ok {
		return st, nil
	}
	st, err := Open(src.Path, src.Name)
	if err != nil {
		return nil, err
	}
	s.stores[src.Name] = st
	return st, nil
}

// Query runs pred against every snapshot, or only the one named by a
// repo_name equality condition, and concatenates the rows in source order.
func (s *Set) Query(ctx context.Context, pred query.Predicate) ([]model.Package, error) {
	sources := s.sources
	if v, ok := pred.Lookup(query.FieldRepo); ok {
		name, _ := v.(string)
		src, found := s.Source(name)
		if !found {
			return nil, errors.ErrRepoNotConfiguredWithName(name)
		}
		sources = []Source{src}
		pred = pred.Without(query.FieldRepo)
	}

	var out []model.Package
	for _, src := range sources {
		st, err := s.store(src)
		if stderrors.Is(err, errors.ErrInvalidSnapshot) {
			logger.Warn("repository metadata unavailable, run sync", logger.Fields{"repo": src.Name, "error": err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		rows, err := st.Query(ctx, pred)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if pred.Limit > 0 && len(out) >= pred.Limit {
			return out[:pred.Limit], nil
		}
	}
	return out, nil
}

// Count returns the number of packages in the snapshot of name.
// A repository that was never synced counts as empty.
func (s *Set) Count(ctx context.Context, name string) (int, error) {
	src, ok := s.Source(name)
	if !ok {
		return 0, errors.ErrRepoNotConfiguredWithName(name)
	}
	st, err := s.store(src)
	if stderrors.Is(err, errors.ErrInvalidSnapshot) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.Count(ctx)
}

// Invalidate closes the cached handle for name so the next query sees a freshly synced file.
func (s *Set) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[name]; ok {
		_ = st.Close()
		delete(s.stores, name)
	}
}

// Close closes every opened store.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, st := range s.stores {
		errs = append(errs, st.Close())
		delete(s.stores, name)
	}
	return stderrors.Join(errs...)
}
