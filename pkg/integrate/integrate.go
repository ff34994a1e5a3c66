// Package integrate places the host-side artifacts of an installed package:
// PATH symlinks, desktop entries, icons and portable directory links.
//
// Every link written here may only replace a symlink that already points into
// one of the managed roots; anything else at the path is left alone.
package integrate

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/model"
)

// SymsDir, when present in an install dir, lists the executables to expose.
const SymsDir = "SOAR_SYMS"

// Integrator writes links for one profile.
type Integrator struct {
	BinDir     string
	DesktopDir string
	IconsDir   string
	// Managed are the roots soar installs into; links resolving elsewhere are foreign.
	Managed []string
}

var _ formats.Integrator = (*Integrator)(nil)

// LinkBinaries exposes the package's executables in BinDir and returns the
// links it created. Declared provides decide the link names; without them
// every executable found in the install dir is linked under its own name.
// Foreign files at a link path are skipped with a warning.
func (i *Integrator) LinkBinaries(installDir, pkgName string, provides []model.Provide) ([]string, error) {
	type link struct{ source, path string }
	var plan []link
	seen := map[string]bool{}
	add := func(source, name string) {
		path := filepath.Join(i.BinDir, name)
		if seen[path] {
			return
		}
		seen[path] = true
		plan = append(plan, link{source: source, path: path})
	}

	if len(provides) > 0 {
		for _, p := range provides {
			source := filepath.Join(installDir, p.Name)
			if _, err := os.Stat(source); err != nil {
				logger.Warn("provided binary missing from package", logger.Fields{"package": pkgName, "binary": p.Name})
				continue
			}
			for _, name := range p.LinkNames() {
				add(source, name)
			}
		}
	} else {
		execs, err := discoverExecutables(installDir)
		if err != nil {
			return nil, errors.Filesystem(err, "scan %s", installDir)
		}
		for _, exe := range execs {
			add(exe, filepath.Base(exe))
		}
	}

	created := make([]string, 0, len(plan))
	for _, l := range plan {
		if err := fsutil.SetExecutable(l.source); err != nil {
			return created, errors.Filesystem(err, "chmod %s", l.source)
		}
		err := fsutil.ReplaceSymlink(l.source, l.path, i.Managed...)
		if stderrors.Is(err, fsutil.ErrForeignPath) {
			logger.Warn("not replacing file owned by something else", logger.Fields{"path": l.path, "package": pkgName})
			continue
		}
		if err != nil {
			return created, errors.Filesystem(err, "link %s", l.path)
		}
		created = append(created, l.path)
	}
	return created, nil
}

// discoverExecutables lists SOAR_SYMS entries when that directory exists,
// otherwise the top-level executables of dir, falling back to the usual bin
// subdirectories.
func discoverExecutables(dir string) ([]string, error) {
	if info, err := os.Stat(filepath.Join(dir, SymsDir)); err == nil && info.IsDir() {
		return listFiles(filepath.Join(dir, SymsDir), func(string) bool { return true })
	}
	isExec := func(path string) bool { return fsutil.IsExecutable(path) || formats.IsELF(path) }
	for _, sub := range []string{"", "bin", "usr/bin", "usr/local/bin"} {
		found, err := listFiles(filepath.Join(dir, sub), isExec)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

func listFiles(dir string, keep func(path string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if keep(path) {
			out = append(out, path)
		}
	}
	return out, nil
}

// RemoveLinksInto deletes every symlink in the bin, desktop and icon
// directories that resolves into dir and returns what it removed.
func (i *Integrator) RemoveLinksInto(dir string) ([]string, error) {
	var removed []string
	err := i.walkLinks(func(path string) error {
		ok, err := fsutil.RemoveOwnedSymlink(path, dir)
		if ok {
			removed = append(removed, path)
		}
		return err
	})
	return removed, err
}

// RemoveBrokenLinks deletes managed symlinks whose target no longer exists.
func (i *Integrator) RemoveBrokenLinks() ([]string, error) {
	var removed []string
	err := i.walkLinks(func(path string) error {
		if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
			return nil
		}
		ok, err := fsutil.RemoveOwnedSymlink(path, i.Managed...)
		if ok {
			removed = append(removed, path)
		}
		return err
	})
	return removed, err
}

// walkLinks calls fn for every symlink in the bin and desktop directories
// and anywhere below the icons directory.
func (i *Integrator) walkLinks(fn func(path string) error) error {
	for _, root := range []string{i.BinDir, i.DesktopDir} {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Filesystem(err, "read %s", root)
		}
		for _, e := range entries {
			if e.Type()&os.ModeSymlink == 0 {
				continue
			}
			if err := fn(filepath.Join(root, e.Name())); err != nil {
				return errors.Filesystem(err, "unlink %s", e.Name())
			}
		}
	}

	if i.IconsDir == "" {
		return nil
	}
	err := filepath.WalkDir(i.IconsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			return fn(path)
		}
		return nil
	})
	if err != nil {
		return errors.Filesystem(err, "clean icons")
	}
	return nil
}
