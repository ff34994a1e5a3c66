package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsWithin reports whether path is root or lies beneath it. Both are cleaned
// lexically; no symlinks are resolved.
func IsWithin(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// OwnedSymlink reports whether link is a symlink whose target lies inside one
// of the managed roots. A missing link is not owned and is not an error.
func OwnedSymlink(link string, managedRoots ...string) (bool, error) {
	info, err := os.Lstat(link)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}
	target, err := os.Readlink(link)
	if err != nil {
		return false, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link), target)
	}
	for _, root := range managedRoots {
		if root != "" && IsWithin(target, root) {
			return true, nil
		}
	}
	return false, nil
}

// ErrForeignPath is returned by ReplaceSymlink when link exists and is not
// owned by any managed root.
var ErrForeignPath = fmt.Errorf("path exists and is not managed by soar")

// ReplaceSymlink points link at target. An existing entry at link is only
// replaced when it is a symlink into one of managedRoots.
func ReplaceSymlink(target, link string, managedRoots ...string) error {
	if _, err := os.Lstat(link); err == nil {
		owned, err := OwnedSymlink(link, managedRoots...)
		if err != nil {
			return err
		}
		if !owned {
			return fmt.Errorf("%w: %s", ErrForeignPath, link)
		}
		if err := os.Remove(link); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := EnsureFileDir(link); err != nil {
		return err
	}
	return os.Symlink(target, link)
}

// RemoveOwnedSymlink deletes link only if it points into a managed root.
// It returns true when something was removed.
func RemoveOwnedSymlink(link string, managedRoots ...string) (bool, error) {
	owned, err := OwnedSymlink(link, managedRoots...)
	if err != nil || !owned {
		return false, err
	}
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}
