// Package lock provides the per-profile advisory lock held while the
// installed state is mutated.
package lock

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/sys/unix"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
)

// Lock is a held profile lock.
type Lock struct {
	file    *os.File
	profile string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Path is the lock file of profile inside dir. Characters other than
// letters, digits, dot, dash and underscore are replaced so the file always
// lands in dir.
func Path(dir, profile string) string {
	name := unsafeChars.ReplaceAllString(profile, "_")
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return filepath.Join(dir, name+".lock")
}

// Acquire takes the exclusive lock for profile without blocking. If another
// process holds it, the error wraps ErrConcurrentOperationLocked.
func Acquire(dir, profile string) (*Lock, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, errors.Filesystem(err, "create lock dir")
	}
	f, err := os.OpenFile(Path(dir, profile), os.O_RDWR|os.O_CREATE, fsutil.FileModeSecure)
	if err != nil {
		return nil, errors.Filesystem(err, "open lock file")
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if stderrors.Is(err, unix.EWOULDBLOCK) {
			return nil, errors.ErrLockedWithProfile(profile)
		}
		return nil, errors.Filesystem(err, "lock profile %s", profile)
	}
	return &Lock{file: f, profile: profile}, nil
}

// Profile is the locked profile name.
func (l *Lock) Profile() string { return l.profile }

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
