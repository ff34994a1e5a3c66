package integrate

import (
	"os"
	"path/filepath"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/model"
)

// PortableBase resolves the base directory of one portable kind. Path, when
// set, covers every kind.
func PortableBase(dirs *model.PortableDirs, kind formats.PortableKind) string {
	if dirs.IsZero() {
		return ""
	}
	if dirs.Path != "" {
		return dirs.Path
	}
	switch kind {
	case formats.PortableHome:
		return dirs.Home
	case formats.PortableConfig:
		return dirs.Config
	case formats.PortableShare:
		return dirs.Share
	case formats.PortableCache:
		return dirs.Cache
	}
	return ""
}

// LinkPortable creates <base>/<pkg_name>.<kind> for each requested kind and
// links the format's expected location to it. Existing data in the portable
// dir is kept, so reinstalls find the same state.
func (i *Integrator) LinkPortable(links []formats.PortableLink, dirs *model.PortableDirs, pkgName string) error {
	for _, l := range links {
		base := PortableBase(dirs, l.Kind)
		if base == "" {
			continue
		}
		target := filepath.Join(base, pkgName+"."+string(l.Kind))
		if err := fsutil.EnsureDir(target); err != nil {
			return errors.Filesystem(err, "create portable dir %s", target)
		}
		// the link lives inside the install dir, so any symlink there is ours
		if info, err := os.Lstat(l.Link); err == nil {
			if info.Mode()&os.ModeSymlink == 0 {
				return errors.Filesystem(os.ErrExist, "portable link %s exists", l.Link)
			}
			if err := os.Remove(l.Link); err != nil {
				return errors.Filesystem(err, "replace portable link %s", l.Link)
			}
		}
		if err := fsutil.ReplaceSymlink(target, l.Link); err != nil {
			return errors.Filesystem(err, "link portable dir %s", l.Link)
		}
	}
	return nil
}

// ResolvePortable turns user supplied portable flags into absolute paths. An
// empty value that was explicitly requested maps to <defaultBase>/<name>-<id>.
func ResolvePortable(flags PortableFlags, defaultBase, pkgName, pkgID string) (*model.PortableDirs, error) {
	fallback := filepath.Join(defaultBase, pkgName+"-"+pkgID)
	resolve := func(v *string) (string, error) {
		if v == nil {
			return "", nil
		}
		if *v == "" {
			return fallback, nil
		}
		return filepath.Abs(fsutil.ExpandHome(*v))
	}

	var (
		out model.PortableDirs
		err error
	)
	for _, f := range []struct {
		in  *string
		out *string
	}{
		{flags.Path, &out.Path},
		{flags.Home, &out.Home},
		{flags.Config, &out.Config},
		{flags.Share, &out.Share},
		{flags.Cache, &out.Cache},
	} {
		if *f.out, err = resolve(f.in); err != nil {
			return nil, err
		}
	}
	if out.IsZero() {
		return nil, nil
	}
	return &out, nil
}

// PortableFlags are the raw --portable* options. A nil field was not given;
// an empty string was given without a value.
type PortableFlags struct {
	Path   *string
	Home   *string
	Config *string
	Share  *string
	Cache  *string
}
