package formats

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkgforge/soar/pkg/archive"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/model"
)

//go:generate mockgen -destination=mocks/integrator.go -package=mocks . Integrator

// Integrator performs the host-side integration a Kind asks for.
// *integrate.Integrator implements it.
type Integrator interface {
	LinkBinaries(installDir, pkgName string, provides []model.Provide) ([]string, error)
	LinkDesktopAssets(installDir, pkgName string) error
	LinkPortable(links []PortableLink, dirs *model.PortableDirs, pkgName string) error
}

// PortableKind is one persisted state directory.
type PortableKind string

const (
	PortableHome   PortableKind = "home"
	PortableConfig PortableKind = "config"
	PortableShare  PortableKind = "share"
	PortableCache  PortableKind = "cache"
)

// PortableLink is where a format expects a portable directory to appear.
type PortableLink struct {
	Kind PortableKind
	Link string
}

// StageRequest places a verified payload into its install directory.
type StageRequest struct {
	Payload    string
	InstallDir string
	PkgName    string
	Filter     *archive.Filter
}

// IntegrateRequest describes the host integration of a staged package.
type IntegrateRequest struct {
	InstallDir string
	BinPath    string
	PkgName    string
	Provides   []model.Provide
	Desktop    bool
	Portable   *model.PortableDirs
	Integrator Integrator
}

// Kind is the capability set of one payload format.
type Kind interface {
	Name() PackageKind
	Stage(ctx context.Context, req StageRequest) error
	Integrate(ctx context.Context, req IntegrateRequest) error
	PortableDirs(binPath string) []PortableLink
}

// BinPath is the main executable path of a package staged into installDir.
func BinPath(installDir, pkgName string) string {
	return filepath.Join(installDir, pkgName)
}

type binary struct {
	kind PackageKind
}

func (b *binary) Name() PackageKind { return b.kind }

// Stage moves the payload to <install_dir>/<pkg_name> and marks it executable.
func (b *binary) Stage(_ context.Context, req StageRequest) error {
	if err := fsutil.EnsureDir(req.InstallDir); err != nil {
		return errors.Filesystem(err, "create %s", req.InstallDir)
	}
	dest := BinPath(req.InstallDir, req.PkgName)
	if err := fsutil.Move(req.Payload, dest); err != nil {
		return errors.Filesystem(err, "stage %s", req.PkgName)
	}
	if err := fsutil.SetExecutable(dest); err != nil {
		return errors.Filesystem(err, "chmod %s", dest)
	}
	return nil
}

func (b *binary) Integrate(_ context.Context, req IntegrateRequest) error {
	return integrate(req, b.PortableDirs(req.BinPath))
}

func (b *binary) PortableDirs(string) []PortableLink { return nil }

func integrate(req IntegrateRequest, links []PortableLink) error {
	if req.Integrator == nil {
		return nil
	}
	if _, err := req.Integrator.LinkBinaries(req.InstallDir, req.PkgName, req.Provides); err != nil {
		return err
	}
	if req.Desktop {
		if err := req.Integrator.LinkDesktopAssets(req.InstallDir, req.PkgName); err != nil {
			return err
		}
	}
	if len(links) > 0 && !req.Portable.IsZero() {
		if err := req.Integrator.LinkPortable(links, req.Portable, req.PkgName); err != nil {
			return err
		}
	}
	return nil
}

type appImage struct {
	binary
}

func (a *appImage) Integrate(_ context.Context, req IntegrateRequest) error {
	return integrate(req, a.PortableDirs(req.BinPath))
}

// PortableDirs for AppImage and RunImage are siblings of the binary:
// <bin>.home, <bin>.config, <bin>.share and <bin>.cache.
func (a *appImage) PortableDirs(binPath string) []PortableLink {
	kinds := []PortableKind{PortableHome, PortableConfig, PortableShare, PortableCache}
	out := make([]PortableLink, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, PortableLink{Kind: k, Link: binPath + "." + string(k)})
	}
	return out
}

type flatImage struct {
	binary
}

func (f *flatImage) Integrate(_ context.Context, req IntegrateRequest) error {
	return integrate(req, f.PortableDirs(req.BinPath))
}

// PortableDirs for FlatImage is only the config dir, <dir>/.<name>.config.
func (f *flatImage) PortableDirs(binPath string) []PortableLink {
	dir, name := filepath.Split(binPath)
	return []PortableLink{{Kind: PortableConfig, Link: filepath.Join(dir, "."+name+"."+string(PortableConfig))}}
}

type archiveKind struct {
	am *archive.Manager
}

func (a *archiveKind) Name() PackageKind { return KindArchive }

// Stage extracts the members selected by the filter and removes the payload.
func (a *archiveKind) Stage(ctx context.Context, req StageRequest) error {
	if err := fsutil.EnsureDir(req.InstallDir); err != nil {
		return errors.Filesystem(err, "create %s", req.InstallDir)
	}
	if _, err := a.am.ExtractAll(ctx, req.Payload, req.InstallDir, req.Filter); err != nil {
		return err
	}
	if err := os.Remove(req.Payload); err != nil && !os.IsNotExist(err) {
		return errors.Filesystem(err, "remove %s", req.Payload)
	}
	return nil
}

func (a *archiveKind) Integrate(_ context.Context, req IntegrateRequest) error {
	return integrate(req, a.PortableDirs(req.BinPath))
}

// PortableDirs for archives are hidden entries in the install dir named after
// the main binary: <dir>/.<name>.home, .config, .share and .cache. Launchers
// shipped in the archive look for their state there.
func (a *archiveKind) PortableDirs(binPath string) []PortableLink {
	dir, name := filepath.Split(binPath)
	kinds := []PortableKind{PortableHome, PortableConfig, PortableShare, PortableCache}
	out := make([]PortableLink, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, PortableLink{Kind: k, Link: filepath.Join(dir, "."+name+"."+string(k))})
	}
	return out
}
