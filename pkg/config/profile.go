package config

import (
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pkgforge/soar/pkg/fsutil"
)

// Profile is a named installation namespace with its own package store.
type Profile struct {
	RootDir     string `yaml:"root_dir"`
	PackagesDir string `yaml:"packages_dir,omitempty"`
}

// Validate validates the profile.
func (p *Profile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.RootDir, validation.Required),
	)
}

// Root returns the expanded root directory.
func (p *Profile) Root() string {
	return fsutil.ExpandHome(p.RootDir)
}

// PackagesDirPath returns where this profile installs packages.
func (p *Profile) PackagesDirPath() string {
	if p.PackagesDir != "" {
		return fsutil.ExpandHome(p.PackagesDir)
	}
	return filepath.Join(p.Root(), "packages")
}
