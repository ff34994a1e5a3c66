package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pkgforge/soar/pkg/platform"
)

// RepositoryConfig represents a single metadata repository.
type RepositoryConfig struct {
	Name                  string      `yaml:"name"`
	URL                   string      `yaml:"url"`
	Enabled               *bool       `yaml:"enabled,omitempty"`
	Priority              int         `yaml:"priority,omitempty"`
	PubKey                string      `yaml:"pubkey,omitempty"`
	SignatureVerification *bool       `yaml:"signature_verification,omitempty"`
	SyncInterval          string      `yaml:"sync_interval,omitempty"`
	DesktopIntegration    *bool       `yaml:"desktop_integration,omitempty"`
	Auth                  *AuthConfig `yaml:"auth,omitempty"`
}

// Validate validates a repository entry.
func (rc *RepositoryConfig) Validate() error {
	return validation.ValidateStruct(rc,
		validation.Field(&rc.Name, validation.Required, validation.By(func(value interface{}) error {
			name := value.(string)
			if name == LocalRepositoryName {
				return validation.NewError("validation_reserved", "'local' is reserved for detached packages")
			}
			if strings.ContainsAny(name, `/\:#`) {
				return validation.NewError("validation_charset", "must not contain / \\ : or #")
			}
			return nil
		})),
		validation.Field(&rc.URL, validation.Required),
		validation.Field(&rc.SyncInterval, validation.By(func(value interface{}) error {
			if s := value.(string); s != "" {
				if _, err := ParseSyncInterval(s); err != nil {
					return err
				}
			}
			return nil
		})),
	)
}

func (rc *RepositoryConfig) applyDefaults() {
	if rc.Enabled == nil {
		enabled := true
		rc.Enabled = &enabled
	}
	for _, known := range knownRepositories {
		if known.Name != rc.Name {
			continue
		}
		if rc.DesktopIntegration == nil && known.DesktopIntegration != nil {
			v := *known.DesktopIntegration
			rc.DesktopIntegration = &v
		}
		if rc.PubKey == "" {
			rc.PubKey = known.PubKey
		}
	}
}

// IsEnabled reports whether the repository takes part in sync and resolution.
func (rc *RepositoryConfig) IsEnabled() bool {
	return rc.Enabled == nil || *rc.Enabled
}

// ResolvedURL returns the metadata URL with {platform} expanded for p.
func (rc *RepositoryConfig) ResolvedURL(p platform.Platform) string {
	return p.Expand(rc.URL)
}

func boolPtr(v bool) *bool { return &v }

type knownRepository struct {
	RepositoryConfig
	platforms []string
	core      bool
}

var knownRepositories = []knownRepository{
	{
		RepositoryConfig: RepositoryConfig{
			Name:                  "bincache",
			URL:                   "https://meta.pkgforge.dev/bincache/{platform}.sdb.zstd",
			PubKey:                "https://meta.pkgforge.dev/bincache/minisign.pub",
			DesktopIntegration:    boolPtr(false),
			SignatureVerification: boolPtr(true),
			SyncInterval:          "3h",
		},
		platforms: []string{"aarch64-Linux", "riscv64-Linux", "x86_64-Linux"},
		core:      true,
	},
	{
		RepositoryConfig: RepositoryConfig{
			Name:               "pkgcache",
			URL:                "https://meta.pkgforge.dev/pkgcache/{platform}.sdb.zstd",
			PubKey:             "https://meta.pkgforge.dev/pkgcache/minisign.pub",
			DesktopIntegration: boolPtr(true),
		},
		platforms: []string{"aarch64-Linux", "riscv64-Linux", "x86_64-Linux"},
		core:      true,
	},
	{
		RepositoryConfig: RepositoryConfig{
			Name:               "pkgforge-cargo",
			URL:                "https://meta.pkgforge.dev/external/pkgforge-cargo/{platform}.sdb.zstd",
			DesktopIntegration: boolPtr(false),
		},
		platforms: []string{"aarch64-Linux", "loongarch64-Linux", "riscv64-Linux", "x86_64-Linux"},
		core:      true,
	},
	{
		RepositoryConfig: RepositoryConfig{
			Name:               "pkgforge-go",
			URL:                "https://meta.pkgforge.dev/external/pkgforge-go/{platform}.sdb.zstd",
			DesktopIntegration: boolPtr(false),
		},
		platforms: []string{"aarch64-Linux", "loongarch64-Linux", "riscv64-Linux", "x86_64-Linux"},
		core:      true,
	},
	{
		RepositoryConfig: RepositoryConfig{
			Name:               "ivan-hc-am",
			URL:                "https://meta.pkgforge.dev/external/am/{platform}.sdb.zstd",
			DesktopIntegration: boolPtr(true),
		},
		platforms: []string{"x86_64-Linux"},
	},
	{
		RepositoryConfig: RepositoryConfig{
			Name:               "appimage-github-io",
			URL:                "https://meta.pkgforge.dev/external/appimage.github.io/{platform}.sdb.zstd",
			DesktopIntegration: boolPtr(true),
		},
		platforms: []string{"aarch64-Linux", "x86_64-Linux"},
	},
}

// DefaultRepositories returns the core repositories that publish metadata for p.
// Extra names opt into non-core repositories.
func DefaultRepositories(p platform.Platform, extra ...string) []*RepositoryConfig {
	want := make(map[string]bool, len(extra))
	for _, name := range extra {
		want[name] = true
	}
	var repos []*RepositoryConfig
	for _, known := range knownRepositories {
		if !known.core && !want[known.Name] {
			continue
		}
		supported := false
		for _, triple := range known.platforms {
			if triple == p.String() {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		repo := known.RepositoryConfig
		if repo.DesktopIntegration != nil {
			repo.DesktopIntegration = boolPtr(*repo.DesktopIntegration)
		}
		if repo.SignatureVerification != nil {
			repo.SignatureVerification = boolPtr(*repo.SignatureVerification)
		}
		repo.applyDefaults()
		repos = append(repos, &repo)
	}
	return repos
}
