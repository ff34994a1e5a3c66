// Package config provides configuration management for soar.
// It handles loading, validating, and saving the YAML configuration file that
// describes repositories, profiles and application settings.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/platform"
)

// Config represents the application configuration.
type Config struct {
	Repositories []*RepositoryConfig   `yaml:"repositories"`
	Profiles     map[string]*Profile   `yaml:"profiles"`
	Hooks        map[string]HookConfig `yaml:"hooks,omitempty"`
	Settings     Settings              `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	DefaultProfile string `yaml:"default_profile"`

	BinDir          string `yaml:"bin_dir,omitempty"`
	DBDir           string `yaml:"db_dir,omitempty"`
	RepositoriesDir string `yaml:"repositories_dir,omitempty"`
	CacheDir        string `yaml:"cache_dir,omitempty"`
	PortableDirs    string `yaml:"portable_dirs,omitempty"`
	DesktopDir      string `yaml:"desktop_dir,omitempty"`
	IconsDir        string `yaml:"icons_dir,omitempty"`
	LockDir         string `yaml:"lock_dir,omitempty"`

	// Network settings
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
	Parallel       int           `yaml:"parallel"`
	ParallelLimit  int           `yaml:"parallel_limit"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	SearchLimit    int           `yaml:"search_limit"`

	// Global overrides; when set they win over the per-repository values.
	SyncInterval          string `yaml:"sync_interval,omitempty"`
	SignatureVerification *bool  `yaml:"signature_verification,omitempty"`
	DesktopIntegration    *bool  `yaml:"desktop_integration,omitempty"`

	// InstallPatterns filters archive members. Entries starting with ! exclude.
	InstallPatterns []string `yaml:"install_patterns,omitempty"`

	// Output settings
	OutputFormat string `yaml:"output_format"` // text, json
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
}

// HookConfig lists Tengo scripts run for one package name.
type HookConfig struct {
	PostDownload string `yaml:"post_download,omitempty"`
	PostExtract  string `yaml:"post_extract,omitempty"`
	PostInstall  string `yaml:"post_install,omitempty"`
	PreRemove    string `yaml:"pre_remove,omitempty"`
}

// Default configuration values.
const (
	DefaultProfileName    = "default"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultParallel       = 4
	DefaultParallelLimit  = 4
	DefaultMaxRetries     = 5
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultSearchLimit    = 20
	DefaultUserAgent      = "soar/1.0"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2

	// LocalRepositoryName is reserved for detached installs.
	LocalRepositoryName = "local"
)

// DefaultInstallPatterns skips build leftovers when extracting archives.
func DefaultInstallPatterns() []string {
	return []string{"!*.log", "!SBUILD", "!*.json", "!*.version"}
}

// DefaultConfig returns a configuration with sensible defaults and the
// official repositories available for the host platform.
func DefaultConfig() *Config {
	root := os.Getenv("SOAR_ROOT")
	if root == "" {
		root = fsutil.DefaultRootDir()
	}
	return &Config{
		Repositories: DefaultRepositories(platform.CurrentPlatform()),
		Profiles: map[string]*Profile{
			DefaultProfileName: {RootDir: root},
		},
		Settings: Settings{
			DefaultProfile:  DefaultProfileName,
			HTTPTimeout:     DefaultHTTPTimeout,
			UserAgent:       DefaultUserAgent,
			Parallel:        DefaultParallel,
			ParallelLimit:   DefaultParallelLimit,
			MaxRetries:      DefaultMaxRetries,
			RetryBaseDelay:  DefaultRetryBaseDelay,
			SearchLimit:     DefaultSearchLimit,
			InstallPatterns: DefaultInstallPatterns(),
			OutputFormat:    "text",
			LogLevel:        "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(fsutil.ExpandHome(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigParse, "%s", err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigValidation, "%s", err.Error())
	}

	return &config, nil
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(fsutil.ExpandHome(path))
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	err = fsutil.WriteAtomic(absPath, fsutil.FileModeDefault, func(w io.Writer) error {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(YAMLIndent)
		if err := encoder.Encode(c); err != nil {
			return errors.Wrap(errors.ErrConfigEncode, err.Error())
		}
		return encoder.Close()
	})
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if _, ok := c.Profiles[c.Settings.DefaultProfile]; !ok {
		return errors.Wrapf(errors.ErrUnknownProfile, "default profile %q", c.Settings.DefaultProfile)
	}
	for name, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "profile %q", name)
		}
	}
	return validateRepositories(c.Repositories)
}

// Validate validates the settings block.
func (s *Settings) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.DefaultProfile, validation.Required),
		validation.Field(&s.HTTPTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.Parallel, validation.Min(1)),
		validation.Field(&s.ParallelLimit, validation.Min(1)),
		validation.Field(&s.MaxRetries, validation.Min(0)),
		validation.Field(&s.RetryBaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&s.OutputFormat, validation.In("text", "json")),
		validation.Field(&s.LogLevel, validation.By(func(value interface{}) error {
			switch strings.ToLower(value.(string)) {
			case "debug", "info", "warn", "warning", "error":
				return nil
			}
			return validation.NewError("validation_log_level", "must be one of debug, info, warn, error")
		})),
	); err != nil {
		return err
	}
	if s.SyncInterval != "" {
		if _, err := ParseSyncInterval(s.SyncInterval); err != nil {
			return err
		}
	}
	return nil
}

func validateRepositories(repos []*RepositoryConfig) error {
	repoNames := make(map[string]bool)
	for i, repo := range repos {
		if repo.Name == "" {
			return errors.ErrEmptyRepositoryNameWithIndex(i)
		}
		if repo.URL == "" {
			return errors.ErrRepositoryURLEmptyWithName(repo.Name)
		}
		if repoNames[repo.Name] {
			return errors.ErrRepositoryExistsWithName(repo.Name)
		}
		if err := repo.Validate(); err != nil {
			return errors.Wrapf(err, "repository '%s'", repo.Name)
		}
		repoNames[repo.Name] = true
	}
	return nil
}

// GetDefaultConfigPath returns the configuration file path, honoring SOAR_CONFIG.
func GetDefaultConfigPath() string {
	if env := os.Getenv("SOAR_CONFIG"); env != "" {
		return fsutil.ExpandHome(env)
	}
	return fsutil.DefaultConfigPath()
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	s := &c.Settings

	if s.DefaultProfile == "" {
		s.DefaultProfile = defaults.Settings.DefaultProfile
	}
	if len(c.Profiles) == 0 {
		c.Profiles = defaults.Profiles
	}
	if s.HTTPTimeout == 0 {
		s.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if s.UserAgent == "" {
		s.UserAgent = defaults.Settings.UserAgent
	}
	if s.Parallel == 0 {
		s.Parallel = defaults.Settings.Parallel
	}
	if s.ParallelLimit == 0 {
		s.ParallelLimit = defaults.Settings.ParallelLimit
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = defaults.Settings.MaxRetries
	}
	if s.RetryBaseDelay == 0 {
		s.RetryBaseDelay = defaults.Settings.RetryBaseDelay
	}
	if s.SearchLimit == 0 {
		s.SearchLimit = defaults.Settings.SearchLimit
	}
	if s.InstallPatterns == nil {
		s.InstallPatterns = defaults.Settings.InstallPatterns
	}
	if s.OutputFormat == "" {
		s.OutputFormat = defaults.Settings.OutputFormat
	}
	if s.LogLevel == "" {
		s.LogLevel = defaults.Settings.LogLevel
	}

	for _, repo := range c.Repositories {
		repo.applyDefaults()
	}
}

// Profile returns the named profile; an empty name selects the default profile.
func (c *Config) Profile(name string) (*Profile, error) {
	if name == "" {
		name = c.Settings.DefaultProfile
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownProfile, "%s", name)
	}
	return p, nil
}

// ProfileName returns name, or the default profile name when name is empty.
func (c *Config) ProfileName(name string) string {
	if name == "" {
		return c.Settings.DefaultProfile
	}
	return name
}

func (c *Config) defaultRoot() string {
	if p, err := c.Profile(""); err == nil {
		return p.Root()
	}
	return fsutil.DefaultRootDir()
}

func orDefault(override, root, sub string) string {
	if override != "" {
		return fsutil.ExpandHome(override)
	}
	return filepath.Join(root, sub)
}

// BinDir is where PATH symlinks are created.
func (c *Config) BinDir() string {
	return orDefault(c.Settings.BinDir, c.defaultRoot(), "bin")
}

// DBDir holds the installed-state database.
func (c *Config) DBDir() string {
	return orDefault(c.Settings.DBDir, c.defaultRoot(), "db")
}

// InstalledDBPath is the installed-state sqlite database.
func (c *Config) InstalledDBPath() string {
	return filepath.Join(c.DBDir(), "soar.db")
}

// RepositoriesDir holds one directory per repository with its metadata snapshot.
func (c *Config) RepositoriesDir() string {
	return orDefault(c.Settings.RepositoriesDir, c.defaultRoot(), "repos")
}

// CacheDir holds partial downloads and their resume sidecars.
func (c *Config) CacheDir() string {
	return orDefault(c.Settings.CacheDir, c.defaultRoot(), "cache")
}

// PortableDirsBase is the default base for portable home/config/share/cache dirs.
func (c *Config) PortableDirsBase() string {
	return orDefault(c.Settings.PortableDirs, c.defaultRoot(), "portable-dirs")
}

// DesktopDir is where .desktop entries are written.
func (c *Config) DesktopDir() string {
	if c.Settings.DesktopDir != "" {
		return fsutil.ExpandHome(c.Settings.DesktopDir)
	}
	return fsutil.DefaultDesktopDir()
}

// IconsDir is the hicolor theme root icons are written into.
func (c *Config) IconsDir() string {
	if c.Settings.IconsDir != "" {
		return fsutil.ExpandHome(c.Settings.IconsDir)
	}
	return fsutil.DefaultIconsDir()
}

// LockDir holds per-profile lock files.
func (c *Config) LockDir() string {
	if c.Settings.LockDir != "" {
		return fsutil.ExpandHome(c.Settings.LockDir)
	}
	return fsutil.DefaultLockDir()
}

// PackagesDir is where packages of the given profile are installed.
func (c *Config) PackagesDir(profile string) (string, error) {
	p, err := c.Profile(profile)
	if err != nil {
		return "", err
	}
	return p.PackagesDirPath(), nil
}

// DesktopIntegration reports whether packages from repo get desktop entries and icons.
func (c *Config) DesktopIntegration(repo string) bool {
	if c.Settings.DesktopIntegration != nil {
		return *c.Settings.DesktopIntegration
	}
	if r := c.GetRepository(repo); r != nil && r.DesktopIntegration != nil {
		return *r.DesktopIntegration
	}
	return false
}

// SignatureVerification reports whether payloads from repo must carry a valid signature.
func (c *Config) SignatureVerification(repo string) bool {
	if c.Settings.SignatureVerification != nil {
		return *c.Settings.SignatureVerification
	}
	r := c.GetRepository(repo)
	if r == nil || r.PubKey == "" {
		return false
	}
	if r.SignatureVerification != nil {
		return *r.SignatureVerification
	}
	return true
}

// SyncInterval returns the effective interval for repo; the global setting wins.
func (c *Config) SyncInterval(repo *RepositoryConfig) SyncInterval {
	raw := c.Settings.SyncInterval
	if raw == "" && repo != nil {
		raw = repo.SyncInterval
	}
	if raw == "" {
		return DefaultSyncInterval
	}
	iv, err := ParseSyncInterval(raw)
	if err != nil {
		return DefaultSyncInterval
	}
	return iv
}

// AddRepository adds a repository to the configuration.
func (c *Config) AddRepository(repo *RepositoryConfig) error {
	if repo.Name == "" {
		return errors.ErrEmptyRepositoryNameWithIndex(len(c.Repositories))
	}
	for _, existing := range c.Repositories {
		if existing.Name == repo.Name {
			return errors.ErrRepositoryExistsWithName(repo.Name)
		}
	}
	repo.applyDefaults()
	if err := repo.Validate(); err != nil {
		return err
	}
	c.Repositories = append(c.Repositories, repo)
	return nil
}

// RemoveRepository removes a repository from the configuration.
func (c *Config) RemoveRepository(name string) bool {
	for i, repo := range c.Repositories {
		if repo.Name == name {
			c.Repositories = append(c.Repositories[:i], c.Repositories[i+1:]...)
			return true
		}
	}
	return false
}

// GetRepository gets a repository configuration by name, enabled or not.
func (c *Config) GetRepository(name string) *RepositoryConfig {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			return repo
		}
	}
	return nil
}

// EnableRepository enables or disables a repository.
func (c *Config) EnableRepository(name string, enabled bool) bool {
	if repo := c.GetRepository(name); repo != nil {
		repo.Enabled = &enabled
		return true
	}
	return false
}

// EnabledRepositories returns enabled repositories in declaration order.
func (c *Config) EnabledRepositories() []*RepositoryConfig {
	var out []*RepositoryConfig
	for _, repo := range c.Repositories {
		if repo.IsEnabled() {
			out = append(out, repo)
		}
	}
	return out
}

// RepositoryDir is the directory holding repo's snapshot and public key.
func (c *Config) RepositoryDir(name string) string {
	return filepath.Join(c.RepositoriesDir(), name)
}
