package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName is the name of the application used in paths
	AppName = "soar"
)

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" && filepath.IsAbs(dir) {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// ConfigHome returns $XDG_CONFIG_HOME or ~/.config.
func ConfigHome() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// DataHome returns $XDG_DATA_HOME or ~/.local/share.
func DataHome() string { return xdgDir("XDG_DATA_HOME", ".local", "share") }

// CacheHome returns $XDG_CACHE_HOME or ~/.cache.
func CacheHome() string { return xdgDir("XDG_CACHE_HOME", ".cache") }

// RuntimeDir returns $XDG_RUNTIME_DIR, falling back to a per-user temp directory.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), AppName+"-"+strings.ReplaceAll(os.Getenv("USER"), string(filepath.Separator), "_"))
}

// DefaultConfigPath is $XDG_CONFIG_HOME/soar/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigHome(), AppName, "config.yaml")
}

// DefaultRootDir is the root under which soar keeps packages, bins and databases.
func DefaultRootDir() string {
	return filepath.Join(DataHome(), AppName)
}

// DefaultDesktopDir is the user applications directory.
func DefaultDesktopDir() string {
	return filepath.Join(DataHome(), "applications")
}

// DefaultIconsDir is the user hicolor icon theme directory.
func DefaultIconsDir() string {
	return filepath.Join(DataHome(), "icons", "hicolor")
}

// DefaultLockDir holds the per-profile lock files.
func DefaultLockDir() string {
	return filepath.Join(RuntimeDir(), AppName, "locks")
}

// ExpandHome replaces a leading ~ and expands environment variables.
func ExpandHome(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
