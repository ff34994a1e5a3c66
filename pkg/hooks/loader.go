package hooks

import (
	"fmt"
	"os"

	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
)

// LoadFromConfig reads every script referenced by the hooks section of the
// configuration and registers it on a new Manager.
func LoadFromConfig(cfg map[string]config.HookConfig) (*Manager, error) {
	manager := NewManager()
	for pkgName, hc := range cfg {
		scripts := map[HookType]string{
			PostDownload: hc.PostDownload,
			PostExtract:  hc.PostExtract,
			PostInstall:  hc.PostInstall,
			PreRemove:    hc.PreRemove,
		}
		for _, hookType := range Types {
			path := scripts[hookType]
			if path == "" {
				continue
			}
			content, err := os.ReadFile(fsutil.ExpandHome(path))
			if err != nil {
				return nil, fmt.Errorf("%w: %s hook for %s: %w", errors.ErrHookLoad, hookType, pkgName, err)
			}
			if err := manager.AddHook(pkgName, Hook{Type: hookType, Content: string(content)}); err != nil {
				return nil, errors.Wrapf(err, "error adding %s hook for %s", hookType, pkgName)
			}
		}
	}
	return manager, nil
}

// HookTemplate generates a starter script for a hook type.
func HookTemplate(hookType HookType) string {
	const vars = `// Available variables:
// - install_dir: directory the package is installed into
// - bin_dir: directory holding the PATH symlinks
// - pkg_name, pkg_id, pkg_version: the package being processed
// - profile: the installation profile
// Set err to a non-empty string to abort the operation.
`
	switch hookType {
	case PostDownload:
		return "// Post-download hook\n// Runs after the payload was downloaded and verified.\n" + vars
	case PostExtract:
		return "// Post-extract hook\n// Runs after the payload was staged into install_dir.\n" + vars
	case PostInstall:
		return `// Post-install hook
// Runs after the package was integrated and recorded.
` + vars + `
// Example:
/*
fmt := import("fmt")
fmt.println("installed ", pkg_name, " into ", install_dir)
*/`
	case PreRemove:
		return "// Pre-remove hook\n// Runs before the package files are removed.\n" + vars
	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
