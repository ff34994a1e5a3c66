package hooks

import "context"

// HookType names the point in a package lifecycle a script runs at.
type HookType string

// Supported hook types.
const (
	PostDownload HookType = "post_download"
	PostExtract  HookType = "post_extract"
	PostInstall  HookType = "post_install"
	PreRemove    HookType = "pre_remove"
)

// Types lists every supported hook type in lifecycle order.
var Types = []HookType{PostDownload, PostExtract, PostInstall, PreRemove}

// Hook is a script bound to one hook type.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext contains the values exposed to a script as global variables.
type HookContext struct {
	InstallDir string
	BinDir     string
	PkgName    string
	PkgID      string
	PkgVersion string
	Profile    string
	Vars       map[string]interface{}
}

// variables returns the script globals in a stable order.
func (c HookContext) variables() []struct {
	name  string
	value string
} {
	return []struct {
		name  string
		value string
	}{
		{"install_dir", c.InstallDir},
		{"bin_dir", c.BinDir},
		{"pkg_name", c.PkgName},
		{"pkg_id", c.PkgID},
		{"pkg_version", c.PkgVersion},
		{"profile", c.Profile},
	}
}

// Runner runs the hook of the given type registered for hc.PkgName, if any.
type Runner interface {
	Run(ctx context.Context, hookType HookType, hc HookContext) error
}
