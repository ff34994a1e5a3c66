//go:generate mockgen -destination=./mocks/lifecycle.go -package=mocks . Resolver,Store,Linker,Keyring

package lifecycle

import (
	"context"

	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/integrate"
	"github.com/pkgforge/soar/pkg/model"
	"github.com/pkgforge/soar/pkg/query"
	"github.com/pkgforge/soar/pkg/resolve"
	"github.com/pkgforge/soar/pkg/verify"
)

// Resolver is the subset of the package resolver used by the engine.
type Resolver interface {
	Select(ctx context.Context, raw string, mode resolve.Mode) ([]model.Candidate, error)
	ResolveInstalled(ctx context.Context, raw string, opts resolve.InstalledOptions) ([]model.InstalledPackage, error)
	UpdateTargets(ctx context.Context, all bool, refs []string, profile string) ([]resolve.UpdateTarget, error)
	Latest(ctx context.Context, rec *model.InstalledPackage) (model.Candidate, bool, error)
}

// Store is the subset of the installed-state store used by the engine.
type Store interface {
	Find(ctx context.Context, pred query.Predicate) ([]model.InstalledPackage, error)
	InsertPending(ctx context.Context, rec *model.InstalledPackage) (int64, error)
	Promote(ctx context.Context, id int64) error
	Replace(ctx context.Context, oldID int64, rec *model.InstalledPackage) (int64, error)
	Delete(ctx context.Context, id int64) error
	UnlinkOthers(ctx context.Context, keepID int64, pkgName, profile string) (int64, error)
	Activate(ctx context.Context, id int64, pkgName, profile string) error
}

// Linker creates and removes the host integration of a package.
type Linker interface {
	formats.Integrator
	RemoveLinksInto(dir string) ([]string, error)
	RemoveBrokenLinks() ([]string, error)
}

// Keyring returns the signature verifier for a repository, or nil when the
// repository's payloads are not verified.
type Keyring interface {
	Verifier(repo string) (*verify.Verifier, error)
}

// Event is a progress notification.
type Event struct {
	Phase    Phase
	ID       string // package being processed
	Msg      string
	Progress *download.Progress
}

// Events carries callbacks for progress events.
type Events struct {
	OnEvent func(Event)
}

func (e Events) emit(ev Event) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// InstallOptions control an install.
type InstallOptions struct {
	Profile string
	// Force reinstalls packages that are already installed.
	Force bool
	// Yes picks the first candidate instead of failing on ambiguous references.
	Yes bool
	// NoDesktop skips desktop entries and icons.
	NoDesktop bool
	// Portable requests portable directories for the installed packages.
	Portable integrate.PortableFlags
	// Detached installs from a URL or local file instead of repository metadata.
	Detached *DetachedSource
}

// DetachedSource describes a package installed without repository metadata.
type DetachedSource struct {
	URL     string
	Name    string
	PkgID   string
	Version string
}

// UpdateOptions control an update.
type UpdateOptions struct {
	Profile string
	// All updates every installed, unpinned, repository-tracked package.
	All bool
}

// RemoveOptions control a remove.
type RemoveOptions struct {
	Profile string
}
