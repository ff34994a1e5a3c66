package lifecycle

import (
	"sync"

	"github.com/pkgforge/soar/internal/logger"
)

// Phase is a state of the install pipeline. A failed operation reports the
// phase it failed in.
type Phase string

const (
	PhaseResolved    Phase = "RESOLVED"
	PhaseDownloading Phase = "DOWNLOADING"
	PhaseVerifying   Phase = "VERIFYING"
	PhaseStaging     Phase = "STAGING"
	PhaseIntegrating Phase = "INTEGRATING"
	PhaseCommitted   Phase = "COMMITTED"
	PhaseRemoved     Phase = "REMOVED"
)

// Outcome is the result of one package in a batch.
type Outcome struct {
	Ref     string
	Package string
	Version string
	Phase   Phase
	Skipped bool
	Message string
	Err     error
}

// Failed reports whether the package operation failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Report collects the per-package outcomes of a batch operation.
type Report struct {
	mu       sync.Mutex
	Outcomes []Outcome
}

func (r *Report) add(o Outcome) {
	if o.Err != nil {
		logger.Error("Package operation failed", logger.Fields{
			"ref": o.Ref, "package": o.Package, "phase": string(o.Phase), "error": o.Err.Error(),
		})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) fail(ref string, phase Phase, err error) {
	r.add(Outcome{Ref: ref, Phase: phase, Err: err})
}

func (r *Report) skip(ref, pkg, version, msg string) {
	r.add(Outcome{Ref: ref, Package: pkg, Version: version, Phase: PhaseResolved, Skipped: true, Message: msg})
}

// Failed reports whether any package failed.
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Failed() {
			return true
		}
	}
	return false
}

// Counts returns the number of succeeded, skipped and failed packages.
func (r *Report) Counts() (ok, skipped, failed int) {
	for _, o := range r.Outcomes {
		switch {
		case o.Failed():
			failed++
		case o.Skipped:
			skipped++
		default:
			ok++
		}
	}
	return ok, skipped, failed
}
