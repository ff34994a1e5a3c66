package resolve

import (
	"fmt"
	"strings"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
)

// AmbiguousError is returned when a reference matches more than one target
// and the caller asked for exactly one. It carries the ranked choices so a
// caller can prompt or print them.
type AmbiguousError struct {
	Query      string
	Candidates []model.Candidate
	Installed  []model.InstalledPackage
}

func (e *AmbiguousError) Error() string {
	choices := make([]string, 0, len(e.Candidates)+len(e.Installed))
	for _, c := range e.Candidates {
		choices = append(choices, c.String())
	}
	for i := range e.Installed {
		choices = append(choices, e.Installed[i].String())
	}
	return fmt.Sprintf("%s %q matches %d packages: %s",
		errors.ErrAmbiguous, e.Query, len(choices), strings.Join(choices, ", "))
}

func (e *AmbiguousError) Unwrap() error { return errors.ErrAmbiguous }
