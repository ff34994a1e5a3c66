package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkgforge/soar/pkg/cache"
	"github.com/pkgforge/soar/pkg/lifecycle"
)

// newEventPrinter reports phase changes as they happen. Download progress is
// only printed in verbose mode, once per completed transfer.
func newEventPrinter(w io.Writer, verbose bool) func(lifecycle.Event) {
	var mu sync.Mutex
	return func(e lifecycle.Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Progress != nil {
			if verbose && e.Progress.Done {
				_, _ = fmt.Fprintf(w, "%s: downloaded %s\n", e.ID, cache.FormatBytes(e.Progress.Downloaded))
			}
			return
		}
		if !verbose && e.Phase != lifecycle.PhaseDownloading {
			return
		}
		if e.Msg != "" {
			_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", e.Phase, e.ID, e.Msg)
		} else {
			_, _ = fmt.Fprintf(w, "%s: %s\n", e.Phase, e.ID)
		}
	}
}
