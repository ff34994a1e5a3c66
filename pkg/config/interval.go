package config

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkgforge/soar/pkg/errors"
)

// SyncInterval is how old a repository snapshot may get before sync refreshes it.
type SyncInterval time.Duration

const (
	// SyncAlways refreshes on every sync.
	SyncAlways SyncInterval = 0
	// SyncNever only refreshes when forced or when no snapshot exists.
	SyncNever SyncInterval = SyncInterval(math.MaxInt64)
	// DefaultSyncInterval applies when neither the repository nor the settings set one.
	DefaultSyncInterval = SyncInterval(3 * time.Hour)
)

// Due reports whether a snapshot last written at modTime must be refreshed at now.
func (s SyncInterval) Due(modTime, now time.Time) bool {
	if s == SyncNever {
		return false
	}
	return now.Sub(modTime) >= time.Duration(s)
}

func (s SyncInterval) String() string {
	switch s {
	case SyncAlways:
		return "always"
	case SyncNever:
		return "never"
	}
	return time.Duration(s).String()
}

// ParseSyncInterval accepts "always", "never", "auto", Go durations ("90m"),
// and compound day forms like "1d12h".
func ParseSyncInterval(raw string) (SyncInterval, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "always":
		return SyncAlways, nil
	case "never":
		return SyncNever, nil
	case "auto":
		return DefaultSyncInterval, nil
	case "":
		return 0, errors.Wrapf(errors.ErrInvalidDuration, "empty sync interval")
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return SyncInterval(d), nil
	}
	d, err := parseDays(raw)
	if err != nil {
		return 0, err
	}
	return SyncInterval(d), nil
}

// parseDays handles a leading day component, e.g. "2d" or "1d6h".
func parseDays(raw string) (time.Duration, error) {
	idx := strings.IndexByte(raw, 'd')
	if idx <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidDuration, "%q", raw)
	}
	days, err := strconv.Atoi(raw[:idx])
	if err != nil || days < 0 {
		return 0, errors.Wrapf(errors.ErrInvalidDuration, "%q", raw)
	}
	total := time.Duration(days) * 24 * time.Hour
	if rest := raw[idx+1:]; rest != "" {
		d, err := time.ParseDuration(rest)
		if err != nil || d < 0 {
			return 0, errors.Wrapf(errors.ErrInvalidDuration, "%q", raw)
		}
		total += d
	}
	return total, nil
}
