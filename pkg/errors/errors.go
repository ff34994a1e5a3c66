// Package errors defines the error taxonomy shared by every soar component.
//
// Components wrap one of the sentinel values below so callers can classify a
// failure with errors.Is regardless of how much context was added on the way up.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors.
var (
	ErrNotFound                  = fmt.Errorf("package not found")
	ErrAmbiguous                 = fmt.Errorf("ambiguous package reference")
	ErrRepoNotConfigured         = fmt.Errorf("repository not configured")
	ErrChecksumMismatch          = fmt.Errorf("checksum mismatch")
	ErrSignatureInvalid          = fmt.Errorf("signature verification failed")
	ErrNetworkFailure            = fmt.Errorf("network failure")
	ErrRateLimited               = fmt.Errorf("rate limited")
	ErrFilesystem                = fmt.Errorf("filesystem error")
	ErrInvalidLinkTarget         = fmt.Errorf("invalid link target in archive")
	ErrSchemaMigration           = fmt.Errorf("schema migration failed")
	ErrConcurrentOperationLocked = fmt.Errorf("another operation holds the profile lock")
	ErrInvalidReference          = fmt.Errorf("invalid package reference")
	ErrInvalidQuery              = fmt.Errorf("invalid query")
	ErrInvalidSnapshot           = fmt.Errorf("invalid metadata snapshot")
	ErrMissingETag               = fmt.Errorf("response is missing an ETag header")
	ErrNoPackagesSpecified       = fmt.Errorf("no packages specified and --all flag not used")
)

// Config errors.
var (
	ErrEmptyConfigPath     = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath   = fmt.Errorf("invalid config file path")
	ErrConfigParse         = fmt.Errorf("failed to parse config")
	ErrConfigValidation    = fmt.Errorf("invalid configuration")
	ErrConfigEncode        = fmt.Errorf("failed to encode config")
	ErrConfigDirectory     = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate    = fmt.Errorf("failed to create config file")
	ErrConfigFileRename    = fmt.Errorf("failed to rename temporary config file")
	ErrConfigMarshal       = fmt.Errorf("failed to marshal config to YAML")
	ErrEmptyRepositoryName = fmt.Errorf("repository name cannot be empty")
	ErrRepositoryURLEmpty  = fmt.Errorf("repository URL cannot be empty")
	ErrRepositoryExists    = fmt.Errorf("repository already exists")
	ErrInvalidDuration     = fmt.Errorf("invalid duration")
	ErrUnknownConfigKey    = fmt.Errorf("unknown configuration key")
	ErrInvalidBoolValue    = fmt.Errorf("invalid boolean value")
	ErrUnknownProfile      = fmt.Errorf("unknown profile")
)

// Hook errors.
var (
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Filesystem tags err as a FilesystemError while keeping the original cause.
func Filesystem(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), ErrFilesystem, err)
}

// Network tags err as a retryable NetworkFailure.
func Network(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), ErrNetworkFailure, err)
}

// StatusError is an unexpected HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d (%s)", e.Code, e.URL)
}

// Unwrap classifies server-side failures as network failures so they are retried.
func (e *StatusError) Unwrap() error {
	if e.Code >= 500 {
		return ErrNetworkFailure
	}
	return nil
}

// RateLimitedError carries the server's Retry-After hint.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s (retry after %s)", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.URL)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// IsRetryable reports whether an operation failing with err may be attempted again.
// Integrity failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrSignatureInvalid) {
		return false
	}
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrRateLimited)
}

// ErrNotFoundWithName wraps ErrNotFound with the queried name.
func ErrNotFoundWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ErrRepoNotConfiguredWithName wraps ErrRepoNotConfigured with the repository name.
func ErrRepoNotConfiguredWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrRepoNotConfigured, name)
}

// ErrChecksumMismatchWithDetails reports both digests.
func ErrChecksumMismatchWithDetails(path, want, got string) error {
	return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, path, want, got)
}

// ErrLockedWithProfile wraps ErrConcurrentOperationLocked with the profile name.
func ErrLockedWithProfile(profile string) error {
	return fmt.Errorf("%w: profile %q", ErrConcurrentOperationLocked, profile)
}

// ErrEmptyRepositoryNameWithIndex is a helper to create a wrapped error with the repository index.
func ErrEmptyRepositoryNameWithIndex(i int) error {
	return fmt.Errorf("repository %d: %w", i, ErrEmptyRepositoryName)
}

// ErrRepositoryURLEmptyWithName is a helper to create a wrapped error with the repository name.
func ErrRepositoryURLEmptyWithName(name string) error {
	return fmt.Errorf("repository '%s': %w", name, ErrRepositoryURLEmpty)
}

// ErrRepositoryExistsWithName is a helper to create a wrapped error with the repository name.
func ErrRepositoryExistsWithName(name string) error {
	return fmt.Errorf("repository '%s': %w", name, ErrRepositoryExists)
}

// ErrMigrationWithVersion wraps ErrSchemaMigration with the failing migration version.
func ErrMigrationWithVersion(version int, err error) error {
	return fmt.Errorf("%w: version %d: %w", ErrSchemaMigration, version, err)
}
