package download

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkgforge/soar/internal/logger"
	pkgerrors "github.com/pkgforge/soar/pkg/errors"
)

// RetryPolicy bounds how often a network-class failure is attempted again.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries five times starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. Checksum and signature failures are returned as is.
func (p RetryPolicy) Do(ctx context.Context, what string, op func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil || !pkgerrors.IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}
		wait := p.Backoff(attempt, err)
		logger.Debug("retrying", logger.Fields{
			"target":  what,
			"attempt": attempt + 1,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff is the wait before retry number attempt+1. A server supplied
// Retry-After takes precedence over the exponential schedule.
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	var rl *pkgerrors.RateLimitedError
	if stderrors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d
}

// ParseRetryAfter reads a Retry-After header given either as delta seconds or an HTTP date.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// CheckStatus converts an unsuccessful response into the error taxonomy:
// 429 (and 503 with Retry-After) become RateLimitedError, everything else a StatusError.
func CheckStatus(resp *http.Response) error {
	code := resp.StatusCode
	if (code >= 200 && code < 300) || code == http.StatusNotModified {
		return nil
	}
	target := resp.Request.URL.String()
	retryAfter := resp.Header.Get("Retry-After")
	if code == http.StatusTooManyRequests || (code == http.StatusServiceUnavailable && retryAfter != "") {
		return &pkgerrors.RateLimitedError{URL: target, RetryAfter: ParseRetryAfter(retryAfter, time.Now())}
	}
	return &pkgerrors.StatusError{Code: code, URL: target}
}
