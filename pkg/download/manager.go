package download

import (
	"context"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/auth"
	pkgerrors "github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/verify"
)

// DefaultUserAgent is sent when the caller does not configure one.
const DefaultUserAgent = "soar/1.0"

const chunkSize = 64 * 1024

// ManagerImpl is an HTTP download manager with resumable transfers,
// retry with backoff and BLAKE3 verification.
type ManagerImpl struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	retry     RetryPolicy
}

// Option customizes a ManagerImpl.
type Option func(*ManagerImpl)

// WithAuth attaches per-repository credentials to outgoing requests.
func WithAuth(reg *auth.Registry) Option {
	return func(m *ManagerImpl) {
		m.client.Transport = &auth.Transport{Base: m.client.Transport, Registry: reg}
	}
}

// WithRetry replaces the default retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(m *ManagerImpl) { m.retry = p }
}

// NewManager creates a download manager. timeout bounds connection setup and
// the wait for response headers, not the length of the body transfer.
func NewManager(timeout time.Duration, userAgent string, opts ...Option) *ManagerImpl {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	m := &ManagerImpl{
		client:    &http.Client{Transport: transport},
		userAgent: userAgent,
		timeout:   timeout,
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Client exposes the configured HTTP client for callers issuing their own requests.
func (m *ManagerImpl) Client() *http.Client { return m.client }

// UserAgent is the User-Agent header value sent with every request.
func (m *ManagerImpl) UserAgent() string { return m.userAgent }

// Retry is the retry policy in effect.
func (m *ManagerImpl) Retry() RetryPolicy { return m.retry }

// FetchAll downloads multiple items concurrently and returns a map of item IDs to downloaded file paths.
// Items sharing a URL are downloaded once.
func (m *ManagerImpl) FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if err := prepareDir(opts.Dir); err != nil {
		return nil, err
	}

	byURL, order, err := buildURLIndex(items)
	if err != nil {
		return nil, err
	}

	results := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, key := range order {
		idxs := byURL[key]
		g.Go(func() error {
			p, err := m.fetchOne(gctx, items[idxs[0]], opts)
			if err != nil {
				return err
			}
			for _, i := range idxs {
				results[i] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mapResultsByID(items, results), nil
}

func buildURLIndex(items []Item) (map[string][]int, []string, error) {
	byURL := make(map[string][]int)
	var order []string
	for i, it := range items {
		if it.URL == nil {
			return nil, nil, fmt.Errorf("item %d (%s) has nil URL: %w", i, it.ID, pkgerrors.ErrNetworkFailure)
		}
		key := it.URL.String()
		if _, seen := byURL[key]; !seen {
			order = append(order, key)
		}
		byURL[key] = append(byURL[key], i)
	}
	return byURL, order, nil
}

func mapResultsByID(items []Item, results []string) map[string]string {
	out := make(map[string]string, len(items))
	for i, it := range items {
		out[it.ID] = results[i]
	}
	return out
}

// Fetch downloads a single item and returns the path to the downloaded file.
func (m *ManagerImpl) Fetch(ctx context.Context, item Item, opts Options) (string, error) {
	if err := prepareDir(opts.Dir); err != nil {
		return "", err
	}
	return m.fetchOne(ctx, item, opts)
}

func prepareDir(dir string) error {
	if dir == "" || !filepath.IsAbs(dir) {
		return fmt.Errorf("download dir must be absolute: %w: %q", pkgerrors.ErrFilesystem, dir)
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return pkgerrors.Filesystem(err, "could not create download dir")
	}
	return nil
}

func (m *ManagerImpl) fetchOne(ctx context.Context, item Item, opts Options) (string, error) {
	if item.URL == nil {
		return "", fmt.Errorf("nil URL for %s: %w", item.ID, pkgerrors.ErrNetworkFailure)
	}
	dest := filepath.Join(opts.Dir, selectFilename(item))
	if tryReuseExisting(dest, item.Checksum) {
		return dest, nil
	}

	err := m.retry.Do(ctx, item.URL.String(), func(ctx context.Context) error {
		return m.transfer(ctx, item, dest, opts.Progress)
	})
	if err != nil {
		return "", err
	}

	if _, err := verify.Checksum(partPath(dest), item.Checksum); err != nil {
		// a corrupt transfer restarts from zero next time
		discardPartial(dest)
		return "", err
	}
	if err := finalizeFile(dest); err != nil {
		return "", err
	}
	return dest, nil
}

func selectFilename(item Item) string {
	if item.Filename != "" {
		return filepath.Base(item.Filename)
	}
	if item.Checksum != "" {
		return strings.ToLower(item.Checksum)
	}
	h := verify.NewHasher()
	_, _ = h.Write([]byte(item.URL.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// FilenameFromURL is the last element of a URL path, used for detached downloads.
func FilenameFromURL(rawPath string) string {
	name := path.Base(rawPath)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func tryReuseExisting(dest, checksum string) bool {
	st, err := os.Stat(dest)
	if err != nil || st.Size() == 0 {
		return false
	}
	if checksum == "" {
		return true
	}
	_, err = verify.Checksum(dest, checksum)
	return err == nil
}

// transfer performs one attempt: it resumes the partial file when a valid
// resume record exists and appends the response body to it.
func (m *ManagerImpl) transfer(ctx context.Context, item Item, dest string, progress func(Progress)) error {
	target := item.URL.String()
	state, offset := loadResume(dest, target)
	if state == nil {
		discardPartial(dest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", m.userAgent)
	if state != nil {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
		req.Header.Set("If-Range", state.validator())
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pkgerrors.Network(err, "download %s", target)
	}
	defer func() { _ = resp.Body.Close() }()

	resumed := false
	switch {
	case resp.StatusCode == http.StatusPartialContent && state != nil:
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset || (state.ETag != "" && resp.Header.Get("ETag") != "" && resp.Header.Get("ETag") != state.ETag) {
			discardPartial(dest)
			return pkgerrors.Network(stderrors.New("server returned a mismatched range"), "resume %s", target)
		}
		if total > 0 {
			state.Total = total
		}
		resumed = true
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && state != nil:
		if state.Total > 0 && offset == state.Total {
			return nil
		}
		discardPartial(dest)
		return pkgerrors.Network(stderrors.New("range not satisfiable"), "resume %s", target)
	case resp.StatusCode == http.StatusOK:
		// full body: the server ignored or rejected the range, start over
		offset = 0
		state = &resumeState{
			URL:          target,
			Total:        resp.ContentLength,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if state.Total < 0 {
			state.Total = 0
		}
	default:
		if err := CheckStatus(resp); err != nil {
			return err
		}
		return &pkgerrors.StatusError{Code: resp.StatusCode, URL: target}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resumed {
		flags |= os.O_APPEND
		logger.Debug("resuming download", logger.Fields{"url": target, "offset": offset})
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(partPath(dest), flags, fsutil.FileModeSecure)
	if err != nil {
		return pkgerrors.Filesystem(err, "open partial file")
	}

	written, copyErr := copyWithProgress(ctx, f, resp.Body, func(n int64) {
		if progress != nil {
			progress(Progress{ID: item.ID, Downloaded: offset + n, Total: state.Total, Resumed: resumed})
		}
	})
	syncErr := f.Sync()
	closeErr := f.Close()

	// the record is written even on failure so a later attempt can continue
	state.Downloaded = offset + written
	if state.validator() != "" {
		if err := saveResume(dest, state); err != nil {
			logger.Warn("could not persist resume state", logger.Fields{"path": dest, "error": err.Error()})
		}
	}

	if copyErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pkgerrors.Network(copyErr, "read body of %s", target)
	}
	if syncErr != nil {
		return pkgerrors.Filesystem(syncErr, "sync partial file")
	}
	if closeErr != nil {
		return pkgerrors.Filesystem(closeErr, "close partial file")
	}
	if state.Total > 0 && state.Downloaded != state.Total {
		return pkgerrors.Network(fmt.Errorf("got %d of %d bytes", state.Downloaded, state.Total), "short read from %s", target)
	}
	if progress != nil {
		progress(Progress{ID: item.ID, Downloaded: state.Downloaded, Total: state.Total, Resumed: resumed, Done: true})
	}
	return nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, onChunk func(total int64)) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			total += int64(w)
			if werr != nil {
				return total, werr
			}
			onChunk(total)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// parseContentRange parses "bytes start-end/total". total is 0 when unknown ("*").
func parseContentRange(v string) (start, total int64, ok bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, 0, false
	}
	spec, size, found := strings.Cut(strings.TrimPrefix(v, "bytes "), "/")
	if !found {
		return 0, 0, false
	}
	from, _, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, false
		}
	}
	return start, total, true
}

func finalizeFile(dest string) error {
	if err := fsutil.Move(partPath(dest), dest); err != nil {
		return pkgerrors.Filesystem(err, "could not finalize file")
	}
	_ = fsutil.RemoveIfExists(resumePath(dest))
	if err := os.Chmod(dest, fsutil.FileModeSecure); err != nil {
		return pkgerrors.Filesystem(err, "could not set permissions")
	}
	return nil
}
