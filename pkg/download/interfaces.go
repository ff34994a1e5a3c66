package download

import (
	"context"
	"net/url"
)

//go:generate mockgen -destination=mocks/manager.go -package=mocks . Manager

// Manager downloads remote payloads (package binaries, signatures, metadata
// side-files) into a cache directory.
type Manager interface {
	// FetchAll downloads all items, respecting Options (e.g., concurrency and cache dir).
	// It returns a map from Item.ID to absolute local file path.
	FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error)

	// Fetch downloads a single item to a deterministic location (within opts.Dir).
	// An interrupted download leaves a partial file and resume record behind and
	// continues from there on the next call.
	Fetch(ctx context.Context, item Item, opts Options) (string, error)
}

// Item represents one remote resource to download.
type Item struct {
	ID       string   // stable identifier, unique within a batch
	URL      *url.URL // source URL
	Checksum string   // optional hex BLAKE3 digest, compared case-insensitively
	Filename string   // optional file name; derived from Checksum or URL when empty
}

// Options control one fetch call.
type Options struct {
	Dir         string         // destination directory, must be absolute
	Concurrency int            // parallel downloads for FetchAll
	Progress    func(Progress) // optional; called for every chunk written
}

// Progress is one chunk event of a running download.
type Progress struct {
	ID         string
	Downloaded int64
	Total      int64 // 0 when the server did not announce a length
	Resumed    bool
	Done       bool
}
