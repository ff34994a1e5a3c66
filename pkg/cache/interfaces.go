package cache

// Manager defines the interface for cache management operations.
type Manager interface {
	Clean(options CleanOptions) (*CleanResult, error)
	GetInfo() (*Info, error)
	GetDirectory() string
}

// CleanOptions specifies what to clean from the cache.
type CleanOptions struct {
	All       bool
	Partials  bool // interrupted downloads and their resume records
	Downloads bool // completed payloads that were never staged
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed    int64
	PartialFreed  int64
	DownloadFreed int64
	FilesRemoved  int
}

// Info represents cache information.
type Info struct {
	Directory     string
	TotalSize     int64
	PartialSize   int64
	PartialFiles  int
	DownloadSize  int64
	DownloadFiles int
}
