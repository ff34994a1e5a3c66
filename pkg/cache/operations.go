package cache

import (
	"fmt"

	"github.com/pkgforge/soar/internal/logger"
)

// Operation renders cache actions for the command line.
type Operation struct {
	manager Manager
}

// NewOperation creates a new cache operation instance.
func NewOperation(manager Manager) *Operation {
	return &Operation{
		manager: manager,
	}
}

// Clean cleans the cache and describes what was freed.
func (op *Operation) Clean(all, partials, downloads bool) (string, error) {
	options := CleanOptions{
		All:       all,
		Partials:  partials,
		Downloads: downloads,
	}

	logger.Debug("Cleaning cache", logger.Fields{
		"all":       options.All,
		"partials":  options.Partials,
		"downloads": options.Downloads,
	})

	result, err := op.manager.Clean(options)
	if err != nil {
		return "", err
	}

	if result.FilesRemoved == 0 {
		return "No files were removed from the cache.", nil
	}
	msg := fmt.Sprintf("Successfully cleaned cache. Freed %s in %d files.", FormatBytes(result.TotalFreed), result.FilesRemoved)
	if result.PartialFreed > 0 {
		msg += fmt.Sprintf("\n- Partials: %s", FormatBytes(result.PartialFreed))
	}
	if result.DownloadFreed > 0 {
		msg += fmt.Sprintf("\n- Downloads: %s", FormatBytes(result.DownloadFreed))
	}
	return msg, nil
}

// GetInfo returns a summary of the cache contents.
func (op *Operation) GetInfo() (string, error) {
	info, err := op.manager.GetInfo()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Cache Information:
  Directory:    %s
  Total Size:   %s
  Partials:     %s (%d files)
  Downloads:    %s (%d files)`,
		info.Directory,
		FormatBytes(info.TotalSize),
		FormatBytes(info.PartialSize),
		info.PartialFiles,
		FormatBytes(info.DownloadSize),
		info.DownloadFiles,
	), nil
}

// GetDirectory returns the cache directory path.
func (op *Operation) GetDirectory() string {
	return op.manager.GetDirectory()
}

// FormatBytes converts bytes to a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
