// Package cache inspects and cleans the download cache. Package payloads are
// fetched into DownloadsDir; interrupted transfers leave a .part file and a
// .resume record next to the final name.
package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkgforge/soar/pkg/download"
	"github.com/pkgforge/soar/pkg/errors"
)

// Cache errors.
var (
	ErrCacheClean = errors.Wrap(errors.ErrFilesystem, "failed to clean cache")
	ErrCacheInfo  = errors.Wrap(errors.ErrFilesystem, "failed to get cache info")
)

// DownloadsDir is the cache subdirectory package payloads are fetched into.
const DownloadsDir = "downloads"

// DownloadsPath returns the payload download directory under cacheDir.
func DownloadsPath(cacheDir string) string {
	return filepath.Join(cacheDir, DownloadsDir)
}

// DefaultManager implements the Manager interface for cache operations.
type DefaultManager struct {
	directory string
}

var _ Manager = (*DefaultManager)(nil)

// NewManager creates a new cache manager.
func NewManager(directory string) *DefaultManager {
	return &DefaultManager{
		directory: directory,
	}
}

// IsPartial reports whether name belongs to an interrupted download.
func IsPartial(name string) bool {
	return strings.HasSuffix(name, download.PartSuffix) || strings.HasSuffix(name, download.ResumeSuffix)
}

// Clean removes cached files according to the specified options.
func (cm *DefaultManager) Clean(options CleanOptions) (*CleanResult, error) {
	if !options.Partials && !options.Downloads {
		options.All = true
	}
	if options.All {
		options.Partials = true
		options.Downloads = true
	}

	result := &CleanResult{}
	err := cm.walk(func(path string, info fs.FileInfo) error {
		partial := IsPartial(info.Name())
		if partial && !options.Partials || !partial && !options.Downloads {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		if partial {
			result.PartialFreed += info.Size()
		} else {
			result.DownloadFreed += info.Size()
		}
		result.FilesRemoved++
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(ErrCacheClean, "%v", err)
	}
	result.TotalFreed = result.PartialFreed + result.DownloadFreed
	return result, nil
}

// GetInfo returns information about the cache.
func (cm *DefaultManager) GetInfo() (*Info, error) {
	info := &Info{Directory: cm.directory}
	err := cm.walk(func(_ string, fi fs.FileInfo) error {
		if IsPartial(fi.Name()) {
			info.PartialSize += fi.Size()
			info.PartialFiles++
		} else {
			info.DownloadSize += fi.Size()
			info.DownloadFiles++
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(ErrCacheInfo, "%v", err)
	}
	info.TotalSize = info.PartialSize + info.DownloadSize
	return info, nil
}

// walk visits every regular file under the downloads directory.
func (cm *DefaultManager) walk(visit func(path string, info fs.FileInfo) error) error {
	root := DownloadsPath(cm.directory)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return visit(path, info)
	})
}

// GetDirectory returns the cache directory path.
func (cm *DefaultManager) GetDirectory() string {
	return cm.directory
}
