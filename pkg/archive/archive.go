// Package archive extracts package archives into an install directory,
// keeping only entries selected by the install patterns.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archives"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
)

// Manager handles archive extraction and creation operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// IsArchive reports whether the file at path is a format the extractor understands.
func (am *Manager) IsArchive(ctx context.Context, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	format, _, err := archives.Identify(ctx, filepath.Base(path), f)
	if err != nil {
		return false
	}
	_, ok := format.(archives.Extractor)
	return ok
}

// ExtractAll extracts every entry accepted by filter into destDir and
// returns the extracted file paths relative to destDir. A nil filter keeps everything.
func (am *Manager) ExtractAll(ctx context.Context, archivePath, destDir string, filter *Filter) ([]string, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, errors.Filesystem(err, "failed to open archive %s", archivePath)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if err := fsutil.EnsureDir(destDir); err != nil {
		return nil, errors.Filesystem(err, "failed to create destination directory")
	}

	var extracted []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == "." || d.IsDir() || !filter.Match(path) {
			return nil
		}
		if err := am.extractEntry(fsys, path, destDir, d); err != nil {
			return err
		}
		extracted = append(extracted, path)
		return nil
	})
	if err != nil {
		return nil, errors.Filesystem(err, "extract %s", archivePath)
	}
	return extracted, nil
}

// Create writes a tar.gz archive of sourceDir to archivePath.
func (am *Manager) Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

// extractEntry writes a single archive entry below destDir.
func (am *Manager) extractEntry(fsys fs.FS, path, destDir string, d fs.DirEntry) error {
	targetPath := filepath.Join(destDir, filepath.FromSlash(path))
	if !fsutil.IsWithin(targetPath, destDir) {
		return fmt.Errorf("entry %s escapes %s", path, destDir)
	}

	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to get file info for %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return am.writeSymlink(fsys, path, destDir, targetPath, info)
	}
	return am.writeRegularFile(fsys, path, targetPath, info)
}

// writeSymlink creates a symlink at targetPath for the archive entry at path.
// Absolute targets and relative targets resolving outside destDir are rejected.
func (am *Manager) writeSymlink(fsys fs.FS, path, destDir, targetPath string, info fs.FileInfo) error {
	linkTarget, err := symlinkTarget(fsys, path, info)
	if err != nil {
		return err
	}
	if linkTarget == "" || filepath.IsAbs(linkTarget) ||
		!fsutil.IsWithin(filepath.Join(filepath.Dir(targetPath), linkTarget), destDir) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidLinkTarget, path, linkTarget)
	}
	if err := fsutil.EnsureFileDir(targetPath); err != nil {
		return fmt.Errorf("failed to create parent directory for symlink %s: %w", path, err)
	}
	_ = os.Remove(targetPath)
	return os.Symlink(linkTarget, targetPath)
}

func symlinkTarget(fsys fs.FS, path string, info fs.FileInfo) (string, error) {
	if fi, ok := info.(archives.FileInfo); ok && fi.LinkTarget != "" {
		return fi.LinkTarget, nil
	}
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read symlink %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	target, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("failed to read symlink target %s: %w", path, err)
	}
	return string(target), nil
}

// writeRegularFile writes a regular file from the archive entry to targetPath and preserves metadata.
func (am *Manager) writeRegularFile(fsys fs.FS, path, targetPath string, info fs.FileInfo) error {
	srcFile, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", path, err)
	}
	defer func() { _ = srcFile.Close() }()

	if err := fsutil.EnsureFileDir(targetPath); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = fsutil.FileModeDefault
	}
	dstFile, err := fsutil.CreateFilePerm(targetPath, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", targetPath, err)
	}
	defer func() { _ = dstFile.Close() }()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file %s: %w", path, err)
	}
	if err := os.Chmod(targetPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions for %s: %w", targetPath, err)
	}
	if err := os.Chtimes(targetPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set modification time for %s: %w", targetPath, err)
	}
	return nil
}
