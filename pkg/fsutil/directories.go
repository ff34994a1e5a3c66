package fsutil

import (
	"os"
	"path/filepath"
)

// EnsureDir creates a directory and all parents with DirModeDefault.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of filePath.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}
