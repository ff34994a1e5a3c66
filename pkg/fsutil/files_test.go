package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "source.txt")
		dst := filepath.Join(dir, "nested", "destination.txt")
		require.NoError(t, os.WriteFile(src, []byte("Hello, World!"), 0o755))

		require.NoError(t, Move(src, dst))

		content, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "Hello, World!", string(content))
		info, err := os.Stat(dst)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
		_, err = os.Stat(src)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "source_dir")
		dst := filepath.Join(dir, "destination_dir")
		require.NoError(t, os.MkdirAll(filepath.Join(src, "subdir"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(src, "subdir", "file2.txt"), []byte("content2"), 0o644))

		require.NoError(t, Move(src, dst))

		content, err := os.ReadFile(filepath.Join(dst, "subdir", "file2.txt"))
		require.NoError(t, err)
		assert.Equal(t, "content2", string(content))
	})

	t.Run("missing source", func(t *testing.T) {
		dir := t.TempDir()
		err := Move(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to stat source")
	})

	t.Run("empty paths", func(t *testing.T) {
		err := Move("", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source and destination paths cannot be empty")
	})
}

func TestIsCrossFilesystemError(t *testing.T) {
	assert.True(t, isCrossFilesystemError(&os.LinkError{Op: "rename", Err: syscall.EXDEV}))
	assert.False(t, isCrossFilesystemError(&os.LinkError{Op: "rename", Err: syscall.ENOENT}))
	assert.False(t, isCrossFilesystemError(errors.New("other")))
}

func TestCopyDir_RecreatesSymlinks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin"), []byte("x"), 0o755))
	require.NoError(t, os.Symlink("bin", filepath.Join(src, "alias")))

	dst := filepath.Join(dir, "dst")
	require.NoError(t, CopyDir(src, dst))

	target, err := os.Readlink(filepath.Join(dst, "alias"))
	require.NoError(t, err)
	assert.Equal(t, "bin", target)
	assert.True(t, IsExecutable(filepath.Join(dst, "bin")))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db", "snapshot.db")
	require.NoError(t, WriteFileAtomic(path, []byte("first"), FileModeDefault))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), FileModeDefault))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	t.Run("failed fill keeps previous file", func(t *testing.T) {
		err := WriteAtomic(path, FileModeDefault, func(w io.Writer) error {
			_, _ = w.Write([]byte("partial"))
			return errors.New("boom")
		})
		require.Error(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(content))

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp file must be cleaned up")
	})
}

func TestSetExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))
	assert.False(t, IsExecutable(path))

	require.NoError(t, SetExecutable(path))
	assert.True(t, IsExecutable(path))
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, RemoveIfExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, RemoveIfExists(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
