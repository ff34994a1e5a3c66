// Package fsutil provides filesystem helpers shared by the stores and the lifecycle engine.
package fsutil

// File and directory permission constants.
const (
	FileModeDefault = 0o644 // -rw-r--r--
	FileModeSecure  = 0o640 // -rw-r-----
	FileModeExec    = 0o755 // -rwxr-xr-x

	DirModeDefault = 0o755 // drwxr-xr-x
	DirModeSecure  = 0o750 // drwxr-x---
	DirModePrivate = 0o700 // drwx------

	// ExecBits is the mask checked when deciding whether a file is executable.
	ExecBits = 0o111
)
