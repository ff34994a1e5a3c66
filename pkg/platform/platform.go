// Package platform describes the host in the form used by repository URLs
// and package metadata, for example "x86_64-Linux".
package platform

import (
	"runtime"
	"strings"
)

// Placeholder is substituted with the host triple in repository URLs.
const Placeholder = "{platform}"

// Platform represents the host OS and architecture.
type Platform struct {
	OS   string `yaml:"os" json:"os"`
	Arch string `yaml:"arch" json:"arch"`
}

// CurrentPlatform returns the platform the binary is running on.
func CurrentPlatform() Platform {
	return Platform{OS: NormalizeOS(runtime.GOOS), Arch: NormalizeArch(runtime.GOARCH)}
}

// String returns the triple, e.g. "x86_64-Linux".
func (p Platform) String() string {
	return p.Arch + "-" + p.OS
}

// Parse splits "arch-OS" into a Platform, normalizing both halves.
func Parse(s string) Platform {
	arch, osName, found := strings.Cut(s, "-")
	if !found {
		return Platform{Arch: NormalizeArch(arch)}
	}
	return Platform{OS: NormalizeOS(osName), Arch: NormalizeArch(arch)}
}

// NormalizeOS maps GOOS style names to the capitalised form used in metadata.
func NormalizeOS(name string) string {
	switch strings.ToLower(name) {
	case "linux":
		return "Linux"
	case "darwin", "macos":
		return "Darwin"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	default:
		return name
	}
}

// NormalizeArch maps GOARCH style names to uname -m names.
func NormalizeArch(arch string) string {
	switch strings.ToLower(arch) {
	case "amd64", "x86_64", "x64":
		return "x86_64"
	case "arm64", "aarch64":
		return "aarch64"
	case "riscv64":
		return "riscv64"
	case "386", "i386", "i686", "x86":
		return "i686"
	case "loong64", "loongarch64":
		return "loongarch64"
	default:
		return arch
	}
}

// Expand replaces every {platform} placeholder in s with p's triple.
func (p Platform) Expand(s string) string {
	return strings.ReplaceAll(s, Placeholder, p.String())
}
