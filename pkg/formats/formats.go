// Package formats identifies portable package payloads and implements the
// per-format staging and integration steps.
package formats

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/pkgforge/soar/pkg/archive"
	"github.com/pkgforge/soar/pkg/errors"
)

// PackageKind names a payload format.
type PackageKind string

const (
	KindStatic    PackageKind = "static"
	KindAppImage  PackageKind = "appimage"
	KindFlatImage PackageKind = "flatimage"
	KindRunImage  PackageKind = "runimage"
	KindArchive   PackageKind = "archive"
)

var (
	elfMagic       = []byte{0x7f, 'E', 'L', 'F'}
	appImageMagic  = []byte{'A', 'I', 0x02, 0x00}
	flatImageMagic = []byte{'F', 'I', 0x01, 0x00}
	runImageMagic  = []byte{'R', 'I', 0x02, 0x00}
)

// image formats carry their type marker at offset 8 of the ELF header padding
const imageMagicOffset = 8

// IsELF reports whether the file at path starts with the ELF magic.
func IsELF(path string) bool {
	head, err := readHead(path, len(elfMagic))
	return err == nil && bytes.Equal(head, elfMagic)
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

// Detect inspects the payload at path. Image formats are recognised by their
// marker, archives by mholt/archives identification, and anything else
// (plain ELF binaries, scripts) is treated as a static binary.
func Detect(ctx context.Context, path string, am *archive.Manager) (PackageKind, error) {
	head, err := readHead(path, imageMagicOffset+4)
	if err != nil {
		return "", errors.Filesystem(err, "read %s", path)
	}
	if len(head) == imageMagicOffset+4 && bytes.Equal(head[:4], elfMagic) {
		switch marker := head[imageMagicOffset:]; {
		case bytes.Equal(marker, appImageMagic):
			return KindAppImage, nil
		case bytes.Equal(marker, flatImageMagic):
			return KindFlatImage, nil
		case bytes.Equal(marker, runImageMagic):
			return KindRunImage, nil
		}
		return KindStatic, nil
	}
	if am != nil && am.IsArchive(ctx, path) {
		return KindArchive, nil
	}
	return KindStatic, nil
}

// For returns the implementation of k.
func For(k PackageKind, am *archive.Manager) Kind {
	switch k {
	case KindAppImage:
		return &appImage{binary{kind: KindAppImage}}
	case KindRunImage:
		return &appImage{binary{kind: KindRunImage}}
	case KindFlatImage:
		return &flatImage{binary{kind: KindFlatImage}}
	case KindArchive:
		if am == nil {
			am = archive.NewManager()
		}
		return &archiveKind{am: am}
	default:
		return &binary{kind: KindStatic}
	}
}
