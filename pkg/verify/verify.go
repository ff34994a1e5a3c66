// Package verify checks downloaded payloads: BLAKE3 checksums and detached
// minisign signatures.
package verify

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/jedisct1/go-minisign"
	"lukechampine.com/blake3"

	"github.com/pkgforge/soar/pkg/errors"
)

// SignatureSuffix is appended to a download URL to locate its detached signature.
const SignatureSuffix = ".sig"

// NewHasher returns a 256-bit BLAKE3 hash.
func NewHasher() hash.Hash {
	return blake3.New(32, nil)
}

// HashReader returns the hex BLAKE3 digest of r.
func HashReader(r io.Reader) (string, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the hex BLAKE3 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Filesystem(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()
	return HashReader(f)
}

// Checksum compares the file's digest against want, ignoring case. An empty
// want skips the check and reports the computed digest.
func Checksum(path, want string) (string, error) {
	got, err := HashFile(path)
	if err != nil {
		return "", err
	}
	if want != "" && !strings.EqualFold(strings.TrimSpace(want), got) {
		return got, errors.ErrChecksumMismatchWithDetails(path, want, got)
	}
	return got, nil
}

// Verifier checks minisign signatures against one public key.
type Verifier struct {
	key minisign.PublicKey
}

// ParsePublicKey accepts either a bare base64 key or the content of a
// minisign.pub file with its untrusted comment line.
func ParsePublicKey(content string) (*Verifier, error) {
	var line string
	for _, l := range strings.Split(content, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "untrusted comment:") {
			continue
		}
		line = l
	}
	if line == "" {
		return nil, fmt.Errorf("%w: empty public key", errors.ErrSignatureInvalid)
	}
	key, err := minisign.NewPublicKey(line)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %w", errors.ErrSignatureInvalid, err)
	}
	return &Verifier{key: key}, nil
}

// LoadPublicKey reads a minisign.pub file.
func LoadPublicKey(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Filesystem(err, "read public key %s", path)
	}
	return ParsePublicKey(string(data))
}

// Verify checks signature (the content of a .minisig/.sig file) over data.
func (v *Verifier) Verify(data []byte, signature string) error {
	sig, err := minisign.DecodeSignature(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("%w: decode signature: %w", errors.ErrSignatureInvalid, err)
	}
	ok, err := v.key.Verify(data, sig)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSignatureInvalid, err)
	}
	if !ok {
		return errors.ErrSignatureInvalid
	}
	return nil
}

// VerifyFile checks the signature file sigPath over the file at path.
func (v *Verifier) VerifyFile(path, sigPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Filesystem(err, "read %s", path)
	}
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return errors.Filesystem(err, "read signature %s", sigPath)
	}
	return v.Verify(data, string(sig))
}
