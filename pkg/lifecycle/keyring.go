package lifecycle

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/metadata"
	"github.com/pkgforge/soar/pkg/verify"
)

// ConfigKeyring serves the minisign keys fetched by sync into each repository directory.
type ConfigKeyring struct {
	cfg   *config.Config
	mu    sync.Mutex
	cache map[string]*verify.Verifier
}

var _ Keyring = (*ConfigKeyring)(nil)

// NewConfigKeyring creates a keyring for cfg's repositories.
func NewConfigKeyring(cfg *config.Config) *ConfigKeyring {
	return &ConfigKeyring{cfg: cfg, cache: make(map[string]*verify.Verifier)}
}

// Verifier returns nil when signature verification is disabled for repo.
// An enabled repository without a synced key is an error.
func (k *ConfigKeyring) Verifier(repo string) (*verify.Verifier, error) {
	if repo == config.LocalRepositoryName || !k.cfg.SignatureVerification(repo) {
		return nil, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if v, ok := k.cache[repo]; ok {
		return v, nil
	}
	path := filepath.Join(k.cfg.RepositoryDir(repo), metadata.PubKeyFile)
	v, err := verify.LoadPublicKey(path)
	if err != nil {
		return nil, fmt.Errorf("%w: no usable public key for %s (run sync): %w", errors.ErrSignatureInvalid, repo, err)
	}
	k.cache[repo] = v
	return v, nil
}
