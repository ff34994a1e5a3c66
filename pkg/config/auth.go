package config

import (
	"net/url"
	"os"

	"github.com/pkgforge/soar/pkg/auth"
	"github.com/pkgforge/soar/pkg/platform"
)

// AuthConfig holds the credentials used for one repository. Exactly one of
// the methods is expected to be set; values undergo environment expansion so
// secrets can stay out of the file.
type AuthConfig struct {
	BasicAuth  *BasicAuth  `yaml:"basic,omitempty"`
	HeaderAuth *HeaderAuth `yaml:"header,omitempty"`
	BearerAuth *BearerAuth `yaml:"bearer,omitempty"`

	// Prefixes lists extra URL prefixes (e.g. a download host) that receive
	// the same credentials as the repository's metadata URL.
	Prefixes []string `yaml:"prefixes,omitempty"`
}

// BasicAuth holds configuration for HTTP Basic Authentication.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HeaderAuth holds configuration for custom header-based authentication.
type HeaderAuth struct {
	Headers map[string]string `yaml:"headers"`
}

// BearerAuth holds configuration for Bearer token authentication.
type BearerAuth struct {
	Token string `yaml:"token"`
}

// ToAuthenticator converts the BasicAuth configuration to an Authenticator.
func (b *BasicAuth) ToAuthenticator() auth.Authenticator {
	return &auth.BasicAuth{
		Username: os.ExpandEnv(b.Username),
		Password: os.ExpandEnv(b.Password),
	}
}

// ToAuthenticator converts the HeaderAuth configuration to an Authenticator.
func (h *HeaderAuth) ToAuthenticator() auth.Authenticator {
	headers := make(map[string]string, len(h.Headers))
	for k, v := range h.Headers {
		headers[k] = os.ExpandEnv(v)
	}
	return &auth.HeaderAuth{Headers: headers}
}

// ToAuthenticator converts the BearerAuth configuration to an Authenticator.
func (b *BearerAuth) ToAuthenticator() auth.Authenticator {
	return &auth.BearerAuth{Token: os.ExpandEnv(b.Token)}
}

// Authenticator returns the configured method, or nil.
func (a *AuthConfig) Authenticator() auth.Authenticator {
	switch {
	case a == nil:
		return nil
	case a.BasicAuth != nil:
		return a.BasicAuth.ToAuthenticator()
	case a.HeaderAuth != nil:
		return a.HeaderAuth.ToAuthenticator()
	case a.BearerAuth != nil:
		return a.BearerAuth.ToAuthenticator()
	default:
		return nil
	}
}

// AuthRegistry maps each authenticated repository's origin, plus its extra
// prefixes, to its credentials.
func (c *Config) AuthRegistry(p platform.Platform) *auth.Registry {
	reg := auth.NewRegistry()
	for _, repo := range c.Repositories {
		a := repo.Auth.Authenticator()
		if a == nil {
			continue
		}
		if u, err := url.Parse(repo.ResolvedURL(p)); err == nil && u.Host != "" {
			reg.Add(u.Scheme+"://"+u.Host+"/", a)
		}
		for _, prefix := range repo.Auth.Prefixes {
			reg.Add(prefix, a)
		}
	}
	return reg
}
