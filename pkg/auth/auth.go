// Package auth applies per-repository credentials to outgoing HTTP requests.
package auth

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Authenticator defines the interface for applying authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	BasicAuthType  Type = "basic"
	HeaderAuthType Type = "header"
	BearerAuthType Type = "bearer"
)

// BasicAuth represents HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds Basic Authentication headers to the HTTP request.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Type returns BasicAuthType.
func (b BasicAuth) Type() Type { return BasicAuthType }

// HeaderAuth sets arbitrary headers, e.g. an API key.
type HeaderAuth struct {
	Headers map[string]string
}

// Apply adds custom headers to the HTTP request.
func (h HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// Type returns HeaderAuthType.
func (h HeaderAuth) Type() Type { return HeaderAuthType }

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply adds a Bearer token to the Authorization header of the HTTP request.
func (b BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b BearerAuth) Type() Type { return BearerAuthType }

// Registry maps URL prefixes to authenticators. The longest matching prefix
// wins, so credentials configured for one repository never leak to a
// redirect target on another host.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	prefix string
	auth   Authenticator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a for every URL starting with prefix. Query strings and
// fragments on prefix are ignored.
func (r *Registry) Add(prefix string, a Authenticator) {
	if a == nil || prefix == "" {
		return
	}
	if u, err := url.Parse(prefix); err == nil {
		u.RawQuery, u.Fragment = "", ""
		prefix = u.String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{prefix: prefix, auth: a})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return len(r.entries[i].prefix) > len(r.entries[j].prefix)
	})
}

// For returns the authenticator for u, or nil.
func (r *Registry) For(u *url.URL) Authenticator {
	if r == nil || u == nil {
		return nil
	}
	s := u.String()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if strings.HasPrefix(s, e.prefix) {
			return e.auth
		}
	}
	return nil
}

// Transport is an http.RoundTripper that authenticates requests using a Registry.
type Transport struct {
	Base     http.RoundTripper
	Registry *Registry
}

// RoundTrip applies the matching authenticator to a clone of req.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	a := t.Registry.For(req.URL)
	if a == nil {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	if err := a.Apply(clone); err != nil {
		return nil, err
	}
	return base.RoundTrip(clone)
}
