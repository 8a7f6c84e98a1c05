package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
	"github.com/aolkin/mcp-oauth-proxy/internal/networking"
)

// MinStateSecretBytes is the minimum decoded length required for
// Server.StateSecret, per OWASP/NIST guidance on symmetric key sizes.
const MinStateSecretBytes = 32

// DefaultAuthCodeTTL is applied when Server.AuthCodeTTLSeconds is zero.
const DefaultAuthCodeTTL = 300 * time.Second

var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Registry is the validated, immutable view of a loaded configuration.
// It is safe for concurrent use by every request-handling goroutine.
type Registry struct {
	server       Server
	stateSecret  []byte
	authCodeTTL  time.Duration
	publicURL    string
	downstreams  map[string]*Downstream
}

// NewRegistry validates f and, on success, returns an immutable Registry.
// It fails fast with a descriptive error on any invariant violation in
// spec §4.5: duplicate names, invalid name pattern, an undersized secret,
// or a chained-OAuth entry missing a required field.
func NewRegistry(f *File) (*Registry, error) {
	logger.Debugw("validating registry configuration", "downstreamCount", len(f.Downstreams))

	secret, err := base64.StdEncoding.DecodeString(f.Server.StateSecret)
	if err != nil {
		return nil, fmt.Errorf("server.state_secret: invalid base64: %w", err)
	}
	if len(secret) < MinStateSecretBytes {
		return nil, fmt.Errorf("server.state_secret: decoded length %d is below the required minimum of %d bytes",
			len(secret), MinStateSecretBytes)
	}

	publicURL := f.Server.PublicURL
	if parsed, err := url.Parse(publicURL); err != nil {
		return nil, fmt.Errorf("server.public_url: %w", err)
	} else if parsed.Scheme != "https" {
		logger.Warnw("server.public_url does not use https; acceptable for local development only",
			"public_url", publicURL)
	}

	ttl := DefaultAuthCodeTTL
	if f.Server.AuthCodeTTLSeconds > 0 {
		ttl = time.Duration(f.Server.AuthCodeTTLSeconds) * time.Second
	}

	downstreams := make(map[string]*Downstream, len(f.Downstreams))
	for i := range f.Downstreams {
		d := f.Downstreams[i]
		if err := validateDownstream(&d); err != nil {
			return nil, fmt.Errorf("downstream[%d] (%q): %w", i, d.Name, err)
		}
		if _, exists := downstreams[d.Name]; exists {
			return nil, fmt.Errorf("downstream[%d]: duplicate name %q", i, d.Name)
		}
		downstreams[d.Name] = &d
	}

	logger.Debugw("registry configuration validated", "downstreamCount", len(downstreams), "publicURL", publicURL)

	return &Registry{
		server:      f.Server,
		stateSecret: secret,
		authCodeTTL: ttl,
		publicURL:   publicURL,
		downstreams: downstreams,
	}, nil
}

func validateDownstream(d *Downstream) error {
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("name must match %s", namePattern.String())
	}
	if err := networking.ValidateEndpointURL(d.DownstreamURL); err != nil {
		return fmt.Errorf("downstream_url: %w", err)
	}

	switch d.Strategy {
	case StrategyPassthrough:
		// auth_hint is optional help text; nothing else required.
	case StrategyChainedOAuth:
		required := map[string]string{
			"oauth_authorize_url": d.OAuthAuthorizeURL,
			"oauth_token_url":     d.OAuthTokenURL,
			"oauth_client_id":     d.OAuthClientID,
			"oauth_client_secret": d.OAuthClientSecret,
		}
		for field, val := range required {
			if val == "" {
				return fmt.Errorf("chained_oauth downstream missing required field %q", field)
			}
		}
		if err := networking.ValidateEndpointURL(d.OAuthAuthorizeURL); err != nil {
			return fmt.Errorf("oauth_authorize_url: %w", err)
		}
		if err := networking.ValidateEndpointURL(d.OAuthTokenURL); err != nil {
			return fmt.Errorf("oauth_token_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown strategy %q", d.Strategy)
	}

	return nil
}

// Lookup returns the downstream definition registered under pathSuffix, or
// (nil, false) if no such downstream exists. The caller must respond 404.
func (r *Registry) Lookup(pathSuffix string) (*Downstream, bool) {
	d, ok := r.downstreams[pathSuffix]
	return d, ok
}

// Downstreams returns every registered downstream definition. The caller
// must not mutate the returned definitions; used at startup to pre-render
// per-downstream discovery documents once (spec §3 "Well-known cache-control").
func (r *Registry) Downstreams() []*Downstream {
	all := make([]*Downstream, 0, len(r.downstreams))
	for _, d := range r.downstreams {
		all = append(all, d)
	}
	return all
}

// StateSecret returns the decoded server secret shared by the authenticated
// code codec and the state codec.
func (r *Registry) StateSecret() []byte {
	return r.stateSecret
}

// AuthCodeTTL returns the configured lifetime of a sealed authorization code.
func (r *Registry) AuthCodeTTL() time.Duration {
	return r.authCodeTTL
}

// PublicURL returns the server's externally-reachable base URL, no trailing slash.
func (r *Registry) PublicURL() string {
	return r.publicURL
}

// BindAddr returns the host:port the HTTP listener should bind to.
func (r *Registry) BindAddr() string {
	return fmt.Sprintf("%s:%d", r.server.BindHost, r.server.BindPort)
}
