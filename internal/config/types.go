// Package config loads and validates the proxy's static configuration: the
// server-wide settings and the set of downstream MCP definitions keyed by
// path segment.
package config

// Strategy identifies how a downstream's credentials are obtained.
type Strategy string

const (
	// StrategyPassthrough treats a user-supplied static credential as the
	// downstream access token.
	StrategyPassthrough Strategy = "passthrough"
	// StrategyChainedOAuth performs a full OAuth 2.0 code flow against a
	// third-party identity provider and relays its tokens to the client.
	StrategyChainedOAuth Strategy = "chained_oauth"
)

// HeaderFormat is the enumerated set of well-known auth header renderings.
// Any value outside this set is treated as a literal header name carrying
// the bare credential (see internal/proxy.RemapHeader).
type HeaderFormat string

const (
	HeaderFormatBearer HeaderFormat = "Bearer"
	HeaderFormatToken  HeaderFormat = "token"
	HeaderFormatBasic  HeaderFormat = "Basic"
)

// Downstream is the immutable record describing one proxied MCP server.
type Downstream struct {
	// Name is the path segment identifying this downstream, e.g. "github".
	// Must match [a-z0-9-]+ and be unique across the registry.
	Name string `toml:"name"`

	// DisplayName is the human label shown on the passthrough authorize form.
	DisplayName string `toml:"display_name"`

	// Strategy selects how credentials are obtained for this downstream.
	Strategy Strategy `toml:"strategy"`

	// DownstreamURL is the absolute URL of the MCP endpoint being proxied.
	DownstreamURL string `toml:"downstream_url"`

	// AuthHeaderFormat selects how the client's bearer credential is
	// translated into the header the downstream expects.
	AuthHeaderFormat string `toml:"auth_header_format"`

	// Scopes is the advertised OAuth scopes string for this downstream
	// (may be empty).
	Scopes string `toml:"scopes"`

	// AuthHint is passthrough-only help text shown on the authorize form.
	AuthHint string `toml:"auth_hint"`

	// OAuthAuthorizeURL is the third-party IdP's authorization endpoint.
	// Chained-OAuth only.
	OAuthAuthorizeURL string `toml:"oauth_authorize_url"`

	// OAuthTokenURL is the third-party IdP's token endpoint. Chained-OAuth only.
	OAuthTokenURL string `toml:"oauth_token_url"`

	// OAuthClientID is this proxy's client identifier at the third-party IdP.
	// Chained-OAuth only.
	OAuthClientID string `toml:"oauth_client_id"`

	// OAuthClientSecret is this proxy's client secret at the third-party IdP.
	// Chained-OAuth only. May be overridden by environment variable.
	OAuthClientSecret string `toml:"oauth_client_secret"`

	// OAuthScopes is the scope string requested from the third-party IdP.
	// Chained-OAuth only.
	OAuthScopes string `toml:"oauth_scopes"`

	// OAuthSupportsRefresh indicates whether the third-party IdP issues and
	// honors refresh tokens. Chained-OAuth only.
	OAuthSupportsRefresh bool `toml:"oauth_supports_refresh"`

	// OAuthTokenAccept is the Accept header sent during code exchange, since
	// IdPs vary in what content type they require. Chained-OAuth only.
	OAuthTokenAccept string `toml:"oauth_token_accept"`
}

// IsChainedOAuth reports whether d uses the chained-OAuth strategy.
func (d *Downstream) IsChainedOAuth() bool {
	return d.Strategy == StrategyChainedOAuth
}

// Server holds the process-wide listener and cryptographic settings.
type Server struct {
	// BindHost is the interface the HTTP listener binds to.
	BindHost string `toml:"bind_host"`

	// BindPort is the TCP port the HTTP listener binds to.
	BindPort int `toml:"bind_port"`

	// PublicURL is this proxy's externally-reachable base URL, with no
	// trailing slash. Used to compute discovery-document and redirect URLs.
	PublicURL string `toml:"public_url"`

	// StateSecret is the base64-encoded server secret. Decoded, it must be
	// at least 32 bytes; it seeds both the authorization-code AEAD key and
	// the flow-state HMAC key. May be overridden by environment variable.
	StateSecret string `toml:"state_secret"`

	// AuthCodeTTLSeconds is how long a sealed authorization code remains
	// redeemable. Defaults to 300 seconds (5 minutes) if zero.
	AuthCodeTTLSeconds int `toml:"auth_code_ttl"`
}

// File is the top-level shape of the TOML configuration file.
type File struct {
	Server      Server       `toml:"server"`
	Downstreams []Downstream `toml:"downstream"`
}
