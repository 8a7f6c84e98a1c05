package cryptoutil

// TokenKind discriminates the tagged union of downstream credentials carried
// inside a sealed authorization Grant.
type TokenKind string

const (
	// TokenKindPassthrough carries a single static access token supplied by
	// the user at the passthrough authorize form.
	TokenKindPassthrough TokenKind = "passthrough"
	// TokenKindChainedOAuth carries tokens obtained from a third-party IdP
	// during the chained-OAuth code exchange.
	TokenKindChainedOAuth TokenKind = "chained_oauth"
)

// DownstreamTokens is the tagged union described in spec §3: either a
// Passthrough{access_token} or a ChainedOAuth{access_token, refresh_token?,
// expires_in?}.
type DownstreamTokens struct {
	Kind         TokenKind `json:"kind"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
}

// NewPassthroughTokens builds the Passthrough variant of DownstreamTokens.
func NewPassthroughTokens(accessToken string) DownstreamTokens {
	return DownstreamTokens{Kind: TokenKindPassthrough, AccessToken: accessToken}
}

// NewChainedOAuthTokens builds the ChainedOAuth variant of DownstreamTokens.
func NewChainedOAuthTokens(accessToken, refreshToken string, expiresIn int) DownstreamTokens {
	return DownstreamTokens{
		Kind:         TokenKindChainedOAuth,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}
}

// Grant is the full payload that gets AEAD-sealed into an authorization
// code. It is self-describing: expiry is embedded, so redemption requires
// no server-side lookup.
type Grant struct {
	DownstreamTokens DownstreamTokens `json:"downstream_tokens"`
	PKCEChallenge    string           `json:"pkce_challenge"`
	RedirectURI      string           `json:"redirect_uri"`
	Exp              int64            `json:"exp"`
}
