package authserver

// flowState is the signed payload carried through a third-party IdP during
// the chained-OAuth flow (spec §3 "Chained-OAuth flow state"). It re-binds
// the callback to the client's original authorize request.
type flowState struct {
	ClaudeState        string `json:"claude_state"`
	ClaudeRedirectURI  string `json:"claude_redirect_uri"`
	PKCEChallenge      string `json:"pkce_challenge"`
	PKCEMethod         string `json:"pkce_method"`
	Exp                int64  `json:"exp"`
}

// ExpiresAt satisfies the expiry interface cryptoutil.VerifyState looks for.
func (f flowState) ExpiresAt() int64 { return f.Exp }

// flowStateTTLSeconds is the recommended lifetime for flow-state blobs
// (spec §3: "now + 600s recommended").
const flowStateTTLSeconds = 600
