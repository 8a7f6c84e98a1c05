package authserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/cryptoutil"
	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
	"github.com/aolkin/mcp-oauth-proxy/internal/metrics"
)

// tokenErrorResponse is the RFC 6749 §5.2 error shape every failure at the
// token endpoint returns.
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type accessTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Token implements the POST /token/*path route (spec §4.6 "Token
// exchange"): it dispatches on grant_type between authorization_code
// redemption and chained-OAuth refresh relay.
func (s *Server) Token(w http.ResponseWriter, r *http.Request, prefix string) {
	d, ok := s.registry.Lookup(prefix)
	if !ok {
		metrics.TokenRequests.WithLabelValues(prefix, "unknown", "invalid_grant").Inc()
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		metrics.TokenRequests.WithLabelValues(d.Name, "unknown", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	grantType := r.PostForm.Get("grant_type")
	switch grantType {
	case "authorization_code":
		s.exchangeAuthorizationCode(w, r, d)
	case "refresh_token":
		s.refreshToken(w, r, d)
	default:
		metrics.TokenRequests.WithLabelValues(d.Name, "unknown", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token")
	}
}

// exchangeAuthorizationCode implements spec §4.6's authorization_code
// branch: open the sealed code, verify the redirect_uri binding and PKCE
// proof, and mint a bearer access token response.
func (s *Server) exchangeAuthorizationCode(w http.ResponseWriter, r *http.Request, d *config.Downstream) {
	code := r.PostForm.Get("code")
	redirectURI := r.PostForm.Get("redirect_uri")
	verifier := r.PostForm.Get("code_verifier")

	if code == "" || redirectURI == "" || verifier == "" {
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "missing required parameter")
		return
	}

	grant, err := cryptoutil.OpenCode(code, s.registry.StateSecret(), s.nowUnix())
	if err != nil {
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "authorization code is invalid or expired")
		return
	}

	if grant.RedirectURI != redirectURI {
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match the authorization request")
		return
	}

	if !cryptoutil.VerifyPKCE(verifier, grant.PKCEChallenge) {
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match the original challenge")
		return
	}

	resp := accessTokenResponse{
		AccessToken: grant.DownstreamTokens.AccessToken,
		TokenType:   "Bearer",
	}
	if grant.DownstreamTokens.Kind == cryptoutil.TokenKindChainedOAuth {
		resp.ExpiresIn = grant.DownstreamTokens.ExpiresIn
		resp.RefreshToken = grant.DownstreamTokens.RefreshToken
	}

	logger.Debugw("issued access token", "downstream", d.Name, "kind", grant.DownstreamTokens.Kind)
	metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "success").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeTokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tokenErrorResponse{Error: code, ErrorDescription: description})
}

// refreshToken implements spec §4.6's refresh_token branch: pure relay of a
// form-encoded POST to the downstream's oauth_token_url.
func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request, d *config.Downstream) {
	if !d.IsChainedOAuth() {
		metrics.TokenRequests.WithLabelValues(d.Name, "refresh_token", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Refresh token invalid or expired. User must re-authorize.")
		return
	}

	refreshTok := r.PostForm.Get("refresh_token")
	if refreshTok == "" {
		metrics.TokenRequests.WithLabelValues(d.Name, "refresh_token", "invalid_grant").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Refresh token invalid or expired. User must re-authorize.")
		return
	}

	v := url.Values{}
	v.Set("grant_type", "refresh_token")
	v.Set("refresh_token", refreshTok)
	v.Set("client_id", d.OAuthClientID)
	v.Set("client_secret", d.OAuthClientSecret)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, d.OAuthTokenURL, strings.NewReader(v.Encode()))
	if err != nil {
		logger.Errorw("building refresh request", "downstream", d.Name, "error", err)
		metrics.TokenRequests.WithLabelValues(d.Name, "refresh_token", "bad_gateway").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Refresh token invalid or expired. User must re-authorize.")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warnw("refresh relay unreachable", "downstream", d.Name, "error", err)
		metrics.TokenRequests.WithLabelValues(d.Name, "refresh_token", "bad_gateway").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Refresh token invalid or expired. User must re-authorize.")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnw("refresh relay returned non-2xx", "downstream", d.Name, "status", resp.StatusCode)
		metrics.TokenRequests.WithLabelValues(d.Name, "refresh_token", "bad_gateway").Inc()
		writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Refresh token invalid or expired. User must re-authorize.")
		return
	}

	metrics.TokenRequests.WithLabelValues(d.Name, "refresh_token", "success").Inc()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Warnw("writing refresh response to client", "downstream", d.Name, "error", err)
	}
}
