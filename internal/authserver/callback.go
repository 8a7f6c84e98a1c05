package authserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/aolkin/mcp-oauth-proxy/internal/cryptoutil"
	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
	"github.com/aolkin/mcp-oauth-proxy/internal/metrics"
)

// exchangeRequest is the JSON body POSTed to a chained-OAuth downstream's
// token endpoint during the callback code exchange (spec §4.6 "Callback").
type exchangeRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
}

// exchangeResponse captures the subset of a third-party token response this
// proxy understands, tolerating providers that omit refresh_token or
// expires_in.
type exchangeResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Callback implements the GET /callback/*path route (spec §4.6 "Callback
// (chained-OAuth only)"): it verifies the signed flow state, exchanges the
// IdP's code for downstream tokens, seals a grant, and redirects back to
// the client's original redirect_uri.
func (s *Server) Callback(w http.ResponseWriter, r *http.Request, prefix string) {
	d, ok := s.registry.Lookup(prefix)
	if !ok {
		metrics.TokenRequests.WithLabelValues(prefix, "authorization_code", "invalid_grant").Inc()
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	idpCode := q.Get("code")
	signedState := q.Get("state")
	if idpCode == "" || signedState == "" {
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "invalid_grant").Inc()
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	var flow flowState
	if err := cryptoutil.VerifyState(signedState, s.registry.StateSecret(), s.nowUnix(), &flow); err != nil {
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "invalid_grant").Inc()
		http.Error(w, "invalid_state", http.StatusBadRequest)
		return
	}

	callbackURL := s.registry.PublicURL() + "/callback/mcp/" + prefix
	body, err := json.Marshal(exchangeRequest{
		ClientID:     d.OAuthClientID,
		ClientSecret: d.OAuthClientSecret,
		Code:         idpCode,
		RedirectURI:  callbackURL,
	})
	if err != nil {
		logger.Errorw("marshaling code exchange request", "downstream", d.Name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, d.OAuthTokenURL, bytes.NewReader(body))
	if err != nil {
		logger.Errorw("building code exchange request", "downstream", d.Name, "error", err)
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "bad_gateway").Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	accept := d.OAuthTokenAccept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warnw("chained-oauth code exchange unreachable", "downstream", d.Name, "error", err)
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "bad_gateway").Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnw("chained-oauth code exchange returned non-2xx", "downstream", d.Name, "status", resp.StatusCode)
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "bad_gateway").Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	var exch exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&exch); err != nil {
		logger.Warnw("chained-oauth code exchange returned malformed body", "downstream", d.Name, "error", err)
		metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "bad_gateway").Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	grant := &cryptoutil.Grant{
		DownstreamTokens: cryptoutil.NewChainedOAuthTokens(exch.AccessToken, exch.RefreshToken, exch.ExpiresIn),
		PKCEChallenge:    flow.PKCEChallenge,
		RedirectURI:      flow.ClaudeRedirectURI,
		Exp:              s.nowUnix() + int64(s.registry.AuthCodeTTL().Seconds()),
	}

	sealed, err := cryptoutil.SealCode(grant, s.registry.StateSecret())
	if err != nil {
		logger.Errorw("sealing chained-oauth grant", "downstream", d.Name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.TokenRequests.WithLabelValues(d.Name, "authorization_code", "success").Inc()
	dest := flow.ClaudeRedirectURI + "?code=" + url.QueryEscape(sealed) + "&state=" + url.QueryEscape(flow.ClaudeState)
	http.Redirect(w, r, dest, http.StatusFound)
}
