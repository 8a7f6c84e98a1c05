package authserver

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/cryptoutil"
	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
	"github.com/aolkin/mcp-oauth-proxy/internal/metrics"
)

var passthroughForm = template.Must(template.New("authorize").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.DisplayName}}</title></head>
<body>
<h1>{{.DisplayName}}</h1>
<p>{{.AuthHint}}</p>
<form method="POST">
<input type="hidden" name="state" value="{{.State}}">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
<input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
<label>Access token: <input type="password" name="token"></label>
<button type="submit">Authorize</button>
</form>
</body>
</html>
`))

type passthroughFormData struct {
	DisplayName          string
	AuthHint             string
	State                string
	RedirectURI          string
	CodeChallenge        string
	CodeChallengeMethod  string
}

// Authorize implements the GET /authorize/*path route (spec §4.6
// "Authorize (GET)"): it validates the OAuth request parameters, then
// either renders the passthrough credential form or redirects to the
// chained-OAuth IdP with a signed flow-state blob.
func (s *Server) Authorize(w http.ResponseWriter, r *http.Request, prefix string) {
	d, ok := s.registry.Lookup(prefix)
	if !ok {
		metrics.AuthorizeRequests.WithLabelValues(prefix, "not_found").Inc()
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	state := q.Get("state")
	redirectURI := q.Get("redirect_uri")
	challenge := q.Get("code_challenge")
	challengeMethod := q.Get("code_challenge_method")
	responseType := q.Get("response_type")

	if responseType != "code" {
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "bad_request").Inc()
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	if challengeMethod != "S256" {
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "bad_request").Inc()
		http.Error(w, "unsupported code_challenge_method", http.StatusBadRequest)
		return
	}
	if state == "" || redirectURI == "" || challenge == "" {
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "bad_request").Inc()
		http.Error(w, "missing required parameter", http.StatusBadRequest)
		return
	}

	switch d.Strategy {
	case config.StrategyPassthrough:
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "form").Inc()
		s.renderPassthroughForm(w, d, passthroughFormData{
			DisplayName:         d.DisplayName,
			AuthHint:            d.AuthHint,
			State:               state,
			RedirectURI:         redirectURI,
			CodeChallenge:       challenge,
			CodeChallengeMethod: challengeMethod,
		})
	case config.StrategyChainedOAuth:
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "redirect").Inc()
		s.redirectToIdP(w, r, prefix, d, state, redirectURI, challenge, challengeMethod)
	default:
		http.Error(w, "unknown strategy", http.StatusInternalServerError)
	}
}

func (s *Server) renderPassthroughForm(w http.ResponseWriter, d *config.Downstream, data passthroughFormData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := passthroughForm.Execute(w, data); err != nil {
		logger.Errorw("rendering passthrough authorize form", "downstream", d.Name, "error", err)
	}
}

func (s *Server) redirectToIdP(w http.ResponseWriter, r *http.Request, prefix string, d *config.Downstream,
	state, redirectURI, challenge, challengeMethod string) {
	flow := flowState{
		ClaudeState:       state,
		ClaudeRedirectURI: redirectURI,
		PKCEChallenge:     challenge,
		PKCEMethod:        challengeMethod,
		Exp:               s.nowUnix() + flowStateTTLSeconds,
	}

	signed, err := cryptoutil.SignState(flow, s.registry.StateSecret())
	if err != nil {
		logger.Errorw("signing flow state", "downstream", d.Name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	callbackURL := s.registry.PublicURL() + "/callback/mcp/" + prefix

	v := url.Values{}
	v.Set("client_id", d.OAuthClientID)
	v.Set("redirect_uri", callbackURL)
	v.Set("state", signed)
	v.Set("scope", d.OAuthScopes)
	v.Set("response_type", "code")

	http.Redirect(w, r, d.OAuthAuthorizeURL+"?"+v.Encode(), http.StatusFound)
}

// AuthorizeSubmit implements POST /authorize/*path (spec §4.6 "Authorize
// (POST, passthrough only)"): it accepts the submitted static credential,
// seals it into an authorization grant, and redirects back to the client.
func (s *Server) AuthorizeSubmit(w http.ResponseWriter, r *http.Request, prefix string) {
	d, ok := s.registry.Lookup(prefix)
	if !ok {
		metrics.AuthorizeRequests.WithLabelValues(prefix, "not_found").Inc()
		http.NotFound(w, r)
		return
	}
	if d.Strategy != config.StrategyPassthrough {
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "bad_request").Inc()
		http.Error(w, "authorize form submission not supported for this downstream", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "bad_request").Inc()
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	state := r.PostForm.Get("state")
	redirectURI := r.PostForm.Get("redirect_uri")
	challenge := r.PostForm.Get("code_challenge")
	token := r.PostForm.Get("token")

	if state == "" || redirectURI == "" || challenge == "" || token == "" {
		metrics.AuthorizeRequests.WithLabelValues(d.Name, "bad_request").Inc()
		http.Error(w, "missing required form field", http.StatusBadRequest)
		return
	}

	grant := &cryptoutil.Grant{
		DownstreamTokens: cryptoutil.NewPassthroughTokens(token),
		PKCEChallenge:    challenge,
		RedirectURI:      redirectURI,
		Exp:              s.nowUnix() + int64(s.registry.AuthCodeTTL().Seconds()),
	}

	sealed, err := cryptoutil.SealCode(grant, s.registry.StateSecret())
	if err != nil {
		logger.Errorw("sealing passthrough grant", "downstream", d.Name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.AuthorizeRequests.WithLabelValues(d.Name, "redirect").Inc()
	dest := redirectURI + "?code=" + url.QueryEscape(sealed) + "&state=" + url.QueryEscape(state)
	http.Redirect(w, r, dest, http.StatusFound)
}
