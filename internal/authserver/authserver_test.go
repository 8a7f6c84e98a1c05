package authserver

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/cryptoutil"
)

const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func zeroSecretB64() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func newPassthroughRegistry(t *testing.T) *config.Registry {
	t.Helper()
	f := &config.File{
		Server: config.Server{
			BindHost:    "0.0.0.0",
			BindPort:    8080,
			PublicURL:   "https://proxy.example.com",
			StateSecret: zeroSecretB64(),
		},
		Downstreams: []config.Downstream{
			{
				Name:             "linear",
				DisplayName:      "Linear",
				Strategy:         config.StrategyPassthrough,
				DownstreamURL:    "http://fake/linear",
				AuthHeaderFormat: "Bearer",
			},
		},
	}
	reg, err := config.NewRegistry(f)
	require.NoError(t, err)
	return reg
}

func newChainedRegistry(t *testing.T, idpAuthorizeURL, idpTokenURL string) *config.Registry {
	t.Helper()
	f := &config.File{
		Server: config.Server{
			BindHost:    "0.0.0.0",
			BindPort:    8080,
			PublicURL:   "https://proxy.example.com",
			StateSecret: zeroSecretB64(),
		},
		Downstreams: []config.Downstream{
			{
				Name:              "github",
				DisplayName:       "GitHub",
				Strategy:          config.StrategyChainedOAuth,
				DownstreamURL:     "http://fake/github",
				AuthHeaderFormat:  "Bearer",
				OAuthAuthorizeURL: idpAuthorizeURL,
				OAuthTokenURL:     idpTokenURL,
				OAuthClientID:     "client-id",
				OAuthClientSecret: "client-secret",
				OAuthScopes:       "repo",
				OAuthSupportsRefresh: true,
			},
		},
	}
	reg, err := config.NewRegistry(f)
	require.NoError(t, err)
	return reg
}

// TestScenarioA_PassthroughHappyPath covers spec §8 Scenario A end to end.
func TestScenarioA_PassthroughHappyPath(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)

	form := url.Values{
		"state":                 {"xyz"},
		"redirect_uri":          {"http://c/cb"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
		"token":                 {"SECRET"},
	}
	req := httptest.NewRequest(http.MethodPost, "/authorize/mcp/linear", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.AuthorizeSubmit(w, req, "linear")

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {testVerifier},
		"redirect_uri":  {"http://c/cb"},
		"client_id":     {"any"},
	}
	tokReq := httptest.NewRequest(http.MethodPost, "/token/mcp/linear", strings.NewReader(tokenForm.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokW := httptest.NewRecorder()

	s.Token(tokW, tokReq, "linear")

	require.Equal(t, http.StatusOK, tokW.Code)
	assert.JSONEq(t, `{"access_token":"SECRET","token_type":"Bearer"}`, tokW.Body.String())
}

// TestScenarioB_WrongVerifier covers spec §8 Scenario B.
func TestScenarioB_WrongVerifier(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)

	grant := &cryptoutil.Grant{
		DownstreamTokens: cryptoutil.NewPassthroughTokens("SECRET"),
		PKCEChallenge:    testChallenge,
		RedirectURI:      "http://c/cb",
		Exp:              time.Now().Unix() + 300,
	}
	code, err := cryptoutil.SealCode(grant, reg.StateSecret())
	require.NoError(t, err)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {"wrong"},
		"redirect_uri":  {"http://c/cb"},
	}
	req := httptest.NewRequest(http.MethodPost, "/token/mcp/linear", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.Token(w, req, "linear")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")
}

// TestScenarioC_ExpiredCode covers spec §8 Scenario C.
func TestScenarioC_ExpiredCode(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)
	s.now = func() time.Time { return time.Unix(1000, 0) }

	grant := &cryptoutil.Grant{
		DownstreamTokens: cryptoutil.NewPassthroughTokens("SECRET"),
		PKCEChallenge:    testChallenge,
		RedirectURI:      "http://c/cb",
		Exp:              1001,
	}
	code, err := cryptoutil.SealCode(grant, reg.StateSecret())
	require.NoError(t, err)

	s.now = func() time.Time { return time.Unix(2000, 0) }

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {testVerifier},
		"redirect_uri":  {"http://c/cb"},
	}
	req := httptest.NewRequest(http.MethodPost, "/token/mcp/linear", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.Token(w, req, "linear")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")
}

// TestDiscovery_PassthroughGrantTypes checks AS metadata advertises only the
// authorization_code grant for a passthrough downstream (spec §8 Scenario A
// discovery assertion).
func TestDiscovery_PassthroughGrantTypes(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server/mcp/linear", nil)
	w := httptest.NewRecorder()

	s.AuthorizationServerMetadata(w, req, "linear")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"grant_types_supported":["authorization_code"]`)
	assert.NotContains(t, w.Body.String(), "refresh_token")
}

// TestScenarioE_ChainedOAuth covers spec §8 Scenario E end to end.
func TestScenarioE_ChainedOAuth(t *testing.T) {
	var gotExchangeBody string
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotExchangeBody = string(buf)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600}`))
	}))
	defer idp.Close()

	reg := newChainedRegistry(t, "https://idp.example.com/authorize", idp.URL)
	s := New(reg, idp.Client())

	authReq := httptest.NewRequest(http.MethodGet, "/authorize/mcp/github?"+url.Values{
		"state":                 {"claude-state"},
		"redirect_uri":          {"http://claude/cb"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
		"response_type":         {"code"},
	}.Encode(), nil)
	authW := httptest.NewRecorder()

	s.Authorize(authW, authReq, "github")

	require.Equal(t, http.StatusFound, authW.Code)
	idpRedirect, err := url.Parse(authW.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", idpRedirect.Host)
	signedState := idpRedirect.Query().Get("state")
	require.NotEmpty(t, signedState)

	cbReq := httptest.NewRequest(http.MethodGet, "/callback/mcp/github?"+url.Values{
		"code":  {"xyz"},
		"state": {signedState},
	}.Encode(), nil)
	cbW := httptest.NewRecorder()

	s.Callback(cbW, cbReq, "github")

	require.Equal(t, http.StatusFound, cbW.Code)
	assert.Contains(t, gotExchangeBody, `"code":"xyz"`)

	claudeRedirect, err := url.Parse(cbW.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "http", claudeRedirect.Scheme)
	assert.Equal(t, "claude", claudeRedirect.Host)
	assert.Equal(t, "claude-state", claudeRedirect.Query().Get("state"))
	finalCode := claudeRedirect.Query().Get("code")
	require.NotEmpty(t, finalCode)

	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {finalCode},
		"code_verifier": {testVerifier},
		"redirect_uri":  {"http://claude/cb"},
	}
	tokReq := httptest.NewRequest(http.MethodPost, "/token/mcp/github", strings.NewReader(tokenForm.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokW := httptest.NewRecorder()

	s.Token(tokW, tokReq, "github")

	require.Equal(t, http.StatusOK, tokW.Code)
	assert.JSONEq(t, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"token_type":"Bearer"}`, tokW.Body.String())
}

// TestScenarioF_Refresh covers spec §8 Scenario F.
func TestScenarioF_Refresh(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"access_token":"new-at","token_type":"Bearer"}`))
	}))
	defer idp.Close()

	reg := newChainedRegistry(t, "https://idp.example.com/authorize", idp.URL)
	s := New(reg, idp.Client())

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt"}}
	req := httptest.NewRequest(http.MethodPost, "/token/mcp/github", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.Token(w, req, "github")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"access_token":"new-at","token_type":"Bearer"}`, w.Body.String())
}

func TestScenarioF_RefreshDownstream4xxIsInvalidGrant(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer idp.Close()

	reg := newChainedRegistry(t, "https://idp.example.com/authorize", idp.URL)
	s := New(reg, idp.Client())

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt"}}
	req := httptest.NewRequest(http.MethodPost, "/token/mcp/github", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.Token(w, req, "github")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")
}

func TestRefresh_RejectedForPassthroughDownstream(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt"}}
	req := httptest.NewRequest(http.MethodPost, "/token/mcp/linear", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.Token(w, req, "linear")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")
}

func TestAuthorize_UnknownPrefixIs404(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)

	req := httptest.NewRequest(http.MethodGet, "/authorize/mcp/nope", nil)
	w := httptest.NewRecorder()

	s.Authorize(w, req, "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthorize_RejectsBadResponseType(t *testing.T) {
	reg := newPassthroughRegistry(t)
	s := New(reg, http.DefaultClient)

	req := httptest.NewRequest(http.MethodGet, "/authorize/mcp/linear?"+url.Values{
		"state":                 {"xyz"},
		"redirect_uri":          {"http://c/cb"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
		"response_type":         {"token"},
	}.Encode(), nil)
	w := httptest.NewRecorder()

	s.Authorize(w, req, "linear")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
