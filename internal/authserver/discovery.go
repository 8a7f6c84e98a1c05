package authserver

import (
	"encoding/json"
	"net/http"

	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
)

// protectedResourceMetadata is the RFC 9728 document served at
// /.well-known/oauth-protected-resource/mcp/<prefix>.
type protectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
}

// asMetadata is the RFC 8414 authorization-server metadata document served
// at /.well-known/oauth-authorization-server/mcp/<prefix>.
type asMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// buildDiscoveryDocs marshals every downstream's discovery documents once,
// at construction time, since they are immutable for the process lifetime
// (spec §3 "Well-known cache-control"). The handlers below only ever serve
// these pre-rendered bytes.
func buildDiscoveryDocs(registry *config.Registry) (protectedResource map[string][]byte, as map[string][]byte) {
	protectedResource = make(map[string][]byte, len(registry.Downstreams()))
	as = make(map[string][]byte, len(registry.Downstreams()))

	base := registry.PublicURL()
	for _, d := range registry.Downstreams() {
		resourceURL := base + "/mcp/" + d.Name

		prDoc := protectedResourceMetadata{
			Resource:             resourceURL,
			AuthorizationServers: []string{resourceURL},
		}
		if encoded, err := json.Marshal(prDoc); err == nil {
			protectedResource[d.Name] = encoded
		} else {
			logger.Errorw("marshaling protected-resource metadata", "downstream", d.Name, "error", err)
		}

		grantTypes := []string{"authorization_code"}
		if d.IsChainedOAuth() {
			grantTypes = append(grantTypes, "refresh_token")
		}
		asDoc := asMetadata{
			Issuer:                            resourceURL,
			AuthorizationEndpoint:             base + "/authorize/mcp/" + d.Name,
			TokenEndpoint:                     base + "/token/mcp/" + d.Name,
			ResponseTypesSupported:            []string{"code"},
			GrantTypesSupported:               grantTypes,
			CodeChallengeMethodsSupported:     []string{"S256"},
			TokenEndpointAuthMethodsSupported: []string{"none"},
		}
		if encoded, err := json.Marshal(asDoc); err == nil {
			as[d.Name] = encoded
		} else {
			logger.Errorw("marshaling authorization-server metadata", "downstream", d.Name, "error", err)
		}
	}

	return protectedResource, as
}

// ProtectedResourceMetadata implements spec §4.6 Discovery (protected
// resource variant), serving the document pre-rendered at construction time.
func (s *Server) ProtectedResourceMetadata(w http.ResponseWriter, r *http.Request, prefix string) {
	doc, ok := s.protectedResourceDocs[prefix]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeBytes(w, http.StatusOK, doc)
}

// AuthorizationServerMetadata implements spec §4.6 Discovery (AS variant),
// serving the document pre-rendered at construction time.
func (s *Server) AuthorizationServerMetadata(w http.ResponseWriter, r *http.Request, prefix string) {
	doc, ok := s.asMetadataDocs[prefix]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeBytes(w, http.StatusOK, doc)
}

func writeBytes(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
