// Package authserver implements the stateless OAuth 2.1 authorization
// server (spec §4.6): discovery metadata, authorize, third-party callback,
// token exchange, and refresh — one logical instance per downstream,
// disambiguated by path prefix.
package authserver

import (
	"net/http"
	"time"

	"github.com/aolkin/mcp-oauth-proxy/internal/config"
)

// Server holds the shared, immutable state every authorization-server
// handler needs: the validated registry, the outbound HTTP client used for
// chained-OAuth code exchange and refresh relay, and the discovery
// documents pre-rendered once at construction time.
type Server struct {
	registry              *config.Registry
	client                *http.Client
	now                   func() time.Time
	protectedResourceDocs map[string][]byte
	asMetadataDocs        map[string][]byte
}

// New returns a Server backed by registry, issuing outbound calls through
// client. client should be configured without a wall-clock request timeout
// (or a very long one) when it is also used for streaming MCP forwarding;
// see internal/networking for the split between the forwarding client and
// the chained-OAuth exchange client.
func New(registry *config.Registry, client *http.Client) *Server {
	protectedResource, as := buildDiscoveryDocs(registry)
	return &Server{
		registry:              registry,
		client:                client,
		now:                   time.Now,
		protectedResourceDocs: protectedResource,
		asMetadataDocs:        as,
	}
}

func (s *Server) nowUnix() int64 {
	return s.now().Unix()
}
