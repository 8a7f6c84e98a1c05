// Package httpapi assembles the proxy's full HTTP surface (spec §6): the
// discovery, authorization-server, and MCP-forwarding routes, each keyed by
// a path prefix that the configuration registry resolves to a downstream
// definition, plus ambient health and metrics endpoints.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aolkin/mcp-oauth-proxy/internal/authserver"
	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/mcpforward"
	"github.com/aolkin/mcp-oauth-proxy/internal/metrics"
)

const middlewareTimeout = 60 * time.Second

// NewRouter builds the top-level chi.Router mounting every route in spec §6
// against registry, dispatching authorization-server operations to auth and
// MCP traffic to forwarder.
func NewRouter(registry *config.Registry, auth *authserver.Server, forwarder *mcpforward.Forwarder) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	mount := &dispatchRoutes{registry: registry, auth: auth, forwarder: forwarder}

	r.Get("/.well-known/oauth-protected-resource/*", mount.protectedResourceMetadata)
	r.Get("/.well-known/oauth-authorization-server/*", mount.authorizationServerMetadata)
	r.Get("/authorize/*", mount.authorize)
	r.Post("/authorize/*", mount.authorizeSubmit)
	r.Get("/callback/*", mount.callback)
	r.Post("/token/*", mount.token)
	r.Get("/mcp/*", mount.mcpSSE)
	r.Post("/mcp/*", mount.mcpJSONRPC)

	r.Get("/healthz", mount.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return r
}

// dispatchRoutes holds the shared handlers every route keys into. It
// mirrors the teacher's *Routes-struct-per-router convention, collapsed
// into a single struct because every route here shares the same registry
// lookup.
type dispatchRoutes struct {
	registry  *config.Registry
	auth      *authserver.Server
	forwarder *mcpforward.Forwarder
}

// prefix extracts the downstream name from a mounted wildcard route's
// suffix. Every route in spec §6 addresses a downstream through a path
// ending in "mcp/<name>" (e.g. "/authorize/mcp/github", "/mcp/github"
// itself), so the downstream name is always the final path segment.
func prefix(r *http.Request) string {
	wildcard := strings.Trim(chi.URLParam(r, "*"), "/")
	if idx := strings.LastIndexByte(wildcard, '/'); idx >= 0 {
		return wildcard[idx+1:]
	}
	return wildcard
}

func (d *dispatchRoutes) protectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	d.auth.ProtectedResourceMetadata(w, r, prefix(r))
}

func (d *dispatchRoutes) authorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	d.auth.AuthorizationServerMetadata(w, r, prefix(r))
}

func (d *dispatchRoutes) authorize(w http.ResponseWriter, r *http.Request) {
	d.auth.Authorize(w, r, prefix(r))
}

func (d *dispatchRoutes) authorizeSubmit(w http.ResponseWriter, r *http.Request) {
	d.auth.AuthorizeSubmit(w, r, prefix(r))
}

func (d *dispatchRoutes) callback(w http.ResponseWriter, r *http.Request) {
	d.auth.Callback(w, r, prefix(r))
}

func (d *dispatchRoutes) token(w http.ResponseWriter, r *http.Request) {
	d.auth.Token(w, r, prefix(r))
}

func (d *dispatchRoutes) mcpSSE(w http.ResponseWriter, r *http.Request) {
	p := prefix(r)
	ds, ok := d.registry.Lookup(p)
	if !ok {
		http.NotFound(w, r)
		return
	}
	d.forwarder.ServeSSE(w, r, ds)
}

func (d *dispatchRoutes) mcpJSONRPC(w http.ResponseWriter, r *http.Request) {
	p := prefix(r)
	ds, ok := d.registry.Lookup(p)
	if !ok {
		http.NotFound(w, r)
		return
	}
	d.forwarder.ServeJSONRPC(w, r, ds)
}

func (d *dispatchRoutes) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
