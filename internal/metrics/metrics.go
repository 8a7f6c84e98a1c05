// Package metrics exposes Prometheus instrumentation for the proxy's
// request surface, supplementing spec §6 with the operational visibility a
// production deployment expects (the spec's Non-goals exclude token
// introspection and persistent state, not observability).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AuthorizeRequests counts authorize-endpoint hits by downstream and
	// outcome ("form", "redirect", "bad_request", "not_found").
	AuthorizeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpproxy",
			Name:      "authorize_requests_total",
			Help:      "Authorization requests handled, by downstream and outcome.",
		},
		[]string{"downstream", "outcome"},
	)

	// TokenRequests counts token-endpoint exchanges by downstream,
	// grant_type, and outcome ("success", "invalid_grant", "bad_gateway").
	TokenRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpproxy",
			Name:      "token_requests_total",
			Help:      "Token endpoint requests handled, by downstream, grant type, and outcome.",
		},
		[]string{"downstream", "grant_type", "outcome"},
	)

	// MCPRequests counts MCP forwarding requests by downstream, method, and
	// resulting HTTP status class.
	MCPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpproxy",
			Name:      "mcp_requests_total",
			Help:      "MCP proxy requests handled, by downstream, method, and status class.",
		},
		[]string{"downstream", "method", "status_class"},
	)

	// OpenSSEStreams tracks the number of currently-open SSE connections per
	// downstream, useful for capacity planning on long-lived streams.
	OpenSSEStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mcpproxy",
			Name:      "open_sse_streams",
			Help:      "Number of currently open SSE streams, by downstream.",
		},
		[]string{"downstream"},
	)
)

// Registry is a dedicated Prometheus registry so this package's metrics
// never collide with instrumentation a host process may already run.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(AuthorizeRequests, TokenRequests, MCPRequests, OpenSSEStreams)
}

// StatusClass buckets an HTTP status code into Prometheus-friendly classes
// ("2xx", "3xx", "4xx", "5xx") instead of one label value per exact code.
// Any status outside 200-499 is reported as "5xx".
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
