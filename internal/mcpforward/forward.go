// Package mcpforward implements the MCP forwarder (spec §4.7): streaming
// SSE passthrough for GET and unary JSON-RPC passthrough for POST, both
// translating the client's bearer credential into the downstream's expected
// auth header via internal/proxy.RemapHeader.
package mcpforward

import (
	"io"
	"net/http"

	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
	"github.com/aolkin/mcp-oauth-proxy/internal/metrics"
	"github.com/aolkin/mcp-oauth-proxy/internal/proxy"
)

// Forwarder proxies MCP traffic to the downstream_url of the Downstream
// passed with each request, for every configured downstream, using a shared,
// connection-pooling *http.Client (spec §4.9 / §5 "Shared resources").
type Forwarder struct {
	client *http.Client
}

// New returns a Forwarder that issues outbound requests through client.
func New(client *http.Client) *Forwarder {
	return &Forwarder{client: client}
}

// ServeSSE implements the GET /mcp/*path route: it extracts the inbound
// bearer credential, remaps it into the downstream's expected header,
// awaits response headers, and — on a 2xx — streams the response body
// verbatim with SSE headers set. No framing is re-parsed or buffered beyond
// what http.Flusher requires (spec §4.7, §5).
func (f *Forwarder) ServeSSE(w http.ResponseWriter, r *http.Request, d *config.Downstream) {
	token, ok := proxy.ExtractBearer(r)
	if !ok {
		metrics.MCPRequests.WithLabelValues(d.Name, "GET", metrics.StatusClass(http.StatusUnauthorized)).Inc()
		http.Error(w, "missing or malformed bearer credential", http.StatusUnauthorized)
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, d.DownstreamURL, nil)
	if err != nil {
		logger.Errorw("building outbound SSE request", "downstream", d.Name, "error", err)
		metrics.MCPRequests.WithLabelValues(d.Name, "GET", metrics.StatusClass(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	name, value := proxy.RemapHeader(d.AuthHeaderFormat, token)
	outReq.Header.Set(name, value)
	outReq.Header.Set("Accept", "text/event-stream")

	resp, err := f.client.Do(outReq)
	if err != nil {
		logger.Warnw("downstream unreachable for SSE", "downstream", d.Name, "error", err)
		metrics.MCPRequests.WithLabelValues(d.Name, "GET", metrics.StatusClass(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnw("downstream returned non-2xx for SSE", "downstream", d.Name, "status", resp.StatusCode)
		metrics.MCPRequests.WithLabelValues(d.Name, "GET", metrics.StatusClass(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	metrics.MCPRequests.WithLabelValues(d.Name, "GET", metrics.StatusClass(resp.StatusCode)).Inc()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	metrics.OpenSSEStreams.WithLabelValues(d.Name).Inc()
	defer metrics.OpenSSEStreams.WithLabelValues(d.Name).Dec()

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Client disconnected; stop forwarding and release the
				// downstream connection without a partial/invalid event.
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				logger.Warnw("downstream SSE stream ended with error", "downstream", d.Name, "error", readErr)
			}
			return
		}
		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}

// ServeJSONRPC implements the POST /mcp/*path route: a unary JSON-RPC
// passthrough. It remaps the auth header, forwards the body as
// application/json, and relays the downstream's status, Content-Type, and
// body back to the client.
func (f *Forwarder) ServeJSONRPC(w http.ResponseWriter, r *http.Request, d *config.Downstream) {
	token, ok := proxy.ExtractBearer(r)
	if !ok {
		metrics.MCPRequests.WithLabelValues(d.Name, "POST", metrics.StatusClass(http.StatusUnauthorized)).Inc()
		http.Error(w, "missing or malformed bearer credential", http.StatusUnauthorized)
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, d.DownstreamURL, r.Body)
	if err != nil {
		logger.Errorw("building outbound JSON-RPC request", "downstream", d.Name, "error", err)
		metrics.MCPRequests.WithLabelValues(d.Name, "POST", metrics.StatusClass(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	name, value := proxy.RemapHeader(d.AuthHeaderFormat, token)
	outReq.Header.Set(name, value)
	outReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(outReq)
	if err != nil {
		logger.Warnw("downstream unreachable for JSON-RPC", "downstream", d.Name, "error", err)
		metrics.MCPRequests.WithLabelValues(d.Name, "POST", metrics.StatusClass(http.StatusBadGateway)).Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	metrics.MCPRequests.WithLabelValues(d.Name, "POST", metrics.StatusClass(resp.StatusCode)).Inc()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Warnw("writing JSON-RPC response to client", "downstream", d.Name, "error", err)
	}
}
