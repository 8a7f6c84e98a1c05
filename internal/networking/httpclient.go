// Package networking builds the pooled, connection-reusing HTTP clients
// used by the chained-OAuth code-exchange logic and the MCP forwarder,
// adapted from the teacher's fluent HttpClientBuilder. The two call sites
// build separate clients from separate builder instances: the forwarder
// needs WithTimeout(0) so a long-lived SSE stream isn't cut off at the
// wall-clock request timeout that the exchange client keeps.
package networking

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// HttpTimeout is the default overall request timeout applied to every
// outbound call made through a client built by HttpClientBuilder.
const HttpTimeout = 30 * time.Second

const (
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultMaxIdleConnsPerHost   = 16
	defaultIdleConnTimeout       = 90 * time.Second
)

// HttpClientBuilder builds a pooled *http.Client via a fluent API, mirroring
// the teacher's pkg/networking.HttpClientBuilder.
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	caCertPath            string
	allowPrivate          bool
}

// NewHttpClientBuilder returns a builder seeded with sane defaults.
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   defaultTLSHandshakeTimeout,
		responseHeaderTimeout: defaultResponseHeaderTimeout,
	}
}

// WithCABundle configures an additional trusted CA bundle for outbound TLS
// connections, e.g. when a downstream presents a private PKI certificate.
func (b *HttpClientBuilder) WithCABundle(path string) *HttpClientBuilder {
	b.caCertPath = path
	return b
}

// WithPrivateIPs controls whether requests to literal private, loopback, or
// link-local IP addresses are allowed (see ValidatingTransport). Clients
// that reach locally-deployed downstreams by IP must opt in explicitly.
func (b *HttpClientBuilder) WithPrivateIPs(allow bool) *HttpClientBuilder {
	b.allowPrivate = allow
	return b
}

// WithTimeout overrides the client's overall request timeout. http.Client's
// Timeout bounds the entire request, including streaming the response
// body, so callers that hold a connection open for a long-lived SSE stream
// (spec §4.7, §5 "Timeouts are not mandated in the core spec") must pass 0
// here to disable it and rely on request-context cancellation instead.
func (b *HttpClientBuilder) WithTimeout(d time.Duration) *HttpClientBuilder {
	b.clientTimeout = d
	return b
}

// Build constructs the *http.Client. Every client shares the same pooling
// policy: a bounded number of idle connections per host, kept alive long
// enough to amortize TLS handshakes across repeated SSE/JSON-RPC calls to
// the same downstream.
func (b *HttpClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if b.caCertPath != "" {
		pool, err := loadCABundle(b.caCertPath)
		if err != nil {
			return nil, fmt.Errorf("loading CA bundle: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &http.Client{
		Timeout:   b.clientTimeout,
		Transport: &ValidatingTransport{base: transport, allowPrivate: b.allowPrivate},
	}, nil
}

func loadCABundle(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no valid certificates found in %s", path)
	}
	return pool, nil
}
