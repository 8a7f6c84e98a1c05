package networking

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ValidatingTransport wraps a base RoundTripper and rejects requests whose
// host is a literal private, loopback, or link-local IP address unless
// allowPrivate is set. Hostnames are not resolved here, so a name that
// resolves to a private address is not rejected.
// This guards against a misconfigured downstream_url turning the proxy into
// an SSRF pivot into the operator's internal network.
type ValidatingTransport struct {
	base         http.RoundTripper
	allowPrivate bool
}

// RoundTrip implements http.RoundTripper.
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.allowPrivate {
		if err := checkNotPrivate(req.URL.Hostname()); err != nil {
			return nil, err
		}
	}
	return t.base.RoundTrip(req)
}

func checkNotPrivate(host string) error {
	ip := net.ParseIP(host)
	if ip == nil {
		// Not a literal IP; DNS resolution happens inside the transport's
		// dialer. We only block obviously-private literals here.
		return nil
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return fmt.Errorf("networking: refusing to dial private address %s", host)
	}
	return nil
}

// ValidateEndpointURL rejects obviously-invalid endpoint URLs (empty, not
// http/https, or without a host) when the configuration registry is built,
// before they are used for any outbound request, adapted from the teacher's
// pkg/networking.ValidateEndpointURL.
func ValidateEndpointURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("networking: endpoint URL is empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("networking: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("networking: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("networking: endpoint URL has no host")
	}
	return nil
}
