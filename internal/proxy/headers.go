// Package proxy implements the header remapper: extracting the client's
// bearer credential and translating it into whatever scheme the downstream
// expects. Relaying SSE and unary JSON-RPC traffic is done by
// internal/mcpforward, which calls into this package.
package proxy

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// ExtractBearer pulls the raw credential out of an inbound
// "Authorization: Bearer <token>" header. It returns ok=false if the header
// is missing or does not carry the Bearer scheme, in which case the caller
// must reject the request with 401 upstream of any header remapping.
func ExtractBearer(r *http.Request) (token string, ok bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	token = strings.TrimPrefix(h, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// RemapHeader implements spec §4.4: given the configured auth_header_format
// and the client's bearer credential, it returns the header name/value pair
// that should be set on the outbound request to the downstream.
func RemapHeader(authHeaderFormat, token string) (name, value string) {
	switch authHeaderFormat {
	case "Bearer":
		return "Authorization", "Bearer " + token
	case "token":
		return "Authorization", "token " + token
	case "Basic":
		return "Authorization", "Basic " + token
	default:
		return authHeaderFormat, token
	}
}
