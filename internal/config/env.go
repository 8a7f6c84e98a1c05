package config

import (
	"os"
	"strings"
)

// EnvPrefix is the branding prefix used for environment variable overrides.
// Spec §9's Open Question leaves the exact prefix to the implementer; this
// proxy identifies itself as MCPPROXY.
const EnvPrefix = "MCPPROXY"

// ApplyEnvOverrides mutates f in place, replacing server.state_secret and
// each downstream's OAuthClientSecret with the corresponding environment
// variable when it is set. Environment values always win over file values,
// per spec §6.
func ApplyEnvOverrides(f *File) {
	if v, ok := os.LookupEnv(EnvPrefix + "_STATE_SECRET"); ok {
		f.Server.StateSecret = v
	}

	for i := range f.Downstreams {
		d := &f.Downstreams[i]
		envName := EnvPrefix + "_" + upcaseName(d.Name) + "_CLIENT_SECRET"
		if v, ok := os.LookupEnv(envName); ok {
			d.OAuthClientSecret = v
		}
	}
}

// upcaseName converts a downstream name (e.g. "my-service") into its
// environment-variable segment (e.g. "MY_SERVICE").
func upcaseName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
