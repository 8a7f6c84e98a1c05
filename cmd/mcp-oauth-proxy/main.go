// Package main is the entry point for the MCP OAuth proxy.
package main

import (
	"os"

	"github.com/aolkin/mcp-oauth-proxy/cmd/mcp-oauth-proxy/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
