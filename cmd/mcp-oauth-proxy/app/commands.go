// Package app provides the entry point for the mcp-oauth-proxy command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:               "mcp-oauth-proxy",
	DisableAutoGenTag: true,
	Short:             "mcp-oauth-proxy fronts MCP tool servers behind an OAuth 2.1/PKCE authorization server",
	Long: `mcp-oauth-proxy is an authentication-translating reverse proxy for Model Context
Protocol tool servers. It exposes a stateless OAuth 2.1 authorization server and a
streaming MCP endpoint per configured downstream, translating an AI assistant's
bearer credential into whatever scheme each downstream expects.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		logger.Initialize(debug)
	},
}

// NewRootCmd prepares and returns the root command for the mcp-oauth-proxy
// CLI. The command is a package-level instance: each call clears its flags
// and subcommands and registers them afresh, so calling it more than once
// is safe and returns the same command.
func NewRootCmd() *cobra.Command {
	rootCmd.ResetFlags()
	rootCmd.ResetCommands()
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.SilenceUsage = true

	return rootCmd
}
