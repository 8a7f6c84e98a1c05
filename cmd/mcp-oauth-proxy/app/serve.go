package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aolkin/mcp-oauth-proxy/internal/authserver"
	"github.com/aolkin/mcp-oauth-proxy/internal/config"
	"github.com/aolkin/mcp-oauth-proxy/internal/httpapi"
	"github.com/aolkin/mcp-oauth-proxy/internal/logger"
	"github.com/aolkin/mcp-oauth-proxy/internal/mcpforward"
	"github.com/aolkin/mcp-oauth-proxy/internal/networking"
)

const readHeaderTimeout = 10 * time.Second

var (
	serveConfigPath string
	servePort       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the configuration and start the proxy",
	RunE:  serveCmdFunc,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the TOML configuration file (required)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the bind port from the configuration file")
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Errorf("error marking --config required: %v", err)
	}
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	registry, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	exchangeClient, err := networking.NewHttpClientBuilder().Build()
	if err != nil {
		return fmt.Errorf("building chained-oauth http client: %w", err)
	}
	// The forwarder holds connections open for the lifetime of an SSE
	// stream, which http.Client.Timeout would otherwise cut off at 30s
	// regardless of activity; it relies on request-context cancellation
	// instead (spec §4.7, §5 "Timeouts are not mandated in the core spec").
	forwardClient, err := networking.NewHttpClientBuilder().WithTimeout(0).Build()
	if err != nil {
		return fmt.Errorf("building mcp-forwarding http client: %w", err)
	}
	auth := authserver.New(registry, exchangeClient)
	forwarder := mcpforward.New(forwardClient)
	router := httpapi.NewRouter(registry, auth, forwarder)

	addr := registry.BindAddr()
	if servePort != 0 {
		host, _, splitErr := net.SplitHostPort(addr)
		if splitErr == nil {
			addr = fmt.Sprintf("%s:%d", host, servePort)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infow("starting http server", "addr", srv.Addr, "publicURL", registry.PublicURL())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server stopped with error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Infow("http server stopped")
	return nil
}
