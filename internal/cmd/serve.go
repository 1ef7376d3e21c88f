package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/server"
	"github.com/felixgeelhaar/hdlplay/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool executor over websocket",
	Long: `Start a tool executor that controllers reach over websocket.

Controllers connect to ws://<listen>/worker and send one command at a time;
the executor streams tool output back as it is produced. Point a
controller at it with:

  executor:
    mode: remote
    address: ws://127.0.0.1:7420/worker

Health endpoints:
  /health/live    process alive
  /health/ready   accepting work (also /healthz)

The server shuts down gracefully on SIGINT or SIGTERM.

Example:
  # Serve on the configured address (default 127.0.0.1:7420)
  hdlplay serve

  # Serve on all interfaces
  hdlplay serve --listen 0.0.0.0:7420`,
	RunE: runServe,
}

var (
	serveListen          string
	serveShutdownTimeout time.Duration
	serveReadTimeout     time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (default from executor.listen)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 30*time.Second, "maximum time to wait for connections to drain during shutdown")
	serveCmd.Flags().DurationVar(&serveReadTimeout, "read-header-timeout", 10*time.Second, "maximum duration for reading request headers")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	exec, err := newExecutor(cc)
	if err != nil {
		return err
	}

	addr := serveListen
	if addr == "" {
		addr = cc.Config.Executor.Listen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	info := version.GetInfo()
	srv := server.NewServer(exec, server.Config{
		Version:           info.Version,
		ShutdownTimeout:   serveShutdownTimeout,
		ReadHeaderTimeout: serveReadTimeout,
	}, cc.Logger)

	logger := cc.Logger.WithComponent("serve")
	logger.Info("executor listening", "address", ln.Addr().String(), "version", info.Version, "tools", len(exec.Tools()))
	fmt.Fprintf(cmd.OutOrStdout(), "Executor listening on ws://%s%s\nPress Ctrl+C to stop the server\n", ln.Addr(), server.WorkerPath)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("initiating graceful shutdown")

		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		stats := exec.Cache().Stats()
		logger.Info("server stopped gracefully",
			"cache_hits", stats.Hits,
			"cache_misses", stats.Misses,
			"cache_bypassed", stats.Bypassed)
		return nil
	}
}
