package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/platescan/internal/server"
	"github.com/MeKo-Tech/platescan/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP recognition API",
		Long: `Start an HTTP server exposing plate recognition.

Endpoints:
  GET  /health     - health check
  POST /recognize  - recognize an uploaded image (multipart field "image")
  GET  /ws         - WebSocket streaming recognition
  GET  /metrics    - Prometheus metrics

Examples:
  platescan serve
  platescan serve --host 0.0.0.0 --port 3000 --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, pc, err := a.pipelineFor()
			if err != nil {
				return err
			}
			scfg := a.cfg.ToServerConfig()
			scfg.PoolSize = pc.Workers
			scfg.Version = version.Version

			srv, err := server.NewServer(scfg, p, a.factoryFor(pc))
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, srv, scfg, a.cfg.ShutdownTimeout())
		},
	}

	fs := serveCmd.Flags()
	addPipelineFlags(fs)
	fs.StringP("host", "H", "", "server host (default \"localhost\")")
	fs.IntP("port", "p", 0, "server port (default 8080)")
	fs.String("cors-origin", "", "CORS allowed origin (default \"*\")")
	fs.Int("max-upload-size", 0, "maximum upload size in MB (default 10)")
	fs.Int("timeout", 0, "per-request recognition timeout in seconds (default 60)")
	fs.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default 10)")
	fs.Int("requests-per-minute", 0, "per-client request limit, 0 disables it")

	bindFlag(fs, "host", "server.host")
	bindFlag(fs, "port", "server.port")
	bindFlag(fs, "cors-origin", "server.cors_origin")
	bindFlag(fs, "max-upload-size", "server.max_upload_mb")
	bindFlag(fs, "timeout", "server.timeout_sec")
	bindFlag(fs, "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(fs, "requests-per-minute", "server.requests_per_minute")
	return serveCmd
}

// serve runs srv until ctx is done, then shuts down within shutdownTimeout.
func serve(ctx context.Context, srv *server.Server, cfg server.Config, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting plate recognition server", "host", cfg.Host, "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("Server error", "error", serveErr)
		}
	}

	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return serveErr
}
