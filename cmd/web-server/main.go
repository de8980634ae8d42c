// Skytrail web server: serves live aircraft display states over a REST API
// and a websocket frame stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/skytrail/internal/auth"
	"github.com/unklstewy/skytrail/internal/ingest"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/config"
)

var configPath = flag.String("config", "configs/config.json", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("web-server", cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authSvc, err := auth.NewService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w (set SKYTRAIL_JWT_SECRET)", err)
	}
	if len(cfg.Auth.Users) == 0 {
		logger.Warn("No users configured; nobody can log in")
	}

	p, err := ingest.New(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	h := newHub()
	srv := NewServer(p.Store, authSvc, h, logger, cfg.Server.AllowedOrigins)

	go p.Run(ctx)
	go h.run(ctx, p.Store, cfg.Timeline.TickInterval(), time.Now)

	httpServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:     srv,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			slog.String("addr", httpServer.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled),
			slog.Duration("tick", cfg.Timeline.TickInterval()))
		if cfg.Server.TLSEnabled {
			errc <- httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			errc <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
