// Package httptransport runs the daemon's HTTP server with graceful shutdown.
package httptransport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
)

// ServerConfig contains tunables for the HTTP server.
type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns timeouts suitable for the daemon API. Sync requests may run long.
func DefaultServerConfig(address string) ServerConfig {
	return ServerConfig{
		Address:         address,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates *http.Server with provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the server down.
func Serve(ctx context.Context, cfg ServerConfig, ln net.Listener, handler http.Handler) error {
	srv := NewServer(cfg, handler)
	logger := xlog.WithComponent("http")

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
		return err
	}
	<-errCh
	logger.Info().Msg("http server stopped")
	return nil
}

// ListenAndServe listens on cfg.Address and calls Serve.
func ListenAndServe(ctx context.Context, cfg ServerConfig, handler http.Handler) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Address)
	if err != nil {
		return err
	}
	return Serve(ctx, cfg, ln, handler)
}
