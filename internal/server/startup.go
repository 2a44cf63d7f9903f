package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server until a shutdown signal arrives.
func (s *Server) Start() error {
	mux := s.setupRoutes()
	var handler http.Handler = mux
	if s.Observability != nil {
		handler = s.Observability.HTTPMiddleware()(mux)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Config.Server.Host, s.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		IdleTimeout:  s.Config.Server.IdleTimeout,
	}

	if s.Config.Server.TLS.Enabled {
		tlsConfig, err := s.buildTLSConfig()
		if err != nil {
			return err
		}
		httpServer.TLSConfig = tlsConfig
	}

	return s.startWithGracefulShutdown(httpServer)
}

// startWithGracefulShutdown starts the server and drains it on SIGINT
// or SIGTERM.
func (s *Server) startWithGracefulShutdown(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil,
			"auth_enabled", len(s.APIKeys) > 0,
			"rate_limit_enabled", s.RateLimiter != nil)

		var err error
		if server.TLSConfig != nil {
			// Certificates are already loaded into the TLS config, so the
			// file arguments stay empty.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
		return s.performGracefulShutdown(server)
	}
}

func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.CertManager != nil {
		if err := s.CertManager.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop certificate manager")
		}
	}

	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed")
	return nil
}
