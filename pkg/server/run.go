package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	defer func() {
		for _, b := range s.backends {
			if b == nil {
				continue
			}
			if err := b.Close(); err != nil {
				slog.Error("backend close failed", "err", err)
			}
		}
	}()

	// Load alert tables from YAML config if provided
	if s.cfg.AlertsFile != "" {
		if err := LoadTablesFromYAML(s.cfg.AlertsFile, s.catalog); err != nil {
			slog.Error("failed to load alerts config", "err", err)
		}
	}

	// Load user accounts from YAML config if provided
	if s.cfg.UsersFile != "" {
		if err := LoadUsersFromYAML(s.cfg.UsersFile, s.users); err != nil {
			slog.Error("failed to load users config", "err", err)
		}
	}

	// CLI-only action: dump users and exit
	if s.cfg.ExportUsers {
		data, err := ExportUsersYAML(s.users)
		if err != nil {
			return fmt.Errorf("server: export users: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}

	// Ensure at least one account exists
	if err := s.ensureAdminUser(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/ws", s.hub.ServeWS)
	if s.cfg.MetricsEnabled {
		mux.HandleFunc("/metrics", s.handleMetrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Klaxon server running", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal or listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.cancel()
		return fmt.Errorf("server: listen: %w", err)
	case <-sigCh:
	}

	slog.Info("shutting down...")
	s.Shutdown(srv)
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(srv *http.Server) {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", "err", err)
	}
}
