package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/klaxon/pkg/logging"
	"github.com/NicolasHaas/klaxon/pkg/server"
	"github.com/NicolasHaas/klaxon/pkg/store"
	"github.com/NicolasHaas/klaxon/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP/websocket bind address")
	flag.StringVar(&cfg.UsersBackend, "users-backend", cfg.UsersBackend, "Users backend: sqlite, bolt, json, memory")
	flag.StringVar(&cfg.UsersSource, "users-source", cfg.UsersSource, "Users backend source (file path)")
	flag.StringVar(&cfg.SessionsBackend, "sessions-backend", cfg.SessionsBackend, "Sessions backend: sqlite, bolt, json, memory")
	flag.StringVar(&cfg.SessionsSource, "sessions-source", cfg.SessionsSource, "Sessions backend source (file path)")
	flag.StringVar(&cfg.DataBackend, "data-backend", cfg.DataBackend, "Alert tables backend: sqlite, bolt, json, memory")
	flag.StringVar(&cfg.DataSource, "data-source", cfg.DataSource, "Alert tables backend source (file path)")
	flag.StringVar(&cfg.AlertsFile, "alerts-file", "", "YAML file with alert tables to import on startup")
	flag.StringVar(&cfg.UsersFile, "users-file", "", "YAML file with user accounts to import on startup")
	flag.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "Expose Prometheus /metrics")
	flag.BoolVar(&cfg.ExportUsers, "export-users", false, "Export all users as YAML and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("klaxon " + version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	users, err := store.Open(cfg.UsersBackend, cfg.UsersSource)
	if err != nil {
		slog.Error("open users backend", "err", err)
		os.Exit(1)
	}
	sessions, err := store.Open(cfg.SessionsBackend, cfg.SessionsSource)
	if err != nil {
		slog.Error("open sessions backend", "err", err)
		os.Exit(1)
	}
	data, err := store.Open(cfg.DataBackend, cfg.DataSource)
	if err != nil {
		slog.Error("open data backend", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{
		Users:    users,
		Sessions: sessions,
		Data:     data,
	})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
