// Package server implements the Klaxon alert server.
package server

import (
	"context"

	"github.com/NicolasHaas/klaxon/pkg/repo"
	"github.com/NicolasHaas/klaxon/pkg/store"
)

// Config holds server configuration.
type Config struct {
	Addr string // HTTP/websocket bind address (e.g. ":8754")

	UsersBackend    string // backend type for user accounts (sqlite, bolt, json, memory)
	UsersSource     string // backend source (file path; ignored for memory)
	SessionsBackend string // backend type for login sessions
	SessionsSource  string
	DataBackend     string // backend type for configuration tables
	DataSource      string

	AlertsFile string // YAML file with alert tables to import on startup
	UsersFile  string // YAML file with user accounts to import on startup

	MetricsEnabled bool // expose Prometheus /metrics on the HTTP mux

	// CLI-only actions (run and exit)
	ExportUsers bool // export all users as YAML and exit
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of the backends and will Close() them on shutdown.
type Dependencies struct {
	Users    store.Backend
	Sessions store.Backend
	Data     store.Backend
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8754",
		UsersBackend:    "sqlite",
		UsersSource:     "klaxon-users.db",
		SessionsBackend: "memory",
		DataBackend:     "sqlite",
		DataSource:      "klaxon-data.db",
		MetricsEnabled:  true,
	}
}

// Server is the main Klaxon server.
type Server struct {
	cfg      Config
	users    *repo.Users
	sessions *repo.Sessions
	catalog  *repo.Catalog
	hub      *Hub
	metrics  *Metrics

	backends []store.Backend
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	users := repo.NewUsers(deps.Users)
	sessions := repo.NewSessions(deps.Sessions)
	catalog := repo.NewCatalog(deps.Data)
	metrics := NewMetrics()
	return &Server{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		catalog:  catalog,
		hub:      NewHub(users, sessions, catalog, metrics),
		metrics:  metrics,
		backends: []store.Backend{deps.Users, deps.Sessions, deps.Data},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
