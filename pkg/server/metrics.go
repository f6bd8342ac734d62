package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime websocket connections accepted
	ActiveConnections atomic.Int64 // current active websocket connections
	TotalDisconnects  atomic.Int64 // total client disconnects

	// Auth counters
	SuccessfulLogins    atomic.Int64 // successful HTTP logins
	FailedLogins        atomic.Int64 // failed HTTP logins
	SuccessfulValidates atomic.Int64 // connections bound to a user
	FailedValidates     atomic.Int64 // events rejected for a bad token

	// Alert counters
	AlertsBroadcast atomic.Int64 // alerts fanned out to all clients
	AlertsDenied    atomic.Int64 // alerts refused for lack of privilege

	// Account counters
	PasswordChanges atomic.Int64
	UsersCreated    atomic.Int64
	UsersEdited     atomic.Int64
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	SuccessfulLogins    int64 `json:"successful_logins"`
	FailedLogins        int64 `json:"failed_logins"`
	SuccessfulValidates int64 `json:"successful_validates"`
	FailedValidates     int64 `json:"failed_validates"`

	AlertsBroadcast int64 `json:"alerts_broadcast"`
	AlertsDenied    int64 `json:"alerts_denied"`

	PasswordChanges int64 `json:"password_changes"`
	UsersCreated    int64 `json:"users_created"`
	UsersEdited     int64 `json:"users_edited"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		SuccessfulLogins:    m.SuccessfulLogins.Load(),
		FailedLogins:        m.FailedLogins.Load(),
		SuccessfulValidates: m.SuccessfulValidates.Load(),
		FailedValidates:     m.FailedValidates.Load(),
		AlertsBroadcast:     m.AlertsBroadcast.Load(),
		AlertsDenied:        m.AlertsDenied.Load(),
		PasswordChanges:     m.PasswordChanges.Load(),
		UsersCreated:        m.UsersCreated.Load(),
		UsersEdited:         m.UsersEdited.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"logins", s.SuccessfulLogins,
		"failed_logins", s.FailedLogins,
		"alerts", s.AlertsBroadcast,
		"alerts_denied", s.AlertsDenied,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("klaxon_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("klaxon_connections_active", "Current active websocket connections.", "gauge",
		m.ActiveConnections.Load())
	write("klaxon_connections_total", "Lifetime websocket connections accepted.", "counter",
		m.TotalConnections.Load())
	write("klaxon_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("klaxon_logins_success_total", "Successful HTTP logins.", "counter",
		m.SuccessfulLogins.Load())
	write("klaxon_logins_failed_total", "Failed HTTP logins.", "counter",
		m.FailedLogins.Load())
	write("klaxon_validates_success_total", "Connections bound to a user.", "counter",
		m.SuccessfulValidates.Load())
	write("klaxon_validates_failed_total", "Events rejected for a bad token.", "counter",
		m.FailedValidates.Load())

	write("klaxon_alerts_broadcast_total", "Alerts fanned out to all clients.", "counter",
		m.AlertsBroadcast.Load())
	write("klaxon_alerts_denied_total", "Alerts refused for lack of privilege.", "counter",
		m.AlertsDenied.Load())

	write("klaxon_password_changes_total", "Password changes.", "counter",
		m.PasswordChanges.Load())
	write("klaxon_users_created_total", "User accounts created.", "counter",
		m.UsersCreated.Load())
	write("klaxon_users_edited_total", "User accounts edited.", "counter",
		m.UsersEdited.Load())
}
