package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/NicolasHaas/klaxon/pkg/crypto"
	"github.com/NicolasHaas/klaxon/pkg/model"
)

// LoginResponse is the JSON body of a successful login.
type LoginResponse struct {
	Status   string `json:"status"`
	Token    string `json:"token,omitempty"`
	Role     int    `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleLogin exchanges credentials for a fresh session token. A login
// supersedes any earlier token the user held. Every failure looks the
// same to the caller so the response leaks nothing about which part of
// the credentials was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.metrics.FailedLogins.Add(1)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Status: "failed"})
		return
	}

	userID := r.PostFormValue("user_id")
	password := r.PostFormValue("password")

	u, err := s.users.Get(userID)
	if err != nil {
		slog.Error("login lookup failed", "user", userID, "err", err)
		s.metrics.FailedLogins.Add(1)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Status: "failed"})
		return
	}
	if u == nil || !crypto.CheckPassword(u.PasswordHash, password) {
		slog.Warn("login failed", "user", userID, "remote", r.RemoteAddr)
		s.metrics.FailedLogins.Add(1)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Status: "failed"})
		return
	}

	token, err := s.login(u)
	if err != nil {
		slog.Error("login failed", "user", u.ID, "err", err)
		s.metrics.FailedLogins.Add(1)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Status: "failed"})
		return
	}

	s.metrics.SuccessfulLogins.Add(1)
	slog.Info("login", "user", u.ID, "role", int(u.Role), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, LoginResponse{
		Status:   "success",
		Token:    token,
		Role:     int(u.Role),
		Username: u.Username,
	})
}

// login rotates the user onto a fresh token. The old session goes away
// first so a crash between steps leaves the user logged out rather than
// holding two live tokens.
func (s *Server) login(u *model.User) (string, error) {
	if u.Token != "" {
		if err := s.sessions.Remove(u.Token); err != nil {
			return "", err
		}
		if err := s.users.ClearToken(u.ID); err != nil {
			return "", err
		}
	}

	token, err := crypto.GenerateToken()
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(token, u.ID); err != nil {
		return "", err
	}
	if err := s.users.SetToken(u.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

// handleLogout drops a session token. Logging out an unknown token is
// fine, so the response is always success.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, LoginResponse{Status: "success"})
		return
	}

	token := r.PostFormValue("token")
	if token == "" {
		writeJSON(w, http.StatusOK, LoginResponse{Status: "success"})
		return
	}

	userID, err := s.sessions.UserID(token)
	if err != nil {
		slog.Error("logout lookup failed", "err", err)
	}
	if userID != "" {
		if u, err := s.users.Get(userID); err == nil && u != nil && u.Token == token {
			if err := s.users.ClearToken(userID); err != nil {
				slog.Error("logout clear token failed", "user", userID, "err", err)
			}
		}
		slog.Info("logout", "user", userID)
	}
	if err := s.sessions.Remove(token); err != nil {
		slog.Error("logout remove session failed", "err", err)
	}

	writeJSON(w, http.StatusOK, LoginResponse{Status: "success"})
}
