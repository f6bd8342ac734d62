package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/klaxon/pkg/crypto"
	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/repo"

	"gopkg.in/yaml.v3"
)

// TablesConfig is the top-level YAML config for alert tables.
type TablesConfig struct {
	Tables map[string][]model.AlertDef `yaml:"tables"`
}

// UserYAML represents a user in YAML import/export. Passwords appear
// only on import; exports never carry them.
type UserYAML struct {
	ID       string `yaml:"id"`
	Password string `yaml:"password,omitempty"`
	Role     int    `yaml:"role"`
	Username string `yaml:"username,omitempty"`
	Icon     string `yaml:"icon,omitempty"`
	Color    string `yaml:"color,omitempty"`
}

// UsersConfig is the top-level YAML for user import/export.
type UsersConfig struct {
	Users []UserYAML `yaml:"users"`
}

// LoadTablesFromYAML reads an alert tables YAML file and replaces the
// stored tables with its contents.
func LoadTablesFromYAML(path string, catalog *repo.Catalog) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read alerts config: %w", err)
	}
	return ImportTablesFromYAML(data, catalog)
}

// ImportTablesFromYAML parses YAML data and replaces the stored tables.
func ImportTablesFromYAML(data []byte, catalog *repo.Catalog) error {
	var cfg TablesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse alerts config: %w", err)
	}

	count := 0
	for name, defs := range cfg.Tables {
		rows := make([]model.Record, 0, len(defs))
		for _, def := range defs {
			rows = append(rows, def.ToRecord())
		}
		if err := catalog.Replace(name, rows); err != nil {
			return fmt.Errorf("store table %s: %w", name, err)
		}
		count += len(rows)
	}

	slog.Info("imported alert tables from YAML", "tables", len(cfg.Tables), "rows", count)
	return nil
}

// LoadUsersFromYAML reads a users YAML file and creates the accounts
// that do not exist yet. Existing accounts are left alone.
func LoadUsersFromYAML(path string, users *repo.Users) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read users config: %w", err)
	}
	return ImportUsersFromYAML(data, users)
}

// ImportUsersFromYAML parses YAML data and creates missing accounts.
func ImportUsersFromYAML(data []byte, users *repo.Users) error {
	var cfg UsersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse users config: %w", err)
	}

	created := 0
	for _, u := range cfg.Users {
		existing, err := users.Get(u.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			slog.Debug("user from config already exists", "user", u.ID)
			continue
		}

		attrs := model.Record{
			model.FieldUsername: u.Username,
			model.FieldIcon:     u.Icon,
			model.FieldColor:    u.Color,
		}
		// A missing role in the file means least privileged, not zero.
		if u.Role != 0 {
			attrs[model.FieldRole] = u.Role
		}
		if _, err := users.Create(u.ID, u.Password, attrs, model.RoleSystem); err != nil {
			slog.Error("failed to create user from config", "user", u.ID, "err", err)
			continue
		}
		created++
	}

	slog.Info("imported users from YAML", "count", created)
	return nil
}

// ExportUsersYAML exports all user accounts as YAML, without password
// hashes or tokens.
func ExportUsersYAML(users *repo.Users) ([]byte, error) {
	profiles, err := users.Profiles()
	if err != nil {
		return nil, err
	}

	export := UsersConfig{}
	for _, p := range profiles {
		role, _ := p.Int(model.FieldRole)
		export.Users = append(export.Users, UserYAML{
			ID:       p.String("id"),
			Role:     role,
			Username: p.String(model.FieldUsername),
			Icon:     p.String(model.FieldIcon),
			Color:    p.String(model.FieldColor),
		})
	}
	return yaml.Marshal(&export)
}

// ensureAdminUser creates an admin account only on first run, when no
// accounts exist at all.
func (s *Server) ensureAdminUser() error {
	count, err := s.users.Count()
	if err != nil {
		return fmt.Errorf("server: count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	raw, err := crypto.GenerateToken()
	if err != nil {
		return fmt.Errorf("server: generate admin password: %w", err)
	}
	password := raw[:16]

	if _, err := s.users.Create("admin", password, model.Record{
		model.FieldRole:     int(model.RoleMin),
		model.FieldUsername: "Admin",
	}, model.RoleSystem); err != nil {
		return fmt.Errorf("server: create admin user: %w", err)
	}

	slog.Info("========================================")
	slog.Info("ADMIN PASSWORD (save this!):", "user", "admin", "password", password)
	slog.Info("========================================")
	return nil
}
