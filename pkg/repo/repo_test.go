package repo_test

import (
	"testing"

	"github.com/NicolasHaas/klaxon/pkg/crypto"
	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/repo"
	"github.com/NicolasHaas/klaxon/pkg/store"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newUsers(t *testing.T) *repo.Users {
	t.Helper()
	return repo.NewUsers(store.NewMemory())
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	type tcase struct {
		id        string
		password  string
		attrs     model.Record
		caller    model.Role
		wantRole  model.Role
		wantName  string
		expectErr bool
	}

	tcases := map[string]tcase{
		"minimum_required_fields": {
			id:       "johndoe",
			password: "hunter22",
			caller:   2,
			wantRole: model.RoleDefault,
			wantName: "johndoe",
		},
		"attrs_respected": {
			id:       "janedoe",
			password: "hunter22",
			attrs:    model.Record{"username": "Jane", "role": 5, "icon": "bell", "color": "teal"},
			caller:   2,
			wantRole: 5,
			wantName: "Jane",
		},
		"role_grant_clamped": { // an editor can never grant privilege equal to or above its own
			id:       "upstart",
			password: "hunter22",
			attrs:    model.Record{"role": 1},
			caller:   2,
			wantRole: 3,
		},
		"empty_id": {
			id:        "",
			password:  "hunter22",
			caller:    2,
			expectErr: true,
		},
		"invalid_id": {
			id:        "' OR '1'='1",
			password:  "hunter22",
			caller:    2,
			expectErr: true,
		},
		"empty_password": {
			id:        "johndoe",
			password:  "",
			caller:    2,
			expectErr: true,
		},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			users := newUsers(t)

			got, err := users.Create(tc.id, tc.password, tc.attrs, tc.caller)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("Create: expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: unexpected error: %v", err)
			}

			if got.Role != tc.wantRole {
				t.Errorf("Create role = %d, want %d", got.Role, tc.wantRole)
			}
			wantName := tc.wantName
			if wantName == "" {
				wantName = tc.id
			}
			if got.Username != wantName {
				t.Errorf("Create username = %q, want %q", got.Username, wantName)
			}
			if got.PasswordHash == tc.password || got.PasswordHash == "" {
				t.Errorf("Create stored a bad password hash")
			}
			if !crypto.CheckPassword(got.PasswordHash, tc.password) {
				t.Errorf("Create: stored hash does not verify the password")
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	t.Parallel()

	users := newUsers(t)
	if _, err := users.Create("johndoe", "hunter22", nil, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := users.Create("johndoe", "other", nil, 2); err == nil {
		t.Fatalf("Create duplicate: expected error, got nil")
	}
}

func TestEditUser(t *testing.T) {
	t.Parallel()

	users := newUsers(t)
	created, err := users.Create("johndoe", "hunter22", nil, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Free-form merge plus a clamped role and a re-hashed password.
	got, err := users.Edit("johndoe", model.Record{
		"username": "John",
		"color":    "red",
		"role":     1,
		"password": "newpassword",
		"token":    "forged", // must be stripped
	}, 2)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if got.Username != "John" || got.Color != "red" {
		t.Errorf("Edit merge result = %q/%q, want John/red", got.Username, got.Color)
	}
	if got.Role != 3 {
		t.Errorf("Edit role = %d, want clamped 3", got.Role)
	}
	if got.Token != "" {
		t.Errorf("Edit let a token through: %q", got.Token)
	}
	if !crypto.CheckPassword(got.PasswordHash, "newpassword") {
		t.Errorf("Edit: new password does not verify")
	}
	if crypto.CheckPassword(got.PasswordHash, "hunter22") {
		t.Errorf("Edit: old password still verifies")
	}
	if got.PasswordHash == created.PasswordHash {
		t.Errorf("Edit: password hash unchanged")
	}

	if _, err := users.Edit("ghost", model.Record{"color": "red"}, 2); err == nil {
		t.Fatalf("Edit unknown user: expected error, got nil")
	}
}

func TestProfileExcludesSecrets(t *testing.T) {
	t.Parallel()

	users := newUsers(t)
	if _, err := users.Create("johndoe", "hunter22", model.Record{"role": 4, "icon": "bell"}, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := users.SetToken("johndoe", "tok-123"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	profile, err := users.Profile("johndoe")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	want := model.Record{
		"id":       "johndoe",
		"role":     4,
		"username": "johndoe",
		"icon":     "bell",
		"color":    "",
	}
	ignoreStamps := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		return k == "last_login" || k == "last_connect" || k == "last_disconnect"
	})
	if diff := cmp.Diff(want, profile, ignoreStamps); diff != "" {
		t.Errorf("Profile mismatch (-want +got):\n%s", diff)
	}
	for _, secret := range []string{"password_hash", "token", "password"} {
		if _, ok := profile[secret]; ok {
			t.Errorf("Profile leaked field %q", secret)
		}
	}

	missing, err := users.Profile("ghost")
	if err != nil {
		t.Fatalf("Profile missing: %v", err)
	}
	if missing != nil {
		t.Errorf("Profile missing = %v, want nil", missing)
	}
}

func TestTokenLifecycle(t *testing.T) {
	t.Parallel()

	users := newUsers(t)
	if _, err := users.Create("johndoe", "hunter22", nil, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := users.SetToken("johndoe", "tok-1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	u, err := users.Get("johndoe")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Token != "tok-1" {
		t.Errorf("Token = %q, want tok-1", u.Token)
	}
	if u.LastLogin.IsZero() {
		t.Errorf("SetToken did not stamp last_login")
	}

	if err := users.ClearToken("johndoe"); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	u, err = users.Get("johndoe")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Token != "" {
		t.Errorf("Token after clear = %q, want empty", u.Token)
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()

	sessions := repo.NewSessions(store.NewMemory())

	if err := sessions.Create("tok-1", "johndoe"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	id, err := sessions.UserID("tok-1")
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id != "johndoe" {
		t.Errorf("UserID = %q, want johndoe", id)
	}

	id, err = sessions.UserID("unknown")
	if err != nil {
		t.Fatalf("UserID unknown: %v", err)
	}
	if id != "" {
		t.Errorf("UserID unknown = %q, want empty", id)
	}

	if err := sessions.Remove("tok-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	id, err = sessions.UserID("tok-1")
	if err != nil {
		t.Fatalf("UserID after remove: %v", err)
	}
	if id != "" {
		t.Errorf("UserID after remove = %q, want empty", id)
	}

	// Removing twice is a harmless no-op, as is removing the empty token.
	if err := sessions.Remove("tok-1"); err != nil {
		t.Errorf("Remove twice: %v", err)
	}
	if err := sessions.Remove(""); err != nil {
		t.Errorf("Remove empty: %v", err)
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	catalog := repo.NewCatalog(store.NewMemory())

	rows := []model.Record{
		{"text": "All clear", "color": "green", "sort_index": 3},
		{"text": "Fire drill", "color": "red", "sort_index": 1},
		{"text": "Evacuate", "color": "red", "sort_index": 2},
	}
	if err := catalog.Replace("alerts", rows); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := catalog.Table("alerts")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	want := []model.Record{
		{"text": "Fire drill", "color": "red", "sort_index": 1},
		{"text": "Evacuate", "color": "red", "sort_index": 2},
		{"text": "All clear", "color": "green", "sort_index": 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Table mismatch (-want +got):\n%s", diff)
	}

	missing, err := catalog.Table("nothere")
	if err != nil {
		t.Fatalf("Table missing: %v", err)
	}
	if missing != nil {
		t.Errorf("Table missing = %v, want nil", missing)
	}
}
