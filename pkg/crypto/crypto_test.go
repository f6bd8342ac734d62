package crypto

import "testing"

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("GenerateToken length = %d, want 64 hex chars", len(a))
	}

	b, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if a == b {
		t.Errorf("GenerateToken returned the same token twice")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "secret1" {
		t.Fatalf("HashPassword stored the plaintext")
	}

	if !CheckPassword(hash, "secret1") {
		t.Errorf("CheckPassword rejected the correct password")
	}
	if CheckPassword(hash, "secret2") {
		t.Errorf("CheckPassword accepted a wrong password")
	}
	if CheckPassword("not-a-hash", "secret1") {
		t.Errorf("CheckPassword accepted a malformed digest")
	}
}
