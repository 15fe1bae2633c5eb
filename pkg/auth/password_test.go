package auth

import "testing"

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestGuestPassPlainSecret(t *testing.T) {
	g, err := NewGuestPass("hari-bahagia", "")
	if err != nil {
		t.Fatalf("new guest pass: %v", err)
	}
	if !g.Check("hari-bahagia") {
		t.Fatalf("expected matching pass to be accepted")
	}
	for _, bad := range []string{"", "hari-bahagi", "hari-bahagia ", "HARI-BAHAGIA"} {
		if g.Check(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestGuestPassHashWins(t *testing.T) {
	hash, err := HashPassword("kenduri")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	g, err := NewGuestPass("plain-ignored", hash)
	if err != nil {
		t.Fatalf("new guest pass: %v", err)
	}
	if !g.Check("kenduri") {
		t.Fatalf("expected hashed pass to be accepted")
	}
	if g.Check("plain-ignored") {
		t.Fatalf("expected plain secret to be ignored when a hash is configured")
	}
}

func TestNewGuestPassValidation(t *testing.T) {
	if _, err := NewGuestPass("", ""); err != ErrGuestPassNotConfigured {
		t.Fatalf("expected ErrGuestPassNotConfigured, got %v", err)
	}
	if _, err := NewGuestPass("", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("expected invalid hash to fail")
	}
	var nilPass *GuestPass
	if nilPass.Check("anything") {
		t.Fatalf("nil checker must reject")
	}
}
