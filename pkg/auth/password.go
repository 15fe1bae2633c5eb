package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrGuestPassNotConfigured is returned when neither a secret nor a hash is set.
var ErrGuestPassNotConfigured = errors.New("guest pass not configured")

// HashPassword returns a bcrypt hash suitable for the guestPasswordHash setting.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword validates a password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GuestPass checks the shared secret guests type into the upload form.
// When a bcrypt hash is configured it wins over the plain secret.
type GuestPass struct {
	secret string
	hash   string
}

// NewGuestPass builds a checker from a plain secret and/or a bcrypt hash.
func NewGuestPass(secret, hash string) (*GuestPass, error) {
	secret = strings.TrimSpace(secret)
	hash = strings.TrimSpace(hash)
	if secret == "" && hash == "" {
		return nil, ErrGuestPassNotConfigured
	}
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, err
		}
	}
	return &GuestPass{secret: secret, hash: hash}, nil
}

// Check reports whether pass matches the configured guest secret.
func (g *GuestPass) Check(pass string) bool {
	if g == nil || pass == "" {
		return false
	}
	if g.hash != "" {
		return CheckPassword(pass, g.hash)
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(g.secret)) == 1
}
