// Package ownership decides whether the holder of an edit token may change a photo.
package ownership

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// EditWindow is how long after submission the owner may edit or delete.
const EditWindow = time.Hour

var (
	ErrTokenMismatch    = errors.New("edit token does not match this photo")
	ErrEditWindowClosed = errors.New("edit window has closed")
)

// NewToken returns a fresh opaque ownership token.
func NewToken() string {
	return uuid.NewString()
}

// HashToken is the form stored next to the photo.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authorize returns nil iff token matches photo and the photo is younger than EditWindow.
func Authorize(photo domain.Photo, token string, now time.Time) error {
	if token == "" || photo.TokenHash == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(photo.TokenHash)) != 1 {
		return ErrTokenMismatch
	}
	if now.Sub(photo.Timestamp) >= EditWindow {
		return ErrEditWindowClosed
	}
	return nil
}

// CanModify reports whether Authorize would succeed.
func CanModify(photo domain.Photo, token string, now time.Time) bool {
	return Authorize(photo, token, now) == nil
}

// WithinWindow is the time half of the rule, for clients that hold a token
// but only see the public projection of the photo.
func WithinWindow(submitted, now time.Time) bool {
	return now.Sub(submitted) < EditWindow
}
