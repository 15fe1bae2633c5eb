package ownership

import (
	"errors"
	"testing"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

func TestAuthorizeRequiresTokenAndWindow(t *testing.T) {
	token := NewToken()
	submitted := time.Date(2025, 12, 6, 20, 0, 0, 0, time.UTC)
	photo := domain.Photo{ID: 7, Timestamp: submitted, TokenHash: HashToken(token)}

	tests := []struct {
		name  string
		token string
		now   time.Time
		want  error
	}{
		{name: "valid token inside window", token: token, now: submitted.Add(59 * time.Minute)},
		{name: "valid token at submission", token: token, now: submitted},
		{name: "valid token past window", token: token, now: submitted.Add(61 * time.Minute), want: ErrEditWindowClosed},
		{name: "valid token exactly one hour", token: token, now: submitted.Add(time.Hour), want: ErrEditWindowClosed},
		{name: "wrong token inside window", token: NewToken(), now: submitted.Add(time.Minute), want: ErrTokenMismatch},
		{name: "wrong token past window", token: NewToken(), now: submitted.Add(2 * time.Hour), want: ErrTokenMismatch},
		{name: "empty token", token: "", now: submitted, want: ErrTokenMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(photo, tc.token, tc.now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Authorize = %v, want %v", err, tc.want)
			}
			if CanModify(photo, tc.token, tc.now) != (tc.want == nil) {
				t.Fatalf("CanModify disagrees with Authorize")
			}
		})
	}
}

func TestAuthorizeRejectsPhotoWithoutToken(t *testing.T) {
	photo := domain.Photo{Timestamp: time.Now()}
	if err := Authorize(photo, HashToken(""), time.Now()); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected mismatch for photo without a bound token, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") || HashToken("abc") == HashToken("abd") {
		t.Fatalf("hash must be deterministic and distinguish tokens")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("expected hex sha256")
	}
}

func TestNewTokenIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok := NewToken()
		if seen[tok] {
			t.Fatalf("duplicate token %s", tok)
		}
		seen[tok] = true
	}
}
