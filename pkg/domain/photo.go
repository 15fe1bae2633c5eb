package domain

import "time"

// Photo is the server-owned gallery entry. IsApproved=false means pending;
// rejected photos are deleted rather than flagged.
type Photo struct {
	ID         int64     `json:"id"`
	ObjectKey  string    `json:"objectKey"`
	Name       string    `json:"name"`
	Message    string    `json:"message,omitempty"`
	EventTag   EventTag  `json:"eventTag"`
	Timestamp  time.Time `json:"timestamp"`
	TakenAt    time.Time `json:"takenAt"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	IsApproved bool      `json:"isApproved"`
	// TokenHash binds the ownership token to the row; the token itself is never stored.
	TokenHash string `json:"-"`
}

// PhotoResponse is the wire shape of a photo. Token is only set on the
// response to the original submission.
type PhotoResponse struct {
	Photo
	Token string `json:"token,omitempty"`
	URL   string `json:"url"`
}

// Verdict is a classifier outcome.
type Verdict string

const (
	VerdictSafe   Verdict = "safe"
	VerdictUnsure Verdict = "unsure"
	VerdictUnsafe Verdict = "unsafe"
)

// ParseVerdict accepts the three known verdicts, case-insensitively.
func ParseVerdict(raw string) (Verdict, bool) {
	switch Verdict(lower(raw)) {
	case VerdictSafe:
		return VerdictSafe, true
	case VerdictUnsure:
		return VerdictUnsure, true
	case VerdictUnsafe:
		return VerdictUnsafe, true
	}
	return "", false
}

// Rank orders verdicts by restrictiveness: safe < unsure < unsafe.
// Unknown values rank as unsure.
func (v Verdict) Rank() int {
	switch v {
	case VerdictSafe:
		return 0
	case VerdictUnsafe:
		return 2
	default:
		return 1
	}
}

// Assessment is one verdict with its short machine-readable reason.
type Assessment struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}
