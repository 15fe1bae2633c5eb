// Package audit keeps the moderation trail: one entry per classified submission.
package audit

import (
	"context"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// Outcome is what the pipeline did with the photo after moderation.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomePending  Outcome = "pending"
	OutcomeRejected Outcome = "rejected"
)

// Entry records the verdicts for one submission.
type Entry struct {
	PhotoID  int64             `json:"photoId"`
	EventTag domain.EventTag   `json:"eventTag"`
	Text     domain.Assessment `json:"text"`
	Image    domain.Assessment `json:"image"`
	Overall  domain.Verdict    `json:"overall"`
	Outcome  Outcome           `json:"outcome"`
	At       time.Time         `json:"at"`
}

// Log persists moderation entries.
type Log interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }
