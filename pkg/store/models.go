package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type PhotoModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ObjectKey  string `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	Message    string
	EventTag   string    `gorm:"not null;index:idx_photo_gallery,priority:1"`
	IsApproved bool      `gorm:"not null;index:idx_photo_gallery,priority:2"`
	Timestamp  time.Time `gorm:"not null;index:idx_photo_gallery,priority:3"`
	TakenAt    time.Time
	Width      int
	Height     int
	TokenHash  string `gorm:"not null"`
}

type ModerationAuditModel struct {
	ID       uint   `gorm:"primaryKey"`
	PhotoID  int64  `gorm:"not null;index"`
	EventTag string `gorm:"not null"`
	Overall  string `gorm:"not null"`
	Outcome  string `gorm:"not null"`
	// Verdicts holds {"text": {...}, "image": {...}}.
	Verdicts  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
}
