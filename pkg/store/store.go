package store

import (
	"context"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// Store persists gallery photos. Every mutating method is a single statement,
// so a transition on one id is atomic. The bool results report whether the id
// matched a row.
type Store interface {
	CreatePhoto(ctx context.Context, p domain.Photo) (domain.Photo, error)
	GetPhoto(ctx context.Context, id int64) (domain.Photo, bool, error)
	// ListApproved returns approved photos newest first plus the total count.
	// An empty tag lists every event.
	ListApproved(ctx context.Context, tag domain.EventTag, limit, offset int) ([]domain.Photo, int, error)
	ListPending(ctx context.Context) ([]domain.Photo, error)
	ApprovePhoto(ctx context.Context, id int64) (bool, error)
	UpdateCaption(ctx context.Context, id int64, name, message string) (bool, error)
	DeletePhoto(ctx context.Context, id int64) (domain.Photo, bool, error)
	// DeleteApprovedPhoto deletes id only while it is approved.
	DeleteApprovedPhoto(ctx context.Context, id int64) (domain.Photo, bool, error)
}
