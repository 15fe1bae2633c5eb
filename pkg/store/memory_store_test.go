package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

func TestMemoryStoreIDsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	first, _ := s.CreatePhoto(ctx, domain.Photo{Name: "a"})
	if _, ok, _ := s.DeletePhoto(ctx, first.ID); !ok {
		t.Fatalf("expected delete to find photo")
	}
	second, _ := s.CreatePhoto(ctx, domain.Photo{Name: "b"})
	if second.ID <= first.ID {
		t.Fatalf("expected monotonic id, got %d after %d", second.ID, first.ID)
	}
}

func TestMemoryStoreListApprovedPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 12, 6, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		p, _ := s.CreatePhoto(ctx, domain.Photo{
			Name:      "guest",
			EventTag:  domain.EventSanding,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if i != 2 {
			_, _ = s.ApprovePhoto(ctx, p.ID)
		}
	}
	other, _ := s.CreatePhoto(ctx, domain.Photo{EventTag: domain.EventNikah, Timestamp: base})
	_, _ = s.ApprovePhoto(ctx, other.ID)

	page, total, err := s.ListApproved(ctx, domain.EventSanding, 2, 0)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if total != 4 || len(page) != 2 {
		t.Fatalf("expected total=4 len=2, got total=%d len=%d", total, len(page))
	}
	if page[0].ID != 5 || page[1].ID != 4 {
		t.Fatalf("expected newest first, got %d,%d", page[0].ID, page[1].ID)
	}

	page, _, _ = s.ListApproved(ctx, domain.EventSanding, 2, 2)
	if len(page) != 2 || page[0].ID != 2 || page[1].ID != 1 {
		t.Fatalf("unexpected second page: %+v", page)
	}
	page, _, _ = s.ListApproved(ctx, domain.EventSanding, 2, 10)
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end")
	}
	if _, total, _ := s.ListApproved(ctx, "", 100, 0); total != 5 {
		t.Fatalf("expected all-events total 5, got %d", total)
	}
}

func TestMemoryStoreDeleteApprovedOnlyMatchesApproved(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p, _ := s.CreatePhoto(ctx, domain.Photo{Name: "pending"})
	if _, ok, _ := s.DeleteApprovedPhoto(ctx, p.ID); ok {
		t.Fatalf("pending photo must not match approved delete")
	}
	if _, ok, _ := s.GetPhoto(ctx, p.ID); !ok {
		t.Fatalf("pending photo should remain")
	}
	_, _ = s.ApprovePhoto(ctx, p.ID)
	if got, ok, _ := s.DeleteApprovedPhoto(ctx, p.ID); !ok || got.Name != "pending" {
		t.Fatalf("expected approved delete to return the row")
	}
}

func TestMemoryStoreConcurrentApproveAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p, _ := s.CreatePhoto(ctx, domain.Photo{Name: "race"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _, _ = s.ApprovePhoto(ctx, p.ID) }()
		go func() { defer wg.Done(); _, _, _ = s.DeletePhoto(ctx, p.ID) }()
	}
	wg.Wait()

	if _, ok, _ := s.GetPhoto(ctx, p.ID); ok {
		t.Fatalf("deleted photo must stay deleted")
	}
	if found, _ := s.ApprovePhoto(ctx, p.ID); found {
		t.Fatalf("approve after delete must not resurrect the photo")
	}
}
