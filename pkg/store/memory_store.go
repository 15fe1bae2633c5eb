package store

import (
	"context"
	"sort"
	"sync"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// MemoryStore keeps photos in-process for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	photos map[int64]domain.Photo
	nextID int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{photos: make(map[int64]domain.Photo)}
}

// CreatePhoto assigns the next id; ids are never reused.
func (m *MemoryStore) CreatePhoto(_ context.Context, p domain.Photo) (domain.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.photos[p.ID] = p
	return p, nil
}

// GetPhoto returns one photo by id.
func (m *MemoryStore) GetPhoto(_ context.Context, id int64) (domain.Photo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	return p, ok, nil
}

// ListApproved returns a page of approved photos, newest first.
func (m *MemoryStore) ListApproved(_ context.Context, tag domain.EventTag, limit, offset int) ([]domain.Photo, int, error) {
	m.mu.RLock()
	matched := make([]domain.Photo, 0, len(m.photos))
	for _, p := range m.photos {
		if p.IsApproved && (tag == "" || p.EventTag == tag) {
			matched = append(matched, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if offset >= total {
		return []domain.Photo{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// ListPending returns photos awaiting review, oldest first.
func (m *MemoryStore) ListPending(_ context.Context) ([]domain.Photo, error) {
	m.mu.RLock()
	res := make([]domain.Photo, 0)
	for _, p := range m.photos {
		if !p.IsApproved {
			res = append(res, p)
		}
	}
	m.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ApprovePhoto marks id approved.
func (m *MemoryStore) ApprovePhoto(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return false, nil
	}
	p.IsApproved = true
	m.photos[id] = p
	return true, nil
}

// UpdateCaption rewrites name and message only.
func (m *MemoryStore) UpdateCaption(_ context.Context, id int64, name, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return false, nil
	}
	p.Name = name
	p.Message = message
	m.photos[id] = p
	return true, nil
}

// DeletePhoto removes id and returns the deleted row.
func (m *MemoryStore) DeletePhoto(_ context.Context, id int64) (domain.Photo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if ok {
		delete(m.photos, id)
	}
	return p, ok, nil
}

// DeleteApprovedPhoto removes id only while it is approved.
func (m *MemoryStore) DeleteApprovedPhoto(_ context.Context, id int64) (domain.Photo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok || !p.IsApproved {
		return domain.Photo{}, false, nil
	}
	delete(m.photos, id)
	return p, true, nil
}
