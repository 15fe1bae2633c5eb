// Package reconcile keeps the guest's view of the gallery consistent with
// optimistic local changes until the server's answer arrives.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

const (
	DefaultRefetchDelay = 5 * time.Second
	DefaultRemoveDelay  = 300 * time.Millisecond
	DefaultPageSize     = 20
	// MaxFetchLimit is the largest page the server returns; longer ranges are
	// fetched in several requests.
	MaxFetchLimit = 100
)

// ItemState is where an item is in its removal lifecycle.
type ItemState int

const (
	StateGone ItemState = iota
	StateVisible
	StateRemoving
)

func (s ItemState) String() string {
	switch s {
	case StateVisible:
		return "visible"
	case StateRemoving:
		return "removing"
	default:
		return "gone"
	}
}

// Item is one cached photo.
type Item struct {
	Photo domain.PhotoResponse
	State ItemState
}

// Fetcher loads approved photos for one event, newest first.
type Fetcher func(ctx context.Context, tag domain.EventTag, limit, offset int) ([]domain.PhotoResponse, error)

// Config configures a Cache.
type Config struct {
	Fetch        Fetcher
	Clock        Clock
	RefetchDelay time.Duration
	RemoveDelay  time.Duration
	PageSize     int
	// OnChange is called after a list changes, outside the cache lock.
	OnChange func(tag domain.EventTag)
}

// Cache holds the merged pages per event tag.
type Cache struct {
	fetch        Fetcher
	clock        Clock
	refetchDelay time.Duration
	removeDelay  time.Duration
	pageSize     int
	onChange     func(tag domain.EventTag)

	mu       sync.Mutex
	lists    map[domain.EventTag][]*Item
	refetch  map[domain.EventTag]scheduled
	removals map[int64]Timer
	gen      uint64
}

// scheduled is a pending refetch. gen tells a timer that fired late whether
// it is still the one registered.
type scheduled struct {
	timer Timer
	gen   uint64
}

// New builds an empty cache.
func New(cfg Config) *Cache {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.RefetchDelay <= 0 {
		cfg.RefetchDelay = DefaultRefetchDelay
	}
	if cfg.RemoveDelay <= 0 {
		cfg.RemoveDelay = DefaultRemoveDelay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Cache{
		fetch:        cfg.Fetch,
		clock:        cfg.Clock,
		refetchDelay: cfg.RefetchDelay,
		removeDelay:  cfg.RemoveDelay,
		pageSize:     cfg.PageSize,
		onChange:     cfg.OnChange,
		lists:        make(map[domain.EventTag][]*Item),
		refetch:      make(map[domain.EventTag]scheduled),
		removals:     make(map[int64]Timer),
	}
}

// MergePage appends photos not yet cached, keeping first-seen order. Known
// ids are refreshed in place. Merging the same page twice changes nothing.
func (c *Cache) MergePage(tag domain.EventTag, photos []domain.PhotoResponse) {
	c.mu.Lock()
	list := c.lists[tag]
	index := indexByID(list)
	for _, p := range photos {
		if i, ok := index[p.ID]; ok {
			list[i].Photo = p
			continue
		}
		index[p.ID] = len(list)
		list = append(list, &Item{Photo: p, State: StateVisible})
	}
	c.lists[tag] = list
	c.mu.Unlock()
	c.changed(tag)
}

// Replace swaps the cached list for the server's copy.
func (c *Cache) Replace(tag domain.EventTag, photos []domain.PhotoResponse) {
	c.mu.Lock()
	list := make([]*Item, 0, len(photos))
	seen := make(map[int64]struct{}, len(photos))
	for _, p := range photos {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		list = append(list, &Item{Photo: p, State: StateVisible})
	}
	c.lists[tag] = list
	c.mu.Unlock()
	c.changed(tag)
}

// Add shows a freshly submitted photo at the top of its event and schedules
// an authoritative refetch. Repeated adds inside the delay push the refetch
// back. Pending photos are not public and are not added.
func (c *Cache) Add(photo domain.PhotoResponse) bool {
	if !photo.IsApproved {
		return false
	}
	tag := photo.EventTag
	c.mu.Lock()
	list := c.lists[tag]
	if _, ok := indexByID(list)[photo.ID]; !ok {
		list = append([]*Item{{Photo: photo, State: StateVisible}}, list...)
		c.lists[tag] = list
	}
	if s, ok := c.refetch[tag]; ok {
		s.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.refetch[tag] = scheduled{
		timer: c.clock.AfterFunc(c.refetchDelay, func() { c.scheduledRefresh(tag, gen) }),
		gen:   gen,
	}
	c.mu.Unlock()
	c.changed(tag)
	return true
}

// Edit patches the caption of id wherever it is cached. No refetch.
func (c *Cache) Edit(id int64, name, message string) bool {
	c.mu.Lock()
	var touched []domain.EventTag
	for tag, list := range c.lists {
		for _, it := range list {
			if it.Photo.ID == id {
				it.Photo.Name = name
				it.Photo.Message = message
				touched = append(touched, tag)
			}
		}
	}
	c.mu.Unlock()
	for _, tag := range touched {
		c.changed(tag)
	}
	return len(touched) > 0
}

// Remove marks id as removing and splices it out after the remove delay.
func (c *Cache) Remove(id int64) bool {
	c.mu.Lock()
	var touched []domain.EventTag
	for tag, list := range c.lists {
		for _, it := range list {
			if it.Photo.ID == id && it.State == StateVisible {
				it.State = StateRemoving
				touched = append(touched, tag)
			}
		}
	}
	if len(touched) > 0 {
		if t, ok := c.removals[id]; ok {
			t.Stop()
		}
		c.removals[id] = c.clock.AfterFunc(c.removeDelay, func() { c.splice(id) })
	}
	c.mu.Unlock()
	for _, tag := range touched {
		c.changed(tag)
	}
	return len(touched) > 0
}

func (c *Cache) splice(id int64) {
	c.mu.Lock()
	delete(c.removals, id)
	var touched []domain.EventTag
	for tag, list := range c.lists {
		out := list[:0]
		removed := false
		for _, it := range list {
			if it.Photo.ID == id && it.State == StateRemoving {
				removed = true
				continue
			}
			out = append(out, it)
		}
		if removed {
			c.lists[tag] = out
			touched = append(touched, tag)
		}
	}
	c.mu.Unlock()
	for _, tag := range touched {
		c.changed(tag)
	}
}

func (c *Cache) scheduledRefresh(tag domain.EventTag, gen uint64) {
	c.mu.Lock()
	if s, ok := c.refetch[tag]; ok && s.gen == gen {
		delete(c.refetch, tag)
	}
	c.mu.Unlock()
	c.Refresh(context.Background(), tag)
}

// Refresh refetches the loaded range of tag and replaces the cached list.
// Ranges longer than MaxFetchLimit are fetched page by page. A failed fetch
// keeps the current list.
func (c *Cache) Refresh(ctx context.Context, tag domain.EventTag) {
	c.mu.Lock()
	want := max(len(c.lists[tag]), c.pageSize)
	c.mu.Unlock()
	if c.fetch == nil {
		return
	}
	var photos []domain.PhotoResponse
	for offset := 0; offset < want; {
		limit := min(want-offset, MaxFetchLimit)
		page, err := c.fetch(ctx, tag, limit, offset)
		if err != nil {
			slog.Warn("gallery refetch failed", "event_tag", tag, "offset", offset, "err", err)
			return
		}
		photos = append(photos, page...)
		if len(page) < limit {
			break
		}
		offset += len(page)
	}
	c.Replace(tag, photos)
}

// LoadMore fetches the page after the visible items of tag and merges it.
// It returns how many photos the server sent; fewer than the page size means
// the end was reached.
func (c *Cache) LoadMore(ctx context.Context, tag domain.EventTag) (int, error) {
	if c.fetch == nil {
		return 0, errors.New("cache has no fetcher")
	}
	c.mu.Lock()
	offset := 0
	for _, it := range c.lists[tag] {
		if it.State == StateVisible {
			offset++
		}
	}
	c.mu.Unlock()

	page, err := c.fetch(ctx, tag, c.pageSize, offset)
	if err != nil {
		return 0, err
	}
	c.MergePage(tag, page)
	return len(page), nil
}

// PageSize is the number of photos LoadMore asks for.
func (c *Cache) PageSize() int {
	return c.pageSize
}

// Items returns a snapshot of tag's list, including items being removed.
func (c *Cache) Items(tag domain.EventTag) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.lists[tag]
	out := make([]Item, 0, len(list))
	for _, it := range list {
		out = append(out, *it)
	}
	return out
}

// State reports the lifecycle state of id in tag.
func (c *Cache) State(tag domain.EventTag, id int64) ItemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.lists[tag] {
		if it.Photo.ID == id {
			return it.State
		}
	}
	return StateGone
}

func (c *Cache) changed(tag domain.EventTag) {
	if c.onChange != nil {
		c.onChange(tag)
	}
}

func indexByID(list []*Item) map[int64]int {
	index := make(map[int64]int, len(list))
	for i, it := range list {
		index[it.Photo.ID] = i
	}
	return index
}
