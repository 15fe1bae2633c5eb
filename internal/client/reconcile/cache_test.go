package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

func photo(id int64) domain.PhotoResponse {
	return domain.PhotoResponse{Photo: domain.Photo{
		ID:         id,
		Name:       "guest",
		EventTag:   domain.EventSanding,
		IsApproved: true,
	}}
}

func ids(items []Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.Photo.ID)
	}
	return out
}

func TestMergePageIsIdempotentAndKeepsFirstSeenOrder(t *testing.T) {
	c := New(Config{Clock: NewManualClock(time.Unix(0, 0))})

	page1 := []domain.PhotoResponse{photo(5), photo(4), photo(3)}
	c.MergePage(domain.EventSanding, page1)
	c.MergePage(domain.EventSanding, page1)
	require.Equal(t, []int64{5, 4, 3}, ids(c.Items(domain.EventSanding)))

	// A new upload shifted the next page by one, so 3 comes back again.
	c.MergePage(domain.EventSanding, []domain.PhotoResponse{photo(3), photo(2), photo(1)})
	require.Equal(t, []int64{5, 4, 3, 2, 1}, ids(c.Items(domain.EventSanding)))
	require.Empty(t, c.Items(domain.EventNikah))
}

func TestAddPrependsAndDebouncesRefetch(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var calls atomic.Int32
	var gotLimit int
	c := New(Config{
		Clock: clock,
		Fetch: func(_ context.Context, tag domain.EventTag, limit, offset int) ([]domain.PhotoResponse, error) {
			calls.Add(1)
			gotLimit = limit
			require.Equal(t, domain.EventSanding, tag)
			require.Equal(t, 0, offset)
			return []domain.PhotoResponse{photo(11), photo(10), photo(2), photo(1)}, nil
		},
	})
	c.MergePage(domain.EventSanding, []domain.PhotoResponse{photo(2), photo(1)})

	require.True(t, c.Add(photo(10)))
	require.Equal(t, []int64{10, 2, 1}, ids(c.Items(domain.EventSanding)))

	clock.Advance(4 * time.Second)
	require.True(t, c.Add(photo(11)))
	clock.Advance(4 * time.Second)
	require.EqualValues(t, 0, calls.Load(), "second add must reset the debounce window")

	clock.Advance(time.Second)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, DefaultPageSize, gotLimit)
	require.Equal(t, []int64{11, 10, 2, 1}, ids(c.Items(domain.EventSanding)))
}

func TestAddSkipsPendingPhotos(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{Clock: clock})
	p := photo(1)
	p.IsApproved = false
	require.False(t, c.Add(p))
	require.Empty(t, c.Items(domain.EventSanding))
	require.Zero(t, clock.Pending())
}

func TestRefetchServerWins(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{
		Clock: clock,
		Fetch: func(context.Context, domain.EventTag, int, int) ([]domain.PhotoResponse, error) {
			// The optimistic photo was rejected after all.
			return []domain.PhotoResponse{photo(1)}, nil
		},
	})
	c.MergePage(domain.EventSanding, []domain.PhotoResponse{photo(1)})
	c.Add(photo(9))
	clock.Advance(DefaultRefetchDelay)
	require.Equal(t, []int64{1}, ids(c.Items(domain.EventSanding)))
}

func TestRefetchFailureKeepsList(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{
		Clock: clock,
		Fetch: func(context.Context, domain.EventTag, int, int) ([]domain.PhotoResponse, error) {
			return nil, errors.New("offline")
		},
	})
	c.Add(photo(9))
	clock.Advance(DefaultRefetchDelay)
	require.Equal(t, []int64{9}, ids(c.Items(domain.EventSanding)))
}

func TestEditPatchesInPlace(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{Clock: clock})
	c.MergePage(domain.EventSanding, []domain.PhotoResponse{photo(2), photo(1)})

	require.True(t, c.Edit(1, "Aina", "Tahniah"))
	items := c.Items(domain.EventSanding)
	require.Equal(t, []int64{2, 1}, ids(items))
	require.Equal(t, "Aina", items[1].Photo.Name)
	require.Equal(t, "Tahniah", items[1].Photo.Message)
	require.Zero(t, clock.Pending(), "edits never schedule a refetch")
	require.False(t, c.Edit(99, "x", ""))
}

func TestRemoveLifecycle(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var changes atomic.Int32
	c := New(Config{Clock: clock, OnChange: func(domain.EventTag) { changes.Add(1) }})
	c.MergePage(domain.EventSanding, []domain.PhotoResponse{photo(2), photo(1)})
	require.Equal(t, StateVisible, c.State(domain.EventSanding, 1))

	require.True(t, c.Remove(1))
	require.Equal(t, StateRemoving, c.State(domain.EventSanding, 1))
	require.Len(t, c.Items(domain.EventSanding), 2)

	clock.Advance(299 * time.Millisecond)
	require.Equal(t, StateRemoving, c.State(domain.EventSanding, 1))

	clock.Advance(time.Millisecond)
	require.Equal(t, StateGone, c.State(domain.EventSanding, 1))
	require.Equal(t, []int64{2}, ids(c.Items(domain.EventSanding)))
	require.EqualValues(t, 3, changes.Load())

	require.False(t, c.Remove(1))
}

func TestManualClockStop(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())
	clock.Advance(time.Minute)
	require.False(t, fired)
	require.True(t, time.Unix(60, 0).Equal(clock.Now()))
}

func TestItemStateString(t *testing.T) {
	require.Equal(t, "visible", StateVisible.String())
	require.Equal(t, "removing", StateRemoving.String())
	require.Equal(t, "gone", StateGone.String())
}

// gallery serves newest-first pages of n approved photos and records the
// ranges it was asked for.
type gallery struct {
	n     int
	calls [][2]int
}

func (g *gallery) fetch(_ context.Context, _ domain.EventTag, limit, offset int) ([]domain.PhotoResponse, error) {
	g.calls = append(g.calls, [2]int{limit, offset})
	limit = min(limit, MaxFetchLimit)
	var out []domain.PhotoResponse
	for i := offset; i < g.n && len(out) < limit; i++ {
		out = append(out, photo(int64(g.n-i)))
	}
	return out, nil
}

func TestLoadMoreMergesFollowingPages(t *testing.T) {
	g := &gallery{n: 45}
	c := New(Config{Clock: NewManualClock(time.Unix(0, 0)), Fetch: g.fetch})

	var got []int
	for i := 0; i < 3; i++ {
		n, err := c.LoadMore(context.Background(), domain.EventSanding)
		require.NoError(t, err)
		got = append(got, n)
	}
	require.Equal(t, []int{20, 20, 5}, got)
	require.Equal(t, [][2]int{{20, 0}, {20, 20}, {20, 40}}, g.calls)

	items := c.Items(domain.EventSanding)
	require.Len(t, items, 45)
	require.Equal(t, int64(45), items[0].Photo.ID)
	require.Equal(t, int64(1), items[44].Photo.ID)

	_, err := New(Config{}).LoadMore(context.Background(), domain.EventSanding)
	require.Error(t, err)
}

func TestRefreshFetchesLongRangesInPages(t *testing.T) {
	g := &gallery{n: 150}
	c := New(Config{Clock: NewManualClock(time.Unix(0, 0)), Fetch: g.fetch})
	for i := 0; i < 8; i++ {
		_, err := c.LoadMore(context.Background(), domain.EventSanding)
		require.NoError(t, err)
	}
	require.Len(t, c.Items(domain.EventSanding), 150)

	g.calls = nil
	c.Refresh(context.Background(), domain.EventSanding)
	require.Equal(t, [][2]int{{100, 0}, {50, 100}}, g.calls)
	require.Len(t, c.Items(domain.EventSanding), 150, "nothing past the server's page cap is dropped")
}

func TestLateRefetchKeepsNewerSchedule(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{
		Clock: clock,
		Fetch: func(context.Context, domain.EventTag, int, int) ([]domain.PhotoResponse, error) {
			return nil, nil
		},
	})
	require.True(t, c.Add(photo(1)))
	stale := c.refetch[domain.EventSanding].gen
	require.True(t, c.Add(photo(2)))

	// The first timer fires after the second add already replaced it.
	c.scheduledRefresh(domain.EventSanding, stale)
	current, ok := c.refetch[domain.EventSanding]
	require.True(t, ok, "the newer refetch must stay registered")
	require.NotEqual(t, stale, current.gen)

	require.True(t, c.Add(photo(3)))
	require.Equal(t, 1, clock.Pending(), "the newer timer was still stoppable")
}
