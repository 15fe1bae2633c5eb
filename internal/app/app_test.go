package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/moderation"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/ownership"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/audit"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/auth"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/store"
)

type memObjects struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objs: map[string][]byte{}}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = data
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objs)
}

type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAudit) Record(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type stubClassifier struct {
	reply string
	err   error
}

func (s stubClassifier) GenerateText(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

func (s stubClassifier) GenerateFromImage(context.Context, string, string, []byte, string) (string, error) {
	return s.reply, s.err
}

type failingCreateStore struct {
	store.Store
}

func (failingCreateStore) CreatePhoto(context.Context, domain.Photo) (domain.Photo, error) {
	return domain.Photo{}, errors.New("db down")
}

type harness struct {
	app     *App
	store   *store.MemoryStore
	objects *memObjects
	audit   *memAudit
	now     time.Time
}

func newHarness(t *testing.T, text, image stubClassifier) *harness {
	t.Helper()
	h := &harness{
		store:   store.NewMemoryStore(),
		objects: newMemObjects(),
		audit:   &memAudit{},
		now:     time.Date(2025, 12, 6, 12, 0, 0, 0, time.UTC),
	}
	pass, err := auth.NewGuestPass("kenduri", "")
	if err != nil {
		t.Fatalf("guest pass: %v", err)
	}
	a, err := New(Config{
		Store:     h.store,
		Objects:   h.objects,
		Audit:     h.audit,
		Moderator: moderation.NewEngine(text, image, time.Second),
		GuestPass: pass,
		Now:       func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	h.app = a
	return h
}

var (
	safe   = stubClassifier{reply: `{"verdict":"safe","reason":"ok"}`}
	unsafe = stubClassifier{reply: `{"verdict":"unsafe","reason":"nudity"}`}
	broken = stubClassifier{err: errors.New("upstream 503")}
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 10 {
		for x := 0; x < w; x += 10 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func validInput(t *testing.T) SubmitInput {
	return SubmitInput{
		Image:    pngBytes(t, 400, 300),
		Name:     "Aina",
		Message:  "Selamat pengantin baru!",
		EventTag: "Sanding",
		Pass:     "kenduri",
		Format:   "image/png",
		Width:    400,
		Height:   300,
	}
}

func TestSubmitSafeIsApprovedWithToken(t *testing.T) {
	h := newHarness(t, safe, safe)
	resp, err := h.app.Submit(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.IsApproved {
		t.Fatalf("expected approved photo, got %+v", resp)
	}
	if resp.Token == "" || resp.URL != "https://cdn.test/"+resp.ObjectKey {
		t.Fatalf("expected token and url, got %+v", resp)
	}
	if !resp.TakenAt.Equal(h.now) || !resp.Timestamp.Equal(h.now) {
		t.Fatalf("expected server timestamps, got %+v", resp.Photo)
	}
	stored, ok, _ := h.store.GetPhoto(context.Background(), resp.ID)
	if !ok || stored.TokenHash != ownership.HashToken(resp.Token) {
		t.Fatalf("token must be bound to the stored row")
	}
	if len(h.audit.entries) != 1 || h.audit.entries[0].Outcome != audit.OutcomeApproved {
		t.Fatalf("expected one approved audit entry, got %+v", h.audit.entries)
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SubmitInput)
		wantErr error
	}{
		{"wrong pass", func(in *SubmitInput) { in.Pass = "nope" }, ErrUnauthorized},
		{"empty pass", func(in *SubmitInput) { in.Pass = "" }, ErrUnauthorized},
		{"unknown event", func(in *SubmitInput) { in.EventTag = "Reunion" }, ErrInvalidEvent},
		{"event tag is case sensitive", func(in *SubmitInput) { in.EventTag = "sanding" }, ErrInvalidEvent},
		{"missing name", func(in *SubmitInput) { in.Name = "  " }, ErrInvalidInput},
		{"not an image", func(in *SubmitInput) { in.Image = []byte("hello") }, ErrInvalidImage},
		{"format mismatch", func(in *SubmitInput) { in.Format = "image/jpeg" }, ErrInvalidImage},
		{"dimension mismatch", func(in *SubmitInput) { in.Width = 800 }, ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, safe, safe)
			in := validInput(t)
			tt.mutate(&in)
			_, err := h.app.Submit(context.Background(), in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if h.objects.count() != 0 {
				t.Fatalf("rejected submission must not store bytes")
			}
		})
	}
}

func TestSubmitTooLarge(t *testing.T) {
	h := newHarness(t, safe, safe)
	h.app.maxUploadBytes = 10
	_, err := h.app.Submit(context.Background(), validInput(t))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestSubmitUnsafeIsRejectedAndDiscarded(t *testing.T) {
	h := newHarness(t, safe, unsafe)
	_, err := h.app.Submit(context.Background(), validInput(t))
	if !errors.Is(err, ErrModerationRejected) {
		t.Fatalf("expected ErrModerationRejected, got %v", err)
	}
	if h.objects.count() != 0 {
		t.Fatalf("rejected object must be discarded")
	}
	pending, _ := h.store.ListPending(context.Background())
	page, _ := h.app.ListApproved(context.Background(), ListQuery{})
	if len(pending) != 0 || page.Total != 0 {
		t.Fatalf("rejected photo must not remain stored")
	}
	if len(h.audit.entries) != 1 || h.audit.entries[0].Outcome != audit.OutcomeRejected {
		t.Fatalf("expected rejected audit entry, got %+v", h.audit.entries)
	}
}

func TestSubmitClassifierFailureGoesToReview(t *testing.T) {
	h := newHarness(t, safe, broken)
	resp, err := h.app.Submit(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.IsApproved {
		t.Fatalf("unsure photo must stay pending")
	}
	pending, err := h.app.ListPending(context.Background())
	if err != nil || len(pending) != 1 || pending[0].ID != resp.ID {
		t.Fatalf("expected photo in review queue, got %+v err=%v", pending, err)
	}
	if pending[0].Token != "" {
		t.Fatalf("token must never be re-exposed")
	}
	page, _ := h.app.ListApproved(context.Background(), ListQuery{})
	if page.Total != 0 {
		t.Fatalf("pending photo must not be public")
	}
}

func TestSubmitInsertFailureDiscardsObject(t *testing.T) {
	h := newHarness(t, safe, safe)
	h.app.store = failingCreateStore{Store: h.store}
	if _, err := h.app.Submit(context.Background(), validInput(t)); err == nil {
		t.Fatalf("expected insert failure")
	}
	if h.objects.count() != 0 {
		t.Fatalf("object must be deleted when the insert fails")
	}
}

func TestEditAndDeleteWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, safe, safe)
	resp, err := h.app.Submit(ctx, validInput(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.now = h.now.Add(59 * time.Minute)
	edited, err := h.app.Edit(ctx, EditInput{ID: resp.ID, Token: resp.Token, Name: "Aina & Family", Message: ""})
	if err != nil {
		t.Fatalf("edit within window: %v", err)
	}
	if edited.Name != "Aina & Family" || edited.Message != "" {
		t.Fatalf("unexpected edit result %+v", edited)
	}

	if _, err := h.app.Edit(ctx, EditInput{ID: resp.ID, Token: "wrong", Name: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for wrong token, got %v", err)
	}
	if _, err := h.app.Edit(ctx, EditInput{ID: 999, Token: resp.Token, Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	h.now = h.now.Add(2 * time.Minute)
	err = h.app.Delete(ctx, resp.ID, resp.Token)
	if !errors.Is(err, ErrForbidden) || !errors.Is(err, ownership.ErrEditWindowClosed) {
		t.Fatalf("expected closed window, got %v", err)
	}
	if _, ok, _ := h.store.GetPhoto(ctx, resp.ID); !ok {
		t.Fatalf("photo must survive a rejected delete")
	}
}

func TestOwnerDeleteRemovesRowAndObject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, safe, safe)
	resp, err := h.app.Submit(ctx, validInput(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.app.Delete(ctx, resp.ID, resp.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := h.store.GetPhoto(ctx, resp.ID); ok {
		t.Fatalf("photo should be deleted")
	}
	if h.objects.count() != 0 {
		t.Fatalf("object should be deleted")
	}
}

func TestListApprovedPaging(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, safe, safe)
	var ids []int64
	for i := 0; i < 5; i++ {
		resp, err := h.app.Submit(ctx, validInput(t))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids = append(ids, resp.ID)
		h.now = h.now.Add(time.Minute)
	}

	page, err := h.app.ListApproved(ctx, ListQuery{EventTag: "Sanding", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || !page.HasMore || len(page.Photos) != 2 || page.Photos[0].ID != ids[4] {
		t.Fatalf("unexpected first page %+v", page)
	}
	page, _ = h.app.ListApproved(ctx, ListQuery{EventTag: "Sanding", Limit: 2, Offset: 4})
	if page.HasMore || len(page.Photos) != 1 || page.Photos[0].ID != ids[0] {
		t.Fatalf("unexpected last page %+v", page)
	}
	page, _ = h.app.ListApproved(ctx, ListQuery{Limit: 1000})
	if page.Limit != MaxPageSize {
		t.Fatalf("limit should clamp to %d, got %d", MaxPageSize, page.Limit)
	}
	if _, err := h.app.ListApproved(ctx, ListQuery{EventTag: "Nope"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestAdminActionsAndUnapprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, safe, broken)
	a, _ := h.app.Submit(ctx, validInput(t))
	b, _ := h.app.Submit(ctx, validInput(t))

	res, err := h.app.AdminAction(ctx, "approve", []int64{a.ID, 404})
	if err != nil {
		t.Fatalf("admin action: %v", err)
	}
	if res.OK() || len(res.Succeeded) != 1 || res.Failed[0].ID != 404 {
		t.Fatalf("unexpected bulk result %+v", res)
	}
	if _, err := h.app.AdminAction(ctx, "reject", []int64{a.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if err := h.app.Unapprove(ctx, b.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("unapprove of pending should conflict, got %v", err)
	}
	if err := h.app.Unapprove(ctx, a.ID); err != nil {
		t.Fatalf("unapprove: %v", err)
	}
	if err := h.app.Unapprove(ctx, a.ID); err != nil {
		t.Fatalf("unapprove of a deleted photo should be a no-op, got %v", err)
	}

	entries, err := h.app.RecentAudit(ctx, 10)
	if err != nil || len(entries) != 2 || entries[0].PhotoID != b.ID {
		t.Fatalf("unexpected audit entries %+v err=%v", entries, err)
	}
}
