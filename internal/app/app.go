package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/approval"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/capture"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/moderation"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/ownership"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/util"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/audit"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/auth"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/storage"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/store"
)

const (
	MaxNameRunes    = 100
	MaxMessageRunes = 500
	DefaultPageSize = 20
	MaxPageSize     = 100

	defaultMaxUploadBytes = 10 << 20
	defaultPresignExpiry  = 24 * time.Hour
)

// Config holds runtime configuration for the core application.
type Config struct {
	Store     store.Store
	Objects   storage.ObjectStore
	Audit     audit.Log
	Moderator *moderation.Engine
	GuestPass *auth.GuestPass
	Catalog   *domain.Catalog

	MaxUploadBytes int64
	// PublicBaseURL, when set, is used instead of presigned URLs.
	PublicBaseURL string
	PresignExpiry time.Duration
	Now           func() time.Time
}

// App is the gallery service: submission, self-service edits and moderation queue.
type App struct {
	store          store.Store
	objects        storage.ObjectStore
	audit          audit.Log
	moderator      *moderation.Engine
	guestPass      *auth.GuestPass
	catalog        *domain.Catalog
	machine        *approval.Machine
	maxUploadBytes int64
	publicBaseURL  string
	presignExpiry  time.Duration
	now            func() time.Time
}

// New constructs the application from its dependencies.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store is required")
	}
	if cfg.GuestPass == nil {
		return nil, auth.ErrGuestPassNotConfigured
	}
	if cfg.Catalog == nil {
		cfg.Catalog = domain.MustDefaultCatalog()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.Nop{}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = defaultPresignExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:          cfg.Store,
		objects:        cfg.Objects,
		audit:          cfg.Audit,
		moderator:      cfg.Moderator,
		guestPass:      cfg.GuestPass,
		catalog:        cfg.Catalog,
		machine:        approval.New(cfg.Store, cfg.Objects),
		maxUploadBytes: cfg.MaxUploadBytes,
		publicBaseURL:  strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		presignExpiry:  cfg.PresignExpiry,
		now:            cfg.Now,
	}, nil
}

// MaxUploadBytes is the configured per-image limit.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

// SubmitInput is one guest submission.
type SubmitInput struct {
	Image    []byte
	Name     string
	Message  string
	EventTag string
	Pass     string
	// Format is the MIME type the client encoded to; empty trusts the bytes.
	Format  string
	TakenAt time.Time
	Width   int
	Height  int
}

// Submit validates, stores and moderates a photo. The returned photo
// reflects the post-moderation state and carries the ownership token.
func (a *App) Submit(ctx context.Context, in SubmitInput) (domain.PhotoResponse, error) {
	logger := util.LoggerFromContext(ctx)
	if !a.guestPass.Check(in.Pass) {
		return domain.PhotoResponse{}, ErrUnauthorized
	}
	event, ok := a.catalog.Lookup(in.EventTag)
	if !ok {
		return domain.PhotoResponse{}, fmt.Errorf("%w: %q", ErrInvalidEvent, in.EventTag)
	}
	if len(in.Image) == 0 {
		return domain.PhotoResponse{}, fmt.Errorf("%w: image is required", ErrInvalidImage)
	}
	if int64(len(in.Image)) > a.maxUploadBytes {
		return domain.PhotoResponse{}, ErrPayloadTooLarge
	}
	name, message, err := validateCaption(in.Name, in.Message)
	if err != nil {
		return domain.PhotoResponse{}, err
	}
	mime, ext, width, height, err := a.validateImage(in)
	if err != nil {
		return domain.PhotoResponse{}, err
	}

	now := a.now().UTC()
	takenAt := in.TakenAt
	if takenAt.IsZero() {
		takenAt = now
	}
	key := "photos/" + uuid.NewString() + "." + ext
	if err := a.objects.Put(ctx, key, bytes.NewReader(in.Image), int64(len(in.Image)), mime); err != nil {
		return domain.PhotoResponse{}, fmt.Errorf("store image: %w", err)
	}

	token := ownership.NewToken()
	photo, err := a.store.CreatePhoto(ctx, domain.Photo{
		ObjectKey: key,
		Name:      name,
		Message:   message,
		EventTag:  event.Tag,
		Timestamp: now,
		TakenAt:   takenAt.UTC(),
		Width:     width,
		Height:    height,
		TokenHash: ownership.HashToken(token),
	})
	if err != nil {
		if derr := a.objects.Delete(ctx, key); derr != nil {
			logger.Warn("discard orphan object failed", "object_key", key, "err", derr)
		}
		return domain.PhotoResponse{}, fmt.Errorf("save photo: %w", err)
	}

	verdicts := a.moderator.Moderate(ctx, moderation.Input{
		Text:  strings.TrimSpace(name + "\n" + message),
		Image: in.Image,
		MIME:  mime,
	})
	state, err := a.machine.ApplyVerdict(ctx, photo.ID, verdicts.Overall)
	if err != nil {
		if verdicts.Overall == domain.VerdictUnsafe {
			return domain.PhotoResponse{}, fmt.Errorf("discard rejected photo: %w", err)
		}
		logger.Error("apply verdict failed; photo left pending", "photo_id", photo.ID, "err", err)
		state = approval.StatePending
	}
	a.recordAudit(ctx, photo, verdicts, state)

	if state == approval.StateDeleted {
		logger.Info("photo rejected by moderation", "photo_id", photo.ID, "event_tag", photo.EventTag)
		return domain.PhotoResponse{}, ErrModerationRejected
	}
	photo.IsApproved = state == approval.StateApproved
	resp, err := a.respond(ctx, photo)
	if err != nil {
		return domain.PhotoResponse{}, err
	}
	resp.Token = token
	logger.Info("photo submitted", "photo_id", photo.ID, "event_tag", photo.EventTag, "state", state)
	return resp, nil
}

func (a *App) validateImage(in SubmitInput) (mime, ext string, width, height int, err error) {
	mime, width, height, err = capture.Inspect(in.Image)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	ext, ok := capture.AcceptedFormats[mime]
	if !ok {
		return "", "", 0, 0, fmt.Errorf("%w: format %s is not accepted", ErrInvalidImage, mime)
	}
	if in.Format != "" && !strings.EqualFold(strings.TrimSpace(in.Format), mime) {
		return "", "", 0, 0, fmt.Errorf("%w: declared format %s but image is %s", ErrInvalidImage, in.Format, mime)
	}
	if (in.Width != 0 || in.Height != 0) && (in.Width != width || in.Height != height) {
		return "", "", 0, 0, fmt.Errorf("%w: declared %dx%d but image is %dx%d", ErrInvalidImage, in.Width, in.Height, width, height)
	}
	if fw, fh := capture.FitDimensions(width, height); fw != width || fh != height {
		return "", "", 0, 0, fmt.Errorf("%w: %dx%d exceeds the size limits", ErrInvalidImage, width, height)
	}
	if err := capture.CheckBounds(width, height); err != nil {
		return "", "", 0, 0, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return mime, ext, width, height, nil
}

func validateCaption(name, message string) (string, string, error) {
	name = strings.TrimSpace(name)
	message = strings.TrimSpace(message)
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxNameRunes {
		return "", "", fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, MaxNameRunes)
	}
	if utf8.RuneCountInString(message) > MaxMessageRunes {
		return "", "", fmt.Errorf("%w: message must be at most %d characters", ErrInvalidInput, MaxMessageRunes)
	}
	return name, message, nil
}

func (a *App) recordAudit(ctx context.Context, photo domain.Photo, res moderation.Result, state approval.State) {
	outcome := audit.OutcomePending
	switch state {
	case approval.StateApproved:
		outcome = audit.OutcomeApproved
	case approval.StateDeleted:
		outcome = audit.OutcomeRejected
	}
	entry := audit.Entry{
		PhotoID:  photo.ID,
		EventTag: photo.EventTag,
		Text:     res.Text,
		Image:    res.Image,
		Overall:  res.Overall,
		Outcome:  outcome,
		At:       a.now().UTC(),
	}
	if err := a.audit.Record(ctx, entry); err != nil {
		util.LoggerFromContext(ctx).Warn("record moderation audit failed", "photo_id", photo.ID, "err", err)
	}
}

// EditInput changes the caption of a photo the caller owns.
type EditInput struct {
	ID      int64
	Token   string
	Name    string
	Message string
}

// Edit updates name and message within the edit window.
func (a *App) Edit(ctx context.Context, in EditInput) (domain.Photo, error) {
	name, message, err := validateCaption(in.Name, in.Message)
	if err != nil {
		return domain.Photo{}, err
	}
	photo, err := a.authorizeOwner(ctx, in.ID, in.Token)
	if err != nil {
		return domain.Photo{}, err
	}
	ok, err := a.store.UpdateCaption(ctx, in.ID, name, message)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("update caption: %w", err)
	}
	if !ok {
		return domain.Photo{}, ErrNotFound
	}
	photo.Name = name
	photo.Message = message
	return photo, nil
}

// Delete removes a photo the caller owns, within the edit window.
func (a *App) Delete(ctx context.Context, id int64, token string) error {
	if _, err := a.authorizeOwner(ctx, id, token); err != nil {
		return err
	}
	return a.machine.Delete(ctx, id)
}

func (a *App) authorizeOwner(ctx context.Context, id int64, token string) (domain.Photo, error) {
	if id <= 0 {
		return domain.Photo{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(token) == "" {
		return domain.Photo{}, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	photo, ok, err := a.store.GetPhoto(ctx, id)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("get photo: %w", err)
	}
	if !ok {
		return domain.Photo{}, ErrNotFound
	}
	if err := ownership.Authorize(photo, token, a.now()); err != nil {
		return domain.Photo{}, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return photo, nil
}

// ListQuery selects one page of the public gallery.
type ListQuery struct {
	EventTag string
	Limit    int
	Offset   int
}

// Page is one page of approved photos.
type Page struct {
	Photos  []domain.PhotoResponse `json:"photos"`
	HasMore bool                   `json:"hasMore"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// ListApproved returns approved photos newest first. An empty tag spans every event.
func (a *App) ListApproved(ctx context.Context, q ListQuery) (Page, error) {
	var tag domain.EventTag
	if q.EventTag != "" {
		event, ok := a.catalog.Lookup(q.EventTag)
		if !ok {
			return Page{}, fmt.Errorf("%w: %q", ErrInvalidEvent, q.EventTag)
		}
		tag = event.Tag
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := max(q.Offset, 0)

	photos, total, err := a.store.ListApproved(ctx, tag, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("list approved: %w", err)
	}
	items, err := a.respondAll(ctx, photos)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Photos:  items,
		HasMore: offset+len(photos) < total,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// ListPending returns the manual review queue, oldest first.
func (a *App) ListPending(ctx context.Context) ([]domain.PhotoResponse, error) {
	photos, err := a.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return a.respondAll(ctx, photos)
}

// AdminAction applies approve or delete to every id.
func (a *App) AdminAction(ctx context.Context, action string, ids []int64) (approval.BulkResult, error) {
	act, err := approval.ParseAction(strings.ToLower(strings.TrimSpace(action)))
	if err != nil {
		return approval.BulkResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(ids) == 0 {
		return approval.BulkResult{}, fmt.Errorf("%w: ids are required", ErrInvalidInput)
	}
	res := a.machine.Bulk(ctx, act, ids)
	util.LoggerFromContext(ctx).Info("admin action applied",
		"action", act, "succeeded", len(res.Succeeded), "failed", len(res.Failed))
	return res, nil
}

// Unapprove removes an approved photo from the gallery. A photo that is
// already gone is a no-op; a pending one conflicts.
func (a *App) Unapprove(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	err := a.machine.Unapprove(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, approval.ErrInvalidTransition):
		return fmt.Errorf("%w: photo is not approved", ErrConflict)
	default:
		return err
	}
}

// Events returns the event catalog in display order.
func (a *App) Events() []domain.Event {
	return a.catalog.Events()
}

// RecentAudit returns the newest moderation audit entries.
func (a *App) RecentAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	entries, err := a.audit.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return entries, nil
}

func (a *App) respondAll(ctx context.Context, photos []domain.Photo) ([]domain.PhotoResponse, error) {
	out := make([]domain.PhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp, err := a.respond(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (a *App) respond(ctx context.Context, p domain.Photo) (domain.PhotoResponse, error) {
	if a.publicBaseURL != "" {
		return domain.PhotoResponse{Photo: p, URL: a.publicBaseURL + "/" + p.ObjectKey}, nil
	}
	url, err := a.objects.PresignGet(ctx, p.ObjectKey, a.presignExpiry)
	if err != nil {
		return domain.PhotoResponse{}, fmt.Errorf("resolve photo url: %w", err)
	}
	return domain.PhotoResponse{Photo: p, URL: url}, nil
}
