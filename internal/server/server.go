package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/accesstoken"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/app"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/approval"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/ownership"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/util"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/audit"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// multipartOverhead is allowed on top of the image limit for the text fields.
const multipartOverhead = 1 << 20

// AdminVerifier resolves the administrator behind a request.
type AdminVerifier interface {
	VerifyRequest(r *http.Request) (accesstoken.Identity, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Admin gates /api/admin/*; nil denies every admin request.
	Admin AdminVerifier
	// Media serves stored objects under /media/ for the file backend.
	Media          http.Handler
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the gallery.
type Server struct {
	app            *app.App
	admin          AdminVerifier
	mux            *http.ServeMux
	allowedOrigins []string
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires app")
	}
	s := &Server{
		app:            cfg.App,
		admin:          cfg.Admin,
		mux:            http.NewServeMux(),
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes(cfg.Media)
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog(
			util.WithSecurityHeaders(s.trustedProxies,
				util.WithCORS(s.allowedOrigins, s.mux),
			),
		),
	)
}

func (s *Server) routes(media http.Handler) {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// guests
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/edit", s.handleEdit)
	s.mux.HandleFunc("/api/delete", s.handleDelete)
	s.mux.HandleFunc("/api/photos", s.handlePhotos)
	s.mux.HandleFunc("/api/events", s.handleEvents)

	// admin
	s.mux.HandleFunc("/api/admin/verify", s.handleAdminVerify)
	s.mux.Handle("/api/admin/pending", s.adminOnly(s.handleAdminPending))
	s.mux.Handle("/api/admin/action", s.adminOnly(s.handleAdminAction))
	s.mux.Handle("/api/admin/unapprove", s.adminOnly(s.handleAdminUnapprove))
	s.mux.Handle("/api/admin/audit", s.adminOnly(s.handleAdminAudit))

	if media != nil {
		s.mux.Handle("/media/", http.StripPrefix("/media/", media))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type adminHandler func(http.ResponseWriter, *http.Request, accesstoken.Identity)

func (s *Server) adminOnly(next adminHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifyAdmin(r)
		if err != nil {
			s.audit(r, "gallery.admin.authorize", "fail", "reason", adminFailureReason(err))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.audit(r, "gallery.admin.authorize", "success", "email", id.Email)
		next(w, r, id)
	})
}

func (s *Server) verifyAdmin(r *http.Request) (accesstoken.Identity, error) {
	if s.admin == nil {
		return accesstoken.Identity{}, errAdminDisabled
	}
	return s.admin.VerifyRequest(r)
}

var errAdminDisabled = errors.New("admin access not configured")

func adminFailureReason(err error) string {
	switch {
	case errors.Is(err, errAdminDisabled):
		return "not_configured"
	case errors.Is(err, accesstoken.ErrMissingAssertion):
		return "missing_assertion"
	case errors.Is(err, accesstoken.ErrNotAllowed):
		return "not_allowed"
	default:
		return "invalid_assertion"
	}
}

// guest handlers
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxUploadBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required (field: image)")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image upload")
		return
	}
	takenAt, err := parseTakenAt(r.FormValue("takenAt"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "takenAt must be RFC 3339 or unix milliseconds")
		return
	}
	width, errW := parseOptionalInt(r.FormValue("width"))
	height, errH := parseOptionalInt(r.FormValue("height"))
	if errW != nil || errH != nil {
		writeError(w, http.StatusBadRequest, "width and height must be integers")
		return
	}

	photo, err := s.app.Submit(r.Context(), app.SubmitInput{
		Image:    data,
		Name:     r.FormValue("name"),
		Message:  r.FormValue("message"),
		EventTag: r.FormValue("eventTag"),
		Pass:     r.FormValue("pass"),
		Format:   r.FormValue("format"),
		TakenAt:  takenAt,
		Width:    width,
		Height:   height,
	})
	if err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			s.audit(r, "gallery.guest_pass", "fail")
		}
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "gallery.guest_pass", "success", "photo_id", photo.ID)
	writeJSON(w, http.StatusOK, uploadResponse{Photo: photo})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req editRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	photo, err := s.app.Edit(r.Context(), app.EditInput{
		ID:      req.ID,
		Token:   req.Token,
		Name:    req.Name,
		Message: req.Message,
	})
	if err != nil {
		if errors.Is(err, app.ErrForbidden) {
			s.audit(r, "gallery.edit_token", "fail", "photo_id", req.ID, "action", "edit")
		}
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "gallery.edit_token", "success", "photo_id", photo.ID, "action", "edit")
	writeJSON(w, http.StatusOK, editResponse{ID: photo.ID, Name: photo.Name, Message: photo.Message})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req deleteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.Delete(r.Context(), req.ID, req.Token); err != nil {
		if errors.Is(err, app.ErrForbidden) {
			s.audit(r, "gallery.edit_token", "fail", "photo_id", req.ID, "action", "delete")
		}
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "gallery.edit_token", "success", "photo_id", req.ID, "action", "delete")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	limit, errL := parseOptionalInt(q.Get("limit"))
	offset, errO := parseOptionalInt(q.Get("offset"))
	if errL != nil || errO != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}
	page, err := s.app.ListApproved(r.Context(), app.ListQuery{
		EventTag: q.Get("eventTag"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, eventsResponse{Events: s.app.Events()})
}

// admin handlers
func (s *Server) handleAdminVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, err := s.verifyAdmin(r)
	if err != nil {
		writeJSON(w, http.StatusOK, verifyResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Authenticated: true, Email: id.Email})
}

func (s *Server) handleAdminPending(w http.ResponseWriter, r *http.Request, id accesstoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	photos, err := s.app.ListPending(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var admin *string
	if id.Email != "" {
		admin = &id.Email
	}
	writeJSON(w, http.StatusOK, pendingResponse{Photos: photos, Admin: admin})
}

func (s *Server) handleAdminAction(w http.ResponseWriter, r *http.Request, id accesstoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req adminActionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.AdminAction(r.Context(), req.Action, req.IDs)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "gallery.admin.action", "success", "email", id.Email, "action", req.Action,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed))
	if res.OK() {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	writeJSON(w, http.StatusMultiStatus, adminActionResponse{
		Success:   false,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	})
}

func (s *Server) handleAdminUnapprove(w http.ResponseWriter, r *http.Request, id accesstoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req unapproveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.Unapprove(r.Context(), req.ID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "gallery.admin.unapprove", "success", "email", id.Email, "photo_id", req.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request, _ accesstoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	entries, err := s.app.RecentAudit(r.Context(), limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: entries, Count: len(entries)})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type uploadResponse struct {
	Photo domain.PhotoResponse `json:"photo"`
}

type editRequest struct {
	ID      int64  `json:"id"`
	Token   string `json:"token"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type editResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type deleteRequest struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

type eventsResponse struct {
	Events []domain.Event `json:"events"`
}

type verifyResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

type pendingResponse struct {
	Photos []domain.PhotoResponse `json:"photos"`
	Admin  *string                `json:"admin"`
}

type adminActionRequest struct {
	Action string  `json:"action"`
	IDs    []int64 `json:"ids"`
}

type adminActionResponse struct {
	Success   bool               `json:"success"`
	Succeeded []int64            `json:"succeeded"`
	Failed    []approval.Failure `json:"failed"`
}

type unapproveRequest struct {
	ID int64 `json:"id"`
}

type auditResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps app errors to one status and one message.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid guest pass")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, forbiddenMessage(err))
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "photo not found")
	case errors.Is(err, app.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrModerationRejected):
		writeError(w, http.StatusUnprocessableEntity, app.ErrModerationRejected.Error())
	case errors.Is(err, app.ErrPayloadTooLarge),
		errors.Is(err, app.ErrInvalidEvent),
		errors.Is(err, app.ErrInvalidImage),
		errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func forbiddenMessage(err error) string {
	if errors.Is(err, ownership.ErrEditWindowClosed) {
		return "the edit window for this photo has closed"
	}
	return "edit token is not valid for this photo"
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// parseTakenAt accepts RFC 3339 or unix milliseconds; empty means unknown.
func parseTakenAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
