// Package client is the guest side of the gallery API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/capture"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/client/reconcile"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// Client calls the gallery server over HTTP. Requests are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a gallery error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsUnauthorized reports a rejected guest pass; the caller should ask again.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsUnauthorized reports whether err is an APIError for a rejected guest pass.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}

// NewClient constructs a gallery client. Uploads wait for moderation, so the
// timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadRequest is one submission.
type UploadRequest struct {
	Image    []byte
	Filename string
	Name     string
	Message  string
	EventTag domain.EventTag
	Pass     string
	Format   string
	TakenAt  time.Time
	Width    int
	Height   int
}

// NewUploadRequest fills the upload fields from a processed asset.
func NewUploadRequest(asset capture.Asset, name, message, pass string) UploadRequest {
	return UploadRequest{
		Image:    asset.Data,
		Filename: "photo." + asset.Extension,
		Name:     name,
		Message:  message,
		EventTag: asset.EventTag,
		Pass:     pass,
		Format:   asset.Format,
		TakenAt:  asset.TakenAt,
		Width:    asset.Width,
		Height:   asset.Height,
	}
}

// Upload submits a photo and returns it in its post-moderation state with
// the ownership token.
func (c *Client) Upload(ctx context.Context, in UploadRequest) (domain.PhotoResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	filename := in.Filename
	if filename == "" {
		filename = "photo"
	}
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return domain.PhotoResponse{}, err
	}
	if _, err := part.Write(in.Image); err != nil {
		return domain.PhotoResponse{}, err
	}
	fields := map[string]string{
		"name":     in.Name,
		"message":  in.Message,
		"eventTag": string(in.EventTag),
		"pass":     in.Pass,
		"format":   in.Format,
	}
	if !in.TakenAt.IsZero() {
		fields["takenAt"] = in.TakenAt.UTC().Format(time.RFC3339)
	}
	if in.Width > 0 && in.Height > 0 {
		fields["width"] = strconv.Itoa(in.Width)
		fields["height"] = strconv.Itoa(in.Height)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return domain.PhotoResponse{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return domain.PhotoResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", body)
	if err != nil {
		return domain.PhotoResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return domain.PhotoResponse{}, err
	}
	return resp.Photo, nil
}

// EditResult echoes the updated caption.
type EditResult struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Edit changes the caption of an owned photo.
func (c *Client) Edit(ctx context.Context, id int64, token, name, message string) (EditResult, error) {
	var out EditResult
	err := c.postJSON(ctx, "/api/edit", map[string]any{
		"id":      id,
		"token":   token,
		"name":    name,
		"message": message,
	}, &out)
	return out, err
}

// Delete retracts an owned photo.
func (c *Client) Delete(ctx context.Context, id int64, token string) error {
	return c.postJSON(ctx, "/api/delete", map[string]any{"id": id, "token": token}, nil)
}

// Page is one page of the public gallery.
type Page struct {
	Photos  []domain.PhotoResponse `json:"photos"`
	HasMore bool                   `json:"hasMore"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// ListPhotos returns approved photos, newest first. An empty tag spans every event.
func (c *Client) ListPhotos(ctx context.Context, tag domain.EventTag, limit, offset int) (Page, error) {
	q := url.Values{}
	if tag != "" {
		q.Set("eventTag", string(tag))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := c.baseURL + "/api/photos"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Page{}, err
	}
	var page Page
	if err := c.do(req, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Fetcher adapts ListPhotos for the reconciliation cache.
func (c *Client) Fetcher() reconcile.Fetcher {
	return func(ctx context.Context, tag domain.EventTag, limit, offset int) ([]domain.PhotoResponse, error) {
		page, err := c.ListPhotos(ctx, tag, limit, offset)
		if err != nil {
			return nil, err
		}
		return page.Photos, nil
	}
}

// Events returns the event catalog.
func (c *Client) Events(ctx context.Context) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Events []domain.Event `json:"events"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gallery request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type uploadResponse struct {
	Photo domain.PhotoResponse `json:"photo"`
}
