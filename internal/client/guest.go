package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zaidhuda/wedding-gallery-sub000/internal/capture"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/client/reconcile"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/client/tokens"
	"github.com/zaidhuda/wedding-gallery-sub000/internal/ownership"
	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

var (
	// ErrPassRequired means no guest pass is known; prompt for one.
	ErrPassRequired = errors.New("guest pass required")
	// ErrNotOwner means this device holds no token for the photo.
	ErrNotOwner = errors.New("this photo was not uploaded from this device")
	// ErrEditExpired means the edit window has passed locally. The server
	// decides authoritatively.
	ErrEditExpired = errors.New("edit window has closed")
)

// TokenStore is the ordered set of ownership tokens held on this device.
type TokenStore interface {
	Add(ctx context.Context, photoID int64, token string, submittedAt time.Time) error
	Has(ctx context.Context, token string) (bool, error)
	TokenFor(ctx context.Context, photoID int64) (tokens.Entry, bool, error)
}

// Guest ties the API, token store, cache and session together.
type Guest struct {
	API     *Client
	Tokens  TokenStore
	Cache   *reconcile.Cache
	Session *Session
	Now     func() time.Time
}

func (g *Guest) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// CanModify is the advisory client-side check: token is in this device's
// set and the photo, by its server timestamp, is still inside the edit
// window. The server decides authoritatively.
func CanModify(ctx context.Context, held TokenStore, token string, submitted, now time.Time) (bool, error) {
	if token == "" || submitted.IsZero() || !ownership.WithinWindow(submitted, now) {
		return false, nil
	}
	return held.Has(ctx, token)
}

// Submit uploads a processed asset, remembers its token and shows it at once
// when it was approved.
func (g *Guest) Submit(ctx context.Context, asset capture.Asset, name, message string) (domain.PhotoResponse, error) {
	pass := g.Session.Pass()
	if pass == "" {
		return domain.PhotoResponse{}, ErrPassRequired
	}
	photo, err := g.API.Upload(ctx, NewUploadRequest(asset, name, message, pass))
	if err != nil {
		if IsUnauthorized(err) {
			g.Session.ForgetPass()
		}
		return domain.PhotoResponse{}, err
	}
	if err := g.Tokens.Add(ctx, photo.ID, photo.Token, photo.Timestamp); err != nil {
		return photo, fmt.Errorf("remember token: %w", err)
	}
	if g.Cache != nil && g.Cache.Add(photo) {
		g.Session.MarkNew(photo.ID)
	}
	return photo, nil
}

// Edit changes the caption of a photo uploaded from this device.
func (g *Guest) Edit(ctx context.Context, photoID int64, name, message string) (EditResult, error) {
	token, err := g.ownedToken(ctx, photoID)
	if err != nil {
		return EditResult{}, err
	}
	res, err := g.API.Edit(ctx, photoID, token, name, message)
	if err != nil {
		return EditResult{}, err
	}
	if g.Cache != nil {
		g.Cache.Edit(res.ID, res.Name, res.Message)
	}
	return res, nil
}

// Delete retracts a photo uploaded from this device.
func (g *Guest) Delete(ctx context.Context, photoID int64) error {
	token, err := g.ownedToken(ctx, photoID)
	if err != nil {
		return err
	}
	if err := g.API.Delete(ctx, photoID, token); err != nil {
		return err
	}
	if g.Cache != nil {
		g.Cache.Remove(photoID)
	}
	g.Session.ClearNew(photoID)
	return nil
}

func (g *Guest) ownedToken(ctx context.Context, photoID int64) (string, error) {
	entry, ok, err := g.Tokens.TokenFor(ctx, photoID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotOwner
	}
	ok, err = CanModify(ctx, g.Tokens, entry.Token, entry.SubmittedAt, g.now())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrEditExpired
	}
	return entry.Token, nil
}

// LoadMore merges the next page of tag into the cache and reports whether
// the server may have more.
func (g *Guest) LoadMore(ctx context.Context, tag domain.EventTag) (bool, error) {
	if g.Cache == nil {
		return false, errors.New("guest has no gallery cache")
	}
	n, err := g.Cache.LoadMore(ctx, tag)
	if err != nil {
		return false, err
	}
	return n == g.Cache.PageSize(), nil
}
