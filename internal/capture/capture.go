// Package capture normalizes a guest's photo before upload: it bounds the
// dimensions, re-encodes the pixels, reads the capture time and works out
// which event the photo belongs to. It never touches the network.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

const (
	MaxDimension   = 4000
	MaxPixels      = 12_000_000
	MinDimension   = 200
	MinAspectRatio = 0.25
	MaxAspectRatio = 4.0
	// DefaultQuality is the 0.8 quality factor on the encoder's 1-100 scale.
	DefaultQuality = 80
	// Source limits checked from the header before any pixel is decoded.
	MaxSourcePixels = 120_000_000
	MaxSourceBytes  = 64 << 20
)

var (
	ErrTooSmall           = fmt.Errorf("photo is too small: both sides must be at least %dpx", MinDimension)
	ErrExtremeAspectRatio = errors.New("photo is too narrow or too wide: use a ratio between 1:4 and 4:1")
	ErrUnsupportedImage   = errors.New("file is not a supported image (JPEG, PNG, GIF or WebP)")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrSourceTooLarge     = errors.New("photo is too large to process")
)

// EventDateError means the capture date falls outside every event window.
type EventDateError struct {
	TakenAt time.Time
	Windows string
}

func (e *EventDateError) Error() string {
	return fmt.Sprintf("photo was taken on %s, which is not an event date; accepted dates: %s",
		e.TakenAt.Format("2 Jan 2006"), e.Windows)
}

// Options controls Process.
type Options struct {
	// Catalog maps capture dates to events. Nil skips event derivation.
	Catalog *domain.Catalog
	// OverrideEvent picks the event directly and skips date validation.
	OverrideEvent domain.EventTag
	// Supports reports whether the client can display a MIME type; nil means JPEG only.
	Supports func(mime string) bool
	Quality  int
	Now      func() time.Time
}

// Asset is a normalized photo ready for upload.
type Asset struct {
	Data      []byte
	Format    string
	Extension string
	Width     int
	Height    int
	TakenAt   time.Time
	EventTag  domain.EventTag
}

// Process decodes r and returns the bounded, re-encoded asset.
func Process(r io.Reader, opts Options) (Asset, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return Asset{}, fmt.Errorf("read photo: %w", err)
	}
	if len(raw) > MaxSourceBytes {
		return Asset{}, ErrSourceTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Asset{}, ErrUnsupportedImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return Asset{}, ErrSourceTooLarge
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Asset{}, ErrUnsupportedImage
	}

	b := src.Bounds()
	width, height := FitDimensions(b.Dx(), b.Dy())
	if err := CheckBounds(width, height); err != nil {
		return Asset{}, err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	loc := time.UTC
	if opts.Catalog != nil {
		loc = opts.Catalog.Location()
	}
	takenAt, ok := CaptureTime(raw, loc)
	if !ok {
		takenAt = now()
	}

	tag, err := deriveEvent(opts, takenAt)
	if err != nil {
		return Asset{}, err
	}

	img := src
	if width != b.Dx() || height != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		img = dst
	}

	enc := PreferredFormat(opts.Supports)
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, quality); err != nil {
		return Asset{}, fmt.Errorf("encode %s: %w", enc.MIME, err)
	}

	return Asset{
		Data:      buf.Bytes(),
		Format:    enc.MIME,
		Extension: enc.Extension,
		Width:     width,
		Height:    height,
		TakenAt:   takenAt,
		EventTag:  tag,
	}, nil
}

func deriveEvent(opts Options, takenAt time.Time) (domain.EventTag, error) {
	if opts.OverrideEvent != "" {
		if opts.Catalog != nil {
			if _, ok := opts.Catalog.Lookup(string(opts.OverrideEvent)); !ok {
				return "", fmt.Errorf("%w: %s", ErrUnknownEvent, opts.OverrideEvent)
			}
		}
		return opts.OverrideEvent, nil
	}
	if opts.Catalog == nil {
		return "", nil
	}
	ev, ok := opts.Catalog.ForTime(takenAt)
	if !ok {
		return "", &EventDateError{TakenAt: takenAt.In(opts.Catalog.Location()), Windows: opts.Catalog.DescribeWindows()}
	}
	return ev.Tag, nil
}

// FitDimensions scales (w, h) down, preserving aspect ratio, until neither side
// exceeds MaxDimension and the area does not exceed MaxPixels. The linear bound
// is applied first. Results are floored.
func FitDimensions(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w > MaxDimension || h > MaxDimension {
		if w >= h {
			h = h * MaxDimension / w
			w = MaxDimension
		} else {
			w = w * MaxDimension / h
			h = MaxDimension
		}
	}
	if w*h > MaxPixels {
		scale := math.Sqrt(float64(MaxPixels) / float64(w*h))
		w = int(math.Floor(float64(w) * scale))
		h = int(math.Floor(float64(h) * scale))
		for w*h > MaxPixels {
			if w >= h {
				w--
			} else {
				h--
			}
		}
	}
	return max(w, 1), max(h, 1)
}

// CheckBounds validates final dimensions against the minimum side and aspect ratio.
func CheckBounds(w, h int) error {
	if w < MinDimension || h < MinDimension {
		return ErrTooSmall
	}
	ratio := float64(w) / float64(h)
	if ratio < MinAspectRatio || ratio > MaxAspectRatio {
		return ErrExtremeAspectRatio
	}
	return nil
}
