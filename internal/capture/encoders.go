package capture

import (
	"image"
	"image/jpeg"
	"io"
	"sync"
)

// Encoder writes an image in one output format.
type Encoder struct {
	MIME      string
	Extension string
	Encode    func(w io.Writer, img image.Image, quality int) error
}

// FormatPreference lists output formats best-first; JPEG is the universal fallback.
var FormatPreference = []string{"image/webp", "image/jpeg"}

var jpegEncoder = Encoder{
	MIME:      "image/jpeg",
	Extension: "jpg",
	Encode: func(w io.Writer, img image.Image, quality int) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	},
}

var (
	encodersMu sync.RWMutex
	encoders   = map[string]Encoder{jpegEncoder.MIME: jpegEncoder}
)

// RegisterEncoder makes a format available to PreferredFormat, e.g. a cgo
// WebP encoder in builds that have one.
func RegisterEncoder(e Encoder) {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	encoders[e.MIME] = e
}

// PreferredFormat picks the first preferred format that the client supports
// and that has a registered encoder. It falls back to JPEG.
func PreferredFormat(supports func(mime string) bool) Encoder {
	encodersMu.RLock()
	defer encodersMu.RUnlock()
	for _, mime := range FormatPreference {
		enc, ok := encoders[mime]
		if !ok {
			continue
		}
		if mime == jpegEncoder.MIME || (supports != nil && supports(mime)) {
			return enc
		}
	}
	return jpegEncoder
}

// AcceptedFormats are the MIME types the gateway stores.
var AcceptedFormats = map[string]string{
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/png":  "png",
}
