package capture

import (
	"bytes"
	"image"
)

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Inspect reads only the image header and returns its MIME type and size.
func Inspect(data []byte) (string, int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, ErrUnsupportedImage
	}
	mime, ok := formatMIME[format]
	if !ok {
		return "", 0, 0, ErrUnsupportedImage
	}
	return mime, cfg.Width, cfg.Height, nil
}
