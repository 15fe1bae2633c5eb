package capture

import (
	"bytes"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// CaptureTime reads EXIF DateTimeOriginal (falling back to DateTime). The
// value carries no zone, so it is interpreted in loc.
func CaptureTime(data []byte, loc *time.Location) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && x == nil {
		return time.Time{}, false
	}
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, strings.TrimRight(strings.TrimSpace(raw), "\x00"), loc)
		if err != nil || t.Year() < 1990 {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
