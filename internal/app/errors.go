package app

import "errors"

var (
	// ErrUnauthorized means the guest pass did not match.
	ErrUnauthorized = errors.New("invalid guest pass")
	// ErrInvalidEvent means the event tag is not in the catalog.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrPayloadTooLarge means the image exceeds the upload limit.
	ErrPayloadTooLarge = errors.New("image is too large")
	// ErrInvalidImage covers unreadable images, unsupported formats and
	// declared metadata that does not match the bytes.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidInput covers malformed captions and requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means the photo id does not exist.
	ErrNotFound = errors.New("photo not found")
	// ErrForbidden means the edit token is wrong or the edit window has closed.
	ErrForbidden = errors.New("not allowed to modify this photo")
	// ErrConflict means the photo is not in a state that allows the action.
	ErrConflict = errors.New("photo state does not allow this action")
	// ErrModerationRejected is the generic rejection; the classifier's reason is not echoed.
	ErrModerationRejected = errors.New("this photo could not be added to the gallery")
)
