package runtime

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrUploadInFlight is returned when a field already has an upload pending.
	ErrUploadInFlight = errors.New("upload already in progress for field")
	// ErrUploadKindMismatch is returned when an image-only field receives a non-image file.
	ErrUploadKindMismatch = errors.New("file type not accepted by field")
)

// ValidationError names the first required field left blank on submit.
type ValidationError struct {
	FieldID string
	Label   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Field %q is required.", e.Label)
}
