package services

import (
	"errors"
	"fmt"
)

var (
	ErrUsernameTaken        = errors.New("username already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUnknownUser          = errors.New("user no longer exists")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnsupportedMediaType = errors.New("only image and video files are supported")
	ErrPayloadTooLarge      = errors.New("file too large")
	ErrInvalidInput         = errors.New("invalid input")
)

// invalidf wraps ErrInvalidInput with a client facing reason.
func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
