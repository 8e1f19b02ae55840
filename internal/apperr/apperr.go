// Package apperr defines the error kinds surfaced by the service layer.
// Handlers map them to HTTP statuses; everything else propagates unchanged.
package apperr

import "errors"

var (
	// ErrNotFound means a referenced conversation, message, file or
	// membership does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized means the caller is not a member of the target
	// conversation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrValidation means the request is missing or carries invalid fields.
	ErrValidation = errors.New("validation failed")
)

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsNotAuthorized(err error) bool { return errors.Is(err, ErrNotAuthorized) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
