// Package errs holds the error taxonomy shared by the scheduling core.
// Handlers map these sentinels to HTTP status codes with errors.Is.
package errs

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrProtectedDay       = errors.New("protected day")
	ErrNormExceeded       = errors.New("norm exceeded")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrConflict           = errors.New("conflict")
)
