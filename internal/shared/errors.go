package shared

import (
	"errors"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates a failed sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when no CSRF token was supplied.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when the CSRF token does not match the session.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage turns an error into text fit for an end user. Internal
// details never leak; known categories get a specific hint.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, httpx.ErrValidation):
		return "Please correct the highlighted fields."
	case errors.Is(err, httpx.ErrNotFound):
		return "The invoice could not be found."
	case errors.Is(err, httpx.ErrDuplicate):
		return "An invoice with this number already exists."
	case errors.Is(err, httpx.ErrUnavailable):
		return "The invoice store is unavailable, please retry shortly."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	default:
		return "Something went wrong, please try again."
	}
}
