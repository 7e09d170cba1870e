// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors recognised by RespondError.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// StatusFor maps an error to the HTTP status a handler should answer with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the failure envelope for err. Server errors hide the
// underlying message behind fallback.
func RespondError(w http.ResponseWriter, err error, fallback string) {
	status := StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = fallback
	}
	Fail(w, status, message)
}
