package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors handlers wrap to pick a response status.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrTooLarge   = errors.New("request body too large")
)

// RespondError maps wrapped sentinels to a problem response. Anything
// unrecognised is a 500 with no detail so internals do not leak.
func RespondError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrTooLarge), errors.As(err, &maxBytes):
		Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
