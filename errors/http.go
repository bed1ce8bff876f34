package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus translates domain sentinels into API status codes.
// Anything unrecognized is a plain internal error.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists), errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrContactExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrMalformedFrame),
		errors.Is(err, ErrUnknownTarget), errors.Is(err, ErrInvalidTargetID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
