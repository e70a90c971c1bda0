// Package api exposes the HTTP surface: task submission and lifecycle,
// template search, provider health and authentication.
package api

import (
	"errors"
	"net/http"

	"github.com/lcollado/adforge/internal/api/shared"
	"github.com/lcollado/adforge/internal/catalog"
	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/redact"
	"github.com/lcollado/adforge/internal/service/auth"
	"github.com/lcollado/adforge/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, catalog.ErrTemplateNotFound),
		errors.Is(err, store.ErrArchivedTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict

	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for the error.
// Client errors surface their own text, scrubbed of any credential
// material; everything else gets a generic message.
func GetSafeErrorMessage(err error) string {
	if MapErrorToStatusCode(err) < http.StatusInternalServerError {
		return redact.Error(err)
	}
	return "An internal error occurred"
}

// respondWithMappedError is the shorthand handlers use for service
// errors.
func respondWithMappedError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
}
