package handler

import (
	"errors"
	"net/http"

	"authentik-admin/internal/domain"
)

func toErrorResponse(code, message string) domain.ErrorResponse {
	return domain.ErrorResponse{Error: domain.HTTPError{Code: code, Message: message}}
}

func toAPIErrorResponse(httpErr domain.HTTPError) domain.ErrorResponse {
	return domain.ErrorResponse{Error: httpErr}
}

func getHTTPStatusCode(err error) int {
	switch {
	// Not Found errors (404)
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrUserMissingID):
		return http.StatusNotFound

	// Bad Request errors (400)
	case errors.Is(err, domain.ErrNameRequired), errors.Is(err, domain.ErrUsernameRequired),
		errors.Is(err, domain.ErrQueryRequired), errors.Is(err, domain.ErrInviteLabelRequired),
		errors.Is(err, domain.ErrInviteExpiryInvalid), errors.Is(err, domain.ErrPasswordRequired),
		errors.Is(err, domain.ErrUnknownAction), errors.Is(err, domain.ErrNoUsersSelected):
		return http.StatusBadRequest

	// Conflict errors (409)
	case errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict

	// Upstream errors
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstreamRejected), errors.Is(err, domain.ErrShortenFailed):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

func toAPIUsers(users []domain.UserRecord) []domain.UserRecord {
	if users == nil {
		return []domain.UserRecord{}
	}
	return users
}

// toWarning describes a failure that did not prevent the request from succeeding.
func toWarning(err error) domain.HTTPError {
	if httpErr, ok := domain.ToHTTPError(err); ok {
		return httpErr
	}
	return domain.HTTPError{Code: "INTERNAL_ERROR", Message: err.Error()}
}
