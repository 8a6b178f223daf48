package domain

import "errors"

// Domain errors
var (
	// Directory errors
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
	ErrPersistenceWrite    = errors.New("directory snapshot write failed")

	// Validation errors
	ErrNameRequired        = errors.New("first or last name is required")
	ErrUsernameRequired    = errors.New("username is required")
	ErrQueryRequired       = errors.New("search query is required")
	ErrInviteLabelRequired = errors.New("invite label is required")
	ErrInviteExpiryInvalid = errors.New("invite expiry must be in the future")
	ErrPasswordRequired    = errors.New("new password is required")
	ErrUnknownAction       = errors.New("unknown user action")
	ErrNoUsersSelected     = errors.New("no users selected")

	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrUserMissingID = errors.New("user has no provider id")
	ErrAccountExists = errors.New("account already exists")

	// Output errors
	ErrMessageRender = errors.New("message rendering failed")

	// Upstream errors
	ErrUpstreamRejected = errors.New("identity provider rejected the request")
	ErrShortenFailed    = errors.New("url shortening failed")
)

// HTTPError is the error body returned by the admin API.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error HTTPError `json:"error"`
}

// ErrorMapping maps domain errors to API errors.
var ErrorMapping = map[error]HTTPError{
	ErrUpstreamUnavailable: {Code: "UPSTREAM_UNAVAILABLE", Message: "identity provider is unreachable"},
	ErrPersistenceWrite:    {Code: "PERSISTENCE_FAILED", Message: "local directory could not be saved"},
	ErrNameRequired:        {Code: "INVALID_REQUEST", Message: "at least one of first name or last name is required"},
	ErrUsernameRequired:    {Code: "INVALID_REQUEST", Message: "username is required"},
	ErrQueryRequired:       {Code: "INVALID_REQUEST", Message: "please enter a search query"},
	ErrInviteLabelRequired: {Code: "INVALID_REQUEST", Message: "invite label is required"},
	ErrInviteExpiryInvalid: {Code: "INVALID_REQUEST", Message: "expiration must be in the future"},
	ErrPasswordRequired:    {Code: "INVALID_REQUEST", Message: "please enter a new password"},
	ErrUnknownAction:       {Code: "INVALID_REQUEST", Message: "unknown action"},
	ErrNoUsersSelected:     {Code: "INVALID_REQUEST", Message: "no users selected"},
	ErrUserNotFound:        {Code: "NOT_FOUND", Message: "user not found"},
	ErrUserMissingID:       {Code: "NOT_FOUND", Message: "user does not have a valid id"},
	ErrAccountExists:       {Code: "ACCOUNT_EXISTS", Message: "an account is already linked to this member"},
	ErrMessageRender:       {Code: "MESSAGE_RENDER_FAILED", Message: "account created but its message could not be rendered"},
	ErrUpstreamRejected:    {Code: "UPSTREAM_REJECTED", Message: "identity provider rejected the request"},
	ErrShortenFailed:       {Code: "SHORTEN_FAILED", Message: "failed to shorten link"},
}

// ToHTTPError resolves err (or the first mapped error it wraps) to an API error.
func ToHTTPError(err error) (HTTPError, bool) {
	for target, httpErr := range ErrorMapping {
		if errors.Is(err, target) {
			return httpErr, true
		}
	}
	return HTTPError{}, false
}
