package backend

import "errors"

// ErrMalformedResponse marks a success response that is missing a required
// field (no user, no token). Wrapped into the AuthError raised to callers.
var ErrMalformedResponse = errors.New("malformed response from backend")

// AuthError is a structured application error with a message suitable for
// showing to the operator. Raised on non-OK responses and on success
// payloads missing required fields.
type AuthError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
