// Package apierror decodes the backend's error envelope and maps known
// backend messages to user-facing text.
package apierror

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Error represents a structured error returned by the backend.
type Error struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// envelope is the wire shape of backend errors: {"error":{"message","statusCode"}}.
type envelope struct {
	Error *Error `json:"error"`
	// Some endpoints return a flat {"message": "..."} body instead.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// IsUnauthorized reports whether the error carries a 401 status.
func (e *Error) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// FromResponse builds an Error from a non-2xx HTTP response.
// The body is consumed but not closed. An undecodable body still yields
// an Error carrying the response status.
func FromResponse(resp *http.Response) *Error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	if env.Error != nil {
		apiErr.Message = env.Error.Message
		if env.Error.StatusCode != 0 {
			apiErr.StatusCode = env.Error.StatusCode
		}
	} else if env.Message != "" {
		apiErr.Message = env.Message
	}

	return apiErr
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Known backend messages with dedicated user-facing wording.
const (
	msgEmailInUse    = "Email is already in use."
	msgUsernameTaken = "Username is already taken."
	msgWeakPassword  = "Password must be at least 6 characters long."
)

// UserMessage maps a backend error to the message shown to the user.
// Unrecognized messages fall back to the given generic text.
func UserMessage(err error, fallback string) string {
	apiErr, ok := As(err)
	if !ok {
		return fallback
	}

	switch apiErr.Message {
	case msgEmailInUse:
		return "This email is already registered."
	case msgUsernameTaken:
		return "This username is already taken."
	case msgWeakPassword:
		return "Your password does not meet the requirements."
	}

	return fallback
}

// IsUnverifiedEmail reports whether a login failure means the account's
// email address has not been confirmed yet.
func IsUnverifiedEmail(err error) bool {
	apiErr, ok := As(err)
	if !ok {
		return false
	}
	return apiErr.StatusCode == http.StatusForbidden &&
		strings.Contains(strings.ToLower(apiErr.Message), "not been verified")
}
