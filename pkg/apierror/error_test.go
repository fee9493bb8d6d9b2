package apierror

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestFromResponseEnvelope(t *testing.T) {
	resp := response(http.StatusConflict, `{"error":{"message":"Email is already in use.","statusCode":409}}`)

	err := FromResponse(resp)
	require.Equal(t, http.StatusConflict, err.StatusCode)
	require.Equal(t, "Email is already in use.", err.Message)
	require.Equal(t, "Email is already in use.", err.Error())
}

func TestFromResponseFlatMessage(t *testing.T) {
	resp := response(http.StatusBadRequest, `{"message":"Password must be at least 6 characters long."}`)

	err := FromResponse(resp)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "Password must be at least 6 characters long.", err.Message)
}

func TestFromResponseUndecodableBody(t *testing.T) {
	resp := response(http.StatusBadGateway, "<html>upstream down</html>")

	err := FromResponse(resp)
	require.Equal(t, http.StatusBadGateway, err.StatusCode)
	require.Empty(t, err.Message)
	require.Equal(t, http.StatusText(http.StatusBadGateway), err.Error())
}

func TestAsUnwrapsChain(t *testing.T) {
	inner := &Error{StatusCode: 401, Message: "Unauthorized"}
	wrapped := fmt.Errorf("request failed: %w", inner)

	got, ok := As(wrapped)
	require.True(t, ok)
	require.True(t, got.IsUnauthorized())

	_, ok = As(errors.New("plain"))
	require.False(t, ok)
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		backend string
		want    string
	}{
		{"Email is already in use.", "This email is already registered."},
		{"Username is already taken.", "This username is already taken."},
		{"Password must be at least 6 characters long.", "Your password does not meet the requirements."},
		{"some internal detail", "Something went wrong."},
	}

	for _, tc := range cases {
		err := &Error{StatusCode: 400, Message: tc.backend}
		require.Equal(t, tc.want, UserMessage(err, "Something went wrong."))
	}

	require.Equal(t, "fallback", UserMessage(errors.New("not an api error"), "fallback"))
}

func TestIsUnverifiedEmail(t *testing.T) {
	require.True(t, IsUnverifiedEmail(&Error{
		StatusCode: http.StatusForbidden,
		Message:    "Your email address has not been verified.",
	}))
	require.False(t, IsUnverifiedEmail(&Error{
		StatusCode: http.StatusUnauthorized,
		Message:    "Your email address has not been verified.",
	}))
	require.False(t, IsUnverifiedEmail(&Error{
		StatusCode: http.StatusForbidden,
		Message:    "Forbidden",
	}))
	require.False(t, IsUnverifiedEmail(errors.New("network down")))
}
