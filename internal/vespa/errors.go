package vespa

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrSessionExpired matches every *SessionExpiredError via errors.Is.
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrNoAccessToken  = fmt.Errorf("refresh response did not contain an access token")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
	Body    Record
}

func (e *APIError) Error() string {
	return e.Message
}

// AuthenticationError is returned by Authenticate when the backend rejects
// the credentials.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// SessionExpiredError means the request needed a valid session and none
// could be obtained: either there was no refresh token, or the refresh call
// failed and the stored credentials were cleared. The user has to log in
// again.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	if e.Err == nil {
		return ErrSessionExpired.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSessionExpired, e.Err)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// IsSessionExpired reports whether err means the user must log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// newAPIError builds an APIError from a failed response. The body is parsed
// as a JSON object if possible; otherwise it is treated as empty.
func newAPIError(res *resty.Response) *APIError {
	body := Record{}
	if err := json.Unmarshal(res.Body(), &body); err != nil || body == nil {
		body = Record{}
	}

	return &APIError{
		Status:  res.StatusCode(),
		Message: errorMessage(body, "message", "error", fmt.Sprintf("HTTP %d", res.StatusCode())),
		Body:    body,
	}
}

// errorMessage returns the first non-empty string field of body among
// primary and secondary, or fallback.
func errorMessage(body Record, primary, secondary, fallback string) string {
	for _, key := range []string{primary, secondary} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
