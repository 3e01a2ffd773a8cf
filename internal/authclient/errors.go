package authclient

import (
	"errors"
	"net/http"
)

// Error kinds. Test with errors.Is against any error returned by Client.
var (
	// ErrNetwork covers transport failures and 5xx responses.
	ErrNetwork = errors.New("network error")

	// ErrInvalidCredentials is a rejected login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrValidation is a request the backend refused as malformed (400, 409, 422).
	ErrValidation = errors.New("validation error")

	// ErrUnauthenticated means no token is stored or the backend rejected it.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMalformedResponse is a 2xx response the client cannot use.
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is the failure of one backend call.
type APIError struct {
	// Op is the operation name (login, register, me, profile, refresh).
	Op string

	// Status is the HTTP status, or 0 when no response was received.
	Status int

	// Message is the backend's message, shown to the user as-is.
	Message string

	// Kind is one of the Err* sentinels.
	Kind error

	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindForStatus maps a non-2xx status of op to an error kind.
func kindForStatus(op string, status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if op == opLogin || op == opRegister {
			return ErrInvalidCredentials
		}
		return ErrUnauthenticated
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrNetwork
	}
}

// KindName returns a short label for the kind of err, for metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "error"
	}
}
