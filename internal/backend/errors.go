package backend

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("duplicate key")
	ErrUnauthorized       = errors.New("not authenticated")
	ErrForbidden          = errors.New("row violates access policy")
)

// APIError carries the backend's own message while classifying it under one
// of the sentinel errors above.
type APIError struct {
	Kind    error
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "backend request failed"
}

func (e *APIError) Unwrap() error { return e.Kind }
