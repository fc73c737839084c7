package api

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated   = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoCSRFToken        = errors.New("no csrf token found")
	ErrEmptyRedirect      = errors.New("upload response had neither redirect nor error")
)

// ServerError is an error reported by the backend, either as an {"error"}
// body or as a bare non-2xx status.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d", e.StatusCode)
	}
	return e.Message
}
