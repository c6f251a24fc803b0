package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
)

// HTTPError carries the status a failure should surface with and the message
// written into the response envelope.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

func HTTP(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

func BadRequest(message string) error {
	return HTTP(http.StatusBadRequest, message)
}

func NotFound(message string) error {
	return HTTP(http.StatusNotFound, message)
}

func AsHTTP(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
