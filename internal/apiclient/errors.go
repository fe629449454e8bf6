package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized = errors.New("apiclient: unauthorized")
	ErrForbidden    = errors.New("apiclient: forbidden")
	ErrNotFound     = errors.New("apiclient: not found")
	ErrConflict     = errors.New("apiclient: conflict")
)

// Error is a non-2xx portal response. Message is the server's own text when
// it sent one.
type Error struct {
	Status  int
	Method  string
	Path    string
	Message string
	// Generic is set when the body carried no usable message.
	Generic bool
}

func (e *Error) Error() string {
	return e.Message
}

// Is lets callers match status classes with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// MessageOr returns the server message carried by err, or fallback when the
// error is not a portal rejection or the server sent nothing useful.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && !apiErr.Generic {
		return apiErr.Message
	}
	return fallback
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Msg     string `json:"msg"`
}

func mapError(method, path string, status int, body []byte) *Error {
	e := &Error{Status: status, Method: method, Path: path}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, msg := range []string{payload.Message, payload.Error, payload.Msg} {
			if msg = strings.TrimSpace(msg); msg != "" {
				e.Message = msg
				return e
			}
		}
	}
	e.Generic = true
	e.Message = fmt.Sprintf("portal request failed: %d %s", status, http.StatusText(status))
	return e
}
