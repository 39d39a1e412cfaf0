package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxDetailRunes = 200

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrForbidden    = errors.New("backend: forbidden")
	ErrNotFound     = errors.New("backend: not found")
	ErrBadRequest   = errors.New("backend: bad request")
	ErrUnavailable  = errors.New("backend: unavailable")
	ErrBaseURL      = errors.New("backend: base url is required")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Detail     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// StatusCode extracts the backend status from err, or 0 when err did not come
// from a backend response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Detail:     detail(body),
		Body:       body,
	}
}

// detail pulls the DRF "detail" message out of body, falling back to the raw
// text.
func detail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	text := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(text) > maxDetailRunes {
		text = string([]rune(text)[:maxDetailRunes])
	}
	return text
}
