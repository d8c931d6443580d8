package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"exchange-rates-client/internal/pipeline"
)

var (
	// ErrTransport wraps network failures; no response was received.
	ErrTransport = errors.New("api: transport failure")
	// ErrCSRFRejected means the server kept refusing the CSRF token after renewal.
	ErrCSRFRejected = errors.New("api: csrf token rejected")
	// ErrUnauthorized means the session is missing or expired.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrForbidden means the user lacks the required role.
	ErrForbidden = errors.New("api: forbidden")
	// ErrValidation means the server refused the request payload.
	ErrValidation = errors.New("api: validation failed")
	// ErrNotFound means the addressed resource does not exist.
	ErrNotFound = errors.New("api: not found")
	// ErrUnexpectedStatus covers every other non-success response.
	ErrUnexpectedStatus = errors.New("api: unexpected status")
)

// APIError describes a non-success response of the rates API.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
	// Fields holds per-field validation messages when the server sent them.
	Fields map[string][]string

	kind error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rates api error (%d) %s %s", e.Status, e.Method, e.Path)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "; %s: %s", name, strings.Join(e.Fields[name], ", "))
		}
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.kind
}

type errorResponse struct {
	Message string              `json:"message"`
	Title   string              `json:"title"`
	Detail  string              `json:"detail"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func parseHTTPError(method, path string, status int, payload []byte) *APIError {
	apiErr := &APIError{
		Status:  status,
		Method:  method,
		Path:    path,
		Message: errorMessage(payload),
	}

	var body errorResponse
	if err := json.Unmarshal(payload, &body); err == nil && len(body.Errors) > 0 {
		apiErr.Fields = body.Errors
	}

	switch {
	case pipeline.IsCSRFRejection(status, payload):
		apiErr.kind = ErrCSRFRejected
	case status == http.StatusUnauthorized:
		apiErr.kind = ErrUnauthorized
	case status == http.StatusForbidden:
		apiErr.kind = ErrForbidden
	case status == http.StatusNotFound:
		apiErr.kind = ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		apiErr.kind = ErrValidation
	default:
		apiErr.kind = ErrUnexpectedStatus
	}
	return apiErr
}

func errorMessage(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return ""
	}

	var body errorResponse
	if err := json.Unmarshal(payload, &body); err == nil {
		for _, candidate := range []string{body.Message, body.Detail, body.Error, body.Title} {
			if candidate != "" {
				return candidate
			}
		}
		if len(body.Errors) > 0 {
			return ""
		}
	}

	var text string
	if err := json.Unmarshal(payload, &text); err == nil {
		return text
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ""
	}
	return trimmed
}
