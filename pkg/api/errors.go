package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// APIError is a response the backend rejected with a 4xx or 5xx status.
// Detail and Message carry whatever human-readable text the backend
// provided, in its two customary fields.
type APIError struct {
	StatusCode int
	Detail     string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if text := e.Text(); text != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, text)
	}
	return fmt.Sprintf("api error (status %d)", e.StatusCode)
}

// Text returns the backend-provided description, preferring the detail
// field, or an empty string when the body carried neither.
func (e *APIError) Text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	apiErr.Message = payload.Message
	apiErr.Detail = flattenDetail(payload.Detail)
	return apiErr
}

// flattenDetail handles the two detail encodings the backend uses: a plain
// string, or a validation-error list of {msg: ...} records.
func flattenDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}

	return ""
}

// StatusOf extracts the HTTP status from an error, or 0 for transport-level
// failures that never produced a response.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsTimeout reports whether the request exceeded its deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectivity reports whether the request failed before any response
// arrived, excluding timeouts, which are classified separately.
func IsConnectivity(err error) bool {
	if err == nil || IsTimeout(err) {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}
