// ABOUTME: Typed gateway failures and the user-facing error text helper
// ABOUTME: Backend detail beats transport message beats the generic fallback

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrSessionExpired matches any *APIError carrying a 401 status.
var ErrSessionExpired = errors.New("session expired")

// GenericFailure is the fallback text when a failure carries no usable message.
const GenericFailure = "failed to send message"

// ErrorPrefix starts every user-facing error line.
const ErrorPrefix = "Error: "

// APIError is a non-2xx backend response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string // backend-supplied message, if any
	Body       []byte
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Detail:     extractDetail(body),
		Body:       body,
	}
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// Is reports ErrSessionExpired for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrSessionExpired && e.StatusCode == http.StatusUnauthorized
}

// TransportError is a failure to complete the HTTP exchange: connection
// refused, DNS failure, timeout, or a canceled context.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran past its deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ErrorText builds the line shown to the user for a failed call.
func ErrorText(err error) string {
	return ErrorPrefix + ErrorMessage(err)
}

// ErrorMessage picks the most specific human-readable message for err:
// backend detail, then the transport-level message, then GenericFailure.
// Timeouts carry no useful transport message.
func ErrorMessage(err error) string {
	if err == nil {
		return GenericFailure
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Error()
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout() || transportErr.Err == nil {
			return GenericFailure
		}
		if msg := strings.TrimSpace(transportErr.Err.Error()); msg != "" {
			return msg
		}
		return GenericFailure
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericFailure
}

// extractDetail pulls a message out of an error body. FastAPI puts it under
// "detail" as a string or a list of validation errors; other services use
// "message" or "error".
func extractDetail(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ""
	}

	detail := root.Get("detail")
	switch {
	case detail.Type == gjson.String:
		if s := strings.TrimSpace(detail.String()); s != "" {
			return s
		}
	case detail.IsArray():
		var msgs []string
		for _, item := range detail.Array() {
			if msg := item.Get("msg"); msg.Type == gjson.String && msg.String() != "" {
				msgs = append(msgs, msg.String())
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	case detail.IsObject():
		for _, key := range []string{"msg", "message"} {
			if v := detail.Get(key); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}

	for _, key := range []string{"message", "error"} {
		if v := root.Get(key); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
