package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorKind classifies transport failures.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindAuthFailed
	KindNotFound
	KindConflict
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthFailed:
		return "auth-failed"
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "transport"
	}
}

// Sentinels for errors.Is checks against *Error.
var (
	ErrAuthFailed = errors.New("not authenticated")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("transport failure")
)

// Error wraps a failed API call with enough context to explain it.
type Error struct {
	Kind   ErrorKind
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuthFailed:
		return fmt.Sprintf("Not Authenticated: %s", ResponseMessage(e.Body))
	case KindConflict, KindValidation, KindNotFound:
		if msg := ResponseMessage(e.Body); msg != "" {
			return msg
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, http.StatusText(e.Status))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.Status, ResponseMessage(e.Body))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Kind == KindAuthFailed
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// TemplateLookup decodes the evaluation failure carried by a 422 response.
func (e *Error) TemplateLookup() (*TemplateLookupError, bool) {
	if e.Kind != KindValidation || e.Body == "" {
		return nil, false
	}
	var tle TemplateLookupError
	if err := json.Unmarshal([]byte(e.Body), &tle); err != nil || len(tle.Detail) == 0 {
		return nil, false
	}
	return &tle, true
}

// kindForStatus maps HTTP status codes onto error kinds.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailed
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindTransport
	}
}

// ResponseMessage pulls the human message out of a server error body. The
// server sends either {"detail": "..."} or a map of field names to messages.
func ResponseMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	var generic interface{}
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return body
	}
	switch v := generic.(type) {
	case map[string]interface{}:
		if detail, ok := v["detail"]; ok {
			if s, ok := detail.(string); ok {
				return s
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, flattenMessage(v[k])...)
		}
		return strings.Join(parts, "; ")
	case []interface{}:
		return strings.Join(flattenMessage(v), "; ")
	case string:
		return v
	}
	return body
}

func flattenMessage(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		var out []string
		for _, item := range t {
			out = append(out, flattenMessage(item)...)
		}
		return out
	case map[string]interface{}:
		if d, ok := t["error_detail"].(string); ok {
			return []string{d}
		}
		if d, ok := t["detail"].(string); ok {
			return []string{d}
		}
	}
	return nil
}
