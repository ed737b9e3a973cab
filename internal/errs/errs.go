package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindRequest
	KindNotFound
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRequest:
		return "request"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	}
	return "unknown"
}

var (
	ErrEmptySamples = errors.New("at least one HTML sample is required")
	ErrNoFields     = errors.New("at least one field is required")
	ErrPollInFlight = errors.New("a poll is already in flight for this task")
	ErrNotCompleted = errors.New("task is not completed")
)

// ValidationError is a malformed request detected before any network call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RequestError is a transport or service failure. Payload holds the service
// error body verbatim when it was JSON, otherwise {"error": Message}.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Payload    map[string]any
	Err        error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ServiceMessage(e.Payload)
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ServiceMessage extracts the human readable part of a service error body.
// Service bodies carry "detail"; the synthesized shape uses "error" and
// non-object JSON bodies sit under "body".
func ServiceMessage(payload map[string]any) string {
	for _, key := range []string{"detail", "error", "message", "body"} {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

// NotFoundError means the service no longer knows the task.
type NotFoundError struct {
	TaskID string
	Err    *RequestError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// StateError is an operation invoked in a task state that does not allow it.
type StateError struct {
	TaskID string
	Op     string
	State  string
	Err    error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s on task %s in state %s: %s", e.Op, e.TaskID, e.State, e.Err.Error())
}

func (e *StateError) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		v *ValidationError
		n *NotFoundError
		s *StateError
		r *RequestError
	)
	switch {
	case errors.As(err, &v):
		return KindValidation
	case errors.As(err, &n):
		return KindNotFound
	case errors.As(err, &s):
		return KindState
	case errors.As(err, &r):
		return KindRequest
	}
	return KindUnknown
}

func IsNotFoundStatus(err error) bool {
	var r *RequestError
	return errors.As(err, &r) && r.StatusCode == http.StatusNotFound
}
