// Package recovery implements structured errors, failure aggregation, a circuit breaker and retry scheduling.
package recovery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Code classifies an error.
type Code string

// Element unavailability.
const (
	ElementNotFound    Code = "VIDEO_ELEMENT_NOT_FOUND"
	ElementUnavailable Code = "VIDEO_ELEMENT_UNAVAILABLE"
)

// Invalid input.
const (
	InvalidTime     Code = "INVALID_TIME_VALUE"
	InvalidRate     Code = "INVALID_RATE_VALUE"
	ValidationError Code = "VALIDATION_ERROR"
)

// Operational.
const (
	PlaybackFailed   Code = "PLAYBACK_FAILED"
	SeekFailed       Code = "SEEK_FAILED"
	OperationTimeout Code = "OPERATION_TIMEOUT"
	TrackLoadFailed  Code = "TRACK_LOAD_FAILED"
)

// Environment.
const (
	Compatibility       Code = "BROWSER_COMPATIBILITY"
	FeatureNotSupported Code = "FEATURE_NOT_SUPPORTED"
)

// Systemic.
const (
	RateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	ServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	ObserverFailure    Code = "OBSERVER_FAILURE"
	CircuitOpen        Code = "CIRCUIT_OPEN"
)

// Severity ranks how much an error threatens the session.
type Severity int

const (
	Low Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Error is the structured failure every core component raises.
// Flags are decided where the error is created.
type Error struct {
	Code        Code           `json:"code"`
	Message     string         `json:"message"`
	Severity    Severity       `json:"severity"`
	Recoverable bool           `json:"recoverable"`
	Retryable   bool           `json:"retryable"`
	Context     map[string]any `json:"context,omitempty"`
	Cause       error          `json:"-"`
	Timestamp   time.Time      `json:"timestamp"`
}

// New creates a recoverable, non-retryable error.
func New(code Code, severity Severity, format string, args ...any) *Error {
	return &Error{
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Severity:    severity,
		Recoverable: true,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Fatal marks the error as not recoverable.
func (e *Error) Fatal() *Error {
	e.Recoverable = false
	return e
}

// Retry marks the error as retryable.
func (e *Error) Retry() *Error {
	e.Retryable = true
	return e
}

// Wrap records the underlying cause.
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

// With attaches a context value.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// clone copies e with its own context map.
func (e *Error) clone() *Error {
	c := *e
	if e.Context != nil {
		c.Context = lo.Assign(e.Context)
	}
	return &c
}

// Sentinel returns a bare error usable as an errors.Is target for code.
func Sentinel(code Code) error {
	return &Error{Code: code}
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return errors.Is(err, Sentinel(code))
}

// As extracts the structured error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Lift returns err's structured form, or wraps a plain error under code with severity.
func Lift(err error, code Code, severity Severity) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return New(code, severity, "%s", err.Error()).Wrap(err)
}
