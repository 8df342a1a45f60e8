// Package errors defines the standardized error taxonomy shared by every
// tool boundary. HTTP failures, subprocess exits, and filesystem checks are
// all converted to an *Error before they reach the client; raw error text
// never crosses the tool boundary.
package errors

import (
	"encoding/json"
	"fmt"

	"issueshepherd/server/internal/redact"
)

// Code identifies a failure class. Codes are stable: clients may branch on them.
type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeInvalidQuery         Code = "INVALID_QUERY"
	CodeAuthRequired         Code = "AUTH_REQUIRED"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeTransport            Code = "TRANSPORT_ERROR"
	CodeConfirmationRequired Code = "CONFIRMATION_REQUIRED"
	CodePathNotEmpty         Code = "PATH_NOT_EMPTY"
	CodePermissionDenied     Code = "PERMISSION_DENIED"
	CodeCloneFailed          Code = "CLONE_FAILED"
	CodePathConflict         Code = "PATH_CONFLICT"
	CodeGitNotFound          Code = "GIT_NOT_FOUND"
)

// Error is the structured error carried in every failed tool response.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *Error. The message is redacted on construction so that a
// credential can never survive into a response, log line, or wrapped error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: redact.Token(message)}
}

// Newf formats a message and builds an *Error.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithHint attaches a human-readable suggestion. Redacted like the message.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = redact.Token(hint)
	return e
}

// WithDetail attaches one structured detail field. String values are redacted.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	if s, ok := value.(string); ok {
		value = redact.Token(s)
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether the failure was marked as transient by the
// boundary that produced it.
func (e *Error) Retryable() bool {
	v, _ := e.Details["retryable"].(bool)
	return v
}

// As extracts an *Error from an error chain. Errors produced outside this
// package come back as (nil, false); callers then wrap them themselves.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// =============================================================================
// Response envelope
// =============================================================================

// Every tool response is one of two envelopes: {ok:true, ...payload} on
// success, {ok:false, error:{...}} on failure.

// OKResponse marshals a success envelope with the payload fields inlined
// next to "ok".
func OKResponse(payload map[string]any) (string, error) {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["ok"] = true
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrResponse marshals a failure envelope. Non-*Error values are wrapped as
// TransportError so that an unclassified failure still has a stable shape.
func ErrResponse(err error) string {
	e, ok := As(err)
	if !ok {
		e = New(CodeTransport, err.Error())
	}
	b, marshalErr := json.MarshalIndent(map[string]any{"ok": false, "error": e}, "", "  ")
	if marshalErr != nil {
		return fmt.Sprintf(`{"ok":false,"error":{"code":%q,"message":"response encoding failed"}}`, e.Code)
	}
	return string(b)
}
