package errors

import (
	"fmt"
)

// InvocationError is the typed failure returned by the invocation layer and
// the evaluation engine.
type InvocationError struct {
	Kind    Kind   `json:"kind"`
	Model   string `json:"model,omitempty"`
	Message string `json:"message"`
	// Attempts is the number of provider calls issued before the failure.
	Attempts int   `json:"attempts"`
	Cause    error `json:"-"`
}

// Error returns the kind, model and message.
func (e *InvocationError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Model != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Model, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes the underlying cause.
func (e *InvocationError) Unwrap() error { return e.Cause }

// Is matches the sentinel error of the error's Kind.
func (e *InvocationError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// Retryable reports whether the Kind is transient.
func (e *InvocationError) Retryable() bool {
	return e.Kind == KindTimeout
}

// New builds an InvocationError of kind k with a formatted message.
func New(k Kind, format string, args ...any) *InvocationError {
	return &InvocationError{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an InvocationError of kind k around cause.
func Wrap(k Kind, model string, attempts int, cause error) *InvocationError {
	e := &InvocationError{Kind: k, Model: model, Attempts: attempts, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}
