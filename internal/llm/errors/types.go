// Package errors defines the failure taxonomy of the invocation layer and
// the evaluation engine, together with classification helpers that decide
// which failures the retry executor may retry.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind categorizes a failure. Every outcome of Invoke, Evaluate or Decide
// that is not a success carries exactly one Kind.
type Kind string

const (
	// KindTimeout indicates a per-attempt deadline expired.
	KindTimeout Kind = "timeout"

	// KindRateLimited indicates the rate limiter rejected the dispatch (reject mode only).
	KindRateLimited Kind = "rate_limited"

	// KindAdmissionDenied indicates a premium model was requested without opt-in.
	KindAdmissionDenied Kind = "admission_denied"

	// KindProviderError indicates retries were exhausted or the provider failed fatally.
	KindProviderError Kind = "provider_error"

	// KindCancellationRequested indicates the caller cancelled the operation.
	KindCancellationRequested Kind = "cancellation_requested"

	// KindEvaluationFailed indicates every candidate or persona failed.
	KindEvaluationFailed Kind = "evaluation_failed"

	// KindConfigurationInvalid indicates malformed weights, limits or rosters.
	KindConfigurationInvalid Kind = "configuration_invalid"
)

// Sentinel errors, one per Kind. An *InvocationError matches the sentinel of
// its Kind under errors.Is.
var (
	ErrTimeout               = errors.New("timeout")
	ErrRateLimited           = errors.New("rate limited")
	ErrAdmissionDenied       = errors.New("admission denied")
	ErrProviderError         = errors.New("provider error")
	ErrCancellationRequested = errors.New("cancellation requested")
	ErrEvaluationFailed      = errors.New("evaluation failed")
	ErrConfigurationInvalid  = errors.New("configuration invalid")
)

// Sentinel returns the sentinel error for k.
func (k Kind) Sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindRateLimited:
		return ErrRateLimited
	case KindAdmissionDenied:
		return ErrAdmissionDenied
	case KindProviderError:
		return ErrProviderError
	case KindCancellationRequested:
		return ErrCancellationRequested
	case KindEvaluationFailed:
		return ErrEvaluationFailed
	case KindConfigurationInvalid:
		return ErrConfigurationInvalid
	default:
		return nil
	}
}

// ProviderError captures a failed provider response.
// StatusCode is 0 when the request never produced an HTTP response.
type ProviderError struct {
	Provider   string        `json:"provider"`
	StatusCode int           `json:"status_code"`
	Message    string        `json:"message"`
	Code       string        `json:"code"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Error returns the provider error with its status code.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the status indicates a transient condition:
// request timeout, throttling, any 5xx, or no response at all.
func (e *ProviderError) IsRetryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// GetRetryAfter returns the provider's Retry-After hint.
func (e *ProviderError) GetRetryAfter() time.Duration { return e.RetryAfter }

// RateLimitError is returned by the rate limiter in reject mode.
type RateLimitError struct {
	Endpoint   string        `json:"endpoint"`
	RetryAfter time.Duration `json:"retry_after"`
	// Global is set when the cross-process dispatch gate refused the call.
	Global bool `json:"global"`
}

// Error returns the rate limit error with retry guidance.
func (e *RateLimitError) Error() string {
	scope := "local"
	if e.Global {
		scope = "global"
	}
	return fmt.Sprintf("%s rate limit for %s, retry after %s", scope, e.Endpoint, e.RetryAfter)
}

// GetRetryAfter returns how long until the next dispatch slot.
func (e *RateLimitError) GetRetryAfter() time.Duration { return e.RetryAfter }

// Is matches ErrRateLimited.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// AdmissionError is returned when a premium model is requested without opt-in.
type AdmissionError struct {
	Model      string  `json:"model"`
	Multiplier float64 `json:"multiplier"`
}

// Error names the model and its premium multiplier.
func (e *AdmissionError) Error() string {
	return fmt.Sprintf("model %q is premium (%.2fx) and premium models are not enabled", e.Model, e.Multiplier)
}

// Is matches ErrAdmissionDenied.
func (e *AdmissionError) Is(target error) bool { return target == ErrAdmissionDenied }
