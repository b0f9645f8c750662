package errors

import (
	"context"
	"errors"
	"net"
	"strings"
)

// KindOf classifies any error into the failure taxonomy.
// Errors that carry no recognizable type default to KindProviderError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return invErr.Kind
	}

	var admErr *AdmissionError
	if errors.As(err, &admErr) {
		return KindAdmissionDenied
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return KindRateLimited
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancellationRequested):
		return KindCancellationRequested
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConfigurationInvalid):
		return KindConfigurationInvalid
	case errors.Is(err, ErrEvaluationFailed):
		return KindEvaluationFailed
	case errors.Is(err, ErrAdmissionDenied):
		return KindAdmissionDenied
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindProviderError
}

// IsRetryable decides whether the retry executor may issue another attempt
// after err. Timeouts, transient provider responses and network failures are
// retryable. Admission denials, configuration errors, cancellations, auth
// failures and malformed requests are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return invErr.Retryable()
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}

	switch KindOf(err) {
	case KindTimeout:
		return true
	case KindAdmissionDenied, KindConfigurationInvalid, KindCancellationRequested, KindEvaluationFailed, KindRateLimited:
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return isTransientMessage(err.Error())
}

// isTransientMessage catches untyped transport failures by message.
func isTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"service unavailable",
		"bad gateway",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
