package providers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// parseErrorResponse converts a non-200 reply into a ProviderError. The
// status code alone decides retryability; the body only adds detail.
func parseErrorResponse(provider string, httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	msg := strings.TrimSpace(string(body))
	var code string
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
		switch c := errResp.Error.Code.(type) {
		case string:
			code = c
		case float64:
			code = strconv.Itoa(int(c))
		}
		if code == "" {
			code = errResp.Error.Type
		}
	}
	if msg == "" {
		msg = http.StatusText(httpResp.StatusCode)
	}

	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: httpResp.StatusCode,
		Message:    msg,
		Code:       code,
		RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now()),
	}
}

// malformedResponse reports a 200 reply that could not be decoded. It is
// treated as a transient gateway fault.
func malformedResponse(provider, msg string) error {
	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: http.StatusBadGateway,
		Message:    msg,
		Code:       "malformed_response",
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
