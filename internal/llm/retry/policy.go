package retry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

var (
	errMaxAttemptsInvalid = errors.New("maxAttempts must be greater than 0")
	errBaseDelayInvalid   = errors.New("baseDelay must be greater than 0")
	errMaxDelayInvalid    = errors.New("maxDelay must be >= baseDelay")
)

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter replaces each delay with a uniform draw from [delay/2, delay].
	Jitter bool
}

// NewPolicy validates cfg and converts it into a Policy.
func NewPolicy(cfg configuration.RetryConfig) (Policy, error) {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Jitter:      cfg.UseJitter,
	}
	if err := p.validate(); err != nil {
		return Policy{}, llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, err)
	}
	return p, nil
}

func (p Policy) validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w, got %v", errBaseDelayInvalid, p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("%w, MaxDelay: %v, BaseDelay: %v", errMaxDelayInvalid, p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Backoff returns the delay after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay. Jitter, when enabled, is
// applied on top.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter && d > 1 {
		half := d / 2
		d = half + time.Duration(rand.Int64N(int64(d-half)+1)) // #nosec G404 -- non-cryptographic jitter
	}
	return d
}

// delayFor picks the wait before the next attempt: the exponential backoff,
// stretched to a provider Retry-After hint when that is longer, never beyond
// MaxDelay.
func (p Policy) delayFor(attempt int, err error) time.Duration {
	d := p.Backoff(attempt)

	var hinted interface{ GetRetryAfter() time.Duration }
	if errors.As(err, &hinted) {
		if ra := hinted.GetRetryAfter(); ra > d {
			d = min(ra, p.MaxDelay)
		}
	}
	return d
}
