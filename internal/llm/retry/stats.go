package retry

import (
	"sync/atomic"
	"time"
)

// retryStats holds lock-free counters for one Executor.
type retryStats struct {
	attempts                atomic.Int64
	successfulFirstAttempts atomic.Int64
	successfulRetries       atomic.Int64
	exhausted               atomic.Int64
	fatal                   atomic.Int64
	cancelled               atomic.Int64
	backoffs                atomic.Int64
	maxBackoff              atomic.Int64
}

// Stats is a snapshot of executor activity.
type Stats struct {
	Attempts                int64         `json:"attempts"`
	SuccessfulFirstAttempts int64         `json:"successful_first_attempts"`
	SuccessfulRetries       int64         `json:"successful_retries"`
	Exhausted               int64         `json:"exhausted"`
	Fatal                   int64         `json:"fatal"`
	Cancelled               int64         `json:"cancelled"`
	Backoffs                int64         `json:"backoffs"`
	MaxBackoff              time.Duration `json:"max_backoff"`
}

func (s *retryStats) recordBackoff(d time.Duration) {
	s.backoffs.Add(1)
	n := d.Nanoseconds()
	for {
		current := s.maxBackoff.Load()
		if n <= current || s.maxBackoff.CompareAndSwap(current, n) {
			return
		}
	}
}

func (s *retryStats) snapshot() Stats {
	return Stats{
		Attempts:                s.attempts.Load(),
		SuccessfulFirstAttempts: s.successfulFirstAttempts.Load(),
		SuccessfulRetries:       s.successfulRetries.Load(),
		Exhausted:               s.exhausted.Load(),
		Fatal:                   s.fatal.Load(),
		Cancelled:               s.cancelled.Load(),
		Backoffs:                s.backoffs.Load(),
		MaxBackoff:              time.Duration(s.maxBackoff.Load()),
	}
}
