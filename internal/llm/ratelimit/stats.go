package ratelimit

import (
	"sync/atomic"
	"time"
)

// Stats reports admission counters for one limiter.
type Stats struct {
	// Admitted counts dispatches released, immediately or after waiting.
	Admitted int64
	// Waited counts admissions that had to wait for their slot.
	Waited int64
	// Rejected counts reject-mode refusals.
	Rejected int64
	// Cancelled counts callers that gave up before admission.
	Cancelled int64
	// TotalWait is the summed wait of every waited admission.
	TotalWait time.Duration
}

type stats struct {
	admitted  atomic.Int64
	waited    atomic.Int64
	rejected  atomic.Int64
	cancelled atomic.Int64
	waitNanos atomic.Int64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Admitted:  s.admitted.Load(),
		Waited:    s.waited.Load(),
		Rejected:  s.rejected.Load(),
		Cancelled: s.cancelled.Load(),
		TotalWait: time.Duration(s.waitNanos.Load()),
	}
}
