package transport

import "time"

// Request is a single prompt bound for one model.
type Request struct {
	Model       string        `json:"model"`
	Prompt      string        `json:"prompt"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`

	// AllowPremium is the per-call opt-in for premium models.
	AllowPremium bool `json:"allow_premium"`

	// Metadata is carried through for logging only.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Usage is the token accounting of one provider call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Add folds other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.LatencyMs += other.LatencyMs
}

// Response is the normalized provider reply plus the bookkeeping the
// middleware chain attaches on the way out.
type Response struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	RequestID    string `json:"request_id,omitempty"`

	// Usage is the sum over every attempt.
	Usage Usage `json:"usage"`

	// AttemptUsage lists the usage reported by each attempt that produced a
	// response. Retries bill again, so callers need every entry.
	AttemptUsage []Usage `json:"attempt_usage,omitempty"`
	Attempts     int     `json:"attempts"`

	// AdmittedAt is when the rate limiter released the dispatch.
	AdmittedAt time.Time `json:"admitted_at"`
}
