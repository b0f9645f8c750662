package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

// InvocationRequest is one prompt for one model. Zero-valued limits fall back
// to the provider configuration.
type InvocationRequest struct {
	Model     string `validate:"required"`
	Prompt    string `validate:"required"`
	System    string
	MaxTokens int `validate:"gte=0"`
	// Temperature overrides the configured temperature when set.
	Temperature *float64      `validate:"omitempty,gte=0,lte=2"`
	Timeout     time.Duration `validate:"gte=0"`
	// AllowPremium authorizes a premium model for this call only.
	AllowPremium bool
	// Metadata is attached to log lines.
	Metadata map[string]string
}

// Temperature returns a pointer to t for InvocationRequest.Temperature.
func Temperature(t float64) *float64 { return &t }

// Outcome is what the caller gets back from Invoke. On failure it still
// reports the attempts made and the usage they were billed for.
type Outcome struct {
	Text  string          `json:"text"`
	Model string          `json:"model"`
	Usage transport.Usage `json:"usage"`
	// AttemptUsage holds one entry per provider attempt that returned usage.
	AttemptUsage []transport.Usage `json:"attempt_usage,omitempty"`
	Attempts     int               `json:"attempts"`
	AdmittedAt   time.Time         `json:"admitted_at"`
	Latency      time.Duration     `json:"latency"`
	RequestID    string            `json:"request_id"`
}

// Invoker sends one prompt through the invocation layer. *Client implements
// it; the evaluation engines depend on this interface only.
type Invoker interface {
	Invoke(ctx context.Context, req InvocationRequest) (*Outcome, error)
}

// TokenUsage converts the outcome's usage for evaluation accounting. Calls
// counts provider attempts, since each one is billed.
func (o *Outcome) TokenUsage() domain.TokenUsage {
	if o == nil {
		return domain.TokenUsage{}
	}
	return domain.TokenUsage{
		PromptTokens:     o.Usage.PromptTokens,
		CompletionTokens: o.Usage.CompletionTokens,
		TotalTokens:      o.Usage.TotalTokens,
		Calls:            int64(o.Attempts),
	}
}
