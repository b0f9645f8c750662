// Package llmtest provides a scripted llm.Invoker for engine tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-conclave/internal/llm"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

// Reply is a scripted response: Text on success, or Err.
type Reply struct {
	Text string
	Err  error
}

// ReplyFunc decides the reply to a request.
type ReplyFunc func(req llm.InvocationRequest) Reply

// CallUsage is the usage reported for every successful call.
var CallUsage = transport.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}

// Invoker records requests and answers them with a ReplyFunc. It is safe for
// concurrent use.
type Invoker struct {
	reply ReplyFunc

	mu    sync.Mutex
	calls []llm.InvocationRequest
}

// NewInvoker creates an Invoker that answers with reply.
func NewInvoker(reply ReplyFunc) *Invoker {
	return &Invoker{reply: reply}
}

// Invoke implements llm.Invoker. A cancelled context fails the call with
// CancellationRequested before the reply function runs.
func (f *Invoker) Invoke(ctx context.Context, req llm.InvocationRequest) (*llm.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, req.Model, 0, err)
	}

	r := f.reply(req)
	if r.Err != nil {
		return &llm.Outcome{Model: req.Model, Attempts: 1, Usage: CallUsage}, r.Err
	}
	return &llm.Outcome{Text: r.Text, Model: req.Model, Attempts: 1, Usage: CallUsage}, nil
}

// Calls returns a copy of every request received so far.
func (f *Invoker) Calls() []llm.InvocationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.InvocationRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the requests sent to model, in arrival order.
func (f *Invoker) CallsFor(model string) []llm.InvocationRequest {
	var out []llm.InvocationRequest
	for _, c := range f.Calls() {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// ScoreJSON renders an evaluator reply with the six ratings in metric order.
func ScoreJSON(accuracy, relevance, completeness, explainability, efficiency, safety int) string {
	return fmt.Sprintf(
		`{"accuracy": %d, "relevance": %d, "completeness": %d, "explainability": %d, "efficiency": %d, "safety": %d, "justification": "scripted"}`,
		accuracy, relevance, completeness, explainability, efficiency, safety,
	)
}

// ProviderFailure is a non-retryable provider error for scripted failures.
func ProviderFailure(model string) error {
	return llmerrors.Wrap(llmerrors.KindProviderError, model, 1, &llmerrors.ProviderError{StatusCode: 500, Message: "scripted failure"})
}
