package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
)

func TestParseEvaluation(t *testing.T) {
	want := domain.Score{Accuracy: 4, Relevance: 5, Completeness: 3, Explainability: 2, Efficiency: 1, Safety: 5}

	tests := []struct {
		name         string
		reply        string
		wantRepaired bool
	}{
		{
			name:  "strict JSON",
			reply: `{"accuracy":4,"relevance":5,"completeness":3,"explainability":2,"efficiency":1,"safety":5,"justification":"solid"}`,
		},
		{
			name:         "fenced JSON",
			reply:        "```json\n{\"accuracy\":4,\"relevance\":5,\"completeness\":3,\"explainability\":2,\"efficiency\":1,\"safety\":5,\"justification\":\"solid\"}\n```",
			wantRepaired: true,
		},
		{
			name:         "prose around object",
			reply:        "Here is my rating:\n{\"accuracy\":4,\"relevance\":5,\"completeness\":3,\"explainability\":2,\"efficiency\":1,\"safety\":5,\"justification\":\"solid\"}\nThanks.",
			wantRepaired: true,
		},
		{
			name:         "trailing comma and bare keys",
			reply:        "{accuracy: 4, relevance: 5, completeness: 3, explainability: 2, efficiency: 1, safety: 5, justification: \"solid\",}",
			wantRepaired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvaluation(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, want, ev.Score)
			assert.Equal(t, "solid", ev.Justification)
			assert.Equal(t, tt.wantRepaired, ev.Repaired)
		})
	}
}

func TestParseEvaluation_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "empty", reply: "  "},
		{name: "no object", reply: "I cannot rate this."},
		{name: "missing metric", reply: `{"accuracy":4,"relevance":5,"completeness":3,"explainability":2,"efficiency":1}`},
		{name: "out of range", reply: `{"accuracy":9,"relevance":5,"completeness":3,"explainability":2,"efficiency":1,"safety":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvaluation(tt.reply)
			require.ErrorIs(t, err, ErrUnparseableEvaluation)
		})
	}
}

func TestRubricPrompt(t *testing.T) {
	task := domain.Task{ID: "t1", Description: "Write a CSV parser"}
	prompt := RubricPrompt(task, "alpha", "security reviewer", []Exchange{
		{Question: "How do you handle quotes?", Answer: "State machine."},
	})

	assert.Contains(t, prompt, "security reviewer")
	assert.Contains(t, prompt, "Write a CSV parser")
	assert.Contains(t, prompt, "Q1: How do you handle quotes?")
	for _, m := range domain.Metrics {
		assert.Contains(t, prompt, string(m))
	}
}
