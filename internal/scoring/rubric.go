package scoring

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-conclave/internal/domain"
)

// Exchange is one question and the answer it received.
type Exchange struct {
	Question string
	Answer   string
}

// RubricPrompt asks an evaluator to rate a transcript on the six metrics and
// reply with a single JSON object. focus, when non-empty, names the
// evaluator's perspective.
func RubricPrompt(task domain.Task, candidateID, focus string, transcript []Exchange) string {
	var b strings.Builder
	if focus != "" {
		fmt.Fprintf(&b, "You are evaluating from this perspective: %s\n\n", focus)
	}
	fmt.Fprintf(&b, "Task: %s\n\n", task.Description)
	fmt.Fprintf(&b, "Transcript for candidate %q:\n", candidateID)
	for i, ex := range transcript {
		fmt.Fprintf(&b, "\nQ%d: %s\nA%d: %s\n", i+1, ex.Question, i+1, ex.Answer)
	}
	b.WriteString("\nRate the candidate from 0 (worst) to 5 (best) on each metric: ")
	names := make([]string, len(domain.Metrics))
	for i, m := range domain.Metrics {
		names[i] = string(m)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\nRespond with only a JSON object of the form ")
	b.WriteString(`{"accuracy": 0, "relevance": 0, "completeness": 0, "explainability": 0, "efficiency": 0, "safety": 0, "justification": "..."}`)
	return b.String()
}
