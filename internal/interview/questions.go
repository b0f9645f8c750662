package interview

import (
	"fmt"

	"github.com/ahrav/go-conclave/internal/domain"
)

// QuestionKind classifies interview questions.
type QuestionKind string

// Question kinds.
const (
	KindSample   QuestionKind = "sample"
	KindEdgeCase QuestionKind = "edge_case"
	KindMeta     QuestionKind = "meta"
	KindTieBreak QuestionKind = "tiebreak"
)

// Question is one interview prompt. Every candidate receives the same
// questions in the same order.
type Question struct {
	ID    string       `json:"id"`
	Kind  QuestionKind `json:"kind"`
	Text  string       `json:"text"`
	Focus string       `json:"focus"`
}

type questionTemplate struct {
	kind   QuestionKind
	format string
	focus  string
}

var planTemplates = []questionTemplate{
	{KindSample, "Solve a representative instance of this task and show your approach: %s", "core capability on the task"},
	{KindEdgeCase, "Describe one unusual or adversarial input for this task and exactly how you would handle it: %s", "robustness on edge cases"},
	{KindMeta, "What are your limitations on this task, and what guardrails should a caller place around your output? Task: %s", "self-awareness of limitations"},
	{KindSample, "Work through a harder variant of this task step by step, stating any assumptions: %s", "depth of reasoning"},
	{KindEdgeCase, "The input for this task is incomplete or contradictory. How do you proceed? Task: %s", "handling ambiguity"},
	{KindMeta, "How would you verify that your answer to this task is correct before returning it? Task: %s", "verification habits"},
}

var tieBreakTemplates = []questionTemplate{
	{KindTieBreak, "Tie-break: give the most efficient complete solution to the hardest case of this task you can construct, and justify every trade-off you make: %s", "depth under pressure"},
	{KindTieBreak, "Tie-break: identify the single most likely way your solution to this task fails in production and change the solution to prevent it: %s", "failure anticipation"},
}

// Plan returns n interview questions for task: representative samples,
// edge-case variations and meta-questions about limitations, in rotation.
func Plan(task domain.Task, n int) []Question {
	qs := make([]Question, n)
	for i := range n {
		t := planTemplates[i%len(planTemplates)]
		qs[i] = Question{
			ID:    fmt.Sprintf("Q%d", i+1),
			Kind:  t.kind,
			Text:  fmt.Sprintf(t.format, task.Description),
			Focus: t.focus,
		}
	}
	return qs
}

// TieBreakQuestion returns the sharper comparative question asked in the
// given tie-break round (1-based).
func TieBreakQuestion(task domain.Task, round int) Question {
	t := tieBreakTemplates[(round-1)%len(tieBreakTemplates)]
	return Question{
		ID:    fmt.Sprintf("TB%d", round),
		Kind:  t.kind,
		Text:  fmt.Sprintf(t.format, task.Description),
		Focus: t.focus,
	}
}

// AnswerPrompt frames a question for the candidate.
func AnswerPrompt(task domain.Task, q Question) string {
	return fmt.Sprintf("Task Context: %s\n\nQuestion: %s\n\nPlease provide a detailed answer.", task.Description, q.Text)
}
