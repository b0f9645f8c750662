package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-conclave/internal/domain"
)

func TestPlan(t *testing.T) {
	task := domain.Task{ID: "t1", Description: "summarize a changelog"}

	qs := Plan(task, 7)
	assert.Len(t, qs, 7)

	wantKinds := []QuestionKind{KindSample, KindEdgeCase, KindMeta, KindSample, KindEdgeCase, KindMeta, KindSample}
	for i, q := range qs {
		assert.Equal(t, wantKinds[i], q.Kind, "question %d", i)
		assert.Contains(t, q.Text, task.Description)
		assert.NotEmpty(t, q.Focus)
	}
	assert.Equal(t, "Q1", qs[0].ID)
	assert.Equal(t, "Q7", qs[6].ID)

	assert.Equal(t, qs, Plan(task, 7), "plans are deterministic")
	assert.Empty(t, Plan(task, 0))
}

func TestTieBreakQuestion(t *testing.T) {
	task := domain.Task{ID: "t1", Description: "sort a list"}

	q1 := TieBreakQuestion(task, 1)
	q2 := TieBreakQuestion(task, 2)
	q3 := TieBreakQuestion(task, 3)

	assert.Equal(t, "TB1", q1.ID)
	assert.Equal(t, KindTieBreak, q1.Kind)
	assert.NotEqual(t, q1.Text, q2.Text)
	assert.Equal(t, q1.Text, q3.Text, "templates rotate")
	assert.Contains(t, q2.Text, task.Description)
}

func TestAnswerPromptFormat(t *testing.T) {
	task := domain.Task{ID: "t1", Description: "sort a list"}
	q := Question{ID: "Q1", Text: "How?"}

	assert.Equal(t, "Task Context: sort a list\n\nQuestion: How?\n\nPlease provide a detailed answer.", AnswerPrompt(task, q))
}
