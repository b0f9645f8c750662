package panel

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/clock"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/llm"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/llmtest"
)

const judgeModel = "judge"

var testTask = domain.Task{ID: "task-1", Description: "explain context cancellation"}

func testCandidates() []domain.Candidate {
	return []domain.Candidate{
		{ID: "a", Model: "model-a"},
		{ID: "b", Model: "model-b"},
		{ID: "c", Model: "model-c"},
	}
}

// ratings maps round → persona → candidate → a rating applied to all six
// metrics. A rating of -1 makes the persona's scoring call fail. Rounds
// without an entry reuse round 0.
type ratings map[int]map[string]map[string]int

func script(r ratings) llmtest.ReplyFunc {
	return func(req llm.InvocationRequest) llmtest.Reply {
		if req.Metadata["stage"] == "answer" {
			if req.Model == "broken" {
				return llmtest.Reply{Err: llmtest.ProviderFailure(req.Model)}
			}
			return llmtest.Reply{Text: "answer from " + req.Model}
		}
		round, _ := strconv.Atoi(req.Metadata["round"])
		table, ok := r[round]
		if !ok {
			table = r[0]
		}
		v := table[req.Metadata["persona"]][req.Metadata["candidate"]]
		if v < 0 {
			return llmtest.Reply{Err: llmtest.ProviderFailure(req.Model)}
		}
		return llmtest.Reply{Text: llmtest.ScoreJSON(v, v, v, v, v, v)}
	}
}

// prefers returns a rating row where want scores 5 and others score 2.
func prefers(want string) map[string]int {
	row := map[string]int{"a": 2, "b": 2, "c": 2}
	row[want] = 5
	return row
}

func newPanel(t *testing.T, inv llm.Invoker, maxTieBreak int) *Panel {
	t.Helper()
	p, err := New(inv, Config{MaxTieBreakRounds: maxTieBreak, MaxConcurrency: 3},
		WithClock(clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	return p
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(llmtest.NewInvoker(nil), Config{MaxConcurrency: 0})
	require.ErrorIs(t, err, llmerrors.ErrConfigurationInvalid)
}

func TestDecide_StrictPlurality(t *testing.T) {
	roster := DefaultRoster(judgeModel)[:3]
	inv := llmtest.NewInvoker(script(ratings{0: {
		"technical":  prefers("b"),
		"creative":   prefers("b"),
		"efficiency": prefers("c"),
	}}))
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, roster, testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, "b", d.WinnerID)
	assert.Equal(t, domain.ResolvedNone, d.Resolution)
	assert.Zero(t, d.TieBreakRounds)
	assert.Equal(t, map[string]int{"a": 0, "b": 2, "c": 1}, d.Tally)
	assert.Equal(t, []domain.Phase{
		domain.PhaseSetup, domain.PhaseRoundRobinQA, domain.PhaseScoring, domain.PhaseVoting, domain.PhaseDecided,
	}, d.Phases)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, testTask.ID, d.TaskID)

	// 3 personas × 3 candidates, one answer and one score call each.
	assert.Equal(t, int64(18), d.Usage.Calls)
	assert.Len(t, d.Ballots, 9)
	assert.Len(t, d.Votes, 3)
}

func TestDecide_BallotOrderIsDeterministic(t *testing.T) {
	roster := DefaultRoster(judgeModel)[:3]
	inv := llmtest.NewInvoker(script(ratings{0: {
		"technical":  prefers("a"),
		"creative":   prefers("a"),
		"efficiency": prefers("a"),
	}}))
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, roster, testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	var got [][2]string
	for _, b := range d.Ballots {
		got = append(got, [2]string{b.Persona, b.CandidateID})
	}
	var want [][2]string
	for _, persona := range roster {
		for _, c := range testCandidates() {
			want = append(want, [2]string{persona.Name, c.ID})
		}
	}
	assert.Equal(t, want, got)

	var voters []string
	for _, v := range d.Votes {
		voters = append(voters, v.Persona)
	}
	assert.Equal(t, []string{"technical", "creative", "efficiency"}, voters)
}

func TestDecide_VoteTieWithinPersonaPicksEarliestCandidate(t *testing.T) {
	roster := DefaultRoster(judgeModel)[:3]
	even := map[string]int{"a": 3, "b": 4, "c": 4}
	inv := llmtest.NewInvoker(script(ratings{0: {"technical": even, "creative": even, "efficiency": even}}))
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, roster, testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)
	assert.Equal(t, "b", d.WinnerID)
	assert.Equal(t, 3, d.Tally["b"])
}

func TestDecide_TieResolvedByRound(t *testing.T) {
	inv := llmtest.NewInvoker(script(ratings{
		0: {
			"technical":    prefers("a"),
			"creative":     prefers("a"),
			"efficiency":   prefers("b"),
			"user_centric": prefers("b"),
			"risk":         prefers("c"),
		},
		1: {
			"technical":    prefers("a"),
			"creative":     prefers("a"),
			"efficiency":   prefers("b"),
			"user_centric": prefers("b"),
			"risk":         prefers("b"),
		},
	}))
	p := newPanel(t, inv, 1)

	d, err := p.Decide(context.Background(), testTask, DefaultRoster(judgeModel), testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, "b", d.WinnerID)
	assert.Equal(t, domain.ResolvedByRound, d.Resolution)
	assert.Equal(t, 1, d.TieBreakRounds)
	assert.Equal(t, map[string]int{"a": 2, "b": 3}, d.Tally)
	assert.Equal(t, []domain.Phase{
		domain.PhaseSetup, domain.PhaseRoundRobinQA, domain.PhaseScoring, domain.PhaseVoting,
		domain.PhaseTieBreak, domain.PhaseDecided,
	}, d.Phases)

	// The tie-break round only covers the tied candidates.
	tb := d.BallotsForRound(1)
	assert.Len(t, tb, 10)
	for _, b := range tb {
		assert.NotEqual(t, "c", b.CandidateID)
	}
}

func TestDecide_FallbackToSummedComposite(t *testing.T) {
	opening := map[string]map[string]int{
		"technical":    prefers("a"),
		"creative":     prefers("a"),
		"efficiency":   {"a": 4, "b": 5, "c": 0},
		"user_centric": {"a": 4, "b": 5, "c": 0},
		"risk":         prefers("c"),
	}
	tiebreak := map[string]map[string]int{
		"technical":    {"a": 5, "b": 1},
		"creative":     {"a": 5, "b": 1},
		"efficiency":   {"a": 4, "b": 5},
		"user_centric": {"a": 4, "b": 5},
		"risk":         {"a": -1, "b": -1},
	}
	inv := llmtest.NewInvoker(script(ratings{0: opening, 1: tiebreak}))
	p := newPanel(t, inv, 1)

	d, err := p.Decide(context.Background(), testTask, DefaultRoster(judgeModel), testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	// Round 1 splits 2-2 with risk excluded. Sums: a = 100+100+80+80, b = 20+20+100+100.
	assert.Equal(t, "a", d.WinnerID)
	assert.Equal(t, domain.ResolvedBySum, d.Resolution)
	assert.Equal(t, 1, d.TieBreakRounds)
	assert.Equal(t, map[string]int{"a": 2, "b": 2}, d.Tally)
	assert.Equal(t, map[int][]string{1: {"risk"}}, d.Excluded)
}

func TestDecide_FallbackToCallerPriority(t *testing.T) {
	roster := DefaultRoster(judgeModel)[:3]
	inv := llmtest.NewInvoker(script(ratings{0: {
		"technical":  {"a": 5, "b": 4, "c": 3},
		"creative":   {"a": 3, "b": 5, "c": 4},
		"efficiency": {"a": 4, "b": 3, "c": 5},
	}}))
	p := newPanel(t, inv, 2)

	cands := testCandidates()
	d, err := p.Decide(context.Background(), testTask, roster, cands, domain.DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, "a", d.WinnerID)
	assert.Equal(t, domain.ResolvedByPriority, d.Resolution)
	assert.Equal(t, 2, d.TieBreakRounds)
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, d.Tally)
	assert.Len(t, d.BallotsForRound(2), 9)
}

func TestDecide_NoTieBreakRoundsConfigured(t *testing.T) {
	roster := DefaultRoster(judgeModel)[:3]
	inv := llmtest.NewInvoker(script(ratings{0: {
		"technical":  {"a": 5, "b": 1, "c": 1},
		"creative":   {"a": 1, "b": 5, "c": 5},
		"efficiency": {"a": 1, "b": 1, "c": 5},
	}}))
	p := newPanel(t, inv, 0)

	d, err := p.Decide(context.Background(), testTask, roster, testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	// Votes a, b, c. Sums: a=140, b=140, c=220.
	assert.Equal(t, "c", d.WinnerID)
	assert.Equal(t, domain.ResolvedBySum, d.Resolution)
	assert.Zero(t, d.TieBreakRounds)
}

func TestDecide_AllPersonasFailTieBreakRound(t *testing.T) {
	fail := map[string]int{"a": -1, "b": -1, "c": -1}
	inv := llmtest.NewInvoker(script(ratings{
		0: {
			"technical":  {"a": 5, "b": 2, "c": 0},
			"creative":   {"a": 2, "b": 5, "c": 0},
			"efficiency": {"a": 4, "b": 4, "c": 5},
		},
		1: {"technical": fail, "creative": fail, "efficiency": fail},
	}))
	roster := DefaultRoster(judgeModel)[:3]
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, roster, testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	// Opening votes a, b, c; fallback sums a=100+40+80, b=40+100+80, c=0+0+100.
	assert.Equal(t, 1, d.TieBreakRounds, "tie-breaking stops after the failed round")
	assert.Equal(t, domain.ResolvedByPriority, d.Resolution)
	assert.Equal(t, "a", d.WinnerID)
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, d.Tally)
	assert.ElementsMatch(t, []string{"technical", "creative", "efficiency"}, d.Excluded[1])
}

func TestDecide_AllPersonasFailOpeningRound(t *testing.T) {
	fail := map[string]int{"a": -1, "b": -1, "c": -1}
	inv := llmtest.NewInvoker(script(ratings{0: {"technical": fail, "creative": fail, "efficiency": fail}}))
	p := newPanel(t, inv, 2)

	_, err := p.Decide(context.Background(), testTask, DefaultRoster(judgeModel)[:3], testCandidates(), domain.DefaultWeights())
	require.ErrorIs(t, err, llmerrors.ErrEvaluationFailed)
}

func TestDecide_FailedPersonaExcludedFromTally(t *testing.T) {
	inv := llmtest.NewInvoker(script(ratings{0: {
		"technical":  prefers("c"),
		"creative":   {"a": 5, "b": -1, "c": 2},
		"efficiency": prefers("c"),
	}}))
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, DefaultRoster(judgeModel)[:3], testCandidates(), domain.DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, "c", d.WinnerID)
	assert.Equal(t, map[string]int{"a": 0, "b": 0, "c": 2}, d.Tally)
	assert.Equal(t, map[int][]string{0: {"creative"}}, d.Excluded)
	assert.Len(t, d.Votes, 2)
}

func TestDecide_CandidateThatCannotAnswerNeverWins(t *testing.T) {
	cands := testCandidates()
	cands[0].Model = "broken"
	inv := llmtest.NewInvoker(script(ratings{0: {
		"technical":  prefers("a"),
		"creative":   prefers("a"),
		"efficiency": prefers("b"),
	}}))
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, DefaultRoster(judgeModel)[:3], cands, domain.DefaultWeights())
	require.NoError(t, err)

	assert.NotEqual(t, "a", d.WinnerID)
	for _, b := range d.Ballots {
		if b.CandidateID == "a" {
			assert.Equal(t, domain.SentinelComposite, b.Composite)
		}
	}
	assert.Zero(t, d.Tally["a"])
}

func TestDecide_PersonaWeightsOverrideCallerWeights(t *testing.T) {
	roster := DefaultRoster(judgeModel)[:3]
	safetyOnly := domain.ScoringWeights{Safety: 1}
	for i := range roster {
		roster[i].Weights = nil
	}
	roster[0].Weights = &safetyOnly

	inv := llmtest.NewInvoker(func(req llm.InvocationRequest) llmtest.Reply {
		if req.Metadata["stage"] == "answer" {
			return llmtest.Reply{Text: "ok"}
		}
		// a is accurate but unsafe; b is safe but inaccurate.
		if req.Metadata["candidate"] == "a" {
			return llmtest.Reply{Text: llmtest.ScoreJSON(5, 5, 5, 5, 5, 0)}
		}
		return llmtest.Reply{Text: llmtest.ScoreJSON(0, 0, 0, 0, 0, 5)}
	})
	p := newPanel(t, inv, 2)

	d, err := p.Decide(context.Background(), testTask, roster, testCandidates()[:2], domain.DefaultWeights())
	require.NoError(t, err)

	byPersona := map[string]string{}
	for _, v := range d.Votes {
		byPersona[v.Persona] = v.CandidateID
	}
	assert.Equal(t, "b", byPersona["technical"])
	assert.Equal(t, "a", byPersona["creative"])
	assert.Equal(t, "a", d.WinnerID)
}

func TestDecide_InvalidRoster(t *testing.T) {
	p := newPanel(t, llmtest.NewInvoker(script(nil)), 2)

	_, err := p.Decide(context.Background(), testTask, DefaultRoster(judgeModel)[:4], testCandidates(), domain.DefaultWeights())
	require.ErrorIs(t, err, llmerrors.ErrConfigurationInvalid)

	_, err = p.Decide(context.Background(), testTask, DefaultRoster(judgeModel)[:1], testCandidates(), domain.DefaultWeights())
	require.ErrorIs(t, err, llmerrors.ErrConfigurationInvalid)
}

func TestDecide_Cancelled(t *testing.T) {
	inv := llmtest.NewInvoker(script(nil))
	p := newPanel(t, inv, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Decide(ctx, testTask, DefaultRoster(judgeModel)[:3], testCandidates(), domain.DefaultWeights())
	require.ErrorIs(t, err, llmerrors.ErrCancellationRequested)
}
