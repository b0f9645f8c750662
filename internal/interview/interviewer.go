// Package interview ranks candidates for a task by interviewing each one and
// scoring the transcript with an evaluator model.
//
// Candidates are interviewed concurrently through a shared llm.Invoker; each
// candidate's questions are asked in plan order. A tie at the top triggers up
// to MaxTieBreakRounds comparative rounds restricted to the tied subset, after
// which any remaining tie is settled by caller priority (input order).
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/clock"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/metrics"
	"github.com/ahrav/go-conclave/internal/scoring"
)

// evaluatorSystemPrompt frames every scoring call.
const evaluatorSystemPrompt = "You are an impartial interviewer evaluating AI agents for a task. " +
	"Judge only what the transcript shows and answer in the exact JSON format requested."

// evaluatorTemperature keeps scoring replies stable.
const evaluatorTemperature = 0.1

// Config tunes an Interviewer.
type Config struct {
	EvaluatorModel    string  `validate:"required"`
	QuestionsPerRound int     `validate:"gte=1"`
	MaxTieBreakRounds int     `validate:"gte=0"`
	Epsilon           float64 `validate:"gte=0"`
	MaxConcurrency    int     `validate:"gte=1"`
	// AllowPremium opts every call of a run into premium models.
	AllowPremium bool
}

// ConfigFrom derives a Config from the evaluation configuration.
func ConfigFrom(cfg configuration.EvaluationConfig) Config {
	return Config{
		EvaluatorModel:    cfg.EvaluatorModel,
		QuestionsPerRound: cfg.QuestionsPerRound,
		MaxTieBreakRounds: cfg.MaxTieBreakRounds,
		Epsilon:           cfg.TieEpsilon,
		MaxConcurrency:    cfg.MaxConcurrency,
	}
}

// Interviewer runs interviews. It holds no per-run state and is safe for
// concurrent use.
type Interviewer struct {
	invoker llm.Invoker
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option customizes an Interviewer.
type Option func(*Interviewer)

// WithClock sets the clock used to stamp results.
func WithClock(c clock.Clock) Option { return func(iv *Interviewer) { iv.clock = c } }

// WithMetrics records runs on c.
func WithMetrics(c *metrics.Collector) Option { return func(iv *Interviewer) { iv.metrics = c } }

// New validates cfg and creates an Interviewer.
func New(invoker llm.Invoker, cfg Config, opts ...Option) (*Interviewer, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, fmt.Errorf("interviewer config: %w", err))
	}
	iv := &Interviewer{
		invoker: invoker,
		cfg:     cfg,
		clock:   clock.Real(),
		logger:  slog.Default().With("component", "interviewer"),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv, nil
}

// assessment is one candidate's result for one round.
type assessment struct {
	score         domain.Score
	composite     float64
	justification string
	usage         domain.TokenUsage
	err           error
}

// Evaluate interviews every candidate and ranks them by composite score,
// highest first. The ranking's first entry is the winner.
//
// Candidates whose interview fails are kept in the ranking with the sentinel
// composite and are never selected while another candidate succeeded. If
// every candidate fails the error is EvaluationFailed.
func (iv *Interviewer) Evaluate(
	ctx context.Context,
	task domain.Task,
	candidates []domain.Candidate,
	weights domain.ScoringWeights,
) (*domain.EvaluationResult, error) {
	if err := validateInputs(task, candidates, weights); err != nil {
		return nil, err
	}
	start := iv.clock.Now()
	log := iv.logger.With("task_id", task.ID)

	questions := Plan(task, iv.cfg.QuestionsPerRound)
	log.Info("interview started", "candidates", len(candidates), "questions", len(questions))

	all := make([]int, len(candidates))
	for i := range all {
		all[i] = i
	}
	first, err := iv.runRound(ctx, task, candidates, all, questions, weights)
	if err != nil {
		iv.metrics.RecordEvaluation("interview", string(llmerrors.KindOf(err)), 0, iv.clock.Now().Sub(start))
		return nil, err
	}

	result := &domain.EvaluationResult{
		TaskID:  task.ID,
		Ranking: make([]domain.RankedCandidate, len(candidates)),
	}
	composites := make([]float64, len(candidates))
	succeeded := 0
	for i, c := range candidates {
		a := first[i]
		result.Usage.Add(a.usage)
		row := domain.RankedCandidate{Candidate: c, Composite: domain.SentinelComposite}
		if a.err != nil {
			row.Failed = true
			row.Error = a.err.Error()
			log.Warn("degraded contributor", "candidate", c.ID, "error", a.err)
		} else {
			row.Score = a.score
			row.Composite = a.composite
			row.Justification = a.justification
			succeeded++
		}
		composites[i] = row.Composite
		result.Ranking[i] = row
	}
	if succeeded == 0 {
		err := llmerrors.Wrap(llmerrors.KindEvaluationFailed, "", 0, fmt.Errorf("all %d candidates failed", len(candidates)))
		iv.metrics.RecordEvaluation("interview", string(llmerrors.KindEvaluationFailed), 0, iv.clock.Now().Sub(start))
		return nil, err
	}

	winner, record, err := iv.breakTies(ctx, task, candidates, composites, weights, result, log)
	if err != nil {
		iv.metrics.RecordEvaluation("interview", string(llmerrors.KindOf(err)), record.Rounds, iv.clock.Now().Sub(start))
		return nil, err
	}
	result.TieBreak = record

	order := rankOrder(composites, winner)
	ranked := make([]domain.RankedCandidate, len(order))
	for pos, idx := range order {
		ranked[pos] = result.Ranking[idx]
	}
	result.Ranking = ranked
	result.WinnerID = candidates[winner].ID
	result.CompletedAt = iv.clock.Now()

	log.Info("interview decided",
		"winner", result.WinnerID,
		"composite", composites[winner],
		"tiebreak_rounds", record.Rounds,
		"resolution", record.Resolution,
		"total_tokens", result.Usage.TotalTokens)
	iv.metrics.RecordEvaluation("interview", metrics.OutcomeSuccess, record.Rounds, result.CompletedAt.Sub(start))
	return result, nil
}

// breakTies runs comparative rounds while more than one candidate shares the
// top composite, and returns the winner's index.
func (iv *Interviewer) breakTies(
	ctx context.Context,
	task domain.Task,
	candidates []domain.Candidate,
	composites []float64,
	weights domain.ScoringWeights,
	result *domain.EvaluationResult,
	log *slog.Logger,
) (int, domain.TieBreakRecord, error) {
	tied := topTied(composites, all(len(composites)), iv.cfg.Epsilon)
	record := domain.TieBreakRecord{Resolution: domain.ResolvedNone}
	if len(tied) == 1 {
		return tied[0], record, nil
	}

	for _, idx := range tied {
		record.Tied = append(record.Tied, candidates[idx].ID)
	}
	log.Info("tie at the top", "tied", record.Tied, "composite", composites[tied[0]])

	for record.Rounds < iv.cfg.MaxTieBreakRounds && len(tied) > 1 {
		record.Rounds++
		q := TieBreakQuestion(task, record.Rounds)
		round, err := iv.runRound(ctx, task, candidates, tied, []Question{q}, weights)
		if err != nil {
			return 0, record, err
		}

		roundComposites := make([]float64, len(candidates))
		for i := range roundComposites {
			roundComposites[i] = domain.SentinelComposite
		}
		anySucceeded := false
		for _, idx := range tied {
			a := round[idx]
			result.Usage.Add(a.usage)
			c := domain.SentinelComposite
			if a.err == nil {
				c = a.composite
				anySucceeded = true
			} else {
				log.Warn("degraded contributor", "candidate", candidates[idx].ID, "round", record.Rounds, "error", a.err)
			}
			roundComposites[idx] = c
			result.Ranking[idx].TieBreakComposites = append(result.Ranking[idx].TieBreakComposites, c)
		}
		if !anySucceeded {
			log.Warn("tie-break round produced no scores", "round", record.Rounds)
			break
		}

		tied = topTied(roundComposites, tied, iv.cfg.Epsilon)
		log.Info("tie-break round scored", "round", record.Rounds, "still_tied", len(tied))
	}

	if len(tied) == 1 {
		record.Resolution = domain.ResolvedByRound
		return tied[0], record, nil
	}
	record.Resolution = domain.ResolvedByPriority
	return slices.Min(tied), record, nil
}

// runRound interviews the candidates at indices with questions and scores
// each transcript. Results are indexed like candidates. Per-candidate
// failures are recorded in the assessment; only caller cancellation fails
// the round.
func (iv *Interviewer) runRound(
	ctx context.Context,
	task domain.Task,
	candidates []domain.Candidate,
	indices []int,
	questions []Question,
	weights domain.ScoringWeights,
) ([]assessment, error) {
	results := make([]assessment, len(candidates))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(iv.cfg.MaxConcurrency)
	for _, idx := range indices {
		g.Go(func() error {
			a := iv.interview(ctx, task, candidates[idx], questions, weights)
			mu.Lock()
			results[idx] = a
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, err)
	}
	return results, nil
}

// interview asks questions in order, then scores the transcript.
func (iv *Interviewer) interview(
	ctx context.Context,
	task domain.Task,
	c domain.Candidate,
	questions []Question,
	weights domain.ScoringWeights,
) assessment {
	var a assessment
	transcript := make([]scoring.Exchange, 0, len(questions))

	for _, q := range questions {
		out, err := iv.invoker.Invoke(ctx, llm.InvocationRequest{
			Model:        c.Model,
			System:       c.Payload,
			Prompt:       AnswerPrompt(task, q),
			AllowPremium: iv.cfg.AllowPremium,
			Metadata:     map[string]string{"candidate": c.ID, "question": q.ID},
		})
		a.usage.Add(out.TokenUsage())
		if err != nil {
			a.err = fmt.Errorf("question %s: %w", q.ID, err)
			return a
		}
		transcript = append(transcript, scoring.Exchange{Question: q.Text, Answer: out.Text})
	}

	out, err := iv.invoker.Invoke(ctx, llm.InvocationRequest{
		Model:        iv.cfg.EvaluatorModel,
		System:       evaluatorSystemPrompt,
		Prompt:       scoring.RubricPrompt(task, c.ID, "", transcript),
		Temperature:  llm.Temperature(evaluatorTemperature),
		AllowPremium: iv.cfg.AllowPremium,
		Metadata:     map[string]string{"candidate": c.ID, "stage": "score"},
	})
	a.usage.Add(out.TokenUsage())
	if err != nil {
		a.err = fmt.Errorf("scoring: %w", err)
		return a
	}

	ev, err := scoring.ParseEvaluation(out.Text)
	if err != nil {
		a.err = fmt.Errorf("scoring: %w", err)
		return a
	}
	a.score = ev.Score
	a.composite = scoring.Composite(ev.Score, weights)
	a.justification = ev.Justification
	return a
}

func validateInputs(task domain.Task, candidates []domain.Candidate, weights domain.ScoringWeights) error {
	for _, err := range []error{task.Validate(), domain.ValidateCandidates(candidates), weights.Validate()} {
		if err != nil {
			return llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, err)
		}
	}
	return nil
}

func all(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// topTied returns, in ascending index order, the members of indices whose
// composite is within epsilon of the best. Sentinel composites never tie.
func topTied(composites []float64, indices []int, epsilon float64) []int {
	best := math.Inf(-1)
	for _, idx := range indices {
		best = math.Max(best, composites[idx])
	}
	var tied []int
	for _, idx := range indices {
		if composites[idx] != domain.SentinelComposite && best-composites[idx] <= epsilon {
			tied = append(tied, idx)
		}
	}
	if len(tied) == 0 {
		// Only reachable when every composite is the sentinel.
		return []int{slices.Min(indices)}
	}
	slices.Sort(tied)
	return tied
}

// rankOrder sorts indices by composite descending, stable on input order,
// with winner moved to the front.
func rankOrder(composites []float64, winner int) []int {
	order := all(len(composites))
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case composites[a] > composites[b]:
			return -1
		case composites[a] < composites[b]:
			return 1
		default:
			return 0
		}
	})
	pos := slices.Index(order, winner)
	order = slices.Delete(order, pos, pos+1)
	return slices.Insert(order, 0, winner)
}
