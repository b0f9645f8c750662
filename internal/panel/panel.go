// Package panel decides between candidates by having a roster of personas
// interview and score every candidate, then vote.
//
// A decision moves through an explicit phase sequence:
//
//	SETUP → ROUND_ROBIN_QA → SCORING → VOTING → TIEBREAK* → DECIDED
//
// Each persona votes for the candidate it scored highest. A strict plurality
// decides; otherwise the tied candidates go through up to MaxTieBreakRounds
// further rounds, after which the highest summed composite of the latest
// completed round wins, then input order.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/clock"
	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/interview"
	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/metrics"
	"github.com/ahrav/go-conclave/internal/scoring"
)

const (
	personaSystemPrompt = "You are a member of an agent evaluation panel. " +
		"Judge only what the transcript shows and answer in the exact JSON format requested."
	scoringTemperature = 0.1
)

// Config tunes a Panel.
type Config struct {
	MaxTieBreakRounds int `validate:"gte=0"`
	MaxConcurrency    int `validate:"gte=1"`
	AllowPremium      bool
}

// ConfigFrom derives a Config from the process configuration.
func ConfigFrom(cfg *configuration.Config) Config {
	return Config{
		MaxTieBreakRounds: cfg.Panel.MaxTieBreakRounds,
		MaxConcurrency:    cfg.Evaluation.MaxConcurrency,
	}
}

// Panel runs panel decisions. It holds no per-run state.
type Panel struct {
	invoker llm.Invoker
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option customizes a Panel.
type Option func(*Panel)

// WithClock sets the clock used to stamp ballots and decisions.
func WithClock(c clock.Clock) Option { return func(p *Panel) { p.clock = c } }

// WithMetrics records decisions and ballots on c.
func WithMetrics(c *metrics.Collector) Option { return func(p *Panel) { p.metrics = c } }

// New validates cfg and creates a Panel.
func New(invoker llm.Invoker, cfg Config, opts ...Option) (*Panel, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, fmt.Errorf("panel config: %w", err))
	}
	p := &Panel{
		invoker: invoker,
		cfg:     cfg,
		clock:   clock.Real(),
		logger:  slog.Default().With("component", "panel"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// machine tracks the phase of one decision.
type machine struct {
	decision *domain.PanelDecision
	phase    domain.Phase
	logger   *slog.Logger
}

func (m *machine) enter(next domain.Phase) {
	m.logger.Debug("panel phase transition", "from", m.phase, "to", next)
	m.phase = next
	m.decision.Phases = append(m.decision.Phases, next)
}

// roundOutcome is the tally of one completed round. Slices are indexed by
// candidate position.
type roundOutcome struct {
	round      int
	contenders []int
	votes      []int
	sums       []float64
	voters     int
}

// leaders returns the contenders holding the most votes, in input order.
func (r *roundOutcome) leaders() []int {
	best := 0
	for _, idx := range r.contenders {
		best = max(best, r.votes[idx])
	}
	var out []int
	for _, idx := range r.contenders {
		if r.votes[idx] == best {
			out = append(out, idx)
		}
	}
	return out
}

// Decide runs the panel over candidates and returns the finalized decision.
//
// The roster must hold at least three personas and an odd number of them.
// A persona that fails during a round is excluded from that round's tally.
// If every persona fails in the opening round the error is EvaluationFailed;
// if every persona fails in a tie-break round, tie-breaking stops and the
// fallback is applied to the latest completed round.
func (p *Panel) Decide(
	ctx context.Context,
	task domain.Task,
	personas []domain.Persona,
	candidates []domain.Candidate,
	weights domain.ScoringWeights,
) (*domain.PanelDecision, error) {
	if err := validateInputs(task, personas, candidates, weights); err != nil {
		return nil, err
	}
	start := p.clock.Now()

	d := &domain.PanelDecision{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		Resolution: domain.ResolvedNone,
	}
	log := p.logger.With("task_id", task.ID, "decision_id", d.ID)
	sm := &machine{decision: d, logger: log}
	sm.enter(domain.PhaseSetup)
	log.Info("panel convened", "personas", len(personas), "candidates", len(candidates))

	contenders := make([]int, len(candidates))
	for i := range contenders {
		contenders[i] = i
	}

	var last *roundOutcome
	for round := 0; ; round++ {
		if round > 0 {
			sm.enter(domain.PhaseTieBreak)
			d.TieBreakRounds = round
		}
		out, err := p.playRound(ctx, sm, d, round, task, personas, candidates, contenders, weights)
		if err != nil {
			p.metrics.RecordEvaluation("panel", string(llmerrors.KindOf(err)), d.TieBreakRounds, p.clock.Now().Sub(start))
			return nil, err
		}

		if out.voters == 0 {
			if round == 0 {
				err := llmerrors.Wrap(llmerrors.KindEvaluationFailed, "", 0,
					fmt.Errorf("all %d personas failed in the opening round", len(personas)))
				p.metrics.RecordEvaluation("panel", string(llmerrors.KindEvaluationFailed), 0, p.clock.Now().Sub(start))
				return nil, err
			}
			log.Warn("tie-break round produced no votes, applying fallback", "round", round)
			break
		}
		last = out

		leaders := out.leaders()
		if len(leaders) == 1 {
			d.WinnerID = candidates[leaders[0]].ID
			if round > 0 {
				d.Resolution = domain.ResolvedByRound
			}
			break
		}
		log.Info("vote tied", "round", round, "tied", len(leaders))
		if round == p.cfg.MaxTieBreakRounds {
			break
		}
		contenders = leaders
	}

	if d.WinnerID == "" {
		winner, resolution := fallback(last)
		d.WinnerID = candidates[winner].ID
		d.Resolution = resolution
	}
	d.Tally = make(map[string]int, len(last.contenders))
	for _, idx := range last.contenders {
		d.Tally[candidates[idx].ID] = last.votes[idx]
	}

	sm.enter(domain.PhaseDecided)
	d.DecidedAt = p.clock.Now()
	log.Info("panel decided",
		"winner", d.WinnerID,
		"resolution", d.Resolution,
		"tiebreak_rounds", d.TieBreakRounds,
		"total_tokens", d.Usage.TotalTokens)
	p.metrics.RecordEvaluation("panel", metrics.OutcomeSuccess, d.TieBreakRounds, d.DecidedAt.Sub(start))
	return d, nil
}

// fallback picks among the leaders of r by summed composite, then by input
// order.
func fallback(r *roundOutcome) (int, domain.TieBreakResolution) {
	leaders := r.leaders()
	winner := leaders[0]
	unique := true
	for _, idx := range leaders[1:] {
		switch {
		case r.sums[idx] > r.sums[winner]:
			winner, unique = idx, true
		case r.sums[idx] == r.sums[winner]:
			unique = false
		}
	}
	if unique {
		return winner, domain.ResolvedBySum
	}
	return winner, domain.ResolvedByPriority
}

// answer is a candidate's reply to one persona's question.
type answer struct {
	question string
	text     string
	err      error
}

// personaWork is everything one persona produced in a round. answers and
// ballots are indexed by contender position.
type personaWork struct {
	answers []answer
	ballots []domain.Ballot
	usage   domain.TokenUsage
	err     error
}

// playRound asks, scores and tallies one round over contenders. Opening
// round phases are recorded on sm; tie-break rounds are recorded as a single
// TIEBREAK phase by the caller.
func (p *Panel) playRound(
	ctx context.Context,
	sm *machine,
	d *domain.PanelDecision,
	round int,
	task domain.Task,
	personas []domain.Persona,
	candidates []domain.Candidate,
	contenders []int,
	weights domain.ScoringWeights,
) (*roundOutcome, error) {
	work := make([]personaWork, len(personas))
	for i := range work {
		work[i].answers = make([]answer, len(contenders))
	}

	if round == 0 {
		sm.enter(domain.PhaseRoundRobinQA)
	}
	p.fanOut(personas, func(pi int) {
		p.askAll(ctx, task, personas[pi], candidates, contenders, round, &work[pi])
	})
	if err := ctx.Err(); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, err)
	}

	if round == 0 {
		sm.enter(domain.PhaseScoring)
	}
	p.fanOut(personas, func(pi int) {
		p.scoreAll(ctx, task, personas[pi], candidates, contenders, round, weights, &work[pi])
	})
	if err := ctx.Err(); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, err)
	}

	if round == 0 {
		sm.enter(domain.PhaseVoting)
	}
	out := &roundOutcome{
		round:      round,
		contenders: contenders,
		votes:      make([]int, len(candidates)),
		sums:       make([]float64, len(candidates)),
	}
	for pi, persona := range personas {
		w := &work[pi]
		d.Usage.Add(w.usage)
		d.Ballots = append(d.Ballots, w.ballots...)
		for range w.ballots {
			p.metrics.RecordBallot(persona.Name)
		}

		choice := -1
		if w.err == nil {
			choice = vote(w.ballots)
		}
		if choice < 0 {
			reason := w.err
			if reason == nil {
				reason = fmt.Errorf("no candidate could be scored")
			}
			sm.logger.Warn("degraded contributor", "persona", persona.Name, "round", round, "error", reason)
			if d.Excluded == nil {
				d.Excluded = make(map[int][]string)
			}
			d.Excluded[round] = append(d.Excluded[round], persona.Name)
			continue
		}

		idx := contenders[choice]
		out.votes[idx]++
		out.voters++
		for pos, b := range w.ballots {
			if b.Composite != domain.SentinelComposite {
				out.sums[contenders[pos]] += b.Composite
			}
		}
		d.Votes = append(d.Votes, domain.Vote{Round: round, Persona: persona.Name, CandidateID: candidates[idx].ID})
	}
	sm.logger.Info("round tallied", "round", round, "voters", out.voters, "excluded", len(d.Excluded[round]))
	return out, nil
}

// fanOut runs fn for every persona index with bounded concurrency.
func (p *Panel) fanOut(personas []domain.Persona, fn func(pi int)) {
	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrency)
	for pi := range personas {
		g.Go(func() error {
			fn(pi)
			return nil
		})
	}
	_ = g.Wait()
}

// askAll puts the persona's question to each contender in candidate order.
// A candidate that fails to answer only loses this persona's ballot.
func (p *Panel) askAll(
	ctx context.Context,
	task domain.Task,
	persona domain.Persona,
	candidates []domain.Candidate,
	contenders []int,
	round int,
	w *personaWork,
) {
	question := personaQuestion(task, persona)
	if round > 0 {
		question = interview.TieBreakQuestion(task, round).Text
	}
	q := interview.Question{ID: fmt.Sprintf("%s-R%d", persona.Name, round), Text: question}

	for pos, idx := range contenders {
		c := candidates[idx]
		out, err := p.invoker.Invoke(ctx, llm.InvocationRequest{
			Model:        c.Model,
			System:       c.Payload,
			Prompt:       interview.AnswerPrompt(task, q),
			AllowPremium: p.cfg.AllowPremium,
			Metadata:     callMetadata(persona, c, round, "answer"),
		})
		w.usage.Add(out.TokenUsage())
		w.answers[pos] = answer{question: question, err: err}
		if err == nil {
			w.answers[pos].text = out.Text
		}
	}
}

// scoreAll has the persona score every answered contender. Any scoring
// failure fails the persona for the round.
func (p *Panel) scoreAll(
	ctx context.Context,
	task domain.Task,
	persona domain.Persona,
	candidates []domain.Candidate,
	contenders []int,
	round int,
	weights domain.ScoringWeights,
	w *personaWork,
) {
	effective := persona.EffectiveWeights(weights)
	ballots := make([]domain.Ballot, len(contenders))

	for pos, idx := range contenders {
		c := candidates[idx]
		a := w.answers[pos]
		if a.err != nil {
			ballots[pos] = domain.NewBallot(round, persona.Name, c.ID, domain.Score{}, domain.SentinelComposite, a.err.Error(), p.clock.Now())
			continue
		}

		out, err := p.invoker.Invoke(ctx, llm.InvocationRequest{
			Model:        persona.Model,
			System:       personaSystemPrompt,
			Prompt:       scoring.RubricPrompt(task, c.ID, persona.Focus, []scoring.Exchange{{Question: a.question, Answer: a.text}}),
			Temperature:  llm.Temperature(scoringTemperature),
			AllowPremium: p.cfg.AllowPremium,
			Metadata:     callMetadata(persona, c, round, "score"),
		})
		w.usage.Add(out.TokenUsage())
		if err != nil {
			w.err = fmt.Errorf("scoring %s: %w", c.ID, err)
			return
		}
		ev, err := scoring.ParseEvaluation(out.Text)
		if err != nil {
			w.err = fmt.Errorf("scoring %s: %w", c.ID, err)
			return
		}
		ballots[pos] = domain.NewBallot(round, persona.Name, c.ID, ev.Score, scoring.Composite(ev.Score, effective), ev.Justification, p.clock.Now())
	}
	w.ballots = ballots
}

// vote returns the position of the highest composite ballot, earliest on
// ties, or -1 when every ballot carries the sentinel.
func vote(ballots []domain.Ballot) int {
	choice := -1
	for pos, b := range ballots {
		if b.Composite == domain.SentinelComposite {
			continue
		}
		if choice < 0 || b.Composite > ballots[choice].Composite {
			choice = pos
		}
	}
	return choice
}

func callMetadata(persona domain.Persona, c domain.Candidate, round int, stage string) map[string]string {
	return map[string]string{
		"persona":   persona.Name,
		"candidate": c.ID,
		"round":     strconv.Itoa(round),
		"stage":     stage,
	}
}

func validateInputs(task domain.Task, personas []domain.Persona, candidates []domain.Candidate, weights domain.ScoringWeights) error {
	for _, err := range []error{
		task.Validate(),
		domain.ValidateRoster(personas),
		domain.ValidateCandidates(candidates),
		weights.Validate(),
	} {
		if err != nil {
			return llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, err)
		}
	}
	return nil
}
